package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/payment-requests/internal/application/workflow"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

const (
	defaultExportSheet = "Payment Requests"
	exportPageSize     = 100
)

var exportHeader = []interface{}{
	"ID", "Title", "Department ID", "Project ID", "Requester ID", "Vendor",
	"Expense Category", "Amount", "Status", "Invoice Reference",
	"Created At", "Submitted At", "Approved At", "Paid At", "Rejection Reason",
}

// ExportService renders request listings as spreadsheets
type ExportService interface {
	// ExportRequests writes an XLSX workbook of every request the principal
	// can list under filter, ignoring its paging fields. Returns the row count.
	ExportRequests(ctx context.Context, p *entity.Principal, filter entity.RequestFilter, w io.Writer) (int, error)
}

type exportServiceImpl struct {
	engine    workflow.WorkflowEngine
	gate      *access.Gate
	sheetName string
	logger    Logger
}

// NewExportService creates a new ExportService
func NewExportService(engine workflow.WorkflowEngine, gate *access.Gate, sheetName string, logger Logger) ExportService {
	if sheetName == "" {
		sheetName = defaultExportSheet
	}
	return &exportServiceImpl{
		engine:    engine,
		gate:      gate,
		sheetName: sheetName,
		logger:    logger,
	}
}

func (s *exportServiceImpl) ExportRequests(ctx context.Context, p *entity.Principal, filter entity.RequestFilter, w io.Writer) (int, error) {
	if err := authorize(s.gate, p, access.ActionExportRequests); err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), s.sheetName); err != nil {
		return 0, fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(s.sheetName, "A1", &exportHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	filter.PerPage = exportPageSize
	rows := 0
	for page := 1; ; page++ {
		filter.Page = page
		result, err := s.engine.List(ctx, p, filter)
		if err != nil {
			return 0, err
		}
		for _, req := range result.Items {
			cell, err := excelize.CoordinatesToCellName(1, rows+2)
			if err != nil {
				return 0, fmt.Errorf("cell name: %w", err)
			}
			row := exportRow(req)
			if err := f.SetSheetRow(s.sheetName, cell, &row); err != nil {
				return 0, fmt.Errorf("write row %d: %w", req.ID, err)
			}
			rows++
		}
		if len(result.Items) < exportPageSize || rows >= result.Total {
			break
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("Payment requests exported", "user_id", p.UserID, "rows", rows)
	return rows, nil
}

func exportRow(req *entity.PaymentRequest) []interface{} {
	var projectID interface{} = ""
	if req.ProjectID != nil {
		projectID = *req.ProjectID
	}
	amount, _ := req.Amount.Float64()
	return []interface{}{
		req.ID,
		req.Title,
		req.DepartmentID,
		projectID,
		req.RequesterID,
		req.VendorName,
		req.ExpenseCategory,
		amount,
		string(req.Status),
		req.InvoiceReference,
		req.CreatedAt.Format("2006-01-02 15:04:05"),
		formatTime(req.SubmittedAt),
		formatTime(req.ApprovedAt),
		formatTime(req.PaidAt),
		req.RejectionReason,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
