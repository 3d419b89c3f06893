package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/infrastructure/persistence/sqlite"
)

// PaymentRequestRepository implements port.PaymentRequestRepository
type PaymentRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRequestRepository creates a new payment request repository
func NewPaymentRequestRepository(db *sql.DB, logger *zap.Logger) port.PaymentRequestRepository {
	return &PaymentRequestRepository{
		db:     db,
		logger: logger,
	}
}

const paymentRequestColumns = `
	id, requester_id, department_id, project_id, title, description, amount_cents,
	vendor_name, vendor_details, expense_category, invoice_reference, status,
	approver_id, payee_id, rejected_by_id, rejection_reason,
	created_at, updated_at, submitted_at, approved_at, rejected_at, paid_at`

// Create inserts a new payment request
func (r *PaymentRequestRepository) Create(ctx context.Context, req *entity.PaymentRequest) error {
	details, err := encodeVendorDetails(req.VendorDetails)
	if err != nil {
		return err
	}
	amount, err := entity.ToCents(req.Amount)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payment_requests (
			requester_id, department_id, project_id, title, description, amount_cents,
			vendor_name, vendor_details, expense_category, invoice_reference, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.RequesterID,
		req.DepartmentID,
		nullInt64(req.ProjectID),
		req.Title,
		req.Description,
		amount,
		req.VendorName,
		details,
		req.ExpenseCategory,
		req.InvoiceReference,
		string(req.Status),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment request", zap.Int64("requester_id", req.RequesterID), zap.Error(err))
		return fmt.Errorf("failed to create payment request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	return nil
}

// Get retrieves a request visible under scope
func (r *PaymentRequestRepository) Get(ctx context.Context, scope access.Scope, id int64) (*entity.PaymentRequest, error) {
	where, args := scopeClause(scope, "department_id")
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE id = ? AND ` + where

	req, err := scanPaymentRequest(r.getExecutor(ctx).QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payment request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}
	return req, nil
}

// List returns one page of requests visible under scope, newest first
func (r *PaymentRequestRepository) List(ctx context.Context, scope access.Scope, filter entity.RequestFilter) (*entity.RequestPage, error) {
	filter.Normalize()

	where, args := scopeClause(scope, "department_id")
	conditions := []string{where}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.DepartmentID != nil {
		conditions = append(conditions, "department_id = ?")
		args = append(args, *filter.DepartmentID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, "(title LIKE ? ESCAPE '\\' OR vendor_name LIKE ? ESCAPE '\\')")
		pattern := "%" + escapeLike(search) + "%"
		args = append(args, pattern, pattern)
	}
	clause := strings.Join(conditions, " AND ")

	var total int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_requests WHERE `+clause, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count payment requests", zap.Error(err))
		return nil, fmt.Errorf("failed to count payment requests: %w", err)
	}

	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE ` + clause +
		` ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, append(args, filter.PerPage, filter.Offset())...)
	if err != nil {
		r.logger.Error("Failed to list payment requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	defer rows.Close()

	items := make([]*entity.PaymentRequest, 0, filter.PerPage)
	for rows.Next() {
		req, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		items = append(items, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &entity.RequestPage{
		Items:   items,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}, nil
}

// UpdateDraft rewrites editable fields while the stored status is still draft
func (r *PaymentRequestRepository) UpdateDraft(ctx context.Context, req *entity.PaymentRequest) (bool, error) {
	details, err := encodeVendorDetails(req.VendorDetails)
	if err != nil {
		return false, err
	}
	amount, err := entity.ToCents(req.Amount)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE payment_requests
		SET department_id = ?, project_id = ?, title = ?, description = ?, amount_cents = ?,
			vendor_name = ?, vendor_details = ?, expense_category = ?, invoice_reference = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.DepartmentID,
		nullInt64(req.ProjectID),
		req.Title,
		req.Description,
		amount,
		req.VendorName,
		details,
		req.ExpenseCategory,
		req.InvoiceReference,
		req.UpdatedAt,
		req.ID,
		string(entity.StatusDraft),
	)
	if err != nil {
		r.logger.Error("Failed to update draft", zap.Int64("id", req.ID), zap.Error(err))
		return false, fmt.Errorf("failed to update draft: %w", err)
	}
	return affectedOne(result)
}

// Transition persists status and decision fields if the stored status still equals from
func (r *PaymentRequestRepository) Transition(ctx context.Context, req *entity.PaymentRequest, from entity.RequestStatus) (bool, error) {
	query := `
		UPDATE payment_requests
		SET status = ?, approver_id = ?, payee_id = ?, rejected_by_id = ?, rejection_reason = ?,
			submitted_at = ?, approved_at = ?, rejected_at = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(req.Status),
		nullInt64(req.ApproverID),
		nullInt64(req.PayeeID),
		nullInt64(req.RejectorID),
		req.RejectionReason,
		nullTime(req.SubmittedAt),
		nullTime(req.ApprovedAt),
		nullTime(req.RejectedAt),
		nullTime(req.PaidAt),
		req.UpdatedAt,
		req.ID,
		string(from),
	)
	if err != nil {
		r.logger.Error("Failed to transition payment request",
			zap.Int64("id", req.ID),
			zap.String("from", string(from)),
			zap.String("to", string(req.Status)),
			zap.Error(err))
		return false, fmt.Errorf("failed to transition payment request: %w", err)
	}
	return affectedOne(result)
}

// CountByStatus counts requests per status under scope
func (r *PaymentRequestRepository) CountByStatus(ctx context.Context, scope access.Scope) (map[entity.RequestStatus]int, error) {
	where, args := scopeClause(scope, "department_id")
	rows, err := r.getExecutor(ctx).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM payment_requests WHERE `+where+` GROUP BY status`, args...)
	if err != nil {
		r.logger.Error("Failed to count payment requests by status", zap.Error(err))
		return nil, fmt.Errorf("failed to count payment requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[entity.RequestStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[entity.RequestStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanPaymentRequest(row rowScanner) (*entity.PaymentRequest, error) {
	var (
		req                             entity.PaymentRequest
		projectID                       sql.NullInt64
		approverID, payeeID, rejectorID sql.NullInt64
		amountCents                     int64
		vendorDetails                   sql.NullString
		status                          string
		submittedAt, approvedAt         sql.NullTime
		rejectedAt, paidAt              sql.NullTime
	)
	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.DepartmentID,
		&projectID,
		&req.Title,
		&req.Description,
		&amountCents,
		&req.VendorName,
		&vendorDetails,
		&req.ExpenseCategory,
		&req.InvoiceReference,
		&status,
		&approverID,
		&payeeID,
		&rejectorID,
		&req.RejectionReason,
		&req.CreatedAt,
		&req.UpdatedAt,
		&submittedAt,
		&approvedAt,
		&rejectedAt,
		&paidAt,
	)
	if err != nil {
		return nil, err
	}

	req.ProjectID = int64Ptr(projectID)
	req.Amount = entity.FromCents(amountCents)
	req.Status = entity.RequestStatus(status)
	req.ApproverID = int64Ptr(approverID)
	req.PayeeID = int64Ptr(payeeID)
	req.RejectorID = int64Ptr(rejectorID)
	req.SubmittedAt = timePtr(submittedAt)
	req.ApprovedAt = timePtr(approvedAt)
	req.RejectedAt = timePtr(rejectedAt)
	req.PaidAt = timePtr(paidAt)

	if vendorDetails.Valid && vendorDetails.String != "" {
		var details entity.VendorDetails
		if err := json.Unmarshal([]byte(vendorDetails.String), &details); err != nil {
			return nil, fmt.Errorf("request %d: decode vendor details: %w", req.ID, err)
		}
		req.VendorDetails = &details
	}
	return &req, nil
}

func encodeVendorDetails(details *entity.VendorDetails) (sql.NullString, error) {
	if details == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode vendor details: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// escapeLike escapes LIKE wildcards so search terms match literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *PaymentRequestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.PaymentRequestRepository = (*PaymentRequestRepository)(nil)
