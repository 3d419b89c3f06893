package http

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/payment-requests/internal/application/workflow"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ListRequestsQuery represents query parameters for listing requests
type ListRequestsQuery struct {
	Status       string `form:"status"`
	DepartmentID string `form:"department_id"`
	Search       string `form:"search"`
	Page         int    `form:"page"`
	PerPage      int    `form:"per_page"`
}

// RejectBody is the body of POST /requests/:id/reject
type RejectBody struct {
	RejectionReason string `json:"rejection_reason"`
}

func (q ListRequestsQuery) filter() (entity.RequestFilter, error) {
	f := entity.RequestFilter{
		Status:  entity.RequestStatus(strings.ToLower(strings.TrimSpace(q.Status))),
		Search:  strings.TrimSpace(q.Search),
		Page:    q.Page,
		PerPage: q.PerPage,
	}
	if f.Status != "" && !f.Status.IsValid() {
		return f, apperr.Validation("status: unknown status %q", q.Status)
	}
	if q.DepartmentID != "" {
		id, err := strconv.ParseInt(q.DepartmentID, 10, 64)
		if err != nil || id <= 0 {
			return f, apperr.Validation("department_id: must be a positive integer")
		}
		f.DepartmentID = &id
	}
	f.Normalize()
	return f, nil
}

func bindFilter(c *gin.Context) (entity.RequestFilter, error) {
	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return entity.RequestFilter{}, apperr.Validation("invalid query parameters: %v", err)
	}
	return q.filter()
}

// ListRequests handles GET /api/v1/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	filter, err := bindFilter(c)
	if err != nil {
		h.fail(c, "list requests", err)
		return
	}
	page, err := h.services.Engine.List(c.Request.Context(), principalFrom(c), filter)
	if err != nil {
		h.fail(c, "list requests", err)
		return
	}
	ok(c, http.StatusOK, page)
}

// ExportRequests handles GET /api/v1/requests/export
func (h *Handlers) ExportRequests(c *gin.Context) {
	filter, err := bindFilter(c)
	if err != nil {
		h.fail(c, "export requests", err)
		return
	}

	var buf bytes.Buffer
	rows, err := h.services.Export.ExportRequests(c.Request.Context(), principalFrom(c), filter, &buf)
	if err != nil {
		h.fail(c, "export requests", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="payment-requests.xlsx"`)
	c.Header("X-Row-Count", strconv.Itoa(rows))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CreateRequest handles POST /api/v1/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var input workflow.RequestInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, "create request", err)
		return
	}
	req, err := h.services.Engine.Create(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		h.fail(c, "create request", err)
		return
	}
	ok(c, http.StatusCreated, req)
}

// GetRequest handles GET /api/v1/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "get request", err)
		return
	}
	req, err := h.services.Engine.Get(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, "get request", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// UpdateRequest handles PUT /api/v1/requests/:id
func (h *Handlers) UpdateRequest(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "update request", err)
		return
	}
	var input workflow.RequestInput
	if err := bindJSON(c, &input); err != nil {
		h.fail(c, "update request", err)
		return
	}
	req, err := h.services.Engine.UpdateDraft(c.Request.Context(), principalFrom(c), id, input)
	if err != nil {
		h.fail(c, "update request", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// SubmitRequest handles POST /api/v1/requests/:id/submit
func (h *Handlers) SubmitRequest(c *gin.Context) {
	h.transition(c, "submit request", h.services.Engine.Submit)
}

// ApproveRequest handles POST /api/v1/requests/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	h.transition(c, "approve request", h.services.Engine.Approve)
}

// MarkPaid handles POST /api/v1/requests/:id/pay
func (h *Handlers) MarkPaid(c *gin.Context) {
	h.transition(c, "mark request paid", h.services.Engine.MarkPaid)
}

// RejectRequest handles POST /api/v1/requests/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "reject request", err)
		return
	}
	var body RejectBody
	if err := bindJSON(c, &body); err != nil {
		h.fail(c, "reject request", err)
		return
	}
	req, err := h.services.Engine.Reject(c.Request.Context(), principalFrom(c), id, body.RejectionReason)
	if err != nil {
		h.fail(c, "reject request", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// RequestAudit handles GET /api/v1/requests/:id/audit
func (h *Handlers) RequestAudit(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, "request audit", err)
		return
	}
	records, err := h.services.Audit.ListForRequest(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, "request audit", err)
		return
	}
	ok(c, http.StatusOK, records)
}

type transitionFunc func(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error)

// transition runs a body-less lifecycle action on :id
func (h *Handlers) transition(c *gin.Context, op string, fn transitionFunc) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	req, err := fn(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	ok(c, http.StatusOK, req)
}
