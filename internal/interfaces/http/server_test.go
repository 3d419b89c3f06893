package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/payment-requests/internal/application/service"
	"github.com/garyjia/payment-requests/internal/application/workflow"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// fakeUsers resolves principals from a fixed table
type fakeUsers struct {
	service.UserService
	principals map[int64]*entity.Principal
}

func (f *fakeUsers) Principal(ctx context.Context, userID int64) (*entity.Principal, error) {
	p, ok := f.principals[userID]
	if !ok {
		return nil, apperr.ErrUnauthenticated
	}
	return p, nil
}

// fakeEngine records calls and returns canned results
type fakeEngine struct {
	workflow.WorkflowEngine

	lastFilter entity.RequestFilter
	lastReason string
	lastInput  workflow.RequestInput
	err        error
}

func (f *fakeEngine) request(id int64, status entity.RequestStatus) *entity.PaymentRequest {
	return &entity.PaymentRequest{ID: id, Title: "Laptops", Status: status, Amount: decimal.RequireFromString("1200")}
}

func (f *fakeEngine) List(ctx context.Context, p *entity.Principal, filter entity.RequestFilter) (*entity.RequestPage, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return &entity.RequestPage{Items: []*entity.PaymentRequest{f.request(1, entity.StatusDraft)}, Total: 1, Page: filter.Page, PerPage: filter.PerPage}, nil
}

func (f *fakeEngine) Create(ctx context.Context, p *entity.Principal, input workflow.RequestInput) (*entity.PaymentRequest, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.request(9, entity.StatusDraft), nil
}

func (f *fakeEngine) Approve(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.request(id, entity.StatusApproved), nil
}

func (f *fakeEngine) Reject(ctx context.Context, p *entity.Principal, id int64, reason string) (*entity.PaymentRequest, error) {
	f.lastReason = reason
	if f.err != nil {
		return nil, f.err
	}
	return f.request(id, entity.StatusRejected), nil
}

type fakeExport struct {
	err error
}

func (f *fakeExport) ExportRequests(ctx context.Context, p *entity.Principal, filter entity.RequestFilter, w io.Writer) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	_, err := w.Write([]byte("PK"))
	return 3, err
}

// fakeComments keeps one thread per request in memory
type fakeComments struct {
	threads map[int64][]*entity.Comment
}

func (f *fakeComments) List(ctx context.Context, p *entity.Principal, requestID int64) ([]*entity.Comment, error) {
	thread, ok := f.threads[requestID]
	if !ok {
		return nil, apperr.NotFound("payment request", requestID)
	}
	return thread, nil
}

func (f *fakeComments) Add(ctx context.Context, p *entity.Principal, requestID int64, input service.CommentInput) (*entity.Comment, error) {
	if _, ok := f.threads[requestID]; !ok {
		return nil, apperr.NotFound("payment request", requestID)
	}
	if input.Body == "" {
		return nil, apperr.Validation("body: is required")
	}
	comment := &entity.Comment{ID: int64(len(f.threads[requestID]) + 1), PaymentRequestID: requestID, AuthorID: &p.UserID, Body: input.Body}
	f.threads[requestID] = append(f.threads[requestID], comment)
	return comment, nil
}

// fakeInbox records the principal and flags it was called with
type fakeInbox struct {
	lastUser   int64
	unreadOnly bool
	deleted    []int64
}

func (f *fakeInbox) List(ctx context.Context, p *entity.Principal, unreadOnly bool) (*service.Inbox, error) {
	f.lastUser, f.unreadOnly = p.UserID, unreadOnly
	return &service.Inbox{Notifications: []*entity.Notification{{ID: 1, UserID: p.UserID, Message: "approved"}}, Unread: 1}, nil
}

func (f *fakeInbox) MarkAllRead(ctx context.Context, p *entity.Principal) (int64, error) {
	f.lastUser = p.UserID
	return 1, nil
}

func (f *fakeInbox) Delete(ctx context.Context, p *entity.Principal, id int64) error {
	if id != 1 {
		return apperr.NotFound("notification", id)
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func testRole(t *testing.T, name string, caps map[string]bool) *entity.Role {
	t.Helper()
	role, err := entity.NewRole(name, caps)
	require.NoError(t, err)
	return role
}

func newTestServer(t *testing.T, engine *fakeEngine) *Server {
	t.Helper()
	return newTestServerWith(t, engine, &fakeComments{threads: map[int64][]*entity.Comment{7: {}}}, &fakeInbox{})
}

func newTestServerWith(t *testing.T, engine *fakeEngine, comments *fakeComments, inbox *fakeInbox) *Server {
	t.Helper()
	users := &fakeUsers{principals: map[int64]*entity.Principal{
		1: {UserID: 1, DepartmentID: 1, Role: testRole(t, entity.RoleCEO, nil)},
		5: {UserID: 5, DepartmentID: 4, Role: testRole(t, entity.RoleRequestor, map[string]bool{"can_create_request": true})},
		6: {UserID: 6, DepartmentID: 4},
	}}
	return NewServer(DefaultServerConfig(), Services{
		Engine:   engine,
		Users:    users,
		Export:   &fakeExport{},
		Comments: comments,
		Inbox:    inbox,
	}, access.NewGate(), nopLogger{})
}

func do(t *testing.T, s *Server, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck_NoAuth(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})
	w := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})

	tests := []struct {
		name   string
		userID string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not a number", "abc", http.StatusUnauthorized},
		{"non-positive", "0", http.StatusUnauthorized},
		{"unknown user", "404", http.StatusUnauthorized},
		{"known user", "5", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodGet, "/api/v1/requests", tt.userID, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMe(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})

	w := do(t, s, http.MethodGet, "/api/v1/me", "5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, entity.RoleRequestor, data["role"])
	assert.Equal(t, []interface{}{"can_create_request"}, data["capabilities"])
	assert.Contains(t, data["actions"], string(access.ActionCreateRequest))
	assert.NotContains(t, data["actions"], string(access.ActionApproveRequest))

	w = do(t, s, http.MethodGet, "/api/v1/me", "6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decode(t, w)["data"].(map[string]interface{})
	assert.Empty(t, data["actions"])
}

func TestListRequests_Filter(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	w := do(t, s, http.MethodGet, "/api/v1/requests?status=Pending&department_id=4&search=%20lap%20&page=2&per_page=500", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, entity.StatusPending, engine.lastFilter.Status)
	require.NotNil(t, engine.lastFilter.DepartmentID)
	assert.Equal(t, int64(4), *engine.lastFilter.DepartmentID)
	assert.Equal(t, "lap", engine.lastFilter.Search)
	assert.Equal(t, 2, engine.lastFilter.Page)
	assert.Equal(t, 20, engine.lastFilter.PerPage)

	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(2), data["current_page"])
}

func TestListRequests_InvalidQuery(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})

	for _, q := range []string{"status=archived", "department_id=x", "page=abc"} {
		w := do(t, s, http.MethodGet, "/api/v1/requests?"+q, "1", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, q)
	}
}

func TestCreateRequest(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	w := do(t, s, http.MethodPost, "/api/v1/requests", "5", map[string]interface{}{
		"department_id":    4,
		"title":            "Laptops",
		"amount":           "1200.50",
		"vendor_name":      "Acme",
		"expense_category": "Hardware",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "1200.5", engine.lastInput.Amount.String())
	assert.Equal(t, int64(4), engine.lastInput.DepartmentID)

	w = do(t, s, http.MethodPost, "/api/v1/requests", "5", "not an object")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestApprove_BudgetExceededCarriesAvailable(t *testing.T) {
	engine := &fakeEngine{err: &apperr.BudgetExceededError{
		BudgetID:  3,
		Requested: decimal.RequireFromString("1200"),
		Available: decimal.RequireFromString("1000"),
	}}
	s := newTestServer(t, engine)

	w := do(t, s, http.MethodPost, "/api/v1/requests/7/approve", "1", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "1000", body["available_budget"])
	assert.Contains(t, body["error"], "exceeds available budget")
}

func TestReject_PassesReason(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	w := do(t, s, http.MethodPost, "/api/v1/requests/7/reject", "1", RejectBody{RejectionReason: "duplicate invoice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicate invoice", engine.lastReason)

	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "rejected", data["status"])
}

func TestInvalidPathID(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})
	w := do(t, s, http.MethodPost, "/api/v1/requests/abc/approve", "1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExportRequests(t *testing.T) {
	s := newTestServer(t, &fakeEngine{})

	w := do(t, s, http.MethodGet, "/api/v1/requests/export?status=paid", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "3", w.Header().Get("X-Row-Count"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "payment-requests.xlsx")
	assert.Equal(t, "PK", w.Body.String())
}

func TestRequestComments(t *testing.T) {
	comments := &fakeComments{threads: map[int64][]*entity.Comment{7: {}}}
	s := newTestServerWith(t, &fakeEngine{}, comments, &fakeInbox{})

	w := do(t, s, http.MethodPost, "/api/v1/requests/7/comments", "5", service.CommentInput{Body: "Invoice attached"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/requests/7/comments", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decode(t, w)["data"].([]interface{})
	require.Len(t, thread, 1)
	assert.Equal(t, "Invoice attached", thread[0].(map[string]interface{})["body"])

	w = do(t, s, http.MethodGet, "/api/v1/requests/8/comments", "1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/requests/7/comments", "5", service.CommentInput{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestNotifications(t *testing.T) {
	inbox := &fakeInbox{}
	s := newTestServerWith(t, &fakeEngine{}, &fakeComments{}, inbox)

	w := do(t, s, http.MethodGet, "/api/v1/notifications?unread=true", "5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5), inbox.lastUser)
	assert.True(t, inbox.unreadOnly)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["unread"])

	w = do(t, s, http.MethodGet, "/api/v1/notifications?unread=maybe", "5", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/notifications/mark-read", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["data"].(map[string]interface{})["updated"])
	assert.Equal(t, int64(1), inbox.lastUser)

	w = do(t, s, http.MethodDelete, "/api/v1/notifications/1", "5", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/api/v1/notifications/2", "5", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []int64{1}, inbox.deleted)

	w = do(t, s, http.MethodGet, "/api/v1/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("%w: approve_request", apperr.ErrForbidden), http.StatusForbidden},
		{apperr.NotFound("payment request", 3), http.StatusNotFound},
		{apperr.Validation("title: is required"), http.StatusUnprocessableEntity},
		{fmt.Errorf("approve: %w", apperr.ErrInvalidTransition), http.StatusConflict},
		{apperr.ErrBudgetNotFound, http.StatusBadRequest},
		{&apperr.BudgetExceededError{}, http.StatusForbidden},
		{apperr.ErrInsufficientFunds, http.StatusConflict},
		{errors.New("disk I/O error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestInternalErrorsAreMasked(t *testing.T) {
	engine := &fakeEngine{err: errors.New("database is locked")}
	s := newTestServer(t, engine)

	w := do(t, s, http.MethodGet, "/api/v1/requests", "1", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w)["error"])
}
