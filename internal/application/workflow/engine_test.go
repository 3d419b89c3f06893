package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/payment-requests/internal/application/dispatcher"
	"github.com/garyjia/payment-requests/internal/application/ledger"
	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/domain/event"
	domainwf "github.com/garyjia/payment-requests/internal/domain/workflow"
)

const (
	financeDept   int64 = 2
	techDept      int64 = 4
	marketingDept int64 = 5
)

// Mock implementations

type store struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]entity.PaymentRequest
	budgets  map[int64]entity.Budget
	projects map[int64]entity.Project
}

func newStore() *store {
	return &store{
		requests: make(map[int64]entity.PaymentRequest),
		budgets:  make(map[int64]entity.Budget),
		projects: make(map[int64]entity.Project),
	}
}

type mockRequestRepo struct{ s *store }

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.PaymentRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.nextID++
	req.ID = 1000 + m.s.nextID
	m.s.requests[req.ID] = *req
	return nil
}

func (m *mockRequestRepo) Get(ctx context.Context, scope access.Scope, id int64) (*entity.PaymentRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	req, ok := m.s.requests[id]
	if !ok || !scope.Admits(req.DepartmentID) {
		return nil, nil
	}
	return &req, nil
}

func (m *mockRequestRepo) List(ctx context.Context, scope access.Scope, filter entity.RequestFilter) (*entity.RequestPage, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var items []*entity.PaymentRequest
	for _, req := range m.s.requests {
		req := req
		if !scope.Admits(req.DepartmentID) {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.DepartmentID != nil && req.DepartmentID != *filter.DepartmentID {
			continue
		}
		if filter.Search != "" && !strings.Contains(req.Title, filter.Search) && !strings.Contains(req.VendorName, filter.Search) {
			continue
		}
		items = append(items, &req)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return &entity.RequestPage{Items: items, Total: len(items), Page: filter.Page, PerPage: filter.PerPage}, nil
}

func (m *mockRequestRepo) UpdateDraft(ctx context.Context, req *entity.PaymentRequest) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.requests[req.ID].Status != entity.StatusDraft {
		return false, nil
	}
	m.s.requests[req.ID] = *req
	return true, nil
}

func (m *mockRequestRepo) Transition(ctx context.Context, req *entity.PaymentRequest, from entity.RequestStatus) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.requests[req.ID].Status != from {
		return false, nil
	}
	m.s.requests[req.ID] = *req
	return true, nil
}

func (m *mockRequestRepo) CountByStatus(ctx context.Context, scope access.Scope) (map[entity.RequestStatus]int, error) {
	return nil, nil
}

type mockBudgetRepo struct{ s *store }

func (m *mockBudgetRepo) FindActive(ctx context.Context, scope access.Scope, departmentID int64, projectID *int64) (*entity.Budget, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ids := make([]int64, 0, len(m.s.budgets))
	for id := range m.s.budgets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		b := m.s.budgets[id]
		if !b.IsActive() || b.DepartmentID != departmentID || !scope.Admits(b.DepartmentID) {
			continue
		}
		if projectID != nil && (b.ProjectID == nil || *b.ProjectID != *projectID) {
			continue
		}
		return &b, nil
	}
	return nil, nil
}

func (m *mockBudgetRepo) Debit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	b := m.s.budgets[id]
	if !b.IsActive() || b.AmountSpent.Add(amount).GreaterThan(b.AmountAllocated) {
		return false, nil
	}
	b.AmountSpent = b.AmountSpent.Add(amount)
	m.s.budgets[id] = b
	return true, nil
}

func (m *mockBudgetRepo) Get(ctx context.Context, scope access.Scope, id int64) (*entity.Budget, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	b, ok := m.s.budgets[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *mockBudgetRepo) Create(ctx context.Context, budget *entity.Budget) error { return nil }
func (m *mockBudgetRepo) List(ctx context.Context, scope access.Scope) ([]*entity.Budget, error) {
	return nil, nil
}
func (m *mockBudgetRepo) Update(ctx context.Context, budget *entity.Budget) (bool, error) {
	return true, nil
}
func (m *mockBudgetRepo) Delete(ctx context.Context, id int64) (bool, error) { return true, nil }
func (m *mockBudgetRepo) Approve(ctx context.Context, id, approverID int64, at time.Time) (bool, error) {
	return false, nil
}
func (m *mockBudgetRepo) ArchiveExpired(ctx context.Context, now time.Time) ([]int64, error) {
	return nil, nil
}
func (m *mockBudgetRepo) Totals(ctx context.Context, scope access.Scope) (*port.BudgetTotals, error) {
	return &port.BudgetTotals{}, nil
}

type mockProjectRepo struct{ s *store }

func (m *mockProjectRepo) Get(ctx context.Context, scope access.Scope, id int64) (*entity.Project, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.projects[id]
	if !ok || !scope.Admits(p.DepartmentID) {
		return nil, nil
	}
	return &p, nil
}

func (m *mockProjectRepo) Create(ctx context.Context, project *entity.Project) error { return nil }
func (m *mockProjectRepo) List(ctx context.Context, scope access.Scope) ([]*entity.Project, error) {
	return nil, nil
}
func (m *mockProjectRepo) Update(ctx context.Context, project *entity.Project) error { return nil }
func (m *mockProjectRepo) Delete(ctx context.Context, id int64) error                { return nil }
func (m *mockProjectRepo) Count(ctx context.Context, scope access.Scope) (int, error) {
	return 0, nil
}

// mockTxManager serializes transactions like SQLite's single writer and
// restores the store when fn fails.
type mockTxManager struct {
	mu sync.Mutex
	s  *store
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.s.mu.Lock()
	requests := make(map[int64]entity.PaymentRequest, len(m.s.requests))
	for k, v := range m.s.requests {
		requests[k] = v
	}
	budgets := make(map[int64]entity.Budget, len(m.s.budgets))
	for k, v := range m.s.budgets {
		budgets[k] = v
	}
	m.s.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.s.mu.Lock()
		m.s.requests = requests
		m.s.budgets = budgets
		m.s.mu.Unlock()
		return err
	}
	return nil
}

type mockAuditRecorder struct {
	mu      sync.Mutex
	records []*entity.AuditRecord
	err     error
}

func (m *mockAuditRecorder) Record(ctx context.Context, record *entity.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockAuditRecorder) actions(requestID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.records {
		if r.SubjectID == requestID {
			out = append(out, r.Action)
		}
	}
	return out
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}
func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}
func (m *mockDispatcher) Handlers(eventType event.Type) []string { return nil }
func (m *mockDispatcher) Close() error                           { return nil }

func (m *mockDispatcher) count(t event.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Fixture

type fixture struct {
	store  *store
	audit  *mockAuditRecorder
	events *mockDispatcher
	engine WorkflowEngine

	ceo            *entity.Principal
	financeManager *entity.Principal
	techRequestor  *entity.Principal
	techColleague  *entity.Principal
	mktRequestor   *entity.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newStore()
	f := &fixture{
		store:  s,
		audit:  &mockAuditRecorder{},
		events: &mockDispatcher{},
	}

	budgets := &mockBudgetRepo{s: s}
	f.engine = NewEngine(
		&mockRequestRepo{s: s},
		budgets,
		&mockProjectRepo{s: s},
		ledger.New(budgets),
		f.audit,
		&mockTxManager{s: s},
		access.NewGate(),
		WithDispatcher(f.events),
	)

	f.ceo = newPrincipal(t, 1, entity.RoleCEO, nil, 1)
	f.financeManager = newPrincipal(t, 2, entity.RoleFinanceManager, map[string]bool{
		"can_view_all_department_data": true,
		"can_mark_as_paid":             true,
	}, financeDept)
	f.techRequestor = newPrincipal(t, 3, entity.RoleRequestor, map[string]bool{"can_create_request": true}, techDept)
	f.techColleague = newPrincipal(t, 4, entity.RoleRequestor, map[string]bool{"can_create_request": true}, techDept)
	f.mktRequestor = newPrincipal(t, 5, entity.RoleRequestor, map[string]bool{"can_create_request": true}, marketingDept)
	return f
}

func newPrincipal(t *testing.T, id int64, roleName string, caps map[string]bool, dept int64) *entity.Principal {
	t.Helper()
	role, err := entity.NewRole(roleName, caps)
	require.NoError(t, err)
	return &entity.Principal{UserID: id, Role: role, DepartmentID: dept}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) addBudget(id, dept int64, allocated, spent string) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.budgets[id] = entity.Budget{
		ID:              id,
		DepartmentID:    dept,
		AmountAllocated: money(allocated),
		AmountSpent:     money(spent),
		Status:          entity.BudgetStatusActive,
	}
}

func (f *fixture) addRequest(id, requester, dept int64, amount string, status entity.RequestStatus) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.requests[id] = entity.PaymentRequest{
		ID:              id,
		RequesterID:     requester,
		DepartmentID:    dept,
		Title:           "Request",
		Amount:          money(amount),
		VendorName:      "Vendor",
		ExpenseCategory: "Equipment",
		Status:          status,
	}
}

func (f *fixture) status(id int64) entity.RequestStatus {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.requests[id].Status
}

func (f *fixture) spent(budgetID int64) decimal.Decimal {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.budgets[budgetID].AmountSpent
}

func validInput(dept int64) RequestInput {
	return RequestInput{
		DepartmentID:    dept,
		Title:           "  Developer laptops ",
		Amount:          money("1250.50"),
		VendorName:      "Acme Computers",
		ExpenseCategory: "Equipment",
		VendorDetails:   &entity.VendorDetails{Phone: "555-0101"},
	}
}

// Test factory

func TestPaymentRequestLifecycleGraph(t *testing.T) {
	edges := NewPaymentRequestBuilder().Edges()

	want := []domainwf.Edge{
		{From: domainwf.StateApproved, Trigger: domainwf.TriggerMarkPaid, To: domainwf.StatePaid},
		{From: domainwf.StateApproved, Trigger: domainwf.TriggerReject, To: domainwf.StateRejected},
		{From: domainwf.StateDraft, Trigger: domainwf.TriggerSubmit, To: domainwf.StatePending},
		{From: domainwf.StatePending, Trigger: domainwf.TriggerApprove, To: domainwf.StateApproved},
		{From: domainwf.StatePending, Trigger: domainwf.TriggerReject, To: domainwf.StateRejected},
	}
	assert.Equal(t, want, edges)
}

func TestBuildPaymentRequestStateMachine(t *testing.T) {
	requester := &entity.Principal{UserID: 7}
	owned := withActing(context.Background(), requester, &entity.PaymentRequest{RequesterID: 7})
	foreign := withActing(context.Background(), &entity.Principal{UserID: 8}, &entity.PaymentRequest{RequesterID: 7})

	tests := []struct {
		name      string
		ctx       context.Context
		initial   domainwf.State
		trigger   domainwf.Trigger
		wantState domainwf.State
		wantErr   error
	}{
		{"draft submit", owned, domainwf.StateDraft, domainwf.TriggerSubmit, domainwf.StatePending, nil},
		{"draft submit by another user", foreign, domainwf.StateDraft, domainwf.TriggerSubmit, domainwf.StateDraft, domainwf.ErrGuardFailed},
		{"draft submit without actor", context.Background(), domainwf.StateDraft, domainwf.TriggerSubmit, domainwf.StateDraft, domainwf.ErrGuardFailed},
		{"draft approve skips pending", owned, domainwf.StateDraft, domainwf.TriggerApprove, domainwf.StateDraft, apperr.ErrInvalidTransition},
		{"pending approve", owned, domainwf.StatePending, domainwf.TriggerApprove, domainwf.StateApproved, nil},
		{"pending reject", owned, domainwf.StatePending, domainwf.TriggerReject, domainwf.StateRejected, nil},
		{"pending pay skips approval", owned, domainwf.StatePending, domainwf.TriggerMarkPaid, domainwf.StatePending, apperr.ErrInvalidTransition},
		{"approved pay", owned, domainwf.StateApproved, domainwf.TriggerMarkPaid, domainwf.StatePaid, nil},
		{"approved reject", owned, domainwf.StateApproved, domainwf.TriggerReject, domainwf.StateRejected, nil},
		{"approved submit reverses", owned, domainwf.StateApproved, domainwf.TriggerSubmit, domainwf.StateApproved, apperr.ErrInvalidTransition},
		{"paid is terminal", owned, domainwf.StatePaid, domainwf.TriggerReject, domainwf.StatePaid, apperr.ErrInvalidTransition},
		{"rejected is terminal", owned, domainwf.StateRejected, domainwf.TriggerApprove, domainwf.StateRejected, apperr.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := BuildPaymentRequestStateMachine(tt.initial)
			err := machine.Fire(tt.ctx, tt.trigger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, machine.State())
		})
	}
}

// Scenarios

func TestApprove_WithinBudget(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, techDept, "1000", "0")
	f.addRequest(1, f.techRequestor.UserID, techDept, "600", entity.StatusPending)

	req, err := f.engine.Approve(context.Background(), f.ceo, 1)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusApproved, req.Status)
	require.NotNil(t, req.ApproverID)
	assert.Equal(t, f.ceo.UserID, *req.ApproverID)
	assert.NotNil(t, req.ApprovedAt)
	assert.True(t, f.spent(10).IsZero(), "approval must not debit")
	assert.Equal(t, []string{entity.AuditActionApproved}, f.audit.actions(1))
	assert.Equal(t, 1, f.events.count(event.TypeRequestApproved))
}

func TestApprove_ExceedsBudget(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, techDept, "1000", "0")
	f.addRequest(1, f.techRequestor.UserID, techDept, "1200", entity.StatusPending)

	_, err := f.engine.Approve(context.Background(), f.ceo, 1)
	require.ErrorIs(t, err, apperr.ErrBudgetExceeded)

	var exceeded *apperr.BudgetExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.True(t, exceeded.Available.Equal(money("1000")))

	assert.Equal(t, entity.StatusPending, f.status(1))
	assert.Equal(t, []string{entity.AuditActionRejectedAutoBudget}, f.audit.actions(1))
	assert.Equal(t, 0, f.events.count(event.TypeRequestApproved))
}

func TestMarkPaid_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, techDept, "1000", "700")
	f.addRequest(1, f.techRequestor.UserID, techDept, "400", entity.StatusApproved)

	_, err := f.engine.MarkPaid(context.Background(), f.financeManager, 1)
	require.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	assert.Equal(t, entity.StatusApproved, f.status(1))
	assert.True(t, f.spent(10).Equal(money("700")))
	assert.Equal(t, []string{entity.AuditActionPaymentRejectedBudget}, f.audit.actions(1))
	assert.Equal(t, 0, f.events.count(event.TypeRequestPaid))
}

func TestMarkPaid_ConcurrentPaymentsAgainstOneBudget(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, techDept, "1000", "0")
	f.addRequest(1, f.techRequestor.UserID, techDept, "600", entity.StatusApproved)
	f.addRequest(2, f.techColleague.UserID, techDept, "600", entity.StatusApproved)

	results := make([]error, 2)
	var g errgroup.Group
	for i, id := range []int64{1, 2} {
		i, id := i, id
		g.Go(func() error {
			_, results[i] = f.engine.MarkPaid(context.Background(), f.financeManager, id)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, f.spent(10).Equal(money("600")))
	assert.Equal(t, 1, f.events.count(event.TypeRequestPaid))
}

func TestList_ScopedToDepartment(t *testing.T) {
	f := newFixture(t)
	f.addRequest(1, f.techRequestor.UserID, techDept, "100", entity.StatusPending)
	f.addRequest(2, f.mktRequestor.UserID, marketingDept, "9000", entity.StatusPending)

	page, err := f.engine.List(context.Background(), f.techRequestor, entity.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, techDept, page.Items[0].DepartmentID)
	assert.Equal(t, 20, page.PerPage)

	page, err = f.engine.List(context.Background(), f.financeManager, entity.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = f.engine.List(context.Background(), f.ceo, entity.RequestFilter{DepartmentID: &marketingDeptID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Items[0].ID)
}

var marketingDeptID = marketingDept

func TestList_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.List(context.Background(), f.ceo, entity.RequestFilter{Status: "archived"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

// Properties

func TestApprove_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, techDept, "1000", "0")
	f.addRequest(1, f.techRequestor.UserID, techDept, "600", entity.StatusPending)

	_, err := f.engine.Approve(context.Background(), f.ceo, 1)
	require.NoError(t, err)

	_, err = f.engine.Approve(context.Background(), f.ceo, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	assert.Equal(t, 1, f.events.count(event.TypeRequestApproved))
	assert.Equal(t, []string{entity.AuditActionApproved}, f.audit.actions(1))
	assert.True(t, f.spent(10).IsZero())
}

func TestMarkPaid_NeverOverspends(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, techDept, "1000", "0")
	for id := int64(1); id <= 5; id++ {
		f.addRequest(id, f.techRequestor.UserID, techDept, "300", entity.StatusApproved)
	}

	var mu sync.Mutex
	paid, refused := 0, 0
	var g errgroup.Group
	for id := int64(1); id <= 5; id++ {
		id := id
		g.Go(func() error {
			_, err := f.engine.MarkPaid(context.Background(), f.financeManager, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				paid++
			case errors.Is(err, apperr.ErrInsufficientFunds):
				refused++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 3, paid)
	assert.Equal(t, 2, refused)
	assert.True(t, f.spent(10).Equal(money("900")))
}

func TestApproveAndRejectRace(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, techDept, "1000", "0")
	f.addRequest(1, f.techRequestor.UserID, techDept, "100", entity.StatusPending)

	var approveErr, rejectErr error
	var g errgroup.Group
	g.Go(func() error {
		_, approveErr = f.engine.Approve(context.Background(), f.ceo, 1)
		return nil
	})
	g.Go(func() error {
		_, rejectErr = f.engine.Reject(context.Background(), f.ceo, 1, "duplicate")
		return nil
	})
	require.NoError(t, g.Wait())

	// Reject is legal from both pending and approved, so it always lands.
	// Approve either ran first or observed the rejection.
	assert.NoError(t, rejectErr)
	if approveErr != nil {
		assert.ErrorIs(t, approveErr, apperr.ErrInvalidTransition)
	}
	assert.Equal(t, entity.StatusRejected, f.status(1))
	assert.LessOrEqual(t, f.events.count(event.TypeRequestApproved), 1)
}

func TestReject(t *testing.T) {
	tests := []struct {
		name    string
		status  entity.RequestStatus
		reason  string
		wantErr error
		want    entity.RequestStatus
	}{
		{"pending with reason", entity.StatusPending, " Missing invoice ", nil, entity.StatusRejected},
		{"approved with reason", entity.StatusApproved, "Vendor blacklisted", nil, entity.StatusRejected},
		{"empty reason", entity.StatusPending, "   ", apperr.ErrValidation, entity.StatusPending},
		{"reason too long", entity.StatusPending, strings.Repeat("x", 501), apperr.ErrValidation, entity.StatusPending},
		{"draft cannot be rejected", entity.StatusDraft, "nope", apperr.ErrInvalidTransition, entity.StatusDraft},
		{"paid cannot be rejected", entity.StatusPaid, "nope", apperr.ErrInvalidTransition, entity.StatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addRequest(1, f.techRequestor.UserID, techDept, "100", tt.status)

			req, err := f.engine.Reject(context.Background(), f.ceo, 1, tt.reason)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.audit.actions(1))
			} else {
				require.NoError(t, err)
				assert.Equal(t, strings.TrimSpace(tt.reason), req.RejectionReason)
				require.NotNil(t, req.RejectorID)
				assert.Equal(t, f.ceo.UserID, *req.RejectorID)
				assert.Equal(t, []string{entity.AuditActionRejected}, f.audit.actions(1))
				assert.Equal(t, 1, f.events.count(event.TypeRequestRejected))
			}
			assert.Equal(t, tt.want, f.status(1))
		})
	}
}

func TestReject_AcceptsExactlyMaxLength(t *testing.T) {
	f := newFixture(t)
	f.addRequest(1, f.techRequestor.UserID, techDept, "100", entity.StatusPending)

	_, err := f.engine.Reject(context.Background(), f.ceo, 1, strings.Repeat("é", 500))
	assert.NoError(t, err)
}

func TestPermissionDenials_RecordNothing(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, techDept, "1000", "0")
	f.addRequest(1, f.techRequestor.UserID, techDept, "100", entity.StatusPending)
	f.addRequest(2, f.techRequestor.UserID, techDept, "100", entity.StatusApproved)

	_, err := f.engine.Approve(context.Background(), f.techRequestor, 1)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.Approve(context.Background(), f.financeManager, 1)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.MarkPaid(context.Background(), f.ceo, 2)
	assert.NoError(t, err, "CEO overrides the Finance Manager requirement")

	_, err = f.engine.MarkPaid(context.Background(), f.techRequestor, 2)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.Get(context.Background(), nil, 1)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	assert.Empty(t, f.audit.actions(1))
	assert.Equal(t, []string{entity.AuditActionMarkedAsPaid}, f.audit.actions(2))
}

func TestApprove_NoActiveBudget(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, marketingDept, "1000", "0")
	f.addRequest(1, f.techRequestor.UserID, techDept, "100", entity.StatusPending)

	_, err := f.engine.Approve(context.Background(), f.ceo, 1)
	assert.ErrorIs(t, err, apperr.ErrBudgetNotFound)
	assert.Equal(t, entity.StatusPending, f.status(1))
	assert.Equal(t, []string{entity.AuditActionRejectedNoBudget}, f.audit.actions(1))
}

func TestApprove_UsesProjectBudget(t *testing.T) {
	f := newFixture(t)
	f.addBudget(10, techDept, "5000", "0")
	f.addBudget(11, techDept, "100", "0")
	projectID := int64(7)
	f.store.mu.Lock()
	b := f.store.budgets[11]
	b.ProjectID = &projectID
	f.store.budgets[11] = b
	r := entity.PaymentRequest{
		ID: 1, RequesterID: f.techRequestor.UserID, DepartmentID: techDept, ProjectID: &projectID,
		Title: "Cloud credits", Amount: money("150"), VendorName: "Cloud", ExpenseCategory: "Services",
		Status: entity.StatusPending,
	}
	f.store.requests[1] = r
	f.store.mu.Unlock()

	_, err := f.engine.Approve(context.Background(), f.ceo, 1)
	assert.ErrorIs(t, err, apperr.ErrBudgetExceeded, "project budget of 100 applies, not the department-wide 5000")
}

func TestScopedOutLooksAbsent(t *testing.T) {
	f := newFixture(t)
	f.addRequest(1, f.mktRequestor.UserID, marketingDept, "100", entity.StatusDraft)

	_, err := f.engine.Get(context.Background(), f.techRequestor, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.engine.Get(context.Background(), f.techRequestor, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.engine.Get(context.Background(), f.mktRequestor, 1)
	assert.NoError(t, err)
}

func TestAuditFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t)
	f.audit.err = errors.New("audit store down")
	f.addBudget(10, techDept, "1000", "0")
	f.addRequest(1, f.techRequestor.UserID, techDept, "100", entity.StatusApproved)

	req, err := f.engine.MarkPaid(context.Background(), f.financeManager, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, req.Status)
	assert.True(t, f.spent(10).Equal(money("100")))
}

// Drafts

func TestCreateAndSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.engine.Create(ctx, f.techRequestor, validInput(techDept))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, draft.Status)
	assert.Equal(t, "Developer laptops", draft.Title)
	assert.Equal(t, f.techRequestor.UserID, draft.RequesterID)

	_, err = f.engine.Submit(ctx, f.techColleague, draft.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden, "same department, different requester")

	submitted, err := f.engine.Submit(ctx, f.techRequestor, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, submitted.Status)
	assert.NotNil(t, submitted.SubmittedAt)

	_, err = f.engine.Submit(ctx, f.techRequestor, draft.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	assert.Equal(t, []string{entity.AuditActionCreatedDraft, entity.AuditActionSubmitted}, f.audit.actions(draft.ID))
	assert.Equal(t, 1, f.events.count(event.TypeRequestSubmitted))

	f.events.mu.Lock()
	evt := f.events.events[0]
	f.events.mu.Unlock()
	assert.Equal(t, draft.ID, evt.SubjectID)
	assert.Equal(t, f.techRequestor.UserID, evt.GetPayloadInt(event.KeyRequesterID))
	assert.Equal(t, "1250.50", evt.GetPayloadString(event.KeyAmount))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(in *RequestInput)
		wantErr error
	}{
		{"missing title", func(in *RequestInput) { in.Title = " " }, apperr.ErrValidation},
		{"zero amount", func(in *RequestInput) { in.Amount = decimal.Zero }, apperr.ErrValidation},
		{"negative amount", func(in *RequestInput) { in.Amount = money("-1") }, apperr.ErrValidation},
		{"sub-cent amount", func(in *RequestInput) { in.Amount = money("1.001") }, apperr.ErrValidation},
		{"amount wrapping int64 cents", func(in *RequestInput) { in.Amount = money("184467440737095517.16") }, apperr.ErrValidation},
		{"amount over limit", func(in *RequestInput) { in.Amount = entity.MaxAmount.Add(money("0.01")) }, apperr.ErrValidation},
		{"title too long", func(in *RequestInput) { in.Title = strings.Repeat("t", 256) }, apperr.ErrValidation},
		{"phone too long", func(in *RequestInput) { in.VendorDetails.Phone = strings.Repeat("9", 21) }, apperr.ErrValidation},
		{"foreign department", func(in *RequestInput) { in.DepartmentID = marketingDept }, apperr.ErrForbidden},
		{"unknown project", func(in *RequestInput) { p := int64(99); in.ProjectID = &p }, apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(techDept)
			tt.mutate(&in)
			_, err := f.engine.Create(ctx, f.techRequestor, in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.engine.Create(ctx, f.techRequestor, validInput(techDept))
	require.NoError(t, err)

	in := validInput(techDept)
	in.Title = "Developer monitors"
	updated, err := f.engine.UpdateDraft(ctx, f.techRequestor, draft.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Developer monitors", updated.Title)

	_, err = f.engine.UpdateDraft(ctx, f.techColleague, draft.ID, in)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.Submit(ctx, f.techRequestor, draft.ID)
	require.NoError(t, err)

	_, err = f.engine.UpdateDraft(ctx, f.techRequestor, draft.ID, in)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addBudget(10, techDept, "5000", "0")

	draft, err := f.engine.Create(ctx, f.techRequestor, validInput(techDept))
	require.NoError(t, err)
	_, err = f.engine.Submit(ctx, f.techRequestor, draft.ID)
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, f.ceo, draft.ID)
	require.NoError(t, err)
	paid, err := f.engine.MarkPaid(ctx, f.financeManager, draft.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPaid, paid.Status)
	require.NotNil(t, paid.PayeeID)
	assert.Equal(t, f.financeManager.UserID, *paid.PayeeID)
	assert.True(t, f.spent(10).Equal(money("1250.50")))
	assert.Equal(t, []string{
		entity.AuditActionCreatedDraft,
		entity.AuditActionSubmitted,
		entity.AuditActionApproved,
		entity.AuditActionMarkedAsPaid,
	}, f.audit.actions(draft.ID))

	_, err = f.engine.Reject(ctx, f.ceo, draft.ID, "too late")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}
