package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/payment-requests/internal/application/dispatcher"
	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/domain/event"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func principal(t *testing.T, id int64, roleName string, dept int64, caps map[string]bool) *entity.Principal {
	t.Helper()
	role, err := entity.NewRole(roleName, caps)
	require.NoError(t, err)
	return &entity.Principal{UserID: id, Role: role, DepartmentID: dept}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(v int64) *int64 {
	return &v
}

type mockRoleRepo struct {
	roles map[int64]*entity.Role
}

func (m *mockRoleRepo) GetByID(ctx context.Context, id int64) (*entity.Role, error) {
	return m.roles[id], nil
}

func (m *mockRoleRepo) GetByName(ctx context.Context, name string) (*entity.Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockRoleRepo) List(ctx context.Context) ([]*entity.Role, error) {
	out := make([]*entity.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

type mockDeptRepo struct {
	depts map[int64]*entity.Department
}

func (m *mockDeptRepo) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	return m.depts[id], nil
}

func (m *mockDeptRepo) List(ctx context.Context) ([]*entity.Department, error) {
	out := make([]*entity.Department, 0, len(m.depts))
	for _, d := range m.depts {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDeptRepo) Count(ctx context.Context) (int, error) {
	return len(m.depts), nil
}

type mockUserRepo struct {
	createFunc          func(ctx context.Context, user *entity.User) error
	getByIDFunc         func(ctx context.Context, id int64) (*entity.User, error)
	updateFunc          func(ctx context.Context, user *entity.User) error
	deleteFunc          func(ctx context.Context, id int64) (bool, error)
	listFunc            func(ctx context.Context) ([]*entity.User, error)
	firstByRoleNameFunc func(ctx context.Context, roleName string) (*entity.User, error)
	count               int
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	user.ID = 100
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *entity.User) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return true, nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*entity.User, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	return m.count, nil
}

func (m *mockUserRepo) FirstByRoleName(ctx context.Context, roleName string) (*entity.User, error) {
	if m.firstByRoleNameFunc != nil {
		return m.firstByRoleNameFunc(ctx, roleName)
	}
	return nil, nil
}

// mockProjectRepo stores projects in memory and honours the scope
type mockProjectRepo struct {
	projects map[int64]*entity.Project
	nextID   int64
}

func newMockProjectRepo(projects ...*entity.Project) *mockProjectRepo {
	m := &mockProjectRepo{projects: map[int64]*entity.Project{}, nextID: 1}
	for _, p := range projects {
		m.projects[p.ID] = p
		if p.ID >= m.nextID {
			m.nextID = p.ID + 1
		}
	}
	return m
}

func (m *mockProjectRepo) Create(ctx context.Context, project *entity.Project) error {
	project.ID = m.nextID
	m.nextID++
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) Get(ctx context.Context, scope access.Scope, id int64) (*entity.Project, error) {
	p, ok := m.projects[id]
	if !ok || !scope.Admits(p.DepartmentID) {
		return nil, nil
	}
	return p, nil
}

func (m *mockProjectRepo) List(ctx context.Context, scope access.Scope) ([]*entity.Project, error) {
	var out []*entity.Project
	for _, p := range m.projects {
		if scope.Admits(p.DepartmentID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProjectRepo) Update(ctx context.Context, project *entity.Project) error {
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, id int64) error {
	delete(m.projects, id)
	return nil
}

func (m *mockProjectRepo) Count(ctx context.Context, scope access.Scope) (int, error) {
	list, _ := m.List(ctx, scope)
	return len(list), nil
}

// mockBudgetRepo stores budgets in memory and honours the scope
type mockBudgetRepo struct {
	budgets map[int64]*entity.Budget
	nextID  int64
	// beforeWrite runs ahead of Update and Delete, standing in for a concurrent debit
	beforeWrite func(stored *entity.Budget)
}

func newMockBudgetRepo(budgets ...*entity.Budget) *mockBudgetRepo {
	m := &mockBudgetRepo{budgets: map[int64]*entity.Budget{}, nextID: 1}
	for _, b := range budgets {
		m.budgets[b.ID] = b
		if b.ID >= m.nextID {
			m.nextID = b.ID + 1
		}
	}
	return m
}

func (m *mockBudgetRepo) Create(ctx context.Context, budget *entity.Budget) error {
	budget.ID = m.nextID
	m.nextID++
	copied := *budget
	m.budgets[budget.ID] = &copied
	return nil
}

func (m *mockBudgetRepo) Get(ctx context.Context, scope access.Scope, id int64) (*entity.Budget, error) {
	b, ok := m.budgets[id]
	if !ok || !scope.Admits(b.DepartmentID) {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (m *mockBudgetRepo) List(ctx context.Context, scope access.Scope) ([]*entity.Budget, error) {
	var out []*entity.Budget
	for _, b := range m.budgets {
		if scope.Admits(b.DepartmentID) {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockBudgetRepo) Update(ctx context.Context, budget *entity.Budget) (bool, error) {
	stored, ok := m.budgets[budget.ID]
	if !ok {
		return false, nil
	}
	if m.beforeWrite != nil {
		m.beforeWrite(stored)
	}
	if budget.AmountAllocated.LessThan(stored.AmountSpent) {
		return false, nil
	}
	copied := *budget
	copied.AmountSpent = stored.AmountSpent
	m.budgets[budget.ID] = &copied
	return true, nil
}

func (m *mockBudgetRepo) Delete(ctx context.Context, id int64) (bool, error) {
	stored, ok := m.budgets[id]
	if !ok {
		return false, nil
	}
	if m.beforeWrite != nil {
		m.beforeWrite(stored)
	}
	if !stored.AmountSpent.IsZero() {
		return false, nil
	}
	delete(m.budgets, id)
	return true, nil
}

func (m *mockBudgetRepo) FindActive(ctx context.Context, scope access.Scope, departmentID int64, projectID *int64) (*entity.Budget, error) {
	return nil, nil
}

func (m *mockBudgetRepo) Approve(ctx context.Context, id, approverID int64, at time.Time) (bool, error) {
	b, ok := m.budgets[id]
	if !ok || b.Status != entity.BudgetStatusPending {
		return false, nil
	}
	b.Status = entity.BudgetStatusActive
	b.ApprovedBy = &approverID
	b.ApprovedAt = &at
	return true, nil
}

func (m *mockBudgetRepo) Debit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error) {
	return false, nil
}

func (m *mockBudgetRepo) ArchiveExpired(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	for id, b := range m.budgets {
		if b.IsActive() && b.Expired(now) {
			b.Status = entity.BudgetStatusArchived
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockBudgetRepo) Totals(ctx context.Context, scope access.Scope) (*port.BudgetTotals, error) {
	totals := &port.BudgetTotals{Allocated: decimal.Zero, Spent: decimal.Zero}
	for _, b := range m.budgets {
		if scope.Admits(b.DepartmentID) {
			totals.Allocated = totals.Allocated.Add(b.AmountAllocated)
			totals.Spent = totals.Spent.Add(b.AmountSpent)
		}
	}
	return totals, nil
}

type mockRequestRepo struct {
	requests map[int64]*entity.PaymentRequest
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.PaymentRequest) error {
	m.requests[req.ID] = req
	return nil
}

func (m *mockRequestRepo) Get(ctx context.Context, scope access.Scope, id int64) (*entity.PaymentRequest, error) {
	r, ok := m.requests[id]
	if !ok || !scope.Admits(r.DepartmentID) {
		return nil, nil
	}
	return r, nil
}

func (m *mockRequestRepo) List(ctx context.Context, scope access.Scope, filter entity.RequestFilter) (*entity.RequestPage, error) {
	return &entity.RequestPage{Page: filter.Page, PerPage: filter.PerPage}, nil
}

func (m *mockRequestRepo) UpdateDraft(ctx context.Context, req *entity.PaymentRequest) (bool, error) {
	return true, nil
}

func (m *mockRequestRepo) Transition(ctx context.Context, req *entity.PaymentRequest, from entity.RequestStatus) (bool, error) {
	return true, nil
}

func (m *mockRequestRepo) CountByStatus(ctx context.Context, scope access.Scope) (map[entity.RequestStatus]int, error) {
	counts := map[entity.RequestStatus]int{}
	for _, r := range m.requests {
		if scope.Admits(r.DepartmentID) {
			counts[r.Status]++
		}
	}
	return counts, nil
}

type mockAuditRepo struct {
	createFunc        func(ctx context.Context, record *entity.AuditRecord) error
	listBySubjectFunc func(ctx context.Context, subjectType string, subjectID int64) ([]*entity.AuditRecord, error)
}

func (m *mockAuditRepo) Create(ctx context.Context, record *entity.AuditRecord) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, record)
	}
	return nil
}

func (m *mockAuditRepo) ListBySubject(ctx context.Context, subjectType string, subjectID int64) ([]*entity.AuditRecord, error) {
	if m.listBySubjectFunc != nil {
		return m.listBySubjectFunc(ctx, subjectType, subjectID)
	}
	return nil, nil
}

type mockCommentRepo struct {
	mu       sync.Mutex
	comments []*entity.Comment
}

func (m *mockCommentRepo) Create(ctx context.Context, comment *entity.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment.ID = int64(len(m.comments) + 1)
	m.comments = append(m.comments, comment)
	return nil
}

func (m *mockCommentRepo) ListByRequest(ctx context.Context, requestID int64) ([]*entity.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Comment
	for _, c := range m.comments {
		if c.PaymentRequestID == requestID {
			out = append(out, c)
		}
	}
	return out, nil
}

// mockInbox keeps notifications in insertion order
type mockInbox struct {
	mu            sync.Mutex
	notifications []*entity.Notification
	createErr     error
}

func (m *mockInbox) Create(ctx context.Context, n *entity.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = int64(len(m.notifications) + 1)
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *mockInbox) ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		n := m.notifications[i]
		if n.UserID == userID && (!unreadOnly || !n.IsRead()) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockInbox) CountUnread(ctx context.Context, userID int64) (int, error) {
	unread, _ := m.ListForUser(ctx, userID, true)
	return len(unread), nil
}

func (m *mockInbox) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead() {
			readAt := at
			n.ReadAt = &readAt
			changed++
		}
	}
	return changed, nil
}

func (m *mockInbox) Delete(ctx context.Context, userID, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInbox) recipients() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.notifications))
	for _, n := range m.notifications {
		out = append(out, n.UserID)
	}
	return out
}

type mockAuditRecorder struct {
	mu      sync.Mutex
	records []*entity.AuditRecord
}

func (m *mockAuditRecorder) Record(ctx context.Context, record *entity.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockAuditRecorder) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Action)
	}
	return out
}

// mockDispatcher records events instead of running handlers
type mockDispatcher struct {
	mu       sync.Mutex
	events   []*event.Event
	handlers map[event.Type][]string
}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = map[event.Type][]string{}
	}
	m.handlers[eventType] = append(m.handlers[eventType], name)
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) Handlers(eventType event.Type) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[eventType]
}

func (m *mockDispatcher) Close() error { return nil }

type sentMessage struct {
	recipientID int64
	content     string
}

type mockMessageSender struct {
	mu                  sync.Mutex
	sent                []sentMessage
	sendMessageFunc     func(ctx context.Context, recipient *entity.User, content string) error
	sendCardMessageFunc func(ctx context.Context, recipient *entity.User, cardContent interface{}) error
}

func (m *mockMessageSender) SendMessage(ctx context.Context, recipient *entity.User, content string) error {
	if m.sendMessageFunc != nil {
		if err := m.sendMessageFunc(ctx, recipient, content); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{recipientID: recipient.ID, content: content})
	return nil
}

func (m *mockMessageSender) SendCardMessage(ctx context.Context, recipient *entity.User, cardContent interface{}) error {
	if m.sendCardMessageFunc != nil {
		return m.sendCardMessageFunc(ctx, recipient, cardContent)
	}
	return nil
}
