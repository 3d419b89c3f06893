package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/payment-requests/internal/application/dispatcher"
	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/domain/event"
	domainwf "github.com/garyjia/payment-requests/internal/domain/workflow"
	"github.com/garyjia/payment-requests/pkg/keylock"
	"github.com/garyjia/payment-requests/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// BudgetLedger consumes and checks budget money
type BudgetLedger interface {
	Debit(ctx context.Context, budgetID int64, amount decimal.Decimal) error
	Check(budget *entity.Budget, amount decimal.Decimal) error
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	requests  port.PaymentRequestRepository
	budgets   port.BudgetRepository
	projects  port.ProjectRepository
	ledger    BudgetLedger
	audit     port.AuditRecorder
	txManager port.TransactionManager
	gate      *access.Gate

	dispatcher dispatcher.Dispatcher
	logger     Logger
	validator  *utils.Validator
	now        func() time.Time

	// Serializes transitions per request id
	locks *keylock.Locker
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for stamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requests port.PaymentRequestRepository,
	budgets port.BudgetRepository,
	projects port.ProjectRepository,
	ledger BudgetLedger,
	audit port.AuditRecorder,
	txManager port.TransactionManager,
	gate *access.Gate,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		requests:  requests,
		budgets:   budgets,
		projects:  projects,
		ledger:    ledger,
		audit:     audit,
		txManager: txManager,
		gate:      gate,
		logger:    noopLogger{},
		validator: utils.NewValidator(),
		now:       time.Now,
		locks:     keylock.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Create(ctx context.Context, p *entity.Principal, input RequestInput) (*entity.PaymentRequest, error) {
	if err := e.authorize(p, access.ActionCreateRequest); err != nil {
		return nil, err
	}

	input.normalize()
	if err := input.validate(e.validator); err != nil {
		return nil, err
	}
	if err := e.checkPlacement(ctx, p, input); err != nil {
		return nil, err
	}

	now := e.now()
	req := &entity.PaymentRequest{
		RequesterID: p.UserID,
		Status:      entity.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	input.applyTo(req)

	if err := e.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create payment request: %w", err)
	}

	e.record(ctx, p, req.ID, entity.AuditActionCreatedDraft, nil, map[string]interface{}{"status": string(entity.StatusDraft)})
	e.logger.Info("Payment request drafted", "request_id", req.ID, "requester_id", p.UserID)

	return req, nil
}

func (e *engineImpl) UpdateDraft(ctx context.Context, p *entity.Principal, id int64, input RequestInput) (*entity.PaymentRequest, error) {
	if err := e.authorize(p, access.ActionUpdateDraft); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	req, err := e.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !req.IsOwnedBy(p) {
		return nil, fmt.Errorf("%w: only the requester may edit request %d", apperr.ErrForbidden, id)
	}
	if req.Status != entity.StatusDraft {
		return nil, fmt.Errorf("%w: request %d is %s, not draft", apperr.ErrInvalidTransition, id, req.Status)
	}

	input.normalize()
	if err := input.validate(e.validator); err != nil {
		return nil, err
	}
	if err := e.checkPlacement(ctx, p, input); err != nil {
		return nil, err
	}

	before := map[string]interface{}{"title": req.Title, "amount": req.Amount.String()}
	input.applyTo(req)
	req.UpdatedAt = e.now()

	ok, err := e.requests.UpdateDraft(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment request: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: request %d left draft", apperr.ErrInvalidTransition, id)
	}

	e.record(ctx, p, id, entity.AuditActionUpdatedDraft, before, map[string]interface{}{"title": req.Title, "amount": req.Amount.String()})
	return req, nil
}

func (e *engineImpl) Submit(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error) {
	if err := e.authorize(p, access.ActionSubmitRequest); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	req, err := e.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, p, req, domainwf.TriggerSubmit, func(ctx context.Context, req *entity.PaymentRequest, now time.Time) error {
		req.SubmittedAt = &now
		return nil
	})
}

func (e *engineImpl) Approve(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error) {
	if err := e.authorize(p, access.ActionApproveRequest); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	req, err := e.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := e.guard(req, domainwf.TriggerApprove); err != nil {
		return nil, err
	}

	budget, err := e.resolveBudget(ctx, p, req)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Check(budget, req.Amount); err != nil {
		var exceeded *apperr.BudgetExceededError
		if errors.As(err, &exceeded) {
			e.record(ctx, p, req.ID, entity.AuditActionRejectedAutoBudget,
				map[string]interface{}{"status": string(req.Status)},
				map[string]interface{}{
					"reason":           "Exceeds Budget Limit",
					"budget_id":        budget.ID,
					"amount":           req.Amount.String(),
					"available_budget": exceeded.Available.String(),
				})
		}
		return nil, err
	}

	return e.transition(ctx, p, req, domainwf.TriggerApprove, func(ctx context.Context, req *entity.PaymentRequest, now time.Time) error {
		req.ApprovedAt = &now
		req.ApproverID = actorRef(p)
		return nil
	})
}

func (e *engineImpl) Reject(ctx context.Context, p *entity.Principal, id int64, reason string) (*entity.PaymentRequest, error) {
	if err := e.authorize(p, access.ActionRejectRequest); err != nil {
		return nil, err
	}

	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	req, err := e.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	return e.transition(ctx, p, req, domainwf.TriggerReject, func(ctx context.Context, req *entity.PaymentRequest, now time.Time) error {
		req.RejectedAt = &now
		req.RejectorID = actorRef(p)
		req.RejectionReason = reason
		return nil
	})
}

func (e *engineImpl) MarkPaid(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error) {
	if err := e.authorize(p, access.ActionMarkPaid); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	req, err := e.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := e.guard(req, domainwf.TriggerMarkPaid); err != nil {
		return nil, err
	}

	budget, err := e.resolveBudget(ctx, p, req)
	if err != nil {
		return nil, err
	}

	paid, err := e.transition(ctx, p, req, domainwf.TriggerMarkPaid, func(ctx context.Context, req *entity.PaymentRequest, now time.Time) error {
		if err := e.ledger.Debit(ctx, budget.ID, req.Amount); err != nil {
			return err
		}
		req.PaidAt = &now
		req.PayeeID = actorRef(p)
		return nil
	})
	if errors.Is(err, apperr.ErrInsufficientFunds) {
		e.record(ctx, p, req.ID, entity.AuditActionPaymentRejectedBudget,
			map[string]interface{}{"status": string(req.Status)},
			map[string]interface{}{
				"reason":    "Insufficient funds at payment time",
				"budget_id": budget.ID,
				"amount":    req.Amount.String(),
			})
	}
	return paid, err
}

func (e *engineImpl) Get(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error) {
	if err := e.authorize(p, access.ActionViewRequest); err != nil {
		return nil, err
	}
	return e.load(ctx, p, id)
}

func (e *engineImpl) List(ctx context.Context, p *entity.Principal, filter entity.RequestFilter) (*entity.RequestPage, error) {
	if err := e.authorize(p, access.ActionListRequests); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperr.Validation("status: unknown value %q", filter.Status)
	}
	filter.Normalize()

	page, err := e.requests.List(ctx, access.ScopeFor(p), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	return page, nil
}

// mutateFunc applies transition side effects to the request inside the transaction
type mutateFunc func(ctx context.Context, req *entity.PaymentRequest, now time.Time) error

// transition fires trigger on a copy of req, persists it conditionally on the
// previous status, then records the audit entry and emits the event.
// Callers must hold the request lock.
func (e *engineImpl) transition(ctx context.Context, p *entity.Principal, req *entity.PaymentRequest, trigger domainwf.Trigger, mutate mutateFunc) (*entity.PaymentRequest, error) {
	from := req.Status
	machine := BuildPaymentRequestStateMachine(domainwf.FromStatus(from))
	if err := machine.Fire(withActing(ctx, p, req), trigger); err != nil {
		if errors.Is(err, domainwf.ErrGuardFailed) {
			return nil, fmt.Errorf("%w: only the requester may %s request %d", apperr.ErrForbidden, trigger, req.ID)
		}
		return nil, fmt.Errorf("request %d: %w", req.ID, err)
	}
	to := machine.State().Status()

	next := *req
	now := e.now()
	next.Status = to
	next.UpdatedAt = now

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := mutate(txCtx, &next, now); err != nil {
			return err
		}
		ok, err := e.requests.Transition(txCtx, &next, from)
		if err != nil {
			return fmt.Errorf("failed to persist transition: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: request %d is no longer %s", apperr.ErrInvalidTransition, req.ID, from)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	newValues := map[string]interface{}{"status": string(to)}
	if to == entity.StatusRejected {
		newValues["reason"] = next.RejectionReason
	}
	e.record(ctx, p, next.ID, auditActionFor(trigger), map[string]interface{}{"status": string(from)}, newValues)
	e.emit(ctx, p, &next, trigger, from)

	e.logger.Info("Payment request transitioned",
		"request_id", next.ID,
		"trigger", trigger.String(),
		"from", string(from),
		"to", string(to),
		"actor_id", p.UserID,
	)

	return &next, nil
}

func (e *engineImpl) authorize(p *entity.Principal, action access.Action) error {
	if p == nil {
		return apperr.ErrUnauthenticated
	}
	if !e.gate.Authorize(p, action) {
		return fmt.Errorf("%w: %s", apperr.ErrForbidden, action)
	}
	return nil
}

// load reads the request through the principal's scope
func (e *engineImpl) load(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error) {
	req, err := e.requests.Get(ctx, access.ScopeFor(p), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment request %d: %w", id, err)
	}
	if req == nil {
		return nil, apperr.NotFound("payment request", id)
	}
	return req, nil
}

// guard checks the lifecycle before any budget work is done
func (e *engineImpl) guard(req *entity.PaymentRequest, trigger domainwf.Trigger) error {
	machine := BuildPaymentRequestStateMachine(domainwf.FromStatus(req.Status))
	if !machine.CanFire(trigger) {
		return fmt.Errorf("%w: cannot %s request %d in status %s", apperr.ErrInvalidTransition, trigger, req.ID, req.Status)
	}
	return nil
}

// resolveBudget finds the Active budget backing the request, recording the miss
func (e *engineImpl) resolveBudget(ctx context.Context, p *entity.Principal, req *entity.PaymentRequest) (*entity.Budget, error) {
	budget, err := e.budgets.FindActive(ctx, access.ScopeFor(p), req.DepartmentID, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve budget: %w", err)
	}
	if budget == nil {
		e.record(ctx, p, req.ID, entity.AuditActionRejectedNoBudget,
			map[string]interface{}{"status": string(req.Status)},
			map[string]interface{}{"reason": "No active budget found for this expenditure"})
		return nil, fmt.Errorf("%w: department %d", apperr.ErrBudgetNotFound, req.DepartmentID)
	}
	return budget, nil
}

// checkPlacement verifies the department and project of a draft
func (e *engineImpl) checkPlacement(ctx context.Context, p *entity.Principal, input RequestInput) error {
	scope := access.ScopeFor(p)
	if !scope.Admits(input.DepartmentID) {
		return fmt.Errorf("%w: department %d is outside your scope", apperr.ErrForbidden, input.DepartmentID)
	}
	if input.ProjectID == nil {
		return nil
	}

	project, err := e.projects.Get(ctx, scope, *input.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if project == nil || project.DepartmentID != input.DepartmentID {
		return apperr.Validation("project_id: project %d does not belong to department %d", *input.ProjectID, input.DepartmentID)
	}
	return nil
}

// record hands an audit entry to the recorder. Failures never alter the outcome.
func (e *engineImpl) record(ctx context.Context, p *entity.Principal, requestID int64, action string, oldValues, newValues map[string]interface{}) {
	if e.audit == nil {
		return
	}
	rec := &entity.AuditRecord{
		ActorID:     p.UserID,
		SubjectType: entity.SubjectPaymentRequest,
		SubjectID:   requestID,
		Action:      action,
		OldValues:   oldValues,
		NewValues:   newValues,
		Timestamp:   e.now(),
	}
	if err := e.audit.Record(ctx, rec); err != nil {
		e.logger.Error("Failed to record audit entry",
			"request_id", requestID,
			"action", action,
			"error", err,
		)
	}
}

func (e *engineImpl) emit(ctx context.Context, p *entity.Principal, req *entity.PaymentRequest, trigger domainwf.Trigger, from entity.RequestStatus) {
	if e.dispatcher == nil {
		return
	}
	payload := map[string]interface{}{
		event.KeyActorID:      p.UserID,
		event.KeyRequesterID:  req.RequesterID,
		event.KeyDepartmentID: req.DepartmentID,
		event.KeyTitle:        req.Title,
		event.KeyAmount:       req.Amount.StringFixed(2),
		event.KeyFromStatus:   string(from),
		event.KeyToStatus:     string(req.Status),
	}
	if req.RejectionReason != "" {
		payload[event.KeyRejectionReason] = req.RejectionReason
	}
	e.dispatcher.DispatchAsync(ctx, event.NewEvent(eventTypeFor(trigger), req.ID, payload))
}

func auditActionFor(trigger domainwf.Trigger) string {
	switch trigger {
	case domainwf.TriggerSubmit:
		return entity.AuditActionSubmitted
	case domainwf.TriggerApprove:
		return entity.AuditActionApproved
	case domainwf.TriggerReject:
		return entity.AuditActionRejected
	case domainwf.TriggerMarkPaid:
		return entity.AuditActionMarkedAsPaid
	default:
		return trigger.String()
	}
}

func eventTypeFor(trigger domainwf.Trigger) event.Type {
	switch trigger {
	case domainwf.TriggerSubmit:
		return event.TypeRequestSubmitted
	case domainwf.TriggerApprove:
		return event.TypeRequestApproved
	case domainwf.TriggerReject:
		return event.TypeRequestRejected
	default:
		return event.TypeRequestPaid
	}
}

func actorRef(p *entity.Principal) *int64 {
	id := p.UserID
	return &id
}
