package workflow

import (
	"context"

	"github.com/garyjia/payment-requests/internal/domain/entity"
	domainwf "github.com/garyjia/payment-requests/internal/domain/workflow"
)

type actingKey struct{}

// acting is the principal and request a trigger is fired for
type acting struct {
	principal *entity.Principal
	request   *entity.PaymentRequest
}

// withActing attaches the acting principal and request for transition guards
func withActing(ctx context.Context, p *entity.Principal, req *entity.PaymentRequest) context.Context {
	return context.WithValue(ctx, actingKey{}, acting{principal: p, request: req})
}

// requesterOwnsRequest lets only the request's creator submit it
func requesterOwnsRequest(ctx context.Context) bool {
	a, ok := ctx.Value(actingKey{}).(acting)
	return ok && a.request != nil && a.request.IsOwnedBy(a.principal)
}

// NewPaymentRequestBuilder configures the payment request lifecycle:
// draft -> pending -> approved -> paid, with rejected reachable from
// pending and approved. Paid and rejected are terminal. Submitting is
// guarded: only the requester may fire it.
func NewPaymentRequestBuilder() domainwf.StateMachineBuilder {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateDraft).
		PermitIf(domainwf.TriggerSubmit, domainwf.StatePending, requesterOwnsRequest)

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerMarkPaid, domainwf.StatePaid).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	return builder
}

// BuildPaymentRequestStateMachine creates a machine positioned at the given state
func BuildPaymentRequestStateMachine(initialState domainwf.State) domainwf.StateMachine {
	return NewPaymentRequestBuilder().Build(initialState)
}
