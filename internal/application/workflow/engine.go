package workflow

import (
	"context"

	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// WorkflowEngine drives payment requests through their lifecycle.
// Every method takes the acting principal explicitly.
type WorkflowEngine interface {
	// Create stores a new draft owned by the principal
	Create(ctx context.Context, p *entity.Principal, input RequestInput) (*entity.PaymentRequest, error)

	// UpdateDraft rewrites a draft. Only its requester may do so.
	UpdateDraft(ctx context.Context, p *entity.Principal, id int64, input RequestInput) (*entity.PaymentRequest, error)

	// Submit moves a draft to pending
	Submit(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error)

	// Approve moves a pending request to approved after checking its budget
	Approve(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error)

	// Reject moves a pending or approved request to rejected
	Reject(ctx context.Context, p *entity.Principal, id int64, reason string) (*entity.PaymentRequest, error)

	// MarkPaid debits the budget and moves an approved request to paid
	MarkPaid(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error)

	// Get returns a request visible to the principal
	Get(ctx context.Context, p *entity.Principal, id int64) (*entity.PaymentRequest, error)

	// List returns a page of requests visible to the principal
	List(ctx context.Context, p *entity.Principal, filter entity.RequestFilter) (*entity.RequestPage, error)
}
