package port

import (
	"context"

	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// AuditRecorder receives one record per attempted transition
type AuditRecorder interface {
	Record(ctx context.Context, record *entity.AuditRecord) error
}

// MessageSender delivers a notification to a user
type MessageSender interface {
	SendMessage(ctx context.Context, recipient *entity.User, content string) error
	SendCardMessage(ctx context.Context, recipient *entity.User, cardContent interface{}) error
}

// ApproverDirectory resolves who receives submission notices
type ApproverDirectory interface {
	FirstByRoleName(ctx context.Context, roleName string) (*entity.User, error)
}
