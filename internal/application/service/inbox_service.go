package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// Inbox is the caller's notification list with its unread count
type Inbox struct {
	Notifications []*entity.Notification `json:"notifications"`
	Unread        int                    `json:"unread"`
}

// InboxService serves the caller's own in-app notifications
type InboxService interface {
	List(ctx context.Context, p *entity.Principal, unreadOnly bool) (*Inbox, error)
	// MarkAllRead returns the number of notifications that changed
	MarkAllRead(ctx context.Context, p *entity.Principal) (int64, error)
	Delete(ctx context.Context, p *entity.Principal, id int64) error
}

type inboxServiceImpl struct {
	inbox  port.NotificationRepository
	gate   *access.Gate
	logger Logger
	now    func() time.Time
}

// NewInboxService creates a new InboxService
func NewInboxService(inbox port.NotificationRepository, gate *access.Gate, logger Logger) InboxService {
	return &inboxServiceImpl{
		inbox:  inbox,
		gate:   gate,
		logger: logger,
		now:    time.Now,
	}
}

func (s *inboxServiceImpl) List(ctx context.Context, p *entity.Principal, unreadOnly bool) (*Inbox, error) {
	if err := authorize(s.gate, p, access.ActionViewInbox); err != nil {
		return nil, err
	}
	notifications, err := s.inbox.ListForUser(ctx, p.UserID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.inbox.CountUnread(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	if notifications == nil {
		notifications = []*entity.Notification{}
	}
	return &Inbox{Notifications: notifications, Unread: unread}, nil
}

func (s *inboxServiceImpl) MarkAllRead(ctx context.Context, p *entity.Principal) (int64, error) {
	if err := authorize(s.gate, p, access.ActionViewInbox); err != nil {
		return 0, err
	}
	changed, err := s.inbox.MarkAllRead(ctx, p.UserID, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return changed, nil
}

// Delete removes one of the caller's notifications. Another user's
// notification is reported as not found.
func (s *inboxServiceImpl) Delete(ctx context.Context, p *entity.Principal, id int64) error {
	if err := authorize(s.gate, p, access.ActionViewInbox); err != nil {
		return err
	}
	deleted, err := s.inbox.Delete(ctx, p.UserID, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if !deleted {
		return apperr.NotFound("notification", id)
	}
	return nil
}
