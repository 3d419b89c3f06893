package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/payment-requests/internal/application/dispatcher"
	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/domain/event"
)

// NotificationConfig selects who hears about request transitions
type NotificationConfig struct {
	ApproverRole   string
	NotifyOnReject bool
}

// NotificationService turns committed request events into messages. Each
// message is stored in the recipient's in-app inbox and sent on the
// configured channel.
type NotificationService interface {
	// Register subscribes the service's handlers on d
	Register(d dispatcher.Dispatcher)

	NotifySubmitted(ctx context.Context, evt *event.Event) error
	NotifyApproved(ctx context.Context, evt *event.Event) error
	NotifyRejected(ctx context.Context, evt *event.Event) error
	NotifyPaid(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	userRepo  port.UserRepository
	approvers port.ApproverDirectory
	sender    port.MessageSender
	inbox     port.NotificationRepository
	config    NotificationConfig
	logger    Logger
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	userRepo port.UserRepository,
	approvers port.ApproverDirectory,
	sender port.MessageSender,
	inbox port.NotificationRepository,
	config NotificationConfig,
	logger Logger,
) NotificationService {
	if config.ApproverRole == "" {
		config.ApproverRole = entity.RoleCEO
	}
	return &notificationServiceImpl{
		userRepo:  userRepo,
		approvers: approvers,
		sender:    sender,
		inbox:     inbox,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeRequestSubmitted, "notify-approver", s.NotifySubmitted)
	d.SubscribeNamed(event.TypeRequestApproved, "notify-requester-approved", s.NotifyApproved)
	d.SubscribeNamed(event.TypeRequestRejected, "notify-requester-rejected", s.NotifyRejected)
	d.SubscribeNamed(event.TypeRequestPaid, "notify-requester-paid", s.NotifyPaid)
}

// NotifySubmitted tells the first holder of the approver role that a request awaits review
func (s *notificationServiceImpl) NotifySubmitted(ctx context.Context, evt *event.Event) error {
	approver, err := s.approvers.FirstByRoleName(ctx, s.config.ApproverRole)
	if err != nil {
		return fmt.Errorf("find approver: %w", err)
	}
	if approver == nil {
		s.logger.Info("No approver to notify", "role", s.config.ApproverRole, "request_id", evt.SubjectID)
		return nil
	}

	message := fmt.Sprintf("Payment request #%d \"%s\" for %s is awaiting your approval.",
		evt.SubjectID, evt.GetPayloadString(event.KeyTitle), evt.GetPayloadString(event.KeyAmount))
	return s.send(ctx, approver, evt, entity.NotificationRequestSubmitted, message)
}

// NotifyApproved tells the requester their request was approved
func (s *notificationServiceImpl) NotifyApproved(ctx context.Context, evt *event.Event) error {
	message := fmt.Sprintf("Your payment request #%d \"%s\" has been approved.",
		evt.SubjectID, evt.GetPayloadString(event.KeyTitle))
	return s.notifyRequester(ctx, evt, entity.NotificationRequestApproved, message)
}

// NotifyRejected tells the requester about a rejection when enabled
func (s *notificationServiceImpl) NotifyRejected(ctx context.Context, evt *event.Event) error {
	if !s.config.NotifyOnReject {
		return nil
	}
	message := fmt.Sprintf("Your payment request #%d \"%s\" has been rejected.",
		evt.SubjectID, evt.GetPayloadString(event.KeyTitle))
	if reason := evt.GetPayloadString(event.KeyRejectionReason); reason != "" {
		message += "\nReason: " + reason
	}
	return s.notifyRequester(ctx, evt, entity.NotificationRequestRejected, message)
}

// NotifyPaid tells the requester the payment went out
func (s *notificationServiceImpl) NotifyPaid(ctx context.Context, evt *event.Event) error {
	message := fmt.Sprintf("Your payment request #%d \"%s\" for %s has been paid.",
		evt.SubjectID, evt.GetPayloadString(event.KeyTitle), evt.GetPayloadString(event.KeyAmount))
	return s.notifyRequester(ctx, evt, entity.NotificationRequestPaid, message)
}

func (s *notificationServiceImpl) notifyRequester(ctx context.Context, evt *event.Event, kind entity.NotificationType, message string) error {
	requesterID := evt.GetPayloadInt(event.KeyRequesterID)
	requester, err := s.userRepo.GetByID(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("get requester: %w", err)
	}
	if requester == nil {
		s.logger.Info("Requester no longer exists", "user_id", requesterID, "request_id", evt.SubjectID)
		return nil
	}
	return s.send(ctx, requester, evt, kind, message)
}

func (s *notificationServiceImpl) send(ctx context.Context, recipient *entity.User, evt *event.Event, kind entity.NotificationType, message string) error {
	// the inbox copy is kept even when the channel fails, and vice versa
	storeErr := s.store(ctx, recipient, evt, kind, message)

	if err := s.sender.SendMessage(ctx, recipient, message); err != nil {
		s.logger.Error("Failed to send notification",
			"error", err,
			"event_type", evt.Type.String(),
			"request_id", evt.SubjectID,
			"user_id", recipient.ID,
		)
		return errors.Join(storeErr, fmt.Errorf("send message: %w", err))
	}

	s.logger.Info("Notification sent",
		"event_type", evt.Type.String(),
		"request_id", evt.SubjectID,
		"user_id", recipient.ID,
	)
	return storeErr
}

func (s *notificationServiceImpl) store(ctx context.Context, recipient *entity.User, evt *event.Event, kind entity.NotificationType, message string) error {
	requestID := evt.SubjectID
	notice := &entity.Notification{
		UserID:           recipient.ID,
		Type:             kind,
		Message:          message,
		PaymentRequestID: &requestID,
		CreatedAt:        s.now(),
	}
	if err := s.inbox.Create(ctx, notice); err != nil {
		s.logger.Error("Failed to store notification",
			"error", err,
			"event_type", evt.Type.String(),
			"user_id", recipient.ID,
		)
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}
