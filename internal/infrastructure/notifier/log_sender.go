package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// LogSender writes notifications to the log instead of delivering them.
// Used when no messaging channel is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a new LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendMessage logs a text notification
func (s *LogSender) SendMessage(ctx context.Context, recipient *entity.User, content string) error {
	if recipient == nil {
		return fmt.Errorf("recipient is required")
	}
	s.logger.Info("Notification",
		zap.Int64("recipient_id", recipient.ID),
		zap.String("recipient_email", recipient.Email),
		zap.String("content", content))
	return nil
}

// SendCardMessage logs a card notification as JSON
func (s *LogSender) SendCardMessage(ctx context.Context, recipient *entity.User, cardContent interface{}) error {
	if recipient == nil {
		return fmt.Errorf("recipient is required")
	}
	card, err := json.Marshal(cardContent)
	if err != nil {
		return fmt.Errorf("failed to marshal card: %w", err)
	}
	s.logger.Info("Card notification",
		zap.Int64("recipient_id", recipient.ID),
		zap.String("recipient_email", recipient.Email),
		zap.ByteString("card", card))
	return nil
}
