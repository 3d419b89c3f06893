package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

const (
	receiveIDTypeOpenID = "open_id"
	receiveIDTypeEmail  = "email"
	msgTypeText         = "text"
	msgTypeInteractive  = "interactive"
)

// ErrNoAddress is returned when a user has neither an open_id nor an email
var ErrNoAddress = errors.New("recipient has no lark address")

// messageCreator is the slice of the IM API the messenger needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger implements port.MessageSender over Lark IM
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a new Lark message sender
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: client.GetClient().Im.Message,
		logger:   logger,
	}
}

// SendMessage sends a text message to a user
func (m *Messenger) SendMessage(ctx context.Context, recipient *entity.User, content string) error {
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	textContent, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to marshal text content: %w", err)
	}
	return m.send(ctx, recipient, msgTypeText, string(textContent))
}

// SendCardMessage sends an interactive card to a user
func (m *Messenger) SendCardMessage(ctx context.Context, recipient *entity.User, cardContent interface{}) error {
	if cardContent == nil {
		return fmt.Errorf("cardContent cannot be nil")
	}

	cardJSON, err := json.Marshal(cardContent)
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}
	return m.send(ctx, recipient, msgTypeInteractive, string(cardJSON))
}

func (m *Messenger) send(ctx context.Context, recipient *entity.User, msgType, content string) error {
	idType, receiveID, err := address(recipient)
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(idType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.Int64("user_id", recipient.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.Int64("user_id", recipient.ID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.Int64("user_id", recipient.ID),
		zap.String("receive_id_type", idType))
	return nil
}

// address prefers the open_id and falls back to the user's email
func address(recipient *entity.User) (string, string, error) {
	if recipient == nil {
		return "", "", ErrNoAddress
	}
	if recipient.LarkOpenID != "" {
		return receiveIDTypeOpenID, recipient.LarkOpenID, nil
	}
	if recipient.Email != "" {
		return receiveIDTypeEmail, recipient.Email, nil
	}
	return "", "", fmt.Errorf("%w: user %d", ErrNoAddress, recipient.ID)
}

// Verify interface compliance
var _ port.MessageSender = (*Messenger)(nil)
