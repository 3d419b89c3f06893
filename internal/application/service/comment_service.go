package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/pkg/utils"
)

// CommentInput is the body of a new comment
type CommentInput struct {
	Body string `json:"body" validate:"required,max=1000"`
}

// CommentService serves the discussion thread of a payment request.
// A request outside the caller's scope is reported as not found.
type CommentService interface {
	List(ctx context.Context, p *entity.Principal, requestID int64) ([]*entity.Comment, error)
	Add(ctx context.Context, p *entity.Principal, requestID int64, input CommentInput) (*entity.Comment, error)
}

type commentServiceImpl struct {
	commentRepo port.CommentRepository
	requestRepo port.PaymentRequestRepository
	inbox       port.NotificationRepository
	gate        *access.Gate
	validator   *utils.Validator
	logger      Logger
	now         func() time.Time
}

// NewCommentService creates a new CommentService
func NewCommentService(
	commentRepo port.CommentRepository,
	requestRepo port.PaymentRequestRepository,
	inbox port.NotificationRepository,
	gate *access.Gate,
	logger Logger,
) CommentService {
	return &commentServiceImpl{
		commentRepo: commentRepo,
		requestRepo: requestRepo,
		inbox:       inbox,
		gate:        gate,
		validator:   utils.NewValidator(),
		logger:      logger,
		now:         time.Now,
	}
}

func (s *commentServiceImpl) List(ctx context.Context, p *entity.Principal, requestID int64) ([]*entity.Comment, error) {
	if err := authorize(s.gate, p, access.ActionViewRequest); err != nil {
		return nil, err
	}
	if _, err := s.visibleRequest(ctx, p, requestID); err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []*entity.Comment{}
	}
	return comments, nil
}

func (s *commentServiceImpl) Add(ctx context.Context, p *entity.Principal, requestID int64, input CommentInput) (*entity.Comment, error) {
	if err := authorize(s.gate, p, access.ActionComment); err != nil {
		return nil, err
	}
	input.Body = strings.TrimSpace(input.Body)
	if err := s.validator.Struct(&input); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	req, err := s.visibleRequest(ctx, p, requestID)
	if err != nil {
		return nil, err
	}

	authorID := p.UserID
	comment := &entity.Comment{
		PaymentRequestID: requestID,
		AuthorID:         &authorID,
		Body:             input.Body,
		CreatedAt:        s.now(),
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		s.logger.Error("Failed to create comment", "error", err, "request_id", requestID)
		return nil, fmt.Errorf("create comment: %w", err)
	}
	s.logger.Info("Comment added", "request_id", requestID, "user_id", p.UserID)

	if !req.IsOwnedBy(p) {
		s.notifyRequester(ctx, req)
	}
	return comment, nil
}

// notifyRequester drops a notice in the requester's inbox. Failures are
// logged and the comment is kept.
func (s *commentServiceImpl) notifyRequester(ctx context.Context, req *entity.PaymentRequest) {
	requestID := req.ID
	notice := &entity.Notification{
		UserID:           req.RequesterID,
		Type:             entity.NotificationRequestComment,
		Message:          fmt.Sprintf("New comment on your payment request #%d \"%s\".", req.ID, req.Title),
		PaymentRequestID: &requestID,
		CreatedAt:        s.now(),
	}
	if err := s.inbox.Create(ctx, notice); err != nil {
		s.logger.Error("Failed to store comment notification", "error", err, "request_id", req.ID, "user_id", req.RequesterID)
	}
}

func (s *commentServiceImpl) visibleRequest(ctx context.Context, p *entity.Principal, requestID int64) (*entity.PaymentRequest, error) {
	req, err := s.requestRepo.Get(ctx, access.ScopeFor(p), requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, apperr.NotFound("payment request", requestID)
	}
	return req, nil
}
