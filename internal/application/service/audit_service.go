package service

import (
	"context"
	"fmt"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/access"
	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// AuditService persists audit records and serves the audit trail
type AuditService interface {
	port.AuditRecorder

	// ListForRequest returns the trail of a request visible to the principal
	ListForRequest(ctx context.Context, p *entity.Principal, requestID int64) ([]*entity.AuditRecord, error)
}

type auditServiceImpl struct {
	auditRepo   port.AuditLogRepository
	requestRepo port.PaymentRequestRepository
	gate        *access.Gate
	logger      Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(
	auditRepo port.AuditLogRepository,
	requestRepo port.PaymentRequestRepository,
	gate *access.Gate,
	logger Logger,
) AuditService {
	return &auditServiceImpl{
		auditRepo:   auditRepo,
		requestRepo: requestRepo,
		gate:        gate,
		logger:      logger,
	}
}

// Record stores one audit record
func (s *auditServiceImpl) Record(ctx context.Context, record *entity.AuditRecord) error {
	if err := s.auditRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("record audit %s on %s %d: %w", record.Action, record.SubjectType, record.SubjectID, err)
	}
	return nil
}

func (s *auditServiceImpl) ListForRequest(ctx context.Context, p *entity.Principal, requestID int64) ([]*entity.AuditRecord, error) {
	if err := authorize(s.gate, p, access.ActionViewAuditLog); err != nil {
		return nil, err
	}

	req, err := s.requestRepo.Get(ctx, access.ScopeFor(p), requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, apperr.NotFound("payment request", requestID)
	}

	records, err := s.auditRepo.ListBySubject(ctx, entity.SubjectPaymentRequest, requestID)
	if err != nil {
		s.logger.Error("Failed to list audit records", "error", err, "request_id", requestID)
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}
