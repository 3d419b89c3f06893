package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/infrastructure/persistence/sqlite"
)

// CommentRepository implements port.CommentRepository
type CommentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *sql.DB, logger *zap.Logger) port.CommentRepository {
	return &CommentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a comment
func (r *CommentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	query := `
		INSERT INTO comments (payment_request_id, user_id, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		comment.PaymentRequestID,
		nullInt64(comment.AuthorID),
		comment.Body,
		comment.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create comment",
			zap.Int64("request_id", comment.PaymentRequestID),
			zap.Error(err))
		return fmt.Errorf("failed to create comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	comment.ID = id
	return nil
}

// ListByRequest returns the thread of one request, oldest first
func (r *CommentRepository) ListByRequest(ctx context.Context, requestID int64) ([]*entity.Comment, error) {
	query := `
		SELECT c.id, c.payment_request_id, c.user_id, COALESCE(u.name, ''), c.body, c.created_at
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.payment_request_id = ?
		ORDER BY c.id
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list comments", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*entity.Comment
	for rows.Next() {
		var comment entity.Comment
		var authorID sql.NullInt64
		err := rows.Scan(
			&comment.ID,
			&comment.PaymentRequestID,
			&authorID,
			&comment.AuthorName,
			&comment.Body,
			&comment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comment.AuthorID = int64Ptr(authorID)
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

func (r *CommentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.CommentRepository = (*CommentRepository)(nil)
