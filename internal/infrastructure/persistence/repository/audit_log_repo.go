package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/payment-requests/internal/application/port"
	"github.com/garyjia/payment-requests/internal/domain/entity"
	"github.com/garyjia/payment-requests/internal/infrastructure/persistence/sqlite"
)

// AuditLogRepository implements port.AuditLogRepository
type AuditLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sql.DB, logger *zap.Logger) port.AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an audit record
func (r *AuditLogRepository) Create(ctx context.Context, record *entity.AuditRecord) error {
	oldValues, err := encodeValues(record.OldValues)
	if err != nil {
		return err
	}
	newValues, err := encodeValues(record.NewValues)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (actor_id, subject_type, subject_id, action, old_values, new_values, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.ActorID,
		record.SubjectType,
		record.SubjectID,
		record.Action,
		oldValues,
		newValues,
		record.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create audit record",
			zap.String("action", record.Action),
			zap.Int64("subject_id", record.SubjectID),
			zap.Error(err))
		return fmt.Errorf("failed to create audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// ListBySubject returns the audit trail of one subject in insertion order
func (r *AuditLogRepository) ListBySubject(ctx context.Context, subjectType string, subjectID int64) ([]*entity.AuditRecord, error) {
	query := `
		SELECT id, actor_id, subject_type, subject_id, action, old_values, new_values, created_at
		FROM audit_logs
		WHERE subject_type = ? AND subject_id = ?
		ORDER BY id
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, subjectType, subjectID)
	if err != nil {
		r.logger.Error("Failed to list audit records", zap.Int64("subject_id", subjectID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []*entity.AuditRecord
	for rows.Next() {
		var record entity.AuditRecord
		var oldValues, newValues sql.NullString
		err := rows.Scan(
			&record.ID,
			&record.ActorID,
			&record.SubjectType,
			&record.SubjectID,
			&record.Action,
			&oldValues,
			&newValues,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if record.OldValues, err = decodeValues(oldValues); err != nil {
			return nil, err
		}
		if record.NewValues, err = decodeValues(newValues); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

func encodeValues(values map[string]interface{}) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode audit values: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeValues(raw sql.NullString) (map[string]interface{}, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	values := map[string]interface{}{}
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, fmt.Errorf("failed to decode audit values: %w", err)
	}
	return values, nil
}

func (r *AuditLogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.AuditLogRepository = (*AuditLogRepository)(nil)
