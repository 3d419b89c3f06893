package repository

import (
	"database/sql"
	"time"

	"github.com/garyjia/payment-requests/internal/domain/access"
)

// scopeClause renders an access scope as a WHERE fragment over column
func scopeClause(scope access.Scope, column string) (string, []interface{}) {
	switch scope.Kind {
	case access.ScopeAll:
		return "1=1", nil
	case access.ScopeDepartment:
		return column + " = ?", []interface{}{scope.DepartmentID}
	default:
		return "1=0", nil
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
