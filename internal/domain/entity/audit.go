package entity

import "time"

// AuditRecord is one entry of the audit trail handed to the audit recorder
type AuditRecord struct {
	ID          int64                  `json:"id"`
	ActorID     int64                  `json:"actor_id"`
	SubjectType string                 `json:"subject_type"`
	SubjectID   int64                  `json:"subject_id"`
	Action      string                 `json:"action"`
	OldValues   map[string]interface{} `json:"old_values,omitempty"`
	NewValues   map[string]interface{} `json:"new_values,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}
