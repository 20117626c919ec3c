package models

// AuditAction names the kind of change an audit entry records.
type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// AuditEntry is one append-only row in the audit log.
type AuditEntry struct {
	ID        int64       `db:"id" json:"id"`
	Action    AuditAction `db:"action_type" json:"action_type"`
	TableName string      `db:"table_name" json:"table_name"`
	RecordID  string      `db:"record_id" json:"record_id"`
	OldValues *string     `db:"old_values" json:"old_values,omitempty"`
	NewValues *string     `db:"new_values" json:"new_values,omitempty"`
	Timestamp Time        `db:"timestamp" json:"timestamp"`
}

// AuditFilter narrows audit-log queries.
type AuditFilter struct {
	TableName string
	RecordID  string
	Action    AuditAction
	Limit     int
}
