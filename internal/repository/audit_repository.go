package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/markazapp/markaz-core/internal/models"
)

// AuditRepository manages the append-only audit log.
type AuditRepository struct {
	q Queryer
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{q: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *AuditRepository) WithTx(tx *sqlx.Tx) *AuditRepository {
	return &AuditRepository{q: tx}
}

// Insert appends one audit entry.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO audit_log (action_type, table_name, record_id, old_values, new_values, timestamp)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Action, entry.TableName, entry.RecordID, entry.OldValues, entry.NewValues, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	entry.ID = id
	return nil
}

// List returns audit entries matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.TableName != "" {
		conditions = append(conditions, "table_name = ?")
		args = append(args, filter.TableName)
	}
	if filter.RecordID != "" {
		conditions = append(conditions, "record_id = ?")
		args = append(args, filter.RecordID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action_type = ?")
		args = append(args, filter.Action)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT id, action_type, table_name, record_id, old_values, new_values, timestamp
        FROM audit_log WHERE %s ORDER BY id DESC LIMIT %d`,
		strings.Join(conditions, " AND "), limit)

	var entries []models.AuditEntry
	if err := r.q.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// PurgeOlderThan removes entries with a timestamp before the cutoff and
// returns how many were deleted.
func (r *AuditRepository) PurgeOlderThan(ctx context.Context, cutoff models.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM audit_log WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return n, nil
}
