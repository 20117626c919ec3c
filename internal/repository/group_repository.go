package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/markazapp/markaz-core/internal/models"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// GroupRepository manages persistence for student groups.
type GroupRepository struct {
	q Queryer
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{q: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *GroupRepository) WithTx(tx *sqlx.Tx) *GroupRepository {
	return &GroupRepository{q: tx}
}

// List returns every group with its member count.
func (r *GroupRepository) List(ctx context.Context) ([]models.GroupWithCount, error) {
	const query = `SELECT g.id, g.name, g.created_at, g.updated_at,
        COUNT(s.id) AS student_count
        FROM groups g LEFT JOIN students s ON s.group_id = g.id
        GROUP BY g.id ORDER BY g.name`
	var groups []models.GroupWithCount
	if err := r.q.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// FindByID fetches a group by ID.
func (r *GroupRepository) FindByID(ctx context.Context, id int64) (*models.Group, error) {
	var group models.Group
	err := r.q.GetContext(ctx, &group,
		"SELECT id, name, created_at, updated_at FROM groups WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("group %d not found", id))
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// ExistsByName checks name uniqueness, optionally excluding an ID.
func (r *GroupRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM groups WHERE name = ?"
	args := []interface{}{name}
	if excludeID > 0 {
		query += " AND id <> ?"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.q.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check group name: %w", err)
	}
	return true, nil
}

// Create inserts a new group and fills in its generated ID.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO groups (name, created_at, updated_at) VALUES (?, ?, ?)",
		group.Name, group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	group.ID = id
	return nil
}

// Update renames a group.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE groups SET name = ?, updated_at = ? WHERE id = ?",
		group.Name, group.UpdatedAt, group.ID)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("group %d not found", group.ID))
	}
	return nil
}

// Delete removes a group. Callers are responsible for member reassignment
// first; the foreign key from students otherwise rejects the delete.
func (r *GroupRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("group %d not found", id))
	}
	return nil
}
