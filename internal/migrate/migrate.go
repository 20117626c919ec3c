package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/internal/models"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// Migration is an immutable, versioned schema change. Versions are strictly
// sequential starting at 1 and a released migration is never edited.
type Migration struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
	Script      string `json:"-"`
}

// Applied records a migration that has run against this database file.
type Applied struct {
	Version     int         `db:"version" json:"version"`
	Description string      `db:"description" json:"description"`
	AppliedAt   models.Time `db:"applied_at" json:"applied_at"`
}

// SchemaInfo reports where the database file stands relative to the code.
type SchemaInfo struct {
	CurrentVersion int  `json:"current_version"`
	LatestVersion  int  `json:"latest_version"`
	UpToDate       bool `json:"is_up_to_date"`
	AppliedCount   int  `json:"applied_count"`
	PendingCount   int  `json:"pending_count"`
}

// Validation enumerates consistency issues between code-defined migrations
// and the applied history without mutating anything.
type Validation struct {
	IsValid      bool     `json:"is_valid"`
	Issues       []string `json:"issues"`
	AppliedCount int      `json:"applied_count"`
	TotalCount   int      `json:"total_count"`
}

// RollbackInfo is an advisory report only: down-migrations are not modeled,
// so reverting below the current version means manual reversal.
type RollbackInfo struct {
	TargetVersion  int       `json:"target_version"`
	CurrentVersion int       `json:"current_version"`
	ToReverse      []Applied `json:"to_reverse"`
	Warnings       []string  `json:"warnings"`
}

// Runner applies pending migrations in ascending version order, each inside
// its own transaction: the script and the bookkeeping insert both commit, or
// neither does.
type Runner struct {
	db         *sqlx.DB
	logger     *zap.Logger
	migrations []Migration

	// TolerateUnknown suppresses the gap check for applied versions that
	// have no matching code definition. Recovery use only.
	TolerateUnknown bool
}

// NewRunner builds a Runner over the given migration list. The list must be
// strictly sequential starting at version 1.
func NewRunner(db *sqlx.DB, logger *zap.Logger, migrations []Migration) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	for i, m := range sorted {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration list not sequential: expected version %d, found %d", i+1, m.Version)
		}
	}
	return &Runner{db: db, logger: logger, migrations: sorted}, nil
}

const bookkeepingTable = `CREATE TABLE IF NOT EXISTS migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`

func (r *Runner) ensureTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, bookkeepingTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

// History returns the applied migrations in ascending version order.
func (r *Runner) History(ctx context.Context) ([]Applied, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	var applied []Applied
	err := r.db.SelectContext(ctx, &applied,
		"SELECT version, description, applied_at FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("read migration history: %w", err)
	}
	return applied, nil
}

// Pending returns code-defined migrations not yet applied, ascending.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := r.History(ctx)
	if err != nil {
		return nil, err
	}
	appliedSet := make(map[int]struct{}, len(applied))
	for _, a := range applied {
		appliedSet[a.Version] = struct{}{}
	}
	var pending []Migration
	for _, m := range r.migrations {
		if _, ok := appliedSet[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// SchemaInfo reports current vs. latest version and the up-to-date flag.
func (r *Runner) SchemaInfo(ctx context.Context) (*SchemaInfo, error) {
	applied, err := r.History(ctx)
	if err != nil {
		return nil, err
	}
	current := 0
	for _, a := range applied {
		if a.Version > current {
			current = a.Version
		}
	}
	latest := 0
	if n := len(r.migrations); n > 0 {
		latest = r.migrations[n-1].Version
	}
	return &SchemaInfo{
		CurrentVersion: current,
		LatestVersion:  latest,
		UpToDate:       current >= latest,
		AppliedCount:   len(applied),
		PendingCount:   latest - len(applied),
	}, nil
}

// Validate enumerates gaps, description mismatches and orphans. It never
// mutates the database.
func (r *Runner) Validate(ctx context.Context) (*Validation, error) {
	applied, err := r.History(ctx)
	if err != nil {
		return nil, err
	}

	v := &Validation{
		IsValid:      true,
		Issues:       []string{},
		AppliedCount: len(applied),
		TotalCount:   len(r.migrations),
	}

	defined := make(map[int]Migration, len(r.migrations))
	for _, m := range r.migrations {
		defined[m.Version] = m
	}

	for i, a := range applied {
		if expected := i + 1; a.Version != expected {
			v.IsValid = false
			v.Issues = append(v.Issues,
				fmt.Sprintf("version gap: expected %d, found %d", expected, a.Version))
		}

		m, ok := defined[a.Version]
		if !ok {
			v.IsValid = false
			v.Issues = append(v.Issues,
				fmt.Sprintf("applied migration %d has no code definition", a.Version))
			continue
		}
		if m.Description != a.Description {
			v.IsValid = false
			v.Issues = append(v.Issues,
				fmt.Sprintf("migration %d description mismatch: applied=%q, defined=%q",
					a.Version, a.Description, m.Description))
		}
	}

	return v, nil
}

// ApplyPending applies every pending migration in ascending order and
// returns how many were applied. It fails fast on code/database drift
// before touching the schema.
func (r *Runner) ApplyPending(ctx context.Context) (int, error) {
	applied, err := r.History(ctx)
	if err != nil {
		return 0, err
	}

	defined := make(map[int]Migration, len(r.migrations))
	for _, m := range r.migrations {
		defined[m.Version] = m
	}
	appliedSet := make(map[int]struct{}, len(applied))
	for _, a := range applied {
		appliedSet[a.Version] = struct{}{}

		m, ok := defined[a.Version]
		if !ok {
			if r.TolerateUnknown {
				r.logger.Warn("tolerating applied migration with no code definition",
					zap.Int("version", a.Version))
				continue
			}
			return 0, appErrors.Wrap(
				fmt.Errorf("applied version %d not in code", a.Version),
				appErrors.ErrMigrationGap.Code, appErrors.ErrMigrationGap.Status,
				fmt.Sprintf("migration %d is applied but missing from code", a.Version))
		}
		if m.Description != a.Description {
			return 0, appErrors.Wrap(
				fmt.Errorf("applied=%q defined=%q", a.Description, m.Description),
				appErrors.ErrMigrationMismatch.Code, appErrors.ErrMigrationMismatch.Status,
				fmt.Sprintf("migration %d description differs from code", a.Version))
		}
	}

	count := 0
	for _, m := range r.migrations {
		if _, ok := appliedSet[m.Version]; ok {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return count, err
		}
		count++
	}

	if count > 0 {
		r.logger.Info("migrations applied", zap.Int("count", count))
	}
	return count, nil
}

// apply runs one migration script plus its bookkeeping insert in a single
// transaction.
func (r *Runner) apply(ctx context.Context, m Migration) error {
	r.logger.Info("applying migration",
		zap.Int("version", m.Version), zap.String("description", m.Description))

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}

	for _, stmt := range statements(m.Script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return appErrors.Wrap(err,
				appErrors.ErrMigrationScript.Code, appErrors.ErrMigrationScript.Status,
				fmt.Sprintf("migration %d script failed", m.Version))
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, models.Now()); err != nil {
		_ = tx.Rollback()
		return appErrors.Wrap(err,
			appErrors.ErrMigrationScript.Code, appErrors.ErrMigrationScript.Status,
			fmt.Sprintf("migration %d bookkeeping failed", m.Version))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// ForceApply applies a single migration out of order. It bypasses the drift
// checks and is documented as unsafe; use only for recovery.
func (r *Runner) ForceApply(ctx context.Context, version int) error {
	if err := r.ensureTable(ctx); err != nil {
		return err
	}
	already, err := r.isApplied(ctx, version)
	if err != nil {
		return err
	}
	if already {
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("migration %d is already applied", version))
	}

	for _, m := range r.migrations {
		if m.Version == version {
			if err := r.apply(ctx, m); err != nil {
				return err
			}
			r.logger.Warn("force applied migration",
				zap.Int("version", version), zap.String("description", m.Description))
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound,
		fmt.Sprintf("migration %d not found", version))
}

// MarkApplied records a migration as applied without running its script.
// It bypasses the single-transaction-per-migration guarantee; use only when
// the schema change is known to exist already.
func (r *Runner) MarkApplied(ctx context.Context, version int, description string) error {
	if err := r.ensureTable(ctx); err != nil {
		return err
	}
	already, err := r.isApplied(ctx, version)
	if err != nil {
		return err
	}
	if already {
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("migration %d is already marked as applied", version))
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO migrations (version, description, applied_at) VALUES (?, ?, ?)",
		version, description, models.Now()); err != nil {
		return fmt.Errorf("mark migration %d applied: %w", version, err)
	}

	r.logger.Warn("marked migration applied without execution",
		zap.Int("version", version), zap.String("description", description))
	return nil
}

// Rollback advises which applied migrations stand between the current state
// and target. Reversal itself is manual by design.
func (r *Runner) Rollback(ctx context.Context, target int) (*RollbackInfo, error) {
	applied, err := r.History(ctx)
	if err != nil {
		return nil, err
	}

	current := 0
	for _, a := range applied {
		if a.Version > current {
			current = a.Version
		}
	}

	info := &RollbackInfo{
		TargetVersion:  target,
		CurrentVersion: current,
		ToReverse:      []Applied{},
		Warnings:       []string{},
	}
	if target >= current {
		return info, nil
	}

	defined := make(map[int]Migration, len(r.migrations))
	for _, m := range r.migrations {
		defined[m.Version] = m
	}

	// Descending order: the reverse of how they were applied.
	for i := len(applied) - 1; i >= 0; i-- {
		a := applied[i]
		if a.Version <= target {
			continue
		}
		info.ToReverse = append(info.ToReverse, a)
		if m, ok := defined[a.Version]; ok && destructive(m.Script) {
			info.Warnings = append(info.Warnings,
				fmt.Sprintf("migration %d contains destructive statements; reversing loses data", a.Version))
		}
	}
	info.Warnings = append(info.Warnings,
		"down-migrations are not modeled; listed migrations require manual reversal")
	return info, nil
}

func (r *Runner) isApplied(ctx context.Context, version int) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one,
		"SELECT 1 FROM migrations WHERE version = ? LIMIT 1", version)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %d: %w", version, err)
	}
	return true, nil
}

func statements(script string) []string {
	parts := strings.Split(script, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func destructive(script string) bool {
	upper := strings.ToUpper(script)
	return strings.Contains(upper, "DROP ") || strings.Contains(upper, "DELETE FROM")
}
