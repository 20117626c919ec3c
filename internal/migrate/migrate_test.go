package migrate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/pkg/config"
	"github.com/markazapp/markaz-core/pkg/database"
	pkgErrors "github.com/markazapp/markaz-core/pkg/errors"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestRunner(t *testing.T, db *sqlx.DB, migrations []Migration) *Runner {
	t.Helper()
	r, err := NewRunner(db, zap.NewNop(), migrations)
	require.NoError(t, err)
	return r
}

func TestNewRunner_RejectsNonSequentialList(t *testing.T) {
	db := openTestDB(t)
	_, err := NewRunner(db, zap.NewNop(), []Migration{
		{Version: 1, Description: "first", Script: "SELECT 1"},
		{Version: 3, Description: "third", Script: "SELECT 1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not sequential")
}

func TestApplyPending_FullCatalog(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Catalog())
	ctx := context.Background()

	count, err := r.ApplyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Catalog()), count)

	// Seed rows from the catalog are present.
	var groups int
	require.NoError(t, db.GetContext(ctx, &groups, "SELECT COUNT(*) FROM groups"))
	assert.Equal(t, 3, groups)

	var threshold int64
	require.NoError(t, db.GetContext(ctx, &threshold,
		"SELECT payment_threshold FROM payment_settings WHERE id = 1"))
	assert.Equal(t, int64(6000), threshold)

	info, err := r.SchemaInfo(ctx)
	require.NoError(t, err)
	assert.True(t, info.UpToDate)
	assert.Equal(t, len(Catalog()), info.CurrentVersion)
	assert.Zero(t, info.PendingCount)
}

func TestApplyPending_Idempotent(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Catalog())
	ctx := context.Background()

	_, err := r.ApplyPending(ctx)
	require.NoError(t, err)

	count, err := r.ApplyPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "second run must apply nothing")

	history, err := r.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, len(Catalog()))
}

func TestApplyPending_OrderedHistory(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Catalog())
	ctx := context.Background()

	_, err := r.ApplyPending(ctx)
	require.NoError(t, err)

	history, err := r.History(ctx)
	require.NoError(t, err)
	for i, a := range history {
		assert.Equal(t, i+1, a.Version)
		assert.Equal(t, Catalog()[i].Description, a.Description)
		assert.False(t, a.AppliedAt.IsZero())
	}
}

func TestApplyPending_AppliesOnlyNewVersions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	catalog := Catalog()
	first := newTestRunner(t, db, catalog[:5])
	count, err := first.ApplyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// An upgraded binary ships the rest of the catalog.
	second := newTestRunner(t, db, catalog)
	count, err = second.ApplyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(catalog)-5, count)
}

func TestApplyPending_GapFailsFast(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	full := newTestRunner(t, db, Catalog())
	_, err := full.ApplyPending(ctx)
	require.NoError(t, err)

	// A binary older than the database is missing applied versions.
	stale := newTestRunner(t, db, Catalog()[:8])
	_, err = stale.ApplyPending(ctx)
	require.Error(t, err)
	assert.True(t, pkgErrors.Is(err, pkgErrors.ErrMigrationGap))
}

func TestApplyPending_GapToleratedWhenConfigured(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	full := newTestRunner(t, db, Catalog())
	_, err := full.ApplyPending(ctx)
	require.NoError(t, err)

	stale := newTestRunner(t, db, Catalog()[:8])
	stale.TolerateUnknown = true
	count, err := stale.ApplyPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestApplyPending_DescriptionMismatchFailsFast(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	original := []Migration{{Version: 1, Description: "Create groups table", Script: "CREATE TABLE groups (id INTEGER PRIMARY KEY)"}}
	r := newTestRunner(t, db, original)
	_, err := r.ApplyPending(ctx)
	require.NoError(t, err)

	edited := []Migration{{Version: 1, Description: "Create teams table", Script: "CREATE TABLE groups (id INTEGER PRIMARY KEY)"}}
	r2 := newTestRunner(t, db, edited)
	_, err = r2.ApplyPending(ctx)
	require.Error(t, err)
	assert.True(t, pkgErrors.Is(err, pkgErrors.ErrMigrationMismatch))
}

func TestApplyPending_ScriptFailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := []Migration{
		{Version: 1, Description: "good", Script: "CREATE TABLE ok (id INTEGER PRIMARY KEY)"},
		{Version: 2, Description: "bad", Script: "CREATE TABLE broken (id INTEGR"},
	}
	r := newTestRunner(t, db, migrations)
	count, err := r.ApplyPending(ctx)
	require.Error(t, err)
	assert.True(t, pkgErrors.Is(err, pkgErrors.ErrMigrationScript))
	assert.Equal(t, 1, count, "migrations before the failure stay applied")

	// The failed migration left no bookkeeping row behind.
	history, histErr := r.History(ctx)
	require.NoError(t, histErr)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Version)

	// Rerunning after a fix picks up from the failed version.
	fixed := []Migration{
		migrations[0],
		{Version: 2, Description: "bad", Script: "CREATE TABLE broken (id INTEGER PRIMARY KEY)"},
	}
	r2 := newTestRunner(t, db, fixed)
	count, err = r2.ApplyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestValidate_ReportsAllIssues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := newTestRunner(t, db, []Migration{
		{Version: 1, Description: "first", Script: "CREATE TABLE a (id INTEGER)"},
		{Version: 2, Description: "second", Script: "CREATE TABLE b (id INTEGER)"},
	})
	_, err := r.ApplyPending(ctx)
	require.NoError(t, err)

	// Tamper with the history to simulate drift.
	_, err = db.ExecContext(ctx, "UPDATE migrations SET description = 'edited' WHERE version = 1")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		"INSERT INTO migrations (version, description, applied_at) VALUES (9, 'orphan', datetime('now'))")
	require.NoError(t, err)

	v, err := r.Validate(ctx)
	require.NoError(t, err)
	assert.False(t, v.IsValid)
	assert.Len(t, v.Issues, 3) // mismatch, gap, orphan
	assert.Equal(t, 3, v.AppliedCount)
	assert.Equal(t, 2, v.TotalCount)
}

func TestValidate_CleanDatabase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := newTestRunner(t, db, Catalog())
	_, err := r.ApplyPending(ctx)
	require.NoError(t, err)

	v, err := r.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.Empty(t, v.Issues)
}

func TestForceApply(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	catalog := Catalog()
	r := newTestRunner(t, db, catalog)
	_, err := r.ApplyPending(ctx)
	require.NoError(t, err)

	// Already applied: refused.
	err = r.ForceApply(ctx, 1)
	require.Error(t, err)
	assert.True(t, pkgErrors.Is(err, pkgErrors.ErrConflict))

	// Unknown version: refused.
	err = r.ForceApply(ctx, 99)
	require.Error(t, err)
	assert.True(t, pkgErrors.Is(err, pkgErrors.ErrNotFound))
}

func TestForceApply_RunsScript(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := []Migration{
		{Version: 1, Description: "first", Script: "CREATE TABLE a (id INTEGER)"},
		{Version: 2, Description: "second", Script: "CREATE TABLE b (id INTEGER)"},
	}
	r := newTestRunner(t, db, migrations)
	require.NoError(t, r.ensureTable(ctx))

	// Apply version 2 out of order.
	require.NoError(t, r.ForceApply(ctx, 2))

	var count int
	require.NoError(t, db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='b'"))
	assert.Equal(t, 1, count)

	applied, err := r.isApplied(ctx, 2)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestMarkApplied(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := newTestRunner(t, db, Catalog())
	require.NoError(t, r.MarkApplied(ctx, 1, "Create groups table"))

	// The script never ran.
	var count int
	require.NoError(t, db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='groups'"))
	assert.Zero(t, count)

	// But the bookkeeping row exists and double marking is refused.
	applied, err := r.isApplied(ctx, 1)
	require.NoError(t, err)
	assert.True(t, applied)

	err = r.MarkApplied(ctx, 1, "Create groups table")
	require.Error(t, err)
	assert.True(t, pkgErrors.Is(err, pkgErrors.ErrConflict))
}

func TestRollback_AdvisoryOnly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := newTestRunner(t, db, Catalog())
	_, err := r.ApplyPending(ctx)
	require.NoError(t, err)

	info, err := r.Rollback(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, info.TargetVersion)
	assert.Equal(t, len(Catalog()), info.CurrentVersion)
	require.Len(t, info.ToReverse, len(Catalog())-8)
	assert.Equal(t, len(Catalog()), info.ToReverse[0].Version, "reversal order is descending")
	assert.NotEmpty(t, info.Warnings)

	// Nothing was reverted.
	infoAfter, err := r.SchemaInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Catalog()), infoAfter.CurrentVersion)
}

func TestRollback_TargetAtOrAboveCurrent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := newTestRunner(t, db, Catalog())
	_, err := r.ApplyPending(ctx)
	require.NoError(t, err)

	info, err := r.Rollback(ctx, len(Catalog()))
	require.NoError(t, err)
	assert.Empty(t, info.ToReverse)
}

func TestPending_OnFreshDatabase(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Catalog())

	pending, err := r.Pending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, len(Catalog()))
	assert.Equal(t, 1, pending[0].Version)
}
