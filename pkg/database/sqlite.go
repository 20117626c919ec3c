package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/markazapp/markaz-core/pkg/config"
)

// Open returns a connection to the embedded SQLite database, creating the
// parent directory and the file on first run. Foreign keys are enforced and
// WAL mode keeps readers from blocking the single writer.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	busyMillis := cfg.BusyTimeout.Milliseconds()
	if busyMillis <= 0 {
		busyMillis = 5000
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cfg.Path, busyMillis)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps
	// in-process transactions from tripping over each other.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error. Partial writes are never observable to callers.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Stats summarises the database file for the maintenance surface.
type Stats struct {
	Path          string    `json:"path"`
	SizeBytes     int64     `json:"size_bytes"`
	Students      int       `json:"students"`
	Groups        int       `json:"groups"`
	Attendance    int       `json:"attendance"`
	Payments      int       `json:"payments"`
	SchemaVersion int       `json:"schema_version"`
	CollectedAt   time.Time `json:"collected_at"`
}

// CollectStats reads row counts and the on-disk size of the database file.
func CollectStats(ctx context.Context, db *sqlx.DB, path string) (*Stats, error) {
	stats := &Stats{Path: path, CollectedAt: time.Now().UTC()}

	if info, err := os.Stat(path); err == nil {
		stats.SizeBytes = info.Size()
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM students", &stats.Students},
		{"SELECT COUNT(*) FROM groups", &stats.Groups},
		{"SELECT COUNT(*) FROM attendance", &stats.Attendance},
		{"SELECT COUNT(*) FROM payment_transactions", &stats.Payments},
		{"SELECT COALESCE(MAX(version), 0) FROM migrations", &stats.SchemaVersion},
	}
	for _, c := range counts {
		if err := db.GetContext(ctx, c.dest, c.query); err != nil {
			return nil, fmt.Errorf("collect stats: %w", err)
		}
	}

	return stats, nil
}

// Vacuum rebuilds the database file, reclaiming space left by deletions.
func Vacuum(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Backup writes a consistent copy of the database to dest. VACUUM INTO
// produces a standalone snapshot without blocking readers.
func Backup(ctx context.Context, db *sqlx.DB, dest string) error {
	if dir := filepath.Dir(dest); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create backup directory: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("backup database: %w", err)
	}
	return nil
}

// CopyFile is a fallback backup path for filesystems where VACUUM INTO is
// unavailable. The caller must ensure no writer is active.
func CopyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}
	return out.Sync()
}
