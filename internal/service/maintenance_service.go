package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/pkg/database"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// MaintenanceService covers the database housekeeping surface: stats,
// vacuum, and consistent backups.
type MaintenanceService struct {
	db     *sqlx.DB
	dbPath string
	logger *zap.Logger
}

// NewMaintenanceService constructs the maintenance service.
func NewMaintenanceService(db *sqlx.DB, dbPath string, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{db: db, dbPath: dbPath, logger: logger}
}

// Stats reads row counts, schema version and on-disk size.
func (s *MaintenanceService) Stats(ctx context.Context) (*database.Stats, error) {
	stats, err := database.CollectStats(ctx, s.db, s.dbPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect database stats")
	}
	return stats, nil
}

// Vacuum rebuilds the database file to reclaim space.
func (s *MaintenanceService) Vacuum(ctx context.Context) error {
	if err := database.Vacuum(ctx, s.db); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "vacuum failed")
	}
	s.logger.Info("database vacuumed")
	return nil
}

// Backup writes a consistent snapshot into dir and returns the created
// file's path. An empty dir places the backup next to the live database.
func (s *MaintenanceService) Backup(ctx context.Context, dir string) (string, error) {
	if dir == "" {
		dir = filepath.Dir(s.dbPath)
	}
	name := fmt.Sprintf("markaz-backup-%s.db", time.Now().UTC().Format("20060102-150405"))
	dest := filepath.Join(dir, name)

	if err := database.Backup(ctx, s.db, dest); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "backup failed")
	}
	s.logger.Info("database backed up", zap.String("dest", dest))
	return dest, nil
}
