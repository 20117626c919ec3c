package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/repository"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// AuditService reads the append-only change log and purges old entries.
// Writing entries happens inside the mutating services' transactions via
// repository.AuditRepository so a rolled-back change never leaves a trace.
type AuditService struct {
	repo   *repository.AuditRepository
	logger *zap.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(repo *repository.AuditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// List returns audit entries matching the filter, newest first.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return entries, nil
}

// PurgeOlderThan removes entries older than the cutoff.
func (s *AuditService) PurgeOlderThan(ctx context.Context, cutoff models.Time) (int64, error) {
	n, err := s.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge audit log")
	}
	if n > 0 {
		s.logger.Info("purged audit entries", zap.Int64("count", n), zap.String("cutoff", cutoff.String()))
	}
	return n, nil
}

// auditEntry builds a log row from before/after snapshots. Marshal failures
// degrade to a nil snapshot rather than failing the caller's transaction.
func auditEntry(action models.AuditAction, table, recordID string, oldValue, newValue interface{}) *models.AuditEntry {
	entry := &models.AuditEntry{
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		Timestamp: models.Now(),
	}
	entry.OldValues = marshalSnapshot(oldValue)
	entry.NewValues = marshalSnapshot(newValue)
	return entry
}

func marshalSnapshot(v interface{}) *string {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		s := fmt.Sprintf("%v", v)
		return &s
	}
	s := string(data)
	return &s
}
