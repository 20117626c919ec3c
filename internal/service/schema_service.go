package service

import (
	"context"

	"github.com/markazapp/markaz-core/internal/migrate"
)

// SchemaService exposes the migration runner's read and recovery surface.
// The normal apply path runs at startup, before the command surface exists;
// everything here is inspection plus the explicitly unsafe escape hatches.
type SchemaService struct {
	runner *migrate.Runner
}

// NewSchemaService constructs the schema service.
func NewSchemaService(runner *migrate.Runner) *SchemaService {
	return &SchemaService{runner: runner}
}

// Info reports current vs. latest schema version.
func (s *SchemaService) Info(ctx context.Context) (*migrate.SchemaInfo, error) {
	return s.runner.SchemaInfo(ctx)
}

// Validate checks code-defined migrations against the applied history.
func (s *SchemaService) Validate(ctx context.Context) (*migrate.Validation, error) {
	return s.runner.Validate(ctx)
}

// History returns the applied migrations in order.
func (s *SchemaService) History(ctx context.Context) ([]migrate.Applied, error) {
	return s.runner.History(ctx)
}

// Pending returns migrations not yet applied.
func (s *SchemaService) Pending(ctx context.Context) ([]migrate.Migration, error) {
	return s.runner.Pending(ctx)
}

// ForceApply runs one migration out of order. Recovery only.
func (s *SchemaService) ForceApply(ctx context.Context, version int) error {
	return s.runner.ForceApply(ctx, version)
}

// MarkApplied records a migration as applied without running it. Recovery
// only.
func (s *SchemaService) MarkApplied(ctx context.Context, version int, description string) error {
	return s.runner.MarkApplied(ctx, version, description)
}

// Rollback reports what reverting to target would require. Advisory only.
func (s *SchemaService) Rollback(ctx context.Context, target int) (*migrate.RollbackInfo, error) {
	return s.runner.Rollback(ctx, target)
}
