package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/repository"
	"github.com/markazapp/markaz-core/pkg/database"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// GroupService handles group use-cases, including the atomic
// reassign-then-delete path for groups that still have members.
type GroupService struct {
	db       *sqlx.DB
	groups   *repository.GroupRepository
	students *repository.StudentRepository
	audit    *repository.AuditRepository
	logger   *zap.Logger
}

// NewGroupService constructs the group service.
func NewGroupService(
	db *sqlx.DB,
	groups *repository.GroupRepository,
	students *repository.StudentRepository,
	audit *repository.AuditRepository,
	logger *zap.Logger,
) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{db: db, groups: groups, students: students, audit: audit, logger: logger}
}

// List returns every group with its member count.
func (s *GroupService) List(ctx context.Context) ([]models.GroupWithCount, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// Get returns one group.
func (s *GroupService) Get(ctx context.Context, id int64) (*models.Group, error) {
	return s.groups.FindByID(ctx, id)
}

// Create adds a new group with a unique name.
func (s *GroupService) Create(ctx context.Context, name string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Validation("invalid group payload", []string{"name must not be empty"})
	}

	exists, err := s.groups.ExistsByName(ctx, name, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("group %q already exists", name))
	}

	now := models.Now()
	group := &models.Group{Name: name, CreatedAt: now, UpdatedAt: now}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.groups.WithTx(tx).Create(ctx, group); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Insert(ctx,
			auditEntry(models.AuditCreate, "groups", fmt.Sprintf("%d", group.ID), nil, group))
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return group, nil
}

// Update renames a group.
func (s *GroupService) Update(ctx context.Context, id int64, name string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Validation("invalid group payload", []string{"name must not be empty"})
	}

	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.groups.ExistsByName(ctx, name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("group %q already exists", name))
	}

	before := *group
	group.Name = name
	group.UpdatedAt = models.Now()

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.groups.WithTx(tx).Update(ctx, group); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Insert(ctx,
			auditEntry(models.AuditUpdate, "groups", fmt.Sprintf("%d", id), before, group))
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return group, nil
}

// Delete removes a group. A group with members can only be deleted together
// with an explicit reassignment target; members move and the group vanishes
// in one transaction, so no student is ever left pointing at a dead group.
func (s *GroupService) Delete(ctx context.Context, id int64, reassignTo *int64) error {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return err
	}

	members, err := s.students.CountByGroup(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count group members")
	}

	if members > 0 && reassignTo == nil {
		return appErrors.Clone(appErrors.ErrConstraint,
			fmt.Sprintf("group %q has %d students; supply a reassignment target", group.Name, members))
	}
	if reassignTo != nil {
		if *reassignTo == id {
			return appErrors.Validation("invalid reassignment target",
				[]string{"cannot reassign students to the group being deleted"})
		}
		if _, err := s.groups.FindByID(ctx, *reassignTo); err != nil {
			return err
		}
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if members > 0 {
			moved, err := s.students.WithTx(tx).ReassignGroup(ctx, id, *reassignTo, models.Now())
			if err != nil {
				return err
			}
			s.logger.Info("group members reassigned",
				zap.Int64("from", id), zap.Int64("to", *reassignTo), zap.Int64("moved", moved))
		}
		if err := s.groups.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Insert(ctx,
			auditEntry(models.AuditDelete, "groups", fmt.Sprintf("%d", id), group, nil))
	})
	if err != nil {
		return appErrors.FromError(err)
	}
	return nil
}
