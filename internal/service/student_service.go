package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/repository"
	"github.com/markazapp/markaz-core/pkg/database"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// CreateStudentRequest holds payload for registering students. PlanAmount
// falls back to the configured default for the chosen plan when omitted.
type CreateStudentRequest struct {
	Name             string             `json:"name" validate:"required"`
	GroupID          int64              `json:"group_id" validate:"required"`
	PaymentPlan      models.PaymentPlan `json:"payment_plan" validate:"required"`
	PlanAmount       *int64             `json:"plan_amount"`
	InstallmentCount *int               `json:"installment_count"`
	EnrollmentDate   models.Date        `json:"enrollment_date"`
}

// UpdateStudentRequest holds payload for editing students. Paid amounts are
// not editable here; they only move through payment transactions.
type UpdateStudentRequest struct {
	Name             string             `json:"name" validate:"required"`
	GroupID          int64              `json:"group_id" validate:"required"`
	PaymentPlan      models.PaymentPlan `json:"payment_plan" validate:"required"`
	PlanAmount       int64              `json:"plan_amount"`
	InstallmentCount *int               `json:"installment_count"`
	EnrollmentDate   models.Date        `json:"enrollment_date"`
}

// StudentService handles student use-cases. Every write that can affect
// payment state recomputes the status projection inside the same
// transaction, so readers never observe a stale status after commit.
type StudentService struct {
	db        *sqlx.DB
	students  *repository.StudentRepository
	groups    *repository.GroupRepository
	settings  *repository.SettingsRepository
	audit     *repository.AuditRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(
	db *sqlx.DB,
	students *repository.StudentRepository,
	groups *repository.GroupRepository,
	settings *repository.SettingsRepository,
	audit *repository.AuditRepository,
	validate *validator.Validate,
	logger *zap.Logger,
) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		db: db, students: students, groups: groups,
		settings: settings, audit: audit,
		validator: validate, logger: logger,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	return s.students.FindByID(ctx, id)
}

// ListByStatus returns students currently carrying the given status.
func (s *StudentService) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.StudentDetail, error) {
	if !status.Valid() {
		return nil, appErrors.Validation("invalid payment status",
			[]string{fmt.Sprintf("unknown payment status %q", status)})
	}
	return s.students.ListByStatus(ctx, status)
}

// Create registers a new student with a freshly allocated sequential ID and
// an already-computed payment projection.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if req.EnrollmentDate.IsZero() {
		req.EnrollmentDate = models.Today()
	}

	settings, err := s.settings.GetPaymentSettings(ctx)
	if err != nil {
		return nil, err
	}

	planAmount := settings.DefaultPlanAmount(req.PaymentPlan)
	if req.PlanAmount != nil {
		planAmount = *req.PlanAmount
	}

	if violations := s.collectViolations(ctx, req.Name, req.GroupID, req.PaymentPlan, planAmount, req.InstallmentCount); len(violations) > 0 {
		return nil, appErrors.Validation("invalid student payload", violations)
	}

	var id string
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		students := s.students.WithTx(tx)

		id, err = students.NextID(ctx)
		if err != nil {
			return err
		}

		now := models.Now()
		student := &models.Student{
			ID:               id,
			Name:             req.Name,
			GroupID:          req.GroupID,
			PaymentPlan:      req.PaymentPlan,
			PlanAmount:       planAmount,
			InstallmentCount: req.InstallmentCount,
			EnrollmentDate:   req.EnrollmentDate,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		applyState(student, computeState(student, settings, models.Today()))

		if err := students.Create(ctx, student); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Insert(ctx, auditEntry(models.AuditCreate, "students", id, nil, student))
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.logger.Info("student created", zap.String("student_id", id))
	return s.students.FindByID(ctx, id)
}

// Update modifies an existing student and recomputes its payment projection
// before the transaction commits.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	detail, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	violations := s.collectViolations(ctx, req.Name, req.GroupID, req.PaymentPlan, req.PlanAmount, req.InstallmentCount)
	if req.EnrollmentDate.IsZero() {
		violations = append(violations, "enrollment_date is required")
	}
	if len(violations) > 0 {
		return nil, appErrors.Validation("invalid student payload", violations)
	}

	settings, err := s.settings.GetPaymentSettings(ctx)
	if err != nil {
		return nil, err
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		before := detail.Student

		student := detail.Student
		student.Name = req.Name
		student.GroupID = req.GroupID
		student.PaymentPlan = req.PaymentPlan
		student.PlanAmount = req.PlanAmount
		student.InstallmentCount = req.InstallmentCount
		student.EnrollmentDate = req.EnrollmentDate
		student.UpdatedAt = models.Now()
		applyState(&student, computeState(&student, settings, models.Today()))

		if err := s.students.WithTx(tx).Update(ctx, &student); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Insert(ctx, auditEntry(models.AuditUpdate, "students", id, before, student))
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	return s.students.FindByID(ctx, id)
}

// Delete removes a student. Attendance and payment history cascade inside
// the same transaction.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	detail, err := s.students.FindByID(ctx, id)
	if err != nil {
		return err
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.students.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Insert(ctx, auditEntry(models.AuditDelete, "students", id, detail.Student, nil))
	})
	if err != nil {
		return appErrors.FromError(err)
	}

	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

// collectViolations enumerates every broken rule so the caller can present
// all problems at once instead of fixing them one by one.
func (s *StudentService) collectViolations(ctx context.Context, name string, groupID int64, plan models.PaymentPlan, planAmount int64, installmentCount *int) []string {
	var violations []string

	if name == "" {
		violations = append(violations, "name must not be empty")
	}
	if groupID <= 0 {
		violations = append(violations, "group_id is required")
	} else if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			violations = append(violations, fmt.Sprintf("group %d does not exist", groupID))
		} else {
			violations = append(violations, "group could not be verified")
		}
	}
	if !plan.Valid() {
		violations = append(violations, fmt.Sprintf("unknown payment plan %q", plan))
	}
	if planAmount <= 0 {
		violations = append(violations, "plan_amount must be greater than zero")
	}
	if plan == models.PlanInstallment && (installmentCount == nil || *installmentCount <= 0) {
		violations = append(violations, "installment_count must be greater than zero for installment plans")
	}
	if plan != models.PlanInstallment && installmentCount != nil {
		violations = append(violations, "installment_count is only valid for installment plans")
	}
	return violations
}
