package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/payplan"
	"github.com/markazapp/markaz-core/internal/repository"
	"github.com/markazapp/markaz-core/pkg/database"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// RecordPaymentRequest holds payload for recording one payment.
type RecordPaymentRequest struct {
	StudentID     string               `json:"student_id" validate:"required"`
	Amount        int64                `json:"amount" validate:"required"`
	PaymentDate   models.Date          `json:"payment_date"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Notes         *string              `json:"notes"`
}

// PaymentService records and deletes payment transactions, keeping the
// student's paid_amount and status projection in step inside the same
// transaction as the ledger write.
type PaymentService struct {
	db       *sqlx.DB
	payments *repository.PaymentRepository
	students *repository.StudentRepository
	settings *repository.SettingsRepository
	audit    *repository.AuditRepository
	logger   *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(
	db *sqlx.DB,
	payments *repository.PaymentRepository,
	students *repository.StudentRepository,
	settings *repository.SettingsRepository,
	audit *repository.AuditRepository,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		db: db, payments: payments, students: students,
		settings: settings, audit: audit, logger: logger,
	}
}

// Record appends a payment transaction, bumps the student's running total
// and recomputes their status, all in one transaction.
func (s *PaymentService) Record(ctx context.Context, req RecordPaymentRequest) (*models.PaymentTransaction, error) {
	var violations []string
	if req.StudentID == "" {
		violations = append(violations, "student_id is required")
	}
	if req.Amount <= 0 {
		violations = append(violations, "amount must be greater than zero")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.MethodCash
	} else if !req.PaymentMethod.Valid() {
		violations = append(violations, fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}
	if len(violations) > 0 {
		return nil, appErrors.Validation("invalid payment payload", violations)
	}
	if req.PaymentDate.IsZero() {
		req.PaymentDate = models.Today()
	}

	settings, err := s.settings.GetPaymentSettings(ctx)
	if err != nil {
		return nil, err
	}

	payment := &models.PaymentTransaction{
		StudentID:     req.StudentID,
		Amount:        req.Amount,
		PaymentDate:   req.PaymentDate,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		CreatedAt:     models.Now(),
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		students := s.students.WithTx(tx)

		detail, err := students.FindByID(ctx, req.StudentID)
		if err != nil {
			return err
		}

		if err := s.payments.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}

		student := detail.Student
		student.PaidAmount += req.Amount
		state := computeState(&student, settings, models.Today())
		now := models.Now()
		if err := students.AddToPaidAmount(ctx, req.StudentID, req.Amount, now); err != nil {
			return err
		}
		if err := students.UpdatePaymentState(ctx, req.StudentID, state, now); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Insert(ctx,
			auditEntry(models.AuditCreate, "payment_transactions", fmt.Sprintf("%d", payment.ID), nil, payment))
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.logger.Info("payment recorded",
		zap.String("student_id", req.StudentID), zap.Int64("amount", req.Amount))
	return payment, nil
}

// Delete removes a payment transaction and rolls the student's paid total
// back, which may reopen a paid status. Administrative action.
func (s *PaymentService) Delete(ctx context.Context, id int64) error {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return err
	}

	settings, err := s.settings.GetPaymentSettings(ctx)
	if err != nil {
		return err
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		students := s.students.WithTx(tx)

		if err := s.payments.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}

		detail, err := students.FindByID(ctx, payment.StudentID)
		if err != nil {
			return err
		}

		student := detail.Student
		student.PaidAmount -= payment.Amount
		state := computeState(&student, settings, models.Today())
		now := models.Now()
		if err := students.AddToPaidAmount(ctx, payment.StudentID, -payment.Amount, now); err != nil {
			return err
		}
		if err := students.UpdatePaymentState(ctx, payment.StudentID, state, now); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Insert(ctx,
			auditEntry(models.AuditDelete, "payment_transactions", fmt.Sprintf("%d", id), payment, nil))
	})
	if err != nil {
		return appErrors.FromError(err)
	}

	s.logger.Info("payment deleted",
		zap.Int64("payment_id", id), zap.String("student_id", payment.StudentID))
	return nil
}

// History returns payment transactions matching the filter plus pagination
// metadata.
func (s *PaymentService) History(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentTransaction, *models.Pagination, error) {
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Statistics aggregates transactions over an optional date range.
func (s *PaymentService) Statistics(ctx context.Context, from, to *models.Date) (*models.PaymentStatistics, error) {
	stats, err := s.payments.Statistics(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate payments")
	}
	return stats, nil
}

// Summary builds the dashboard aggregate: per-plan expected versus
// collected amounts, status counts, and the latest transactions.
func (s *PaymentService) Summary(ctx context.Context) (*models.PaymentSummary, error) {
	settings, err := s.settings.GetPaymentSettings(ctx)
	if err != nil {
		return nil, err
	}
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	cfg := payplanConfig(settings)
	today := models.Today()
	summary := &models.PaymentSummary{}

	for i := range students {
		st := &students[i]
		in := payplan.Input{
			Plan:           st.PaymentPlan,
			PlanAmount:     st.PlanAmount,
			PaidAmount:     st.PaidAmount,
			EnrollmentDate: st.EnrollmentDate,
		}
		if st.InstallmentCount != nil {
			in.InstallmentCount = *st.InstallmentCount
		}
		expected := payplan.ExpectedToDate(in, cfg, today)

		summary.TotalStudents++
		summary.TotalPaid += st.PaidAmount
		summary.TotalExpected += expected

		plan := planStatsFor(&summary.PlanBreakdown, st.PaymentPlan)
		plan.TotalStudents++
		plan.TotalPaid += st.PaidAmount
		plan.TotalExpected += expected

		switch st.PaymentStatus {
		case models.StatusPaid:
			summary.Paid++
			plan.Paid++
		case models.StatusOverdue:
			summary.Overdue++
			plan.Overdue++
		case models.StatusDueSoon:
			summary.DueSoon++
			plan.DueSoon++
		default:
			summary.Pending++
			plan.Pending++
		}
	}

	recent, err := s.payments.Recent(ctx, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent payments")
	}
	summary.RecentPayments = recent
	return summary, nil
}

func planStatsFor(b *models.PlanBreakdown, plan models.PaymentPlan) *models.PlanStats {
	switch plan {
	case models.PlanMonthly:
		return &b.Monthly
	case models.PlanInstallment:
		return &b.Installment
	default:
		return &b.OneTime
	}
}

// RecalculateAll recomputes every student's projection in one transaction
// and reports how many rows changed. Runs at startup, on demand, and after
// settings changes, since settings changes are not retroactive otherwise.
func (s *PaymentService) RecalculateAll(ctx context.Context) (*models.RecalcResult, error) {
	settings, err := s.settings.GetPaymentSettings(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.RecalcResult{}
	today := models.Today()

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		students := s.students.WithTx(tx)

		all, err := students.ListAll(ctx)
		if err != nil {
			return err
		}

		now := models.Now()
		for i := range all {
			st := &all[i]
			result.Scanned++

			state := computeState(st, settings, today)
			if state.Status == st.PaymentStatus && datesEqual(state.NextDue, st.NextDueDate) {
				continue
			}
			if err := students.UpdatePaymentState(ctx, st.ID, state, now); err != nil {
				return err
			}
			result.Changed++
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.logger.Info("payment recalculation finished",
		zap.Int("scanned", result.Scanned), zap.Int("changed", result.Changed))
	return result, nil
}

func datesEqual(a, b *models.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b.Time)
}
