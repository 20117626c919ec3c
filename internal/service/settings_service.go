package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/repository"
	"github.com/markazapp/markaz-core/pkg/database"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
	"github.com/markazapp/markaz-core/pkg/jobs"
)

// JobTypeRecalculate is enqueued after payment settings change so statuses
// catch up with the new parameters without blocking the settings command.
const JobTypeRecalculate = "payment.recalculate"

// UpdatePaymentSettingsRequest holds payload for the payment settings
// singleton.
type UpdatePaymentSettingsRequest struct {
	OneTimeAmount             int64 `json:"one_time_amount"`
	MonthlyAmount             int64 `json:"monthly_amount"`
	InstallmentAmount         int64 `json:"installment_amount"`
	InstallmentIntervalMonths int   `json:"installment_interval_months"`
	ReminderDays              int   `json:"reminder_days"`
	PaymentThreshold          int64 `json:"payment_threshold"`
}

// SettingsService manages the payment settings singleton and the key/value
// application settings.
type SettingsService struct {
	db       *sqlx.DB
	settings *repository.SettingsRepository
	audit    *repository.AuditRepository
	queue    *jobs.Queue
	logger   *zap.Logger
}

// NewSettingsService constructs the settings service. The queue may be nil
// in tests; updates then skip the recalculation enqueue.
func NewSettingsService(
	db *sqlx.DB,
	settings *repository.SettingsRepository,
	audit *repository.AuditRepository,
	queue *jobs.Queue,
	logger *zap.Logger,
) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{db: db, settings: settings, audit: audit, queue: queue, logger: logger}
}

// GetPayment returns the payment settings singleton.
func (s *SettingsService) GetPayment(ctx context.Context) (*models.PaymentSettings, error) {
	return s.settings.GetPaymentSettings(ctx)
}

// UpdatePayment overwrites the payment settings singleton and enqueues a
// full status recalculation.
func (s *SettingsService) UpdatePayment(ctx context.Context, req UpdatePaymentSettingsRequest) (*models.PaymentSettings, error) {
	var violations []string
	if req.OneTimeAmount <= 0 {
		violations = append(violations, "one_time_amount must be greater than zero")
	}
	if req.MonthlyAmount <= 0 {
		violations = append(violations, "monthly_amount must be greater than zero")
	}
	if req.InstallmentAmount <= 0 {
		violations = append(violations, "installment_amount must be greater than zero")
	}
	if req.InstallmentIntervalMonths <= 0 {
		violations = append(violations, "installment_interval_months must be greater than zero")
	}
	if req.ReminderDays < 0 {
		violations = append(violations, "reminder_days must not be negative")
	}
	if req.PaymentThreshold <= 0 {
		violations = append(violations, "payment_threshold must be greater than zero")
	}
	if len(violations) > 0 {
		return nil, appErrors.Validation("invalid payment settings", violations)
	}

	before, err := s.settings.GetPaymentSettings(ctx)
	if err != nil {
		return nil, err
	}

	updated := &models.PaymentSettings{
		ID:                        1,
		OneTimeAmount:             req.OneTimeAmount,
		MonthlyAmount:             req.MonthlyAmount,
		InstallmentAmount:         req.InstallmentAmount,
		InstallmentIntervalMonths: req.InstallmentIntervalMonths,
		ReminderDays:              req.ReminderDays,
		PaymentThreshold:          req.PaymentThreshold,
		UpdatedAt:                 models.Now(),
	}

	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.settings.WithTx(tx).UpdatePaymentSettings(ctx, updated); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Insert(ctx,
			auditEntry(models.AuditUpdate, "payment_settings", "1", before, updated))
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.enqueueRecalculation()
	return updated, nil
}

func (s *SettingsService) enqueueRecalculation() {
	if s.queue == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeRecalculate}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue recalculation", zap.Error(err))
	}
}

// GetApp returns the typed application settings projection.
func (s *SettingsService) GetApp(ctx context.Context) (*models.AppSettings, error) {
	records, err := s.settings.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}

	app := &models.AppSettings{Language: "en", Theme: "light", EnableAuditLog: true}
	for _, record := range records {
		switch record.Key {
		case "default_groups":
			app.DefaultGroups = splitList(record.Value)
		case "enable_audit_log":
			app.EnableAuditLog = record.Value == "true"
		case "language":
			app.Language = record.Value
		case "theme":
			app.Theme = record.Value
		}
	}
	return app, nil
}

// UpdateApp writes the typed application settings back to key/value rows.
func (s *SettingsService) UpdateApp(ctx context.Context, app models.AppSettings) error {
	if app.Language == "" {
		return appErrors.Validation("invalid app settings", []string{"language must not be empty"})
	}
	if app.Theme != "light" && app.Theme != "dark" {
		return appErrors.Validation("invalid app settings", []string{"theme must be light or dark"})
	}

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		settings := s.settings.WithTx(tx)
		now := models.Now()

		pairs := map[string]string{
			"default_groups":   strings.Join(app.DefaultGroups, ","),
			"enable_audit_log": strconv.FormatBool(app.EnableAuditLog),
			"language":         app.Language,
			"theme":            app.Theme,
		}
		for key, value := range pairs {
			if err := settings.Set(ctx, key, value, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return appErrors.FromError(err)
	}
	return nil
}

// Get reads one raw setting by key.
func (s *SettingsService) Get(ctx context.Context, key string) (*models.SettingRecord, error) {
	return s.settings.Get(ctx, key)
}

// Set upserts one raw setting.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return appErrors.Validation("invalid setting", []string{"key must not be empty"})
	}
	if err := s.settings.Set(ctx, key, value, models.Now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store setting")
	}
	return nil
}

// Delete removes one raw application setting.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	return s.settings.Delete(ctx, key)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
