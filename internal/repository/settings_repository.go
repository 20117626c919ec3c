package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/markazapp/markaz-core/internal/models"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
)

// SettingsRepository manages the payment settings singleton and the
// key/value application settings.
type SettingsRepository struct {
	q Queryer
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{q: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *SettingsRepository) WithTx(tx *sqlx.Tx) *SettingsRepository {
	return &SettingsRepository{q: tx}
}

// GetPaymentSettings reads the singleton payment configuration row. The row
// is seeded by migration; its absence means the schema is broken.
func (r *SettingsRepository) GetPaymentSettings(ctx context.Context) (*models.PaymentSettings, error) {
	var settings models.PaymentSettings
	err := r.q.GetContext(ctx, &settings,
		`SELECT id, one_time_amount, monthly_amount, installment_amount,
         installment_interval_months, reminder_days, payment_threshold, updated_at
         FROM payment_settings WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInternal, "payment settings row missing")
		}
		return nil, fmt.Errorf("get payment settings: %w", err)
	}
	return &settings, nil
}

// UpdatePaymentSettings overwrites the singleton payment configuration row.
func (r *SettingsRepository) UpdatePaymentSettings(ctx context.Context, settings *models.PaymentSettings) error {
	const query = `UPDATE payment_settings SET one_time_amount = :one_time_amount,
        monthly_amount = :monthly_amount, installment_amount = :installment_amount,
        installment_interval_months = :installment_interval_months,
        reminder_days = :reminder_days, payment_threshold = :payment_threshold,
        updated_at = :updated_at WHERE id = 1`
	settings.ID = 1
	if _, err := r.q.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("update payment settings: %w", err)
	}
	return nil
}

// Get reads one application setting by key.
func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.SettingRecord, error) {
	var record models.SettingRecord
	err := r.q.GetContext(ctx, &record,
		"SELECT key, value, updated_at FROM settings WHERE key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("setting %q not found", key))
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return &record, nil
}

// Set upserts one application setting.
func (r *SettingsRepository) Set(ctx context.Context, key, value string, now models.Time) error {
	const query = `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := r.q.ExecContext(ctx, query, key, value, now); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// Delete removes one application setting.
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	result, err := r.q.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("setting %q not found", key))
	}
	return nil
}

// All returns every application setting ordered by key.
func (r *SettingsRepository) All(ctx context.Context) ([]models.SettingRecord, error) {
	var records []models.SettingRecord
	if err := r.q.SelectContext(ctx, &records,
		"SELECT key, value, updated_at FROM settings ORDER BY key"); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return records, nil
}
