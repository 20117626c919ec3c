package models

// PaymentSettings is the singleton configuration row for payment plans.
// Per-plan amounts only supply defaults for new student records; existing
// students keep their captured plan_amount. Mutations change future
// due-date/status computations and should be followed by a recalculation.
type PaymentSettings struct {
	ID                        int64 `db:"id" json:"id"`
	OneTimeAmount             int64 `db:"one_time_amount" json:"one_time_amount"`
	MonthlyAmount             int64 `db:"monthly_amount" json:"monthly_amount"`
	InstallmentAmount         int64 `db:"installment_amount" json:"installment_amount"`
	InstallmentIntervalMonths int   `db:"installment_interval_months" json:"installment_interval_months"`
	ReminderDays              int   `db:"reminder_days" json:"reminder_days"`
	PaymentThreshold          int64 `db:"payment_threshold" json:"payment_threshold"`
	UpdatedAt                 Time  `db:"updated_at" json:"updated_at"`
}

// DefaultPlanAmount returns the configured default amount for a plan.
func (s PaymentSettings) DefaultPlanAmount(plan PaymentPlan) int64 {
	switch plan {
	case PlanMonthly:
		return s.MonthlyAmount
	case PlanInstallment:
		return s.InstallmentAmount
	default:
		return s.OneTimeAmount
	}
}

// SettingRecord is one raw key/value application setting.
type SettingRecord struct {
	Key       string `db:"key" json:"key"`
	Value     string `db:"value" json:"value"`
	UpdatedAt Time   `db:"updated_at" json:"updated_at"`
}

// AppSettings is the typed projection of the key/value settings table.
type AppSettings struct {
	DefaultGroups  []string `json:"default_groups"`
	EnableAuditLog bool     `json:"enable_audit_log"`
	Language       string   `json:"language"`
	Theme          string   `json:"theme"`
}
