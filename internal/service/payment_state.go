package service

import (
	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/payplan"
)

// payplanConfig resolves the shared engine parameters once, at the boundary,
// instead of each call site reaching for its own defaults.
func payplanConfig(ps *models.PaymentSettings) payplan.Config {
	cfg := payplan.Config{
		IntervalMonths: ps.InstallmentIntervalMonths,
		ReminderDays:   ps.ReminderDays,
	}
	if cfg.IntervalMonths <= 0 {
		cfg.IntervalMonths = 1
	}
	if cfg.ReminderDays < 0 {
		cfg.ReminderDays = 0
	}
	return cfg
}

// computeState derives the payment projection for one student row.
func computeState(st *models.Student, ps *models.PaymentSettings, today models.Date) models.PaymentState {
	in := payplan.Input{
		Plan:           st.PaymentPlan,
		PlanAmount:     st.PlanAmount,
		PaidAmount:     st.PaidAmount,
		EnrollmentDate: st.EnrollmentDate,
	}
	if st.InstallmentCount != nil {
		in.InstallmentCount = *st.InstallmentCount
	}
	res := payplan.Compute(in, payplanConfig(ps), today)
	return models.PaymentState{Status: res.Status, NextDue: res.NextDue}
}

// applyState writes a computed projection onto the student value.
func applyState(st *models.Student, state models.PaymentState) {
	st.PaymentStatus = state.Status
	st.NextDueDate = state.NextDue
}
