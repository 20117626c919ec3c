// Package payplan derives a student's payment status and next due date
// from their plan, the amount paid so far and the reference day. It is
// pure: same inputs, same outputs, no clock and no database.
package payplan

import (
	"github.com/markazapp/markaz-core/internal/models"
)

// Input is everything about a student the derivation needs.
type Input struct {
	Plan             models.PaymentPlan
	PlanAmount       int64
	InstallmentCount int
	PaidAmount       int64
	EnrollmentDate   models.Date
}

// Config carries the shared plan parameters from payment settings.
type Config struct {
	// IntervalMonths is the gap between installment due dates.
	IntervalMonths int
	// ReminderDays is the width of the due-soon window before a due date.
	ReminderDays int
}

// Result is the derived payment state. NextDue is nil once the obligation
// is fully settled.
type Result struct {
	Status  models.PaymentStatus
	NextDue *models.Date
}

// Obligation returns the total amount the plan ultimately requires. Monthly
// plans are open-ended and return 0.
func Obligation(in Input) int64 {
	switch in.Plan {
	case models.PlanOneTime:
		return in.PlanAmount
	case models.PlanInstallment:
		return in.PlanAmount * int64(in.InstallmentCount)
	default:
		return 0
	}
}

// ExpectedToDate returns the amount the plan should have collected by
// today: the first unit is owed at enrollment, and another unit falls due
// each time an interval elapses. Installment plans cap at the total
// obligation; a date before enrollment owes nothing.
func ExpectedToDate(in Input, cfg Config, today models.Date) int64 {
	if today.Before(in.EnrollmentDate.Time) {
		return 0
	}
	switch in.Plan {
	case models.PlanOneTime:
		return in.PlanAmount
	case models.PlanMonthly:
		return in.PlanAmount * int64(monthsElapsed(in.EnrollmentDate, today)+1)
	case models.PlanInstallment:
		interval := cfg.IntervalMonths
		if interval <= 0 {
			interval = 1
		}
		dueUnits := int64(monthsElapsed(in.EnrollmentDate, today)/interval + 1)
		if obligation := Obligation(in); dueUnits*in.PlanAmount > obligation {
			return obligation
		}
		return dueUnits * in.PlanAmount
	default:
		return 0
	}
}

// monthsElapsed counts the whole calendar months from start to today.
func monthsElapsed(start, today models.Date) int {
	months := 0
	for !start.AddMonths(months + 1).After(today.Time) {
		months++
	}
	return months
}

// UnitsPaid returns how many whole plan units the paid amount covers.
// Partial units do not count toward coverage.
func UnitsPaid(in Input) int {
	if in.PlanAmount <= 0 {
		return 0
	}
	return int(in.PaidAmount / in.PlanAmount)
}

// Compute derives status and next due date as of today.
//
// Each fully paid unit pushes the due date forward by one interval from the
// enrollment date: monthly by one month, installment by the configured
// number of months. One-time plans are due at enrollment until settled.
func Compute(in Input, cfg Config, today models.Date) Result {
	switch in.Plan {
	case models.PlanOneTime:
		if in.PlanAmount > 0 && in.PaidAmount >= in.PlanAmount {
			return Result{Status: models.StatusPaid}
		}
		due := in.EnrollmentDate
		return Result{Status: classify(due, today, cfg.ReminderDays), NextDue: &due}

	case models.PlanInstallment:
		if obligation := Obligation(in); obligation > 0 && in.PaidAmount >= obligation {
			return Result{Status: models.StatusPaid}
		}
		interval := cfg.IntervalMonths
		if interval <= 0 {
			interval = 1
		}
		due := in.EnrollmentDate.AddMonths(UnitsPaid(in) * interval)
		return Result{Status: classify(due, today, cfg.ReminderDays), NextDue: &due}

	case models.PlanMonthly:
		// Open-ended: there is always a next month to cover.
		due := in.EnrollmentDate.AddMonths(UnitsPaid(in))
		return Result{Status: classify(due, today, cfg.ReminderDays), NextDue: &due}

	default:
		due := in.EnrollmentDate
		return Result{Status: models.StatusPending, NextDue: &due}
	}
}

// classify places a due date into overdue, due_soon or pending relative to
// today. The boundaries are exact day cutoffs: a payment due today is still
// pending, a payment due yesterday is overdue.
func classify(due, today models.Date, reminderDays int) models.PaymentStatus {
	days := today.DaysUntil(due)
	if days < 0 {
		return models.StatusOverdue
	}
	if days > 0 && days <= reminderDays {
		return models.StatusDueSoon
	}
	return models.StatusPending
}
