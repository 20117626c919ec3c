package models

// PaymentMethod is how a tuition payment was made.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
)

// Valid reports whether the method is one of the known values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheck:
		return true
	}
	return false
}

// PaymentTransaction is an append-only record of money received. Deletion is
// an explicit administrative action that triggers status recomputation.
type PaymentTransaction struct {
	ID            int64         `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	Amount        int64         `db:"amount" json:"amount"`
	PaymentDate   Date          `db:"payment_date" json:"payment_date"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt     Time          `db:"created_at" json:"created_at"`
}

// PaymentFilter narrows payment-history queries.
type PaymentFilter struct {
	StudentID string
	StartDate *Date
	EndDate   *Date
	Method    PaymentMethod
	MinAmount *int64
	MaxAmount *int64
	Page      int
	PageSize  int
}

// PlanStats aggregates payment state for one plan type.
type PlanStats struct {
	TotalStudents int   `json:"total_students"`
	TotalPaid     int64 `json:"total_paid"`
	TotalExpected int64 `json:"total_expected"`
	Paid          int   `json:"students_paid"`
	Pending       int   `json:"students_pending"`
	Overdue       int   `json:"students_overdue"`
	DueSoon       int   `json:"students_due_soon"`
}

// PlanBreakdown splits plan statistics per plan type.
type PlanBreakdown struct {
	OneTime     PlanStats `json:"one_time"`
	Monthly     PlanStats `json:"monthly"`
	Installment PlanStats `json:"installment"`
}

// PaymentSummary is the dashboard aggregate for the payments screen.
type PaymentSummary struct {
	TotalStudents  int                  `json:"total_students"`
	TotalPaid      int64                `json:"total_paid_amount"`
	TotalExpected  int64                `json:"total_expected_amount"`
	Paid           int                  `json:"students_paid"`
	Pending        int                  `json:"students_pending"`
	Overdue        int                  `json:"students_overdue"`
	DueSoon        int                  `json:"students_due_soon"`
	PlanBreakdown  PlanBreakdown        `json:"payment_plan_breakdown"`
	RecentPayments []PaymentTransaction `json:"recent_payments"`
}

// MethodStats aggregates transactions per payment method.
type MethodStats struct {
	Count       int   `db:"count" json:"count"`
	TotalAmount int64 `db:"total" json:"total_amount"`
}

// PaymentStatistics aggregates transactions over an optional date range.
type PaymentStatistics struct {
	TransactionCount int                           `json:"transaction_count"`
	TotalAmount      int64                         `json:"total_amount"`
	AverageAmount    float64                       `json:"average_amount"`
	MethodBreakdown  map[PaymentMethod]MethodStats `json:"payment_method_breakdown"`
}

// RecalcResult reports a batch recomputation run.
type RecalcResult struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
}
