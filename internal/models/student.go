package models

// PaymentPlan determines how a student's due dates and total obligation are
// derived.
type PaymentPlan string

const (
	PlanOneTime     PaymentPlan = "one-time"
	PlanMonthly     PaymentPlan = "monthly"
	PlanInstallment PaymentPlan = "installment"
)

// Valid reports whether the plan is one of the known values.
func (p PaymentPlan) Valid() bool {
	switch p {
	case PlanOneTime, PlanMonthly, PlanInstallment:
		return true
	}
	return false
}

// PaymentStatus is a cached projection of the Payment Status Engine output.
// It is recomputed on every mutation that can affect payment state and is
// never independently authoritative.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusPending PaymentStatus = "pending"
	StatusOverdue PaymentStatus = "overdue"
	StatusDueSoon PaymentStatus = "due_soon"
)

// Valid reports whether the status is one of the known values.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPaid, StatusPending, StatusOverdue, StatusDueSoon:
		return true
	}
	return false
}

// Student represents a learner registered in the center.
type Student struct {
	ID               string        `db:"id" json:"id"`
	Name             string        `db:"name" json:"name"`
	GroupID          int64         `db:"group_id" json:"group_id"`
	PaymentPlan      PaymentPlan   `db:"payment_plan" json:"payment_plan"`
	PlanAmount       int64         `db:"plan_amount" json:"plan_amount"`
	InstallmentCount *int          `db:"installment_count" json:"installment_count,omitempty"`
	PaidAmount       int64         `db:"paid_amount" json:"paid_amount"`
	EnrollmentDate   Date          `db:"enrollment_date" json:"enrollment_date"`
	NextDueDate      *Date         `db:"next_due_date" json:"next_due_date"`
	PaymentStatus    PaymentStatus `db:"payment_status" json:"payment_status"`
	CreatedAt        Time          `db:"created_at" json:"created_at"`
	UpdatedAt        Time          `db:"updated_at" json:"updated_at"`
}

// StudentDetail is a student joined with its group name for list views.
type StudentDetail struct {
	Student
	GroupName string `db:"group_name" json:"group_name"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	GroupID   int64
	Status    PaymentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PaymentState is the recomputed projection written back to a student row.
type PaymentState struct {
	Status  PaymentStatus
	NextDue *Date
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
