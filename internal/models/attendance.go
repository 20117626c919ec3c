package models

// AttendanceRecord marks a student present on a calendar day. At most one
// record exists per (student_id, date) pair.
type AttendanceRecord struct {
	ID        int64  `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	Date      Date   `db:"date" json:"date"`
	CreatedAt Time   `db:"created_at" json:"created_at"`
}

// MarkResult is the outcome of a mark-attendance command. AlreadyMarked is a
// defined idempotent result, not an error.
type MarkResult struct {
	Record        *AttendanceRecord `json:"record,omitempty"`
	AlreadyMarked bool              `json:"already_marked"`
}

// AttendanceStats summarises a student's attendance history.
type AttendanceStats struct {
	StudentID string `db:"student_id" json:"student_id"`
	TotalDays int    `db:"total_days" json:"total_days"`
	FirstDate *Date  `db:"first_date" json:"first_date,omitempty"`
	LastDate  *Date  `db:"last_date" json:"last_date,omitempty"`
}

// DailyAttendance is one present student in a per-day summary.
type DailyAttendance struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	GroupName   string `db:"group_name" json:"group_name"`
	Date        Date   `db:"date" json:"date"`
	CreatedAt   Time   `db:"created_at" json:"created_at"`
}
