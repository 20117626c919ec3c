package models

import "time"

// SystemMetrics is a lightweight snapshot for the maintenance surface,
// summarising the Prometheus counters without scraping.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	AttendanceMarks          uint64    `json:"attendance_marks_total"`
	PaymentsRecorded         uint64    `json:"payments_recorded_total"`
	LockTimeouts             uint64    `json:"lock_timeouts_total"`
	RecalculationRuns        uint64    `json:"recalculation_runs_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
