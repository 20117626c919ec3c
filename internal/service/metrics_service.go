package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markazapp/markaz-core/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides
// lightweight snapshots for the maintenance surface.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	attendanceMarks *prometheus.CounterVec
	paymentsTotal   prometheus.Counter
	paymentsAmount  prometheus.Counter
	lockTimeouts    prometheus.Counter
	recalcRuns      prometheus.Counter
	recalcChanged   prometheus.Counter
	studentsByPlan  *prometheus.GaugeVec

	requestCount         uint64
	requestDurationTotal uint64
	attendanceMarkCount  uint64
	paymentCount         uint64
	lockTimeoutCount     uint64
	recalcRunCount       uint64
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of command requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of command requests",
	}, []string{"method", "path", "status"})

	attendanceMarks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_marks_total",
		Help: "Attendance mark commands by result",
	}, []string{"result"})

	paymentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total payment transactions recorded",
	})

	paymentsAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_amount_total",
		Help: "Total amount recorded across payment transactions",
	})

	lockTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_lock_timeouts_total",
		Help: "Attendance guard acquisitions abandoned on timeout",
	})

	recalcRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_recalculation_runs_total",
		Help: "Batch payment status recalculation runs",
	})

	recalcChanged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_recalculation_changed_total",
		Help: "Student rows changed by batch recalculations",
	})

	studentsByPlan := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "students_by_payment_status",
		Help: "Current student count per payment status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, attendanceMarks,
		paymentsTotal, paymentsAmount, lockTimeouts, recalcRuns, recalcChanged,
		studentsByPlan, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		attendanceMarks: attendanceMarks,
		paymentsTotal:   paymentsTotal,
		paymentsAmount:  paymentsAmount,
		lockTimeouts:    lockTimeouts,
		recalcRuns:      recalcRuns,
		recalcChanged:   recalcChanged,
		studentsByPlan:  studentsByPlan,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records command metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveAttendanceMark counts one mark command. result is "marked",
// "already_marked" or "timeout".
func (m *MetricsService) ObserveAttendanceMark(result string) {
	if m == nil {
		return
	}
	m.attendanceMarks.WithLabelValues(result).Inc()
	atomic.AddUint64(&m.attendanceMarkCount, 1)
	if result == "timeout" {
		m.lockTimeouts.Inc()
		atomic.AddUint64(&m.lockTimeoutCount, 1)
	}
}

// ObservePayment counts one recorded payment transaction.
func (m *MetricsService) ObservePayment(amount int64) {
	if m == nil {
		return
	}
	m.paymentsTotal.Inc()
	m.paymentsAmount.Add(float64(amount))
	atomic.AddUint64(&m.paymentCount, 1)
}

// ObserveRecalculation records one batch recalculation run.
func (m *MetricsService) ObserveRecalculation(result *models.RecalcResult) {
	if m == nil || result == nil {
		return
	}
	m.recalcRuns.Inc()
	m.recalcChanged.Add(float64(result.Changed))
	atomic.AddUint64(&m.recalcRunCount, 1)
}

// SetStudentsByStatus refreshes the per-status gauge.
func (m *MetricsService) SetStudentsByStatus(counts map[models.PaymentStatus]int) {
	if m == nil {
		return
	}
	for _, status := range []models.PaymentStatus{
		models.StatusPaid, models.StatusPending, models.StatusOverdue, models.StatusDueSoon,
	} {
		m.studentsByPlan.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// Snapshot returns aggregated counters for the maintenance surface.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		AttendanceMarks:          atomic.LoadUint64(&m.attendanceMarkCount),
		PaymentsRecorded:         atomic.LoadUint64(&m.paymentCount),
		LockTimeouts:             atomic.LoadUint64(&m.lockTimeoutCount),
		RecalculationRuns:        atomic.LoadUint64(&m.recalcRunCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
