package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/markazapp/markaz-core/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Students    *StudentHandler
	Groups      *GroupHandler
	Attendance  *AttendanceHandler
	Payments    *PaymentHandler
	Settings    *SettingsHandler
	Schema      *SchemaHandler
	Maintenance *MaintenanceHandler
	Audit       *AuditHandler
	Metrics     *service.MetricsService
}

// RegisterRoutes mounts all application routes on the given group.
func RegisterRoutes(r *gin.RouterGroup, h Handlers) {
	r.Use(metricsMiddleware(h.Metrics))

	r.GET("/students", h.Students.List)
	r.POST("/students", h.Students.Create)
	r.GET("/students/:id", h.Students.Get)
	r.PUT("/students/:id", h.Students.Update)
	r.DELETE("/students/:id", h.Students.Delete)
	r.GET("/students-by-status/:status", h.Students.ListByStatus)
	r.GET("/students/:id/attendance", h.Attendance.HistoryByStudent)
	r.GET("/students/:id/attendance/stats", h.Attendance.Stats)

	r.GET("/groups", h.Groups.List)
	r.POST("/groups", h.Groups.Create)
	r.GET("/groups/:id", h.Groups.Get)
	r.PUT("/groups/:id", h.Groups.Update)
	r.DELETE("/groups/:id", h.Groups.Delete)

	r.GET("/attendance", h.Attendance.ByDate)
	r.POST("/attendance", h.Attendance.Mark)
	r.DELETE("/attendance/:id", h.Attendance.Unmark)

	r.GET("/payments", h.Payments.History)
	r.POST("/payments", h.Payments.Record)
	r.DELETE("/payments/:id", h.Payments.Delete)
	r.GET("/payments/summary", h.Payments.Summary)
	r.GET("/payments/statistics", h.Payments.Statistics)
	r.POST("/payments/recalculate", h.Payments.Recalculate)

	r.GET("/settings/payment", h.Settings.GetPayment)
	r.PUT("/settings/payment", h.Settings.UpdatePayment)
	r.GET("/settings/app", h.Settings.GetApp)
	r.PUT("/settings/app", h.Settings.UpdateApp)
	r.GET("/settings/keys/:key", h.Settings.GetKey)
	r.PUT("/settings/keys/:key", h.Settings.SetKey)
	r.DELETE("/settings/keys/:key", h.Settings.DeleteKey)

	r.GET("/schema", h.Schema.Info)
	r.GET("/schema/validate", h.Schema.Validate)
	r.GET("/schema/history", h.Schema.History)
	r.GET("/schema/pending", h.Schema.Pending)
	r.POST("/schema/force-apply", h.Schema.ForceApply)
	r.POST("/schema/mark-applied", h.Schema.MarkApplied)
	r.POST("/schema/rollback", h.Schema.Rollback)

	r.GET("/maintenance/stats", h.Maintenance.Stats)
	r.POST("/maintenance/vacuum", h.Maintenance.Vacuum)
	r.POST("/maintenance/backup", h.Maintenance.Backup)
	r.GET("/maintenance/metrics", h.Maintenance.Metrics)
	r.GET("/maintenance/locks", h.Maintenance.Locks)

	r.GET("/audit", h.Audit.List)
	r.POST("/audit/purge", h.Audit.Purge)
}

func metricsMiddleware(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
