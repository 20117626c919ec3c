package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markazapp/markaz-core/internal/service"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
	"github.com/markazapp/markaz-core/pkg/response"
)

// MaintenanceHandler exposes database maintenance and introspection endpoints.
type MaintenanceHandler struct {
	service    *service.MaintenanceService
	attendance *service.AttendanceService
	metrics    *service.MetricsService
}

// NewMaintenanceHandler constructs a maintenance handler.
func NewMaintenanceHandler(svc *service.MaintenanceService, attendance *service.AttendanceService, metrics *service.MetricsService) *MaintenanceHandler {
	return &MaintenanceHandler{service: svc, attendance: attendance, metrics: metrics}
}

// Stats godoc
// @Summary Database statistics
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /maintenance/stats [get]
func (h *MaintenanceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Vacuum godoc
// @Summary Vacuum the database
// @Tags Maintenance
// @Produce json
// @Success 204
// @Router /maintenance/vacuum [post]
func (h *MaintenanceHandler) Vacuum(c *gin.Context) {
	if err := h.service.Vacuum(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type backupRequest struct {
	Dir string `json:"dir"`
}

// Backup godoc
// @Summary Back up the database
// @Description Write a timestamped copy of the database file. Empty dir uses the database directory.
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body handler.backupRequest true "Backup destination"
// @Success 200 {object} response.Envelope
// @Router /maintenance/backup [post]
func (h *MaintenanceHandler) Backup(c *gin.Context) {
	var req backupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	path, err := h.service.Backup(c.Request.Context(), req.Dir)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"path": path}, nil)
}

// Metrics godoc
// @Summary Runtime metrics snapshot
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /maintenance/metrics [get]
func (h *MaintenanceHandler) Metrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// Locks godoc
// @Summary Attendance lock guard statistics
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /maintenance/locks [get]
func (h *MaintenanceHandler) Locks(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.attendance.GuardStats(), nil)
}
