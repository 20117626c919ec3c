package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/service"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
	"github.com/markazapp/markaz-core/pkg/response"
)

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
	metrics *service.MetricsService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService, metrics *service.MetricsService) *AttendanceHandler {
	return &AttendanceHandler{service: svc, metrics: metrics}
}

type markAttendanceRequest struct {
	StudentID string      `json:"student_id"`
	Date      models.Date `json:"date"`
}

// Mark godoc
// @Summary Mark attendance
// @Description Mark a student present on a day. Re-marking the same day is an idempotent no-op.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body handler.markAttendanceRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req markAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Mark(c.Request.Context(), req.StudentID, req.Date)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrLockTimeout) {
			h.metrics.ObserveAttendanceMark("timeout")
		}
		response.Error(c, err)
		return
	}
	if result.AlreadyMarked {
		h.metrics.ObserveAttendanceMark("already_marked")
	} else {
		h.metrics.ObserveAttendanceMark("marked")
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Unmark godoc
// @Summary Unmark attendance
// @Tags Attendance
// @Produce json
// @Param id path int true "Attendance record ID"
// @Success 204
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Unmark(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Unmark(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ByDate godoc
// @Summary List attendance for a day
// @Tags Attendance
// @Produce json
// @Param date query string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) ByDate(c *gin.Context) {
	date, err := models.ParseDate(c.DefaultQuery("date", models.Today().String()))
	if err != nil {
		response.Error(c, appErrors.Validation("invalid date", []string{"date must be YYYY-MM-DD"}))
		return
	}
	records, err := h.service.ByDate(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// HistoryByStudent godoc
// @Summary Attendance history for a student
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) HistoryByStudent(c *gin.Context) {
	from, err := parseDateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.service.HistoryByStudent(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Stats godoc
// @Summary Attendance statistics for a student
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func parseDateQuery(c *gin.Context, key string) (*models.Date, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Validation("invalid "+key, []string{key + " must be YYYY-MM-DD"})
	}
	return &date, nil
}
