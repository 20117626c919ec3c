package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/service"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
	"github.com/markazapp/markaz-core/pkg/response"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit entries
// @Description Audit trail, newest first, with filters
// @Tags Audit
// @Produce json
// @Param table query string false "Filter by table name"
// @Param recordId query string false "Filter by record ID"
// @Param action query string false "Filter by action type"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	var filter models.AuditFilter
	filter.TableName = c.Query("table")
	filter.RecordID = c.Query("recordId")
	if action := c.Query("action"); action != "" {
		filter.Action = models.AuditAction(action)
	}
	if raw := c.Query("limit"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			filter.Limit = val
		}
	}

	entries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

type purgeAuditRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// Purge godoc
// @Summary Purge old audit entries
// @Tags Audit
// @Accept json
// @Produce json
// @Param payload body handler.purgeAuditRequest true "Retention window in days"
// @Success 200 {object} response.Envelope
// @Router /audit/purge [post]
func (h *AuditHandler) Purge(c *gin.Context) {
	var req purgeAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.OlderThanDays <= 0 {
		response.Error(c, appErrors.Validation("invalid retention window", []string{"older_than_days must be positive"}))
		return
	}
	cutoff := models.Time{Time: time.Now().UTC().AddDate(0, 0, -req.OlderThanDays)}
	purged, err := h.service.PurgeOlderThan(c.Request.Context(), cutoff)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"purged": purged}, nil)
}
