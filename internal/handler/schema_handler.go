package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markazapp/markaz-core/internal/service"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
	"github.com/markazapp/markaz-core/pkg/response"
)

// SchemaHandler exposes migration inspection and recovery endpoints.
type SchemaHandler struct {
	service *service.SchemaService
}

// NewSchemaHandler constructs a schema handler.
func NewSchemaHandler(svc *service.SchemaService) *SchemaHandler {
	return &SchemaHandler{service: svc}
}

// Info godoc
// @Summary Schema version info
// @Tags Schema
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schema [get]
func (h *SchemaHandler) Info(c *gin.Context) {
	info, err := h.service.Info(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Validate godoc
// @Summary Validate migration history
// @Description Cross-check recorded migrations against the known catalog
// @Tags Schema
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schema/validate [get]
func (h *SchemaHandler) Validate(c *gin.Context) {
	result, err := h.service.Validate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Applied migrations
// @Tags Schema
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schema/history [get]
func (h *SchemaHandler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Pending godoc
// @Summary Pending migrations
// @Tags Schema
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schema/pending [get]
func (h *SchemaHandler) Pending(c *gin.Context) {
	pending, err := h.service.Pending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

type forceApplyRequest struct {
	Version int `json:"version"`
}

// ForceApply godoc
// @Summary Force-apply one migration
// @Description Run a single migration out of order. Recovery tool for a corrupted history.
// @Tags Schema
// @Accept json
// @Produce json
// @Param payload body handler.forceApplyRequest true "Migration version"
// @Success 204
// @Router /schema/force-apply [post]
func (h *SchemaHandler) ForceApply(c *gin.Context) {
	var req forceApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.ForceApply(c.Request.Context(), req.Version); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type markAppliedRequest struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// MarkApplied godoc
// @Summary Mark a migration applied
// @Description Record a migration as applied without running its script
// @Tags Schema
// @Accept json
// @Produce json
// @Param payload body handler.markAppliedRequest true "Migration version and description"
// @Success 204
// @Router /schema/mark-applied [post]
func (h *SchemaHandler) MarkApplied(c *gin.Context) {
	var req markAppliedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.MarkApplied(c.Request.Context(), req.Version, req.Description); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type rollbackRequest struct {
	Target int `json:"target"`
}

// Rollback godoc
// @Summary Plan a rollback
// @Description Report what rolling back to a target version would involve. Nothing is reverted.
// @Tags Schema
// @Accept json
// @Produce json
// @Param payload body handler.rollbackRequest true "Target version"
// @Success 200 {object} response.Envelope
// @Router /schema/rollback [post]
func (h *SchemaHandler) Rollback(c *gin.Context) {
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	info, err := h.service.Rollback(c.Request.Context(), req.Target)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}
