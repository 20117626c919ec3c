package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/service"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
	"github.com/markazapp/markaz-core/pkg/response"
)

// SettingsHandler exposes payment and application settings endpoints.
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(svc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: svc}
}

// GetPayment godoc
// @Summary Get payment settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/payment [get]
func (h *SettingsHandler) GetPayment(c *gin.Context) {
	settings, err := h.service.GetPayment(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdatePayment godoc
// @Summary Update payment settings
// @Description Update the payment settings singleton and queue a status recalculation
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body service.UpdatePaymentSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /settings/payment [put]
func (h *SettingsHandler) UpdatePayment(c *gin.Context) {
	var req service.UpdatePaymentSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	settings, err := h.service.UpdatePayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// GetApp godoc
// @Summary Get application settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/app [get]
func (h *SettingsHandler) GetApp(c *gin.Context) {
	settings, err := h.service.GetApp(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdateApp godoc
// @Summary Update application settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body models.AppSettings true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /settings/app [put]
func (h *SettingsHandler) UpdateApp(c *gin.Context) {
	var req models.AppSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.UpdateApp(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	settings, err := h.service.GetApp(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

type settingValuePayload struct {
	Value string `json:"value"`
}

// GetKey godoc
// @Summary Get raw setting
// @Tags Settings
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} response.Envelope
// @Router /settings/keys/{key} [get]
func (h *SettingsHandler) GetKey(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// DeleteKey godoc
// @Summary Delete raw setting
// @Tags Settings
// @Produce json
// @Param key path string true "Setting key"
// @Success 204
// @Router /settings/keys/{key} [delete]
func (h *SettingsHandler) DeleteKey(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetKey godoc
// @Summary Set raw setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param payload body handler.settingValuePayload true "Setting value"
// @Success 200 {object} response.Envelope
// @Router /settings/keys/{key} [put]
func (h *SettingsHandler) SetKey(c *gin.Context) {
	var req settingValuePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.Set(c.Request.Context(), c.Param("key"), req.Value); err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
