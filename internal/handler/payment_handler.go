package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/markazapp/markaz-core/internal/models"
	"github.com/markazapp/markaz-core/internal/service"
	appErrors "github.com/markazapp/markaz-core/pkg/errors"
	"github.com/markazapp/markaz-core/pkg/response"
)

// PaymentHandler exposes payment endpoints.
type PaymentHandler struct {
	service *service.PaymentService
	metrics *service.MetricsService
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(svc *service.PaymentService, metrics *service.MetricsService) *PaymentHandler {
	return &PaymentHandler{service: svc, metrics: metrics}
}

// Record godoc
// @Summary Record payment
// @Description Record a payment and update the student's status projection atomically
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.service.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObservePayment(payment.Amount)
	response.Created(c, payment)
}

// Delete godoc
// @Summary Delete payment
// @Description Remove a transaction from the ledger and recompute the student's status
// @Tags Payments
// @Produce json
// @Param id path int true "Payment ID"
// @Success 204
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary List payments
// @Description Payment history, newest first, with filters and pagination
// @Tags Payments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Param method query string false "Filter by payment method"
// @Param minAmount query int false "Minimum amount"
// @Param maxAmount query int false "Maximum amount"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) History(c *gin.Context) {
	var filter models.PaymentFilter
	filter.StudentID = c.Query("studentId")
	if method := c.Query("method"); method != "" {
		filter.Method = models.PaymentMethod(method)
	}
	from, err := parseDateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.StartDate = from
	to, err := parseDateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.EndDate = to
	if raw := c.Query("minAmount"); raw != "" {
		if val, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.MinAmount = &val
		}
	}
	if raw := c.Query("maxAmount"); raw != "" {
		if val, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.MaxAmount = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	payments, pagination, err := h.service.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Summary godoc
// @Summary Payment summary
// @Description Totals, per-plan breakdown, status counts and recent payments
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/summary [get]
func (h *PaymentHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Statistics godoc
// @Summary Payment statistics
// @Tags Payments
// @Produce json
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /payments/statistics [get]
func (h *PaymentHandler) Statistics(c *gin.Context) {
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
	stats, err := h.service.Statistics(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Recalculate godoc
// @Summary Recalculate payment statuses
// @Description Recompute the status projection for every student in one transaction
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/recalculate [post]
func (h *PaymentHandler) Recalculate(c *gin.Context) {
	result, err := h.service.RecalculateAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveRecalculation(result)
	response.JSON(c, http.StatusOK, result, nil)
}
