package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/SscSPs/geexpress_backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// reconciliationHandler serves the courier cash declaration and the admin settlement desk.
type reconciliationHandler struct {
	reconciliationService portssvc.ReconciliationSvcFacade
}

func newReconciliationHandler(rs portssvc.ReconciliationSvcFacade) *reconciliationHandler {
	return &reconciliationHandler{reconciliationService: rs}
}

func registerReconciliationRoutes(rg *gin.RouterGroup, reconciliationService portssvc.ReconciliationSvcFacade) {
	h := newReconciliationHandler(reconciliationService)

	reconciliation := rg.Group("/reconciliation", courierOnly)
	{
		reconciliation.GET("/summary", h.getReconciliationSummary)
		reconciliation.POST("/request", h.requestReconciliation)
	}

	settlements := rg.Group("/settlements")
	{
		settlements.GET("/history", h.getSettlementHistory)
		settlements.GET("/pending", adminOnly, h.getDriversWithPendingSettlement)
		settlements.GET("/stats", adminOnly, h.getSettlementStats)
		settlements.GET("/drivers/:driverId", adminOnly, h.getDriverSettlementDetails)
		settlements.POST("/drivers/:driverId/settle", adminOnly, h.settleDriverPayment)
	}
}

// getReconciliationSummary godoc
// @Summary Courier cash balance
// @Description Cash held, pending returns and any open declaration of the caller
// @Tags reconciliation
// @Produce  json
// @Success 200 {object} domain.ReconciliationSummary
// @Security BearerAuth
// @Router /reconciliation/summary [get]
func (h *reconciliationHandler) getReconciliationSummary(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	summary, err := h.reconciliationService.GetReconciliationSummary(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to compute reconciliation summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// requestReconciliation godoc
// @Summary Declare collected cash
// @Tags reconciliation
// @Accept  json
// @Produce  json
// @Param   body body dto.RequestReconciliationRequest true "Declaration"
// @Success 201 {object} domain.ReconciliationRequest
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /reconciliation/request [post]
func (h *reconciliationHandler) requestReconciliation(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.RequestReconciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	request, err := h.reconciliationService.RequestReconciliation(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err, "Failed to record reconciliation request")
		return
	}
	c.JSON(http.StatusCreated, request)
}

// getDriversWithPendingSettlement godoc
// @Summary Couriers holding cash or returns
// @Tags settlements
// @Produce  json
// @Success 200 {object} domain.PendingSettlementOverview
// @Security BearerAuth
// @Router /settlements/pending [get]
func (h *reconciliationHandler) getDriversWithPendingSettlement(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	overview, err := h.reconciliationService.GetDriversWithPendingSettlement(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to list pending settlements")
		return
	}
	c.JSON(http.StatusOK, overview)
}

// getDriverSettlementDetails godoc
// @Summary One courier's balance before settling
// @Tags settlements
// @Produce  json
// @Param   driverId path string true "Courier ID"
// @Success 200 {object} domain.DriverSettlementDetails
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /settlements/drivers/{driverId} [get]
func (h *reconciliationHandler) getDriverSettlementDetails(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	details, err := h.reconciliationService.GetDriverSettlementDetails(c.Request.Context(), caller, c.Param("driverId"))
	if err != nil {
		respondError(c, err, "Failed to load settlement details")
		return
	}
	c.JSON(http.StatusOK, details)
}

// settleDriverPayment godoc
// @Summary Settle a courier
// @Description Records the cash handed over. A shortfall becomes a pending debt.
// @Tags settlements
// @Accept  json
// @Produce  json
// @Param   driverId path string true "Courier ID"
// @Param   body body dto.SettleDriverPaymentRequest true "Amount collected"
// @Success 201 {object} domain.SettlementRecord
// @Failure 400 {object} ErrorResponse "Nothing to settle"
// @Failure 409 {object} ErrorResponse "Settlement already in progress"
// @Security BearerAuth
// @Router /settlements/drivers/{driverId}/settle [post]
func (h *reconciliationHandler) settleDriverPayment(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.SettleDriverPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	driverID := c.Param("driverId")
	record, err := h.reconciliationService.SettleDriverPayment(c.Request.Context(), caller, driverID, req)
	if err != nil {
		respondError(c, err, "Failed to settle courier")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Courier settled",
		slog.String("driver_id", driverID),
		slog.String("settlement_id", record.SettlementID),
		slog.String("debt_generated", record.DebtGenerated.String()))
	c.JSON(http.StatusCreated, record)
}

// getSettlementHistory godoc
// @Summary Settlement history
// @Description Admins may filter by courier. Couriers only see their own settlements.
// @Tags settlements
// @Produce  json
// @Param   driverId query string false "Courier ID"
// @Param   from query string false "Start date (YYYY-MM-DD)"
// @Param   to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} domain.SettlementHistory
// @Security BearerAuth
// @Router /settlements/history [get]
func (h *reconciliationHandler) getSettlementHistory(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var params dto.SettlementHistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	filter := domain.SettlementFilter{Range: params.ToDateRange()}
	if params.DriverID != nil && *params.DriverID != "" {
		filter.DriverID = params.DriverID
	}
	history, err := h.reconciliationService.GetSettlementHistory(c.Request.Context(), caller, filter)
	if err != nil {
		respondError(c, err, "Failed to load settlement history")
		return
	}
	c.JSON(http.StatusOK, history)
}

// getSettlementStats godoc
// @Summary Settlement totals over a window
// @Tags settlements
// @Produce  json
// @Param   from query string false "Start date (YYYY-MM-DD)"
// @Param   to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} domain.SettlementStats
// @Security BearerAuth
// @Router /settlements/stats [get]
func (h *reconciliationHandler) getSettlementStats(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var params dto.DateRangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	stats, err := h.reconciliationService.GetSettlementStats(c.Request.Context(), caller, params.ToDateRange())
	if err != nil {
		respondError(c, err, "Failed to compute settlement statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}
