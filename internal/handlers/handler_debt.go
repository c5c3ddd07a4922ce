package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/gin-gonic/gin"
)

type debtHandler struct {
	debtService portssvc.DebtSvcFacade
}

func newDebtHandler(ds portssvc.DebtSvcFacade) *debtHandler {
	return &debtHandler{debtService: ds}
}

// registerDebtRoutes registers routes related to courier debts.
func registerDebtRoutes(rg *gin.RouterGroup, debtService portssvc.DebtSvcFacade) {
	h := newDebtHandler(debtService)

	debts := rg.Group("/debts")
	{
		debts.GET("/pending", adminOnly, h.getAllPendingDebts)
		debts.GET("/stats", adminOnly, h.getDebtStatistics)
		debts.GET("/drivers/:driverId", h.getDriverDebts)
		debts.GET("/drivers/:driverId/balance", h.getDriverDebtBalance)
		debts.GET("/drivers/:driverId/history", h.getDriverDebtHistory)
		debts.PUT("/:id/cancel", adminOnly, h.cancelDebt)
		debts.PUT("/:id/pay", adminOnly, h.markDebtAsPaid)
	}
}

// cancelDebt godoc
// @Summary Cancel a debt
// @Tags debts
// @Accept  json
// @Produce  json
// @Param   id path string true "Debt ID"
// @Param   body body dto.CancelDebtRequest true "Reason"
// @Success 200 {object} domain.DebtRecord
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Debt already closed"
// @Security BearerAuth
// @Router /debts/{id}/cancel [put]
func (h *debtHandler) cancelDebt(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.CancelDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	debt, err := h.debtService.CancelDebt(c.Request.Context(), caller, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err, "Failed to cancel debt")
		return
	}
	c.JSON(http.StatusOK, debt)
}

// markDebtAsPaid godoc
// @Summary Record a debt payment
// @Tags debts
// @Accept  json
// @Produce  json
// @Param   id path string true "Debt ID"
// @Param   body body dto.MarkDebtPaidRequest true "Payment reference"
// @Success 200 {object} domain.DebtRecord
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Debt already closed"
// @Security BearerAuth
// @Router /debts/{id}/pay [put]
func (h *debtHandler) markDebtAsPaid(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.MarkDebtPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	debt, err := h.debtService.MarkDebtAsPaid(c.Request.Context(), caller, c.Param("id"), req.PaymentReference)
	if err != nil {
		respondError(c, err, "Failed to mark debt as paid")
		return
	}
	c.JSON(http.StatusOK, debt)
}

// getDriverDebts godoc
// @Summary A courier's debts
// @Tags debts
// @Produce  json
// @Param   driverId path string true "Courier ID"
// @Success 200 {object} domain.DriverDebts
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /debts/drivers/{driverId} [get]
func (h *debtHandler) getDriverDebts(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	debts, err := h.debtService.GetDriverDebts(c.Request.Context(), caller, c.Param("driverId"))
	if err != nil {
		respondError(c, err, "Failed to load debts")
		return
	}
	c.JSON(http.StatusOK, debts)
}

// getDriverDebtBalance godoc
// @Summary A courier's debt balance
// @Tags debts
// @Produce  json
// @Param   driverId path string true "Courier ID"
// @Success 200 {object} domain.DebtBalance
// @Security BearerAuth
// @Router /debts/drivers/{driverId}/balance [get]
func (h *debtHandler) getDriverDebtBalance(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	balance, err := h.debtService.GetDriverDebtBalance(c.Request.Context(), caller, c.Param("driverId"))
	if err != nil {
		respondError(c, err, "Failed to load debt balance")
		return
	}
	c.JSON(http.StatusOK, balance)
}

// getDriverDebtHistory godoc
// @Summary A courier's debt history
// @Tags debts
// @Produce  json
// @Param   driverId path string true "Courier ID"
// @Param   status query string false "pending, paid or cancelled"
// @Param   from query string false "Start date (YYYY-MM-DD)"
// @Param   to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} domain.DriverDebts
// @Security BearerAuth
// @Router /debts/drivers/{driverId}/history [get]
func (h *debtHandler) getDriverDebtHistory(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var params dto.DebtHistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	history, err := h.debtService.GetDriverDebtHistory(c.Request.Context(), caller, c.Param("driverId"), params)
	if err != nil {
		respondError(c, err, "Failed to load debt history")
		return
	}
	c.JSON(http.StatusOK, history)
}

// getAllPendingDebts godoc
// @Summary All pending debts
// @Tags debts
// @Produce  json
// @Success 200 {object} domain.PendingDebtsOverview
// @Security BearerAuth
// @Router /debts/pending [get]
func (h *debtHandler) getAllPendingDebts(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	overview, err := h.debtService.GetAllPendingDebts(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to list pending debts")
		return
	}
	c.JSON(http.StatusOK, overview)
}

// getDebtStatistics godoc
// @Summary Debt totals and top debtors
// @Tags debts
// @Produce  json
// @Success 200 {object} domain.DebtStatistics
// @Security BearerAuth
// @Router /debts/stats [get]
func (h *debtHandler) getDebtStatistics(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	stats, err := h.debtService.GetDebtStatistics(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to compute debt statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}
