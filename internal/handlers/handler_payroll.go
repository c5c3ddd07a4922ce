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

type payrollHandler struct {
	payrollService portssvc.PayrollSvcFacade
}

func newPayrollHandler(ps portssvc.PayrollSvcFacade) *payrollHandler {
	return &payrollHandler{payrollService: ps}
}

func registerPayrollRoutes(rg *gin.RouterGroup, payrollService portssvc.PayrollSvcFacade) {
	h := newPayrollHandler(payrollService)

	payroll := rg.Group("/payroll/drivers/:driverId")
	{
		payroll.POST("/calculate", adminOnly, h.calculateDriverSalary)
		payroll.POST("/pay", adminOnly, h.processSalaryPayment)
		payroll.GET("/history", h.getDriverPayrollHistory)
	}
}

// calculateDriverSalary godoc
// @Summary Preview a salary
// @Description Computes the debt deduction (capped at 30% of the base) without writing anything
// @Tags payroll
// @Accept  json
// @Produce  json
// @Param   driverId path string true "Courier ID"
// @Param   body body dto.CalculateSalaryRequest true "Base salary and period"
// @Success 200 {object} domain.SalaryPreview
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /payroll/drivers/{driverId}/calculate [post]
func (h *payrollHandler) calculateDriverSalary(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.CalculateSalaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	period := domain.DateRange{From: req.From, To: req.To}
	preview, err := h.payrollService.CalculateDriverSalary(c.Request.Context(), caller, c.Param("driverId"), req.BaseSalary, period)
	if err != nil {
		respondError(c, err, "Failed to calculate salary")
		return
	}
	c.JSON(http.StatusOK, preview)
}

// processSalaryPayment godoc
// @Summary Pay a salary
// @Description Pays the net salary and retires pending debts oldest first
// @Tags payroll
// @Accept  json
// @Produce  json
// @Param   driverId path string true "Courier ID"
// @Param   body body dto.ProcessSalaryRequest true "Base salary and reference"
// @Success 201 {object} domain.PayrollRecord
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /payroll/drivers/{driverId}/pay [post]
func (h *payrollHandler) processSalaryPayment(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.ProcessSalaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	record, err := h.payrollService.ProcessSalaryPayment(c.Request.Context(), caller, c.Param("driverId"), req)
	if err != nil {
		respondError(c, err, "Failed to process salary payment")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Salary paid",
		slog.String("payroll_id", record.PayrollID),
		slog.String("net_salary", record.NetSalary.String()))
	c.JSON(http.StatusCreated, record)
}

// getDriverPayrollHistory godoc
// @Summary Payroll history
// @Tags payroll
// @Produce  json
// @Param   driverId path string true "Courier ID"
// @Success 200 {object} domain.PayrollHistory
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /payroll/drivers/{driverId}/history [get]
func (h *payrollHandler) getDriverPayrollHistory(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	history, err := h.payrollService.GetDriverPayrollHistory(c.Request.Context(), caller, c.Param("driverId"))
	if err != nil {
		respondError(c, err, "Failed to load payroll history")
		return
	}
	c.JSON(http.StatusOK, history)
}
