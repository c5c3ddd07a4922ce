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

// maxReceiptSize bounds a transfer receipt upload.
const maxReceiptSize = 10 << 20

// deliveryHandler handles HTTP requests related to deliveries.
type deliveryHandler struct {
	deliveryService portssvc.DeliverySvcFacade
}

func newDeliveryHandler(ds portssvc.DeliverySvcFacade) *deliveryHandler {
	return &deliveryHandler{deliveryService: ds}
}

// registerDeliveryRoutes registers routes related to deliveries.
func registerDeliveryRoutes(rg *gin.RouterGroup, deliveryService portssvc.DeliverySvcFacade) {
	h := newDeliveryHandler(deliveryService)

	deliveries := rg.Group("/deliveries")
	{
		deliveries.GET("", h.listDeliveries)
		deliveries.GET("/available", h.getAvailableDeliveries)
		deliveries.GET("/assigned", courierOnly, h.getAssignedDeliveries)
		deliveries.GET("/my-stats", courierOnly, h.getDeliveryManStats)
		deliveries.GET("/history", h.getDeliveryHistory)
		deliveries.GET("/stats", adminOnly, h.getDeliveryStats)
		deliveries.GET("/:id", h.getDelivery)

		deliveries.POST("", adminOnly, h.createDelivery)
		deliveries.PUT("/:id/assign", adminOnly, h.assignDelivery)
		deliveries.PUT("/:id/reassign", adminOnly, h.assignDelivery)
		deliveries.PUT("/:id/cancel", adminOnly, h.cancelDelivery)
		deliveries.PUT("/:id/packages/:packageId", adminOnly, h.updatePackageInfo)

		deliveries.PUT("/:id/start", courierOnly, h.startDelivery)
		deliveries.PUT("/:id/packages/:packageId/status", courierOnly, h.updatePackageStatus)
		deliveries.POST("/:id/receipt", courierOnly, h.uploadTransferReceipt)
		deliveries.POST("/:id/issues", h.reportIssue)
	}
}

// createDelivery godoc
// @Summary Create a delivery
// @Description Creates a pending delivery and generates a tracking number per package
// @Tags deliveries
// @Accept  json
// @Produce  json
// @Param   delivery body dto.CreateDeliveryRequest true "Delivery details"
// @Success 201 {object} domain.Delivery
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /deliveries [post]
func (h *deliveryHandler) createDelivery(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	delivery, err := h.deliveryService.CreateDelivery(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err, "Failed to create delivery")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Delivery created",
		slog.String("delivery_id", delivery.DeliveryID), slog.Int("packages", len(delivery.Packages)))
	c.JSON(http.StatusCreated, delivery)
}

// assignDelivery godoc
// @Summary Assign a delivery
// @Description Hands a delivery to an active courier. Also used to reassign.
// @Tags deliveries
// @Accept  json
// @Produce  json
// @Param   id path string true "Delivery ID"
// @Param   body body dto.AssignDeliveryRequest true "Courier"
// @Success 200 {object} domain.Delivery
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /deliveries/{id}/assign [put]
func (h *deliveryHandler) assignDelivery(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.AssignDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	delivery, err := h.deliveryService.AssignDelivery(c.Request.Context(), caller, c.Param("id"), req.DeliveryManID)
	if err != nil {
		respondError(c, err, "Failed to assign delivery")
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// startDelivery godoc
// @Summary Start a delivery
// @Tags deliveries
// @Produce  json
// @Param   id path string true "Delivery ID"
// @Success 200 {object} domain.Delivery
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /deliveries/{id}/start [put]
func (h *deliveryHandler) startDelivery(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	delivery, err := h.deliveryService.StartDelivery(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to start delivery")
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// updatePackageStatus godoc
// @Summary Update a package status
// @Description Applies one package transition with optional proof fields
// @Tags deliveries
// @Accept  json
// @Produce  json
// @Param   id path string true "Delivery ID"
// @Param   packageId path string true "Package ID"
// @Param   body body dto.UpdatePackageStatusRequest true "New status"
// @Success 200 {object} domain.Delivery
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Transition not allowed"
// @Security BearerAuth
// @Router /deliveries/{id}/packages/{packageId}/status [put]
func (h *deliveryHandler) updatePackageStatus(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.UpdatePackageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	delivery, err := h.deliveryService.UpdatePackageStatus(c.Request.Context(), caller, c.Param("id"), c.Param("packageId"), req)
	if err != nil {
		respondError(c, err, "Failed to update package status")
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// uploadTransferReceipt godoc
// @Summary Upload a transfer receipt
// @Description Stores the agency receipt and marks every package transferred
// @Tags deliveries
// @Accept  multipart/form-data
// @Produce  json
// @Param   id path string true "Delivery ID"
// @Param   receipt formData file true "Receipt image or PDF"
// @Success 200 {object} domain.Delivery
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse "Upload failed"
// @Security BearerAuth
// @Router /deliveries/{id}/receipt [post]
func (h *deliveryHandler) uploadTransferReceipt(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	header, err := c.FormFile("receipt")
	if err != nil {
		bindError(c, err)
		return
	}
	if header.Size > maxReceiptSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Receipt exceeds the 10MB limit"})
		return
	}
	file, err := header.Open()
	if err != nil {
		bindError(c, err)
		return
	}
	defer file.Close()

	blob := portssvc.BlobFile{
		Reader:      file,
		Size:        header.Size,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}
	delivery, err := h.deliveryService.UploadTransferReceipt(c.Request.Context(), caller, c.Param("id"), blob)
	if err != nil {
		respondError(c, err, "Failed to upload receipt")
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// reportIssue godoc
// @Summary Report a delivery issue
// @Tags deliveries
// @Accept  json
// @Produce  json
// @Param   id path string true "Delivery ID"
// @Param   body body dto.ReportIssueRequest true "Issue"
// @Success 201 {object} domain.Delivery
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /deliveries/{id}/issues [post]
func (h *deliveryHandler) reportIssue(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.ReportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	delivery, err := h.deliveryService.ReportIssue(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		respondError(c, err, "Failed to report issue")
		return
	}
	c.JSON(http.StatusCreated, delivery)
}

// cancelDelivery godoc
// @Summary Cancel a delivery
// @Description Soft-cancels a delivery that has no courier
// @Tags deliveries
// @Produce  json
// @Param   id path string true "Delivery ID"
// @Success 200 {object} domain.Delivery
// @Failure 409 {object} ErrorResponse "Courier still assigned"
// @Security BearerAuth
// @Router /deliveries/{id}/cancel [put]
func (h *deliveryHandler) cancelDelivery(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	delivery, err := h.deliveryService.CancelDelivery(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to cancel delivery")
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// updatePackageInfo godoc
// @Summary Edit a pending package
// @Tags deliveries
// @Accept  json
// @Produce  json
// @Param   id path string true "Delivery ID"
// @Param   packageId path string true "Package ID"
// @Param   body body dto.UpdatePackageInfoRequest true "Fields to change"
// @Success 200 {object} domain.Delivery
// @Failure 422 {object} ErrorResponse "Package no longer pending"
// @Security BearerAuth
// @Router /deliveries/{id}/packages/{packageId} [put]
func (h *deliveryHandler) updatePackageInfo(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.UpdatePackageInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	delivery, err := h.deliveryService.UpdatePackageInfo(c.Request.Context(), caller, c.Param("id"), c.Param("packageId"), req)
	if err != nil {
		respondError(c, err, "Failed to update package")
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// getDelivery godoc
// @Summary Get a delivery by ID
// @Tags deliveries
// @Produce  json
// @Param   id path string true "Delivery ID"
// @Success 200 {object} domain.Delivery
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /deliveries/{id} [get]
func (h *deliveryHandler) getDelivery(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	delivery, err := h.deliveryService.GetDelivery(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve delivery")
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// listDeliveries godoc
// @Summary List deliveries
// @Description Newest first with token pagination. Couriers only see their own deliveries.
// @Tags deliveries
// @Produce  json
// @Param   status query string false "Delivery status"
// @Param   deliveryType query string false "local or transfer"
// @Param   deliveryManId query string false "Courier ID"
// @Param   limit query int false "Page size" default(20)
// @Param   nextToken query string false "Pagination token"
// @Success 200 {object} dto.ListDeliveriesResponse
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /deliveries [get]
func (h *deliveryHandler) listDeliveries(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var params dto.ListDeliveriesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	deliveries, next, err := h.deliveryService.ListDeliveries(c.Request.Context(), caller, params)
	if err != nil {
		respondError(c, err, "Failed to list deliveries")
		return
	}
	c.JSON(http.StatusOK, dto.ListDeliveriesResponse{Deliveries: deliveries, NextToken: next})
}

// getAvailableDeliveries godoc
// @Summary List unassigned pending deliveries
// @Tags deliveries
// @Produce  json
// @Param   limit query int false "Page size" default(20)
// @Param   nextToken query string false "Pagination token"
// @Success 200 {object} dto.ListDeliveriesResponse
// @Security BearerAuth
// @Router /deliveries/available [get]
func (h *deliveryHandler) getAvailableDeliveries(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var params dto.ListDeliveriesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	deliveries, next, err := h.deliveryService.GetAvailableDeliveries(c.Request.Context(), caller, params.Limit, params.NextToken)
	if err != nil {
		respondError(c, err, "Failed to list available deliveries")
		return
	}
	c.JSON(http.StatusOK, dto.ListDeliveriesResponse{Deliveries: deliveries, NextToken: next})
}

// getAssignedDeliveries godoc
// @Summary List the caller's active deliveries
// @Tags deliveries
// @Produce  json
// @Success 200 {array} domain.Delivery
// @Security BearerAuth
// @Router /deliveries/assigned [get]
func (h *deliveryHandler) getAssignedDeliveries(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	deliveries, err := h.deliveryService.GetAssignedDeliveries(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to list assigned deliveries")
		return
	}
	c.JSON(http.StatusOK, deliveries)
}

// getDeliveryManStats godoc
// @Summary Courier dashboard counters
// @Tags deliveries
// @Produce  json
// @Success 200 {object} domain.DeliveryManStats
// @Security BearerAuth
// @Router /deliveries/my-stats [get]
func (h *deliveryHandler) getDeliveryManStats(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	stats, err := h.deliveryService.GetDeliveryManStats(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to compute statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// getDeliveryStats godoc
// @Summary Global delivery counts by status
// @Tags deliveries
// @Produce  json
// @Success 200 {object} domain.DeliveryStats
// @Security BearerAuth
// @Router /deliveries/stats [get]
func (h *deliveryHandler) getDeliveryStats(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	stats, err := h.deliveryService.GetDeliveryStats(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to compute statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// getDeliveryHistory godoc
// @Summary Completed work per day
// @Tags deliveries
// @Produce  json
// @Param   period query string false "day, week or month" default(week)
// @Success 200 {array} domain.DailyHistory
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /deliveries/history [get]
func (h *deliveryHandler) getDeliveryHistory(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var params dto.DeliveryHistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	history, err := h.deliveryService.GetDeliveryHistory(c.Request.Context(), caller, domain.HistoryPeriod(params.Period))
	if err != nil {
		respondError(c, err, "Failed to load delivery history")
		return
	}
	c.JSON(http.StatusOK, history)
}
