package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/gin-gonic/gin"
)

type trackingHandler struct {
	trackingService portssvc.TrackingSvc
}

func newTrackingHandler(ts portssvc.TrackingSvc) *trackingHandler {
	return &trackingHandler{trackingService: ts}
}

// registerTrackingRoutes registers the authenticated lookup.
func registerTrackingRoutes(rg *gin.RouterGroup, trackingService portssvc.TrackingSvc) {
	h := newTrackingHandler(trackingService)
	rg.GET("/tracking/:trackingNumber", h.trackPackage)
}

// registerPublicTrackingRoutes registers the redacted, rate-limited lookup.
func registerPublicTrackingRoutes(r *gin.Engine, trackingService portssvc.TrackingSvc, limit gin.HandlerFunc) {
	h := newTrackingHandler(trackingService)
	r.GET("/api/v1/public/tracking/:trackingNumber", limit, h.trackPackagePublic)
}

// trackPackage godoc
// @Summary Track a package
// @Description Returns the package and a summary of its delivery
// @Tags tracking
// @Produce  json
// @Param   trackingNumber path string true "Tracking number"
// @Success 200 {object} domain.TrackingResult
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tracking/{trackingNumber} [get]
func (h *trackingHandler) trackPackage(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	result, err := h.trackingService.TrackPackage(c.Request.Context(), caller, c.Param("trackingNumber"))
	if err != nil {
		respondError(c, err, "Failed to track package")
		return
	}
	c.JSON(http.StatusOK, result)
}

// trackPackagePublic godoc
// @Summary Public package tracking
// @Description Unauthenticated lookup limited to status, recipient, destination and timestamps
// @Tags tracking
// @Produce  json
// @Param   trackingNumber path string true "Tracking number"
// @Success 200 {object} domain.PublicTracking
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /public/tracking/{trackingNumber} [get]
func (h *trackingHandler) trackPackagePublic(c *gin.Context) {
	result, err := h.trackingService.TrackPackagePublic(c.Request.Context(), c.Param("trackingNumber"))
	if err != nil {
		respondError(c, err, "Failed to track package")
		return
	}
	c.JSON(http.StatusOK, result)
}
