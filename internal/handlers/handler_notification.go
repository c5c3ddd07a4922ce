package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/gin-gonic/gin"
)

type notificationHandler struct {
	notificationService portssvc.NotificationSvcFacade
}

func newNotificationHandler(ns portssvc.NotificationSvcFacade) *notificationHandler {
	return &notificationHandler{notificationService: ns}
}

func registerNotificationRoutes(rg *gin.RouterGroup, notificationService portssvc.NotificationSvcFacade) {
	h := newNotificationHandler(notificationService)

	notifications := rg.Group("/notifications")
	{
		notifications.GET("", h.listNotifications)
		notifications.POST("", adminOnly, h.createNotification)
		notifications.PUT("/read-all", h.markAllAsRead)
		notifications.PUT("/:id/read", h.markAsRead)
	}
}

// listNotifications godoc
// @Summary The caller's inbox
// @Tags notifications
// @Produce  json
// @Param   limit query int false "Max items" default(50)
// @Success 200 {array} domain.Notification
// @Security BearerAuth
// @Router /notifications [get]
func (h *notificationHandler) listNotifications(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var params dto.ListNotificationsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, err)
		return
	}

	items, err := h.notificationService.ListNotifications(c.Request.Context(), caller, params.Limit)
	if err != nil {
		respondError(c, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, items)
}

// markAsRead godoc
// @Summary Mark a notification read
// @Tags notifications
// @Param   id path string true "Notification ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id}/read [put]
func (h *notificationHandler) markAsRead(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	if err := h.notificationService.MarkAsRead(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondError(c, err, "Failed to mark notification as read")
		return
	}
	c.Status(http.StatusNoContent)
}

// markAllAsRead godoc
// @Summary Mark every notification read
// @Tags notifications
// @Produce  json
// @Success 200 {object} dto.MarkAllReadResponse
// @Security BearerAuth
// @Router /notifications/read-all [put]
func (h *notificationHandler) markAllAsRead(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	n, err := h.notificationService.MarkAllAsRead(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err, "Failed to mark notifications as read")
		return
	}
	c.JSON(http.StatusOK, dto.MarkAllReadResponse{Updated: n})
}

// createNotification godoc
// @Summary Send a notification to a user
// @Tags notifications
// @Accept  json
// @Produce  json
// @Param   body body dto.CreateNotificationRequest true "Notification"
// @Success 201 {object} domain.Notification
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /notifications [post]
func (h *notificationHandler) createNotification(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	n, err := h.notificationService.CreateNotification(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err, "Failed to create notification")
		return
	}
	c.JSON(http.StatusCreated, n)
}
