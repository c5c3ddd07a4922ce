package dto

import "github.com/SscSPs/geexpress_backend/internal/core/domain"

// CreateNotificationRequest lets an admin message a user.
type CreateNotificationRequest struct {
	UserID string                  `json:"userId" binding:"required"`
	Title  string                  `json:"title" binding:"required"`
	Body   string                  `json:"body" binding:"required"`
	Type   domain.NotificationType `json:"type"`
	Data   map[string]any          `json:"data"`
}

// ListNotificationsParams defines query parameters for listing notifications.
type ListNotificationsParams struct {
	Limit int `form:"limit,default=50" binding:"min=1,max=200"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
