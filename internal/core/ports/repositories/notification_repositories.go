package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
)

// NotificationRepositoryFacade defines persistence for in-app notifications
type NotificationRepositoryFacade interface {
	// SaveNotification inserts a notification.
	SaveNotification(ctx context.Context, notification domain.Notification) error

	// FindNotificationByID retrieves a notification.
	FindNotificationByID(ctx context.Context, notificationID string) (*domain.Notification, error)

	// ListNotificationsByUser retrieves a user's notifications newest first.
	ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)

	// MarkRead flags one notification as read.
	MarkRead(ctx context.Context, notificationID string, now time.Time) error

	// MarkAllRead flags every unread notification of a user and returns how many changed.
	MarkAllRead(ctx context.Context, userID string, now time.Time) (int64, error)
}
