package services

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/SscSPs/geexpress_backend/internal/dto"
)

// NotificationSvcFacade is the notifier plus the inbox operations.
type NotificationSvcFacade interface {
	Notifier
	ListNotifications(ctx context.Context, caller domain.Caller, limit int) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, caller domain.Caller, notificationID string) error
	MarkAllAsRead(ctx context.Context, caller domain.Caller) (int64, error)
	CreateNotification(ctx context.Context, caller domain.Caller, req dto.CreateNotificationRequest) (*domain.Notification, error)
}
