package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/google/uuid"
)

// maxRoleRecipients bounds a role broadcast.
const maxRoleRecipients = 500

type notificationService struct {
	BaseService
	notificationRepo portsrepo.NotificationRepositoryFacade
	userRepo         portsrepo.UserReader
}

// NewNotificationService creates the in-app notification service. It is also
// the Notifier handed to the other services.
func NewNotificationService(notificationRepo portsrepo.NotificationRepositoryFacade, userRepo portsrepo.UserReader) portssvc.NotificationSvcFacade {
	return &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
	}
}

var _ portssvc.NotificationSvcFacade = (*notificationService)(nil)

func (s *notificationService) build(in domain.NotificationInput) domain.Notification {
	typ := in.Type
	if typ == "" {
		typ = domain.NotificationGeneral
	}
	data := in.Data
	if data == nil {
		data = map[string]any{}
	}
	return domain.Notification{
		NotificationID: uuid.NewString(),
		UserID:         in.RecipientUserID,
		Title:          in.Title,
		Body:           in.Body,
		Type:           typ,
		Data:           data,
		CreatedAt:      s.Now(),
	}
}

// Notify stores a notification for one user. Failures are logged only.
func (s *notificationService) Notify(ctx context.Context, in domain.NotificationInput) {
	if in.RecipientUserID == "" {
		return
	}
	n := s.build(in)
	if err := s.notificationRepo.SaveNotification(ctx, n); err != nil {
		s.LogError(ctx, err, "Failed to store notification",
			slog.String("user_id", in.RecipientUserID),
			slog.String("type", string(n.Type)))
		return
	}
	s.LogDebug(ctx, "Notification stored", slog.String("user_id", in.RecipientUserID), slog.String("type", string(n.Type)))
}

// NotifyRole fans a notification out to every active user holding role.
func (s *notificationService) NotifyRole(ctx context.Context, role domain.UserRole, in domain.NotificationInput) {
	users, err := s.userRepo.FindUsersByRole(ctx, role, true, maxRoleRecipients, 0)
	if err != nil {
		s.LogError(ctx, err, "Failed to resolve notification recipients", slog.String("role", string(role)))
		return
	}
	for _, u := range users {
		in.RecipientUserID = u.UserID
		s.Notify(ctx, in)
	}
}

func (s *notificationService) ListNotifications(ctx context.Context, caller domain.Caller, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	notifications, err := s.notificationRepo.ListNotificationsByUser(ctx, caller.UserID, limit)
	if err != nil {
		s.LogError(ctx, err, "Failed to list notifications", slog.String("user_id", caller.UserID))
		return nil, err
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	return notifications, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, caller domain.Caller, notificationID string) error {
	n, err := s.notificationRepo.FindNotificationByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.UserID != caller.UserID {
		return fmt.Errorf("%w: notification belongs to another user", apperrors.ErrForbidden)
	}
	if n.IsRead {
		return nil
	}
	if err := s.notificationRepo.MarkRead(ctx, notificationID, s.Now()); err != nil {
		s.LogError(ctx, err, "Failed to mark notification read", slog.String("notification_id", notificationID))
		return err
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, caller domain.Caller) (int64, error) {
	updated, err := s.notificationRepo.MarkAllRead(ctx, caller.UserID, s.Now())
	if err != nil {
		s.LogError(ctx, err, "Failed to mark notifications read", slog.String("user_id", caller.UserID))
		return 0, err
	}
	return updated, nil
}

func (s *notificationService) CreateNotification(ctx context.Context, caller domain.Caller, req dto.CreateNotificationRequest) (*domain.Notification, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "" {
		return nil, fmt.Errorf("%w: title and body are required", apperrors.ErrValidation)
	}
	if _, err := s.userRepo.FindUserByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	n := s.build(domain.NotificationInput{
		RecipientUserID: req.UserID,
		Title:           req.Title,
		Body:            req.Body,
		Type:            req.Type,
		Data:            req.Data,
	})
	if err := s.notificationRepo.SaveNotification(ctx, n); err != nil {
		s.LogError(ctx, err, "Failed to create notification", slog.String("user_id", req.UserID))
		return nil, err
	}
	return &n, nil
}

// noopNotifier drops every notification.
type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.NotificationInput) {}

func (noopNotifier) NotifyRole(context.Context, domain.UserRole, domain.NotificationInput) {}
