package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/SscSPs/geexpress_backend/internal/core/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_NotifyRoleFansOut(t *testing.T) {
	ctx := context.Background()
	repo := new(MockNotificationRepository)
	users := new(MockUserRepository)
	admins := []domain.User{{UserID: "admin-1", Role: domain.RoleAdmin}, {UserID: "admin-2", Role: domain.RoleAdmin}}
	users.On("FindUsersByRole", ctx, domain.RoleAdmin, true, 500, 0).Return(admins, nil).Once()
	repo.On("SaveNotification", ctx, mock.MatchedBy(func(n domain.Notification) bool {
		return n.UserID == "admin-1" && n.Type == domain.NotificationDeliveryIssue && !n.IsRead
	})).Return(nil).Once()
	// a failing recipient does not stop the fan-out
	repo.On("SaveNotification", ctx, mock.MatchedBy(func(n domain.Notification) bool {
		return n.UserID == "admin-2"
	})).Return(errors.New("disk full")).Once()

	svc := services.NewNotificationService(repo, users)
	svc.NotifyRole(ctx, domain.RoleAdmin, domain.NotificationInput{
		Title: "Problème signalé",
		Body:  "Colis endommagé",
		Type:  domain.NotificationDeliveryIssue,
	})

	repo.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestNotificationService_NotifyDefaultsTypeAndData(t *testing.T) {
	ctx := context.Background()
	repo := new(MockNotificationRepository)
	repo.On("SaveNotification", ctx, mock.MatchedBy(func(n domain.Notification) bool {
		return n.Type == domain.NotificationGeneral && n.Data != nil && n.NotificationID != ""
	})).Return(nil).Once()

	svc := services.NewNotificationService(repo, new(MockUserRepository))
	svc.Notify(ctx, domain.NotificationInput{RecipientUserID: "courier-1", Title: "Bonjour", Body: "Test"})
	svc.Notify(ctx, domain.NotificationInput{Title: "sans destinataire"})

	repo.AssertNumberOfCalls(t, "SaveNotification", 1)
}

func TestNotificationService_MarkAsRead(t *testing.T) {
	ctx := context.Background()
	repo := new(MockNotificationRepository)
	svc := services.NewNotificationService(repo, new(MockUserRepository))

	repo.On("FindNotificationByID", ctx, "n-1").Return(&domain.Notification{NotificationID: "n-1", UserID: courierCaller.UserID}, nil)
	repo.On("FindNotificationByID", ctx, "n-2").Return(&domain.Notification{NotificationID: "n-2", UserID: courierCaller.UserID, IsRead: true}, nil)
	repo.On("MarkRead", ctx, "n-1", mock.Anything).Return(nil).Once()

	require.NoError(t, svc.MarkAsRead(ctx, courierCaller, "n-1"))
	require.NoError(t, svc.MarkAsRead(ctx, courierCaller, "n-2"))
	assert.ErrorIs(t, svc.MarkAsRead(ctx, otherCourier, "n-1"), apperrors.ErrForbidden)
	repo.AssertNumberOfCalls(t, "MarkRead", 1)
}

func TestNotificationService_CreateNotification(t *testing.T) {
	ctx := context.Background()
	repo := new(MockNotificationRepository)
	users := new(MockUserRepository)
	svc := services.NewNotificationService(repo, users)

	users.On("FindUserByID", ctx, "courier-1").Return(testCourier("courier-1"), nil).Once()
	users.On("FindUserByID", ctx, "ghost").Return(nil, apperrors.ErrNotFound).Once()
	repo.On("SaveNotification", ctx, mock.Anything).Return(nil).Once()

	n, err := svc.CreateNotification(ctx, adminCaller, dto.CreateNotificationRequest{UserID: "courier-1", Title: "Info", Body: "Réunion à 8h"})
	require.NoError(t, err)
	assert.Equal(t, "courier-1", n.UserID)
	assert.Equal(t, domain.NotificationGeneral, n.Type)

	_, err = svc.CreateNotification(ctx, adminCaller, dto.CreateNotificationRequest{UserID: "ghost", Title: "Info", Body: "x"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.CreateNotification(ctx, courierCaller, dto.CreateNotificationRequest{UserID: "courier-1", Title: "Info", Body: "x"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
