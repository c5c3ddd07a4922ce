package services

import (
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// blob and locker may be nil: uploads then fail with ErrExternalService and
// settlements rely on row locks alone.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, blob portssvc.BlobStorage, locker portssvc.SettlementLocker) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	// Notification service first since every other service notifies through it
	container.Notification = NewNotificationService(repos.NotificationRepo, repos.UserRepo)
	notifier := container.Notification

	deliveryOpts := []DeliveryServiceOption{WithDeliveryNotifier(notifier)}
	userOpts := []UserServiceOption{WithDefaultCourierPassword(cfg.DefaultCourierPassword)}
	if blob != nil {
		deliveryOpts = append(deliveryOpts, WithDeliveryBlobStorage(blob))
		userOpts = append(userOpts, WithUserBlobStorage(blob))
	}
	container.Delivery = NewDeliveryService(repos.TxManager, repos.DeliveryRepo, repos.UserRepo, deliveryOpts...)
	container.Tracking = NewTrackingService(repos.DeliveryRepo)

	reconciliationOpts := []ReconciliationServiceOption{WithReconciliationNotifier(notifier)}
	if locker != nil {
		reconciliationOpts = append(reconciliationOpts, WithSettlementLocker(locker))
	}
	container.Reconciliation = NewReconciliationService(repos, reconciliationOpts...)

	container.Debt = NewDebtService(repos.TxManager, repos.DebtRepo, repos.UserRepo, WithDebtNotifier(notifier))
	container.Payroll = NewPayrollService(repos, WithPayrollNotifier(notifier))
	container.User = NewUserService(repos.UserRepo, userOpts...)
	container.Auth = NewAuthService(cfg, repos.UserRepo)

	return container
}
