package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	maxTrackingAttempts = 5
	receiptFolder       = "transfer-receipts"
)

// deliveryService implements the DeliverySvcFacade interface
type deliveryService struct {
	BaseService
	txManager    portsrepo.TransactionManager
	deliveryRepo portsrepo.DeliveryRepositoryFacade
	userRepo     portsrepo.UserReader
	blobStorage  portssvc.BlobStorage
	notifier     portssvc.Notifier
}

// DeliveryServiceOption is a functional option for configuring the delivery service
type DeliveryServiceOption func(*deliveryService)

// WithDeliveryNotifier sets the notifier used for courier and admin alerts
func WithDeliveryNotifier(n portssvc.Notifier) DeliveryServiceOption {
	return func(s *deliveryService) {
		s.notifier = n
	}
}

// WithDeliveryBlobStorage sets the storage used for transfer receipts
func WithDeliveryBlobStorage(b portssvc.BlobStorage) DeliveryServiceOption {
	return func(s *deliveryService) {
		s.blobStorage = b
	}
}

// WithDeliveryClock overrides the time source
func WithDeliveryClock(clock func() time.Time) DeliveryServiceOption {
	return func(s *deliveryService) {
		s.Clock = clock
	}
}

// NewDeliveryService creates a new delivery service with the provided options
func NewDeliveryService(txManager portsrepo.TransactionManager, deliveryRepo portsrepo.DeliveryRepositoryFacade, userRepo portsrepo.UserReader, options ...DeliveryServiceOption) portssvc.DeliverySvcFacade {
	svc := &deliveryService{
		txManager:    txManager,
		deliveryRepo: deliveryRepo,
		userRepo:     userRepo,
		notifier:     noopNotifier{},
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

// Ensure deliveryService implements the DeliverySvcFacade interface
var _ portssvc.DeliverySvcFacade = (*deliveryService)(nil)

func (s *deliveryService) CreateDelivery(ctx context.Context, caller domain.Caller, req dto.CreateDeliveryRequest) (*domain.Delivery, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	now := s.Now()
	for attempt := 1; attempt <= maxTrackingAttempts; attempt++ {
		pkgs, err := s.newPackages(req, now)
		if err != nil {
			s.LogError(ctx, err, "Failed to generate tracking numbers")
			return nil, err
		}

		delivery, err := domain.NewDelivery(uuid.NewString(), req.DeliveryType, req.ToDomainClient(), req.Notes, pkgs, caller.UserID, now)
		if err != nil {
			s.LogDebug(ctx, "Delivery validation failed", slog.String("error", err.Error()))
			return nil, err
		}

		err = s.deliveryRepo.SaveDelivery(ctx, *delivery)
		if err == nil {
			s.LogInfo(ctx, "Delivery created successfully",
				slog.String("delivery_id", delivery.DeliveryID),
				slog.Int("packages", len(delivery.Packages)))
			return delivery, nil
		}
		if !errors.Is(err, apperrors.ErrDuplicate) {
			s.LogError(ctx, err, "Failed to save delivery")
			return nil, err
		}
		s.LogInfo(ctx, "Tracking number collision, regenerating", slog.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("%w: could not allocate unique tracking numbers", apperrors.ErrConflict)
}

// newPackages builds the domain packages with fresh ids and tracking numbers,
// unique within the delivery.
func (s *deliveryService) newPackages(req dto.CreateDeliveryRequest, now time.Time) ([]domain.Package, error) {
	pkgs := req.ToDomainPackages()
	seen := make(map[string]bool, len(pkgs))
	for i := range pkgs {
		pkgs[i].ID = uuid.NewString()
		for {
			tn, err := domain.GenerateTrackingNumber(now)
			if err != nil {
				return nil, err
			}
			if !seen[tn] {
				seen[tn] = true
				pkgs[i].TrackingNumber = tn
				break
			}
		}
	}
	return pkgs, nil
}

// mutate loads a delivery under a row lock, applies fn and writes it back.
func (s *deliveryService) mutate(ctx context.Context, deliveryID string, fn func(d *domain.Delivery) error) (*domain.Delivery, error) {
	var out *domain.Delivery
	err := s.InTx(ctx, s.txManager, func(tx pgx.Tx) error {
		d, err := s.deliveryRepo.FindDeliveryByIDForUpdate(ctx, tx, deliveryID)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
		if err := s.deliveryRepo.UpdateDeliveryInTx(ctx, tx, *d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *deliveryService) AssignDelivery(ctx context.Context, caller domain.Caller, deliveryID, courierID string) (*domain.Delivery, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	courier, err := s.userRepo.FindUserByID(ctx, courierID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: delivery man %s", apperrors.ErrNotFound, courierID)
		}
		s.LogError(ctx, err, "Failed to load courier", slog.String("courier_id", courierID))
		return nil, err
	}

	var previous *string
	delivery, err := s.mutate(ctx, deliveryID, func(d *domain.Delivery) error {
		previous = d.DeliveryManID
		return d.Assign(*courier, caller.UserID, s.Now())
	})
	if err != nil {
		s.logMutationError(ctx, err, "Failed to assign delivery", deliveryID)
		return nil, err
	}

	s.LogInfo(ctx, "Delivery assigned",
		slog.String("delivery_id", deliveryID),
		slog.String("courier_id", courierID))
	if previous == nil || *previous != courierID {
		s.notifier.Notify(ctx, domain.NotificationInput{
			RecipientUserID: courierID,
			Title:           "Nouvelle livraison assignée",
			Body:            fmt.Sprintf("Une livraison de %d colis pour %s vous a été assignée", len(delivery.Packages), delivery.ClientInfo.Name),
			Type:            domain.NotificationDeliveryAssigned,
			Data:            map[string]any{"deliveryId": deliveryID},
		})
	}
	return delivery, nil
}

func (s *deliveryService) StartDelivery(ctx context.Context, caller domain.Caller, deliveryID string) (*domain.Delivery, error) {
	delivery, err := s.mutate(ctx, deliveryID, func(d *domain.Delivery) error {
		return d.Start(caller.UserID, s.Now())
	})
	if err != nil {
		s.logMutationError(ctx, err, "Failed to start delivery", deliveryID)
		return nil, err
	}

	s.LogInfo(ctx, "Delivery started", slog.String("delivery_id", deliveryID))
	s.notifier.NotifyRole(ctx, domain.RoleAdmin, domain.NotificationInput{
		Title: "Livraison démarrée",
		Body:  fmt.Sprintf("%s a démarré la livraison pour %s", derefOr(delivery.DeliveryManName, "Le livreur"), delivery.ClientInfo.Name),
		Type:  domain.NotificationDeliveryStarted,
		Data:  map[string]any{"deliveryId": deliveryID},
	})
	return delivery, nil
}

func (s *deliveryService) UpdatePackageStatus(ctx context.Context, caller domain.Caller, deliveryID, packageID string, req dto.UpdatePackageStatusRequest) (*domain.Delivery, error) {
	if !domain.IsValidPackageStatus(req.Status) {
		return nil, fmt.Errorf("%w: unknown package status %q", apperrors.ErrValidation, req.Status)
	}

	delivery, err := s.mutate(ctx, deliveryID, func(d *domain.Delivery) error {
		_, err := d.UpdatePackageStatus(caller.UserID, packageID, req.Status, req.ToPackageUpdate(), s.Now())
		return err
	})
	if err != nil {
		s.logMutationError(ctx, err, "Failed to update package status", deliveryID)
		return nil, err
	}

	s.LogInfo(ctx, "Package status updated",
		slog.String("delivery_id", deliveryID),
		slog.String("package_id", packageID),
		slog.String("status", string(req.Status)),
		slog.String("delivery_status", string(delivery.Status)))
	return delivery, nil
}

func (s *deliveryService) UploadTransferReceipt(ctx context.Context, caller domain.Caller, deliveryID string, file portssvc.BlobFile) (*domain.Delivery, error) {
	if s.blobStorage == nil {
		return nil, fmt.Errorf("%w: blob storage is not configured", apperrors.ErrExternalService)
	}

	current, err := s.deliveryRepo.FindDeliveryByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if err := current.CanReceiveTransferReceipt(caller.UserID); err != nil {
		return nil, err
	}

	ref, err := s.blobStorage.Upload(ctx, file, receiptFolder)
	if err != nil {
		s.LogError(ctx, err, "Failed to upload transfer receipt", slog.String("delivery_id", deliveryID))
		return nil, fmt.Errorf("%w: receipt upload failed: %v", apperrors.ErrExternalService, err)
	}

	delivery, err := s.mutate(ctx, deliveryID, func(d *domain.Delivery) error {
		return d.ApplyTransferReceipt(caller.UserID, ref.URL, ref.PublicID, s.Now())
	})
	if err != nil {
		s.logMutationError(ctx, err, "Failed to record transfer receipt", deliveryID)
		if delErr := s.blobStorage.Delete(ctx, ref.PublicID); delErr != nil {
			s.LogError(ctx, delErr, "Failed to delete orphaned receipt", slog.String("public_id", ref.PublicID))
		}
		return nil, err
	}

	s.LogInfo(ctx, "Transfer receipt recorded", slog.String("delivery_id", deliveryID))
	s.notifier.NotifyRole(ctx, domain.RoleAdmin, domain.NotificationInput{
		Title: "Reçu de transfert",
		Body:  fmt.Sprintf("%s a envoyé le reçu de transfert pour %s", derefOr(delivery.DeliveryManName, "Le livreur"), delivery.ClientInfo.Name),
		Type:  domain.NotificationTransferReceipt,
		Data:  map[string]any{"deliveryId": deliveryID, "receiptUrl": ref.URL},
	})
	return delivery, nil
}

func (s *deliveryService) ReportIssue(ctx context.Context, caller domain.Caller, deliveryID string, req dto.ReportIssueRequest) (*domain.Delivery, error) {
	delivery, err := s.mutate(ctx, deliveryID, func(d *domain.Delivery) error {
		return d.ReportIssue(caller, req.IssueType, req.Description, req.PackageID, s.Now())
	})
	if err != nil {
		s.logMutationError(ctx, err, "Failed to report issue", deliveryID)
		return nil, err
	}

	s.LogInfo(ctx, "Delivery issue reported",
		slog.String("delivery_id", deliveryID),
		slog.String("issue_type", string(req.IssueType)))
	s.notifier.NotifyRole(ctx, domain.RoleAdmin, domain.NotificationInput{
		Title: "Problème signalé",
		Body:  fmt.Sprintf("Problème sur la livraison %s: %s", delivery.ClientInfo.Name, req.Description),
		Type:  domain.NotificationDeliveryIssue,
		Data:  map[string]any{"deliveryId": deliveryID, "issueType": string(req.IssueType)},
	})
	return delivery, nil
}

func (s *deliveryService) CancelDelivery(ctx context.Context, caller domain.Caller, deliveryID string) (*domain.Delivery, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	delivery, err := s.mutate(ctx, deliveryID, func(d *domain.Delivery) error {
		return d.Cancel(caller.UserID, s.Now())
	})
	if err != nil {
		s.logMutationError(ctx, err, "Failed to cancel delivery", deliveryID)
		return nil, err
	}
	s.LogInfo(ctx, "Delivery cancelled", slog.String("delivery_id", deliveryID))
	return delivery, nil
}

func (s *deliveryService) UpdatePackageInfo(ctx context.Context, caller domain.Caller, deliveryID, packageID string, req dto.UpdatePackageInfoRequest) (*domain.Delivery, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	delivery, err := s.mutate(ctx, deliveryID, func(d *domain.Delivery) error {
		_, err := d.UpdatePackageInfo(packageID, req.ToDomain(), caller.UserID, s.Now())
		return err
	})
	if err != nil {
		s.logMutationError(ctx, err, "Failed to update package info", deliveryID)
		return nil, err
	}
	return delivery, nil
}

func (s *deliveryService) GetDelivery(ctx context.Context, caller domain.Caller, deliveryID string) (*domain.Delivery, error) {
	delivery, err := s.deliveryRepo.FindDeliveryByID(ctx, deliveryID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find delivery", slog.String("delivery_id", deliveryID))
		}
		return nil, err
	}
	if err := delivery.Authorize(caller); err != nil {
		return nil, err
	}
	return delivery, nil
}

func (s *deliveryService) ListDeliveries(ctx context.Context, caller domain.Caller, params dto.ListDeliveriesParams) ([]domain.Delivery, *string, error) {
	filter := params.ToFilter()
	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleDeliveryMan:
		filter.DeliveryManID = &caller.UserID
	default:
		return nil, nil, fmt.Errorf("%w: cannot list deliveries", apperrors.ErrForbidden)
	}

	deliveries, next, err := s.deliveryRepo.ListDeliveries(ctx, filter, params.Limit, params.NextToken)
	if err != nil {
		s.LogError(ctx, err, "Failed to list deliveries")
		return nil, nil, err
	}
	if deliveries == nil {
		deliveries = []domain.Delivery{}
	}
	return deliveries, next, nil
}

func (s *deliveryService) GetAvailableDeliveries(ctx context.Context, caller domain.Caller, limit int, nextToken *string) ([]domain.Delivery, *string, error) {
	if caller.Role != domain.RoleAdmin && caller.Role != domain.RoleDeliveryMan {
		return nil, nil, fmt.Errorf("%w: cannot list deliveries", apperrors.ErrForbidden)
	}
	pending := domain.DeliveryPending
	deliveries, next, err := s.deliveryRepo.ListDeliveries(ctx, domain.DeliveryFilter{Status: &pending, Unassigned: true}, limit, nextToken)
	if err != nil {
		s.LogError(ctx, err, "Failed to list available deliveries")
		return nil, nil, err
	}
	if deliveries == nil {
		deliveries = []domain.Delivery{}
	}
	return deliveries, next, nil
}

func (s *deliveryService) courierDeliveries(ctx context.Context, caller domain.Caller) ([]domain.Delivery, error) {
	if err := s.RequireCourier(ctx, caller); err != nil {
		return nil, err
	}
	deliveries, err := s.deliveryRepo.FindDeliveriesByCourier(ctx, caller.UserID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load courier deliveries", slog.String("courier_id", caller.UserID))
		return nil, err
	}
	return deliveries, nil
}

func (s *deliveryService) GetAssignedDeliveries(ctx context.Context, caller domain.Caller) ([]domain.Delivery, error) {
	deliveries, err := s.courierDeliveries(ctx, caller)
	if err != nil {
		return nil, err
	}
	// a delivery whose packages went back to pending stays with its courier
	active := []domain.Delivery{}
	for _, d := range deliveries {
		switch d.Status {
		case domain.DeliveryPending, domain.DeliveryAssigned, domain.DeliveryAccepted, domain.DeliveryInProgress, domain.DeliveryIssueReported:
			active = append(active, d)
		}
	}
	return active, nil
}

func (s *deliveryService) GetDeliveryManStats(ctx context.Context, caller domain.Caller) (*domain.DeliveryManStats, error) {
	deliveries, err := s.courierDeliveries(ctx, caller)
	if err != nil {
		return nil, err
	}
	stats := domain.ComputeDeliveryManStats(deliveries, s.Now())
	return &stats, nil
}

func (s *deliveryService) GetDeliveryStats(ctx context.Context, caller domain.Caller) (*domain.DeliveryStats, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	stats, err := s.deliveryRepo.GetDeliveryStats(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to compute delivery stats")
		return nil, err
	}
	return stats, nil
}

func (s *deliveryService) GetDeliveryHistory(ctx context.Context, caller domain.Caller, period domain.HistoryPeriod) ([]domain.DailyHistory, error) {
	deliveries, err := s.courierDeliveries(ctx, caller)
	if err != nil {
		return nil, err
	}
	return domain.BuildDeliveryHistory(deliveries, period.Start(s.Now())), nil
}

// logMutationError logs unexpected failures; business rule rejections are only debug-logged.
func (s *deliveryService) logMutationError(ctx context.Context, err error, msg string, deliveryID string) {
	if isExpected(err) {
		s.LogDebug(ctx, msg, slog.String("delivery_id", deliveryID), slog.String("error", err.Error()))
		return
	}
	s.LogError(ctx, err, msg, slog.String("delivery_id", deliveryID))
}

// isExpected reports whether err is a business rule rejection rather than a failure.
func isExpected(err error) bool {
	for _, kind := range []error{
		apperrors.ErrNotFound, apperrors.ErrValidation, apperrors.ErrForbidden,
		apperrors.ErrConflict, apperrors.ErrInvalidTransition, apperrors.ErrDuplicate,
		apperrors.ErrUnauthorized,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
