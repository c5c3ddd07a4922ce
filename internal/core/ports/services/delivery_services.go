package services

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/SscSPs/geexpress_backend/internal/dto"
)

// DeliveryLifecycleSvc defines the write side of the delivery aggregate
type DeliveryLifecycleSvc interface {
	// CreateDelivery creates a pending delivery with generated tracking numbers. Admin only.
	CreateDelivery(ctx context.Context, caller domain.Caller, req dto.CreateDeliveryRequest) (*domain.Delivery, error)

	// AssignDelivery hands a delivery to an active courier. Admin only; also used for reassignment.
	AssignDelivery(ctx context.Context, caller domain.Caller, deliveryID, courierID string) (*domain.Delivery, error)

	// StartDelivery moves an assigned delivery to in_progress. Assigned courier only.
	StartDelivery(ctx context.Context, caller domain.Caller, deliveryID string) (*domain.Delivery, error)

	// UpdatePackageStatus applies one package transition. Assigned courier only.
	UpdatePackageStatus(ctx context.Context, caller domain.Caller, deliveryID, packageID string, req dto.UpdatePackageStatusRequest) (*domain.Delivery, error)

	// UploadTransferReceipt stores the agency receipt and transfers every package.
	UploadTransferReceipt(ctx context.Context, caller domain.Caller, deliveryID string, file BlobFile) (*domain.Delivery, error)

	// ReportIssue appends an issue to the delivery log.
	ReportIssue(ctx context.Context, caller domain.Caller, deliveryID string, req dto.ReportIssueRequest) (*domain.Delivery, error)

	// CancelDelivery soft-cancels an unassigned delivery. Admin only.
	CancelDelivery(ctx context.Context, caller domain.Caller, deliveryID string) (*domain.Delivery, error)

	// UpdatePackageInfo edits a pending package. Admin only.
	UpdatePackageInfo(ctx context.Context, caller domain.Caller, deliveryID, packageID string, req dto.UpdatePackageInfoRequest) (*domain.Delivery, error)
}

// DeliveryReaderSvc defines delivery queries
type DeliveryReaderSvc interface {
	// GetDelivery returns a delivery to an admin or its courier.
	GetDelivery(ctx context.Context, caller domain.Caller, deliveryID string) (*domain.Delivery, error)

	// ListDeliveries pages through deliveries; couriers only see their own.
	ListDeliveries(ctx context.Context, caller domain.Caller, params dto.ListDeliveriesParams) ([]domain.Delivery, *string, error)

	// GetAvailableDeliveries lists pending unassigned deliveries.
	GetAvailableDeliveries(ctx context.Context, caller domain.Caller, limit int, nextToken *string) ([]domain.Delivery, *string, error)

	// GetAssignedDeliveries lists the caller's assigned and in-progress deliveries.
	GetAssignedDeliveries(ctx context.Context, caller domain.Caller) ([]domain.Delivery, error)

	// GetDeliveryManStats summarizes the caller's deliveries.
	GetDeliveryManStats(ctx context.Context, caller domain.Caller) (*domain.DeliveryManStats, error)

	// GetDeliveryStats counts all deliveries per status. Admin only.
	GetDeliveryStats(ctx context.Context, caller domain.Caller) (*domain.DeliveryStats, error)

	// GetDeliveryHistory aggregates the caller's completed work per day.
	GetDeliveryHistory(ctx context.Context, caller domain.Caller, period domain.HistoryPeriod) ([]domain.DailyHistory, error)
}

// DeliverySvcFacade combines all delivery-related service interfaces
type DeliverySvcFacade interface {
	DeliveryLifecycleSvc
	DeliveryReaderSvc
}

// TrackingSvc resolves tracking numbers
type TrackingSvc interface {
	// TrackPackage returns the package and a delivery summary to an authenticated caller.
	TrackPackage(ctx context.Context, caller domain.Caller, trackingNumber string) (*domain.TrackingResult, error)

	// TrackPackagePublic returns the redacted view served without authentication.
	TrackPackagePublic(ctx context.Context, trackingNumber string) (*domain.PublicTracking, error)
}
