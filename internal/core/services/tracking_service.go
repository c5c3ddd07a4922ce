package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
)

type trackingService struct {
	BaseService
	deliveryRepo portsrepo.DeliveryReader
}

// NewTrackingService creates the tracking lookup service.
func NewTrackingService(deliveryRepo portsrepo.DeliveryReader) portssvc.TrackingSvc {
	return &trackingService{deliveryRepo: deliveryRepo}
}

var _ portssvc.TrackingSvc = (*trackingService)(nil)

func (s *trackingService) lookup(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	tn := domain.NormalizeTrackingNumber(trackingNumber)
	if tn == "" {
		return nil, fmt.Errorf("%w: tracking number is required", apperrors.ErrValidation)
	}

	delivery, err := s.deliveryRepo.FindDeliveryByTrackingNumber(ctx, tn)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Tracking lookup failed", slog.String("tracking_number", tn))
		}
		return nil, err
	}
	pkg, ok := delivery.FindPackageByTracking(tn)
	if !ok {
		return nil, fmt.Errorf("%w: package %s", apperrors.ErrNotFound, tn)
	}
	return &domain.TrackingResult{Delivery: delivery.Summary(), Package: *pkg}, nil
}

func (s *trackingService) TrackPackage(ctx context.Context, caller domain.Caller, trackingNumber string) (*domain.TrackingResult, error) {
	if caller.UserID == "" {
		return nil, fmt.Errorf("%w: authentication required", apperrors.ErrUnauthorized)
	}
	return s.lookup(ctx, trackingNumber)
}

func (s *trackingService) TrackPackagePublic(ctx context.Context, trackingNumber string) (*domain.PublicTracking, error) {
	// Malformed numbers never reach the store.
	if !domain.IsWellFormedTrackingNumber(domain.NormalizeTrackingNumber(trackingNumber)) {
		return nil, fmt.Errorf("%w: package %s", apperrors.ErrNotFound, trackingNumber)
	}
	res, err := s.lookup(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	pub := res.Redact()
	return &pub, nil
}
