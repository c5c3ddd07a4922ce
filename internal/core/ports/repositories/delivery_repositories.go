package repositories

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// DeliveryReader defines read operations for delivery data
type DeliveryReader interface {
	// FindDeliveryByID retrieves a delivery with its packages and issues.
	FindDeliveryByID(ctx context.Context, deliveryID string) (*domain.Delivery, error)

	// FindDeliveryByTrackingNumber resolves a tracking number through the tracking index.
	FindDeliveryByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Delivery, error)

	// ListDeliveries retrieves deliveries newest first using token-based pagination.
	ListDeliveries(ctx context.Context, filter domain.DeliveryFilter, limit int, nextToken *string) ([]domain.Delivery, *string, error)

	// FindDeliveriesByCourier retrieves every non-cancelled delivery assigned to a courier.
	FindDeliveriesByCourier(ctx context.Context, courierID string) ([]domain.Delivery, error)

	// FindDeliveriesByCouriers is the batch form of FindDeliveriesByCourier, keyed by courier.
	FindDeliveriesByCouriers(ctx context.Context, courierIDs []string) (map[string][]domain.Delivery, error)

	// GetDeliveryStats counts deliveries per status and sums collected amounts.
	GetDeliveryStats(ctx context.Context) (*domain.DeliveryStats, error)
}

// DeliveryWriter defines write operations for delivery data
type DeliveryWriter interface {
	// SaveDelivery inserts a delivery and indexes its tracking numbers.
	// A tracking number collision yields ErrDuplicate and nothing is written.
	SaveDelivery(ctx context.Context, delivery domain.Delivery) error

	// UpdateDelivery overwrites a delivery document.
	UpdateDelivery(ctx context.Context, delivery domain.Delivery) error
}

// DeliveryTransactionSupport defines operations that run inside a caller-owned transaction
type DeliveryTransactionSupport interface {
	// FindDeliveryByIDForUpdate selects a delivery and locks the row.
	FindDeliveryByIDForUpdate(ctx context.Context, tx pgx.Tx, deliveryID string) (*domain.Delivery, error)

	// FindCourierDeliveriesForUpdate selects and locks every non-cancelled delivery of a courier.
	FindCourierDeliveriesForUpdate(ctx context.Context, tx pgx.Tx, courierID string) ([]domain.Delivery, error)

	// UpdateDeliveryInTx overwrites a delivery inside the transaction.
	UpdateDeliveryInTx(ctx context.Context, tx pgx.Tx, delivery domain.Delivery) error

	// UpdateDeliveriesInTx overwrites several deliveries in one batch.
	UpdateDeliveriesInTx(ctx context.Context, tx pgx.Tx, deliveries []domain.Delivery) error
}

// DeliveryRepositoryFacade combines all delivery-related repository interfaces
type DeliveryRepositoryFacade interface {
	DeliveryReader
	DeliveryWriter
	DeliveryTransactionSupport
}
