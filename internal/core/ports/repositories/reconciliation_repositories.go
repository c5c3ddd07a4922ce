package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// ReconciliationReader defines read operations for courier reconciliation requests
type ReconciliationReader interface {
	// FindPendingRequestByCourier returns the latest pending request of a courier, or ErrNotFound.
	FindPendingRequestByCourier(ctx context.Context, courierID string) (*domain.ReconciliationRequest, error)

	// ListPendingRequests retrieves every pending request, newest first.
	ListPendingRequests(ctx context.Context) ([]domain.ReconciliationRequest, error)
}

// ReconciliationWriter defines write operations for courier reconciliation requests
type ReconciliationWriter interface {
	// SaveRequest inserts a new request.
	SaveRequest(ctx context.Context, request domain.ReconciliationRequest) error

	// ApprovePendingRequestsInTx approves a courier's pending requests and links them to a settlement.
	ApprovePendingRequestsInTx(ctx context.Context, tx pgx.Tx, courierID, adminID, settlementID string, now time.Time) (int64, error)
}

// ReconciliationRepositoryFacade combines all reconciliation-related repository interfaces
type ReconciliationRepositoryFacade interface {
	ReconciliationReader
	ReconciliationWriter
}
