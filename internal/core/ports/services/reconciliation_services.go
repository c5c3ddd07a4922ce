package services

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/SscSPs/geexpress_backend/internal/dto"
)

// CourierReconciliationSvc defines the courier side of cash reconciliation
type CourierReconciliationSvc interface {
	// GetReconciliationSummary returns the caller's own balance and pending request.
	GetReconciliationSummary(ctx context.Context, caller domain.Caller) (*domain.ReconciliationSummary, error)

	// RequestReconciliation records the caller's cash declaration.
	RequestReconciliation(ctx context.Context, caller domain.Caller, req dto.RequestReconciliationRequest) (*domain.ReconciliationRequest, error)
}

// SettlementSvc defines the admin side of cash reconciliation
type SettlementSvc interface {
	// GetDriversWithPendingSettlement lists couriers holding cash or returns.
	GetDriversWithPendingSettlement(ctx context.Context, caller domain.Caller) (*domain.PendingSettlementOverview, error)

	// GetDriverSettlementDetails shows one courier's balance before settling.
	GetDriverSettlementDetails(ctx context.Context, caller domain.Caller, driverID string) (*domain.DriverSettlementDetails, error)

	// SettleDriverPayment settles a courier's cash and returns atomically.
	SettleDriverPayment(ctx context.Context, caller domain.Caller, driverID string, req dto.SettleDriverPaymentRequest) (*domain.SettlementRecord, error)

	// GetSettlementHistory lists settlements; couriers only see their own.
	GetSettlementHistory(ctx context.Context, caller domain.Caller, filter domain.SettlementFilter) (*domain.SettlementHistory, error)

	// GetSettlementStats aggregates settlements over a window. Admin only.
	GetSettlementStats(ctx context.Context, caller domain.Caller, rng domain.DateRange) (*domain.SettlementStats, error)
}

// ReconciliationSvcFacade combines all reconciliation-related service interfaces
type ReconciliationSvcFacade interface {
	CourierReconciliationSvc
	SettlementSvc
}
