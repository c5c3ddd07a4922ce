package repositories

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// SettlementReader defines read operations for the settlement audit log
type SettlementReader interface {
	// ListSettlements retrieves settlements newest first.
	ListSettlements(ctx context.Context, filter domain.SettlementFilter) ([]domain.SettlementRecord, error)
}

// SettlementWriter defines write operations for the settlement audit log
type SettlementWriter interface {
	// SaveSettlementInTx inserts an immutable settlement record.
	SaveSettlementInTx(ctx context.Context, tx pgx.Tx, record domain.SettlementRecord) error
}

// SettlementRepositoryFacade combines all settlement-related repository interfaces
type SettlementRepositoryFacade interface {
	SettlementReader
	SettlementWriter
}
