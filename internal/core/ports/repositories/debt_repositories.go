package repositories

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DebtReader defines read operations for debt records
type DebtReader interface {
	// FindDebtByID retrieves a debt record.
	FindDebtByID(ctx context.Context, debtID string) (*domain.DebtRecord, error)

	// ListDebts retrieves debts newest first, with the courier name joined in.
	ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.DebtRecord, error)

	// PendingTotalsByDriver sums pending debts per courier.
	PendingTotalsByDriver(ctx context.Context) (map[string]decimal.Decimal, error)
}

// DebtTransactionSupport defines operations that run inside a caller-owned transaction
type DebtTransactionSupport interface {
	// FindDebtByIDForUpdate selects a debt and locks the row.
	FindDebtByIDForUpdate(ctx context.Context, tx pgx.Tx, debtID string) (*domain.DebtRecord, error)

	// FindPendingDebtsForUpdate locks a courier's pending debts, oldest first.
	FindPendingDebtsForUpdate(ctx context.Context, tx pgx.Tx, driverID string) ([]domain.DebtRecord, error)

	// SaveDebtInTx inserts a debt record.
	SaveDebtInTx(ctx context.Context, tx pgx.Tx, debt domain.DebtRecord) error

	// UpdateDebtsInTx overwrites the mutable fields of several debts in one batch.
	UpdateDebtsInTx(ctx context.Context, tx pgx.Tx, debts []domain.DebtRecord) error
}

// DebtRepositoryFacade combines all debt-related repository interfaces
type DebtRepositoryFacade interface {
	DebtReader
	DebtTransactionSupport
}
