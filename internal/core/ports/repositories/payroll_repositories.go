package repositories

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// PayrollRepositoryFacade defines persistence for payroll runs
type PayrollRepositoryFacade interface {
	// ListPayrollsByDriver retrieves a courier's payroll records newest first.
	ListPayrollsByDriver(ctx context.Context, driverID string) ([]domain.PayrollRecord, error)

	// SavePayrollInTx inserts a payroll record.
	SavePayrollInTx(ctx context.Context, tx pgx.Tx, record domain.PayrollRecord) error
}
