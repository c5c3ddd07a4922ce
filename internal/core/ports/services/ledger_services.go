package services

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/shopspring/decimal"
)

// DebtWriterSvc defines debt mutations
type DebtWriterSvc interface {
	// CancelDebt cancels a pending debt and lowers the balance. Admin only.
	CancelDebt(ctx context.Context, caller domain.Caller, debtID string, reason string) (*domain.DebtRecord, error)

	// MarkDebtAsPaid records an out-of-band payment and lowers the balance. Admin only.
	MarkDebtAsPaid(ctx context.Context, caller domain.Caller, debtID string, paymentReference string) (*domain.DebtRecord, error)

	// ReconcileDebtBalances compares stored balances with pending debt sums and optionally rewrites them.
	ReconcileDebtBalances(ctx context.Context, fix bool) ([]domain.DebtDrift, error)
}

// DebtReaderSvc defines debt queries
type DebtReaderSvc interface {
	GetDriverDebts(ctx context.Context, caller domain.Caller, driverID string) (*domain.DriverDebts, error)
	GetDriverDebtBalance(ctx context.Context, caller domain.Caller, driverID string) (*domain.DebtBalance, error)
	GetDriverDebtHistory(ctx context.Context, caller domain.Caller, driverID string, params dto.DebtHistoryParams) (*domain.DriverDebts, error)
	GetAllPendingDebts(ctx context.Context, caller domain.Caller) (*domain.PendingDebtsOverview, error)
	GetDebtStatistics(ctx context.Context, caller domain.Caller) (*domain.DebtStatistics, error)
}

// DebtSvcFacade combines all debt-related service interfaces
type DebtSvcFacade interface {
	DebtWriterSvc
	DebtReaderSvc
}

// PayrollSvcFacade defines salary operations
type PayrollSvcFacade interface {
	// CalculateDriverSalary previews a salary with debt deduction. No writes.
	CalculateDriverSalary(ctx context.Context, caller domain.Caller, driverID string, baseSalary decimal.Decimal, period domain.DateRange) (*domain.SalaryPreview, error)

	// ProcessSalaryPayment pays a salary and retires debt oldest-first.
	ProcessSalaryPayment(ctx context.Context, caller domain.Caller, driverID string, req dto.ProcessSalaryRequest) (*domain.PayrollRecord, error)

	// GetDriverPayrollHistory lists payroll runs; couriers only see their own.
	GetDriverPayrollHistory(ctx context.Context, caller domain.Caller, driverID string) (*domain.PayrollHistory, error)
}
