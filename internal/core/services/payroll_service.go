package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/SscSPs/geexpress_backend/internal/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// payrollService implements the PayrollSvcFacade interface
type payrollService struct {
	BaseService
	txManager    portsrepo.TransactionManager
	payrollRepo  portsrepo.PayrollRepositoryFacade
	debtRepo     portsrepo.DebtRepositoryFacade
	userRepo     portsrepo.UserRepositoryFacade
	deliveryRepo portsrepo.DeliveryReader
	notifier     portssvc.Notifier
}

// PayrollServiceOption is a functional option for configuring the payroll service
type PayrollServiceOption func(*payrollService)

// WithPayrollNotifier sets the notifier
func WithPayrollNotifier(n portssvc.Notifier) PayrollServiceOption {
	return func(s *payrollService) {
		s.notifier = n
	}
}

// WithPayrollClock overrides the time source
func WithPayrollClock(clock func() time.Time) PayrollServiceOption {
	return func(s *payrollService) {
		s.Clock = clock
	}
}

// NewPayrollService creates a new payroll service with the provided options
func NewPayrollService(repos portsrepo.RepositoryProvider, options ...PayrollServiceOption) portssvc.PayrollSvcFacade {
	svc := &payrollService{
		txManager:    repos.TxManager,
		payrollRepo:  repos.PayrollRepo,
		debtRepo:     repos.DebtRepo,
		userRepo:     repos.UserRepo,
		deliveryRepo: repos.DeliveryRepo,
		notifier:     noopNotifier{},
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

// Ensure payrollService implements the PayrollSvcFacade interface
var _ portssvc.PayrollSvcFacade = (*payrollService)(nil)

func (s *payrollService) CalculateDriverSalary(ctx context.Context, caller domain.Caller, driverID string, baseSalary decimal.Decimal, period domain.DateRange) (*domain.SalaryPreview, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	courier, err := s.userRepo.FindUserByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !courier.IsCourier() {
		return nil, fmt.Errorf("%w: user %s is not a delivery man", apperrors.ErrNotFound, driverID)
	}

	calc, err := domain.CalculateSalary(baseSalary, courier.DebtBalance)
	if err != nil {
		return nil, err
	}

	deliveries, err := s.deliveryRepo.FindDeliveriesByCourier(ctx, driverID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load courier deliveries", slog.String("driver_id", driverID))
		return nil, err
	}
	pending := domain.DebtPending
	debts, err := s.debtRepo.ListDebts(ctx, domain.DebtFilter{DriverID: &driverID, Status: &pending})
	if err != nil {
		s.LogError(ctx, err, "Failed to list pending debts", slog.String("driver_id", driverID))
		return nil, err
	}
	if debts == nil {
		debts = []domain.DebtRecord{}
	}

	return &domain.SalaryPreview{
		DriverID:     driverID,
		DriverName:   courier.Name,
		Calculation:  calc,
		Performance:  domain.ComputePerformance(deliveries, period),
		PendingDebts: debts,
	}, nil
}

func (s *payrollService) ProcessSalaryPayment(ctx context.Context, caller domain.Caller, driverID string, req dto.ProcessSalaryRequest) (*domain.PayrollRecord, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PaymentReference) == "" {
		return nil, fmt.Errorf("%w: payment reference is required", apperrors.ErrValidation)
	}

	now := s.Now()
	payrollID := uuid.NewString()
	var record domain.PayrollRecord
	err := s.InTx(ctx, s.txManager, func(tx pgx.Tx) error {
		courier, err := s.userRepo.FindUserByIDForUpdate(ctx, tx, driverID)
		if err != nil {
			return err
		}
		if !courier.IsCourier() {
			return fmt.Errorf("%w: user %s is not a delivery man", apperrors.ErrNotFound, driverID)
		}

		calc, err := domain.CalculateSalary(req.BaseSalary, courier.DebtBalance)
		if err != nil {
			return err
		}

		pending, err := s.debtRepo.FindPendingDebtsForUpdate(ctx, tx, driverID)
		if err != nil {
			return err
		}
		alloc := domain.AllocateDeduction(pending, calc.DebtDeduction, payrollID, caller.UserID, uuid.NewString(), now)

		record = domain.PayrollRecord{
			PayrollID:        payrollID,
			DriverID:         driverID,
			AdminID:          caller.UserID,
			GrossSalary:      calc.BaseSalary,
			DebtDeduction:    calc.DebtDeduction,
			NetSalary:        calc.NetSalary,
			PreviousDebt:     calc.CurrentDebt,
			RemainingDebt:    calc.RemainingDebt,
			PaymentReference: req.PaymentReference,
			DebtsSettled:     alloc.SettledIDs(),
			Status:           domain.PayrollPaid,
			ProcessedAt:      now,
		}
		if err := s.payrollRepo.SavePayrollInTx(ctx, tx, record); err != nil {
			return err
		}
		if len(alloc.Updated) > 0 {
			if err := s.debtRepo.UpdateDebtsInTx(ctx, tx, alloc.Updated); err != nil {
				return err
			}
		}
		if alloc.Remainder != nil {
			if err := s.debtRepo.SaveDebtInTx(ctx, tx, *alloc.Remainder); err != nil {
				return err
			}
		}
		if !calc.DebtDeduction.IsZero() || !courier.DebtBalance.Equal(calc.RemainingDebt) {
			return s.userRepo.UpdateDebtBalanceInTx(ctx, tx, driverID, calc.RemainingDebt, now)
		}
		return nil
	})
	if err != nil {
		if isExpected(err) {
			s.LogDebug(ctx, "Salary payment rejected", slog.String("driver_id", driverID), slog.String("error", err.Error()))
		} else {
			s.LogError(ctx, err, "Salary payment failed", slog.String("driver_id", driverID))
		}
		return nil, err
	}

	s.LogInfo(ctx, "Salary paid",
		slog.String("driver_id", driverID),
		slog.String("payroll_id", payrollID),
		slog.String("net", record.NetSalary.String()),
		slog.String("deduction", record.DebtDeduction.String()),
		slog.Int("debts_settled", len(record.DebtsSettled)))
	s.notifier.Notify(ctx, domain.NotificationInput{
		RecipientUserID: driverID,
		Title:           "Salaire versé",
		Body: fmt.Sprintf("Salaire net de %s versé (retenue dette: %s)",
			utils.FormatXAF(record.NetSalary), utils.FormatXAF(record.DebtDeduction)),
		Type: domain.NotificationSalaryPaid,
		Data: map[string]any{"payrollId": payrollID, "remainingDebt": record.RemainingDebt.String()},
	})
	return &record, nil
}

func (s *payrollService) GetDriverPayrollHistory(ctx context.Context, caller domain.Caller, driverID string) (*domain.PayrollHistory, error) {
	if err := s.RequireSelfOrAdmin(ctx, caller, driverID); err != nil {
		return nil, err
	}
	records, err := s.payrollRepo.ListPayrollsByDriver(ctx, driverID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list payrolls", slog.String("driver_id", driverID))
		return nil, err
	}
	if records == nil {
		records = []domain.PayrollRecord{}
	}
	history := domain.NewPayrollHistory(records)
	return &history, nil
}
