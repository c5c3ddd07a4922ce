package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/SscSPs/geexpress_backend/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// debtService implements the DebtSvcFacade interface
type debtService struct {
	BaseService
	txManager portsrepo.TransactionManager
	debtRepo  portsrepo.DebtRepositoryFacade
	userRepo  portsrepo.UserRepositoryFacade
	notifier  portssvc.Notifier
}

// DebtServiceOption is a functional option for configuring the debt service
type DebtServiceOption func(*debtService)

// WithDebtNotifier sets the notifier
func WithDebtNotifier(n portssvc.Notifier) DebtServiceOption {
	return func(s *debtService) {
		s.notifier = n
	}
}

// WithDebtClock overrides the time source
func WithDebtClock(clock func() time.Time) DebtServiceOption {
	return func(s *debtService) {
		s.Clock = clock
	}
}

// NewDebtService creates a new debt service with the provided options
func NewDebtService(txManager portsrepo.TransactionManager, debtRepo portsrepo.DebtRepositoryFacade, userRepo portsrepo.UserRepositoryFacade, options ...DebtServiceOption) portssvc.DebtSvcFacade {
	svc := &debtService{
		txManager: txManager,
		debtRepo:  debtRepo,
		userRepo:  userRepo,
		notifier:  noopNotifier{},
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

// Ensure debtService implements the DebtSvcFacade interface
var _ portssvc.DebtSvcFacade = (*debtService)(nil)

// settle applies a terminal transition to a debt and lowers the courier's
// balance by its amount, in one transaction.
func (s *debtService) settle(ctx context.Context, debtID string, apply func(d *domain.DebtRecord, now time.Time) error) (*domain.DebtRecord, decimal.Decimal, error) {
	now := s.Now()
	var out *domain.DebtRecord
	var balance decimal.Decimal
	err := s.InTx(ctx, s.txManager, func(tx pgx.Tx) error {
		debt, err := s.debtRepo.FindDebtByIDForUpdate(ctx, tx, debtID)
		if err != nil {
			return err
		}
		if err := apply(debt, now); err != nil {
			return err
		}
		if err := s.debtRepo.UpdateDebtsInTx(ctx, tx, []domain.DebtRecord{*debt}); err != nil {
			return err
		}

		courier, err := s.userRepo.FindUserByIDForUpdate(ctx, tx, debt.DriverID)
		if err != nil {
			return err
		}
		courier.ApplyDebtDelta(debt.Amount.Neg(), now)
		if err := s.userRepo.UpdateDebtBalanceInTx(ctx, tx, courier.UserID, courier.DebtBalance, now); err != nil {
			return err
		}
		out = debt
		balance = courier.DebtBalance
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return out, balance, nil
}

func (s *debtService) notifyBalance(ctx context.Context, debt *domain.DebtRecord, balance decimal.Decimal, title string) {
	s.notifier.Notify(ctx, domain.NotificationInput{
		RecipientUserID: debt.DriverID,
		Title:           title,
		Body:            fmt.Sprintf("Dette de %s mise à jour. Solde: %s", utils.FormatXAF(debt.Amount), utils.FormatXAF(balance)),
		Type:            domain.NotificationDebtUpdated,
		Data:            map[string]any{"debtId": debt.DebtID, "status": string(debt.Status), "debtBalance": balance.String()},
	})
}

func (s *debtService) CancelDebt(ctx context.Context, caller domain.Caller, debtID string, reason string) (*domain.DebtRecord, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	debt, balance, err := s.settle(ctx, debtID, func(d *domain.DebtRecord, now time.Time) error {
		return d.Cancel(caller.UserID, reason, now)
	})
	if err != nil {
		if !isExpected(err) {
			s.LogError(ctx, err, "Failed to cancel debt", slog.String("debt_id", debtID))
		}
		return nil, err
	}
	s.LogInfo(ctx, "Debt cancelled", slog.String("debt_id", debtID), slog.String("driver_id", debt.DriverID))
	s.notifyBalance(ctx, debt, balance, "Dette annulée")
	return debt, nil
}

func (s *debtService) MarkDebtAsPaid(ctx context.Context, caller domain.Caller, debtID string, paymentReference string) (*domain.DebtRecord, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	debt, balance, err := s.settle(ctx, debtID, func(d *domain.DebtRecord, now time.Time) error {
		return d.MarkPaid(caller.UserID, paymentReference, now)
	})
	if err != nil {
		if !isExpected(err) {
			s.LogError(ctx, err, "Failed to mark debt paid", slog.String("debt_id", debtID))
		}
		return nil, err
	}
	s.LogInfo(ctx, "Debt marked paid", slog.String("debt_id", debtID), slog.String("driver_id", debt.DriverID))
	s.notifyBalance(ctx, debt, balance, "Dette réglée")
	return debt, nil
}

func (s *debtService) ReconcileDebtBalances(ctx context.Context, fix bool) ([]domain.DebtDrift, error) {
	couriers, err := s.userRepo.FindUsersByRole(ctx, domain.RoleDeliveryMan, false, maxCouriers, 0)
	if err != nil {
		return nil, err
	}
	totals, err := s.debtRepo.PendingTotalsByDriver(ctx)
	if err != nil {
		return nil, err
	}

	drifts := []domain.DebtDrift{}
	for _, c := range couriers {
		computed := totals[c.UserID]
		if c.DebtBalance.Equal(computed) {
			continue
		}
		drifts = append(drifts, domain.DebtDrift{
			DriverID:   c.UserID,
			DriverName: c.Name,
			Stored:     c.DebtBalance,
			Computed:   computed,
		})
	}
	if !fix {
		return drifts, nil
	}

	now := s.Now()
	for _, d := range drifts {
		err := s.InTx(ctx, s.txManager, func(tx pgx.Tx) error {
			if _, err := s.userRepo.FindUserByIDForUpdate(ctx, tx, d.DriverID); err != nil {
				return err
			}
			return s.userRepo.UpdateDebtBalanceInTx(ctx, tx, d.DriverID, d.Computed, now)
		})
		if err != nil {
			s.LogError(ctx, err, "Failed to rewrite debt balance", slog.String("driver_id", d.DriverID))
			return drifts, err
		}
		s.LogInfo(ctx, "Debt balance rewritten",
			slog.String("driver_id", d.DriverID),
			slog.String("stored", d.Stored.String()),
			slog.String("computed", d.Computed.String()))
	}
	return drifts, nil
}

func (s *debtService) listDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.DebtRecord, error) {
	debts, err := s.debtRepo.ListDebts(ctx, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list debts")
		return nil, err
	}
	if debts == nil {
		debts = []domain.DebtRecord{}
	}
	return debts, nil
}

func (s *debtService) driverLedger(ctx context.Context, caller domain.Caller, driverID string, filter domain.DebtFilter) (*domain.DriverDebts, error) {
	if err := s.RequireSelfOrAdmin(ctx, caller, driverID); err != nil {
		return nil, err
	}
	courier, err := s.userRepo.FindUserByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	debts, err := s.listDebts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &domain.DriverDebts{
		DriverID:    driverID,
		DebtBalance: courier.DebtBalance,
		Debts:       debts,
		Summary:     domain.SummarizeDebts(debts),
	}, nil
}

func (s *debtService) GetDriverDebts(ctx context.Context, caller domain.Caller, driverID string) (*domain.DriverDebts, error) {
	return s.driverLedger(ctx, caller, driverID, domain.DebtFilter{DriverID: &driverID})
}

func (s *debtService) GetDriverDebtHistory(ctx context.Context, caller domain.Caller, driverID string, params dto.DebtHistoryParams) (*domain.DriverDebts, error) {
	return s.driverLedger(ctx, caller, driverID, params.ToFilter(driverID))
}

func (s *debtService) GetDriverDebtBalance(ctx context.Context, caller domain.Caller, driverID string) (*domain.DebtBalance, error) {
	if err := s.RequireSelfOrAdmin(ctx, caller, driverID); err != nil {
		return nil, err
	}
	courier, err := s.userRepo.FindUserByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return &domain.DebtBalance{
		DriverID:       courier.UserID,
		DriverName:     courier.Name,
		Balance:        courier.DebtBalance,
		LastDebtUpdate: courier.LastDebtUpdate,
		Currency:       domain.Currency,
	}, nil
}

func (s *debtService) GetAllPendingDebts(ctx context.Context, caller domain.Caller) (*domain.PendingDebtsOverview, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	pending := domain.DebtPending
	debts, err := s.listDebts(ctx, domain.DebtFilter{Status: &pending})
	if err != nil {
		return nil, err
	}
	return &domain.PendingDebtsOverview{
		Debts:        debts,
		TotalAmount:  domain.SumPending(debts),
		DriversCount: len(domain.PendingByDriver(debts)),
	}, nil
}

func (s *debtService) GetDebtStatistics(ctx context.Context, caller domain.Caller) (*domain.DebtStatistics, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	debts, err := s.listDebts(ctx, domain.DebtFilter{})
	if err != nil {
		return nil, err
	}
	stats := domain.BuildDebtStatistics(debts)
	return &stats, nil
}
