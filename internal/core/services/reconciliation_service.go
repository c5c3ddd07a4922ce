package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/SscSPs/geexpress_backend/internal/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxCouriers bounds the admin settlement queue.
const maxCouriers = 1000

// reconciliationService implements the ReconciliationSvcFacade interface
type reconciliationService struct {
	BaseService
	txManager          portsrepo.TransactionManager
	userRepo           portsrepo.UserRepositoryFacade
	deliveryRepo       portsrepo.DeliveryRepositoryFacade
	debtRepo           portsrepo.DebtRepositoryFacade
	settlementRepo     portsrepo.SettlementRepositoryFacade
	reconciliationRepo portsrepo.ReconciliationRepositoryFacade
	locker             portssvc.SettlementLocker
	notifier           portssvc.Notifier
}

// ReconciliationServiceOption is a functional option for configuring the reconciliation service
type ReconciliationServiceOption func(*reconciliationService)

// WithSettlementLocker serializes settlements of one courier across instances
func WithSettlementLocker(l portssvc.SettlementLocker) ReconciliationServiceOption {
	return func(s *reconciliationService) {
		s.locker = l
	}
}

// WithReconciliationNotifier sets the notifier
func WithReconciliationNotifier(n portssvc.Notifier) ReconciliationServiceOption {
	return func(s *reconciliationService) {
		s.notifier = n
	}
}

// WithReconciliationClock overrides the time source
func WithReconciliationClock(clock func() time.Time) ReconciliationServiceOption {
	return func(s *reconciliationService) {
		s.Clock = clock
	}
}

// NewReconciliationService creates a new reconciliation service with the provided options
func NewReconciliationService(repos portsrepo.RepositoryProvider, options ...ReconciliationServiceOption) portssvc.ReconciliationSvcFacade {
	svc := &reconciliationService{
		txManager:          repos.TxManager,
		userRepo:           repos.UserRepo,
		deliveryRepo:       repos.DeliveryRepo,
		debtRepo:           repos.DebtRepo,
		settlementRepo:     repos.SettlementRepo,
		reconciliationRepo: repos.ReconciliationRepo,
		notifier:           noopNotifier{},
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

// Ensure reconciliationService implements the ReconciliationSvcFacade interface
var _ portssvc.ReconciliationSvcFacade = (*reconciliationService)(nil)

func (s *reconciliationService) balanceOf(ctx context.Context, courierID string) (domain.CourierBalance, error) {
	deliveries, err := s.deliveryRepo.FindDeliveriesByCourier(ctx, courierID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load courier deliveries", slog.String("courier_id", courierID))
		return domain.CourierBalance{}, err
	}
	return domain.ComputeCourierBalance(courierID, deliveries), nil
}

func (s *reconciliationService) pendingRequest(ctx context.Context, courierID string) (*domain.ReconciliationRequest, error) {
	req, err := s.reconciliationRepo.FindPendingRequestByCourier(ctx, courierID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

func (s *reconciliationService) GetReconciliationSummary(ctx context.Context, caller domain.Caller) (*domain.ReconciliationSummary, error) {
	if err := s.RequireCourier(ctx, caller); err != nil {
		return nil, err
	}
	balance, err := s.balanceOf(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	pending, err := s.pendingRequest(ctx, caller.UserID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load pending reconciliation request")
		return nil, err
	}
	return &domain.ReconciliationSummary{CourierBalance: balance, PendingRequest: pending}, nil
}

func (s *reconciliationService) RequestReconciliation(ctx context.Context, caller domain.Caller, req dto.RequestReconciliationRequest) (*domain.ReconciliationRequest, error) {
	if err := s.RequireCourier(ctx, caller); err != nil {
		return nil, err
	}
	if req.DeclaredAmount.IsNegative() {
		return nil, fmt.Errorf("%w: declared amount must not be negative", apperrors.ErrValidation)
	}

	balance, err := s.balanceOf(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	request := domain.NewReconciliationRequest(uuid.NewString(), balance, req.DeclaredAmount, req.Notes, s.Now())
	if err := s.reconciliationRepo.SaveRequest(ctx, request); err != nil {
		s.LogError(ctx, err, "Failed to save reconciliation request")
		return nil, err
	}

	s.LogInfo(ctx, "Reconciliation requested",
		slog.String("request_id", request.RequestID),
		slog.String("declared", request.DeclaredAmount.String()),
		slog.String("actual", request.ActualAmount.String()))
	s.notifier.NotifyRole(ctx, domain.RoleAdmin, domain.NotificationInput{
		Title: "Demande de versement",
		Body:  fmt.Sprintf("Un livreur déclare %s (attendu %s)", utils.FormatXAF(request.DeclaredAmount), utils.FormatXAF(request.ActualAmount)),
		Type:  domain.NotificationReconciliationRequest,
		Data:  map[string]any{"requestId": request.RequestID, "deliveryManId": caller.UserID},
	})
	return &request, nil
}

func (s *reconciliationService) GetDriversWithPendingSettlement(ctx context.Context, caller domain.Caller) (*domain.PendingSettlementOverview, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	couriers, err := s.userRepo.FindUsersByRole(ctx, domain.RoleDeliveryMan, true, maxCouriers, 0)
	if err != nil {
		s.LogError(ctx, err, "Failed to list couriers")
		return nil, err
	}
	ids := make([]string, 0, len(couriers))
	for _, c := range couriers {
		ids = append(ids, c.UserID)
	}

	byCourier, err := s.deliveryRepo.FindDeliveriesByCouriers(ctx, ids)
	if err != nil {
		s.LogError(ctx, err, "Failed to load courier deliveries")
		return nil, err
	}
	requests, err := s.reconciliationRepo.ListPendingRequests(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to list pending reconciliation requests")
		return nil, err
	}
	// newest first, so the first request seen per courier is the latest
	latest := make(map[string]time.Time, len(requests))
	for _, r := range requests {
		if _, ok := latest[r.DeliveryManID]; !ok {
			latest[r.DeliveryManID] = r.RequestedAt
		}
	}

	overview := &domain.PendingSettlementOverview{
		Drivers:  []domain.PendingSettlementDriver{},
		Currency: domain.Currency,
	}
	for _, c := range couriers {
		b := domain.ComputeCourierBalance(c.UserID, byCourier[c.UserID])
		if !b.HasDue() {
			continue
		}
		row := domain.PendingSettlementDriver{
			DriverID:          c.UserID,
			DriverName:        c.Name,
			Phone:             c.Phone,
			Matricule:         c.Matricule,
			CashInHand:        b.CashInHand,
			PendingReturns:    b.PendingReturns,
			DeliveriesWithDue: b.DeliveriesWithDue,
			DebtBalance:       c.DebtBalance,
		}
		if at, ok := latest[c.UserID]; ok {
			row.HasPendingRequest = true
			row.LastSettlementRequest = &at
		}
		overview.Drivers = append(overview.Drivers, row)
		overview.TotalCash = overview.TotalCash.Add(b.CashInHand)
		overview.TotalReturns += b.PendingReturns
	}
	sort.SliceStable(overview.Drivers, func(i, j int) bool {
		return overview.Drivers[i].CashInHand.GreaterThan(overview.Drivers[j].CashInHand)
	})
	return overview, nil
}

func (s *reconciliationService) findCourier(ctx context.Context, driverID string) (*domain.User, error) {
	courier, err := s.userRepo.FindUserByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !courier.IsCourier() {
		return nil, fmt.Errorf("%w: user %s is not a delivery man", apperrors.ErrNotFound, driverID)
	}
	return courier, nil
}

func (s *reconciliationService) GetDriverSettlementDetails(ctx context.Context, caller domain.Caller, driverID string) (*domain.DriverSettlementDetails, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	courier, err := s.findCourier(ctx, driverID)
	if err != nil {
		return nil, err
	}
	balance, err := s.balanceOf(ctx, driverID)
	if err != nil {
		return nil, err
	}
	pending, err := s.pendingRequest(ctx, driverID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load pending reconciliation request", slog.String("driver_id", driverID))
		return nil, err
	}
	return &domain.DriverSettlementDetails{Driver: *courier, Balance: balance, PendingRequest: pending}, nil
}

func (s *reconciliationService) SettleDriverPayment(ctx context.Context, caller domain.Caller, driverID string, req dto.SettleDriverPaymentRequest) (*domain.SettlementRecord, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if req.AmountCollected.IsNegative() {
		return nil, fmt.Errorf("%w: amount collected must not be negative", apperrors.ErrValidation)
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, driverID)
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			s.LogInfo(ctx, "Settlement already in progress", slog.String("driver_id", driverID))
			return nil, err
		case err != nil:
			// The row locks taken inside the transaction still serialize settlements.
			s.GetLogger(ctx).Warn("Settlement lock unavailable, continuing without it",
				slog.String("driver_id", driverID), slog.String("error", err.Error()))
		default:
			defer release()
		}
	}

	now := s.Now()
	input := domain.SettlementInput{
		SettlementID:    uuid.NewString(),
		DebtID:          uuid.NewString(),
		AdminID:         caller.UserID,
		AmountCollected: req.AmountCollected,
		ConfirmReturns:  req.ConfirmReturns,
		Notes:           req.Notes,
	}

	var plan *domain.SettlementPlan
	var courierName string
	err := s.InTx(ctx, s.txManager, func(tx pgx.Tx) error {
		courier, err := s.userRepo.FindUserByIDForUpdate(ctx, tx, driverID)
		if err != nil {
			return err
		}
		if !courier.IsCourier() {
			return fmt.Errorf("%w: user %s is not a delivery man", apperrors.ErrNotFound, driverID)
		}
		courierName = courier.Name

		deliveries, err := s.deliveryRepo.FindCourierDeliveriesForUpdate(ctx, tx, driverID)
		if err != nil {
			return err
		}

		plan, err = domain.PlanSettlement(*courier, deliveries, input, now)
		if err != nil {
			return err
		}

		if len(plan.Deliveries) > 0 {
			if err := s.deliveryRepo.UpdateDeliveriesInTx(ctx, tx, plan.Deliveries); err != nil {
				return err
			}
		}
		if plan.Debt != nil {
			if err := s.debtRepo.SaveDebtInTx(ctx, tx, *plan.Debt); err != nil {
				return err
			}
			if err := s.userRepo.UpdateDebtBalanceInTx(ctx, tx, driverID, plan.Record.NewDebtBalance, now); err != nil {
				return err
			}
		}
		if _, err := s.reconciliationRepo.ApprovePendingRequestsInTx(ctx, tx, driverID, caller.UserID, input.SettlementID, now); err != nil {
			return err
		}
		return s.settlementRepo.SaveSettlementInTx(ctx, tx, plan.Record)
	})
	if err != nil {
		if isExpected(err) {
			s.LogDebug(ctx, "Settlement rejected", slog.String("driver_id", driverID), slog.String("error", err.Error()))
		} else {
			s.LogError(ctx, err, "Settlement failed", slog.String("driver_id", driverID))
		}
		return nil, err
	}

	record := plan.Record
	record.DriverName = courierName
	s.LogInfo(ctx, "Driver settled",
		slog.String("driver_id", driverID),
		slog.String("settlement_id", record.SettlementID),
		slog.String("collected", record.AmountCollected.String()),
		slog.String("expected", record.ActualAmount.String()),
		slog.String("debt_generated", record.DebtGenerated.String()))

	body := fmt.Sprintf("Versement de %s validé", utils.FormatXAF(record.AmountCollected))
	if record.DebtGenerated.IsPositive() {
		body = fmt.Sprintf("%s. Nouvelle dette: %s, total: %s", body,
			utils.FormatXAF(record.DebtGenerated), utils.FormatXAF(record.NewDebtBalance))
	}
	s.notifier.Notify(ctx, domain.NotificationInput{
		RecipientUserID: driverID,
		Title:           "Versement validé",
		Body:            body,
		Type:            domain.NotificationSettlementApproved,
		Data: map[string]any{
			"settlementId":   record.SettlementID,
			"debtGenerated":  record.DebtGenerated.String(),
			"newDebtBalance": record.NewDebtBalance.String(),
		},
	})
	return &record, nil
}

func (s *reconciliationService) GetSettlementHistory(ctx context.Context, caller domain.Caller, filter domain.SettlementFilter) (*domain.SettlementHistory, error) {
	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleDeliveryMan:
		if filter.DriverID != nil && *filter.DriverID != caller.UserID {
			return nil, fmt.Errorf("%w: cannot access another courier's settlements", apperrors.ErrForbidden)
		}
		self := caller.UserID
		filter.DriverID = &self
	default:
		return nil, fmt.Errorf("%w: cannot access settlements", apperrors.ErrForbidden)
	}

	records, err := s.settlementRepo.ListSettlements(ctx, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list settlements")
		return nil, err
	}
	if records == nil {
		records = []domain.SettlementRecord{}
	}
	return &domain.SettlementHistory{Records: records, Totals: domain.SummarizeSettlements(records)}, nil
}

func (s *reconciliationService) GetSettlementStats(ctx context.Context, caller domain.Caller, rng domain.DateRange) (*domain.SettlementStats, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	records, err := s.settlementRepo.ListSettlements(ctx, domain.SettlementFilter{Range: rng})
	if err != nil {
		s.LogError(ctx, err, "Failed to list settlements")
		return nil, err
	}
	stats := domain.SummarizeSettlements(records)
	return &stats, nil
}
