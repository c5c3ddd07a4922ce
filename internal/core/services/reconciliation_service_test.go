package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/core/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ReconciliationServiceTestSuite struct {
	suite.Suite
	ctx                context.Context
	tx                 *fakeTxManager
	userRepo           *MockUserRepository
	deliveryRepo       *MockDeliveryRepository
	debtRepo           *MockDebtRepository
	settlementRepo     *MockSettlementRepository
	reconciliationRepo *MockReconciliationRepository
	locker             *fakeLocker
	notifier           *recordingNotifier
	service            portssvc.ReconciliationSvcFacade
}

func (suite *ReconciliationServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.tx = &fakeTxManager{}
	suite.userRepo = new(MockUserRepository)
	suite.deliveryRepo = new(MockDeliveryRepository)
	suite.debtRepo = new(MockDebtRepository)
	suite.settlementRepo = new(MockSettlementRepository)
	suite.reconciliationRepo = new(MockReconciliationRepository)
	suite.locker = &fakeLocker{err: apperrors.ErrConflict}
	suite.notifier = &recordingNotifier{}
	suite.service = services.NewReconciliationService(portsrepo.RepositoryProvider{
		TxManager:          suite.tx,
		UserRepo:           suite.userRepo,
		DeliveryRepo:       suite.deliveryRepo,
		DebtRepo:           suite.debtRepo,
		SettlementRepo:     suite.settlementRepo,
		ReconciliationRepo: suite.reconciliationRepo,
	},
		services.WithSettlementLocker(suite.locker),
		services.WithReconciliationNotifier(suite.notifier),
		services.WithReconciliationClock(fixedClock),
	)
}

// cashDeliveries returns one delivered local delivery (5000 + 1000) and one
// delivery with a failed package awaiting return.
func cashDeliveries() []domain.Delivery {
	delivered := assigned(domain.DeliveryLocal, 5000, 1000)
	advance(delivered, "pkg-1", domain.PackagePickedUp, domain.PackageInTransit, domain.PackageDelivered)
	advance(delivered, "pkg-2", domain.PackagePickedUp, domain.PackageInTransit, domain.PackageDelivered)

	failed := assigned(domain.DeliveryLocal, 2500)
	failed.DeliveryID = "delivery-2"
	reason := "Client absent"
	advance(failed, "pkg-1", domain.PackagePickedUp, domain.PackageInTransit)
	if _, err := failed.UpdatePackageStatus(courierCaller.UserID, "pkg-1", domain.PackageFailed, domain.PackageUpdate{RejectionReason: &reason}, fixedNow); err != nil {
		panic(err)
	}
	return []domain.Delivery{*delivered, *failed}
}

func (suite *ReconciliationServiceTestSuite) TestGetReconciliationSummary() {
	suite.deliveryRepo.On("FindDeliveriesByCourier", suite.ctx, courierCaller.UserID).Return(cashDeliveries(), nil).Once()
	suite.reconciliationRepo.On("FindPendingRequestByCourier", suite.ctx, courierCaller.UserID).Return(nil, apperrors.ErrNotFound).Once()

	summary, err := suite.service.GetReconciliationSummary(suite.ctx, courierCaller)

	suite.Require().NoError(err)
	suite.True(amount(6000).Equal(summary.CashInHand), summary.CashInHand.String())
	suite.Equal(1, summary.PendingReturns)
	suite.Equal("Client absent", summary.ReturnItems[0].Reason)
	suite.Equal(2, summary.DeliveriesWithDue)
	suite.Nil(summary.PendingRequest)

	_, err = suite.service.GetReconciliationSummary(suite.ctx, adminCaller)
	suite.ErrorIs(err, apperrors.ErrForbidden)
}

func (suite *ReconciliationServiceTestSuite) TestRequestReconciliation_NotifiesAdmins() {
	suite.deliveryRepo.On("FindDeliveriesByCourier", suite.ctx, courierCaller.UserID).Return(cashDeliveries(), nil).Once()
	suite.reconciliationRepo.On("SaveRequest", suite.ctx, mock.MatchedBy(func(r domain.ReconciliationRequest) bool {
		return r.DeliveryManID == courierCaller.UserID && r.Status == domain.ReconciliationPending
	})).Return(nil).Once()

	request, err := suite.service.RequestReconciliation(suite.ctx, courierCaller, dto.RequestReconciliationRequest{DeclaredAmount: amount(5500)})

	suite.Require().NoError(err)
	suite.True(amount(6000).Equal(request.ActualAmount))
	suite.True(amount(5500).Equal(request.DeclaredAmount))
	suite.Equal([]domain.UserRole{domain.RoleAdmin}, suite.notifier.roles)
	suite.Equal(domain.NotificationReconciliationRequest, suite.notifier.direct[0].Type)
	suite.reconciliationRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestRequestReconciliation_NegativeAmount() {
	_, err := suite.service.RequestReconciliation(suite.ctx, courierCaller, dto.RequestReconciliationRequest{DeclaredAmount: amount(-1)})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *ReconciliationServiceTestSuite) TestSettleDriverPayment_ShortfallBecomesDebt() {
	courier := testCourier(courierCaller.UserID)
	courier.DebtBalance = amount(500)
	var savedDeliveries []domain.Delivery
	var savedDebt domain.DebtRecord
	var savedRecord domain.SettlementRecord

	suite.userRepo.On("FindUserByIDForUpdate", suite.ctx, mock.Anything, courier.UserID).Return(courier, nil).Once()
	suite.deliveryRepo.On("FindCourierDeliveriesForUpdate", suite.ctx, mock.Anything, courier.UserID).Return(cashDeliveries(), nil).Once()
	suite.deliveryRepo.On("UpdateDeliveriesInTx", suite.ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { savedDeliveries = args.Get(2).([]domain.Delivery) }).
		Return(nil).Once()
	suite.debtRepo.On("SaveDebtInTx", suite.ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { savedDebt = args.Get(2).(domain.DebtRecord) }).
		Return(nil).Once()
	suite.userRepo.On("UpdateDebtBalanceInTx", suite.ctx, mock.Anything, courier.UserID, mock.MatchedBy(func(b decimal.Decimal) bool {
		return b.Equal(amount(1500))
	}), fixedNow).Return(nil).Once()
	suite.reconciliationRepo.On("ApprovePendingRequestsInTx", suite.ctx, mock.Anything, courier.UserID, adminCaller.UserID, mock.Anything, fixedNow).Return(int64(1), nil).Once()
	suite.settlementRepo.On("SaveSettlementInTx", suite.ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { savedRecord = args.Get(2).(domain.SettlementRecord) }).
		Return(nil).Once()

	record, err := suite.service.SettleDriverPayment(suite.ctx, adminCaller, courier.UserID, dto.SettleDriverPaymentRequest{
		AmountCollected: amount(5000),
		ConfirmReturns:  true,
	})

	suite.Require().NoError(err)
	suite.True(amount(6000).Equal(record.ActualAmount))
	suite.True(amount(1000).Equal(record.DebtGenerated))
	suite.True(amount(500).Equal(record.PreviousDebt))
	suite.True(amount(1500).Equal(record.NewDebtBalance))
	suite.Equal(2, record.DeliveriesSettled)
	suite.Equal(2, record.PackagesSettled)
	suite.Equal(1, record.ReturnsProcessed)
	suite.Equal(courier.Name, record.DriverName)
	suite.Equal(record.SettlementID, savedRecord.SettlementID)

	suite.Len(savedDeliveries, 2)
	for _, d := range savedDeliveries {
		suite.Equal(domain.SettlementCompleted, d.SettlementStatus)
	}
	suite.Equal(domain.ReturnReturnedToAgency, savedDeliveries[1].Packages[0].ReturnStatus)

	suite.True(amount(1000).Equal(savedDebt.Amount))
	suite.Equal(domain.DebtPending, savedDebt.Status)
	suite.Equal(domain.DebtReasonSettlementShortage, savedDebt.Reason)
	suite.Require().NotNil(savedDebt.SettlementID)
	suite.Equal(record.SettlementID, *savedDebt.SettlementID)

	suite.Equal(1, suite.tx.commits)
	suite.Require().Len(suite.notifier.direct, 1)
	suite.Equal(courier.UserID, suite.notifier.direct[0].RecipientUserID)
	suite.Equal(domain.NotificationSettlementApproved, suite.notifier.direct[0].Type)
	suite.Empty(suite.locker.held)
}

func (suite *ReconciliationServiceTestSuite) TestSettleDriverPayment_ExactAmountCreatesNoDebt() {
	courier := testCourier(courierCaller.UserID)
	suite.userRepo.On("FindUserByIDForUpdate", suite.ctx, mock.Anything, courier.UserID).Return(courier, nil).Once()
	suite.deliveryRepo.On("FindCourierDeliveriesForUpdate", suite.ctx, mock.Anything, courier.UserID).Return(cashDeliveries(), nil).Once()
	suite.deliveryRepo.On("UpdateDeliveriesInTx", suite.ctx, mock.Anything, mock.Anything).Return(nil).Once()
	suite.reconciliationRepo.On("ApprovePendingRequestsInTx", suite.ctx, mock.Anything, courier.UserID, adminCaller.UserID, mock.Anything, fixedNow).Return(int64(0), nil).Once()
	suite.settlementRepo.On("SaveSettlementInTx", suite.ctx, mock.Anything, mock.Anything).Return(nil).Once()

	record, err := suite.service.SettleDriverPayment(suite.ctx, adminCaller, courier.UserID, dto.SettleDriverPaymentRequest{AmountCollected: amount(6000)})

	suite.Require().NoError(err)
	suite.True(record.DebtGenerated.IsZero())
	suite.Equal(0, record.ReturnsProcessed)
	suite.debtRepo.AssertNotCalled(suite.T(), "SaveDebtInTx", mock.Anything, mock.Anything, mock.Anything)
	suite.userRepo.AssertNotCalled(suite.T(), "UpdateDebtBalanceInTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestSettleDriverPayment_NothingToSettle() {
	courier := testCourier(courierCaller.UserID)
	suite.userRepo.On("FindUserByIDForUpdate", suite.ctx, mock.Anything, courier.UserID).Return(courier, nil).Once()
	suite.deliveryRepo.On("FindCourierDeliveriesForUpdate", suite.ctx, mock.Anything, courier.UserID).Return([]domain.Delivery{}, nil).Once()

	_, err := suite.service.SettleDriverPayment(suite.ctx, adminCaller, courier.UserID, dto.SettleDriverPaymentRequest{AmountCollected: amount(0)})

	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.Equal(0, suite.tx.commits)
	suite.Empty(suite.notifier.direct)
}

func (suite *ReconciliationServiceTestSuite) TestSettleDriverPayment_LockHeld() {
	release, err := suite.locker.Acquire(suite.ctx, courierCaller.UserID)
	suite.Require().NoError(err)
	defer release()

	_, err = suite.service.SettleDriverPayment(suite.ctx, adminCaller, courierCaller.UserID, dto.SettleDriverPaymentRequest{AmountCollected: amount(100)})

	suite.ErrorIs(err, apperrors.ErrConflict)
	suite.Equal(0, suite.tx.begins)
}

func (suite *ReconciliationServiceTestSuite) TestSettleDriverPayment_LockBackendDown() {
	suite.locker.down = fmt.Errorf("%w: settlement lock unavailable: connection refused", apperrors.ErrExternalService)
	courier := testCourier(courierCaller.UserID)
	suite.userRepo.On("FindUserByIDForUpdate", suite.ctx, mock.Anything, courier.UserID).Return(courier, nil).Once()
	suite.deliveryRepo.On("FindCourierDeliveriesForUpdate", suite.ctx, mock.Anything, courier.UserID).Return(cashDeliveries(), nil).Once()
	suite.deliveryRepo.On("UpdateDeliveriesInTx", suite.ctx, mock.Anything, mock.Anything).Return(nil).Once()
	suite.reconciliationRepo.On("ApprovePendingRequestsInTx", suite.ctx, mock.Anything, courier.UserID, adminCaller.UserID, mock.Anything, fixedNow).Return(int64(0), nil).Once()
	suite.settlementRepo.On("SaveSettlementInTx", suite.ctx, mock.Anything, mock.Anything).Return(nil).Once()

	record, err := suite.service.SettleDriverPayment(suite.ctx, adminCaller, courier.UserID, dto.SettleDriverPaymentRequest{AmountCollected: amount(6000)})

	suite.Require().NoError(err)
	suite.True(amount(6000).Equal(record.ActualAmount))
	suite.Equal(1, suite.tx.commits)
}

func (suite *ReconciliationServiceTestSuite) TestSettleDriverPayment_Rejections() {
	_, err := suite.service.SettleDriverPayment(suite.ctx, courierCaller, courierCaller.UserID, dto.SettleDriverPaymentRequest{AmountCollected: amount(100)})
	suite.ErrorIs(err, apperrors.ErrForbidden)

	_, err = suite.service.SettleDriverPayment(suite.ctx, adminCaller, courierCaller.UserID, dto.SettleDriverPaymentRequest{AmountCollected: amount(-100)})
	suite.ErrorIs(err, apperrors.ErrValidation)

	admin := &domain.User{UserID: "admin-2", Role: domain.RoleAdmin, IsActive: true}
	suite.userRepo.On("FindUserByIDForUpdate", suite.ctx, mock.Anything, admin.UserID).Return(admin, nil).Once()
	_, err = suite.service.SettleDriverPayment(suite.ctx, adminCaller, admin.UserID, dto.SettleDriverPaymentRequest{AmountCollected: amount(100)})
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *ReconciliationServiceTestSuite) TestGetDriversWithPendingSettlement() {
	rich := testCourier(courierCaller.UserID)
	idle := testCourier(otherCourier.UserID)
	suite.userRepo.On("FindUsersByRole", suite.ctx, domain.RoleDeliveryMan, true, 1000, 0).Return([]domain.User{*idle, *rich}, nil).Once()
	suite.deliveryRepo.On("FindDeliveriesByCouriers", suite.ctx, []string{idle.UserID, rich.UserID}).
		Return(map[string][]domain.Delivery{rich.UserID: cashDeliveries()}, nil).Once()
	suite.reconciliationRepo.On("ListPendingRequests", suite.ctx).Return([]domain.ReconciliationRequest{
		{RequestID: "r2", DeliveryManID: rich.UserID, RequestedAt: fixedNow},
		{RequestID: "r1", DeliveryManID: rich.UserID, RequestedAt: fixedNow.Add(-24 * time.Hour)},
	}, nil).Once()

	overview, err := suite.service.GetDriversWithPendingSettlement(suite.ctx, adminCaller)

	suite.Require().NoError(err)
	suite.Require().Len(overview.Drivers, 1)
	row := overview.Drivers[0]
	suite.Equal(rich.UserID, row.DriverID)
	suite.True(row.HasPendingRequest)
	suite.Equal(fixedNow, *row.LastSettlementRequest)
	suite.True(amount(6000).Equal(overview.TotalCash))
	suite.Equal(1, overview.TotalReturns)
}

func (suite *ReconciliationServiceTestSuite) TestGetSettlementHistory_CourierScopedToSelf() {
	other := otherCourier.UserID
	_, err := suite.service.GetSettlementHistory(suite.ctx, courierCaller, domain.SettlementFilter{DriverID: &other})
	suite.ErrorIs(err, apperrors.ErrForbidden)

	suite.settlementRepo.On("ListSettlements", suite.ctx, mock.MatchedBy(func(f domain.SettlementFilter) bool {
		return f.DriverID != nil && *f.DriverID == courierCaller.UserID
	})).Return([]domain.SettlementRecord{
		{SettlementID: "s1", AmountCollected: amount(4000), DebtGenerated: amount(1000)},
	}, nil).Once()

	history, err := suite.service.GetSettlementHistory(suite.ctx, courierCaller, domain.SettlementFilter{})

	suite.Require().NoError(err)
	suite.Len(history.Records, 1)
	suite.Equal(1, history.Totals.Count)
}

func TestReconciliationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReconciliationServiceTestSuite))
}
