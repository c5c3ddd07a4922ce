package services_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/core/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type DeliveryServiceTestSuite struct {
	suite.Suite
	ctx          context.Context
	tx           *fakeTxManager
	deliveryRepo *MockDeliveryRepository
	userRepo     *MockUserRepository
	blob         *MockBlobStorage
	notifier     *recordingNotifier
	service      portssvc.DeliverySvcFacade
}

func (suite *DeliveryServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.tx = &fakeTxManager{}
	suite.deliveryRepo = new(MockDeliveryRepository)
	suite.userRepo = new(MockUserRepository)
	suite.blob = new(MockBlobStorage)
	suite.notifier = &recordingNotifier{}
	suite.service = services.NewDeliveryService(suite.tx, suite.deliveryRepo, suite.userRepo,
		services.WithDeliveryNotifier(suite.notifier),
		services.WithDeliveryBlobStorage(suite.blob),
		services.WithDeliveryClock(fixedClock),
	)
}

func createRequest() dto.CreateDeliveryRequest {
	return dto.CreateDeliveryRequest{
		DeliveryType: domain.DeliveryLocal,
		ClientInfo:   dto.ClientInfoInput{Name: "Boutique Mimi", Phone: "677111111"},
		Packages: []dto.PackageInput{
			{Recipient: "Awa", Destination: "Bastos", Amount: amount(5000)},
			{Recipient: "Paul", Destination: "Mvan", Amount: amount(3000)},
		},
	}
}

// --- CreateDelivery ---

func (suite *DeliveryServiceTestSuite) TestCreateDelivery_Success() {
	var saved domain.Delivery
	suite.deliveryRepo.On("SaveDelivery", suite.ctx, mock.AnythingOfType("domain.Delivery")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(domain.Delivery) }).
		Return(nil).Once()

	delivery, err := suite.service.CreateDelivery(suite.ctx, adminCaller, createRequest())

	suite.Require().NoError(err)
	suite.Equal(domain.DeliveryPending, delivery.Status)
	suite.Equal(domain.SettlementPending, delivery.SettlementStatus)
	suite.True(amount(8000).Equal(delivery.TotalAmount))
	suite.Len(delivery.Packages, 2)
	suite.NotEqual(delivery.Packages[0].TrackingNumber, delivery.Packages[1].TrackingNumber)
	for _, p := range delivery.Packages {
		suite.NotEmpty(p.ID)
		suite.True(domain.IsWellFormedTrackingNumber(p.TrackingNumber), p.TrackingNumber)
		suite.Equal(domain.PackagePending, p.Status)
	}
	suite.Equal(delivery.DeliveryID, saved.DeliveryID)
	suite.Equal(adminCaller.UserID, saved.CreatedBy)
	suite.deliveryRepo.AssertExpectations(suite.T())
}

func (suite *DeliveryServiceTestSuite) TestCreateDelivery_RetriesOnTrackingCollision() {
	suite.deliveryRepo.On("SaveDelivery", suite.ctx, mock.Anything).Return(apperrors.ErrDuplicate).Twice()
	suite.deliveryRepo.On("SaveDelivery", suite.ctx, mock.Anything).Return(nil).Once()

	delivery, err := suite.service.CreateDelivery(suite.ctx, adminCaller, createRequest())

	suite.Require().NoError(err)
	suite.NotNil(delivery)
	suite.deliveryRepo.AssertNumberOfCalls(suite.T(), "SaveDelivery", 3)
}

func (suite *DeliveryServiceTestSuite) TestCreateDelivery_GivesUpAfterRepeatedCollisions() {
	suite.deliveryRepo.On("SaveDelivery", suite.ctx, mock.Anything).Return(apperrors.ErrDuplicate)

	delivery, err := suite.service.CreateDelivery(suite.ctx, adminCaller, createRequest())

	suite.Nil(delivery)
	suite.ErrorIs(err, apperrors.ErrConflict)
	suite.deliveryRepo.AssertNumberOfCalls(suite.T(), "SaveDelivery", 5)
}

func (suite *DeliveryServiceTestSuite) TestCreateDelivery_ValidationAndRole() {
	req := createRequest()
	req.Packages = nil
	_, err := suite.service.CreateDelivery(suite.ctx, adminCaller, req)
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = suite.service.CreateDelivery(suite.ctx, courierCaller, createRequest())
	suite.ErrorIs(err, apperrors.ErrForbidden)

	suite.deliveryRepo.AssertNotCalled(suite.T(), "SaveDelivery", mock.Anything, mock.Anything)
}

// --- AssignDelivery ---

func (suite *DeliveryServiceTestSuite) TestAssignDelivery_NotifiesCourier() {
	d := newDelivery(domain.DeliveryLocal, 5000)
	suite.userRepo.On("FindUserByID", suite.ctx, courierCaller.UserID).Return(testCourier(courierCaller.UserID), nil).Once()
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()
	suite.deliveryRepo.On("UpdateDeliveryInTx", suite.ctx, mock.Anything, mock.Anything).Return(nil).Once()

	delivery, err := suite.service.AssignDelivery(suite.ctx, adminCaller, d.DeliveryID, courierCaller.UserID)

	suite.Require().NoError(err)
	suite.Equal(domain.DeliveryAssigned, delivery.Status)
	suite.True(delivery.IsAssignedTo(courierCaller.UserID))
	suite.Equal(1, suite.tx.commits)
	suite.Require().Len(suite.notifier.direct, 1)
	suite.Equal(courierCaller.UserID, suite.notifier.direct[0].RecipientUserID)
	suite.Equal(domain.NotificationDeliveryAssigned, suite.notifier.direct[0].Type)
}

func (suite *DeliveryServiceTestSuite) TestAssignDelivery_SameCourierDoesNotNotifyAgain() {
	d := assigned(domain.DeliveryLocal, 5000)
	suite.userRepo.On("FindUserByID", suite.ctx, courierCaller.UserID).Return(testCourier(courierCaller.UserID), nil).Once()
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()
	suite.deliveryRepo.On("UpdateDeliveryInTx", suite.ctx, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := suite.service.AssignDelivery(suite.ctx, adminCaller, d.DeliveryID, courierCaller.UserID)

	suite.Require().NoError(err)
	suite.Empty(suite.notifier.direct)
}

func (suite *DeliveryServiceTestSuite) TestAssignDelivery_CancelledIsConflict() {
	d := newDelivery(domain.DeliveryLocal, 5000)
	suite.Require().NoError(d.Cancel(adminCaller.UserID, fixedNow))
	suite.userRepo.On("FindUserByID", suite.ctx, courierCaller.UserID).Return(testCourier(courierCaller.UserID), nil).Once()
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()

	_, err := suite.service.AssignDelivery(suite.ctx, adminCaller, d.DeliveryID, courierCaller.UserID)

	suite.ErrorIs(err, apperrors.ErrConflict)
	suite.Equal(0, suite.tx.commits)
	suite.Equal(1, suite.tx.rollbacks)
	suite.deliveryRepo.AssertNotCalled(suite.T(), "UpdateDeliveryInTx", mock.Anything, mock.Anything, mock.Anything)
	suite.Empty(suite.notifier.direct)
}

func (suite *DeliveryServiceTestSuite) TestAssignDelivery_UnknownCourier() {
	suite.userRepo.On("FindUserByID", suite.ctx, "ghost").Return(nil, apperrors.ErrNotFound).Once()

	_, err := suite.service.AssignDelivery(suite.ctx, adminCaller, "delivery-1", "ghost")

	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.Equal(0, suite.tx.begins)
}

// --- StartDelivery / UpdatePackageStatus ---

func (suite *DeliveryServiceTestSuite) TestStartDelivery_NotifiesAdmins() {
	d := assigned(domain.DeliveryLocal, 5000)
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()
	suite.deliveryRepo.On("UpdateDeliveryInTx", suite.ctx, mock.Anything, mock.Anything).Return(nil).Once()

	delivery, err := suite.service.StartDelivery(suite.ctx, courierCaller, d.DeliveryID)

	suite.Require().NoError(err)
	suite.Equal(domain.DeliveryInProgress, delivery.Status)
	suite.Equal([]domain.UserRole{domain.RoleAdmin}, suite.notifier.roles)
	suite.Equal(domain.NotificationDeliveryStarted, suite.notifier.direct[0].Type)
}

func (suite *DeliveryServiceTestSuite) TestStartDelivery_OtherCourierForbidden() {
	d := assigned(domain.DeliveryLocal, 5000)
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()

	_, err := suite.service.StartDelivery(suite.ctx, otherCourier, d.DeliveryID)

	suite.ErrorIs(err, apperrors.ErrForbidden)
	suite.Empty(suite.notifier.roles)
}

func (suite *DeliveryServiceTestSuite) TestUpdatePackageStatus_DeliveredCompletesDelivery() {
	d := assigned(domain.DeliveryLocal, 5000)
	advance(d, "pkg-1", domain.PackagePickedUp, domain.PackageInTransit)
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()
	suite.deliveryRepo.On("UpdateDeliveryInTx", suite.ctx, mock.Anything, mock.MatchedBy(func(saved domain.Delivery) bool {
		return saved.Status == domain.DeliveryDelivered
	})).Return(nil).Once()

	delivery, err := suite.service.UpdatePackageStatus(suite.ctx, courierCaller, d.DeliveryID, "pkg-1",
		dto.UpdatePackageStatusRequest{Status: domain.PackageDelivered})

	suite.Require().NoError(err)
	suite.Equal(domain.DeliveryDelivered, delivery.Status)
	suite.NotNil(delivery.CompletedAt)
	suite.True(amount(5000).Equal(delivery.TotalAmount))
	suite.deliveryRepo.AssertExpectations(suite.T())
}

func (suite *DeliveryServiceTestSuite) TestUpdatePackageStatus_Rejections() {
	_, err := suite.service.UpdatePackageStatus(suite.ctx, courierCaller, "delivery-1", "pkg-1",
		dto.UpdatePackageStatusRequest{Status: "lost"})
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.Equal(0, suite.tx.begins)

	d := assigned(domain.DeliveryLocal, 5000)
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()
	_, err = suite.service.UpdatePackageStatus(suite.ctx, courierCaller, d.DeliveryID, "pkg-1",
		dto.UpdatePackageStatusRequest{Status: domain.PackageDelivered})
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)
}

// --- UploadTransferReceipt ---

func (suite *DeliveryServiceTestSuite) receiptFile() portssvc.BlobFile {
	return portssvc.BlobFile{Reader: bytes.NewReader([]byte("jpeg")), Size: 4, Filename: "recu.jpg", ContentType: "image/jpeg"}
}

func (suite *DeliveryServiceTestSuite) TestUploadTransferReceipt_Success() {
	d := assigned(domain.DeliveryTransfer, 10000, 2000)
	ref := portssvc.BlobRef{URL: "https://cdn.example.com/r.jpg", PublicID: "transfer-receipts/r"}
	suite.deliveryRepo.On("FindDeliveryByID", suite.ctx, d.DeliveryID).Return(d, nil).Once()
	suite.blob.On("Upload", suite.ctx, mock.Anything, "transfer-receipts").Return(ref, nil).Once()
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()
	suite.deliveryRepo.On("UpdateDeliveryInTx", suite.ctx, mock.Anything, mock.Anything).Return(nil).Once()

	delivery, err := suite.service.UploadTransferReceipt(suite.ctx, courierCaller, d.DeliveryID, suite.receiptFile())

	suite.Require().NoError(err)
	suite.Equal(domain.DeliveryTransferred, delivery.Status)
	suite.Equal(ref.URL, *delivery.ReceiptURL)
	suite.True(amount(12000).Equal(delivery.TotalAmount))
	for _, p := range delivery.Packages {
		suite.Equal(domain.PackageTransferred, p.Status)
	}
	suite.Equal(domain.NotificationTransferReceipt, suite.notifier.direct[0].Type)
	suite.blob.AssertNotCalled(suite.T(), "Delete", mock.Anything, mock.Anything)
}

func (suite *DeliveryServiceTestSuite) TestUploadTransferReceipt_DeletesBlobWhenSaveFails() {
	d := assigned(domain.DeliveryTransfer, 10000)
	ref := portssvc.BlobRef{URL: "https://cdn.example.com/r.jpg", PublicID: "transfer-receipts/r"}
	dbErr := errors.New("connection reset")
	suite.deliveryRepo.On("FindDeliveryByID", suite.ctx, d.DeliveryID).Return(d, nil).Once()
	suite.blob.On("Upload", suite.ctx, mock.Anything, "transfer-receipts").Return(ref, nil).Once()
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()
	suite.deliveryRepo.On("UpdateDeliveryInTx", suite.ctx, mock.Anything, mock.Anything).Return(dbErr).Once()
	suite.blob.On("Delete", suite.ctx, ref.PublicID).Return(nil).Once()

	_, err := suite.service.UploadTransferReceipt(suite.ctx, courierCaller, d.DeliveryID, suite.receiptFile())

	suite.ErrorIs(err, dbErr)
	suite.blob.AssertExpectations(suite.T())
	suite.Empty(suite.notifier.direct)
}

func (suite *DeliveryServiceTestSuite) TestUploadTransferReceipt_LocalDeliveryRejectedBeforeUpload() {
	d := assigned(domain.DeliveryLocal, 10000)
	suite.deliveryRepo.On("FindDeliveryByID", suite.ctx, d.DeliveryID).Return(d, nil).Once()

	_, err := suite.service.UploadTransferReceipt(suite.ctx, courierCaller, d.DeliveryID, suite.receiptFile())

	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.blob.AssertNotCalled(suite.T(), "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *DeliveryServiceTestSuite) TestUploadTransferReceipt_UploadFailure() {
	d := assigned(domain.DeliveryTransfer, 10000)
	suite.deliveryRepo.On("FindDeliveryByID", suite.ctx, d.DeliveryID).Return(d, nil).Once()
	suite.blob.On("Upload", suite.ctx, mock.Anything, "transfer-receipts").Return(portssvc.BlobRef{}, errors.New("timeout")).Once()

	_, err := suite.service.UploadTransferReceipt(suite.ctx, courierCaller, d.DeliveryID, suite.receiptFile())

	suite.ErrorIs(err, apperrors.ErrExternalService)
	suite.Equal(0, suite.tx.begins)
}

// --- ReportIssue / CancelDelivery ---

func (suite *DeliveryServiceTestSuite) TestReportIssue_NotifiesAdmins() {
	d := assigned(domain.DeliveryLocal, 5000)
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()
	suite.deliveryRepo.On("UpdateDeliveryInTx", suite.ctx, mock.Anything, mock.Anything).Return(nil).Once()

	delivery, err := suite.service.ReportIssue(suite.ctx, courierCaller, d.DeliveryID, dto.ReportIssueRequest{
		IssueType:   domain.IssueRecipientUnavailable,
		Description: "Personne au domicile",
	})

	suite.Require().NoError(err)
	suite.Equal(domain.DeliveryIssueReported, delivery.Status)
	suite.Len(delivery.Issues, 1)
	suite.Equal(domain.NotificationDeliveryIssue, suite.notifier.direct[0].Type)
}

func (suite *DeliveryServiceTestSuite) TestCancelDelivery_AssignedIsConflict() {
	d := assigned(domain.DeliveryLocal, 5000)
	suite.deliveryRepo.On("FindDeliveryByIDForUpdate", suite.ctx, mock.Anything, d.DeliveryID).Return(d, nil).Once()

	_, err := suite.service.CancelDelivery(suite.ctx, adminCaller, d.DeliveryID)

	suite.ErrorIs(err, apperrors.ErrConflict)
}

// --- Readers ---

func (suite *DeliveryServiceTestSuite) TestGetDelivery_OtherCourierForbidden() {
	d := assigned(domain.DeliveryLocal, 5000)
	suite.deliveryRepo.On("FindDeliveryByID", suite.ctx, d.DeliveryID).Return(d, nil)

	_, err := suite.service.GetDelivery(suite.ctx, otherCourier, d.DeliveryID)
	suite.ErrorIs(err, apperrors.ErrForbidden)

	got, err := suite.service.GetDelivery(suite.ctx, courierCaller, d.DeliveryID)
	suite.Require().NoError(err)
	suite.Equal(d.DeliveryID, got.DeliveryID)
}

func (suite *DeliveryServiceTestSuite) TestListDeliveries_CourierScopedToSelf() {
	suite.deliveryRepo.On("ListDeliveries", suite.ctx, mock.MatchedBy(func(f domain.DeliveryFilter) bool {
		return f.DeliveryManID != nil && *f.DeliveryManID == courierCaller.UserID
	}), 20, (*string)(nil)).Return(nil, nil, nil).Once()

	deliveries, next, err := suite.service.ListDeliveries(suite.ctx, courierCaller, dto.ListDeliveriesParams{Limit: 20})

	suite.Require().NoError(err)
	suite.NotNil(deliveries)
	suite.Empty(deliveries)
	suite.Nil(next)

	_, _, err = suite.service.ListDeliveries(suite.ctx, domain.Caller{UserID: "c", Role: domain.RoleClient}, dto.ListDeliveriesParams{Limit: 20})
	suite.ErrorIs(err, apperrors.ErrForbidden)
}

func (suite *DeliveryServiceTestSuite) TestGetAssignedDeliveries_FiltersActive() {
	active := assigned(domain.DeliveryLocal, 5000)
	done := assigned(domain.DeliveryLocal, 3000)
	done.DeliveryID = "delivery-2"
	advance(done, "pkg-1", domain.PackagePickedUp, domain.PackageInTransit, domain.PackageDelivered)
	retried := assigned(domain.DeliveryLocal, 2000)
	retried.DeliveryID = "delivery-3"
	advance(retried, "pkg-1", domain.PackagePickedUp, domain.PackageInTransit, domain.PackageFailed, domain.PackagePending)
	suite.Require().Equal(domain.DeliveryPending, retried.Status)
	suite.deliveryRepo.On("FindDeliveriesByCourier", suite.ctx, courierCaller.UserID).
		Return([]domain.Delivery{*active, *done, *retried}, nil).Once()

	deliveries, err := suite.service.GetAssignedDeliveries(suite.ctx, courierCaller)

	suite.Require().NoError(err)
	suite.Require().Len(deliveries, 2)
	suite.Equal(active.DeliveryID, deliveries[0].DeliveryID)
	suite.Equal(retried.DeliveryID, deliveries[1].DeliveryID)

	_, err = suite.service.GetAssignedDeliveries(suite.ctx, adminCaller)
	suite.ErrorIs(err, apperrors.ErrForbidden)
}

func TestDeliveryServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DeliveryServiceTestSuite))
}

func TestTrackingService(t *testing.T) {
	ctx := context.Background()
	d := assigned(domain.DeliveryLocal, 5000)
	repo := new(MockDeliveryRepository)
	repo.On("FindDeliveryByTrackingNumber", ctx, "GELT1ABCD0001").Return(d, nil)
	repo.On("FindDeliveryByTrackingNumber", ctx, "GEZZZZZZZZZZ").Return(nil, apperrors.ErrNotFound)
	svc := services.NewTrackingService(repo)

	t.Run("authenticated lookup normalizes input", func(t *testing.T) {
		result, err := svc.TrackPackage(ctx, courierCaller, "  gelt1abcd0001 ")
		assert.NoError(t, err)
		if assert.NotNil(t, result) {
			assert.Equal(t, "pkg-1", result.Package.ID)
			assert.Equal(t, d.DeliveryID, result.Delivery.ID)
		}
	})

	t.Run("anonymous caller is unauthorized", func(t *testing.T) {
		_, err := svc.TrackPackage(ctx, domain.Caller{}, "GELT1ABCD0001")
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("public lookup returns the redacted view", func(t *testing.T) {
		result, err := svc.TrackPackagePublic(ctx, "GELT1ABCD0001")
		assert.NoError(t, err)
		if assert.NotNil(t, result) {
			assert.Equal(t, domain.PackagePending, result.Status)
		}
	})

	t.Run("malformed number is not found without a lookup", func(t *testing.T) {
		_, err := svc.TrackPackagePublic(ctx, "hello")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		repo.AssertNotCalled(t, "FindDeliveryByTrackingNumber", ctx, "HELLO")
	})

	t.Run("unknown number", func(t *testing.T) {
		_, err := svc.TrackPackagePublic(ctx, "GEZZZZZZZZZZ")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
