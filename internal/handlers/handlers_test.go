package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/SscSPs/geexpress_backend/internal/handlers"
	"github.com/SscSPs/geexpress_backend/internal/platform/config"
	"github.com/SscSPs/geexpress_backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock DeliveryService ---
type MockDeliveryService struct {
	mock.Mock
}

func (m *MockDeliveryService) delivery(args mock.Arguments) (*domain.Delivery, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *MockDeliveryService) CreateDelivery(ctx context.Context, caller domain.Caller, req dto.CreateDeliveryRequest) (*domain.Delivery, error) {
	return m.delivery(m.Called(ctx, caller, req))
}
func (m *MockDeliveryService) AssignDelivery(ctx context.Context, caller domain.Caller, deliveryID, courierID string) (*domain.Delivery, error) {
	return m.delivery(m.Called(ctx, caller, deliveryID, courierID))
}
func (m *MockDeliveryService) StartDelivery(ctx context.Context, caller domain.Caller, deliveryID string) (*domain.Delivery, error) {
	return m.delivery(m.Called(ctx, caller, deliveryID))
}
func (m *MockDeliveryService) UpdatePackageStatus(ctx context.Context, caller domain.Caller, deliveryID, packageID string, req dto.UpdatePackageStatusRequest) (*domain.Delivery, error) {
	return m.delivery(m.Called(ctx, caller, deliveryID, packageID, req))
}
func (m *MockDeliveryService) UploadTransferReceipt(ctx context.Context, caller domain.Caller, deliveryID string, file portssvc.BlobFile) (*domain.Delivery, error) {
	return m.delivery(m.Called(ctx, caller, deliveryID, file))
}
func (m *MockDeliveryService) ReportIssue(ctx context.Context, caller domain.Caller, deliveryID string, req dto.ReportIssueRequest) (*domain.Delivery, error) {
	return m.delivery(m.Called(ctx, caller, deliveryID, req))
}
func (m *MockDeliveryService) CancelDelivery(ctx context.Context, caller domain.Caller, deliveryID string) (*domain.Delivery, error) {
	return m.delivery(m.Called(ctx, caller, deliveryID))
}
func (m *MockDeliveryService) UpdatePackageInfo(ctx context.Context, caller domain.Caller, deliveryID, packageID string, req dto.UpdatePackageInfoRequest) (*domain.Delivery, error) {
	return m.delivery(m.Called(ctx, caller, deliveryID, packageID, req))
}
func (m *MockDeliveryService) GetDelivery(ctx context.Context, caller domain.Caller, deliveryID string) (*domain.Delivery, error) {
	return m.delivery(m.Called(ctx, caller, deliveryID))
}
func (m *MockDeliveryService) ListDeliveries(ctx context.Context, caller domain.Caller, params dto.ListDeliveriesParams) ([]domain.Delivery, *string, error) {
	args := m.Called(ctx, caller, params)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	next, _ := args.Get(1).(*string)
	return args.Get(0).([]domain.Delivery), next, args.Error(2)
}
func (m *MockDeliveryService) GetAvailableDeliveries(ctx context.Context, caller domain.Caller, limit int, nextToken *string) ([]domain.Delivery, *string, error) {
	args := m.Called(ctx, caller, limit, nextToken)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	next, _ := args.Get(1).(*string)
	return args.Get(0).([]domain.Delivery), next, args.Error(2)
}
func (m *MockDeliveryService) GetAssignedDeliveries(ctx context.Context, caller domain.Caller) ([]domain.Delivery, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Delivery), args.Error(1)
}
func (m *MockDeliveryService) GetDeliveryManStats(ctx context.Context, caller domain.Caller) (*domain.DeliveryManStats, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryManStats), args.Error(1)
}
func (m *MockDeliveryService) GetDeliveryStats(ctx context.Context, caller domain.Caller) (*domain.DeliveryStats, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryStats), args.Error(1)
}
func (m *MockDeliveryService) GetDeliveryHistory(ctx context.Context, caller domain.Caller, period domain.HistoryPeriod) ([]domain.DailyHistory, error) {
	args := m.Called(ctx, caller, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DailyHistory), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.DeliverySvcFacade = (*MockDeliveryService)(nil)

// --- Mock TrackingService ---
type MockTrackingService struct {
	mock.Mock
}

func (m *MockTrackingService) TrackPackage(ctx context.Context, caller domain.Caller, trackingNumber string) (*domain.TrackingResult, error) {
	args := m.Called(ctx, caller, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrackingResult), args.Error(1)
}
func (m *MockTrackingService) TrackPackagePublic(ctx context.Context, trackingNumber string) (*domain.PublicTracking, error) {
	args := m.Called(ctx, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PublicTracking), args.Error(1)
}

var _ portssvc.TrackingSvc = (*MockTrackingService)(nil)

// --- Mock AuthService ---
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, phone, password string) (*portssvc.AuthSession, error) {
	args := m.Called(ctx, phone, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portssvc.AuthSession), args.Error(1)
}
func (m *MockAuthService) Refresh(ctx context.Context, userID, refreshToken string) (*portssvc.AuthSession, error) {
	args := m.Called(ctx, userID, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portssvc.AuthSession), args.Error(1)
}
func (m *MockAuthService) Logout(ctx context.Context, caller domain.Caller) error {
	return m.Called(ctx, caller).Error(0)
}
func (m *MockAuthService) ChangePassword(ctx context.Context, caller domain.Caller, currentPassword, newPassword string) error {
	return m.Called(ctx, caller, currentPassword, newPassword).Error(0)
}

var _ portssvc.AuthSvcFacade = (*MockAuthService)(nil)

// --- Mock ReconciliationService ---
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) GetReconciliationSummary(ctx context.Context, caller domain.Caller) (*domain.ReconciliationSummary, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationSummary), args.Error(1)
}
func (m *MockReconciliationService) RequestReconciliation(ctx context.Context, caller domain.Caller, req dto.RequestReconciliationRequest) (*domain.ReconciliationRequest, error) {
	args := m.Called(ctx, caller, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationRequest), args.Error(1)
}
func (m *MockReconciliationService) GetDriversWithPendingSettlement(ctx context.Context, caller domain.Caller) (*domain.PendingSettlementOverview, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PendingSettlementOverview), args.Error(1)
}
func (m *MockReconciliationService) GetDriverSettlementDetails(ctx context.Context, caller domain.Caller, driverID string) (*domain.DriverSettlementDetails, error) {
	args := m.Called(ctx, caller, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DriverSettlementDetails), args.Error(1)
}
func (m *MockReconciliationService) SettleDriverPayment(ctx context.Context, caller domain.Caller, driverID string, req dto.SettleDriverPaymentRequest) (*domain.SettlementRecord, error) {
	args := m.Called(ctx, caller, driverID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementRecord), args.Error(1)
}
func (m *MockReconciliationService) GetSettlementHistory(ctx context.Context, caller domain.Caller, filter domain.SettlementFilter) (*domain.SettlementHistory, error) {
	args := m.Called(ctx, caller, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementHistory), args.Error(1)
}
func (m *MockReconciliationService) GetSettlementStats(ctx context.Context, caller domain.Caller, rng domain.DateRange) (*domain.SettlementStats, error) {
	args := m.Called(ctx, caller, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementStats), args.Error(1)
}

var _ portssvc.ReconciliationSvcFacade = (*MockReconciliationService)(nil)

// --- Test Suite ---
type HandlerTestSuite struct {
	suite.Suite
	router             *gin.Engine
	cfg                *config.Config
	mockDelivery       *MockDeliveryService
	mockTracking       *MockTrackingService
	mockAuth           *MockAuthService
	mockReconciliation *MockReconciliationService
}

var (
	admin   = domain.Caller{UserID: "admin-1", Role: domain.RoleAdmin}
	courier = domain.Caller{UserID: "courier-1", Role: domain.RoleDeliveryMan}
)

func (suite *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.cfg = &config.Config{
		JWTSecret:          "test-secret-key-that-is-long-enough",
		JWTExpiryDuration:  time.Hour,
		JWTIssuer:          "geexpress-test",
		IsProduction:       true,
		LoginRate:          "100-M",
		PublicTrackingRate: "2-M",
	}

	suite.mockDelivery = new(MockDeliveryService)
	suite.mockTracking = new(MockTrackingService)
	suite.mockAuth = new(MockAuthService)
	suite.mockReconciliation = new(MockReconciliationService)

	handlers.RegisterRoutes(suite.router, suite.cfg, &portssvc.ServiceContainer{
		Delivery:       suite.mockDelivery,
		Tracking:       suite.mockTracking,
		Auth:           suite.mockAuth,
		Reconciliation: suite.mockReconciliation,
	})
}

func (suite *HandlerTestSuite) TearDownTest() {
	suite.mockDelivery.AssertExpectations(suite.T())
	suite.mockTracking.AssertExpectations(suite.T())
	suite.mockAuth.AssertExpectations(suite.T())
	suite.mockReconciliation.AssertExpectations(suite.T())
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

// token issues a real access token for the caller.
func (suite *HandlerTestSuite) token(caller domain.Caller) string {
	tok, err := utils.GenerateJWT(caller.UserID, string(caller.Role), suite.cfg.JWTSecret, time.Hour, suite.cfg.JWTIssuer)
	suite.Require().NoError(err)
	return tok
}

func (suite *HandlerTestSuite) do(method, path string, caller *domain.Caller, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:1234"
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+suite.token(*caller))
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlerTestSuite) errorBody(w *httptest.ResponseRecorder) string {
	var resp handlers.ErrorResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func validCreateRequest() map[string]any {
	return map[string]any{
		"deliveryType": "local",
		"clientInfo":   map[string]any{"name": "Boutique Alpha", "phone": "+237600000000"},
		"packages": []map[string]any{
			{"recipient": "Jean", "destination": "Bastos", "amount": "5000"},
		},
	}
}

// --- Test Cases ---

func (suite *HandlerTestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlerTestSuite) TestMissingToken() {
	w := suite.do(http.MethodGet, "/api/v1/deliveries", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlerTestSuite) TestTokenSignedWithOtherSecret() {
	tok, err := utils.GenerateJWT("admin-1", "admin", "another-secret", time.Hour, "x")
	suite.Require().NoError(err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlerTestSuite) TestCreateDelivery_Success() {
	created := &domain.Delivery{DeliveryID: "dlv-1", DeliveryType: domain.DeliveryLocal, Status: domain.DeliveryPending}
	suite.mockDelivery.On("CreateDelivery", mock.Anything, admin, mock.MatchedBy(func(req dto.CreateDeliveryRequest) bool {
		return req.DeliveryType == domain.DeliveryLocal && len(req.Packages) == 1 &&
			req.Packages[0].Amount.Equal(decimal.NewFromInt(5000))
	})).Return(created, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/deliveries", &admin, validCreateRequest())

	suite.Equal(http.StatusCreated, w.Code)
	var resp domain.Delivery
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("dlv-1", resp.DeliveryID)
}

func (suite *HandlerTestSuite) TestCreateDelivery_CourierForbidden() {
	w := suite.do(http.MethodPost, "/api/v1/deliveries", &courier, validCreateRequest())
	suite.Equal(http.StatusForbidden, w.Code)
	suite.mockDelivery.AssertNotCalled(suite.T(), "CreateDelivery", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *HandlerTestSuite) TestCreateDelivery_UnknownTypeRejectedByValidator() {
	body := validCreateRequest()
	body["deliveryType"] = "drone"

	w := suite.do(http.MethodPost, "/api/v1/deliveries", &admin, body)

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(suite.errorBody(w), "deliverytype")
}

func (suite *HandlerTestSuite) TestCreateDelivery_EmptyPackages() {
	body := validCreateRequest()
	body["packages"] = []map[string]any{}

	w := suite.do(http.MethodPost, "/api/v1/deliveries", &admin, body)

	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestUpdatePackageStatus_InvalidTransition() {
	suite.mockDelivery.On("UpdatePackageStatus", mock.Anything, courier, "dlv-1", "pkg-1", mock.Anything).
		Return(nil, fmt.Errorf("%w: pending -> delivered", apperrors.ErrInvalidTransition)).Once()

	w := suite.do(http.MethodPut, "/api/v1/deliveries/dlv-1/packages/pkg-1/status", &courier,
		map[string]any{"status": "delivered"})

	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Contains(suite.errorBody(w), "pending -> delivered")
}

func (suite *HandlerTestSuite) TestReportIssue_UnknownType() {
	w := suite.do(http.MethodPost, "/api/v1/deliveries/dlv-1/issues", &courier,
		map[string]any{"issueType": "alien_abduction", "description": "gone"})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestReportIssue_Success() {
	suite.mockDelivery.On("ReportIssue", mock.Anything, courier, "dlv-1", dto.ReportIssueRequest{
		IssueType: domain.IssueRecipientUnavailable, Description: "no answer",
	}).Return(&domain.Delivery{DeliveryID: "dlv-1", Status: domain.DeliveryIssueReported}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/deliveries/dlv-1/issues", &courier,
		map[string]any{"issueType": "recipient_unavailable", "description": "no answer"})

	suite.Equal(http.StatusCreated, w.Code)
}

func (suite *HandlerTestSuite) TestGetDelivery_InternalErrorIsHidden() {
	suite.mockDelivery.On("GetDelivery", mock.Anything, admin, "dlv-1").
		Return(nil, fmt.Errorf("failed to find delivery dlv-1: connection reset")).Once()

	w := suite.do(http.MethodGet, "/api/v1/deliveries/dlv-1", &admin, nil)

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.Equal("Failed to retrieve delivery", suite.errorBody(w))
}

func (suite *HandlerTestSuite) TestGetDelivery_NotFound() {
	suite.mockDelivery.On("GetDelivery", mock.Anything, courier, "missing").Return(nil, apperrors.ErrNotFound).Once()

	w := suite.do(http.MethodGet, "/api/v1/deliveries/missing", &courier, nil)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestListDeliveries_PassesQuery() {
	next := "tok-2"
	suite.mockDelivery.On("ListDeliveries", mock.Anything, admin, mock.MatchedBy(func(p dto.ListDeliveriesParams) bool {
		return p.Limit == 5 && p.Status != nil && *p.Status == "pending" && p.NextToken != nil && *p.NextToken == "tok-1"
	})).Return([]domain.Delivery{{DeliveryID: "dlv-9"}}, &next, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/deliveries?status=pending&limit=5&nextToken=tok-1", &admin, nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ListDeliveriesResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Len(resp.Deliveries, 1)
	suite.Require().NotNil(resp.NextToken)
	suite.Equal("tok-2", *resp.NextToken)
}

func (suite *HandlerTestSuite) TestListDeliveries_LimitOutOfRange() {
	w := suite.do(http.MethodGet, "/api/v1/deliveries?limit=500", &admin, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestAssignedDeliveries_AdminForbidden() {
	w := suite.do(http.MethodGet, "/api/v1/deliveries/assigned", &admin, nil)
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *HandlerTestSuite) TestPublicTracking_RateLimited() {
	view := &domain.PublicTracking{TrackingNumber: "GEABC1234", Status: domain.PackageInTransit}
	suite.mockTracking.On("TrackPackagePublic", mock.Anything, "GEABC1234").Return(view, nil).Twice()

	for i := 0; i < 2; i++ {
		w := suite.do(http.MethodGet, "/api/v1/public/tracking/GEABC1234", nil, nil)
		suite.Equal(http.StatusOK, w.Code)
	}
	w := suite.do(http.MethodGet, "/api/v1/public/tracking/GEABC1234", nil, nil)
	suite.Equal(http.StatusTooManyRequests, w.Code)
}

func (suite *HandlerTestSuite) TestTrackPackage_Authenticated() {
	suite.mockTracking.On("TrackPackage", mock.Anything, courier, "GEXYZ0000").Return(nil, apperrors.ErrNotFound).Once()

	w := suite.do(http.MethodGet, "/api/v1/tracking/GEXYZ0000", &courier, nil)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestLogin_Success() {
	user := &domain.User{UserID: "courier-1", Name: "Awa", Phone: "+237611111111", Role: domain.RoleDeliveryMan, IsActive: true}
	suite.mockAuth.On("Login", mock.Anything, "+237611111111", "0000").Return(&portssvc.AuthSession{
		User:         user,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/auth/login", nil, dto.LoginRequest{Phone: "+237611111111", Password: "0000"})

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.LoginResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("access", resp.Token)
	suite.Equal("refresh", resp.RefreshToken)
	suite.Equal("courier-1", resp.User.UserID)
}

func (suite *HandlerTestSuite) TestLogin_BadCredentials() {
	suite.mockAuth.On("Login", mock.Anything, "+237611111111", "nope").
		Return(nil, fmt.Errorf("%w: invalid phone or password", apperrors.ErrUnauthorized)).Once()

	w := suite.do(http.MethodPost, "/api/v1/auth/login", nil, dto.LoginRequest{Phone: "+237611111111", Password: "nope"})

	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlerTestSuite) TestLogin_InactiveAccount() {
	suite.mockAuth.On("Login", mock.Anything, "+237622222222", "0000").
		Return(nil, fmt.Errorf("%w: account disabled", apperrors.ErrForbidden)).Once()

	w := suite.do(http.MethodPost, "/api/v1/auth/login", nil, dto.LoginRequest{Phone: "+237622222222", Password: "0000"})

	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *HandlerTestSuite) TestLogout_RequiresAuth() {
	w := suite.do(http.MethodPost, "/api/v1/auth/logout", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	suite.mockAuth.On("Logout", mock.Anything, courier).Return(nil).Once()
	w = suite.do(http.MethodPost, "/api/v1/auth/logout", &courier, nil)
	suite.Equal(http.StatusNoContent, w.Code)
}

func (suite *HandlerTestSuite) TestSettleDriverPayment_InFlight() {
	suite.mockReconciliation.On("SettleDriverPayment", mock.Anything, admin, "courier-1", mock.Anything).
		Return(nil, fmt.Errorf("%w: settlement already in progress", apperrors.ErrConflict)).Once()

	w := suite.do(http.MethodPost, "/api/v1/settlements/drivers/courier-1/settle", &admin,
		map[string]any{"amountCollected": "10000"})

	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *HandlerTestSuite) TestSettleDriverPayment_Success() {
	record := &domain.SettlementRecord{SettlementID: "stl-1", DriverID: "courier-1", DebtGenerated: decimal.NewFromInt(2000)}
	suite.mockReconciliation.On("SettleDriverPayment", mock.Anything, admin, "courier-1", mock.MatchedBy(func(req dto.SettleDriverPaymentRequest) bool {
		return req.AmountCollected.Equal(decimal.NewFromInt(8000)) && req.ConfirmReturns
	})).Return(record, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/settlements/drivers/courier-1/settle", &admin,
		map[string]any{"amountCollected": "8000", "confirmReturns": true})

	suite.Equal(http.StatusCreated, w.Code)
}

func (suite *HandlerTestSuite) TestSettlementHistory_DateFilter() {
	suite.mockReconciliation.On("GetSettlementHistory", mock.Anything, courier, mock.MatchedBy(func(f domain.SettlementFilter) bool {
		return f.DriverID == nil && f.Range.From != nil && f.Range.To != nil &&
			f.Range.To.Hour() == 23 && f.Range.From.Day() == 1
	})).Return(&domain.SettlementHistory{}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/settlements/history?from=2024-03-01&to=2024-03-31", &courier, nil)

	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlerTestSuite) TestReconciliationSummary_AdminForbidden() {
	w := suite.do(http.MethodGet, "/api/v1/reconciliation/summary", &admin, nil)
	suite.Equal(http.StatusForbidden, w.Code)
}
