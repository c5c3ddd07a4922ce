package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// --- Transactions ---

// fakeTxManager hands out nil transactions and counts commits and rollbacks.
type fakeTxManager struct {
	mu        sync.Mutex
	begins    int
	commits   int
	rollbacks int
	beginErr  error
	commitErr error
}

func (f *fakeTxManager) Begin(ctx context.Context) (pgx.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begins++
	return nil, f.beginErr
}

func (f *fakeTxManager) Commit(ctx context.Context, tx pgx.Tx) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	return nil
}

func (f *fakeTxManager) Rollback(ctx context.Context, tx pgx.Tx) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	return nil
}

// --- Delivery repository ---

type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) FindDeliveryByID(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	args := m.Called(ctx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) FindDeliveryByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Delivery, error) {
	args := m.Called(ctx, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) ListDeliveries(ctx context.Context, filter domain.DeliveryFilter, limit int, nextToken *string) ([]domain.Delivery, *string, error) {
	args := m.Called(ctx, filter, limit, nextToken)
	var out []domain.Delivery
	if args.Get(0) != nil {
		out = args.Get(0).([]domain.Delivery)
	}
	var next *string
	if args.Get(1) != nil {
		next = args.Get(1).(*string)
	}
	return out, next, args.Error(2)
}

func (m *MockDeliveryRepository) FindDeliveriesByCourier(ctx context.Context, courierID string) ([]domain.Delivery, error) {
	args := m.Called(ctx, courierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) FindDeliveriesByCouriers(ctx context.Context, courierIDs []string) (map[string][]domain.Delivery, error) {
	args := m.Called(ctx, courierIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]domain.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) GetDeliveryStats(ctx context.Context) (*domain.DeliveryStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryStats), args.Error(1)
}

func (m *MockDeliveryRepository) SaveDelivery(ctx context.Context, delivery domain.Delivery) error {
	args := m.Called(ctx, delivery)
	return args.Error(0)
}

func (m *MockDeliveryRepository) UpdateDelivery(ctx context.Context, delivery domain.Delivery) error {
	args := m.Called(ctx, delivery)
	return args.Error(0)
}

func (m *MockDeliveryRepository) FindDeliveryByIDForUpdate(ctx context.Context, tx pgx.Tx, deliveryID string) (*domain.Delivery, error) {
	args := m.Called(ctx, tx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) FindCourierDeliveriesForUpdate(ctx context.Context, tx pgx.Tx, courierID string) ([]domain.Delivery, error) {
	args := m.Called(ctx, tx, courierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Delivery), args.Error(1)
}

func (m *MockDeliveryRepository) UpdateDeliveryInTx(ctx context.Context, tx pgx.Tx, delivery domain.Delivery) error {
	args := m.Called(ctx, tx, delivery)
	return args.Error(0)
}

func (m *MockDeliveryRepository) UpdateDeliveriesInTx(ctx context.Context, tx pgx.Tx, deliveries []domain.Delivery) error {
	args := m.Called(ctx, tx, deliveries)
	return args.Error(0)
}

// --- Debt repository ---

type MockDebtRepository struct {
	mock.Mock
}

func (m *MockDebtRepository) FindDebtByID(ctx context.Context, debtID string) (*domain.DebtRecord, error) {
	args := m.Called(ctx, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DebtRecord), args.Error(1)
}

func (m *MockDebtRepository) ListDebts(ctx context.Context, filter domain.DebtFilter) ([]domain.DebtRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DebtRecord), args.Error(1)
}

func (m *MockDebtRepository) PendingTotalsByDriver(ctx context.Context) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockDebtRepository) FindDebtByIDForUpdate(ctx context.Context, tx pgx.Tx, debtID string) (*domain.DebtRecord, error) {
	args := m.Called(ctx, tx, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DebtRecord), args.Error(1)
}

func (m *MockDebtRepository) FindPendingDebtsForUpdate(ctx context.Context, tx pgx.Tx, driverID string) ([]domain.DebtRecord, error) {
	args := m.Called(ctx, tx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DebtRecord), args.Error(1)
}

func (m *MockDebtRepository) SaveDebtInTx(ctx context.Context, tx pgx.Tx, debt domain.DebtRecord) error {
	args := m.Called(ctx, tx, debt)
	return args.Error(0)
}

func (m *MockDebtRepository) UpdateDebtsInTx(ctx context.Context, tx pgx.Tx, debts []domain.DebtRecord) error {
	args := m.Called(ctx, tx, debts)
	return args.Error(0)
}

// --- Settlement, reconciliation and payroll repositories ---

type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) ListSettlements(ctx context.Context, filter domain.SettlementFilter) ([]domain.SettlementRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SettlementRecord), args.Error(1)
}

func (m *MockSettlementRepository) SaveSettlementInTx(ctx context.Context, tx pgx.Tx, record domain.SettlementRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

type MockReconciliationRepository struct {
	mock.Mock
}

func (m *MockReconciliationRepository) FindPendingRequestByCourier(ctx context.Context, courierID string) (*domain.ReconciliationRequest, error) {
	args := m.Called(ctx, courierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationRequest), args.Error(1)
}

func (m *MockReconciliationRepository) ListPendingRequests(ctx context.Context) ([]domain.ReconciliationRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReconciliationRequest), args.Error(1)
}

func (m *MockReconciliationRepository) SaveRequest(ctx context.Context, request domain.ReconciliationRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockReconciliationRepository) ApprovePendingRequestsInTx(ctx context.Context, tx pgx.Tx, courierID, adminID, settlementID string, now time.Time) (int64, error) {
	args := m.Called(ctx, tx, courierID, adminID, settlementID, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockPayrollRepository struct {
	mock.Mock
}

func (m *MockPayrollRepository) ListPayrollsByDriver(ctx context.Context, driverID string) ([]domain.PayrollRecord, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PayrollRecord), args.Error(1)
}

func (m *MockPayrollRepository) SavePayrollInTx(ctx context.Context, tx pgx.Tx, record domain.PayrollRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

// --- Notification repository ---

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) SaveNotification(ctx context.Context, notification domain.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *MockNotificationRepository) FindNotificationByID(ctx context.Context, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, notificationID string, now time.Time) error {
	args := m.Called(ctx, notificationID, now)
	return args.Error(0)
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID string, now time.Time) (int64, error) {
	args := m.Called(ctx, userID, now)
	return args.Get(0).(int64), args.Error(1)
}

// --- Collaborators ---

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu     sync.Mutex
	direct []domain.NotificationInput
	roles  []domain.UserRole
}

func (r *recordingNotifier) Notify(ctx context.Context, in domain.NotificationInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct = append(r.direct, in)
}

func (r *recordingNotifier) NotifyRole(ctx context.Context, role domain.UserRole, in domain.NotificationInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = append(r.roles, role)
	r.direct = append(r.direct, in)
}

type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Upload(ctx context.Context, file portssvc.BlobFile, folder string) (portssvc.BlobRef, error) {
	args := m.Called(ctx, file, folder)
	return args.Get(0).(portssvc.BlobRef), args.Error(1)
}

func (m *MockBlobStorage) Delete(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

// fakeLocker refuses a second Acquire for the same courier until released.
// A non-nil down makes every Acquire fail as an unreachable backend would.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
	down error
}

func (f *fakeLocker) Acquire(ctx context.Context, courierID string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down != nil {
		return nil, f.down
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[courierID] {
		return nil, f.err
	}
	f.held[courierID] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, courierID)
	}, nil
}

// --- Fixtures ---

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

var (
	adminCaller   = domain.Caller{UserID: "admin-1", Role: domain.RoleAdmin}
	courierCaller = domain.Caller{UserID: "courier-1", Role: domain.RoleDeliveryMan}
	otherCourier  = domain.Caller{UserID: "courier-2", Role: domain.RoleDeliveryMan}
)

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testCourier(id string) *domain.User {
	return &domain.User{
		UserID:      id,
		Name:        "Jean Livreur",
		Phone:       "690000001",
		Role:        domain.RoleDeliveryMan,
		IsActive:    true,
		DebtBalance: decimal.Zero,
	}
}

// newDelivery builds a pending delivery with one package per amount; package ids are pkg-1, pkg-2, ...
func newDelivery(deliveryType domain.DeliveryType, amounts ...int64) *domain.Delivery {
	pkgs := make([]domain.Package, 0, len(amounts))
	for i, a := range amounts {
		n := string(rune('1' + i))
		pkgs = append(pkgs, domain.Package{
			ID:             "pkg-" + n,
			TrackingNumber: "GELT1ABCD000" + n,
			Recipient:      "Awa",
			RecipientPhone: "677000000",
			Destination:    "Bastos",
			Amount:         amount(a),
		})
	}
	d, err := domain.NewDelivery("delivery-1", deliveryType, domain.ClientInfo{Name: "Boutique Mimi", Phone: "677111111"}, "", pkgs, adminCaller.UserID, fixedNow)
	if err != nil {
		panic(err)
	}
	return d
}

// assigned returns a delivery assigned to courier-1.
func assigned(deliveryType domain.DeliveryType, amounts ...int64) *domain.Delivery {
	d := newDelivery(deliveryType, amounts...)
	if err := d.Assign(*testCourier(courierCaller.UserID), adminCaller.UserID, fixedNow); err != nil {
		panic(err)
	}
	return d
}

// advance walks a package through statuses as courier-1.
func advance(d *domain.Delivery, packageID string, statuses ...domain.PackageStatus) {
	for _, s := range statuses {
		if _, err := d.UpdatePackageStatus(courierCaller.UserID, packageID, s, domain.PackageUpdate{}, fixedNow); err != nil {
			panic(err)
		}
	}
}

// --- User repository ---

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindUsersByIDs(ctx context.Context, userIDs []string) (map[string]domain.User, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.User), args.Error(1)
}

func (m *MockUserRepository) FindUsersByRole(ctx context.Context, role domain.UserRole, activeOnly bool, limit int, offset int) ([]domain.User, error) {
	args := m.Called(ctx, role, activeOnly, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *MockUserRepository) SaveUser(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, user domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string, mustChange bool, now time.Time) error {
	args := m.Called(ctx, userID, passwordHash, mustChange, now)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateFCMToken(ctx context.Context, userID string, token string, now time.Time) error {
	args := m.Called(ctx, userID, token, now)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateRefreshToken(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockUserRepository) ClearRefreshToken(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserRepository) FindUserByIDForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.User, error) {
	args := m.Called(ctx, tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateDebtBalanceInTx(ctx context.Context, tx pgx.Tx, userID string, balance decimal.Decimal, now time.Time) error {
	args := m.Called(ctx, tx, userID, balance, now)
	return args.Error(0)
}
