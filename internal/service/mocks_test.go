package service_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/provider/mercadopago"
	"autorenta-settlement/internal/service"
)

// MockBookingRepo
type MockBookingRepo struct {
	mock.Mock
}

func (m *MockBookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}
func (m *MockBookingRepo) Update(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}
func (m *MockBookingRepo) ListExpiringPreauths(ctx context.Context, before time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, before)
	return args.Get(0).([]domain.Booking), args.Error(1)
}
func (m *MockBookingRepo) ListInDispute(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

// MockWalletRepo
type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) CreateTransaction(ctx context.Context, tx *domain.WalletTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}
func (m *MockWalletRepo) GetTransactionByID(ctx context.Context, id string) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}
func (m *MockWalletRepo) CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
func (m *MockWalletRepo) GetTransactionByProviderID(ctx context.Context, providerID string) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}
func (m *MockWalletRepo) ConfirmDeposit(ctx context.Context, txID, providerID string, amountCents int64) error {
	args := m.Called(ctx, txID, providerID, amountCents)
	return args.Error(0)
}
func (m *MockWalletRepo) MarkFailed(ctx context.Context, txID, reason string) error {
	args := m.Called(ctx, txID, reason)
	return args.Error(0)
}
func (m *MockWalletRepo) ListPendingDeposits(ctx context.Context, olderThan time.Time, limit int) ([]domain.WalletTransaction, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).([]domain.WalletTransaction), args.Error(1)
}
func (m *MockWalletRepo) GetBalance(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockWalletRepo) ReleaseLock(ctx context.Context, lockTxID string) error {
	args := m.Called(ctx, lockTxID)
	return args.Error(0)
}
func (m *MockWalletRepo) ChargeLock(ctx context.Context, lockTxID string, chargeCents int64) (int64, error) {
	args := m.Called(ctx, lockTxID, chargeCents)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockWalletRepo) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WithdrawalRequest), args.Error(1)
}
func (m *MockWalletRepo) CompleteWithdrawal(ctx context.Context, id, providerID string) error {
	args := m.Called(ctx, id, providerID)
	return args.Error(0)
}
func (m *MockWalletRepo) FailWithdrawal(ctx context.Context, id, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}
func (m *MockWalletRepo) FindBalanceDiscrepancies(ctx context.Context) ([]domain.WalletDiscrepancy, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.WalletDiscrepancy), args.Error(1)
}

// MockSplitRepo
type MockSplitRepo struct {
	mock.Mock
}

func (m *MockSplitRepo) CreateBatch(ctx context.Context, splits []domain.PaymentSplit) error {
	args := m.Called(ctx, splits)
	return args.Error(0)
}
func (m *MockSplitRepo) ListByPayment(ctx context.Context, paymentID string) ([]domain.PaymentSplit, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).([]domain.PaymentSplit), args.Error(1)
}
func (m *MockSplitRepo) UpdateStatus(ctx context.Context, id string, status domain.SplitStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// MockIntentRepo
type MockIntentRepo struct {
	mock.Mock
}

func (m *MockIntentRepo) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

// MockFundRepo
type MockFundRepo struct {
	mock.Mock
}

func (m *MockFundRepo) GetMetrics(ctx context.Context) (*domain.FundMetrics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FundMetrics), args.Error(1)
}
func (m *MockFundRepo) CountUserEvents(ctx context.Context, userID string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}
func (m *MockFundRepo) CreateEntry(ctx context.Context, entry *domain.FundEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockUserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetEmail(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}
func (m *MockUserDirectory) AdjustReputation(ctx context.Context, userID string, delta int) error {
	args := m.Called(ctx, userID, delta)
	return args.Error(0)
}

// MockReputationService
type MockReputationService struct {
	mock.Mock
}

func (m *MockReputationService) RecordCleanReturn(ctx context.Context, renterID string) error {
	args := m.Called(ctx, renterID)
	return args.Error(0)
}
func (m *MockReputationService) RecordDamageCharge(ctx context.Context, renterID string, chargedCents int64) error {
	args := m.Called(ctx, renterID, chargedCents)
	return args.Error(0)
}

// MockProvider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.Payment), args.Error(1)
}
func (m *MockProvider) SearchPaymentsByExternalReference(ctx context.Context, externalRef string) ([]mercadopago.Payment, error) {
	args := m.Called(ctx, externalRef)
	return args.Get(0).([]mercadopago.Payment), args.Error(1)
}
func (m *MockProvider) CapturePreauthorization(ctx context.Context, paymentID string, amountCents int64) (*mercadopago.Payment, error) {
	args := m.Called(ctx, paymentID, amountCents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.Payment), args.Error(1)
}
func (m *MockProvider) ReleasePreauthorization(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.Payment), args.Error(1)
}

// MockPolicyService
type MockPolicyService struct {
	mock.Mock
}

func (m *MockPolicyService) EvaluateForUser(ctx context.Context, userID string) (*fgo.PolicyDecision, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fgo.PolicyDecision), args.Error(1)
}
func (m *MockPolicyService) RecordContribution(ctx context.Context, userID, bookingID string, amountCents int64, kind fgo.ContributionKind) error {
	args := m.Called(ctx, userID, bookingID, amountCents, kind)
	return args.Error(0)
}
func (m *MockPolicyService) RecordPayout(ctx context.Context, userID, bookingID, beneficiaryID string, amountCents int64) error {
	args := m.Called(ctx, userID, bookingID, beneficiaryID, amountCents)
	return args.Error(0)
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) GetNotifications(ctx context.Context, userID string, page, pageSize int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}
func (m *MockNotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}
func (m *MockNotificationService) Notify(ctx context.Context, userID, title, message string, attributes map[string]string) error {
	args := m.Called(ctx, userID, title, message, attributes)
	return args.Error(0)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendDepositConfirmed(ctx context.Context, email string, amountCents int64, currency string) error {
	args := m.Called(ctx, email, amountCents, currency)
	return args.Error(0)
}
func (m *MockEmailService) SendDepositFailed(ctx context.Context, email, reason string) error {
	args := m.Called(ctx, email, reason)
	return args.Error(0)
}
func (m *MockEmailService) SendSettlementNotice(ctx context.Context, email, bookingID string, chargedCents, returnedCents int64) error {
	args := m.Called(ctx, email, bookingID, chargedCents, returnedCents)
	return args.Error(0)
}
func (m *MockEmailService) SendDisputeOpened(ctx context.Context, email, bookingID string, claimedCents int64) error {
	args := m.Called(ctx, email, bookingID, claimedCents)
	return args.Error(0)
}

// MockDepositService
type MockDepositService struct {
	mock.Mock
}

func (m *MockDepositService) CompleteClean(ctx context.Context, bookingID string) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}
func (m *MockDepositService) CompleteWithDamages(ctx context.Context, bookingID string, charges service.DepositCharges) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID, charges)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}
func (m *MockDepositService) ReleaseExpiredPreauth(ctx context.Context, bookingID string) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}
