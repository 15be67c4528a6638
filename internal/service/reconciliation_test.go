package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/provider/mercadopago"
	"autorenta-settlement/internal/repository"
	"autorenta-settlement/internal/service"
)

func newReconFixture() (*MockWalletRepo, *MockProvider, *MockPolicyService, *MockNotificationService, *MockEmailService, *MockUserDirectory, service.ReconciliationService) {
	walletRepo := new(MockWalletRepo)
	provider := new(MockProvider)
	policySvc := new(MockPolicyService)
	noteSvc := new(MockNotificationService)
	emailSvc := new(MockEmailService)
	userDir := new(MockUserDirectory)
	svc := service.NewReconciliationService(walletRepo, provider, policySvc, noteSvc, emailSvc, userDir, 2*time.Minute)
	return walletRepo, provider, policySvc, noteSvc, emailSvc, userDir, svc
}

func pendingDeposit() *domain.WalletTransaction {
	return &domain.WalletTransaction{
		ID:          "tx-1",
		UserID:      "user-1",
		Type:        domain.TransactionTypeDeposit,
		Status:      domain.TransactionStatusConfirmed,
		AmountCents: 5000,
		Currency:    "ARS",
		ReferenceID: "bk-1",
	}
}

func TestReconciliation_HandlePaymentEvent_Approved(t *testing.T) {
	walletRepo, provider, policySvc, noteSvc, emailSvc, userDir, svc := newReconFixture()
	ctx := context.Background()

	provider.On("GetPayment", ctx, "100").Return(&mercadopago.Payment{
		ID: 100, Status: mercadopago.StatusApproved, ExternalReference: "tx-1", TransactionAmount: 50,
	}, nil)
	walletRepo.On("ConfirmDeposit", ctx, "tx-1", "100", int64(5000)).Return(nil)
	walletRepo.On("GetTransactionByID", ctx, "tx-1").Return(pendingDeposit(), nil)
	policySvc.On("RecordContribution", ctx, "user-1", "bk-1", int64(5000), fgo.ContributionDeposit).Return(nil)
	noteSvc.On("Notify", ctx, "user-1", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	userDir.On("GetEmail", ctx, "user-1").Return("user@test.com", nil)
	emailSvc.On("SendDepositConfirmed", ctx, "user@test.com", int64(5000), "ARS").Return(nil)

	err := svc.HandlePaymentEvent(ctx, "100")
	assert.NoError(t, err)
	walletRepo.AssertExpectations(t)
	policySvc.AssertExpectations(t)
}

func TestReconciliation_HandlePaymentEvent_ReplayIsNoOp(t *testing.T) {
	walletRepo, provider, _, _, _, _, svc := newReconFixture()
	ctx := context.Background()

	provider.On("GetPayment", ctx, "100").Return(&mercadopago.Payment{
		ID: 100, Status: mercadopago.StatusApproved, ExternalReference: "tx-1", TransactionAmount: 50,
	}, nil)
	walletRepo.On("ConfirmDeposit", ctx, "tx-1", "100", int64(5000)).
		Return(repository.ErrAlreadyConfirmed)

	err := svc.HandlePaymentEvent(ctx, "100")
	assert.NoError(t, err)
}

func TestReconciliation_HandlePaymentEvent_ConflictSurfaces(t *testing.T) {
	walletRepo, provider, _, _, _, _, svc := newReconFixture()
	ctx := context.Background()

	provider.On("GetPayment", ctx, "100").Return(&mercadopago.Payment{
		ID: 100, Status: mercadopago.StatusApproved, ExternalReference: "tx-1", TransactionAmount: 50,
	}, nil)
	walletRepo.On("ConfirmDeposit", ctx, "tx-1", "100", int64(5000)).
		Return(repository.ErrProviderIDConflict)

	err := svc.HandlePaymentEvent(ctx, "100")
	assert.ErrorIs(t, err, repository.ErrProviderIDConflict)
}

func TestReconciliation_HandlePaymentEvent_TerminalFailure(t *testing.T) {
	walletRepo, provider, _, noteSvc, emailSvc, userDir, svc := newReconFixture()
	ctx := context.Background()

	provider.On("GetPayment", ctx, "100").Return(&mercadopago.Payment{
		ID: 100, Status: mercadopago.StatusRejected, ExternalReference: "tx-1", TransactionAmount: 50,
	}, nil)
	walletRepo.On("MarkFailed", ctx, "tx-1", "provider status: rejected").Return(nil)
	tx := pendingDeposit()
	tx.Status = domain.TransactionStatusFailed
	walletRepo.On("GetTransactionByID", ctx, "tx-1").Return(tx, nil)
	noteSvc.On("Notify", ctx, "user-1", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	userDir.On("GetEmail", ctx, "user-1").Return("user@test.com", nil)
	emailSvc.On("SendDepositFailed", ctx, "user@test.com", "rejected").Return(nil)

	err := svc.HandlePaymentEvent(ctx, "100")
	assert.NoError(t, err)
	walletRepo.AssertExpectations(t)
}

func TestReconciliation_HandlePaymentEvent_PendingDoesNothing(t *testing.T) {
	walletRepo, provider, _, _, _, _, svc := newReconFixture()
	ctx := context.Background()

	provider.On("GetPayment", ctx, "100").Return(&mercadopago.Payment{
		ID: 100, Status: mercadopago.StatusPending, ExternalReference: "tx-1", TransactionAmount: 50,
	}, nil)

	err := svc.HandlePaymentEvent(ctx, "100")
	assert.NoError(t, err)
	walletRepo.AssertNotCalled(t, "ConfirmDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	walletRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciliation_HandlePaymentEvent_ForeignPaymentIgnored(t *testing.T) {
	walletRepo, provider, _, _, _, _, svc := newReconFixture()
	ctx := context.Background()

	provider.On("GetPayment", ctx, "100").Return(&mercadopago.Payment{
		ID: 100, Status: mercadopago.StatusApproved, ExternalReference: "", TransactionAmount: 50,
	}, nil)

	err := svc.HandlePaymentEvent(ctx, "100")
	assert.NoError(t, err)
	walletRepo.AssertNotCalled(t, "ConfirmDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciliation_ProcessPendingDeposits(t *testing.T) {
	walletRepo, provider, policySvc, noteSvc, emailSvc, userDir, svc := newReconFixture()
	ctx := context.Background()

	pending := []domain.WalletTransaction{
		{ID: "tx-ok", UserID: "u1", Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusPending, AmountCents: 5000, Currency: "ARS"},
		{ID: "tx-bad", UserID: "u2", Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusPending, AmountCents: 3000, Currency: "ARS"},
		{ID: "tx-wait", UserID: "u3", Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusPending, AmountCents: 2000, Currency: "ARS"},
	}
	walletRepo.On("ListPendingDeposits", ctx, mock.AnythingOfType("time.Time"), 100).Return(pending, nil)

	provider.On("SearchPaymentsByExternalReference", ctx, "tx-ok").Return([]mercadopago.Payment{
		{ID: 200, Status: mercadopago.StatusApproved, TransactionAmount: 50},
	}, nil)
	provider.On("SearchPaymentsByExternalReference", ctx, "tx-bad").Return([]mercadopago.Payment{
		{ID: 201, Status: mercadopago.StatusRejected, TransactionAmount: 30},
	}, nil)
	provider.On("SearchPaymentsByExternalReference", ctx, "tx-wait").Return([]mercadopago.Payment{}, nil)

	walletRepo.On("ConfirmDeposit", ctx, "tx-ok", "200", int64(5000)).Return(nil)
	walletRepo.On("MarkFailed", ctx, "tx-bad", "provider status: rejected").Return(nil)
	walletRepo.On("GetTransactionByID", ctx, mock.Anything).Return(pendingDeposit(), nil)
	policySvc.On("RecordContribution", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	noteSvc.On("Notify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	userDir.On("GetEmail", ctx, mock.Anything).Return("user@test.com", nil)
	emailSvc.On("SendDepositConfirmed", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	emailSvc.On("SendDepositFailed", ctx, mock.Anything, mock.Anything).Return(nil)

	summary, err := svc.ProcessPendingDeposits(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.StillPending)
	assert.Empty(t, summary.Errors)
}

func TestReconciliation_ProcessPendingDeposits_PrefersApprovedOverFailed(t *testing.T) {
	walletRepo, provider, policySvc, noteSvc, emailSvc, userDir, svc := newReconFixture()
	ctx := context.Background()

	pending := []domain.WalletTransaction{
		{ID: "tx-retry", UserID: "u1", Type: domain.TransactionTypeDeposit, Status: domain.TransactionStatusPending, AmountCents: 5000, Currency: "ARS"},
	}
	walletRepo.On("ListPendingDeposits", ctx, mock.AnythingOfType("time.Time"), 100).Return(pending, nil)

	// Newest first: a rejection then a successful retry.
	provider.On("SearchPaymentsByExternalReference", ctx, "tx-retry").Return([]mercadopago.Payment{
		{ID: 301, Status: mercadopago.StatusRejected, TransactionAmount: 50},
		{ID: 302, Status: mercadopago.StatusApproved, TransactionAmount: 50},
	}, nil)

	walletRepo.On("ConfirmDeposit", ctx, "tx-retry", "302", int64(5000)).Return(nil)
	walletRepo.On("GetTransactionByID", ctx, "tx-retry").Return(pendingDeposit(), nil)
	policySvc.On("RecordContribution", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	noteSvc.On("Notify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	userDir.On("GetEmail", ctx, mock.Anything).Return("user@test.com", nil)
	emailSvc.On("SendDepositConfirmed", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	summary, err := svc.ProcessPendingDeposits(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Confirmed)
	walletRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciliation_HandleMoneyRequestEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("Completed", func(t *testing.T) {
		walletRepo, provider, _, noteSvc, _, _, svc := newReconFixture()

		walletRepo.On("GetWithdrawal", ctx, "wd-1").Return(&domain.WithdrawalRequest{
			ID: "wd-1", UserID: "u1", AmountCents: 8000, Status: "processing",
		}, nil)
		provider.On("SearchPaymentsByExternalReference", ctx, "wd-1").Return([]mercadopago.Payment{
			{ID: 400, Status: mercadopago.StatusApproved, TransactionAmount: 80},
		}, nil)
		walletRepo.On("CompleteWithdrawal", ctx, "wd-1", "400").Return(nil)
		noteSvc.On("Notify", ctx, "u1", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		err := svc.HandleMoneyRequestEvent(ctx, "wd-1")
		assert.NoError(t, err)
		walletRepo.AssertExpectations(t)
	})

	t.Run("AlreadyTerminal", func(t *testing.T) {
		walletRepo, provider, _, _, _, _, svc := newReconFixture()

		walletRepo.On("GetWithdrawal", ctx, "wd-1").Return(&domain.WithdrawalRequest{
			ID: "wd-1", UserID: "u1", AmountCents: 8000, Status: "completed",
		}, nil)

		err := svc.HandleMoneyRequestEvent(ctx, "wd-1")
		assert.NoError(t, err)
		provider.AssertNotCalled(t, "SearchPaymentsByExternalReference", mock.Anything, mock.Anything)
	})
}
