package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/service"
)

func newSplitFixture(platformFeePct float64) (*MockSplitRepo, *MockIntentRepo, *MockWalletRepo, *MockPolicyService, *MockNotificationService, service.SplitService) {
	splitRepo := new(MockSplitRepo)
	intentRepo := new(MockIntentRepo)
	walletRepo := new(MockWalletRepo)
	policySvc := new(MockPolicyService)
	noteSvc := new(MockNotificationService)
	svc := service.NewSplitService(splitRepo, intentRepo, walletRepo, policySvc, noteSvc, platformFeePct)
	return splitRepo, intentRepo, walletRepo, policySvc, noteSvc, svc
}

func TestSplitService_Distribute(t *testing.T) {
	ctx := context.Background()

	intent := &domain.PaymentIntent{
		ID:          "pay-1",
		BookingID:   "bk-1",
		AmountCents: 10000,
		Currency:    "ARS",
		Status:      "captured",
	}

	baseRequest := func(collectors ...service.CollectorShare) service.DistributeRequest {
		return service.DistributeRequest{
			PaymentID:        "pay-1",
			TotalAmountCents: 10000,
			Currency:         "ARS",
			Collectors:       collectors,
		}
	}

	t.Run("SharesAlwaysSumToTotal", func(t *testing.T) {
		splitRepo, intentRepo, walletRepo, policySvc, noteSvc, svc := newSplitFixture(5)

		intentRepo.On("GetByID", ctx, "pay-1").Return(intent, nil)
		var captured []domain.PaymentSplit
		splitRepo.On("CreateBatch", ctx, mock.AnythingOfType("[]domain.PaymentSplit")).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).([]domain.PaymentSplit)
			}).Return(nil)
		walletRepo.On("CreateTransaction", ctx, mock.AnythingOfType("*domain.WalletTransaction")).Return(nil)
		walletRepo.On("CreateLedgerEntry", ctx, mock.AnythingOfType("*domain.LedgerEntry")).Return(nil)
		policySvc.On("RecordContribution", ctx, mock.Anything, "bk-1", mock.Anything, fgo.ContributionCommission).Return(nil)
		noteSvc.On("Notify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		// 3.33 / 33.33 / 63.34 forces rounding residue.
		result, err := svc.Distribute(ctx, baseRequest(
			service.CollectorShare{CollectorID: "a", Percentage: 3.33},
			service.CollectorShare{CollectorID: "b", Percentage: 33.33},
			service.CollectorShare{CollectorID: "c", Percentage: 63.34},
		))
		assert.NoError(t, err)
		assert.Len(t, result.Splits, 3)

		var sum int64
		for _, s := range captured {
			sum += s.AmountCents
			assert.Equal(t, s.AmountCents-s.PlatformFeeCents, s.NetAmountCents)
			assert.Equal(t, domain.SplitStatusPending, s.Status)
			assert.Equal(t, "ARS", s.Currency)
		}
		assert.Equal(t, int64(10000), sum)

		// The residual lands on the last collector.
		assert.Equal(t, int64(333), captured[0].AmountCents)
		assert.Equal(t, int64(3333), captured[1].AmountCents)
		assert.Equal(t, int64(6334), captured[2].AmountCents)

		assert.Equal(t, int64(10000), result.Summary.TotalAmountCents)
		assert.Equal(t, result.Summary.TotalAmountCents-result.Summary.TotalPlatformFeeCents, result.Summary.TotalNetCents)
		assert.Equal(t, 3, result.Summary.CollectorCount)
	})

	t.Run("PlatformFeeApplied", func(t *testing.T) {
		splitRepo, intentRepo, walletRepo, policySvc, noteSvc, svc := newSplitFixture(5)

		intentRepo.On("GetByID", ctx, "pay-1").Return(intent, nil)
		var captured []domain.PaymentSplit
		splitRepo.On("CreateBatch", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).([]domain.PaymentSplit)
			}).Return(nil)
		var payout *domain.WalletTransaction
		walletRepo.On("CreateTransaction", ctx, mock.AnythingOfType("*domain.WalletTransaction")).
			Run(func(args mock.Arguments) {
				payout = args.Get(1).(*domain.WalletTransaction)
			}).Return(nil)
		walletRepo.On("CreateLedgerEntry", ctx, mock.AnythingOfType("*domain.LedgerEntry")).Return(nil)
		policySvc.On("RecordContribution", ctx, "owner-1", "bk-1", int64(500), fgo.ContributionCommission).Return(nil)
		noteSvc.On("Notify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		result, err := svc.Distribute(ctx, baseRequest(
			service.CollectorShare{CollectorID: "owner-1", Percentage: 100},
		))
		assert.NoError(t, err)
		assert.Equal(t, int64(10000), captured[0].AmountCents)
		assert.Equal(t, int64(500), captured[0].PlatformFeeCents)
		assert.Equal(t, int64(9500), captured[0].NetAmountCents)
		assert.Equal(t, int64(500), result.Summary.TotalPlatformFeeCents)
		assert.Equal(t, int64(9500), result.Summary.TotalNetCents)

		// The split spawns a pending payout into the collector's wallet.
		assert.Equal(t, "owner-1", payout.UserID)
		assert.Equal(t, domain.TransactionTypePayout, payout.Type)
		assert.Equal(t, domain.TransactionStatusPending, payout.Status)
		assert.Equal(t, int64(9500), payout.AmountCents)
		assert.Equal(t, domain.ReferenceTypeSplit, payout.ReferenceType)
		assert.Equal(t, captured[0].ID, payout.ReferenceID)
		policySvc.AssertExpectations(t)
	})

	t.Run("FeeOverridePerRequest", func(t *testing.T) {
		splitRepo, intentRepo, walletRepo, policySvc, noteSvc, svc := newSplitFixture(5)

		intentRepo.On("GetByID", ctx, "pay-1").Return(intent, nil)
		var captured []domain.PaymentSplit
		splitRepo.On("CreateBatch", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).([]domain.PaymentSplit)
			}).Return(nil)
		walletRepo.On("CreateTransaction", ctx, mock.Anything).Return(nil)
		walletRepo.On("CreateLedgerEntry", ctx, mock.Anything).Return(nil)
		policySvc.On("RecordContribution", ctx, "owner-1", "bk-1", int64(1000), fgo.ContributionCommission).Return(nil)
		noteSvc.On("Notify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		req := baseRequest(service.CollectorShare{CollectorID: "owner-1", Percentage: 100})
		req.PlatformFeePct = 10

		_, err := svc.Distribute(ctx, req)
		assert.NoError(t, err)
		assert.Equal(t, int64(1000), captured[0].PlatformFeeCents)
		assert.Equal(t, int64(9000), captured[0].NetAmountCents)
	})

	t.Run("LedgerEntryCarriesProvenance", func(t *testing.T) {
		splitRepo, intentRepo, walletRepo, policySvc, noteSvc, svc := newSplitFixture(5)

		intentRepo.On("GetByID", ctx, "pay-1").Return(intent, nil)
		var captured []domain.PaymentSplit
		splitRepo.On("CreateBatch", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).([]domain.PaymentSplit)
			}).Return(nil)
		walletRepo.On("CreateTransaction", ctx, mock.Anything).Return(nil)
		var entry *domain.LedgerEntry
		walletRepo.On("CreateLedgerEntry", ctx, mock.AnythingOfType("*domain.LedgerEntry")).
			Run(func(args mock.Arguments) {
				entry = args.Get(1).(*domain.LedgerEntry)
			}).Return(nil)
		policySvc.On("RecordContribution", ctx, mock.Anything, "bk-1", mock.Anything, fgo.ContributionCommission).Return(nil)
		noteSvc.On("Notify", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Distribute(ctx, baseRequest(
			service.CollectorShare{CollectorID: "owner-1", Percentage: 100},
		))
		assert.NoError(t, err)
		walletRepo.AssertCalled(t, "CreateLedgerEntry", ctx, mock.AnythingOfType("*domain.LedgerEntry"))

		// Every split appends one ledger record pointing back at the split row.
		assert.Equal(t, "owner-1", entry.UserID)
		assert.Equal(t, captured[0].ID, entry.Ref)
		assert.Equal(t, captured[0].NetAmountCents, entry.AmountCents)
		assert.Equal(t, "mercadopago", entry.Provider)
		assert.Equal(t, "pay-1", entry.Metadata["payment_id"])
		assert.Equal(t, captured[0].ID, entry.Metadata["split_id"])
	})

	t.Run("RejectsBadPercentages", func(t *testing.T) {
		_, _, _, _, _, svc := newSplitFixture(5)

		_, err := svc.Distribute(ctx, baseRequest(
			service.CollectorShare{CollectorID: "a", Percentage: 50},
			service.CollectorShare{CollectorID: "b", Percentage: 40},
		))
		assert.ErrorIs(t, err, service.ErrSplitValidation)
		assert.ErrorContains(t, err, "expected 100")

		_, err = svc.Distribute(ctx, baseRequest(
			service.CollectorShare{CollectorID: "a", Percentage: 100},
			service.CollectorShare{CollectorID: "b", Percentage: 0},
		))
		assert.ErrorContains(t, err, "non-positive")

		_, err = svc.Distribute(ctx, baseRequest(
			service.CollectorShare{CollectorID: "a", Percentage: 50},
			service.CollectorShare{CollectorID: "a", Percentage: 50},
		))
		assert.ErrorContains(t, err, "duplicate collector")

		_, err = svc.Distribute(ctx, baseRequest())
		assert.ErrorContains(t, err, "at least one collector")
	})

	t.Run("RejectsMismatchedTotals", func(t *testing.T) {
		_, intentRepo, _, _, _, svc := newSplitFixture(5)

		intentRepo.On("GetByID", ctx, "pay-1").Return(intent, nil)

		req := baseRequest(service.CollectorShare{CollectorID: "a", Percentage: 100})
		req.TotalAmountCents = 9999
		_, err := svc.Distribute(ctx, req)
		assert.ErrorIs(t, err, service.ErrSplitValidation)
		assert.ErrorContains(t, err, "does not match payment amount")

		req = baseRequest(service.CollectorShare{CollectorID: "a", Percentage: 100})
		req.Currency = "USD"
		_, err = svc.Distribute(ctx, req)
		assert.ErrorContains(t, err, "does not match payment currency")
	})

	t.Run("RejectsUncapturedPayment", func(t *testing.T) {
		_, intentRepo, _, _, _, svc := newSplitFixture(5)

		pending := *intent
		pending.Status = "pending"
		intentRepo.On("GetByID", ctx, "pay-1").Return(&pending, nil)

		_, err := svc.Distribute(ctx, baseRequest(
			service.CollectorShare{CollectorID: "a", Percentage: 100},
		))
		assert.ErrorIs(t, err, service.ErrSplitValidation)
		assert.ErrorContains(t, err, "only captured payments")
	})
}
