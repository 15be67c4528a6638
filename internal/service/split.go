package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
)

const percentageTolerance = 0.01

// ErrSplitValidation marks a split request rejected before any write.
var ErrSplitValidation = errors.New("invalid split request")

type splitService struct {
	splitRepo      repository.SplitRepository
	intentRepo     repository.PaymentIntentRepository
	walletRepo     repository.WalletRepository
	policySvc      PolicyService
	noteSvc        NotificationService
	platformFeePct float64
}

func NewSplitService(
	splitRepo repository.SplitRepository,
	intentRepo repository.PaymentIntentRepository,
	walletRepo repository.WalletRepository,
	policySvc PolicyService,
	noteSvc NotificationService,
	platformFeePct float64,
) SplitService {
	return &splitService{
		splitRepo:      splitRepo,
		intentRepo:     intentRepo,
		walletRepo:     walletRepo,
		policySvc:      policySvc,
		noteSvc:        noteSvc,
		platformFeePct: platformFeePct,
	}
}

// Distribute divides a captured payment among collectors by percentage.
// Shares are computed in integer cents with the rounding residual going
// to the last collector, so the shares always sum to the payment total.
func (s *splitService) Distribute(ctx context.Context, req DistributeRequest) (*SplitResult, error) {
	logger.EnterMethod("splitService.Distribute", "paymentID", req.PaymentID, "collectors", len(req.Collectors))

	feePct := req.PlatformFeePct
	if feePct == 0 {
		feePct = s.platformFeePct
	}
	if err := validateDistributeRequest(req, feePct); err != nil {
		logger.ExitMethodWithError("splitService.Distribute", err, "paymentID", req.PaymentID)
		return nil, err
	}

	intent, err := s.intentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		logger.ExitMethodWithError("splitService.Distribute", err, "paymentID", req.PaymentID)
		return nil, err
	}
	if intent.Status != "captured" && intent.Status != "approved" {
		err := fmt.Errorf("%w: payment %s is %s, only captured payments can be split", ErrSplitValidation, req.PaymentID, intent.Status)
		logger.ExitMethodWithError("splitService.Distribute", err)
		return nil, err
	}
	if req.TotalAmountCents != intent.AmountCents {
		err := fmt.Errorf("%w: total %d does not match payment amount %d", ErrSplitValidation, req.TotalAmountCents, intent.AmountCents)
		logger.ExitMethodWithError("splitService.Distribute", err)
		return nil, err
	}
	if !strings.EqualFold(req.Currency, intent.Currency) {
		err := fmt.Errorf("%w: currency %s does not match payment currency %s", ErrSplitValidation, req.Currency, intent.Currency)
		logger.ExitMethodWithError("splitService.Distribute", err)
		return nil, err
	}
	if req.BookingID != "" && req.BookingID != intent.BookingID {
		err := fmt.Errorf("%w: booking %s does not match payment booking %s", ErrSplitValidation, req.BookingID, intent.BookingID)
		logger.ExitMethodWithError("splitService.Distribute", err)
		return nil, err
	}

	splits := make([]domain.PaymentSplit, 0, len(req.Collectors))
	var allocated, totalFees int64
	for i, c := range req.Collectors {
		amount := int64(math.Floor(float64(intent.AmountCents) * c.Percentage / 100))
		if i == len(req.Collectors)-1 {
			amount = intent.AmountCents - allocated
		}
		allocated += amount

		fee := int64(math.Round(float64(amount) * feePct / 100))
		totalFees += fee
		splits = append(splits, domain.PaymentSplit{
			ID:               uuid.New().String(),
			PaymentID:        req.PaymentID,
			BookingID:        intent.BookingID,
			CollectorID:      c.CollectorID,
			Percentage:       c.Percentage,
			AmountCents:      amount,
			PlatformFeeCents: fee,
			NetAmountCents:   amount - fee,
			Currency:         intent.Currency,
			Status:           domain.SplitStatusPending,
		})
	}

	if err := s.splitRepo.CreateBatch(ctx, splits); err != nil {
		logger.ExitMethodWithError("splitService.Distribute", err, "paymentID", req.PaymentID)
		return nil, err
	}

	// Each split spawns a pending payout into the collector's wallet plus
	// an append-only ledger record carrying its provenance. The payout is
	// confirmed later by reconciliation once the money actually moves.
	for _, sp := range splits {
		provenance := map[string]any{
			"split_id":           sp.ID,
			"payment_id":         req.PaymentID,
			"platform_fee_cents": sp.PlatformFeeCents,
			"percentage":         sp.Percentage,
		}
		tx := &domain.WalletTransaction{
			ID:            uuid.New().String(),
			UserID:        sp.CollectorID,
			Type:          domain.TransactionTypePayout,
			Status:        domain.TransactionStatusPending,
			AmountCents:   sp.NetAmountCents,
			Currency:      sp.Currency,
			Provider:      "mercadopago",
			ReferenceType: domain.ReferenceTypeSplit,
			ReferenceID:   sp.ID,
			Description:   fmt.Sprintf("split share of payment %s", req.PaymentID),
			Metadata:      provenance,
		}
		if err := s.walletRepo.CreateTransaction(ctx, tx); err != nil {
			logger.Error("failed to create split payout transaction", "splitID", sp.ID, "error", err)
		}
		entry := &domain.LedgerEntry{
			ID:          uuid.New().String(),
			UserID:      sp.CollectorID,
			AmountCents: sp.NetAmountCents,
			Ref:         sp.ID,
			Provider:    "mercadopago",
			Metadata:    provenance,
		}
		if err := s.walletRepo.CreateLedgerEntry(ctx, entry); err != nil {
			logger.Error("failed to create split ledger entry", "splitID", sp.ID, "error", err)
		}

		// The platform commission feeds the guarantee fund at the fixed rate.
		if sp.PlatformFeeCents > 0 {
			_ = s.policySvc.RecordContribution(ctx, sp.CollectorID, sp.BookingID, sp.PlatformFeeCents, fgo.ContributionCommission)
		}
		_ = s.noteSvc.Notify(ctx, sp.CollectorID, "Payment received",
			fmt.Sprintf("Your share of payment %s is ready: %d %s net of fees.", req.PaymentID, sp.NetAmountCents, sp.Currency),
			map[string]string{"type": "SPLIT_CREATED", "payment_id": req.PaymentID, "split_id": sp.ID})
	}

	result := &SplitResult{
		Splits: splits,
		Summary: SplitSummary{
			TotalAmountCents:      intent.AmountCents,
			TotalPlatformFeeCents: totalFees,
			TotalNetCents:         intent.AmountCents - totalFees,
			CollectorCount:        len(splits),
		},
	}
	logger.ExitMethod("splitService.Distribute", "paymentID", req.PaymentID, "splits", len(splits))
	return result, nil
}

func validateDistributeRequest(req DistributeRequest, feePct float64) error {
	if req.TotalAmountCents <= 0 {
		return fmt.Errorf("%w: total amount must be positive, got %d", ErrSplitValidation, req.TotalAmountCents)
	}
	if feePct < 0 || feePct >= 100 {
		return fmt.Errorf("%w: platform fee percentage %.2f out of range", ErrSplitValidation, feePct)
	}
	if len(req.Collectors) == 0 {
		return fmt.Errorf("%w: at least one collector is required", ErrSplitValidation)
	}

	var pctSum float64
	seen := make(map[string]bool, len(req.Collectors))
	for _, c := range req.Collectors {
		if c.CollectorID == "" {
			return fmt.Errorf("%w: collector id is required", ErrSplitValidation)
		}
		if seen[c.CollectorID] {
			return fmt.Errorf("%w: duplicate collector %s", ErrSplitValidation, c.CollectorID)
		}
		seen[c.CollectorID] = true
		if c.Percentage <= 0 {
			return fmt.Errorf("%w: collector %s has non-positive percentage", ErrSplitValidation, c.CollectorID)
		}
		pctSum += c.Percentage
	}
	if math.Abs(pctSum-100) > percentageTolerance {
		return fmt.Errorf("%w: percentages sum to %.2f, expected 100", ErrSplitValidation, pctSum)
	}
	return nil
}
