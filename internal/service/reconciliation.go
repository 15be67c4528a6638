package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/provider/mercadopago"
	"autorenta-settlement/internal/repository"
)

type reconciliationService struct {
	walletRepo repository.WalletRepository
	provider   PaymentProvider
	policySvc  PolicyService
	noteSvc    NotificationService
	emailSvc   EmailService
	userRepo   repository.UserDirectory
	pollGrace  time.Duration
	pollLimit  int
}

func NewReconciliationService(
	walletRepo repository.WalletRepository,
	provider PaymentProvider,
	policySvc PolicyService,
	noteSvc NotificationService,
	emailSvc EmailService,
	userRepo repository.UserDirectory,
	pollGrace time.Duration,
) ReconciliationService {
	return &reconciliationService{
		walletRepo: walletRepo,
		provider:   provider,
		policySvc:  policySvc,
		noteSvc:    noteSvc,
		emailSvc:   emailSvc,
		userRepo:   userRepo,
		pollGrace:  pollGrace,
		pollLimit:  100,
	}
}

// HandlePaymentEvent processes one payment notification. The provider is
// the source of truth: we fetch the payment fresh instead of trusting the
// webhook body, then converge our ledger onto what it says.
func (s *reconciliationService) HandlePaymentEvent(ctx context.Context, providerPaymentID string) error {
	logger.EnterMethod("reconciliationService.HandlePaymentEvent", "paymentID", providerPaymentID)

	payment, err := s.provider.GetPayment(ctx, providerPaymentID)
	if err != nil {
		logger.ExitMethodWithError("reconciliationService.HandlePaymentEvent", err, "paymentID", providerPaymentID)
		return fmt.Errorf("failed to fetch payment %s: %w", providerPaymentID, err)
	}

	if payment.ExternalReference == "" {
		// Not one of ours. Checkout payments without a wallet reference are
		// settled by the split flow, not here.
		logger.ExitMethod("reconciliationService.HandlePaymentEvent", "paymentID", providerPaymentID, "result", "no external reference")
		return nil
	}

	err = s.applyPayment(ctx, payment.ExternalReference, payment)
	if err != nil {
		logger.ExitMethodWithError("reconciliationService.HandlePaymentEvent", err, "paymentID", providerPaymentID)
		return err
	}
	logger.ExitMethod("reconciliationService.HandlePaymentEvent", "paymentID", providerPaymentID, "status", payment.Status)
	return nil
}

// applyPayment converges one wallet transaction onto the provider's view
// of its payment. Safe to call any number of times from any path.
func (s *reconciliationService) applyPayment(ctx context.Context, txID string, payment *mercadopago.Payment) error {
	providerID := strconv.FormatInt(payment.ID, 10)

	switch {
	case payment.Status == mercadopago.StatusApproved:
		err := s.walletRepo.ConfirmDeposit(ctx, txID, providerID, payment.AmountCents())
		if errors.Is(err, repository.ErrAlreadyConfirmed) {
			return nil
		}
		if err != nil {
			return err
		}
		s.afterConfirm(ctx, txID, payment)
		return nil

	case mercadopago.IsTerminalFailure(payment.Status):
		err := s.walletRepo.MarkFailed(ctx, txID, "provider status: "+payment.Status)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		s.afterFail(ctx, txID, payment.Status)
		return nil

	default:
		// pending / in_process / authorized: nothing to converge yet.
		return nil
	}
}

// afterConfirm runs the side effects of a confirmed deposit: the fund
// contribution and the renter-facing notifications. All best effort, the
// money is already in the ledger.
func (s *reconciliationService) afterConfirm(ctx context.Context, txID string, payment *mercadopago.Payment) {
	tx, err := s.walletRepo.GetTransactionByID(ctx, txID)
	if err != nil {
		logger.Warn("confirmed deposit lookup failed", "txID", txID, "error", err)
		return
	}

	_ = s.policySvc.RecordContribution(ctx, tx.UserID, tx.ReferenceID, tx.AmountCents, fgo.ContributionDeposit)

	_ = s.noteSvc.Notify(ctx, tx.UserID, "Deposit confirmed",
		fmt.Sprintf("Your deposit of %d %s was confirmed.", tx.AmountCents, tx.Currency),
		map[string]string{"type": "DEPOSIT_CONFIRMED", "transaction_id": txID})

	if email, err := s.userRepo.GetEmail(ctx, tx.UserID); err == nil && email != "" {
		_ = s.emailSvc.SendDepositConfirmed(ctx, email, tx.AmountCents, tx.Currency)
	}
}

func (s *reconciliationService) afterFail(ctx context.Context, txID, status string) {
	tx, err := s.walletRepo.GetTransactionByID(ctx, txID)
	if err != nil {
		return
	}

	_ = s.noteSvc.Notify(ctx, tx.UserID, "Deposit failed",
		fmt.Sprintf("Your deposit could not be completed (%s).", status),
		map[string]string{"type": "DEPOSIT_FAILED", "transaction_id": txID})

	if email, err := s.userRepo.GetEmail(ctx, tx.UserID); err == nil && email != "" {
		_ = s.emailSvc.SendDepositFailed(ctx, email, status)
	}
}

// HandleMoneyRequestEvent processes a withdrawal (money request) topic
// notification.
func (s *reconciliationService) HandleMoneyRequestEvent(ctx context.Context, withdrawalID string) error {
	logger.EnterMethod("reconciliationService.HandleMoneyRequestEvent", "withdrawalID", withdrawalID)

	withdrawal, err := s.walletRepo.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		logger.ExitMethodWithError("reconciliationService.HandleMoneyRequestEvent", err, "withdrawalID", withdrawalID)
		return err
	}
	if withdrawal.Status == "completed" || withdrawal.Status == "failed" {
		logger.ExitMethod("reconciliationService.HandleMoneyRequestEvent", "withdrawalID", withdrawalID, "result", "already terminal")
		return nil
	}

	payments, err := s.provider.SearchPaymentsByExternalReference(ctx, withdrawalID)
	if err != nil {
		logger.ExitMethodWithError("reconciliationService.HandleMoneyRequestEvent", err, "withdrawalID", withdrawalID)
		return err
	}
	if len(payments) == 0 {
		logger.ExitMethod("reconciliationService.HandleMoneyRequestEvent", "withdrawalID", withdrawalID, "result", "no provider payment yet")
		return nil
	}

	latest := payments[0]
	providerID := strconv.FormatInt(latest.ID, 10)
	switch {
	case latest.Status == mercadopago.StatusApproved:
		if err := s.walletRepo.CompleteWithdrawal(ctx, withdrawalID, providerID); err != nil {
			return err
		}
		_ = s.noteSvc.Notify(ctx, withdrawal.UserID, "Withdrawal completed",
			fmt.Sprintf("Your withdrawal of %d was sent.", withdrawal.AmountCents),
			map[string]string{"type": "WITHDRAWAL_COMPLETED", "withdrawal_id": withdrawalID})
	case mercadopago.IsTerminalFailure(latest.Status):
		if err := s.walletRepo.FailWithdrawal(ctx, withdrawalID, "provider status: "+latest.Status); err != nil {
			return err
		}
		_ = s.noteSvc.Notify(ctx, withdrawal.UserID, "Withdrawal failed",
			fmt.Sprintf("Your withdrawal could not be completed (%s).", latest.Status),
			map[string]string{"type": "WITHDRAWAL_FAILED", "withdrawal_id": withdrawalID})
	}

	logger.ExitMethod("reconciliationService.HandleMoneyRequestEvent", "withdrawalID", withdrawalID, "status", latest.Status)
	return nil
}

// ProcessPendingDeposits polls the provider for deposits whose webhook
// never arrived. Only transactions older than the grace window are
// checked, giving in-flight webhooks time to land first.
func (s *reconciliationService) ProcessPendingDeposits(ctx context.Context) (*PollSummary, error) {
	logger.EnterMethod("reconciliationService.ProcessPendingDeposits")

	cutoff := time.Now().Add(-s.pollGrace)
	pending, err := s.walletRepo.ListPendingDeposits(ctx, cutoff, s.pollLimit)
	if err != nil {
		logger.ExitMethodWithError("reconciliationService.ProcessPendingDeposits", err)
		return nil, err
	}

	summary := &PollSummary{Checked: len(pending)}
	for _, tx := range pending {
		payments, err := s.provider.SearchPaymentsByExternalReference(ctx, tx.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", tx.ID, err))
			continue
		}

		payment := pickReconcilable(payments)
		if payment == nil {
			summary.StillPending++
			continue
		}

		if err := s.applyPayment(ctx, tx.ID, payment); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", tx.ID, err))
			continue
		}
		if payment.Status == mercadopago.StatusApproved {
			summary.Confirmed++
		} else {
			summary.Failed++
		}
	}

	logger.ExitMethod("reconciliationService.ProcessPendingDeposits",
		"checked", summary.Checked, "confirmed", summary.Confirmed,
		"failed", summary.Failed, "stillPending", summary.StillPending)
	return summary, nil
}

// pickReconcilable prefers an approved payment over a failed one: a user
// who retried after a rejection should get the successful attempt.
func pickReconcilable(payments []mercadopago.Payment) *mercadopago.Payment {
	var failed *mercadopago.Payment
	for i := range payments {
		p := &payments[i]
		if p.Status == mercadopago.StatusApproved {
			return p
		}
		if failed == nil && mercadopago.IsTerminalFailure(p.Status) {
			failed = p
		}
	}
	return failed
}
