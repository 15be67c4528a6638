package jobs

import (
	"context"
	"time"

	"autorenta-settlement/internal/logger"
)

// PollPendingDeposits reconciles pending wallet deposits against the
// payment provider. Catches deposits whose webhook never arrived.
func (jr *JobRunner) PollPendingDeposits() {
	jr.runWithRecovery("PollPendingDeposits", func() {
		ctx := context.Background()

		summary, err := jr.services.Reconciliation.ProcessPendingDeposits(ctx)
		if err != nil {
			logger.Error("Failed to poll pending deposits", "error", err)
			return
		}

		logger.Info("Pending deposit poll finished",
			"checked", summary.Checked,
			"confirmed", summary.Confirmed,
			"failed", summary.Failed,
			"stillPending", summary.StillPending)

		for _, msg := range summary.Errors {
			logger.Warn("Deposit reconciliation error", "detail", msg)
		}
	})
}

// ExpirePreauthorizations releases card holds on bookings whose
// pre-authorization window is about to lapse. A hold the provider
// expires on its own returns the money anyway, but releasing first
// keeps our deposit status authoritative.
func (jr *JobRunner) ExpirePreauthorizations() {
	jr.runWithRecovery("ExpirePreauthorizations", func() {
		ctx := context.Background()

		margin := time.Duration(jr.config.Settlement.PreauthExpiryMargin) * time.Hour
		cutoff := time.Now().UTC().Add(margin)

		bookings, err := jr.bookingRepo.ListExpiringPreauths(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to list expiring pre-authorizations", "error", err)
			return
		}

		released := 0
		for _, booking := range bookings {
			if _, err := jr.services.Deposit.ReleaseExpiredPreauth(ctx, booking.ID); err != nil {
				logger.Error("Failed to release expiring pre-authorization",
					"bookingID", booking.ID, "preauthID", booking.CardPreauthID, "error", err)
				continue
			}
			released++
		}

		logger.Info("Expiring pre-authorizations processed",
			"found", len(bookings), "released", released)
	})
}

// CheckWalletIntegrity compares each user's recorded wallet balance
// against the sum of their confirmed transactions and reports drift.
func (jr *JobRunner) CheckWalletIntegrity() {
	jr.runWithRecovery("CheckWalletIntegrity", func() {
		ctx := context.Background()

		discrepancies, err := jr.walletRepo.FindBalanceDiscrepancies(ctx)
		if err != nil {
			logger.Error("Failed to check wallet integrity", "error", err)
			return
		}

		if len(discrepancies) == 0 {
			logger.Info("Wallet integrity check clean")
			return
		}

		for _, d := range discrepancies {
			logger.Error("Wallet balance discrepancy",
				"userID", d.UserID,
				"recordedCents", d.RecordedCents,
				"derivedCents", d.DerivedCents,
				"driftCents", d.RecordedCents-d.DerivedCents)

			_ = jr.services.Notification.Notify(ctx, d.UserID,
				"Wallet under review",
				"We detected an inconsistency in your wallet and are reviewing it.",
				map[string]string{"kind": "wallet_integrity"})
		}

		logger.Warn("Wallet integrity check found discrepancies", "count", len(discrepancies))
	})
}
