package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
)

var ErrGuaranteeNotSettleable = errors.New("booking has no settleable guarantee")

type depositService struct {
	bookingRepo   repository.BookingRepository
	walletRepo    repository.WalletRepository
	provider      PaymentProvider
	policySvc     PolicyService
	noteSvc       NotificationService
	emailSvc      EmailService
	reputationSvc ReputationService
	userRepo      repository.UserDirectory
}

func NewDepositService(
	bookingRepo repository.BookingRepository,
	walletRepo repository.WalletRepository,
	provider PaymentProvider,
	policySvc PolicyService,
	noteSvc NotificationService,
	emailSvc EmailService,
	reputationSvc ReputationService,
	userRepo repository.UserDirectory,
) DepositService {
	return &depositService{
		bookingRepo:   bookingRepo,
		walletRepo:    walletRepo,
		provider:      provider,
		policySvc:     policySvc,
		noteSvc:       noteSvc,
		emailSvc:      emailSvc,
		reputationSvc: reputationSvc,
		userRepo:      userRepo,
	}
}

// CompleteClean finishes a booking with no charges: the whole guarantee
// returns to the renter.
func (s *depositService) CompleteClean(ctx context.Context, bookingID string) (*domain.Booking, error) {
	logger.EnterMethod("depositService.CompleteClean", "bookingID", bookingID)

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		logger.ExitMethodWithError("depositService.CompleteClean", err, "bookingID", bookingID)
		return nil, err
	}
	if err := s.checkSettleable(booking); err != nil {
		logger.ExitMethodWithError("depositService.CompleteClean", err, "bookingID", bookingID)
		return nil, err
	}

	if err := s.settleGuarantee(ctx, booking, 0, 0); err != nil {
		logger.ExitMethodWithError("depositService.CompleteClean", err, "bookingID", bookingID)
		return nil, err
	}

	booking.Status = domain.BookingStatusCompleted
	booking.OwnerDamageAmountCents = 0
	booking.OwnerDamageDescription = ""
	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		logger.ExitMethodWithError("depositService.CompleteClean", err, "bookingID", bookingID)
		return nil, err
	}

	if err := s.reputationSvc.RecordCleanReturn(ctx, booking.RenterID); err != nil {
		logger.Warn("reputation update failed", "bookingID", bookingID, "error", err)
	}
	s.notifySettlement(ctx, booking, 0, booking.DepositAmountCents)

	logger.ExitMethod("depositService.CompleteClean", "bookingID", bookingID)
	return booking, nil
}

// CompleteWithDamages finishes a booking charging the owner's claim
// against the guarantee. A claim above the deposit is clamped; the
// uncovered excess is routed to the guarantee fund when policy allows.
func (s *depositService) CompleteWithDamages(ctx context.Context, bookingID string, charges DepositCharges) (*domain.Booking, error) {
	logger.EnterMethod("depositService.CompleteWithDamages", "bookingID", bookingID, "claimedCents", charges.TotalCents())

	total := charges.TotalCents()
	if total <= 0 {
		return nil, fmt.Errorf("damage completion requires positive charges, got %d", total)
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		logger.ExitMethodWithError("depositService.CompleteWithDamages", err, "bookingID", bookingID)
		return nil, err
	}
	if err := s.checkSettleable(booking); err != nil {
		logger.ExitMethodWithError("depositService.CompleteWithDamages", err, "bookingID", bookingID)
		return nil, err
	}

	chargeCents := total
	if chargeCents > booking.DepositAmountCents {
		chargeCents = booking.DepositAmountCents
	}

	if err := s.settleGuarantee(ctx, booking, chargeCents, total); err != nil {
		logger.ExitMethodWithError("depositService.CompleteWithDamages", err, "bookingID", bookingID)
		return nil, err
	}

	booking.Status = domain.BookingStatusCompleted
	booking.OwnerDamageAmountCents = total
	booking.OwnerDamageDescription = charges.Description
	if booking.Metadata == nil {
		booking.Metadata = map[string]any{}
	}
	booking.Metadata[domain.MetaDamageFeeCents] = charges.DamageFeeCents
	booking.Metadata[domain.MetaFuelFeeCents] = charges.FuelFeeCents
	booking.Metadata[domain.MetaLateFeeCents] = charges.LateFeeCents
	booking.Metadata["charged_cents"] = chargeCents
	booking.Metadata["remaining_deposit_cents"] = booking.DepositAmountCents - chargeCents
	booking.Metadata["remaining_claim_cents"] = total - chargeCents

	if excess := total - chargeCents; excess > 0 {
		covered := s.coverFromFund(ctx, booking, excess)
		booking.Metadata["fund_covered_cents"] = covered
		booking.Metadata["uncovered_cents"] = excess - covered
	}

	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		logger.ExitMethodWithError("depositService.CompleteWithDamages", err, "bookingID", bookingID)
		return nil, err
	}

	if err := s.reputationSvc.RecordDamageCharge(ctx, booking.RenterID, chargeCents); err != nil {
		logger.Warn("reputation update failed", "bookingID", bookingID, "error", err)
	}
	s.notifySettlement(ctx, booking, chargeCents, booking.DepositAmountCents-chargeCents)

	logger.ExitMethod("depositService.CompleteWithDamages", "bookingID", bookingID, "chargedCents", chargeCents)
	return booking, nil
}

// ReleaseExpiredPreauth voids a card hold that reached its expiry. The
// guarantee is gone at that point, so all we can do is record it and tell
// both parties.
func (s *depositService) ReleaseExpiredPreauth(ctx context.Context, bookingID string) (*domain.Booking, error) {
	logger.EnterMethod("depositService.ReleaseExpiredPreauth", "bookingID", bookingID)

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.HasCardHold() || booking.DepositStatus != domain.DepositStatusHeld {
		return nil, ErrGuaranteeNotSettleable
	}

	if _, err := s.provider.ReleasePreauthorization(ctx, booking.CardPreauthID); err != nil {
		// The hold may already be voided provider-side; record the expiry anyway.
		logger.Warn("preauthorization release failed, continuing", "bookingID", bookingID, "error", err)
	}

	booking.DepositStatus = domain.DepositStatusReleased
	if booking.Metadata == nil {
		booking.Metadata = map[string]any{}
	}
	booking.Metadata["preauth_expired"] = true
	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return nil, err
	}

	_ = s.noteSvc.Notify(ctx, booking.OwnerID, "Guarantee expired",
		fmt.Sprintf("The card hold guaranteeing booking %s expired and was released.", booking.ID),
		map[string]string{"type": "PREAUTH_EXPIRED", "booking_id": booking.ID})

	logger.ExitMethod("depositService.ReleaseExpiredPreauth", "bookingID", bookingID)
	return booking, nil
}

func (s *depositService) checkSettleable(b *domain.Booking) error {
	switch b.Status {
	case domain.BookingStatusConfirmed, domain.BookingStatusInProgress, domain.BookingStatusPendingDispute:
	default:
		return fmt.Errorf("booking %s is %s: %w", b.ID, b.Status, ErrGuaranteeNotSettleable)
	}
	if !b.HasWalletLock() && !b.HasCardHold() {
		return fmt.Errorf("booking %s holds no guarantee: %w", b.ID, ErrGuaranteeNotSettleable)
	}
	return nil
}

// settleGuarantee charges chargeCents against whichever guarantee backs
// the booking and releases the remainder. chargeCents is already clamped
// to the deposit amount; claimCents is the owner's full claim, so a
// wallet guarantee that could not absorb all of it ends partially_charged.
func (s *depositService) settleGuarantee(ctx context.Context, b *domain.Booking, chargeCents, claimCents int64) error {
	switch {
	case b.HasWalletLock():
		if chargeCents == 0 {
			if err := s.walletRepo.ReleaseLock(ctx, b.WalletLockTxID); err != nil {
				return fmt.Errorf("failed to release wallet lock: %w", err)
			}
			b.WalletStatus = domain.WalletStatusRefunded
		} else {
			if _, err := s.walletRepo.ChargeLock(ctx, b.WalletLockTxID, chargeCents); err != nil {
				return fmt.Errorf("failed to charge wallet lock: %w", err)
			}
			if claimCents > chargeCents {
				b.WalletStatus = domain.WalletStatusPartiallyCharged
			} else {
				b.WalletStatus = domain.WalletStatusCharged
			}
		}
	case b.HasCardHold():
		if chargeCents == 0 {
			if _, err := s.provider.ReleasePreauthorization(ctx, b.CardPreauthID); err != nil {
				return fmt.Errorf("failed to release preauthorization: %w", err)
			}
		} else {
			// A partial capture settles for less and the provider voids the rest.
			if _, err := s.provider.CapturePreauthorization(ctx, b.CardPreauthID, chargeCents); err != nil {
				return fmt.Errorf("failed to capture preauthorization: %w", err)
			}
		}
	}

	if chargeCents == 0 {
		b.DepositStatus = domain.DepositStatusReleased
	} else {
		b.DepositStatus = domain.DepositStatusCharged
	}
	return nil
}

// coverFromFund asks the guarantee fund to absorb the part of a claim the
// deposit could not cover. Returns how many cents the fund paid.
func (s *depositService) coverFromFund(ctx context.Context, b *domain.Booking, excessCents int64) int64 {
	decision, err := s.policySvc.EvaluateForUser(ctx, b.RenterID)
	if err != nil {
		logger.Warn("fund policy evaluation failed", "bookingID", b.ID, "error", err)
		return 0
	}

	v := fgo.ValidatePayout(float64(excessCents)/100, *decision)
	if !v.Allowed || v.AdjustedUsd <= 0 {
		logger.Info("fund coverage declined", "bookingID", b.ID, "reason", v.Reason)
		return 0
	}

	coveredCents := int64(math.Round(v.AdjustedUsd * 100))
	if v.RequiresCoPay {
		coveredCents = coveredCents * int64(100-decision.CoPayPercentage) / 100
	}

	if err := s.policySvc.RecordPayout(ctx, b.RenterID, b.ID, b.OwnerID, coveredCents); err != nil {
		logger.Error("fund payout record failed", "bookingID", b.ID, "error", err)
		return 0
	}
	return coveredCents
}

func (s *depositService) notifySettlement(ctx context.Context, b *domain.Booking, chargedCents, returnedCents int64) {
	_ = s.noteSvc.Notify(ctx, b.RenterID, "Booking settled",
		fmt.Sprintf("Booking %s settled: %d charged, %d returned.", b.ID, chargedCents, returnedCents),
		map[string]string{"type": "BOOKING_SETTLED", "booking_id": b.ID})
	_ = s.noteSvc.Notify(ctx, b.OwnerID, "Booking settled",
		fmt.Sprintf("Booking %s settled: %d collected from the guarantee.", b.ID, chargedCents),
		map[string]string{"type": "BOOKING_SETTLED", "booking_id": b.ID})

	if email, err := s.userRepo.GetEmail(ctx, b.RenterID); err == nil && email != "" {
		_ = s.emailSvc.SendSettlementNotice(ctx, email, b.ID, chargedCents, returnedCents)
	}
}
