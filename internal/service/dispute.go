package service

import (
	"context"
	"fmt"
	"time"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
)

type disputeService struct {
	bookingRepo repository.BookingRepository
	depositSvc  DepositService
	noteSvc     NotificationService
	emailSvc    EmailService
	userRepo    repository.UserDirectory
}

func NewDisputeService(
	bookingRepo repository.BookingRepository,
	depositSvc DepositService,
	noteSvc NotificationService,
	emailSvc EmailService,
	userRepo repository.UserDirectory,
) DisputeService {
	return &disputeService{
		bookingRepo: bookingRepo,
		depositSvc:  depositSvc,
		noteSvc:     noteSvc,
		emailSvc:    emailSvc,
		userRepo:    userRepo,
	}
}

// FinishWithInspection ends a rental from the owner's return inspection.
// No charges means the guarantee goes straight back to the renter; any
// charge opens a dispute instead, and no money moves until it resolves.
func (s *disputeService) FinishWithInspection(ctx context.Context, bookingID string, charges DepositCharges) (*domain.Booking, error) {
	logger.EnterMethod("disputeService.FinishWithInspection", "bookingID", bookingID, "totalCents", charges.TotalCents())

	if charges.TotalCents() == 0 {
		return s.depositSvc.CompleteClean(ctx, bookingID)
	}
	return s.OpenDispute(ctx, bookingID, charges)
}

// OpenDispute parks a booking in pending_dispute_resolution with the
// owner's itemized claim. The guarantee stays held until resolution.
func (s *disputeService) OpenDispute(ctx context.Context, bookingID string, charges DepositCharges) (*domain.Booking, error) {
	logger.EnterMethod("disputeService.OpenDispute", "bookingID", bookingID, "claimedCents", charges.TotalCents())

	total := charges.TotalCents()
	if total <= 0 {
		return nil, fmt.Errorf("dispute requires positive charges, got %d", total)
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		logger.ExitMethodWithError("disputeService.OpenDispute", err, "bookingID", bookingID)
		return nil, err
	}
	if booking.Status != domain.BookingStatusInProgress {
		err := fmt.Errorf("booking %s is %s, disputes open only on in-progress bookings", bookingID, booking.Status)
		logger.ExitMethodWithError("disputeService.OpenDispute", err)
		return nil, err
	}
	if !booking.HasWalletLock() && !booking.HasCardHold() {
		logger.ExitMethodWithError("disputeService.OpenDispute", ErrGuaranteeNotSettleable, "bookingID", bookingID)
		return nil, ErrGuaranteeNotSettleable
	}

	now := time.Now()
	booking.Status = domain.BookingStatusPendingDispute
	booking.DisputeOpenAt = &now
	booking.OwnerDamageAmountCents = total
	booking.OwnerDamageDescription = charges.Description
	if booking.Metadata == nil {
		booking.Metadata = map[string]any{}
	}
	booking.Metadata[domain.MetaDamageFeeCents] = charges.DamageFeeCents
	booking.Metadata[domain.MetaFuelFeeCents] = charges.FuelFeeCents
	booking.Metadata[domain.MetaLateFeeCents] = charges.LateFeeCents
	booking.Metadata[domain.MetaTotalPendingCharges] = total

	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		logger.ExitMethodWithError("disputeService.OpenDispute", err, "bookingID", bookingID)
		return nil, err
	}

	_ = s.noteSvc.Notify(ctx, booking.RenterID, "Dispute opened",
		fmt.Sprintf("The owner claimed %d against your guarantee on booking %s.", total, bookingID),
		map[string]string{"type": "DISPUTE_OPENED", "booking_id": bookingID})
	if email, err := s.userRepo.GetEmail(ctx, booking.RenterID); err == nil && email != "" {
		_ = s.emailSvc.SendDisputeOpened(ctx, email, bookingID, total)
	}

	logger.ExitMethod("disputeService.OpenDispute", "bookingID", bookingID)
	return booking, nil
}

// ResolveDispute settles a disputed booking. Approved charges the full
// claim, partial charges the reviewed amount, rejected returns the whole
// guarantee. All three paths reuse the standard settlement flow.
func (s *disputeService) ResolveDispute(ctx context.Context, bookingID string, resolution DisputeResolution, approvedCents int64) (*domain.Booking, error) {
	logger.EnterMethod("disputeService.ResolveDispute", "bookingID", bookingID, "resolution", resolution)

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		logger.ExitMethodWithError("disputeService.ResolveDispute", err, "bookingID", bookingID)
		return nil, err
	}
	if booking.Status != domain.BookingStatusPendingDispute {
		err := fmt.Errorf("booking %s is %s, not in dispute", bookingID, booking.Status)
		logger.ExitMethodWithError("disputeService.ResolveDispute", err)
		return nil, err
	}

	var settled *domain.Booking
	switch resolution {
	case ResolutionRejected:
		settled, err = s.depositSvc.CompleteClean(ctx, bookingID)
	case ResolutionApproved:
		settled, err = s.depositSvc.CompleteWithDamages(ctx, bookingID, DepositCharges{
			DamageFeeCents: booking.OwnerDamageAmountCents,
			Description:    booking.OwnerDamageDescription,
		})
	case ResolutionPartial:
		if approvedCents <= 0 || approvedCents > booking.OwnerDamageAmountCents {
			err := fmt.Errorf("partial resolution amount %d out of range (claimed %d)", approvedCents, booking.OwnerDamageAmountCents)
			logger.ExitMethodWithError("disputeService.ResolveDispute", err)
			return nil, err
		}
		settled, err = s.depositSvc.CompleteWithDamages(ctx, bookingID, DepositCharges{
			DamageFeeCents: approvedCents,
			Description:    booking.OwnerDamageDescription,
		})
	default:
		return nil, fmt.Errorf("unknown resolution %q", resolution)
	}
	if err != nil {
		logger.ExitMethodWithError("disputeService.ResolveDispute", err, "bookingID", bookingID)
		return nil, err
	}

	if settled.Metadata == nil {
		settled.Metadata = map[string]any{}
	}
	settled.Metadata["dispute_resolution"] = string(resolution)
	delete(settled.Metadata, domain.MetaTotalPendingCharges)
	if err := s.bookingRepo.Update(ctx, settled); err != nil {
		logger.ExitMethodWithError("disputeService.ResolveDispute", err, "bookingID", bookingID)
		return nil, err
	}

	_ = s.noteSvc.Notify(ctx, settled.OwnerID, "Dispute resolved",
		fmt.Sprintf("The dispute on booking %s was resolved: %s.", bookingID, resolution),
		map[string]string{"type": "DISPUTE_RESOLVED", "booking_id": bookingID, "resolution": string(resolution)})

	logger.ExitMethod("disputeService.ResolveDispute", "bookingID", bookingID, "resolution", resolution)
	return settled, nil
}
