package service

import (
	"context"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/provider/mercadopago"
)

// PaymentProvider is the slice of the payment API the settlement flows
// need. Satisfied by mercadopago.Client.
type PaymentProvider interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
	SearchPaymentsByExternalReference(ctx context.Context, externalRef string) ([]mercadopago.Payment, error)
	CapturePreauthorization(ctx context.Context, paymentID string, amountCents int64) (*mercadopago.Payment, error)
	ReleasePreauthorization(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// DepositCharges itemizes what the owner claims at the end of a rental.
type DepositCharges struct {
	DamageFeeCents int64
	FuelFeeCents   int64
	LateFeeCents   int64
	Description    string
}

func (c DepositCharges) TotalCents() int64 {
	return c.DamageFeeCents + c.FuelFeeCents + c.LateFeeCents
}

// DepositService drives the guarantee through its lifecycle at the end of
// a booking.
type DepositService interface {
	CompleteClean(ctx context.Context, bookingID string) (*domain.Booking, error)
	CompleteWithDamages(ctx context.Context, bookingID string, charges DepositCharges) (*domain.Booking, error)
	ReleaseExpiredPreauth(ctx context.Context, bookingID string) (*domain.Booking, error)
}

// CollectorShare is one recipient of a split payment.
type CollectorShare struct {
	CollectorID string
	Percentage  float64
}

// DistributeRequest describes one split payment. TotalAmountCents and
// Currency are cross-checked against the stored payment intent.
// PlatformFeePct of zero selects the configured default.
type DistributeRequest struct {
	PaymentID        string
	BookingID        string
	TotalAmountCents int64
	Currency         string
	Collectors       []CollectorShare
	PlatformFeePct   float64
}

// SplitSummary totals one accepted split.
type SplitSummary struct {
	TotalAmountCents      int64 `json:"total_amount_cents"`
	TotalPlatformFeeCents int64 `json:"total_platform_fee_cents"`
	TotalNetCents         int64 `json:"total_net_cents"`
	CollectorCount        int   `json:"collector_count"`
}

type SplitResult struct {
	Splits  []domain.PaymentSplit `json:"splits"`
	Summary SplitSummary          `json:"summary"`
}

type SplitService interface {
	// Distribute divides a captured payment among collectors. Percentages
	// must sum to 100; the computed cent amounts always sum to the payment
	// total exactly. Rejections for bad input wrap ErrSplitValidation.
	Distribute(ctx context.Context, req DistributeRequest) (*SplitResult, error)
}

// PollSummary reports one run over pending deposits.
type PollSummary struct {
	Checked      int      `json:"checked"`
	Confirmed    int      `json:"confirmed"`
	Failed       int      `json:"failed"`
	StillPending int      `json:"still_pending"`
	Errors       []string `json:"errors,omitempty"`
}

// ReconciliationService converges our ledger with the payment provider,
// from webhooks and from polling. Both paths land on the same
// confirmation primitive, so replays and races are harmless.
type ReconciliationService interface {
	HandlePaymentEvent(ctx context.Context, providerPaymentID string) error
	HandleMoneyRequestEvent(ctx context.Context, withdrawalID string) error
	ProcessPendingDeposits(ctx context.Context) (*PollSummary, error)
}

type DisputeResolution string

const (
	ResolutionApproved DisputeResolution = "approved"
	ResolutionPartial  DisputeResolution = "partial"
	ResolutionRejected DisputeResolution = "rejected"
)

type DisputeService interface {
	// FinishWithInspection ends a rental from the return inspection: zero
	// charges settle cleanly, anything else opens a dispute.
	FinishWithInspection(ctx context.Context, bookingID string, charges DepositCharges) (*domain.Booking, error)

	OpenDispute(ctx context.Context, bookingID string, charges DepositCharges) (*domain.Booking, error)
	ResolveDispute(ctx context.Context, bookingID string, resolution DisputeResolution, approvedCents int64) (*domain.Booking, error)
}

// PolicyService evaluates guarantee fund coverage against live fund
// metrics.
type PolicyService interface {
	EvaluateForUser(ctx context.Context, userID string) (*fgo.PolicyDecision, error)
	RecordContribution(ctx context.Context, userID, bookingID string, amountCents int64, kind fgo.ContributionKind) error
	RecordPayout(ctx context.Context, userID, bookingID, beneficiaryID string, amountCents int64) error
}

// ReputationService records rental outcomes against user reputation.
// Strictly best-effort: settlement never blocks on it.
type ReputationService interface {
	RecordCleanReturn(ctx context.Context, renterID string) error
	RecordDamageCharge(ctx context.Context, renterID string, chargedCents int64) error
}

type NotificationService interface {
	GetNotifications(ctx context.Context, userID string, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) error
	Notify(ctx context.Context, userID, title, message string, attributes map[string]string) error
}

type EmailService interface {
	SendDepositConfirmed(ctx context.Context, email string, amountCents int64, currency string) error
	SendDepositFailed(ctx context.Context, email, reason string) error
	SendSettlementNotice(ctx context.Context, email, bookingID string, chargedCents, returnedCents int64) error
	SendDisputeOpened(ctx context.Context, email, bookingID string, claimedCents int64) error
}
