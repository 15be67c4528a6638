package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending           BookingStatus = "pending"
	BookingStatusConfirmed         BookingStatus = "confirmed"
	BookingStatusInProgress        BookingStatus = "in_progress"
	BookingStatusCompleted         BookingStatus = "completed"
	BookingStatusPendingDispute    BookingStatus = "pending_dispute_resolution"
	BookingStatusCancelled         BookingStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodWallet     PaymentMethod = "wallet"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
)

type WalletStatus string

const (
	WalletStatusNone             WalletStatus = "none"
	WalletStatusLocked           WalletStatus = "locked"
	WalletStatusRefunded         WalletStatus = "refunded"
	WalletStatusPartiallyCharged WalletStatus = "partially_charged"
	WalletStatusCharged          WalletStatus = "charged"
)

type DepositStatus string

const (
	DepositStatusNone     DepositStatus = "none"
	DepositStatusHeld     DepositStatus = "held"
	DepositStatusReleased DepositStatus = "released"
	DepositStatusCharged  DepositStatus = "charged"
)

// Metadata keys for pending charges recorded when a booking enters
// pending_dispute_resolution.
const (
	MetaFuelFeeCents        = "fuel_fee_cents"
	MetaDamageFeeCents      = "damage_fee_cents"
	MetaLateFeeCents        = "late_fee_cents"
	MetaTotalPendingCharges = "total_pending_charges_cents"
)

// Booking carries the settlement-relevant slice of a rental booking.
// A booking is guaranteed either by a locked wallet credit or by a card
// pre-authorization, never both: WalletStatus == locked XOR
// CardPreauthID != "".
type Booking struct {
	ID                     string         `json:"id"`
	RenterID               string         `json:"renter_id"`
	OwnerID                string         `json:"owner_id"`
	CarID                  string         `json:"car_id"`
	Status                 BookingStatus  `json:"status"`
	PaymentMethod          PaymentMethod  `json:"payment_method"`
	WalletStatus           WalletStatus   `json:"wallet_status"`
	DepositStatus          DepositStatus  `json:"deposit_status"`
	DepositAmountCents     int64          `json:"deposit_amount_cents"`
	CardPreauthID          string         `json:"card_preauth_id,omitempty"`
	PreauthExpiresAt       *time.Time     `json:"preauth_expires_at,omitempty"`
	WalletLockTxID         string         `json:"wallet_lock_transaction_id,omitempty"`
	Currency               string         `json:"currency"`
	OwnerDamageAmountCents int64          `json:"owner_damage_amount_cents"`
	OwnerDamageDescription string         `json:"owner_damage_description"`
	DisputeOpenAt          *time.Time     `json:"dispute_open_at,omitempty"`
	Metadata               map[string]any `json:"metadata,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// HasCardHold reports whether the guarantee is a card pre-authorization.
func (b *Booking) HasCardHold() bool {
	return b.CardPreauthID != ""
}

// HasWalletLock reports whether the guarantee is a locked wallet credit.
func (b *Booking) HasWalletLock() bool {
	return b.WalletStatus == WalletStatusLocked
}

// PendingChargesCents returns the itemized pending charge total recorded
// in metadata, or 0 when the booking is not parked in dispute.
func (b *Booking) PendingChargesCents() int64 {
	if b.Metadata == nil {
		return 0
	}
	switch v := b.Metadata[MetaTotalPendingCharges].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}
