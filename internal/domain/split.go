package domain

import "time"

type SplitStatus string

const (
	SplitStatusPending    SplitStatus = "pending"
	SplitStatusProcessing SplitStatus = "processing"
	SplitStatusCompleted  SplitStatus = "completed"
	SplitStatusFailed     SplitStatus = "failed"
)

// PaymentSplit is one collector's share of a captured payment.
// Rows for a payment are created as a single batch and are immutable
// afterwards except for Status.
type PaymentSplit struct {
	ID               string      `json:"id"`
	PaymentID        string      `json:"payment_id"`
	BookingID        string      `json:"booking_id"`
	CollectorID      string      `json:"collector_id"`
	Percentage       float64     `json:"percentage"`
	AmountCents      int64       `json:"amount_cents"`
	PlatformFeeCents int64       `json:"platform_fee_cents"`
	NetAmountCents   int64       `json:"net_amount_cents"`
	Currency         string      `json:"currency"`
	Status           SplitStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
}

// PaymentIntent is the captured payment a split divides. Read-only here;
// the checkout flow that creates it is outside this service.
type PaymentIntent struct {
	ID          string    `json:"id"`
	BookingID   string    `json:"booking_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification is an in-app message persisted for a user.
type Notification struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ReadAt     *time.Time        `json:"read_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
