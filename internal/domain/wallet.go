package domain

import "time"

type TransactionType string

const (
	TransactionTypeDeposit TransactionType = "deposit"
	TransactionTypePayout  TransactionType = "payout"
	TransactionTypeLock    TransactionType = "lock"
	TransactionTypeUnlock  TransactionType = "unlock"
	TransactionTypeCharge  TransactionType = "charge"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Reference types linking a wallet transaction to its originating entity.
const (
	ReferenceTypeBooking    = "booking"
	ReferenceTypeSplit      = "payment_split"
	ReferenceTypeWithdrawal = "withdrawal_request"
)

// WalletTransaction is a ledger entry. It transitions
// pending -> confirmed|failed exactly once; ProviderTransactionID is
// unique when non-empty, which is what makes confirmation idempotent.
type WalletTransaction struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"user_id"`
	Type                  TransactionType   `json:"type"`
	Status                TransactionStatus `json:"status"`
	AmountCents           int64             `json:"amount_cents"` // signed: credits positive, debits negative
	Currency              string            `json:"currency"`
	Provider              string            `json:"provider"`
	ProviderTransactionID string            `json:"provider_transaction_id,omitempty"`
	ReferenceType         string            `json:"reference_type,omitempty"`
	ReferenceID           string            `json:"reference_id,omitempty"`
	Description           string            `json:"description,omitempty"`
	Metadata              map[string]any    `json:"metadata,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// LedgerEntry is the append-only record behind wallet balances. Balances
// are only ever derived from confirmed entries.
type LedgerEntry struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	AmountCents int64          `json:"amount_cents"`
	Ref         string         `json:"ref"`
	Provider    string         `json:"provider"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// WithdrawalRequest mirrors the withdrawal_requests table consumed by the
// money_request webhook topic.
type WithdrawalRequest struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
