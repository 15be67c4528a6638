package repository

import (
	"context"
	"errors"
	"time"

	"autorenta-settlement/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrAlreadyConfirmed means the transaction was already confirmed with
	// the same provider payment. Callers treat it as a no-op success.
	ErrAlreadyConfirmed = errors.New("transaction already confirmed")

	// ErrProviderIDConflict means the transaction was confirmed against a
	// different provider payment, or the provider payment id is attached
	// to another transaction. This is never safe to ignore.
	ErrProviderIDConflict = errors.New("provider transaction id conflict")
)

type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
	ListExpiringPreauths(ctx context.Context, before time.Time) ([]domain.Booking, error)
	ListInDispute(ctx context.Context) ([]domain.Booking, error)
}

type WalletRepository interface {
	CreateTransaction(ctx context.Context, tx *domain.WalletTransaction) error
	GetTransactionByID(ctx context.Context, id string) (*domain.WalletTransaction, error)
	GetTransactionByProviderID(ctx context.Context, providerID string) (*domain.WalletTransaction, error)

	// CreateLedgerEntry appends one provenance record to the wallet ledger.
	CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error

	// ConfirmDeposit moves a pending deposit to confirmed and credits the
	// wallet, keyed on the provider payment id for idempotency. Returns
	// ErrAlreadyConfirmed for a repeat of the same (tx, provider) pair and
	// ErrProviderIDConflict when either side is already bound elsewhere.
	ConfirmDeposit(ctx context.Context, txID, providerID string, amountCents int64) error

	// MarkFailed moves a pending transaction to failed. Confirmed
	// transactions are never failed.
	MarkFailed(ctx context.Context, txID, reason string) error

	ListPendingDeposits(ctx context.Context, olderThan time.Time, limit int) ([]domain.WalletTransaction, error)
	GetBalance(ctx context.Context, userID string) (int64, error)

	// ReleaseLock refunds a locked guarantee back to the renter's wallet.
	ReleaseLock(ctx context.Context, lockTxID string) error

	// ChargeLock charges part of a locked guarantee and releases the rest,
	// returning the amount released back to the renter.
	ChargeLock(ctx context.Context, lockTxID string, chargeCents int64) (remainingCents int64, err error)

	GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error)
	CompleteWithdrawal(ctx context.Context, id, providerID string) error
	FailWithdrawal(ctx context.Context, id, reason string) error

	FindBalanceDiscrepancies(ctx context.Context) ([]domain.WalletDiscrepancy, error)
}

type SplitRepository interface {
	// CreateBatch inserts all rows of a split in one transaction. A payment
	// that already has splits is rejected wholesale.
	CreateBatch(ctx context.Context, splits []domain.PaymentSplit) error
	ListByPayment(ctx context.Context, paymentID string) ([]domain.PaymentSplit, error)
	UpdateStatus(ctx context.Context, id string, status domain.SplitStatus) error
}

type PaymentIntentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error)
}

type FundRepository interface {
	GetMetrics(ctx context.Context) (*domain.FundMetrics, error)
	CountUserEvents(ctx context.Context, userID string, since time.Time) (int, error)
	CreateEntry(ctx context.Context, entry *domain.FundEntry) error
}

// UserDirectory is the slice of the users table this service touches.
// Account management lives elsewhere.
type UserDirectory interface {
	GetEmail(ctx context.Context, userID string) (string, error)

	// AdjustReputation shifts a user's reputation score by delta. Callers
	// treat failures as best-effort; settlement never depends on it.
	AdjustReputation(ctx context.Context, userID string, delta int) error
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID string, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID string) error
}
