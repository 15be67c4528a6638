package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/repository"
)

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) repository.BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `id, renter_id, owner_id, car_id, status, payment_method, wallet_status, deposit_status,
	          deposit_amount_cents, COALESCE(card_preauth_id, ''), preauth_expires_at,
	          COALESCE(wallet_lock_transaction_id, ''), currency, owner_damage_amount_cents,
	          COALESCE(owner_damage_description, ''), dispute_open_at, metadata, created_at, updated_at`

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRowContext(ctx, query, id))
}

func (r *bookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	meta, err := json.Marshal(b.Metadata)
	if err != nil {
		return err
	}

	query := `UPDATE bookings
	          SET status = $1, wallet_status = $2, deposit_status = $3,
	              card_preauth_id = NULLIF($4, ''), preauth_expires_at = $5,
	              owner_damage_amount_cents = $6, owner_damage_description = NULLIF($7, ''),
	              dispute_open_at = $8, metadata = $9, updated_at = NOW()
	          WHERE id = $10`
	result, err := r.db.ExecContext(ctx, query,
		b.Status, b.WalletStatus, b.DepositStatus,
		b.CardPreauthID, b.PreauthExpiresAt,
		b.OwnerDamageAmountCents, b.OwnerDamageDescription,
		b.DisputeOpenAt, meta, b.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) ListExpiringPreauths(ctx context.Context, before time.Time) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + `
	          FROM bookings
	          WHERE card_preauth_id IS NOT NULL
	            AND deposit_status = $1
	            AND preauth_expires_at IS NOT NULL
	            AND preauth_expires_at < $2
	          ORDER BY preauth_expires_at ASC`
	return r.queryBookings(ctx, query, domain.DepositStatusHeld, before)
}

func (r *bookingRepository) ListInDispute(ctx context.Context) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = $1 ORDER BY dispute_open_at ASC`
	return r.queryBookings(ctx, query, domain.BookingStatusPendingDispute)
}

func (r *bookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		var meta []byte
		if err := rows.Scan(&b.ID, &b.RenterID, &b.OwnerID, &b.CarID, &b.Status, &b.PaymentMethod,
			&b.WalletStatus, &b.DepositStatus, &b.DepositAmountCents, &b.CardPreauthID, &b.PreauthExpiresAt,
			&b.WalletLockTxID, &b.Currency, &b.OwnerDamageAmountCents, &b.OwnerDamageDescription,
			&b.DisputeOpenAt, &meta, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &b.Metadata); err != nil {
				return nil, err
			}
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(row *sql.Row) (*domain.Booking, error) {
	var b domain.Booking
	var meta []byte
	err := row.Scan(&b.ID, &b.RenterID, &b.OwnerID, &b.CarID, &b.Status, &b.PaymentMethod,
		&b.WalletStatus, &b.DepositStatus, &b.DepositAmountCents, &b.CardPreauthID, &b.PreauthExpiresAt,
		&b.WalletLockTxID, &b.Currency, &b.OwnerDamageAmountCents, &b.OwnerDamageDescription,
		&b.DisputeOpenAt, &meta, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &b.Metadata); err != nil {
			return nil, err
		}
	}
	return &b, nil
}
