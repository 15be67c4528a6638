package postgres

import (
	"context"
	"database/sql"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/repository"
)

type paymentIntentRepository struct {
	db *sql.DB
}

func NewPaymentIntentRepository(db *sql.DB) repository.PaymentIntentRepository {
	return &paymentIntentRepository{db: db}
}

func (r *paymentIntentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	var p domain.PaymentIntent
	query := `SELECT id, booking_id, amount_cents, currency, status, created_at
	          FROM payment_intents WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.BookingID, &p.AmountCents, &p.Currency, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
