package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
)

type splitRepository struct {
	db *sql.DB
}

func NewSplitRepository(db *sql.DB) repository.SplitRepository {
	return &splitRepository{db: db}
}

// CreateBatch writes all rows of a split atomically. The payment must not
// have splits yet; a partial batch is never visible.
func (r *splitRepository) CreateBatch(ctx context.Context, splits []domain.PaymentSplit) error {
	if len(splits) == 0 {
		return fmt.Errorf("empty split batch")
	}
	paymentID := splits[0].PaymentID
	logger.EnterMethod("splitRepository.CreateBatch", "paymentID", paymentID, "count", len(splits))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT count(*) FROM payment_splits WHERE payment_id = $1`, paymentID).Scan(&existing)
	if err != nil {
		logger.ExitMethodWithError("splitRepository.CreateBatch", err)
		return err
	}
	if existing > 0 {
		err := fmt.Errorf("payment %s already has %d splits", paymentID, existing)
		logger.ExitMethodWithError("splitRepository.CreateBatch", err)
		return err
	}

	query := `INSERT INTO payment_splits
	          (id, payment_id, booking_id, collector_id, percentage, amount_cents,
	           platform_fee_cents, net_amount_cents, currency, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	          RETURNING created_at`
	for i := range splits {
		s := &splits[i]
		if s.PaymentID != paymentID {
			err := fmt.Errorf("split batch spans multiple payments")
			logger.ExitMethodWithError("splitRepository.CreateBatch", err)
			return err
		}
		err = tx.QueryRowContext(ctx, query,
			s.ID, s.PaymentID, s.BookingID, s.CollectorID, s.Percentage, s.AmountCents,
			s.PlatformFeeCents, s.NetAmountCents, s.Currency, s.Status,
		).Scan(&s.CreatedAt)
		if err != nil {
			logger.ExitMethodWithError("splitRepository.CreateBatch", err, "splitID", s.ID)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("splitRepository.CreateBatch", err)
		return err
	}
	logger.ExitMethod("splitRepository.CreateBatch", "paymentID", paymentID, "count", len(splits))
	return nil
}

func (r *splitRepository) ListByPayment(ctx context.Context, paymentID string) ([]domain.PaymentSplit, error) {
	query := `SELECT id, payment_id, booking_id, collector_id, percentage, amount_cents,
	          platform_fee_cents, net_amount_cents, currency, status, created_at
	          FROM payment_splits WHERE payment_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var splits []domain.PaymentSplit
	for rows.Next() {
		var s domain.PaymentSplit
		if err := rows.Scan(&s.ID, &s.PaymentID, &s.BookingID, &s.CollectorID, &s.Percentage,
			&s.AmountCents, &s.PlatformFeeCents, &s.NetAmountCents, &s.Currency, &s.Status,
			&s.CreatedAt); err != nil {
			return nil, err
		}
		splits = append(splits, s)
	}
	return splits, rows.Err()
}

func (r *splitRepository) UpdateStatus(ctx context.Context, id string, status domain.SplitStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payment_splits SET status = $1 WHERE id = $2`, status, id)
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
