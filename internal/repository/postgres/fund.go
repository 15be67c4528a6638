package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
)

type fundRepository struct {
	db *sql.DB
}

func NewFundRepository(db *sql.DB) repository.FundRepository {
	return &fundRepository{db: db}
}

// GetMetrics aggregates the fund ledger into the snapshot the policy
// engine consumes. Exposure is the guarantee amount of every booking that
// could still claim against the fund.
func (r *fundRepository) GetMetrics(ctx context.Context) (*domain.FundMetrics, error) {
	m := &domain.FundMetrics{}

	var balanceCents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN type = 'contribution' THEN amount_cents ELSE -amount_cents END), 0)
		 FROM fund_entries`).Scan(&balanceCents)
	if err != nil {
		return nil, err
	}
	m.TotalBalanceUsd = float64(balanceCents) / 100

	var exposureCents int64
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(deposit_amount_cents), 0) FROM bookings
		 WHERE status IN ('confirmed', 'in_progress', 'pending_dispute_resolution')`).Scan(&exposureCents)
	if err != nil {
		return nil, err
	}
	m.ProjectedExposureUsd = float64(exposureCents) / 100

	var monthCents int64
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM fund_entries
		 WHERE type = 'payout' AND created_at >= date_trunc('month', NOW())`).Scan(&monthCents)
	if err != nil {
		return nil, err
	}
	m.PayoutsThisMonthUsd = float64(monthCents) / 100

	var contrib90, payout90 int64
	err = r.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN type = 'contribution' THEN amount_cents ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN type = 'payout' THEN amount_cents ELSE 0 END), 0)
		 FROM fund_entries WHERE created_at >= NOW() - INTERVAL '90 days'`).Scan(&contrib90, &payout90)
	if err != nil {
		return nil, err
	}
	m.ContributionsLast90d = float64(contrib90) / 100
	m.PayoutsLast90d = float64(payout90) / 100

	return m, nil
}

func (r *fundRepository) CountUserEvents(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM fund_entries WHERE type = 'payout' AND user_id = $1 AND created_at >= $2`,
		userID, since).Scan(&count)
	return count, err
}

func (r *fundRepository) CreateEntry(ctx context.Context, entry *domain.FundEntry) error {
	logger.EnterMethod("fundRepository.CreateEntry", "type", entry.Type, "userID", entry.UserID)

	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO fund_entries (id, type, user_id, booking_id, amount_cents, source, metadata, created_at)
	          VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, NOW())
	          RETURNING created_at`
	logger.DatabaseCall("INSERT", "fund_entries", "entryID", entry.ID)

	err = r.db.QueryRowContext(ctx, query,
		entry.ID, entry.Type, entry.UserID, entry.BookingID, entry.AmountCents, entry.Source, meta,
	).Scan(&entry.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "entryID", entry.ID)

	if err != nil {
		logger.ExitMethodWithError("fundRepository.CreateEntry", err, "entryID", entry.ID)
		return err
	}
	logger.ExitMethod("fundRepository.CreateEntry", "entryID", entry.ID)
	return nil
}
