package postgres

import (
	"context"
	"database/sql"

	"autorenta-settlement/internal/repository"
)

type userDirectory struct {
	db *sql.DB
}

func NewUserDirectory(db *sql.DB) repository.UserDirectory {
	return &userDirectory{db: db}
}

func (r *userDirectory) GetEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err == sql.ErrNoRows {
		return "", repository.ErrNotFound
	}
	return email, err
}

func (r *userDirectory) AdjustReputation(ctx context.Context, userID string, delta int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reputation_score = reputation_score + $1, updated_at = NOW() WHERE id = $2`,
		delta, userID)
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
