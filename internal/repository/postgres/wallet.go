package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
)

// isUniqueViolation reports a postgres unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type walletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) repository.WalletRepository {
	return &walletRepository{db: db}
}

const walletTxColumns = `id, user_id, type, status, amount_cents, currency, provider,
	          COALESCE(provider_transaction_id, ''), COALESCE(reference_type, ''), COALESCE(reference_id, ''),
	          COALESCE(description, ''), metadata, created_at, updated_at`

func (r *walletRepository) CreateTransaction(ctx context.Context, tx *domain.WalletTransaction) error {
	logger.EnterMethod("walletRepository.CreateTransaction", "userID", tx.UserID, "type", tx.Type)

	meta, err := json.Marshal(tx.Metadata)
	if err != nil {
		logger.ExitMethodWithError("walletRepository.CreateTransaction", err, "reason", "failed to marshal metadata")
		return err
	}

	query := `INSERT INTO wallet_transactions
	          (id, user_id, type, status, amount_cents, currency, provider, provider_transaction_id,
	           reference_type, reference_id, description, metadata, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12, NOW(), NOW())
	          RETURNING created_at, updated_at`
	logger.DatabaseCall("INSERT", "wallet_transactions", "txID", tx.ID)

	err = r.db.QueryRowContext(ctx, query,
		tx.ID, tx.UserID, tx.Type, tx.Status, tx.AmountCents, tx.Currency, tx.Provider,
		tx.ProviderTransactionID, tx.ReferenceType, tx.ReferenceID, tx.Description, meta,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	logger.DatabaseResult("INSERT", 1, err, "txID", tx.ID)

	if err != nil {
		logger.ExitMethodWithError("walletRepository.CreateTransaction", err, "txID", tx.ID)
	} else {
		logger.ExitMethod("walletRepository.CreateTransaction", "txID", tx.ID)
	}
	return err
}

func (r *walletRepository) CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	logger.EnterMethod("walletRepository.CreateLedgerEntry", "userID", entry.UserID, "ref", entry.Ref)

	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO wallet_ledger (id, user_id, amount_cents, ref, provider, metadata, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	logger.DatabaseCall("INSERT", "wallet_ledger", "entryID", entry.ID)

	err = r.db.QueryRowContext(ctx, query,
		entry.ID, entry.UserID, entry.AmountCents, entry.Ref, entry.Provider, meta,
	).Scan(&entry.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "entryID", entry.ID)

	if err != nil {
		logger.ExitMethodWithError("walletRepository.CreateLedgerEntry", err, "entryID", entry.ID)
	} else {
		logger.ExitMethod("walletRepository.CreateLedgerEntry", "entryID", entry.ID)
	}
	return err
}

func (r *walletRepository) GetTransactionByID(ctx context.Context, id string) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE id = $1`
	return r.scanTransaction(r.db.QueryRowContext(ctx, query, id))
}

func (r *walletRepository) GetTransactionByProviderID(ctx context.Context, providerID string) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE provider_transaction_id = $1`
	return r.scanTransaction(r.db.QueryRowContext(ctx, query, providerID))
}

func (r *walletRepository) scanTransaction(row *sql.Row) (*domain.WalletTransaction, error) {
	var tx domain.WalletTransaction
	var meta []byte
	err := row.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Status, &tx.AmountCents, &tx.Currency, &tx.Provider,
		&tx.ProviderTransactionID, &tx.ReferenceType, &tx.ReferenceID, &tx.Description, &meta,
		&tx.CreatedAt, &tx.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &tx.Metadata); err != nil {
			return nil, err
		}
	}
	return &tx, nil
}

// ConfirmDeposit is the single write path that turns provider money into
// wallet balance. It locks the pending row, binds the provider payment id
// and credits the recorded balance, all in one database transaction, so a
// webhook and a poll racing on the same payment cannot double-credit.
func (r *walletRepository) ConfirmDeposit(ctx context.Context, txID, providerID string, amountCents int64) error {
	logger.EnterMethod("walletRepository.ConfirmDeposit", "txID", txID, "providerID", providerID)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", err)
		return err
	}
	defer dbTx.Rollback()

	var userID, status, boundProviderID string
	query := `SELECT user_id, status, COALESCE(provider_transaction_id, '')
	          FROM wallet_transactions WHERE id = $1 FOR UPDATE`
	err = dbTx.QueryRowContext(ctx, query, txID).Scan(&userID, &status, &boundProviderID)
	if err == sql.ErrNoRows {
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", repository.ErrNotFound, "txID", txID)
		return repository.ErrNotFound
	}
	if err != nil {
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", err, "txID", txID)
		return err
	}

	if status == string(domain.TransactionStatusConfirmed) {
		if boundProviderID == providerID {
			logger.ExitMethod("walletRepository.ConfirmDeposit", "txID", txID, "result", "already confirmed")
			return repository.ErrAlreadyConfirmed
		}
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", repository.ErrProviderIDConflict,
			"txID", txID, "boundProviderID", boundProviderID)
		return repository.ErrProviderIDConflict
	}
	if status != string(domain.TransactionStatusPending) {
		err := fmt.Errorf("transaction %s is %s, cannot confirm", txID, status)
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", err)
		return err
	}

	// The provider payment may only ever confirm one transaction.
	var other string
	err = dbTx.QueryRowContext(ctx,
		`SELECT id FROM wallet_transactions WHERE provider_transaction_id = $1 AND id <> $2`,
		providerID, txID).Scan(&other)
	if err == nil {
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", repository.ErrProviderIDConflict,
			"txID", txID, "conflictingTxID", other)
		return repository.ErrProviderIDConflict
	}
	if err != sql.ErrNoRows {
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", err)
		return err
	}

	_, err = dbTx.ExecContext(ctx,
		`UPDATE wallet_transactions
		 SET status = $1, provider_transaction_id = $2, amount_cents = $3, updated_at = NOW()
		 WHERE id = $4 AND status = $5`,
		domain.TransactionStatusConfirmed, providerID, amountCents, txID, domain.TransactionStatusPending)
	if err != nil {
		// A concurrent confirmation can slip past the SELECT above and bind
		// the provider id first; the unique index is the real arbiter.
		if isUniqueViolation(err) {
			logger.ExitMethodWithError("walletRepository.ConfirmDeposit", repository.ErrProviderIDConflict,
				"txID", txID, "providerID", providerID)
			return repository.ErrProviderIDConflict
		}
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", err, "txID", txID)
		return err
	}

	_, err = dbTx.ExecContext(ctx,
		`UPDATE users SET wallet_balance_cents = wallet_balance_cents + $1 WHERE id = $2`,
		amountCents, userID)
	if err != nil {
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", err, "userID", userID)
		return err
	}

	if err := dbTx.Commit(); err != nil {
		if isUniqueViolation(err) {
			logger.ExitMethodWithError("walletRepository.ConfirmDeposit", repository.ErrProviderIDConflict,
				"txID", txID, "providerID", providerID)
			return repository.ErrProviderIDConflict
		}
		logger.ExitMethodWithError("walletRepository.ConfirmDeposit", err)
		return err
	}
	logger.ExitMethod("walletRepository.ConfirmDeposit", "txID", txID, "amountCents", amountCents)
	return nil
}

func (r *walletRepository) MarkFailed(ctx context.Context, txID, reason string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE wallet_transactions
		 SET status = $1, description = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		domain.TransactionStatusFailed, reason, txID, domain.TransactionStatusPending)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var status string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM wallet_transactions WHERE id = $1`, txID).Scan(&status)
		if err == sql.ErrNoRows {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("transaction %s is %s, cannot fail", txID, status)
	}
	return nil
}

func (r *walletRepository) ListPendingDeposits(ctx context.Context, olderThan time.Time, limit int) ([]domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + `
	          FROM wallet_transactions
	          WHERE type = $1 AND status = $2 AND created_at < $3
	          ORDER BY created_at ASC LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query,
		domain.TransactionTypeDeposit, domain.TransactionStatusPending, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.WalletTransaction
	for rows.Next() {
		var tx domain.WalletTransaction
		var meta []byte
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Status, &tx.AmountCents, &tx.Currency, &tx.Provider,
			&tx.ProviderTransactionID, &tx.ReferenceType, &tx.ReferenceID, &tx.Description, &meta,
			&tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &tx.Metadata); err != nil {
				return nil, err
			}
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *walletRepository) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM wallet_transactions
	          WHERE user_id = $1 AND status = $2`
	err := r.db.QueryRowContext(ctx, query, userID, domain.TransactionStatusConfirmed).Scan(&balance)
	return balance, err
}

func (r *walletRepository) ReleaseLock(ctx context.Context, lockTxID string) error {
	logger.EnterMethod("walletRepository.ReleaseLock", "lockTxID", lockTxID)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	userID, lockedCents, err := r.lockGuaranteeRow(ctx, dbTx, lockTxID)
	if err != nil {
		logger.ExitMethodWithError("walletRepository.ReleaseLock", err, "lockTxID", lockTxID)
		return err
	}

	if err := r.insertUnlock(ctx, dbTx, userID, lockTxID, lockedCents); err != nil {
		logger.ExitMethodWithError("walletRepository.ReleaseLock", err)
		return err
	}
	if _, err := dbTx.ExecContext(ctx,
		`UPDATE users SET wallet_balance_cents = wallet_balance_cents + $1 WHERE id = $2`,
		lockedCents, userID); err != nil {
		logger.ExitMethodWithError("walletRepository.ReleaseLock", err)
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return err
	}
	logger.ExitMethod("walletRepository.ReleaseLock", "lockTxID", lockTxID, "releasedCents", lockedCents)
	return nil
}

func (r *walletRepository) ChargeLock(ctx context.Context, lockTxID string, chargeCents int64) (int64, error) {
	logger.EnterMethod("walletRepository.ChargeLock", "lockTxID", lockTxID, "chargeCents", chargeCents)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer dbTx.Rollback()

	userID, lockedCents, err := r.lockGuaranteeRow(ctx, dbTx, lockTxID)
	if err != nil {
		logger.ExitMethodWithError("walletRepository.ChargeLock", err, "lockTxID", lockTxID)
		return 0, err
	}
	if chargeCents < 0 || chargeCents > lockedCents {
		err := fmt.Errorf("charge %d out of range for locked %d", chargeCents, lockedCents)
		logger.ExitMethodWithError("walletRepository.ChargeLock", err)
		return 0, err
	}

	// The lock already debited the renter. Returning the full lock and
	// debiting the charge leaves the net effect at -chargeCents.
	if err := r.insertUnlock(ctx, dbTx, userID, lockTxID, lockedCents); err != nil {
		logger.ExitMethodWithError("walletRepository.ChargeLock", err)
		return 0, err
	}
	if chargeCents > 0 {
		_, err = dbTx.ExecContext(ctx,
			`INSERT INTO wallet_transactions
			 (id, user_id, type, status, amount_cents, currency, provider, reference_type, reference_id, description, created_at, updated_at)
			 SELECT gen_random_uuid(), user_id, $1, $2, $3, currency, provider, $4, id, 'guarantee charge', NOW(), NOW()
			 FROM wallet_transactions WHERE id = $5`,
			domain.TransactionTypeCharge, domain.TransactionStatusConfirmed, -chargeCents,
			domain.ReferenceTypeBooking, lockTxID)
		if err != nil {
			logger.ExitMethodWithError("walletRepository.ChargeLock", err)
			return 0, err
		}
	}

	remaining := lockedCents - chargeCents
	if _, err := dbTx.ExecContext(ctx,
		`UPDATE users SET wallet_balance_cents = wallet_balance_cents + $1 WHERE id = $2`,
		remaining, userID); err != nil {
		logger.ExitMethodWithError("walletRepository.ChargeLock", err)
		return 0, err
	}

	if err := dbTx.Commit(); err != nil {
		return 0, err
	}
	logger.ExitMethod("walletRepository.ChargeLock", "lockTxID", lockTxID, "remainingCents", remaining)
	return remaining, nil
}

// lockGuaranteeRow loads a confirmed lock transaction FOR UPDATE and
// returns its owner and the locked amount as a positive number.
func (r *walletRepository) lockGuaranteeRow(ctx context.Context, dbTx *sql.Tx, lockTxID string) (string, int64, error) {
	var userID, txType, status string
	var amountCents int64
	err := dbTx.QueryRowContext(ctx,
		`SELECT user_id, type, status, amount_cents FROM wallet_transactions WHERE id = $1 FOR UPDATE`,
		lockTxID).Scan(&userID, &txType, &status, &amountCents)
	if err == sql.ErrNoRows {
		return "", 0, repository.ErrNotFound
	}
	if err != nil {
		return "", 0, err
	}
	if txType != string(domain.TransactionTypeLock) || status != string(domain.TransactionStatusConfirmed) {
		return "", 0, fmt.Errorf("transaction %s is not a confirmed lock", lockTxID)
	}
	return userID, -amountCents, nil
}

func (r *walletRepository) insertUnlock(ctx context.Context, dbTx *sql.Tx, userID, lockTxID string, amountCents int64) error {
	_, err := dbTx.ExecContext(ctx,
		`INSERT INTO wallet_transactions
		 (id, user_id, type, status, amount_cents, currency, provider, reference_type, reference_id, description, created_at, updated_at)
		 SELECT gen_random_uuid(), $1, $2, $3, $4, currency, provider, $5, id, 'guarantee release', NOW(), NOW()
		 FROM wallet_transactions WHERE id = $6`,
		userID, domain.TransactionTypeUnlock, domain.TransactionStatusConfirmed, amountCents,
		domain.ReferenceTypeBooking, lockTxID)
	return err
}

func (r *walletRepository) GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	query := `SELECT id, user_id, amount_cents, status, created_at FROM withdrawal_requests WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&w.ID, &w.UserID, &w.AmountCents, &w.Status, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepository) CompleteWithdrawal(ctx context.Context, id, providerID string) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	result, err := dbTx.ExecContext(ctx,
		`UPDATE withdrawal_requests SET status = 'completed', updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'processing')`, id)
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

	// Confirm the payout debit so the withdrawn amount leaves the derived balance.
	_, err = dbTx.ExecContext(ctx,
		`UPDATE wallet_transactions
		 SET status = $1, provider_transaction_id = $2, updated_at = NOW()
		 WHERE reference_type = $3 AND reference_id = $4 AND status = $5`,
		domain.TransactionStatusConfirmed, providerID,
		domain.ReferenceTypeWithdrawal, id, domain.TransactionStatusPending)
	if err != nil {
		return err
	}

	return dbTx.Commit()
}

func (r *walletRepository) FailWithdrawal(ctx context.Context, id, reason string) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	result, err := dbTx.ExecContext(ctx,
		`UPDATE withdrawal_requests SET status = 'failed', updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'processing')`, id)
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

	_, err = dbTx.ExecContext(ctx,
		`UPDATE wallet_transactions
		 SET status = $1, description = $2, updated_at = NOW()
		 WHERE reference_type = $3 AND reference_id = $4 AND status = $5`,
		domain.TransactionStatusFailed, reason,
		domain.ReferenceTypeWithdrawal, id, domain.TransactionStatusPending)
	if err != nil {
		return err
	}

	return dbTx.Commit()
}

func (r *walletRepository) FindBalanceDiscrepancies(ctx context.Context) ([]domain.WalletDiscrepancy, error) {
	query := `SELECT u.id, u.wallet_balance_cents, COALESCE(SUM(wt.amount_cents), 0) AS derived
	          FROM users u
	          LEFT JOIN wallet_transactions wt ON wt.user_id = u.id AND wt.status = 'confirmed'
	          GROUP BY u.id, u.wallet_balance_cents
	          HAVING u.wallet_balance_cents <> COALESCE(SUM(wt.amount_cents), 0)`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WalletDiscrepancy
	for rows.Next() {
		var d domain.WalletDiscrepancy
		if err := rows.Scan(&d.UserID, &d.RecordedCents, &d.DerivedCents); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
