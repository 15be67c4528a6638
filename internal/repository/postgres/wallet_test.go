package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"autorenta-settlement/internal/domain"
	"autorenta-settlement/internal/repository"
	"autorenta-settlement/internal/repository/postgres"
)

func TestWalletRepository_ConfirmDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()
		repo := postgres.NewWalletRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, status, COALESCE\\(provider_transaction_id, ''\\)").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "provider_transaction_id"}).
				AddRow("user-1", "pending", ""))
		mock.ExpectQuery("SELECT id FROM wallet_transactions WHERE provider_transaction_id").
			WithArgs("mp-100", "tx-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("UPDATE wallet_transactions").
			WithArgs(domain.TransactionStatusConfirmed, "mp-100", int64(5000), "tx-1", domain.TransactionStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE users SET wallet_balance_cents").
			WithArgs(int64(5000), "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = repo.ConfirmDeposit(ctx, "tx-1", "mp-100", 5000)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyConfirmedSamePayment", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()
		repo := postgres.NewWalletRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, status, COALESCE\\(provider_transaction_id, ''\\)").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "provider_transaction_id"}).
				AddRow("user-1", "confirmed", "mp-100"))
		mock.ExpectRollback()

		err = repo.ConfirmDeposit(ctx, "tx-1", "mp-100", 5000)
		assert.ErrorIs(t, err, repository.ErrAlreadyConfirmed)
	})

	t.Run("ConfirmedWithDifferentPayment", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()
		repo := postgres.NewWalletRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, status, COALESCE\\(provider_transaction_id, ''\\)").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "provider_transaction_id"}).
				AddRow("user-1", "confirmed", "mp-999"))
		mock.ExpectRollback()

		err = repo.ConfirmDeposit(ctx, "tx-1", "mp-100", 5000)
		assert.ErrorIs(t, err, repository.ErrProviderIDConflict)
	})

	t.Run("PaymentBoundToAnotherTransaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()
		repo := postgres.NewWalletRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, status, COALESCE\\(provider_transaction_id, ''\\)").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "provider_transaction_id"}).
				AddRow("user-1", "pending", ""))
		mock.ExpectQuery("SELECT id FROM wallet_transactions WHERE provider_transaction_id").
			WithArgs("mp-100", "tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tx-other"))
		mock.ExpectRollback()

		err = repo.ConfirmDeposit(ctx, "tx-1", "mp-100", 5000)
		assert.ErrorIs(t, err, repository.ErrProviderIDConflict)
	})

	t.Run("ConcurrentBindSurfacesAsConflict", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()
		repo := postgres.NewWalletRepository(db)

		// A racing confirmation can bind the provider id between the
		// duplicate check and the update; the unique index rejects the
		// late writer with a 23505.
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, status, COALESCE\\(provider_transaction_id, ''\\)").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "provider_transaction_id"}).
				AddRow("user-1", "pending", ""))
		mock.ExpectQuery("SELECT id FROM wallet_transactions WHERE provider_transaction_id").
			WithArgs("mp-100", "tx-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("UPDATE wallet_transactions").
			WithArgs(domain.TransactionStatusConfirmed, "mp-100", int64(5000), "tx-1", domain.TransactionStatusPending).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "wallet_transactions_provider_transaction_id_key"})
		mock.ExpectRollback()

		err = repo.ConfirmDeposit(ctx, "tx-1", "mp-100", 5000)
		assert.ErrorIs(t, err, repository.ErrProviderIDConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()
		repo := postgres.NewWalletRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, status, COALESCE\\(provider_transaction_id, ''\\)").
			WithArgs("tx-missing").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err = repo.ConfirmDeposit(ctx, "tx-missing", "mp-100", 5000)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestWalletRepository_CreateLedgerEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()
	repo := postgres.NewWalletRepository(db)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO wallet_ledger").
		WithArgs("le-1", "owner-1", int64(9500), "sp-1", "mercadopago", []byte(`{"payment_id":"pay-1"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	entry := &domain.LedgerEntry{
		ID:          "le-1",
		UserID:      "owner-1",
		AmountCents: 9500,
		Ref:         "sp-1",
		Provider:    "mercadopago",
		Metadata:    map[string]any{"payment_id": "pay-1"},
	}
	err = repo.CreateLedgerEntry(ctx, entry)
	assert.NoError(t, err)
	assert.Equal(t, now, entry.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()
		repo := postgres.NewWalletRepository(db)

		mock.ExpectExec("UPDATE wallet_transactions").
			WithArgs(domain.TransactionStatusFailed, "payment rejected", "tx-1", domain.TransactionStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.MarkFailed(ctx, "tx-1", "payment rejected")
		assert.NoError(t, err)
	})

	t.Run("ConfirmedTransactionIsNotFailed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()
		repo := postgres.NewWalletRepository(db)

		mock.ExpectExec("UPDATE wallet_transactions").
			WithArgs(domain.TransactionStatusFailed, "payment rejected", "tx-1", domain.TransactionStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM wallet_transactions").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("confirmed"))

		err = repo.MarkFailed(ctx, "tx-1", "payment rejected")
		assert.ErrorContains(t, err, "cannot fail")
	})
}

func TestWalletRepository_ListPendingDeposits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()
	repo := postgres.NewWalletRepository(db)
	ctx := context.Background()

	cutoff := time.Now().Add(-2 * time.Minute)
	created := time.Now().Add(-10 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM wallet_transactions").
		WithArgs(domain.TransactionTypeDeposit, domain.TransactionStatusPending, cutoff, 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "type", "status", "amount_cents", "currency", "provider",
			"provider_transaction_id", "reference_type", "reference_id", "description",
			"metadata", "created_at", "updated_at",
		}).AddRow("tx-1", "user-1", "deposit", "pending", int64(5000), "ARS", "mercadopago",
			"", "", "", "", []byte(`{}`), created, created))

	txs, err := repo.ListPendingDeposits(ctx, cutoff, 50)
	assert.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, "tx-1", txs[0].ID)
	assert.Equal(t, domain.TransactionStatusPending, txs[0].Status)
}

func TestWalletRepository_GetBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()
	repo := postgres.NewWalletRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount_cents\\), 0\\) FROM wallet_transactions").
		WithArgs("user-1", domain.TransactionStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(12500))

	balance, err := repo.GetBalance(ctx, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(12500), balance)
}
