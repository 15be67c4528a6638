package postgres

import (
	"database/sql"

	"autorenta-settlement/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.BookingRepository
	repository.WalletRepository
	repository.SplitRepository
	repository.PaymentIntentRepository
	repository.FundRepository
	repository.NotificationRepository
	repository.UserDirectory
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                      db,
		BookingRepository:       NewBookingRepository(db),
		WalletRepository:        NewWalletRepository(db),
		SplitRepository:         NewSplitRepository(db),
		PaymentIntentRepository: NewPaymentIntentRepository(db),
		FundRepository:          NewFundRepository(db),
		NotificationRepository:  NewNotificationRepository(db),
		UserDirectory:           NewUserDirectory(db),
	}
}
