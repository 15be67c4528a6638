package jobs

import (
	"autorenta-settlement/internal/config"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/repository"
	"autorenta-settlement/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	bookingRepo repository.BookingRepository
	walletRepo  repository.WalletRepository
	services    *Services
	config      *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Reconciliation service.ReconciliationService
	Deposit        service.DepositService
	Notification   service.NotificationService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(bookingRepo repository.BookingRepository, walletRepo repository.WalletRepository, services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		bookingRepo: bookingRepo,
		walletRepo:  walletRepo,
		services:    services,
		config:      cfg,
	}
}

// Config exposes the runner configuration to the scheduler
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAllJobs runs every scheduled job once (for manual execution)
func (jr *JobRunner) RunAllJobs() {
	jr.PollPendingDeposits()
	jr.ExpirePreauthorizations()
	jr.CheckWalletIntegrity()
}
