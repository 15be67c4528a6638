package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"autorenta-settlement/internal/jobs"
	"autorenta-settlement/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	// Reconcile pending deposits against the payment provider
	_, err := s.cron.AddFunc(cfg.PollPendingDeposits, s.jobs.PollPendingDeposits)
	if err != nil {
		logger.Error("Failed to register PollPendingDeposits job", "error", err)
	}

	// Release card holds about to expire
	_, err = s.cron.AddFunc(cfg.ExpirePreauthorizations, s.jobs.ExpirePreauthorizations)
	if err != nil {
		logger.Error("Failed to register ExpirePreauthorizations job", "error", err)
	}

	// Audit recorded wallet balances against the transaction ledger
	_, err = s.cron.AddFunc(cfg.CheckWalletIntegrity, s.jobs.CheckWalletIntegrity)
	if err != nil {
		logger.Error("Failed to register CheckWalletIntegrity job", "error", err)
	}

	logger.Info("All cron jobs registered successfully")
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler is running
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
