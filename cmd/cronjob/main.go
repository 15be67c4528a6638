package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"autorenta-settlement/internal/config"
	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/jobs"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/provider/mercadopago"
	"autorenta-settlement/internal/repository/postgres"
	"autorenta-settlement/internal/scheduler"
	"autorenta-settlement/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'poll-pending-deposits', 'all')")
	flag.Parse()

	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting AutoRenta Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Payment Provider
	provider := mercadopago.NewClient(
		cfg.MercadoPago.BaseURL,
		cfg.MercadoPago.AccessToken,
		time.Duration(cfg.MercadoPago.TimeoutSecs)*time.Second,
	)

	// Initialize Services
	emailSvc := service.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.User,
		cfg.SMTP.Password,
		cfg.SMTP.From,
	)

	policySvc := service.NewPolicyService(store.FundRepository, fundParams(cfg))
	noteSvc := service.NewNotificationService(store.NotificationRepository)
	reputationSvc := service.NewReputationService(store.UserDirectory)
	depositSvc := service.NewDepositService(
		store.BookingRepository,
		store.WalletRepository,
		provider,
		policySvc,
		noteSvc,
		emailSvc,
		reputationSvc,
		store.UserDirectory,
	)
	reconSvc := service.NewReconciliationService(
		store.WalletRepository,
		provider,
		policySvc,
		noteSvc,
		emailSvc,
		store.UserDirectory,
		time.Duration(cfg.Settlement.PollGraceMinutes)*time.Minute,
	)

	jobServices := &jobs.Services{
		Reconciliation: reconSvc,
		Deposit:        depositSvc,
		Notification:   noteSvc,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store.BookingRepository, store.WalletRepository, jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "poll-pending-deposits":
		jobRunner.PollPendingDeposits()
	case "expire-preauthorizations":
		jobRunner.ExpirePreauthorizations()
	case "check-wallet-integrity":
		jobRunner.CheckWalletIntegrity()
	case "all":
		jobRunner.RunAllJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - poll-pending-deposits\n")
		fmt.Printf("  - expire-preauthorizations\n")
		fmt.Printf("  - check-wallet-integrity\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}

// fundParams merges the configured policy overrides onto the defaults.
func fundParams(cfg *config.Config) fgo.Params {
	p := fgo.DefaultParams()
	p.RcHardFloor = cfg.Fgo.RcHardFloor
	p.RcHealthy = cfg.Fgo.RcHealthy
	p.EventCapUsd = cfg.Fgo.EventCapUsd
	p.CriticalCapUsd = cfg.Fgo.CriticalCapUsd
	p.CoPayPercentage = cfg.Fgo.CoPayPercentage
	p.PerUserLimit = cfg.Fgo.PerUserLimit
	p.MonthlyPayoutCap = cfg.Fgo.MonthlyPayoutCap
	p.CommissionRate = cfg.Fgo.CommissionRate
	return p
}
