package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	httpapi "autorenta-settlement/internal/api/http"
	"autorenta-settlement/internal/config"
	"autorenta-settlement/internal/fgo"
	"autorenta-settlement/internal/logger"
	"autorenta-settlement/internal/provider/mercadopago"
	"autorenta-settlement/internal/redis"
	"autorenta-settlement/internal/repository/postgres"
	"autorenta-settlement/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
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
	logger.Info("Starting AutoRenta Settlement Service...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
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

	// Initialize Redis (webhook dedupe cache)
	cache, err := redis.New(&cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer cache.Close()

	// Initialize Payment Provider
	provider := mercadopago.NewClient(
		cfg.MercadoPago.BaseURL,
		cfg.MercadoPago.AccessToken,
		time.Duration(cfg.MercadoPago.TimeoutSecs)*time.Second,
	)

	// Initialize Email Service
	emailSvc := service.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.User,
		cfg.SMTP.Password,
		cfg.SMTP.From,
	)

	// Initialize Services
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
	disputeSvc := service.NewDisputeService(
		store.BookingRepository,
		depositSvc,
		noteSvc,
		emailSvc,
		store.UserDirectory,
	)
	splitSvc := service.NewSplitService(
		store.SplitRepository,
		store.PaymentIntentRepository,
		store.WalletRepository,
		policySvc,
		noteSvc,
		cfg.Settlement.PlatformFeePercent,
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

	// Initialize HTTP handlers
	webhookHandler := httpapi.NewWebhookHandler(reconSvc, cache, cfg.MercadoPago.WebhookSecret)
	splitHandler := httpapi.NewSplitHandler(splitSvc)
	bookingHandler := httpapi.NewBookingHandler(depositSvc, disputeSvc)

	router := httpapi.NewRouter(webhookHandler, splitHandler, bookingHandler)

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
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
