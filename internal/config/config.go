package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	MercadoPago MercadoPagoConfig `yaml:"mercadopago"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	Fgo         FgoConfig         `yaml:"fgo"`
	Settlement  SettlementConfig  `yaml:"settlement"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RedisConfig contains the connection for the webhook dedupe cache
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MercadoPagoConfig contains payment provider settings
type MercadoPagoConfig struct {
	BaseURL       string `yaml:"base_url"`
	AccessToken   string `yaml:"access_token"`
	WebhookSecret string `yaml:"webhook_secret"`
	TimeoutSecs   int    `yaml:"timeout_seconds"`
}

// SMTPConfig contains email service settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// FgoConfig contains guarantee fund policy parameters
type FgoConfig struct {
	RcHardFloor      float64 `yaml:"rc_hard_floor"`
	RcHealthy        float64 `yaml:"rc_healthy"`
	EventCapUsd      float64 `yaml:"event_cap_usd"`
	CriticalCapUsd   float64 `yaml:"critical_cap_usd"`
	CoPayPercentage  float64 `yaml:"co_pay_percentage"`
	PerUserLimit     int     `yaml:"per_user_limit"`
	MonthlyPayoutCap float64 `yaml:"monthly_payout_cap"`
	CommissionRate   float64 `yaml:"commission_rate"`
}

// SettlementConfig contains split and deposit settings
type SettlementConfig struct {
	PlatformFeePercent  float64 `yaml:"platform_fee_percent"`
	PollGraceMinutes    int     `yaml:"poll_grace_minutes"`
	DisputeWindowHours  int     `yaml:"dispute_window_hours"`
	PreauthExpiryMargin int     `yaml:"preauth_expiry_margin_hours"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	PollPendingDeposits    string `yaml:"poll_pending_deposits"`
	ExpirePreauthorizations string `yaml:"expire_preauthorizations"`
	CheckWalletIntegrity   string `yaml:"check_wallet_integrity"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// MercadoPago
	if val := os.Getenv("MP_BASE_URL"); val != "" {
		c.MercadoPago.BaseURL = val
	}
	if val := os.Getenv("MP_ACCESS_TOKEN"); val != "" {
		c.MercadoPago.AccessToken = val
	}
	if val := os.Getenv("MP_WEBHOOK_SECRET"); val != "" {
		c.MercadoPago.WebhookSecret = val
	}

	// SMTP
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.SMTP.Host = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.SMTP.Port)
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		c.SMTP.User = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.SMTP.Password = val
	}
	if val := os.Getenv("SMTP_FROM"); val != "" {
		c.SMTP.From = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// MercadoPago validation
	if c.MercadoPago.AccessToken == "" {
		return fmt.Errorf("mercadopago access token is required")
	}
	if c.MercadoPago.WebhookSecret == "" {
		return fmt.Errorf("mercadopago webhook secret is required")
	}
	if c.MercadoPago.BaseURL == "" {
		c.MercadoPago.BaseURL = "https://api.mercadopago.com"
	}
	if c.MercadoPago.TimeoutSecs <= 0 {
		c.MercadoPago.TimeoutSecs = 10
	}

	// SMTP validation
	if c.SMTP.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port)
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	// Fund policy defaults
	if c.Fgo.RcHardFloor == 0 {
		c.Fgo.RcHardFloor = 0.8
	}
	if c.Fgo.RcHealthy == 0 {
		c.Fgo.RcHealthy = 1.0
	}
	if c.Fgo.EventCapUsd == 0 {
		c.Fgo.EventCapUsd = 800
	}
	if c.Fgo.CriticalCapUsd == 0 {
		c.Fgo.CriticalCapUsd = 100
	}
	if c.Fgo.CoPayPercentage == 0 {
		c.Fgo.CoPayPercentage = 20
	}
	if c.Fgo.PerUserLimit == 0 {
		c.Fgo.PerUserLimit = 2
	}
	if c.Fgo.MonthlyPayoutCap == 0 {
		c.Fgo.MonthlyPayoutCap = 0.08
	}
	if c.Fgo.CommissionRate == 0 {
		c.Fgo.CommissionRate = 0.04
	}

	// Settlement defaults
	if c.Settlement.PlatformFeePercent == 0 {
		c.Settlement.PlatformFeePercent = 5
	}
	if c.Settlement.PollGraceMinutes == 0 {
		c.Settlement.PollGraceMinutes = 2
	}
	if c.Settlement.DisputeWindowHours == 0 {
		c.Settlement.DisputeWindowHours = 72
	}
	if c.Settlement.PreauthExpiryMargin == 0 {
		c.Settlement.PreauthExpiryMargin = 24
	}

	// Scheduler defaults
	if c.Scheduler.PollPendingDeposits == "" {
		c.Scheduler.PollPendingDeposits = "0 */5 * * * *" // Every 5 minutes
	}
	if c.Scheduler.ExpirePreauthorizations == "" {
		c.Scheduler.ExpirePreauthorizations = "0 0 * * * *" // Hourly
	}
	if c.Scheduler.CheckWalletIntegrity == "" {
		c.Scheduler.CheckWalletIntegrity = "0 0 4 * * *" // 4 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
