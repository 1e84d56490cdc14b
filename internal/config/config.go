package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Service Ports
	HTTPPort int `env:"HTTP_PORT" default:"8080"`

	// Database (empty selects the in-memory ledger)
	DatabaseURL string `env:"DATABASE_URL"`

	// Authentication
	JWTSecret string `env:"JWT_SECRET" required:"true"`

	// Redis Cache
	RedisURL           string        `env:"REDIS_URL"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	CacheTTL           int           `env:"CACHE_TTL" default:"3600"`
	LoanListCacheTTL   time.Duration `env:"LOAN_LIST_CACHE_TTL" default:"2m"`
	StatisticsCacheTTL time.Duration `env:"STATISTICS_CACHE_TTL" default:"5m"`

	// Messaging
	NATSURL       string `env:"NATS_URL"`
	NotifyWorkers int    `env:"NOTIFY_WORKERS" default:"4"`

	// Monitoring
	PrometheusEnabled bool `env:"PROMETHEUS_ENABLED" default:"false"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`

	// Lending rules
	LoanPeriodDays   int             `env:"LOAN_PERIOD_DAYS" default:"14"`
	FinePerDay       decimal.Decimal `env:"FINE_PER_DAY" default:"5"`
	HoldDays         int             `env:"HOLD_DAYS" default:"3"`
	ReminderLead     time.Duration   `env:"REMINDER_LEAD" default:"48h"`
	MaxExtensionDays int             `env:"MAX_EXTENSION_DAYS" default:"14"`

	// Sweepers
	OverdueSweepInterval     time.Duration `env:"OVERDUE_SWEEP_INTERVAL" default:"24h"`
	ReservationSweepInterval time.Duration `env:"RESERVATION_SWEEP_INTERVAL" default:"30m"`
	ReminderPollInterval     time.Duration `env:"REMINDER_POLL_INTERVAL" default:"1m"`

	// Rate limiting
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" default:"20"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		// system env vars still apply
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}
	return loadFromEnv()
}

func loadFromEnv() (*Config, error) {
	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 8080); err != nil {
		return nil, err
	}

	// Database
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", ""); err != nil {
		return nil, err
	}

	// Authentication
	if err := loadEnvStringRequired(&config.JWTSecret, "JWT_SECRET"); err != nil {
		return nil, err
	}

	// Redis
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.CacheTTL, "CACHE_TTL", 3600); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.LoanListCacheTTL, "LOAN_LIST_CACHE_TTL", 2*time.Minute); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.StatisticsCacheTTL, "STATISTICS_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	// Messaging
	if err := loadEnvString(&config.NATSURL, "NATS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.NotifyWorkers, "NOTIFY_WORKERS", 4); err != nil {
		return nil, err
	}

	// Monitoring
	if err := loadEnvBool(&config.PrometheusEnabled, "PROMETHEUS_ENABLED", false); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "json"); err != nil {
		return nil, err
	}

	// Lending rules
	if err := loadEnvInt(&config.LoanPeriodDays, "LOAN_PERIOD_DAYS", 14); err != nil {
		return nil, err
	}
	if err := loadEnvDecimal(&config.FinePerDay, "FINE_PER_DAY", decimal.NewFromInt(5)); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.HoldDays, "HOLD_DAYS", 3); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ReminderLead, "REMINDER_LEAD", 48*time.Hour); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MaxExtensionDays, "MAX_EXTENSION_DAYS", 14); err != nil {
		return nil, err
	}

	// Sweepers
	if err := loadEnvDuration(&config.OverdueSweepInterval, "OVERDUE_SWEEP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ReservationSweepInterval, "RESERVATION_SWEEP_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ReminderPollInterval, "REMINDER_POLL_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	// Rate limiting
	if err := loadEnvFloat(&config.RateLimitRPS, "RATE_LIMIT_RPS", 10); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RateLimitBurst, "RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringRequired(target *string, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return fmt.Errorf("required environment variable %s is not set", key)
	}
	*target = value
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDecimal(target *decimal.Decimal, key string, defaultValue decimal.Decimal) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("invalid decimal value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errors = append(errors, "HTTP_PORT must be between 1 and 65535")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET should be at least 32 characters long")
	}

	if c.LoanPeriodDays < 1 {
		errors = append(errors, "LOAN_PERIOD_DAYS must be positive")
	}
	if c.HoldDays < 1 {
		errors = append(errors, "HOLD_DAYS must be positive")
	}
	if c.FinePerDay.IsNegative() {
		errors = append(errors, "FINE_PER_DAY must not be negative")
	}
	if c.MaxExtensionDays < 1 {
		errors = append(errors, "MAX_EXTENSION_DAYS must be positive")
	}
	if c.ReminderLead < 0 {
		errors = append(errors, "REMINDER_LEAD must not be negative")
	}
	if c.OverdueSweepInterval <= 0 || c.ReservationSweepInterval <= 0 || c.ReminderPollInterval <= 0 {
		errors = append(errors, "sweep intervals must be positive")
	}
	if c.NotifyWorkers < 1 {
		errors = append(errors, "NOTIFY_WORKERS must be at least 1")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errors = append(errors, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// LoanPeriod is the time between borrow date and due date.
func (c *Config) LoanPeriod() time.Duration {
	return time.Duration(c.LoanPeriodDays) * 24 * time.Hour
}

// HoldPeriod is how long a READY reservation keeps its copy.
func (c *Config) HoldPeriod() time.Duration {
	return time.Duration(c.HoldDays) * 24 * time.Hour
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
