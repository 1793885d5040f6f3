package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Invoicing InvoicingConfig
	Packing   PackingConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// InvoicingConfig holds connection settings for the external
// invoicing/accounting service
type InvoicingConfig struct {
	URL          string
	Database     string
	Username     string
	Password     string
	SyncInterval int // in minutes
}

// PackingConfig holds packing-lock tuning
type PackingConfig struct {
	DefaultTTLMinutes int    // lease length when the client does not ask for one
	SweepSchedule     string // cron spec for the stale-lock sweep
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3220"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "fulfillgo"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Invoicing: InvoicingConfig{
			URL:          os.Getenv("INVOICING_URL"),
			Database:     os.Getenv("INVOICING_DB"),
			Username:     os.Getenv("INVOICING_USERNAME"),
			Password:     os.Getenv("INVOICING_PASSWORD"),
			SyncInterval: getEnvInt("INVOICING_SYNC_INTERVAL", 15),
		},
		Packing: PackingConfig{
			DefaultTTLMinutes: getEnvInt("PACKING_LOCK_TTL_MINUTES", 15),
			SweepSchedule:     getEnv("PACKING_SWEEP_SCHEDULE", "@every 1m"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
