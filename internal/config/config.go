package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	AppEnv            string
	IsProduction      bool
	ProdOrigins       string
	HTTPAddr          string
	DBDSN             string // empty selects the in-memory stores
	DBMaxConns        int32
	JWTSecret         string
	JWTAccessTokenTTL time.Duration

	HoldTTL        time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int
	CompatRules    string

	StoragePath       string
	InventorySeedFile string

	LogLevel     string
	ServiceName  string
	OTLPEndpoint string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env file: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	var err error
	cfg := &Config{}

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.IsProduction = cfg.AppEnv == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN is optional; without it inventory and bookings live in memory.
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.IsProduction && cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required when APP_ENV=%s", PROD_STRING)
	}

	maxConns, err := getEnvAsInt("DB_MAX_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	if maxConns < 0 {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: must not be negative, got %d", maxConns)
	}
	cfg.DBMaxConns = int32(maxConns)

	// JWT secret is required for verifying caller tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}

	// How long an unconfirmed hold keeps its slot.
	if cfg.HoldTTL, err = getEnvAsDuration("HOLD_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	// How often the expiration sweep runs.
	if cfg.SweepInterval, err = getEnvAsDuration("SWEEP_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.SweepBatchSize, err = getEnvAsInt("SWEEP_BATCH_SIZE", 100); err != nil {
		return nil, fmt.Errorf("invalid SWEEP_BATCH_SIZE: %w", err)
	}
	if cfg.SweepBatchSize < 1 {
		return nil, fmt.Errorf("invalid SWEEP_BATCH_SIZE: must be at least 1, got %d", cfg.SweepBatchSize)
	}

	cfg.CompatRules = getEnv("COMPAT_RULES", "")

	cfg.StoragePath = getEnv("STORAGE_PATH", "./data")
	cfg.InventorySeedFile = getEnv("INVENTORY_SEED_FILE", "")

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.ServiceName = getEnv("OTEL_SERVICE_NAME", "parking-booking-backend")
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses a time.Duration such as "90s" or "5m".
// Zero and negative durations are rejected.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	d, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, d)
	}
	return d, nil
}
