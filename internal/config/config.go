package config

import (
	"os"
	"strconv"
	"time"

	"reserva/internal/cache"
	"reserva/internal/database"
	"reserva/internal/external"
	"reserva/internal/messaging"
)

// Config holds the full application configuration, loaded from the
// environment with sensible defaults.
type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	AuthSecret string
	AuthIssuer string

	// Booking policy
	HoldWindow        time.Duration
	MinimumCommission int64

	// Ingestion retry policy
	MaxEventAttempts int
	RetryBaseDelay   time.Duration

	// Worker cadence
	SweepInterval  time.Duration
	ReplayInterval time.Duration

	Database  database.Config
	Redis     cache.Config
	NATS      messaging.Config
	Processor external.ProcessorConfig
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8081"),
		GinMode:   getEnv("GIN_MODE", "debug"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AuthSecret: getEnv("AUTH_SECRET", "dev-secret-change-me"),
		AuthIssuer: getEnv("AUTH_ISSUER", "reserva"),

		HoldWindow:        time.Duration(getEnvInt("BOOKING_HOLD_WINDOW_MIN", 30)) * time.Minute,
		MinimumCommission: int64(getEnvInt("MINIMUM_COMMISSION", 0)),

		MaxEventAttempts: getEnvInt("EVENT_MAX_ATTEMPTS", 5),
		RetryBaseDelay:   time.Duration(getEnvInt("EVENT_RETRY_BASE_SEC", 30)) * time.Second,

		SweepInterval:  time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 30)) * time.Second,
		ReplayInterval: time.Duration(getEnvInt("REPLAY_INTERVAL_SEC", 15)) * time.Second,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "reserva"),
			Password:           getEnv("DB_PASSWORD", "reserva123"),
			DBName:             getEnv("DB_NAME", "reserva"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		Redis: cache.Config{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			TTL:      time.Duration(getEnvInt("REDIS_TENANT_TTL_SEC", 60)) * time.Second,
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "reserva"),
			ClientID:  getEnv("NATS_CLIENT_ID", "reserva-api"),
		},

		Processor: external.ProcessorConfig{
			BaseURL:      getEnv("PROCESSOR_URL", "https://processor.example.com"),
			MerchantSlug: getEnv("PROCESSOR_MERCHANT_SLUG", ""),
			Secret:       getEnv("PROCESSOR_SECRET", ""),
			Timeout:      time.Duration(getEnvInt("PROCESSOR_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
