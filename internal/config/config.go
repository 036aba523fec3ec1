package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

// Config holds all application configuration.
type Config struct {
	// Application settings
	AppEnv        string
	AppPort       int
	FrontendURL   string
	RunMigrations bool
	MigrationsDir string

	// Database settings
	DatabaseURL                string
	DatabaseMaxConnections     int
	DatabaseMaxIdleConnections int
	DatabaseConnectionLifetime time.Duration

	// CORS settings
	CORSAllowedOrigins   string
	CORSAllowCredentials bool

	// Logging
	LogLevel  string
	LogFormat string

	// NATS settings
	NATSURL string

	// Scheduling flags the auto-import scheduler passes to StartTask for
	// every batch it starts. StartTask does not read these: it merges
	// caller-supplied flags over planmodel.DefaultSchedulingFlags.
	DefaultFlags planmodel.SchedulingFlags

	// Auto-import scheduler (H7)
	AutoImportEnabled bool
	AutoImportCron    string

	// TaskTimeout bounds one SchedulingTask run; exceeding it is modeled as
	// an internal cancellation with errorMessage "TIMEOUT" (spec.md §5).
	TaskTimeout time.Duration
}

// Load reads configuration from environment variables, loading a .env file
// first if one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		AppPort:       getEnvAsInt("APP_PORT", 8080),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
		RunMigrations: getEnvAsBool("RUN_MIGRATIONS", false),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),

		DatabaseURL:                getEnv("DATABASE_URL", ""),
		DatabaseMaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 25),
		DatabaseMaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		DatabaseConnectionLifetime: getEnvAsDuration("DATABASE_CONNECTION_LIFETIME", 5*time.Minute),

		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		CORSAllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", true),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),

		DefaultFlags: planmodel.SchedulingFlags{
			MergeEnabled:      getEnvAsBool("SCHEDULING_MERGE_ENABLED", true),
			SplitEnabled:      getEnvAsBool("SCHEDULING_SPLIT_ENABLED", true),
			CorrectionEnabled: getEnvAsBool("SCHEDULING_CORRECTION_ENABLED", true),
			ParallelEnabled:   getEnvAsBool("SCHEDULING_PARALLEL_ENABLED", true),
			MinGapMinutes:     getEnvAsInt("SCHEDULING_MIN_GAP_MINUTES", 15),
			HorizonDays:       getEnvAsInt("SCHEDULING_HORIZON_DAYS", 60),
		},

		AutoImportEnabled: getEnvAsBool("AUTO_IMPORT_ENABLED", true),
		AutoImportCron:    getEnv("AUTO_IMPORT_CRON", "*/10 * * * *"),

		TaskTimeout: getEnvAsDuration("SCHEDULING_TASK_TIMEOUT", 600*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	return nil
}

// Helper functions for reading environment variables.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
