package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	S3       S3Config
	Cache    CacheConfig
	Ledger   LedgerConfig
	Bulk     BulkConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int    // seconds
	AutoMigrate     bool
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string
}

// S3Config holds AWS S3 configuration for rule import files.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "rules/")
}

// CacheConfig holds the rule cache configuration.
type CacheConfig struct {
	Enabled    bool
	TTLSeconds int
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LedgerConfig holds usage ledger configuration.
type LedgerConfig struct {
	Backend      string // "postgres" or "memory"
	CooldownMode string // "fixed_window" or "per_use"
	MaxRetries   int
	RetryDelayMs int
}

// RetryDelay returns the pause between optimistic write attempts.
func (c LedgerConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// BulkConfig holds bulk operation configuration.
type BulkConfig struct {
	Concurrency int
}

// Load loads configuration from environment variables.
// Variables in the file named by ENV_FILE (default ".env") fill in anything not
// already set in the environment; a missing file is ignored.
func Load() (*Config, error) {
	if err := loadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "discounts"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "rules/"),
		},
		Cache: CacheConfig{
			Enabled:    getEnvAsBool("RULE_CACHE_ENABLED", true),
			TTLSeconds: getEnvAsInt("RULE_CACHE_TTL_SECONDS", 30),
		},
		Ledger: LedgerConfig{
			Backend:      getEnv("LEDGER_BACKEND", LedgerBackendPostgres),
			CooldownMode: getEnv("LEDGER_COOLDOWN_MODE", "fixed_window"),
			MaxRetries:   getEnvAsInt("LEDGER_MAX_RETRIES", 10),
			RetryDelayMs: getEnvAsInt("LEDGER_RETRY_DELAY_MS", 5),
		},
		Bulk: BulkConfig{
			Concurrency: getEnvAsInt("BULK_CONCURRENCY", 8),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Cache.Enabled && c.Cache.TTLSeconds < 1 {
		return fmt.Errorf("rule cache TTL must be at least 1 second")
	}

	if c.Ledger.Backend != LedgerBackendPostgres && c.Ledger.Backend != LedgerBackendMemory {
		return fmt.Errorf("invalid ledger backend: %s (must be postgres or memory)", c.Ledger.Backend)
	}

	if c.Ledger.CooldownMode != "fixed_window" && c.Ledger.CooldownMode != "per_use" {
		return fmt.Errorf("invalid ledger cooldown mode: %s (must be fixed_window or per_use)", c.Ledger.CooldownMode)
	}

	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("ledger max retries must be at least 1")
	}

	if c.Ledger.RetryDelayMs < 0 {
		return fmt.Errorf("ledger retry delay cannot be negative")
	}

	if c.Bulk.Concurrency < 1 {
		return fmt.Errorf("bulk concurrency must be at least 1")
	}

	return nil
}

// ValidateServer checks the settings only the HTTP server needs on top of Validate.
func (c *Config) ValidateServer() error {
	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadEnvFile loads path into the environment without overriding set variables.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
