package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultAPIURL is the local-development fallback for the gateway base URL.
// It matches the default listen address of cmd/devgateway.
const DefaultAPIURL = "http://localhost:8080"

// Config holds all configuration for the application
type Config struct {
	// Gateway Configuration
	Gateway GatewayConfig

	// Token persistence Configuration
	Token TokenConfig

	// Permission sync Configuration
	Sync SyncConfig

	// Logging Configuration
	Logging LoggingConfig

	// DevGateway configuration (only read by cmd/devgateway)
	DevGateway DevGatewayConfig
}

// GatewayConfig holds the remote gateway settings
type GatewayConfig struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// TokenConfig selects where the bearer token is persisted
type TokenConfig struct {
	Backend        string `validate:"oneof=keyring file memory"`
	KeyringService string `validate:"required"`
	FilePath       string `validate:"required_if=Backend file"`
}

// SyncConfig holds permission synchronization settings
type SyncConfig struct {
	SettleDelay    time.Duration `validate:"gte=0"`
	ResyncSchedule string        // cron spec, empty = no periodic resync
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string `validate:"oneof=json console"`
}

// DevGatewayConfig holds settings for the local development gateway
type DevGatewayConfig struct {
	Addr           string        `validate:"required"`
	DatabaseURL    string        `validate:"required"`
	JWTSecret      string        `validate:"required,min=16"`
	TokenTTL       time.Duration `validate:"gt=0"`
	AllowedOrigins []string
	Seed           bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	timeout, err := durationEnv("STORECTL_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	settleDelay, err := durationEnv("STORECTL_SYNC_DELAY", time.Second)
	if err != nil {
		return nil, err
	}

	tokenTTL, err := durationEnv("DEVGATEWAY_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Gateway: GatewayConfig{
			BaseURL: strings.TrimRight(envOr("STORECTL_API_URL", DefaultAPIURL), "/"),
			Timeout: timeout,
		},
		Token: TokenConfig{
			Backend:        envOr("STORECTL_TOKEN_BACKEND", "keyring"),
			KeyringService: envOr("STORECTL_KEYRING_SERVICE", "storectl"),
			FilePath:       envOr("STORECTL_TOKEN_FILE", defaultTokenFile()),
		},
		Sync: SyncConfig{
			SettleDelay:    settleDelay,
			ResyncSchedule: os.Getenv("STORECTL_RESYNC_SCHEDULE"),
		},
		// Logging configuration - CLI defaults are quiet and human-readable
		Logging: LoggingConfig{
			Level:  envOr("LOG_LEVEL", "warn"),
			Format: envOr("LOG_FORMAT", "console"),
		},
		DevGateway: DevGatewayConfig{
			Addr:           envOr("DEVGATEWAY_ADDR", ":8080"),
			DatabaseURL:    envOr("DEVGATEWAY_DATABASE_URL", "devgateway.sqlite"),
			JWTSecret:      envOr("DEVGATEWAY_JWT_SECRET", "local-development-secret"),
			TokenTTL:       tokenTTL,
			AllowedOrigins: splitList(envOr("DEVGATEWAY_ALLOWED_ORIGINS", "http://localhost:5173")),
			Seed:           envOr("DEVGATEWAY_SEED", "true") == "true",
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every section against its validation tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultTokenFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "storectl-token.db"
	}
	return filepath.Join(homeDir, ".config", "storectl", "token.db")
}
