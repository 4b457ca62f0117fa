// Package config provides configuration management for the ledger server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration. Values come from the
// environment, with a .env file loaded first if one exists.
type Config struct {
	Port           int
	DBPath         string // SQLite database file, always absolute
	CurrencySymbol string
	LogLevel       string
	RecomputeSpec  string // Cron expression for background ledger refresh
	LockTimeout    time.Duration
	AllowedOrigins []string
	DevMode        bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dbPath := getEnv("LEDGER_DB_PATH", "data/ledger.db")
	absDBPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absDBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		Port:           getEnvAsInt("LEDGER_PORT", 8080),
		DBPath:         absDBPath,
		CurrencySymbol: getEnv("LEDGER_CURRENCY_SYMBOL", "$"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RecomputeSpec:  getEnv("LEDGER_RECOMPUTE_SPEC", "0 * * * *"),
		LockTimeout:    time.Duration(getEnvAsInt("LEDGER_LOCK_TIMEOUT_SECONDS", 3)) * time.Second,
		AllowedOrigins: splitList(getEnv("LEDGER_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		DevMode:        getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.CurrencySymbol == "" {
		return fmt.Errorf("currency symbol must not be empty")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvAsBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
