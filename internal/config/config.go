// Package config defines the top-level configuration for the trade ledger
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/chainops/tronledger/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRONLEDGER_* environment
// variables.
type Config struct {
	Tron     TronConfig     `toml:"tron"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Tail     TailConfig     `toml:"tail"`
	LogLevel string         `toml:"log_level"`
}

// TronConfig holds the event-source endpoint and the contract to ingest.
type TronConfig struct {
	EventsBase     string   `toml:"events_base"`
	Contract       string   `toml:"contract"`
	ApiKey         string   `toml:"api_key"`
	PageSize       int      `toml:"page_size"`
	RequestTimeout duration `toml:"request_timeout"`
}

// LedgerConfig holds scaling and filtering parameters for event
// materialization.
type LedgerConfig struct {
	// PriceScale divides raw integer prices and PnL figures.
	PriceScale int64 `toml:"price_scale"`
	// DecimalsDefault applies to tokens without an explicit override.
	DecimalsDefault int `toml:"decimals_default"`
	// Decimals maps token addresses, in either encoding, to their decimal
	// count.
	Decimals map[string]int `toml:"decimals"`
	// AddrHex stores token keys as 41-prefixed hex when true, verbatim
	// source strings when false.
	AddrHex bool `toml:"addr_hex"`
	// TraderFilter restricts ingestion to one trader when non-empty.
	TraderFilter string `toml:"trader_filter"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the optional cross-restart dedup cache parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	DedupTTL   duration `toml:"dedup_ttl"`
}

// S3Config holds the optional raw-page archive parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials and alert thresholds.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// PnLDivergenceTolerance is the largest absolute reported-vs-recomputed
	// PnL gap that passes without an alert, as a decimal string.
	PnLDivergenceTolerance string `toml:"pnl_divergence_tolerance"`
}

// TailConfig holds parameters for the continuous polling mode.
type TailConfig struct {
	Interval     duration `toml:"interval"`
	SeenCapacity int      `toml:"seen_capacity"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Tron: TronConfig{
			EventsBase:     "https://api.trongrid.io",
			PageSize:       200,
			RequestTimeout: duration{20 * time.Second},
		},
		Ledger: LedgerConfig{
			PriceScale:      1_000_000,
			DecimalsDefault: 6,
			Decimals:        map[string]int{},
			AddrHex:         true,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tronledger",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			DedupTTL:   duration{24 * time.Hour},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tronledger-data",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events:                 []string{"pnl_divergence", "fatal"},
			PnLDivergenceTolerance: "0",
		},
		Tail: TailConfig{
			Interval:     duration{5 * time.Second},
			SeenCapacity: 8192,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Tron
	if strings.TrimSpace(c.Tron.EventsBase) == "" {
		errs = append(errs, "tron: events_base must not be empty")
	}
	if strings.TrimSpace(c.Tron.Contract) == "" {
		errs = append(errs, "tron: contract must not be empty")
	}
	if c.Tron.PageSize < 1 || c.Tron.PageSize > 200 {
		errs = append(errs, fmt.Sprintf("tron: page_size must be 1-200, got %d", c.Tron.PageSize))
	}
	if c.Tron.RequestTimeout.Duration <= 0 {
		errs = append(errs, "tron: request_timeout must be positive")
	}

	// Ledger
	if c.Ledger.PriceScale <= 0 {
		errs = append(errs, "ledger: price_scale must be > 0")
	}
	if c.Ledger.DecimalsDefault < 0 || c.Ledger.DecimalsDefault > 30 {
		errs = append(errs, fmt.Sprintf("ledger: decimals_default must be 0-30, got %d", c.Ledger.DecimalsDefault))
	}
	for token, dec := range c.Ledger.Decimals {
		if dec < 0 || dec > 30 {
			errs = append(errs, fmt.Sprintf("ledger: decimals for %s must be 0-30, got %d", token, dec))
		}
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Tail
	if c.Tail.Interval.Duration <= 0 {
		errs = append(errs, "tail: interval must be positive")
	}
	if c.Tail.SeenCapacity < 1 {
		errs = append(errs, "tail: seen_capacity must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", domain.ErrMissingConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}
