package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRONLEDGER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRONLEDGER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Tron ──
	setStr(&cfg.Tron.EventsBase, "TRONLEDGER_TRON_EVENTS_BASE")
	setStr(&cfg.Tron.Contract, "TRONLEDGER_TRON_CONTRACT")
	setStr(&cfg.Tron.ApiKey, "TRONLEDGER_TRON_API_KEY")
	setStr(&cfg.Tron.ApiKey, "TRON_PRO_API_KEY") // conventional key name
	setInt(&cfg.Tron.PageSize, "TRONLEDGER_TRON_PAGE_SIZE")
	setDuration(&cfg.Tron.RequestTimeout, "TRONLEDGER_TRON_REQUEST_TIMEOUT")

	// ── Ledger ──
	setInt64(&cfg.Ledger.PriceScale, "TRONLEDGER_LEDGER_PRICE_SCALE")
	setInt(&cfg.Ledger.DecimalsDefault, "TRONLEDGER_LEDGER_DECIMALS_DEFAULT")
	setBool(&cfg.Ledger.AddrHex, "TRONLEDGER_LEDGER_ADDR_HEX")
	setStr(&cfg.Ledger.TraderFilter, "TRONLEDGER_LEDGER_TRADER_FILTER")

	// ── Database ──
	setStr(&cfg.Database.DSN, "TRONLEDGER_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "TRONLEDGER_DATABASE_HOST")
	setInt(&cfg.Database.Port, "TRONLEDGER_DATABASE_PORT")
	setStr(&cfg.Database.Database, "TRONLEDGER_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "TRONLEDGER_DATABASE_USER")
	setStr(&cfg.Database.Password, "TRONLEDGER_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "TRONLEDGER_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "TRONLEDGER_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "TRONLEDGER_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "TRONLEDGER_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRONLEDGER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRONLEDGER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRONLEDGER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRONLEDGER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRONLEDGER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRONLEDGER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRONLEDGER_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.DedupTTL, "TRONLEDGER_REDIS_DEDUP_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRONLEDGER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRONLEDGER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRONLEDGER_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRONLEDGER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRONLEDGER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRONLEDGER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRONLEDGER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRONLEDGER_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRONLEDGER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRONLEDGER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRONLEDGER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRONLEDGER_NOTIFY_EVENTS")
	setStr(&cfg.Notify.PnLDivergenceTolerance, "TRONLEDGER_NOTIFY_PNL_DIVERGENCE_TOLERANCE")

	// ── Tail ──
	setDuration(&cfg.Tail.Interval, "TRONLEDGER_TAIL_INTERVAL")
	setInt(&cfg.Tail.SeenCapacity, "TRONLEDGER_TAIL_SEEN_CAPACITY")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "TRONLEDGER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
