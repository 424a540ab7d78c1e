package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	s3blob "github.com/chainops/tronledger/internal/blob/s3"
	"github.com/chainops/tronledger/internal/cache/redis"
	"github.com/chainops/tronledger/internal/config"
	"github.com/chainops/tronledger/internal/domain"
	"github.com/chainops/tronledger/internal/ledger"
	"github.com/chainops/tronledger/internal/notify"
	"github.com/chainops/tronledger/internal/pipeline"
	"github.com/chainops/tronledger/internal/platform/trongrid"
	"github.com/chainops/tronledger/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Runner *pipeline.Runner

	PositionStore domain.PositionStore
	HistoryStore  domain.HistoryStore

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.HistoryStore = postgres.NewHistoryStore(pool)
	ledgerStore := postgres.NewLedgerStore(pool)

	// --- Redis dedup cache (optional) ---
	var dedup domain.DedupCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		dedup = redis.NewDedupCache(redisClient, cfg.Tron.Contract, cfg.Redis.DedupTTL.Duration)
	}

	// --- S3 page archive (optional) ---
	var archive domain.BlobWriter
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		archive = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	// --- Ingestion pipeline ---
	tolerance := decimal.Zero
	if s := cfg.Notify.PnLDivergenceTolerance; s != "" {
		tolerance, err = decimal.NewFromString(s)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: parse pnl_divergence_tolerance %q: %w", s, err)
		}
	}

	scaling := ledger.NewScaling(cfg.Ledger.PriceScale, cfg.Ledger.DecimalsDefault, cfg.Ledger.Decimals)
	fetcher := trongrid.NewClient(cfg.Tron.EventsBase, cfg.Tron.ApiKey, cfg.Tron.PageSize, cfg.Tron.RequestTimeout.Duration)

	deps.Runner = pipeline.NewRunner(
		pipeline.Config{
			Contract:            cfg.Tron.Contract,
			TraderFilter:        cfg.Ledger.TraderFilter,
			DivergenceTolerance: tolerance,
			SeenCapacity:        cfg.Tail.SeenCapacity,
		},
		pipeline.Deps{
			Fetcher:   fetcher,
			Parser:    ledger.NewParser(scaling, cfg.Ledger.AddrHex),
			Engine:    ledger.NewEngine(scaling),
			Positions: deps.PositionStore,
			Ledger:    ledgerStore,
			Dedup:     dedup,
			Archive:   archive,
			Notifier:  deps.Notifier,
		},
		logger,
	)

	return deps, cleanup, nil
}
