package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/basketopt/internal/blob/s3"
	"github.com/alanyoungcy/basketopt/internal/cache/redis"
	"github.com/alanyoungcy/basketopt/internal/config"
	"github.com/alanyoungcy/basketopt/internal/domain"
	"github.com/alanyoungcy/basketopt/internal/notify"
	"github.com/alanyoungcy/basketopt/internal/optimizer"
	"github.com/alanyoungcy/basketopt/internal/server/handler"
	"github.com/alanyoungcy/basketopt/internal/service"
	"github.com/alanyoungcy/basketopt/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is built by Wire and
// torn down by the cleanup function Wire returns.
type Dependencies struct {
	// Stores
	OfferStore  *postgres.OfferStore
	ResultStore domain.ResultStore
	AuditStore  domain.AuditStore

	// Caches and bus
	ResultCache domain.ResultCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	EventBus    domain.EventBus

	// Blob storage; nil when S3 is disabled.
	Reports      domain.ReportExporter
	ReportReader *s3blob.Reader

	Notifier *notify.Notifier
	Service  *service.OptimizationService

	// Checks feed the health endpoint.
	Checks map[string]handler.Check
}

// Wire constructs the concrete implementations from cfg.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.OfferStore = postgres.NewOfferStore(pool)
	deps.ResultStore = postgres.NewResultStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)
	deps.Checks["postgres"] = pgClient.Ping

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		ClientName: "basketopt-" + cfg.Mode,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	logger.InfoContext(ctx, "redis connected",
		slog.String("addr", cfg.Redis.Addr),
		slog.String("version", redisClient.Version()),
	)

	deps.ResultCache = redis.NewResultCache(redisClient, cfg.Redis.ResultTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.EventBus = redis.NewEventBus(redisClient, cfg.Redis.StreamMaxLen)
	deps.Checks["redis"] = redisClient.Ping

	// --- S3 report storage ---
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
		deps.Reports = s3blob.NewReportExporter(s3blob.NewWriter(s3Client), cfg.S3.ReportPrefix)
		deps.ReportReader = s3blob.NewReader(s3Client, cfg.S3.ReportPrefix)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Service ---
	svcDeps := service.Deps{
		Offers:     deps.OfferStore,
		Exclusions: deps.OfferStore,
		Results:    deps.ResultStore,
		Locks:      deps.LockManager,
		Cache:      deps.ResultCache,
		Bus:        deps.EventBus,
		Audit:      deps.AuditStore,
	}
	if deps.Reports != nil {
		svcDeps.Exporter = deps.Reports
	}
	if deps.Notifier.Enabled() {
		svcDeps.Notifier = deps.Notifier
	}
	deps.Service = service.NewOptimizationService(svcDeps, service.Config{
		Optimizer: optimizer.Config{
			Engine:          cfg.Optimizer.Engine,
			DirectThreshold: cfg.Optimizer.DirectThreshold,
			MaxCombinations: cfg.Optimizer.MaxCombinations,
		},
		LockTTL: cfg.Redis.LockTTL.Duration,
	}, logger)

	return deps, cleanup, nil
}
