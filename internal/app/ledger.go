package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/coopledger/internal/integration"
	"github.com/odyssey-erp/coopledger/internal/ledger/accounts"
	"github.com/odyssey-erp/coopledger/internal/ledger/journal"
	"github.com/odyssey-erp/coopledger/internal/ledger/periods"
	"github.com/odyssey-erp/coopledger/internal/ledger/reports"
	"github.com/odyssey-erp/coopledger/internal/observability"
	"github.com/odyssey-erp/coopledger/internal/platform/cache"
	"github.com/odyssey-erp/coopledger/internal/platform/db"
	"github.com/odyssey-erp/coopledger/internal/shared"
	"github.com/odyssey-erp/coopledger/jobs"
)

// Ledger holds the connected stores and the services built over them.
type Ledger struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics

	Accounts *accounts.Service
	Periods  *periods.Service
	Journal  *journal.Service
	Reports  *reports.Service
	Hooks    *integration.Hooks
}

// Connect opens PostgreSQL and, when reachable, Redis. Reports run uncached
// without Redis.
func Connect(ctx context.Context, cfg *Config, logger *slog.Logger) (*Ledger, error) {
	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	}
	return NewLedger(cfg, logger, pool, redisClient), nil
}

// NewLedger wires the services over an open pool. redisClient may be nil.
func NewLedger(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client) *Ledger {
	audit := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	acctSvc := accounts.NewService(accounts.NewRepository(pool), audit, logger)
	periodSvc := periods.NewService(periods.NewRepository(pool), audit, logger)
	journalSvc := journal.NewService(journal.NewRepository(pool, cfg.StorageTimeout), acctSvc.Resolver(), audit, logger)
	journalSvc.WithStorageTimeout(cfg.StorageTimeout)
	journalSvc.WithMetrics(metrics)

	var reportCache *reports.Cache
	if redisClient != nil {
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
	}
	reportSvc := reports.NewService(acctSvc, journalSvc, periodSvc, reports.NewSnapshotStore(pool), reportCache, logger)

	journalSvc.Observe(reportSvc)
	acctSvc.Observe(reportSvc)
	periodSvc.OnClose(reportSvc.PeriodClosed)

	return &Ledger{
		Pool:     pool,
		Redis:    redisClient,
		Metrics:  metrics,
		Accounts: acctSvc,
		Periods:  periodSvc,
		Journal:  journalSvc,
		Reports:  reportSvc,
		Hooks:    integration.NewHooks(journalSvc, integration.DefaultAccountMap()),
	}
}

// Router builds the HTTP API over the ledger services. jobHandler may be nil
// when the queue is not reachable.
func (l *Ledger) Router(cfg *Config, logger *slog.Logger, jobHandler *jobs.Handler) http.Handler {
	return NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		AccountsHandler:    accounts.NewHandler(logger, l.Accounts),
		PeriodsHandler:     periods.NewHandler(logger, l.Periods),
		JournalHandler:     journal.NewHandler(logger, l.Journal),
		ReportsHandler:     reports.NewHandler(logger, l.Reports),
		IntegrationHandler: integration.NewHandler(logger, l.Hooks),
		JobHandler:         jobHandler,
		Metrics:            l.Metrics,
		Health: func(ctx context.Context) error {
			return l.Pool.Ping(ctx)
		},
	})
}

// Close releases the pool and the Redis client.
func (l *Ledger) Close(logger *slog.Logger) {
	if l.Redis != nil {
		if err := l.Redis.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if l.Pool != nil {
		l.Pool.Close()
	}
}

// RedisOptions locates Redis for the cache and the job queue.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
