package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/rulehub/internal/adapter/catalog"
	"github.com/pscheid92/rulehub/internal/adapter/httpserver"
	"github.com/pscheid92/rulehub/internal/adapter/memory"
	"github.com/pscheid92/rulehub/internal/adapter/metrics"
	"github.com/pscheid92/rulehub/internal/adapter/postgres"
	"github.com/pscheid92/rulehub/internal/adapter/redis"
	"github.com/pscheid92/rulehub/internal/app"
	"github.com/pscheid92/rulehub/internal/domain"
	"github.com/pscheid92/rulehub/internal/platform/config"
	"github.com/pscheid92/rulehub/internal/platform/logging"
	"github.com/pscheid92/rulehub/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

const (
	connectTimeout    = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	limiterSweepEvery = time.Minute
)

// backends holds whatever stores the configuration selected, plus the
// health checks and cleanup they bring along.
type backends struct {
	limiter  domain.RateLimiter
	counters domain.CounterStore
	checks   []httpserver.HealthCheck
	stops    []func()
}

func (b *backends) close() {
	for i := len(b.stops) - 1; i >= 0; i-- {
		b.stops[i]()
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func quotas(cfg *config.Config) domain.Quotas {
	return domain.Quotas{
		domain.CategoryVoting:  {MaxRequests: cfg.RateLimitVoteMax, Window: cfg.RateLimitVoteWindow},
		domain.CategoryView:    {MaxRequests: cfg.RateLimitViewMax, Window: cfg.RateLimitViewWindow},
		domain.CategoryCopy:    {MaxRequests: cfg.RateLimitCopyMax, Window: cfg.RateLimitCopyWindow},
		domain.CategoryGeneral: {MaxRequests: cfg.RateLimitGeneralMax, Window: cfg.RateLimitGeneralWindow},
	}
}

func guardConfig(cfg *config.Config) app.GuardConfig {
	return app.GuardConfig{
		Capacity:     cfg.GuardCapacity,
		Shards:       cfg.GuardShards,
		TTL:          cfg.GuardTTL,
		MinInterval:  cfg.GuardMinInterval,
		ChangeWindow: cfg.GuardChangeWindow,
		MaxChanges:   cfg.GuardMaxChanges,
	}
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.Set) (*goredis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	return redis.NewClient(ctx, cfg.RedisURL,
		redis.NewMetricsHook(m.Redis),
		redis.NewCircuitBreakerHook(m.Breakers),
	)
}

func setupDB(ctx context.Context, cfg *config.Config, m *metrics.Set) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(m.DB))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return pool, nil
}

// setupBackends connects the selected stores. An unreachable Redis that only
// backs the rate limiter is tolerated outside production: the limiter stays
// nil and quota checks fail open.
func setupBackends(ctx context.Context, cfg *config.Config, m *metrics.Set, clock clockwork.Clock) (*backends, error) {
	b := &backends{}

	var rdb *goredis.Client
	if cfg.CounterStore == config.BackendRedis || cfg.RateLimitStore == config.BackendRedis {
		client, err := setupRedis(ctx, cfg, m)
		switch {
		case err == nil:
			rdb = client
			b.stops = append(b.stops, func() { _ = rdb.Close() })
			b.checks = append(b.checks, httpserver.HealthCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			})
		case cfg.CounterStore == config.BackendRedis || cfg.IsProduction():
			b.close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		default:
			slog.Warn("Redis unreachable, rate limiting fails open", "error", err)
		}
	}

	switch cfg.RateLimitStore {
	case config.BackendRedis:
		if rdb != nil {
			b.limiter = redis.NewSlidingWindowLimiter(rdb, quotas(cfg), clock)
		}
	default:
		limiter := memory.NewSlidingWindowLimiter(quotas(cfg), clock)
		b.stops = append(b.stops, limiter.StartSweepTimer(limiterSweepEvery))
		b.limiter = limiter
	}

	switch cfg.CounterStore {
	case config.BackendRedis:
		b.counters = redis.NewCounterStore(rdb)
	case config.BackendPostgres:
		pool, err := setupDB(ctx, cfg, m)
		if err != nil {
			b.close()
			return nil, err
		}
		b.stops = append(b.stops, pool.Close)
		b.checks = append(b.checks, httpserver.HealthCheck{Name: "postgres", Check: pool.Ping})
		b.counters = postgres.NewCounterRepo(pool, m.Breakers)
	default:
		b.counters = memory.NewCounterStore()
	}

	slog.Info("Backends ready", "counter_store", cfg.CounterStore, "rate_limit_store", cfg.RateLimitStore, "rate_limiter", b.limiter != nil)
	return b, nil
}

func runGracefulShutdown(srv *httpserver.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version)

	registry := metrics.NewRegistry()
	m := metrics.NewSet(registry)

	items, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Catalog loaded", "items", items.Len())

	b, err := setupBackends(context.Background(), cfg, m, clock)
	if err != nil {
		slog.Error("Failed to set up backends", "error", err)
		os.Exit(1)
	}
	defer b.close()

	guard := app.NewVoteGuard(guardConfig(cfg), clock, m.Guard)
	stopEviction := guard.StartEvictionTimer(cfg.GuardEvictionInterval)
	defer stopEviction()

	svc := app.NewService(app.Deps{
		Fingerprints:     app.NewFingerprinter(cfg.FingerprintSecret),
		Limiter:          app.NewFailOpenLimiter(b.limiter, cfg.IsProduction(), m.RateLimit),
		Guard:            guard,
		Catalog:          items,
		Counters:         b.counters,
		Clock:            clock,
		VoteObserver:     m.Votes,
		TrackingObserver: m.RateLimit,
	})

	srv := httpserver.NewServer(cfg, svc, httpserver.Options{
		Clock:        clock,
		Registry:     registry,
		HTTPMetrics:  m.HTTP,
		HealthChecks: b.checks,
	})

	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
