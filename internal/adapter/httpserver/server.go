package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/rulehub/internal/adapter/metrics"
	"github.com/pscheid92/rulehub/internal/app"
	"github.com/pscheid92/rulehub/internal/domain"
	"github.com/pscheid92/rulehub/internal/platform/config"
)

type voteService interface {
	CastVote(ctx context.Context, c app.Client, itemID string, rawVote *string) (*app.VoteOutcome, error)
	CurrentVote(ctx context.Context, c app.Client, itemID string) (domain.Vote, error)
	Stats(ctx context.Context, itemID string) (domain.Counts, error)
	TrackView(ctx context.Context, c app.Client, itemID string) app.TrackResult
	TrackCopy(ctx context.Context, c app.Client, itemID string) app.TrackResult
	ListItems(ctx context.Context) ([]domain.Item, error)
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
	CheckQuota(ctx context.Context, c app.Client, category domain.RateLimitCategory) (domain.RateLimitDecision, error)
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Clock        clockwork.Clock
	Registry     *prometheus.Registry
	HTTPMetrics  *metrics.HTTPMetrics
	HealthChecks []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app   voteService
	clock clockwork.Clock

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, svc voteService, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(cfg.TrustProxy)

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          svc,
		clock:        clock,
		registry:     opts.Registry,
		httpMetrics:  opts.HTTPMetrics,
		healthChecks: opts.HealthChecks,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

// ipExtractor trusts X-Forwarded-For only behind a known proxy; otherwise
// clients could pick their own fingerprint.
func ipExtractor(trustProxy bool) echo.IPExtractor {
	if trustProxy {
		return echo.ExtractIPFromXFFHeader()
	}
	return echo.ExtractIPDirect()
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func clientOf(c echo.Context) app.Client {
	return app.Client{Address: c.RealIP(), UserAgent: c.Request().UserAgent()}
}
