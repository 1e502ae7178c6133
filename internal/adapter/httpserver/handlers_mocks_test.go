package httpserver

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/rulehub/internal/app"
	"github.com/pscheid92/rulehub/internal/domain"
	"github.com/pscheid92/rulehub/internal/platform/config"
)

type mockVoteService struct {
	castVoteFn    func(ctx context.Context, c app.Client, itemID string, rawVote *string) (*app.VoteOutcome, error)
	currentVoteFn func(ctx context.Context, c app.Client, itemID string) (domain.Vote, error)
	statsFn       func(ctx context.Context, itemID string) (domain.Counts, error)
	trackViewFn   func(ctx context.Context, c app.Client, itemID string) app.TrackResult
	trackCopyFn   func(ctx context.Context, c app.Client, itemID string) app.TrackResult
	listItemsFn   func(ctx context.Context) ([]domain.Item, error)
	getItemFn     func(ctx context.Context, itemID string) (*domain.Item, error)
	checkQuotaFn  func(ctx context.Context, c app.Client, category domain.RateLimitCategory) (domain.RateLimitDecision, error)
}

func (m *mockVoteService) CastVote(ctx context.Context, c app.Client, itemID string, rawVote *string) (*app.VoteOutcome, error) {
	if m.castVoteFn != nil {
		return m.castVoteFn(ctx, c, itemID, rawVote)
	}
	return &app.VoteOutcome{}, nil
}

func (m *mockVoteService) CurrentVote(ctx context.Context, c app.Client, itemID string) (domain.Vote, error) {
	if m.currentVoteFn != nil {
		return m.currentVoteFn(ctx, c, itemID)
	}
	return domain.VoteNone, nil
}

func (m *mockVoteService) Stats(ctx context.Context, itemID string) (domain.Counts, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, itemID)
	}
	return domain.Counts{}, nil
}

func (m *mockVoteService) TrackView(ctx context.Context, c app.Client, itemID string) app.TrackResult {
	if m.trackViewFn != nil {
		return m.trackViewFn(ctx, c, itemID)
	}
	return app.TrackResult{Tracked: true}
}

func (m *mockVoteService) TrackCopy(ctx context.Context, c app.Client, itemID string) app.TrackResult {
	if m.trackCopyFn != nil {
		return m.trackCopyFn(ctx, c, itemID)
	}
	return app.TrackResult{Tracked: true}
}

func (m *mockVoteService) ListItems(ctx context.Context) ([]domain.Item, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx)
	}
	return nil, nil
}

func (m *mockVoteService) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	if m.getItemFn != nil {
		return m.getItemFn(ctx, itemID)
	}
	return &domain.Item{ID: itemID}, nil
}

func (m *mockVoteService) CheckQuota(ctx context.Context, c app.Client, category domain.RateLimitCategory) (domain.RateLimitDecision, error) {
	if m.checkQuotaFn != nil {
		return m.checkQuotaFn(ctx, c, category)
	}
	return domain.RateLimitDecision{Allowed: true, Limit: 60, Remaining: 59}, nil
}

type testServerOption func(*Options)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *Options) { o.HealthChecks = checks }
}

func withClock(clock clockwork.Clock) testServerOption {
	return func(o *Options) { o.Clock = clock }
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:     "test",
		Port:       "0",
		FloodRate:  1000,
		FloodBurst: 1000,
	}
}

func newTestServer(t *testing.T, svc voteService, opts ...testServerOption) *Server {
	t.Helper()
	o := Options{Clock: clockwork.NewFakeClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return NewServer(testConfig(), svc, o)
}

// do sends a request through the full middleware chain.
func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = testRemoteAddr
	req.Header.Set("User-Agent", "test-agent")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}
