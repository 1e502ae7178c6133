package app

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/rulehub/internal/domain"
)

// --- Mock RateLimiter ---

type mockLimiter struct {
	checkFn func(ctx context.Context, category domain.RateLimitCategory, key string) (domain.RateLimitDecision, error)
}

func (m *mockLimiter) Check(ctx context.Context, category domain.RateLimitCategory, key string) (domain.RateLimitDecision, error) {
	if m.checkFn != nil {
		return m.checkFn(ctx, category, key)
	}
	return domain.RateLimitDecision{Allowed: true, Limit: 10, Remaining: 9}, nil
}

// --- Mock Catalog ---

type mockCatalog struct {
	getFn  func(ctx context.Context, id string) (*domain.Item, error)
	listFn func(ctx context.Context) ([]domain.Item, error)
}

func (m *mockCatalog) Get(ctx context.Context, id string) (*domain.Item, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &domain.Item{ID: id, Title: "Rule " + id}, nil
}

func (m *mockCatalog) List(ctx context.Context) ([]domain.Item, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- Mock CounterStore ---

type mockCounterStore struct {
	getFn            func(ctx context.Context, itemID string) (domain.Counts, error)
	applyVoteDeltaFn func(ctx context.Context, itemID string, up, down int) (domain.Counts, error)
	incrementFn      func(ctx context.Context, itemID string, event domain.TrackedEvent) error
}

func (m *mockCounterStore) Get(ctx context.Context, itemID string) (domain.Counts, error) {
	if m.getFn != nil {
		return m.getFn(ctx, itemID)
	}
	return domain.Counts{}, nil
}

func (m *mockCounterStore) ApplyVoteDelta(ctx context.Context, itemID string, up, down int) (domain.Counts, error) {
	if m.applyVoteDeltaFn != nil {
		return m.applyVoteDeltaFn(ctx, itemID, up, down)
	}
	return domain.Counts{}, nil
}

func (m *mockCounterStore) Increment(ctx context.Context, itemID string, event domain.TrackedEvent) error {
	if m.incrementFn != nil {
		return m.incrementFn(ctx, itemID, event)
	}
	return nil
}

// clampingCounters is a thread-safe CounterStore with the clamping contract.
type clampingCounters struct {
	mu     sync.Mutex
	counts map[string]domain.Counts
}

func newClampingCounters() *clampingCounters {
	return &clampingCounters{counts: make(map[string]domain.Counts)}
}

func (c *clampingCounters) Get(_ context.Context, itemID string) (domain.Counts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[itemID], nil
}

func (c *clampingCounters) ApplyVoteDelta(_ context.Context, itemID string, up, down int) (domain.Counts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.counts[itemID]
	cur.Upvotes = max(0, cur.Upvotes+int64(up))
	cur.Downvotes = max(0, cur.Downvotes+int64(down))
	c.counts[itemID] = cur
	return cur, nil
}

func (c *clampingCounters) Increment(_ context.Context, itemID string, event domain.TrackedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.counts[itemID]
	if event == domain.EventView {
		cur.Views++
	} else {
		cur.Copies++
	}
	c.counts[itemID] = cur
	return nil
}

// --- Recording observer ---

type recordingObserver struct {
	mu        sync.Mutex
	votes     []string
	guard     []string
	evictions map[string]int
	limits    []string
	tracking  []string
	entries   int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{evictions: make(map[string]int)}
}

func (r *recordingObserver) ObserveVote(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes = append(r.votes, outcome)
}

func (r *recordingObserver) ObserveGuardDecision(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guard = append(r.guard, outcome)
}

func (r *recordingObserver) ObserveGuardEvictions(reason string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictions[reason] += n
}

func (r *recordingObserver) SetGuardEntries(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = n
}

func (r *recordingObserver) ObserveRateLimit(category domain.RateLimitCategory, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits = append(r.limits, string(category)+":"+outcome)
}

func (r *recordingObserver) ObserveTracking(event domain.TrackedEvent, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracking = append(r.tracking, string(event)+":"+outcome)
}

// --- Fixtures ---

var testClient = Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0 (test)"}

func strPtr(s string) *string { return &s }

type testDeps struct {
	clock    *clockwork.FakeClock
	limiter  *mockLimiter
	catalog  *mockCatalog
	counters domain.CounterStore
	guard    *VoteGuard
	observer *recordingObserver
}

func newHappyPathService() (*Service, *testDeps) {
	d := &testDeps{
		clock:    clockwork.NewFakeClock(),
		limiter:  &mockLimiter{},
		catalog:  &mockCatalog{},
		counters: newClampingCounters(),
		observer: newRecordingObserver(),
	}
	d.guard = NewVoteGuard(DefaultGuardConfig(), d.clock, d.observer)
	svc := NewService(Deps{
		Fingerprints:     NewFingerprinter("test-secret"),
		Limiter:          d.limiter,
		Guard:            d.guard,
		Catalog:          d.catalog,
		Counters:         d.counters,
		Clock:            d.clock,
		VoteObserver:     d.observer,
		TrackingObserver: d.observer,
	})
	return svc, d
}
