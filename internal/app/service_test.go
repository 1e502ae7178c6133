package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pscheid92/rulehub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Stats ---

func TestStats_LazilyMaterialised(t *testing.T) {
	svc, _ := newHappyPathService()

	counts, err := svc.Stats(context.Background(), "fresh-item")

	require.NoError(t, err)
	assert.Equal(t, domain.Counts{}, counts)
}

func TestStats_UnknownItem(t *testing.T) {
	svc, d := newHappyPathService()
	d.catalog.getFn = func(context.Context, string) (*domain.Item, error) { return nil, domain.ErrItemNotFound }

	_, err := svc.Stats(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestStats_CollapsesConcurrentLoads(t *testing.T) {
	svc, _ := newHappyPathService()

	var calls atomic.Int32
	release := make(chan struct{})
	svc.counters = &mockCounterStore{
		getFn: func(context.Context, string) (domain.Counts, error) {
			calls.Add(1)
			<-release
			return domain.Counts{Upvotes: 7}, nil
		},
	}

	const n = 10
	var wg sync.WaitGroup
	results := make(chan domain.Counts, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := svc.Stats(context.Background(), "item")
			assert.NoError(t, err)
			results <- c
		}()
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for c := range results {
		assert.Equal(t, int64(7), c.Upvotes)
	}
	assert.LessOrEqual(t, calls.Load(), int32(n))
}

func TestStats_SharedLoadIgnoresCallerCancellation(t *testing.T) {
	svc, _ := newHappyPathService()
	svc.counters = &mockCounterStore{
		getFn: func(ctx context.Context, _ string) (domain.Counts, error) {
			if err := ctx.Err(); err != nil {
				return domain.Counts{}, err
			}
			return domain.Counts{Views: 2}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	counts, err := svc.Stats(ctx, "item")
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Views: 2}, counts)
}

func TestStats_StoreErrorWrapped(t *testing.T) {
	svc, _ := newHappyPathService()
	svc.counters = &mockCounterStore{
		getFn: func(context.Context, string) (domain.Counts, error) {
			return domain.Counts{}, domain.ErrStoreUnavailable
		},
	}

	_, err := svc.Stats(context.Background(), "item")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

// --- Items ---

func TestListAndGetItems(t *testing.T) {
	svc, d := newHappyPathService()
	d.catalog.listFn = func(context.Context) ([]domain.Item, error) {
		return []domain.Item{{ID: "a"}, {ID: "b"}}, nil
	}

	items, err := svc.ListItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)

	item, err := svc.GetItem(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", item.ID)
}

func TestCurrentVote_UnknownItem(t *testing.T) {
	svc, d := newHappyPathService()
	d.catalog.getFn = func(context.Context, string) (*domain.Item, error) { return nil, domain.ErrItemNotFound }

	_, err := svc.CurrentVote(context.Background(), testClient, "ghost")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

// --- Tracking ---

func TestTrackView_Success(t *testing.T) {
	svc, d := newHappyPathService()

	res := svc.TrackView(context.Background(), testClient, "item")

	assert.True(t, res.Tracked)
	assert.NoError(t, res.Err)
	counts, _ := d.counters.Get(context.Background(), "item")
	assert.Equal(t, int64(1), counts.Views)
	assert.Equal(t, []string{"view:applied"}, d.observer.tracking)
}

func TestTrackCopy_UsesCopyQuota(t *testing.T) {
	svc, d := newHappyPathService()
	var seen domain.RateLimitCategory
	d.limiter.checkFn = func(_ context.Context, category domain.RateLimitCategory, _ string) (domain.RateLimitDecision, error) {
		seen = category
		return domain.RateLimitDecision{Allowed: true}, nil
	}

	res := svc.TrackCopy(context.Background(), testClient, "item")

	assert.True(t, res.Tracked)
	assert.Equal(t, domain.CategoryCopy, seen)
	counts, _ := d.counters.Get(context.Background(), "item")
	assert.Equal(t, int64(1), counts.Copies)
}

func TestTrack_FailuresAreContained(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(svc *Service, d *testDeps)
		wantOutcome string
		wantErr     error
	}{
		{
			name: "rate limited",
			setup: func(_ *Service, d *testDeps) {
				d.limiter.checkFn = func(context.Context, domain.RateLimitCategory, string) (domain.RateLimitDecision, error) {
					return domain.RateLimitDecision{Allowed: false}, nil
				}
			},
			wantOutcome: "view:rate_limited",
		},
		{
			name: "unknown item",
			setup: func(_ *Service, d *testDeps) {
				d.catalog.getFn = func(context.Context, string) (*domain.Item, error) { return nil, domain.ErrItemNotFound }
			},
			wantOutcome: "view:not_found",
			wantErr:     domain.ErrItemNotFound,
		},
		{
			name: "store down",
			setup: func(svc *Service, _ *testDeps) {
				svc.counters = &mockCounterStore{
					incrementFn: func(context.Context, string, domain.TrackedEvent) error {
						return errors.Join(domain.ErrStoreUnavailable, errors.New("timeout"))
					},
				}
			},
			wantOutcome: "view:error",
			wantErr:     domain.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newHappyPathService()
			tt.setup(svc, d)

			res := svc.TrackView(context.Background(), testClient, "item")

			assert.False(t, res.Tracked)
			require.Error(t, res.Err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Err, tt.wantErr)
			}
			assert.Equal(t, []string{tt.wantOutcome}, d.observer.tracking)
		})
	}
}
