package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/rulehub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter() (*SlidingWindowLimiter, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewSlidingWindowLimiter(domain.DefaultQuotas(), clock), clock
}

func TestLimiter_EleventhVoteIsDenied(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()
	start := clock.Now()

	for i := range 10 {
		d, err := l.Check(ctx, domain.CategoryVoting, "fp")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 10, d.Limit)
		assert.Equal(t, 9-i, d.Remaining)
		clock.Advance(time.Second)
	}

	d, err := l.Check(ctx, domain.CategoryVoting, "fp")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, start.Add(time.Minute), d.ResetAt)
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()

	for range 10 {
		_, err := l.Check(ctx, domain.CategoryVoting, "fp")
		require.NoError(t, err)
	}
	d, _ := l.Check(ctx, domain.CategoryVoting, "fp")
	require.False(t, d.Allowed)

	clock.Advance(time.Minute + time.Millisecond)

	d, err := l.Check(ctx, domain.CategoryVoting, "fp")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 9, d.Remaining)
}

func TestLimiter_DeniedRequestsAreNotRecorded(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()

	for range 10 {
		_, _ = l.Check(ctx, domain.CategoryVoting, "fp")
	}
	for range 50 {
		d, _ := l.Check(ctx, domain.CategoryVoting, "fp")
		require.False(t, d.Allowed)
	}

	// Only the ten accepted requests occupy the window.
	clock.Advance(time.Minute + time.Millisecond)
	for range 10 {
		d, _ := l.Check(ctx, domain.CategoryVoting, "fp")
		assert.True(t, d.Allowed)
	}
}

func TestLimiter_CategoriesAndKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()

	for range 10 {
		_, _ = l.Check(ctx, domain.CategoryVoting, "fp")
	}

	d, err := l.Check(ctx, domain.CategoryView, "fp")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 30, d.Limit)

	d, err = l.Check(ctx, domain.CategoryVoting, "other")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_UnknownCategory(t *testing.T) {
	l, _ := newTestLimiter()
	_, err := l.Check(context.Background(), domain.RateLimitCategory("bulk"), "fp")
	assert.Error(t, err)
}

func TestLimiter_ConcurrentChecksNeverOvershoot(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Check(ctx, domain.CategoryVoting, "fp")
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()

	_, _ = l.Check(ctx, domain.CategoryVoting, "idle")
	clock.Advance(30 * time.Second)
	_, _ = l.Check(ctx, domain.CategoryVoting, "active")
	clock.Advance(31 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.windows, 1)
}

func TestLimiter_SweepTimer(t *testing.T) {
	l, clock := newTestLimiter()
	_, _ = l.Check(context.Background(), domain.CategoryView, "fp")

	stop := l.StartSweepTimer(time.Minute)
	defer stop()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.windows) == 0
	}, time.Second, 5*time.Millisecond)
}
