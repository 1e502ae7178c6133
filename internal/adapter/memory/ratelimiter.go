package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/rulehub/internal/domain"
)

// SlidingWindowLimiter keeps the accepted request timestamps of every
// (category, key) pair in memory.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	quotas  domain.Quotas
	windows map[string][]time.Time
}

func NewSlidingWindowLimiter(quotas domain.Quotas, clock clockwork.Clock) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		clock:   clock,
		quotas:  quotas,
		windows: make(map[string][]time.Time),
	}
}

func (l *SlidingWindowLimiter) Check(_ context.Context, category domain.RateLimitCategory, key string) (domain.RateLimitDecision, error) {
	quota, ok := l.quotas[category]
	if !ok {
		return domain.RateLimitDecision{}, fmt.Errorf("no quota configured for category %q", category)
	}

	now := l.clock.Now()
	windowKey := string(category) + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := prune(l.windows[windowKey], now.Add(-quota.Window))

	if len(hits) >= quota.MaxRequests {
		l.store(windowKey, hits)
		resetAt := now.Add(quota.Window)
		if len(hits) > 0 {
			resetAt = hits[0].Add(quota.Window)
		}
		return domain.RateLimitDecision{
			Allowed:   false,
			Limit:     quota.MaxRequests,
			Remaining: 0,
			ResetAt:   resetAt,
		}, nil
	}

	hits = append(hits, now)
	l.store(windowKey, hits)

	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     quota.MaxRequests,
		Remaining: quota.MaxRequests - len(hits),
		ResetAt:   hits[0].Add(quota.Window),
	}, nil
}

// Sweep drops windows with no requests newer than their category's window
// and returns how many were removed.
func (l *SlidingWindowLimiter) Sweep() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var longest time.Duration
	for _, q := range l.quotas {
		longest = max(longest, q.Window)
	}

	removed := 0
	for key, hits := range l.windows {
		if len(prune(hits, now.Add(-longest))) == 0 {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// StartSweepTimer runs Sweep every interval until the returned stop function
// is called.
func (l *SlidingWindowLimiter) StartSweepTimer(interval time.Duration) func() {
	ticker := l.clock.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if n := l.Sweep(); n > 0 {
					slog.Debug("Swept idle rate limit windows", "count", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

func (l *SlidingWindowLimiter) store(key string, hits []time.Time) {
	if len(hits) == 0 {
		delete(l.windows, key)
		return
	}
	l.windows[key] = hits
}

// prune drops timestamps at or before cutoff. hits is sorted ascending.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
