package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/rulehub/internal/domain"
)

var errLimiterNotConfigured = errors.New("rate limiter not configured")

// FailOpenLimiter decides what a store failure means for a quota check.
// Outside production the request is let through with Unlimited sentinels so
// local development works without a shared store; in production the failure
// surfaces as domain.ErrStoreUnavailable. The limiter never denies because of
// an error.
type FailOpenLimiter struct {
	next       domain.RateLimiter
	production bool
	observer   RateLimitObserver
}

// NewFailOpenLimiter wraps next, which may be nil when no store is configured.
func NewFailOpenLimiter(next domain.RateLimiter, production bool, observer RateLimitObserver) *FailOpenLimiter {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &FailOpenLimiter{next: next, production: production, observer: observer}
}

func (l *FailOpenLimiter) Check(ctx context.Context, category domain.RateLimitCategory, key string) (domain.RateLimitDecision, error) {
	var (
		decision domain.RateLimitDecision
		err      = errLimiterNotConfigured
	)
	if l.next != nil {
		decision, err = l.next.Check(ctx, category, key)
	}

	if err == nil {
		outcome := OutcomeAllowed
		if !decision.Allowed {
			outcome = OutcomeDenied
		}
		l.observer.ObserveRateLimit(category, outcome)
		return decision, nil
	}

	if l.production {
		l.observer.ObserveRateLimit(category, OutcomeError)
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return domain.RateLimitDecision{}, fmt.Errorf("rate limit check: %w", err)
		}
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit check: %w: %w", domain.ErrStoreUnavailable, err)
	}

	slog.WarnContext(ctx, "Rate limit check failed, allowing request", "category", category, "error", err)
	l.observer.ObserveRateLimit(category, OutcomeFailOpen)
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     domain.Unlimited,
		Remaining: domain.Unlimited,
	}, nil
}
