package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/rulehub/internal/domain"
)

// TrackResult reports whether a view/copy was counted. Err is kept for
// logging and tests; callers are expected not to propagate it.
type TrackResult struct {
	Tracked bool
	Err     error
}

func (s *Service) TrackView(ctx context.Context, c Client, itemID string) TrackResult {
	return s.track(ctx, c, itemID, domain.EventView, domain.CategoryView)
}

func (s *Service) TrackCopy(ctx context.Context, c Client, itemID string) TrackResult {
	return s.track(ctx, c, itemID, domain.EventCopy, domain.CategoryCopy)
}

func (s *Service) track(ctx context.Context, c Client, itemID string, event domain.TrackedEvent, category domain.RateLimitCategory) TrackResult {
	res := s.doTrack(ctx, c, itemID, event, category)

	var rateLimited *domain.RateLimitedError
	outcome := OutcomeApplied
	switch {
	case res.Err == nil:
	case isNotFound(res.Err):
		outcome = OutcomeNotFound
	case errors.As(res.Err, &rateLimited):
		outcome = OutcomeRateLimited
	default:
		outcome = OutcomeError
		slog.WarnContext(ctx, "Tracking failed", "event", event, "item_id", itemID, "error", res.Err)
	}
	s.tracking.ObserveTracking(event, outcome)
	return res
}

func (s *Service) doTrack(ctx context.Context, c Client, itemID string, event domain.TrackedEvent, category domain.RateLimitCategory) TrackResult {
	quota, err := s.limiter.Check(ctx, category, s.fingerprints.Fingerprint(c))
	if err != nil {
		return TrackResult{Err: err}
	}
	if !quota.Allowed {
		return TrackResult{Err: &domain.RateLimitedError{Category: category, Decision: quota}}
	}

	if _, err := s.catalog.Get(ctx, itemID); err != nil {
		return TrackResult{Err: fmt.Errorf("look up item %q: %w", itemID, err)}
	}

	if err := s.counters.Increment(ctx, itemID, event); err != nil {
		return TrackResult{Err: fmt.Errorf("increment %s for %q: %w", event, itemID, err)}
	}
	return TrackResult{Tracked: true}
}
