package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/rulehub/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Service is the application layer: the only component that references
// every vote-integrity collaborator.
type Service struct {
	fingerprints *Fingerprinter
	limiter      domain.RateLimiter
	guard        *VoteGuard
	catalog      domain.Catalog
	counters     domain.CounterStore
	clock        clockwork.Clock

	votes    VoteObserver
	tracking TrackingObserver

	statsGroup singleflight.Group
}

type Deps struct {
	Fingerprints *Fingerprinter
	Limiter      domain.RateLimiter
	Guard        *VoteGuard
	Catalog      domain.Catalog
	Counters     domain.CounterStore
	Clock        clockwork.Clock

	// Optional.
	VoteObserver     VoteObserver
	TrackingObserver TrackingObserver
}

func NewService(d Deps) *Service {
	s := &Service{
		fingerprints: d.Fingerprints,
		limiter:      d.Limiter,
		guard:        d.Guard,
		catalog:      d.Catalog,
		counters:     d.Counters,
		clock:        d.Clock,
		votes:        d.VoteObserver,
		tracking:     d.TrackingObserver,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.votes == nil {
		s.votes = NoopObserver{}
	}
	if s.tracking == nil {
		s.tracking = NoopObserver{}
	}
	return s
}

// CheckQuota runs a general-purpose quota check for c.
func (s *Service) CheckQuota(ctx context.Context, c Client, category domain.RateLimitCategory) (domain.RateLimitDecision, error) {
	return s.limiter.Check(ctx, category, s.fingerprints.Fingerprint(c))
}

func (s *Service) ListItems(ctx context.Context) ([]domain.Item, error) {
	items, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *Service) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	item, err := s.catalog.Get(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item %q: %w", itemID, err)
	}
	return item, nil
}

// Stats returns the counters for itemID, creating a zero record on first
// access. Concurrent requests for the same item share one store round trip.
func (s *Service) Stats(ctx context.Context, itemID string) (domain.Counts, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return domain.Counts{}, err
	}

	// The flight is shared, so one caller's cancellation must not fail the others.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.statsGroup.Do(itemID, func() (any, error) {
		return s.counters.Get(flightCtx, itemID)
	})
	if err != nil {
		return domain.Counts{}, fmt.Errorf("load counters for %q: %w", itemID, err)
	}
	return v.(domain.Counts), nil
}

// CurrentVote reports the vote the guard associates with c on itemID.
// It reflects only what this process has seen within the guard's TTL.
func (s *Service) CurrentVote(ctx context.Context, c Client, itemID string) (domain.Vote, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return domain.VoteNone, err
	}
	return s.guard.CurrentVote(s.fingerprints.Fingerprint(c), itemID), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrItemNotFound)
}
