package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pscheid92/rulehub/internal/domain"
)

type CounterStore struct {
	mu     sync.Mutex
	counts map[string]*domain.Counts
}

func NewCounterStore() *CounterStore {
	return &CounterStore{counts: make(map[string]*domain.Counts)}
}

func (s *CounterStore) Get(_ context.Context, itemID string) (domain.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.record(itemID), nil
}

func (s *CounterStore) ApplyVoteDelta(_ context.Context, itemID string, upvotes, downvotes int) (domain.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.record(itemID)
	c.Upvotes = max(0, c.Upvotes+int64(upvotes))
	c.Downvotes = max(0, c.Downvotes+int64(downvotes))
	return *c, nil
}

func (s *CounterStore) Increment(_ context.Context, itemID string, event domain.TrackedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.record(itemID)
	switch event {
	case domain.EventView:
		c.Views++
	case domain.EventCopy:
		c.Copies++
	default:
		return fmt.Errorf("unknown tracked event %q", event)
	}
	return nil
}

// record returns the counters for itemID, creating a zero record on first
// access. Callers hold s.mu.
func (s *CounterStore) record(itemID string) *domain.Counts {
	c, ok := s.counts[itemID]
	if !ok {
		c = &domain.Counts{}
		s.counts[itemID] = c
	}
	return c
}
