package domain

import "context"

// Counts are the durable per-item counters. None of them is ever negative.
type Counts struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
	Views     int64 `json:"views"`
	Copies    int64 `json:"copies"`
}

type TrackedEvent string

const (
	EventView TrackedEvent = "view"
	EventCopy TrackedEvent = "copy"
)

// CounterStore persists Counts. Implementations create a zero record on
// first access, apply each delta as one atomic step and clamp every counter
// at zero. Connectivity failures are reported wrapped in ErrStoreUnavailable.
type CounterStore interface {
	Get(ctx context.Context, itemID string) (Counts, error)
	ApplyVoteDelta(ctx context.Context, itemID string, upvotes, downvotes int) (Counts, error)
	Increment(ctx context.Context, itemID string, event TrackedEvent) error
}
