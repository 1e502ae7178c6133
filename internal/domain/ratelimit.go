package domain

import (
	"context"
	"time"
)

type RateLimitCategory string

const (
	CategoryVoting  RateLimitCategory = "voting"
	CategoryView    RateLimitCategory = "view"
	CategoryCopy    RateLimitCategory = "copy"
	CategoryGeneral RateLimitCategory = "general"
)

// Unlimited is reported as Limit and Remaining when a check was skipped
// because the limiter's store could not be consulted.
const Unlimited = -1

type Quota struct {
	MaxRequests int
	Window      time.Duration
}

// Quotas maps each category to its sliding-window quota.
type Quotas map[RateLimitCategory]Quota

func DefaultQuotas() Quotas {
	return Quotas{
		CategoryVoting:  {MaxRequests: 10, Window: time.Minute},
		CategoryView:    {MaxRequests: 30, Window: time.Minute},
		CategoryCopy:    {MaxRequests: 20, Window: time.Minute},
		CategoryGeneral: {MaxRequests: 60, Window: time.Minute},
	}
}

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Unchecked reports whether the decision carries the fail-open sentinels.
func (d RateLimitDecision) Unchecked() bool {
	return d.Limit == Unlimited
}

// RateLimiter performs an atomic check-and-record against a sliding window
// keyed by (category, key). Denied requests are not recorded.
type RateLimiter interface {
	Check(ctx context.Context, category RateLimitCategory, key string) (RateLimitDecision, error)
}
