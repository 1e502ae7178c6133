package app

import (
	"time"

	"github.com/pscheid92/rulehub/internal/domain"
)

// Outcome labels shared by the observers below.
const (
	OutcomeApplied         = "applied"
	OutcomeRateLimited     = "rate_limited"
	OutcomeInvalid         = "invalid"
	OutcomePatternRejected = "pattern_rejected"
	OutcomeNotFound        = "not_found"
	OutcomeError           = "error"
	OutcomeAllowed         = "allowed"
	OutcomeDenied          = "denied"
	OutcomeFailOpen        = "fail_open"
)

type VoteObserver interface {
	ObserveVote(outcome string, elapsed time.Duration)
}

type GuardObserver interface {
	ObserveGuardDecision(outcome string)
	ObserveGuardEvictions(reason string, n int)
	SetGuardEntries(n int)
}

type RateLimitObserver interface {
	ObserveRateLimit(category domain.RateLimitCategory, outcome string)
}

type TrackingObserver interface {
	ObserveTracking(event domain.TrackedEvent, outcome string)
}

// NoopObserver satisfies every observer interface and records nothing.
type NoopObserver struct{}

func (NoopObserver) ObserveVote(string, time.Duration) {}
func (NoopObserver) ObserveGuardDecision(string) {}
func (NoopObserver) ObserveGuardEvictions(string, int) {}
func (NoopObserver) SetGuardEntries(int) {}
func (NoopObserver) ObserveRateLimit(domain.RateLimitCategory, string) {}
func (NoopObserver) ObserveTracking(domain.TrackedEvent, string) {}
