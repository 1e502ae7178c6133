package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrInvalidVote      = errors.New("invalid vote type")
	ErrStoreUnavailable = errors.New("store unavailable")
)

const (
	ReasonTooSoon        = "too soon since last vote"
	ReasonTooManyChanges = "too many changes"
)

// RateLimitedError is returned when a sliding-window quota is exhausted.
type RateLimitedError struct {
	Category RateLimitCategory
	Decision RateLimitDecision
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Category)
}

func (e *RateLimitedError) RetryAfter(now time.Time) time.Duration {
	if wait := e.Decision.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// PatternRejectedError is returned when the vote-pattern guard refuses a vote.
type PatternRejectedError struct {
	Reason string
}

func (e *PatternRejectedError) Error() string {
	return "vote rejected: " + e.Reason
}
