package voteclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrRateLimited     = errors.New("rate limited")
	ErrPatternRejected = errors.New("vote rejected")
	ErrInvalidVote     = errors.New("invalid vote")
	ErrNotFound        = errors.New("item not found")
	ErrUnavailable     = errors.New("service unavailable")

	// ErrVoteInFlight is returned when an item already has a vote awaiting
	// the server's answer.
	ErrVoteInFlight = errors.New("vote already in flight")
)

// Quota mirrors the X-RateLimit-* response headers. Zero when the server
// sent none.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	// Message is the server's error text; for pattern rejections it is the reason.
	Message string
	Quota   Quota
	// RetryAfterHint comes from the Retry-After header.
	RetryAfterHint time.Duration
	// plainText marks 429s from quota exhaustion, which carry no JSON body.
	plainText bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rulehub: %d %s", e.StatusCode, e.Message)
}

// RetryAfter lets the retry loop honour the server's hint.
func (e *APIError) RetryAfter() time.Duration {
	return e.RetryAfterHint
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests && e.plainText
	case ErrPatternRejected:
		return e.StatusCode == http.StatusTooManyRequests && !e.plainText
	case ErrInvalidVote:
		return e.StatusCode == http.StatusBadRequest
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable
	}
	return false
}
