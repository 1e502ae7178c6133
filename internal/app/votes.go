package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/rulehub/internal/domain"
)

// VoteOutcome is an accepted vote plus the voting quota state after it.
type VoteOutcome struct {
	Result domain.VoteResult
	Quota  domain.RateLimitDecision
}

// CastVote runs the full vote pipeline. rawVote is the wire value: nil
// retracts, "up"/"down" cast. Errors are *domain.RateLimitedError,
// *domain.PatternRejectedError, or wrap domain.ErrInvalidVote,
// domain.ErrItemNotFound or domain.ErrStoreUnavailable. On any error neither
// the counters nor the guard record are changed, except that a rejected
// flip still counts towards the rapid-change limit.
func (s *Service) CastVote(ctx context.Context, c Client, itemID string, rawVote *string) (*VoteOutcome, error) {
	start := s.clock.Now()
	outcome, err := s.castVote(ctx, c, itemID, rawVote)
	s.votes.ObserveVote(voteOutcomeLabel(err), s.clock.Since(start))
	return outcome, err
}

func (s *Service) castVote(ctx context.Context, c Client, itemID string, rawVote *string) (*VoteOutcome, error) {
	fingerprint := s.fingerprints.Fingerprint(c)

	quota, err := s.limiter.Check(ctx, domain.CategoryVoting, fingerprint)
	if err != nil {
		return nil, err
	}
	if !quota.Allowed {
		return nil, &domain.RateLimitedError{Category: domain.CategoryVoting, Decision: quota}
	}

	requested, err := domain.ParseVote(rawVote)
	if err != nil {
		return nil, fmt.Errorf("parse vote: %w", err)
	}

	ev := s.guard.Evaluate(fingerprint, itemID, requested)
	if !ev.Allowed {
		slog.InfoContext(ctx, "Vote rejected by pattern guard", "item_id", itemID, "reason", ev.Reason)
		return nil, &domain.PatternRejectedError{Reason: ev.Reason}
	}

	if _, err := s.catalog.Get(ctx, itemID); err != nil {
		s.guard.Rollback(ev)
		return nil, fmt.Errorf("look up item %q: %w", itemID, err)
	}

	delta := domain.ComputeDelta(ev.Previous, requested)
	var counts domain.Counts
	if delta.IsZero() {
		// Retracting a vote that does not exist changes nothing.
		counts, err = s.counters.Get(ctx, itemID)
	} else {
		counts, err = s.counters.ApplyVoteDelta(ctx, itemID, delta.Upvotes, delta.Downvotes)
	}
	if err != nil {
		s.guard.Rollback(ev)
		return nil, fmt.Errorf("apply vote delta to %q: %w", itemID, err)
	}

	return &VoteOutcome{
		Result: domain.VoteResult{
			Upvotes:   counts.Upvotes,
			Downvotes: counts.Downvotes,
			UserVote:  delta.Result,
		},
		Quota: quota,
	}, nil
}

func voteOutcomeLabel(err error) string {
	var rateLimited *domain.RateLimitedError
	var rejected *domain.PatternRejectedError

	switch {
	case err == nil:
		return OutcomeApplied
	case errors.As(err, &rateLimited):
		return OutcomeRateLimited
	case errors.As(err, &rejected):
		return OutcomePatternRejected
	case errors.Is(err, domain.ErrInvalidVote):
		return OutcomeInvalid
	case isNotFound(err):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
