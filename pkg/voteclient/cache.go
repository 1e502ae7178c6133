package voteclient

import (
	"context"
	"sync"

	"github.com/pscheid92/rulehub/internal/domain"
)

// State is what a client renders for one item.
type State struct {
	Upvotes   int64
	Downvotes int64
	Vote      Vote
}

// Voter sends a vote to the server.
type Voter interface {
	Vote(ctx context.Context, itemID string, vote Vote) (VoteResult, Quota, error)
}

// VoteCache keeps optimistic per-item vote state. Each item allows one vote
// in flight; further actions fail with ErrVoteInFlight until it settles.
type VoteCache struct {
	voter Voter

	mu       sync.Mutex
	items    map[string]State
	inFlight map[string]bool
}

func NewVoteCache(voter Voter) *VoteCache {
	return &VoteCache{
		voter:    voter,
		items:    make(map[string]State),
		inFlight: make(map[string]bool),
	}
}

// Seed sets the state of itemID from server values, e.g. after a stats fetch.
// It is ignored while a vote on the item is pending.
func (c *VoteCache) Seed(itemID string, counts Counts, vote Vote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[itemID] {
		return
	}
	if vote == "" {
		vote = VoteNone
	}
	c.items[itemID] = State{Upvotes: counts.Upvotes, Downvotes: counts.Downvotes, Vote: vote}
}

// State returns the displayed state of itemID; unknown items read as zero.
func (c *VoteCache) State(itemID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(itemID)
}

// Pending reports whether a vote on itemID awaits the server.
func (c *VoteCache) Pending(itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[itemID]
}

// Cast applies requested optimistically, sends it and reconciles with the
// server's answer. On any error the prior state is restored and the error
// returned, so callers can surface rate limits and rejections.
func (c *VoteCache) Cast(ctx context.Context, itemID string, requested Vote) (State, error) {
	if err := c.begin(itemID); err != nil {
		return c.State(itemID), err
	}
	defer c.end(itemID)

	final, _, err := RunOptimistic(ctx, c.cell(itemID), Transaction[State, VoteResult]{
		Apply: func(s State) State {
			return applyDelta(s, requested)
		},
		Call: func(ctx context.Context) (VoteResult, error) {
			res, _, err := c.voter.Vote(ctx, itemID, requested)
			return res, err
		},
		Commit: func(_ State, res VoteResult) State {
			return State{Upvotes: res.Upvotes, Downvotes: res.Downvotes, Vote: normalize(res.UserVote)}
		},
	})
	return final, err
}

func (c *VoteCache) begin(itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[itemID] {
		return ErrVoteInFlight
	}
	c.inFlight[itemID] = true
	return nil
}

func (c *VoteCache) end(itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, itemID)
}

func (c *VoteCache) load(itemID string) State {
	s, ok := c.items[itemID]
	if !ok {
		return State{Vote: VoteNone}
	}
	return s
}

type itemCell struct {
	cache  *VoteCache
	itemID string
}

func (c *VoteCache) cell(itemID string) Cell[State] {
	return itemCell{cache: c, itemID: itemID}
}

func (ic itemCell) Load() State {
	ic.cache.mu.Lock()
	defer ic.cache.mu.Unlock()
	return ic.cache.load(ic.itemID)
}

func (ic itemCell) Store(s State) {
	ic.cache.mu.Lock()
	defer ic.cache.mu.Unlock()
	ic.cache.items[ic.itemID] = s
}

// applyDelta predicts the server's answer. Counts are clamped so a stale
// seed cannot render negative.
func applyDelta(s State, requested Vote) State {
	d := domain.ComputeDelta(normalize(s.Vote), normalize(requested))
	return State{
		Upvotes:   max(0, s.Upvotes+int64(d.Upvotes)),
		Downvotes: max(0, s.Downvotes+int64(d.Downvotes)),
		Vote:      d.Result,
	}
}

func normalize(v Vote) Vote {
	if v == "" {
		return VoteNone
	}
	return v
}
