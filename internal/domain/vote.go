package domain

import (
	"encoding/json"
	"time"
)

type Vote string

const (
	VoteNone Vote = "none"
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// ParseVote interprets the wire representation of a vote. A nil value means
// "retract my vote"; any string other than "up" or "down" is rejected.
func ParseVote(raw *string) (Vote, error) {
	if raw == nil {
		return VoteNone, nil
	}
	switch Vote(*raw) {
	case VoteUp, VoteDown:
		return Vote(*raw), nil
	default:
		return "", ErrInvalidVote
	}
}

func (v Vote) IsValid() bool {
	return v == VoteNone || v == VoteUp || v == VoteDown
}

// MarshalJSON renders VoteNone as null.
func (v Vote) MarshalJSON() ([]byte, error) {
	if v == VoteNone || v == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(v))
}

func (v *Vote) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseVote(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VoteRecord is the abuse-detection history of one fingerprint on one item.
type VoteRecord struct {
	LastVote          Vote
	LastVoteTimestamp time.Time
	TotalVotes        int
	RapidChangeCount  int
}

// VoteResult is the server-authoritative outcome of an accepted vote.
type VoteResult struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
	UserVote  Vote  `json:"userVote"`
}
