package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pscheid92/rulehub/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

var counterFields = []string{"upvotes", "downvotes", "views", "copies"}

// ensureCountersScript creates any missing counter field at zero and
// returns all four.
// KEYS[1]=counter key
var ensureCountersScript = goredis.NewScript(`
for _, f in ipairs({'upvotes', 'downvotes', 'views', 'copies'}) do
  redis.call('HSETNX', KEYS[1], f, 0)
end
return redis.call('HMGET', KEYS[1], 'upvotes', 'downvotes', 'views', 'copies')
`)

// applyVoteDeltaScript adds both deltas, clamps each result at zero and
// returns all four counters.
// KEYS[1]=counter key
// ARGV: [1]=upvote delta, [2]=downvote delta
var applyVoteDeltaScript = goredis.NewScript(`
local up = math.max(0, (tonumber(redis.call('HGET', KEYS[1], 'upvotes')) or 0) + tonumber(ARGV[1]))
local down = math.max(0, (tonumber(redis.call('HGET', KEYS[1], 'downvotes')) or 0) + tonumber(ARGV[2]))
redis.call('HSET', KEYS[1], 'upvotes', up, 'downvotes', down)
redis.call('HSETNX', KEYS[1], 'views', 0)
redis.call('HSETNX', KEYS[1], 'copies', 0)
return redis.call('HMGET', KEYS[1], 'upvotes', 'downvotes', 'views', 'copies')
`)

// CounterStore keeps each item's counters in one Redis hash.
type CounterStore struct {
	rdb goredis.Cmdable
}

func NewCounterStore(rdb goredis.Cmdable) *CounterStore {
	return &CounterStore{rdb: rdb}
}

func (s *CounterStore) Get(ctx context.Context, itemID string) (domain.Counts, error) {
	vals, err := ensureCountersScript.Run(ctx, s.rdb, []string{counterKey(itemID)}).Slice()
	if err != nil {
		return domain.Counts{}, fmt.Errorf("%w: load counters: %w", domain.ErrStoreUnavailable, err)
	}
	return parseCounts(vals)
}

func (s *CounterStore) ApplyVoteDelta(ctx context.Context, itemID string, upvotes, downvotes int) (domain.Counts, error) {
	vals, err := applyVoteDeltaScript.Run(ctx, s.rdb, []string{counterKey(itemID)}, upvotes, downvotes).Slice()
	if err != nil {
		return domain.Counts{}, fmt.Errorf("%w: apply vote delta: %w", domain.ErrStoreUnavailable, err)
	}
	return parseCounts(vals)
}

func (s *CounterStore) Increment(ctx context.Context, itemID string, event domain.TrackedEvent) error {
	var field string
	switch event {
	case domain.EventView:
		field = "views"
	case domain.EventCopy:
		field = "copies"
	default:
		return fmt.Errorf("unknown tracked event %q", event)
	}

	if err := s.rdb.HIncrBy(ctx, counterKey(itemID), field, 1).Err(); err != nil {
		return fmt.Errorf("%w: increment %s: %w", domain.ErrStoreUnavailable, field, err)
	}
	return nil
}

func parseCounts(vals []any) (domain.Counts, error) {
	if len(vals) != len(counterFields) {
		return domain.Counts{}, fmt.Errorf("unexpected counter reply of length %d", len(vals))
	}

	out := make([]int64, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return domain.Counts{}, fmt.Errorf("counter %s: unexpected type %T", counterFields[i], v)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return domain.Counts{}, fmt.Errorf("counter %s: %w", counterFields[i], err)
		}
		out[i] = max(0, n)
	}

	return domain.Counts{Upvotes: out[0], Downvotes: out[1], Views: out[2], Copies: out[3]}, nil
}

func counterKey(itemID string) string {
	return "counters:" + itemID
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
