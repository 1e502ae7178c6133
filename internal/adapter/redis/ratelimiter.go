package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/rulehub/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes the window, records the request only when
// it fits, and reports the decision in one round trip.
// KEYS[1]=window key
// ARGV: [1]=now_ms, [2]=window_ms, [3]=max_requests, [4]=member
// Returns {allowed, count, reset_ms}.
var slidingWindowScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])

local allowed = 0
if count < limit then
  redis.call('ZADD', KEYS[1], now, ARGV[4])
  count = count + 1
  allowed = 1
end

local reset = now + window
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
if count > 0 then
  redis.call('PEXPIRE', KEYS[1], window)
end

return {allowed, count, reset}
`)

// SlidingWindowLimiter is a domain.RateLimiter shared by all replicas.
// Each window is a sorted set of accepted request timestamps.
type SlidingWindowLimiter struct {
	rdb    goredis.Scripter
	clock  clockwork.Clock
	quotas domain.Quotas
}

func NewSlidingWindowLimiter(rdb goredis.Scripter, quotas domain.Quotas, clock clockwork.Clock) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{rdb: rdb, clock: clock, quotas: quotas}
}

func (l *SlidingWindowLimiter) Check(ctx context.Context, category domain.RateLimitCategory, key string) (domain.RateLimitDecision, error) {
	quota, ok := l.quotas[category]
	if !ok {
		return domain.RateLimitDecision{}, fmt.Errorf("no quota configured for category %q", category)
	}

	res, err := slidingWindowScript.Run(ctx, l.rdb, []string{rateLimitKey(category, key)},
		l.clock.Now().UnixMilli(),
		quota.Window.Milliseconds(),
		quota.MaxRequests,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("%w: sliding window check: %w", domain.ErrStoreUnavailable, err)
	}
	if len(res) != 3 {
		return domain.RateLimitDecision{}, fmt.Errorf("sliding window check: unexpected reply %v", res)
	}

	d := domain.RateLimitDecision{
		Allowed: res[0] == 1,
		Limit:   quota.MaxRequests,
		ResetAt: msToTime(res[2]),
	}
	if d.Allowed {
		d.Remaining = max(0, quota.MaxRequests-int(res[1]))
	}
	return d, nil
}

func rateLimitKey(category domain.RateLimitCategory, key string) string {
	return "rate_limit:" + string(category) + ":" + key
}
