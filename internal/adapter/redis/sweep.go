package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPattern = "rate_limit:*"
	sweepScanCount      = 100
)

// SweepResult summarises one SweepOrphanedWindows run.
type SweepResult struct {
	Scanned  int
	Orphaned int
	Deleted  int
	Duration time.Duration
}

// SweepOrphanedWindows deletes sliding-window keys that carry no expiry.
// The limiter script always sets one, so such keys are leftovers from a
// manual edit or an older deployment and would otherwise live forever.
// With dryRun set, keys are only counted.
func SweepOrphanedWindows(ctx context.Context, rdb goredis.Cmdable, dryRun bool) (SweepResult, error) {
	start := time.Now()
	var res SweepResult

	slog.Info("Starting rate limit sweep", "dry_run", dryRun)

	var cursor uint64
	for {
		keys, next, err := rdb.Scan(ctx, cursor, rateLimitKeyPattern, sweepScanCount).Result()
		if err != nil {
			return res, fmt.Errorf("scan failed: %w", err)
		}

		for _, key := range keys {
			res.Scanned++

			ttl, err := rdb.PTTL(ctx, key).Result()
			if err != nil {
				return res, fmt.Errorf("failed to read ttl of %s: %w", key, err)
			}
			// -1 means no expiry; -2 means the key vanished since the scan.
			if ttl != -1 {
				continue
			}
			res.Orphaned++

			if dryRun {
				slog.Debug("Would delete orphaned window", "key", key)
				continue
			}
			if err := rdb.Del(ctx, key).Err(); err != nil {
				return res, fmt.Errorf("failed to delete %s: %w", key, err)
			}
			res.Deleted++
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	res.Duration = time.Since(start)
	slog.Info("Rate limit sweep summary",
		"scanned", res.Scanned,
		"orphaned", res.Orphaned,
		"deleted", res.Deleted,
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}
