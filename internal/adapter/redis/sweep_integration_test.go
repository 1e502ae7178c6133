package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepOrphanedWindows(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.ZAdd(ctx, "rate_limit:voting:orphan", goredis.Z{Score: 1, Member: "a"}).Err())
	require.NoError(t, client.ZAdd(ctx, "rate_limit:voting:live", goredis.Z{Score: 2, Member: "b"}).Err())
	require.NoError(t, client.PExpire(ctx, "rate_limit:voting:live", time.Minute).Err())
	require.NoError(t, client.Set(ctx, "counters:item", "untouched", 0).Err())

	dry, err := SweepOrphanedWindows(ctx, client, true)
	require.NoError(t, err)
	assert.Equal(t, 2, dry.Scanned)
	assert.Equal(t, 1, dry.Orphaned)
	assert.Equal(t, 0, dry.Deleted)
	assert.Equal(t, int64(1), client.Exists(ctx, "rate_limit:voting:orphan").Val())

	res, err := SweepOrphanedWindows(ctx, client, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	assert.Equal(t, int64(0), client.Exists(ctx, "rate_limit:voting:orphan").Val())
	assert.Equal(t, int64(1), client.Exists(ctx, "rate_limit:voting:live").Val())
	assert.Equal(t, int64(1), client.Exists(ctx, "counters:item").Val())
}
