package postgres

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/rulehub/internal/adapter/metrics"
	"github.com/pscheid92/rulehub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_AreIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrationsWithLock(ctx, pool))

	version, err := SchemaVersion(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, int32(1), version)
}

func TestConcurrentMigrations(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- RunMigrationsWithLock(ctx, pool)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestCounterRepo_GetCreatesZeroRow(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewCounterRepo(pool, nil)
	ctx := context.Background()

	c, err := repo.Get(ctx, "item")
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{}, c)

	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM item_counters WHERE item_id = 'item'").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestCounterRepo_ApplyVoteDelta(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewCounterRepo(pool, nil)
	ctx := context.Background()

	c, err := repo.ApplyVoteDelta(ctx, "item", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Upvotes: 1}, c)

	c, err = repo.ApplyVoteDelta(ctx, "item", -1, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Downvotes: 1}, c)

	c, err = repo.ApplyVoteDelta(ctx, "item", -1, -1)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{}, c, "counters clamp at zero")
}

func TestCounterRepo_FirstWriteIsANegativeDelta(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewCounterRepo(pool, nil)

	c, err := repo.ApplyVoteDelta(context.Background(), "fresh", -1, 0)

	require.NoError(t, err)
	assert.Equal(t, domain.Counts{}, c)
}

func TestCounterRepo_Increment(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewCounterRepo(pool, nil)
	ctx := context.Background()

	require.NoError(t, repo.Increment(ctx, "item", domain.EventView))
	require.NoError(t, repo.Increment(ctx, "item", domain.EventView))
	require.NoError(t, repo.Increment(ctx, "item", domain.EventCopy))

	c, err := repo.Get(ctx, "item")
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Views: 2, Copies: 1}, c)
}

func TestCounterRepo_ConcurrentDeltas(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewCounterRepo(pool, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyVoteDelta(ctx, "item", 1, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := repo.Get(ctx, "item")
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.Upvotes)
}

func TestConnect_TracerRecordsQueries(t *testing.T) {
	_ = setupTestDB(t)
	m := metrics.NewDBMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	pool, err := Connect(ctx, testDatabaseURL, NewMetricsTracer(m))
	require.NoError(t, err)
	defer pool.Close()

	_, err = NewCounterRepo(pool, nil).Get(ctx, "traced")
	require.NoError(t, err)

	assert.Positive(t, testutil.CollectAndCount(m.QueryDuration))
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "://nope", nil)
	assert.Error(t, err)
}
