package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pscheid92/rulehub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	vals []int64
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		*(d.(*int64)) = r.vals[i]
	}
	return nil
}

type fakeQuerier struct {
	execFn     func(sql string, args ...any) error
	queryRowFn func(sql string, args ...any) pgx.Row
	calls      int
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.calls++
	if q.execFn != nil {
		return pgconn.CommandTag{}, q.execFn(sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.calls++
	return q.queryRowFn(sql, args...)
}

func TestCounterRepo_GetInsertsOnMiss(t *testing.T) {
	inserted := false
	q := &fakeQuerier{
		execFn: func(sql string, args ...any) error {
			assert.Equal(t, insertCountersSQL, sql)
			inserted = true
			return nil
		},
		queryRowFn: func(string, ...any) pgx.Row {
			if !inserted {
				return fakeRow{err: pgx.ErrNoRows}
			}
			return fakeRow{vals: []int64{0, 0, 0, 0}}
		},
	}

	c, err := NewCounterRepo(q, nil).Get(context.Background(), "item")

	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, domain.Counts{}, c)
}

func TestCounterRepo_ErrorsAreStoreUnavailable(t *testing.T) {
	q := &fakeQuerier{
		queryRowFn: func(string, ...any) pgx.Row { return fakeRow{err: errors.New("connection reset")} },
	}

	_, err := NewCounterRepo(q, nil).ApplyVoteDelta(context.Background(), "item", 1, 0)

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorContains(t, err, "connection reset")
}

func TestCounterRepo_BreakerOpensAndFailsFast(t *testing.T) {
	q := &fakeQuerier{
		execFn: func(string, ...any) error { return errors.New("connection refused") },
	}
	repo := newCounterRepo(q, nil, time.Minute)
	ctx := context.Background()

	for range 5 {
		_ = repo.Increment(ctx, "item", domain.EventView)
	}
	require.Equal(t, 5, q.calls)

	err := repo.Increment(ctx, "item", domain.EventView)

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 5, q.calls, "open breaker must not reach the database")
}

func TestCounterRepo_UnknownEvent(t *testing.T) {
	err := NewCounterRepo(&fakeQuerier{}, nil).Increment(context.Background(), "item", domain.TrackedEvent("share"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "insert", queryName(applyVoteDeltaSQL))
	assert.Equal(t, "select", queryName(selectCountersSQL))
	assert.Equal(t, "unknown", queryName("  "))
}

func TestExtractSSLMode(t *testing.T) {
	assert.Equal(t, "disable", extractSSLMode("postgres://u:p@h/db?sslmode=disable"))
	assert.Equal(t, "prefer (default)", extractSSLMode("postgres://u:p@h/db"))
}
