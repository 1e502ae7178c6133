package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pscheid92/rulehub/internal/adapter/metrics"
	"github.com/pscheid92/rulehub/internal/domain"
)

const (
	selectCountersSQL = `SELECT upvotes, downvotes, views, copies FROM item_counters WHERE item_id = $1`

	insertCountersSQL = `INSERT INTO item_counters (item_id) VALUES ($1) ON CONFLICT (item_id) DO NOTHING`

	applyVoteDeltaSQL = `
INSERT INTO item_counters (item_id, upvotes, downvotes)
VALUES ($1, GREATEST(0, $2::bigint), GREATEST(0, $3::bigint))
ON CONFLICT (item_id) DO UPDATE SET
    upvotes    = GREATEST(0, item_counters.upvotes + $2::bigint),
    downvotes  = GREATEST(0, item_counters.downvotes + $3::bigint),
    updated_at = now()
RETURNING upvotes, downvotes, views, copies`

	incrementViewsSQL = `
INSERT INTO item_counters (item_id, views) VALUES ($1, 1)
ON CONFLICT (item_id) DO UPDATE SET views = item_counters.views + 1, updated_at = now()`

	incrementCopiesSQL = `
INSERT INTO item_counters (item_id, copies) VALUES ($1, 1)
ON CONFLICT (item_id) DO UPDATE SET copies = item_counters.copies + 1, updated_at = now()`
)

// querier is the subset of *pgxpool.Pool the repo needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CounterRepo is the durable domain.CounterStore. Each write is a single
// upsert, so deltas are applied atomically and clamped in SQL.
type CounterRepo struct {
	db querier
	cb circuitbreaker.CircuitBreaker[any]
}

// NewCounterRepo wraps db in a circuit breaker that opens at a 60% failure
// rate over at least 5 queries in 10s and probes again after 30s. m may be nil.
func NewCounterRepo(db querier, m *metrics.CircuitBreakerMetrics) *CounterRepo {
	return newCounterRepo(db, m, 30*time.Second)
}

func newCounterRepo(db querier, m *metrics.CircuitBreakerMetrics, delay time.Duration) *CounterRepo {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "postgres",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.Transition("postgres", e.NewState.String(), stateToFloat(e.NewState))
			}
		}).
		Build()

	return &CounterRepo{db: db, cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (r *CounterRepo) Get(ctx context.Context, itemID string) (domain.Counts, error) {
	var counts domain.Counts
	err := r.guarded(func() error {
		var err error
		counts, err = r.scan(r.db.QueryRow(ctx, selectCountersSQL, itemID))
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		if _, err := r.db.Exec(ctx, insertCountersSQL, itemID); err != nil {
			return err
		}
		counts, err = r.scan(r.db.QueryRow(ctx, selectCountersSQL, itemID))
		return err
	})
	if err != nil {
		return domain.Counts{}, fmt.Errorf("%w: load counters: %w", domain.ErrStoreUnavailable, err)
	}
	return counts, nil
}

func (r *CounterRepo) ApplyVoteDelta(ctx context.Context, itemID string, upvotes, downvotes int) (domain.Counts, error) {
	var counts domain.Counts
	err := r.guarded(func() error {
		var err error
		counts, err = r.scan(r.db.QueryRow(ctx, applyVoteDeltaSQL, itemID, upvotes, downvotes))
		return err
	})
	if err != nil {
		return domain.Counts{}, fmt.Errorf("%w: apply vote delta: %w", domain.ErrStoreUnavailable, err)
	}
	return counts, nil
}

func (r *CounterRepo) Increment(ctx context.Context, itemID string, event domain.TrackedEvent) error {
	var query string
	switch event {
	case domain.EventView:
		query = incrementViewsSQL
	case domain.EventCopy:
		query = incrementCopiesSQL
	default:
		return fmt.Errorf("unknown tracked event %q", event)
	}

	err := r.guarded(func() error {
		_, err := r.db.Exec(ctx, query, itemID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: increment %s: %w", domain.ErrStoreUnavailable, event, err)
	}
	return nil
}

func (r *CounterRepo) scan(row pgx.Row) (domain.Counts, error) {
	var c domain.Counts
	err := row.Scan(&c.Upvotes, &c.Downvotes, &c.Views, &c.Copies)
	return c, err
}

func (r *CounterRepo) guarded(fn func() error) error {
	if !r.cb.TryAcquirePermit() {
		return circuitbreaker.ErrOpen
	}
	if err := fn(); err != nil {
		r.cb.RecordError(err)
		return err
	}
	r.cb.RecordSuccess()
	return nil
}
