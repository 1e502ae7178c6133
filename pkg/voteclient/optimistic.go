package voteclient

import "context"

// Cell holds a value that can be read and replaced as a unit.
type Cell[S any] interface {
	Load() S
	Store(S)
}

// Transaction is an optimistic update around a remote call. Apply computes the
// value shown while Call is pending; Commit folds the call's result into the
// snapshot-derived value. Commit may be nil, keeping the applied value.
type Transaction[S, R any] struct {
	Apply  func(S) S
	Call   func(ctx context.Context) (R, error)
	Commit func(applied S, result R) S
}

// RunOptimistic snapshots cell, stores the applied value, awaits the call and
// then commits or restores the snapshot exactly.
func RunOptimistic[S, R any](ctx context.Context, cell Cell[S], tx Transaction[S, R]) (S, R, error) {
	snapshot := cell.Load()
	applied := tx.Apply(snapshot)
	cell.Store(applied)

	res, err := tx.Call(ctx)
	if err != nil {
		cell.Store(snapshot)
		return snapshot, res, err
	}

	final := applied
	if tx.Commit != nil {
		final = tx.Commit(applied, res)
	}
	cell.Store(final)
	return final, res, nil
}
