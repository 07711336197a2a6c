package concurrency_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasaka-miraina/lambdust-sub001/internal/concurrency"
	"github.com/akasaka-miraina/lambdust-sub001/internal/config"
	"github.com/akasaka-miraina/lambdust-sub001/internal/evaluator"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// TestParallelMapBoundedConcurrency exercises spec §5's parallel-map
// primitive: every element is mapped through proc on its own worker,
// results return in input order regardless of completion order.
func TestParallelMapBoundedConcurrency(t *testing.T) {
	ev := evaluator.New(config.Default())
	pool := concurrency.NewPool(ev, 2)

	square := &evaluator.Primitive{Name: "square", Fn: func(args []value.Value) (value.Value, error) {
		n := args[0].(value.Fixnum)
		return value.Fixnum(int64(n) * int64(n)), nil
	}}

	results, err := pool.ParallelMap(context.Background(), square, []value.Value{
		value.Fixnum(1), value.Fixnum(2), value.Fixnum(3), value.Fixnum(4),
	})
	require.NoError(t, err)
	require.Equal(t, []value.Value{
		value.Fixnum(1), value.Fixnum(4), value.Fixnum(9), value.Fixnum(16),
	}, results)
}

// TestDispatchUsesAnIndependentWorker confirms a Dispatch'd call runs
// against a freshly forked evaluator with its own identity, not the
// root evaluator.
func TestDispatchUsesAnIndependentWorker(t *testing.T) {
	ev := evaluator.New(config.Default())
	pool := concurrency.NewPool(ev, 1)

	var sawID string
	_, err := pool.Dispatch(context.Background(), func(w *concurrency.Worker) (value.Value, error) {
		sawID = w.ID
		return value.Unspecified, nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, sawID)
}

// TestTransactionalCellCASRetryConverges runs many concurrent
// increments through Update and checks the final value reflects every
// one of them, proving the CAS retry loop does not silently drop a
// racing writer.
func TestTransactionalCellCASRetryConverges(t *testing.T) {
	cell := concurrency.NewTransactionalCell(value.Fixnum(0))

	const writers = 50
	done := make(chan struct{}, writers)
	for i := 0; i < writers; i++ {
		go func() {
			cell.Update(func(old value.Value) value.Value {
				return value.Fixnum(int64(old.(value.Fixnum)) + 1)
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < writers; i++ {
		<-done
	}
	require.Equal(t, value.Fixnum(writers), cell.Read())
}
