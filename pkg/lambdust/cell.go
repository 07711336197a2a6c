package lambdust

import (
	"fmt"

	"github.com/akasaka-miraina/lambdust-sub001/internal/concurrency"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// EnableTransactionalCells defines make-transactional-cell, cell-ref,
// and cell-update! against internal/concurrency.TransactionalCell
// (spec §5's CAS-retry-loop STM primitive), so Scheme code running
// across a Pool's workers can share mutable state without a lock.
func (r *Runtime) EnableTransactionalCells() {
	r.Define("make-transactional-cell", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("make-transactional-cell expects 1 argument, got %d", len(args))
		}
		cell := concurrency.NewTransactionalCell(args[0])
		return &value.ForeignRef{Native: cell, Label: "transactional-cell"}, nil
	})

	r.Define("cell-ref", func(args []value.Value) (value.Value, error) {
		cell, err := asCell(args, "cell-ref")
		if err != nil {
			return nil, err
		}
		return cell.Read(), nil
	})

	r.Define("cell-update!", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("cell-update! expects 2 arguments, got %d", len(args))
		}
		cell, err := asCell(args[:1], "cell-update!")
		if err != nil {
			return nil, err
		}
		proc := args[1]
		var applyErr error
		result := cell.Update(func(old value.Value) value.Value {
			next, err := r.Apply(proc, []value.Value{old})
			if err != nil {
				applyErr = err
				return old
			}
			return next
		})
		if applyErr != nil {
			return nil, applyErr
		}
		return result, nil
	})
}

func asCell(args []value.Value, who string) (*concurrency.TransactionalCell, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s expects 1 argument, got %d", who, len(args))
	}
	ref, ok := args[0].(*value.ForeignRef)
	if !ok {
		return nil, fmt.Errorf("%s: not a transactional cell", who)
	}
	cell, ok := ref.Native.(*concurrency.TransactionalCell)
	if !ok {
		return nil, fmt.Errorf("%s: not a transactional cell", who)
	}
	return cell, nil
}
