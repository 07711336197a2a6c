package lambdust

import (
	"fmt"

	"github.com/akasaka-miraina/lambdust-sub001/internal/persist"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// EnablePersistence opens a SQLite-backed key/value store (internal/persist)
// at path and defines four Scheme primitives against it: persist-put!, persist-get, persist-delete!, and
// persist-close!. Returns the Store so the host can Close it directly
// too (e.g. on process shutdown).
func (r *Runtime) EnablePersistence(path string) (*persist.Store, error) {
	store, err := persist.Open(path)
	if err != nil {
		return nil, err
	}

	r.Define("persist-put!", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("persist-put! expects 2 arguments, got %d", len(args))
		}
		key, ok := args[0].(*value.String)
		if !ok {
			return nil, fmt.Errorf("persist-put!: key must be a string")
		}
		if err := store.Put(key.Go(), args[1]); err != nil {
			return nil, err
		}
		return value.Unspecified, nil
	})

	r.Define("persist-get", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("persist-get expects 1 argument, got %d", len(args))
		}
		key, ok := args[0].(*value.String)
		if !ok {
			return nil, fmt.Errorf("persist-get: key must be a string")
		}
		raw, found, err := store.Get(key.Go())
		if err != nil {
			return nil, err
		}
		if !found {
			return value.Bool(false), nil
		}
		return value.NewString(raw), nil
	})

	r.Define("persist-delete!", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("persist-delete! expects 1 argument, got %d", len(args))
		}
		key, ok := args[0].(*value.String)
		if !ok {
			return nil, fmt.Errorf("persist-delete!: key must be a string")
		}
		return value.Unspecified, store.Delete(key.Go())
	})

	r.Define("persist-close!", func(args []value.Value) (value.Value, error) {
		return value.Unspecified, store.Close()
	})

	return store, nil
}
