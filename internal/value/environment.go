package value

import (
	"fmt"

	"github.com/akasaka-miraina/lambdust-sub001/internal/symbol"
)

// Frame is one lexical scope: a set of bindings plus a pointer to the
// enclosing scope (spec §4.E). Generation is bumped on every Define so a
// Frame's lookup cache entries can be invalidated cheaply without
// walking them: a cached entry is valid only while the Frame it was
// resolved in still has the generation the cache entry was stamped with.
// Grounded on the teacher's internal/evaluator/environment.go parent-
// pointer Environment, generalized with the generation-stamped cache
// spec §4.E's performance contract asks for ("O(1) amortized lookup").
type Frame struct {
	parent     *Frame
	bindings   map[symbol.ID]Value
	generation uint64

	cache      map[symbol.ID]cacheEntry
	cacheOrder []symbol.ID // LRU eviction order, oldest first
	cacheCap   int
}

type cacheEntry struct {
	frame      *Frame
	generation uint64
}

const defaultCacheCap = 8

// NewFrame creates a fresh lexical scope whose parent is enclosing (nil
// for the global/top-level frame).
func NewFrame(enclosing *Frame) *Frame {
	return &Frame{
		parent:   enclosing,
		bindings: make(map[symbol.ID]Value),
		cacheCap: defaultCacheCap,
	}
}

// Define creates or overwrites a binding in this frame and invalidates
// any cache entries that resolved through it, by bumping generation.
func (f *Frame) Define(id symbol.ID, v Value) {
	f.bindings[id] = v
	f.generation++
}

// Lookup resolves id by walking the parent chain, consulting and
// maintaining this frame's lookup cache at each hop so that repeated
// lookups of free variables in a hot loop (e.g. a tail-recursive loop
// referencing an outer accumulator) do not re-walk the whole chain.
func (f *Frame) Lookup(id symbol.ID) (Value, bool) {
	if v, ok := f.bindings[id]; ok {
		return v, true
	}
	if entry, ok := f.cache[id]; ok {
		if entry.frame.generation == entry.generation {
			if v, ok := entry.frame.bindings[id]; ok {
				f.touchCache(id)
				return v, true
			}
		}
		delete(f.cache, id)
	}
	for p := f.parent; p != nil; p = p.parent {
		if v, ok := p.bindings[id]; ok {
			f.cacheResult(id, p)
			return v, true
		}
	}
	return nil, false
}

func (f *Frame) cacheResult(id symbol.ID, owner *Frame) {
	if f.cache == nil {
		f.cache = make(map[symbol.ID]cacheEntry)
	}
	if _, exists := f.cache[id]; !exists {
		if len(f.cacheOrder) >= f.cacheCap {
			oldest := f.cacheOrder[0]
			f.cacheOrder = f.cacheOrder[1:]
			delete(f.cache, oldest)
		}
		f.cacheOrder = append(f.cacheOrder, id)
	}
	f.cache[id] = cacheEntry{frame: owner, generation: owner.generation}
}

func (f *Frame) touchCache(id symbol.ID) {
	for i, cid := range f.cacheOrder {
		if cid == id {
			f.cacheOrder = append(f.cacheOrder[:i], f.cacheOrder[i+1:]...)
			f.cacheOrder = append(f.cacheOrder, id)
			return
		}
	}
}

// Set mutates an existing binding, walking the parent chain (R7RS
// `set!` semantics: assigning to an unbound identifier is an error). It
// bumps the generation of whichever frame actually owns the binding.
func (f *Frame) Set(id symbol.ID, v Value) error {
	for p := f; p != nil; p = p.parent {
		if _, ok := p.bindings[id]; ok {
			p.bindings[id] = v
			p.generation++
			return nil
		}
	}
	return fmt.Errorf("unbound variable")
}

// Parent returns the enclosing frame, or nil at the top level.
func (f *Frame) Parent() *Frame { return f.parent }

// Depth reports how many frames separate f from the top-level frame.
func (f *Frame) Depth() int {
	n := 0
	for p := f.parent; p != nil; p = p.parent {
		n++
	}
	return n
}
