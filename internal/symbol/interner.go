// Package symbol implements the S component of the runtime: a
// concurrency-safe, grow-only string interner giving every Scheme symbol
// a canonical identity (spec §3, §4.S).
//
// Two symbols with the same spelling always share the same ID, so `eq?`
// on symbols reduces to comparing two uint32s. Interning never removes an
// entry: the table only grows for the lifetime of the runtime, matching
// the teacher's grow-only symbol table discipline adapted from
// internal/symbols/symbol_table_core.go (there keyed by scoped name and
// compiler metadata; here reduced to pure name<->id identity since a
// Scheme symbol carries no compile-time type or scope information of its
// own — that lives in the environment, not the symbol).
package symbol

import "sync"

// ID is the canonical identity of an interned symbol.
type ID uint32

// Interner maps strings to IDs and back. The zero value is not usable;
// construct with New or use the package-level Default.
type Interner struct {
	mu      sync.RWMutex
	byName  map[string]ID
	byID    []string
}

// New creates an empty interner.
func New() *Interner {
	return &Interner{byName: make(map[string]ID, 256)}
}

// Intern returns the canonical ID for name, allocating a new one the
// first time name is seen. Safe for concurrent use by multiple producers
// (spec §4.S: "Concurrency-safe: multiple producers may intern").
func (in *Interner) Intern(name string) ID {
	in.mu.RLock()
	id, ok := in.byName[name]
	in.mu.RUnlock()
	if ok {
		return id
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	// Re-check: another writer may have interned name while we waited for
	// the write lock.
	if id, ok := in.byName[name]; ok {
		return id
	}
	id = ID(len(in.byID))
	in.byID = append(in.byID, name)
	in.byName[name] = id
	return id
}

// Name returns the string an ID was interned from. Panics if id was never
// issued by this Interner — a programming error, not a recoverable
// Scheme-level condition.
func (in *Interner) Name(id ID) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.byID[id]
}

// Lookup returns the ID for name without interning it, reporting whether
// name has been seen before.
func (in *Interner) Lookup(name string) (ID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.byName[name]
	return id, ok
}

// Len reports how many distinct symbols have been interned.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.byID)
}

// Default is the process-wide interner used when no explicit Runtime
// interner is threaded through (e.g. by the reader before a Runtime
// exists). Per spec §9, the interner is one of the two pieces of
// sanctioned global mutable state.
var Default = New()
