// Package syntax implements the S (syntax object) layer that sits
// between the reader and the expander: every datum the expander touches
// is wrapped with a scope set so the hygiene algorithm (internal/
// expander) can tell apart identifiers that read identically but were
// introduced by different macro expansions (spec §4.M, "hygienic
// macro expansion" / "sets of scopes").
//
// Grounded on the teacher's internal/ast wrapping discipline (every node
// carries a TokenProvider for provenance) generalized from source
// position to macro-expansion provenance, since the teacher has no
// macro system of its own to adapt directly.
package syntax

import (
	"github.com/akasaka-miraina/lambdust-sub001/internal/ast"
	"github.com/akasaka-miraina/lambdust-sub001/internal/token"
)

// ScopeID names one lexical-introduction event: a macro expansion, or
// the top-level program scope. Identifiers carry a *set* of ScopeIDs;
// two identifier occurrences refer to the same binding only if their
// scope sets are compatible, per the "sets of scopes" hygiene algorithm.
type ScopeID uint64

var nextScope uint64

// NewScope allocates a fresh ScopeID, used once per macro expansion so
// every identifier the expansion introduces carries a scope no
// surrounding or use-site code could already have.
func NewScope() ScopeID {
	nextScope++
	return ScopeID(nextScope)
}

// ScopeSet is an immutable set of ScopeIDs attached to a syntax object.
// Represented as a sorted slice rather than a map: scope sets are small
// (a handful of enclosing macro expansions deep) and compared far more
// often than mutated, so linear scan beats map overhead here.
type ScopeSet []ScopeID

func (s ScopeSet) has(id ScopeID) bool {
	for _, x := range s {
		if x == id {
			return true
		}
	}
	return false
}

// Add returns a new ScopeSet with id added, leaving s untouched.
func (s ScopeSet) Add(id ScopeID) ScopeSet {
	if s.has(id) {
		return s
	}
	out := make(ScopeSet, len(s), len(s)+1)
	copy(out, s)
	return append(out, id)
}

// Subset reports whether every scope in s also appears in other —
// the core hygiene test: an identifier binds the reference whose scope
// set is the largest subset match (spec §4.M).
func (s ScopeSet) Subset(other ScopeSet) bool {
	for _, id := range s {
		if !other.has(id) {
			return false
		}
	}
	return true
}

// Datum is a syntax-object-wrapped AST node: the same shapes the reader
// produces (ast.Literal/Identifier/List/Vector/Dotted), plus a scope set
// and, for Identifier, a name that hygiene may have alpha-renamed.
type Datum struct {
	Node   ast.Node
	Scopes ScopeSet
	// Name overrides the identifier's apparent name after hygienic
	// renaming; empty for non-Identifier datums and for Identifiers
	// still using their source spelling.
	Name string
}

func (d Datum) Span() token.Span { return d.Node.Span() }

// IdentifierName returns the effective name of an Identifier datum,
// honoring a hygienic rename if one was applied.
func (d Datum) IdentifierName() (string, bool) {
	id, ok := d.Node.(*ast.Identifier)
	if !ok {
		return "", false
	}
	if d.Name != "" {
		return d.Name, true
	}
	return id.Name, true
}

// Wrap attaches scopes to an AST node read from source. It is the entry
// point the expander calls before macro-expanding a freshly read
// top-level form; Elements() re-derives wrapped children on demand so
// Wrap itself stays O(1).
func Wrap(n ast.Node, scopes ScopeSet) Datum {
	return Datum{Node: n, Scopes: scopes}
}

// Elements returns the wrapped children of a List/Vector datum, applying
// scopes transitively. Re-wrapping on each call keeps Datum itself
// free of a child-cache field; the expander calls this at most once per
// macro-expansion step per form.
func (d Datum) Elements() []Datum {
	switch t := d.Node.(type) {
	case *ast.List:
		out := make([]Datum, len(t.Elements))
		for i, e := range t.Elements {
			out[i] = Wrap(e, d.Scopes)
		}
		return out
	case *ast.Vector:
		out := make([]Datum, len(t.Elements))
		for i, e := range t.Elements {
			out[i] = Wrap(e, d.Scopes)
		}
		return out
	default:
		return nil
	}
}

// AddScope returns d with id added to its scope set, propagated to
// children lazily (Elements() re-derives with the updated scope set).
func (d Datum) AddScope(id ScopeID) Datum {
	d.Scopes = d.Scopes.Add(id)
	return d
}

// IsList reports whether the wrapped node is a List.
func (d Datum) IsList() bool {
	_, ok := d.Node.(*ast.List)
	return ok
}

// IsIdentifier reports whether the wrapped node is an Identifier.
func (d Datum) IsIdentifier() bool {
	_, ok := d.Node.(*ast.Identifier)
	return ok
}
