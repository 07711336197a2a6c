// Package ast defines the AST contract between the (external, out of
// core scope) parser and the rest of Lambdust, per spec §6:
//
//	Literal(value), Identifier(symbol, span), List(elements, span),
//	Vector(elements, span), Dotted(head, tail)
//
// The minimal reader in internal/reader produces exactly these node
// shapes; internal/syntax wraps them in syntax objects before the
// expander (internal/expander) ever sees them. Kept as its own package,
// adapted from the teacher's internal/ast Node/Visitor shape
// (TokenProvider, Accept(Visitor)), so that a future standalone parser
// can depend on this contract without depending on the reader.
package ast

import "github.com/akasaka-miraina/lambdust-sub001/internal/token"

// Node is the common interface implemented by every AST node.
type Node interface {
	Span() token.Span
}

// Literal wraps a self-evaluating datum: a boolean, character, number,
// or string read directly from source text.
type Literal struct {
	SourceSpan token.Span
	Value      any // bool, *big.Int, *big.Rat, float64, complex128, string, rune
}

func (l *Literal) Span() token.Span { return l.SourceSpan }

// Identifier is a bare symbol reference.
type Identifier struct {
	SourceSpan token.Span
	Name       string
}

func (i *Identifier) Span() token.Span { return i.SourceSpan }

// List is a proper list: `(a b c)`.
type List struct {
	SourceSpan token.Span
	Elements   []Node
}

func (l *List) Span() token.Span { return l.SourceSpan }

// Vector is a literal vector: `#(a b c)`.
type Vector struct {
	SourceSpan token.Span
	Elements   []Node
}

func (v *Vector) Span() token.Span { return v.SourceSpan }

// Dotted is an improper list: `(a b . c)`. Head holds the proper-list
// prefix (`a b`); Tail holds the final cdr (`c`).
type Dotted struct {
	SourceSpan token.Span
	Head       []Node
	Tail       Node
}

func (d *Dotted) Span() token.Span { return d.SourceSpan }

// Quoted wraps a datum following a reader abbreviation: 'x, `x, ,x, ,@x.
// The reader expands these to (quote x) / (quasiquote x) / (unquote x) /
// (unquote-splicing x) lists rather than a distinct node kind, but Quoted
// is kept available for callers (e.g. the prettyprinter, if one is
// added later) that want to recover the abbreviated spelling; the
// expander only ever sees the expanded List form.
type Quoted struct {
	SourceSpan token.Span
	Kind       QuoteKind
	Datum      Node
}

func (q *Quoted) Span() token.Span { return q.SourceSpan }

// QuoteKind distinguishes the four reader abbreviations.
type QuoteKind int

const (
	QuoteQuote QuoteKind = iota
	QuoteQuasiquote
	QuoteUnquote
	QuoteUnquoteSplicing
)

// Program is the root node produced by reading a full source file or a
// single top-level form list.
type Program struct {
	File  string
	Forms []Node
}

func (p *Program) Span() token.Span {
	if len(p.Forms) == 0 {
		return token.Span{File: p.File}
	}
	return token.Merge(p.Forms[0].Span(), p.Forms[len(p.Forms)-1].Span())
}
