// Package token defines source positions shared by the reader, the
// expander, and the diagnostics package.
package token

import "fmt"

// Position is a single point in a source file.
type Position struct {
	Line   int // 1-based
	Column int // 1-based, in runes
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open range of source text, used on every AST node and
// syntax object so diagnostics can point at the exact offending text.
type Span struct {
	File  string
	Start Position
	End   Position
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%s-%s", s.Start, s.End)
	}
	return fmt.Sprintf("%s:%s-%s", s.File, s.Start, s.End)
}

// Merge returns the smallest span covering both a and b. A zero Span on
// either side is ignored, which lets callers merge spans incrementally
// without special-casing the first element.
func Merge(a, b Span) Span {
	if a == (Span{}) {
		return b
	}
	if b == (Span{}) {
		return a
	}
	out := a
	if b.Start.Line < out.Start.Line || (b.Start.Line == out.Start.Line && b.Start.Column < out.Start.Column) {
		out.Start = b.Start
	}
	if b.End.Line > out.End.Line || (b.End.Line == out.End.Line && b.End.Column > out.End.Column) {
		out.End = b.End
	}
	if out.File == "" {
		out.File = b.File
	}
	return out
}
