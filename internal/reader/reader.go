// Package reader implements the minimal S-expression reader described in
// SPEC_FULL.md §1.1: the smallest possible bridge from UTF-8 source text
// to the AST contract of spec §6 (internal/ast). It exists only so
// Runtime.Eval and the test suite have something to turn Scheme source
// text into an ast.Node; a full tooling-grade parser (error recovery,
// incremental reparse, LSP integration) is explicitly out of core scope
// (spec §1) and is not attempted here.
//
// The scanning/position-tracking style (rune-at-a-time cursor with
// line/column bookkeeping) is adapted from the teacher's internal/lexer;
// the grammar itself is new, since Lambdust reads S-expressions rather
// than the teacher's own surface syntax.
package reader

import (
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/akasaka-miraina/lambdust-sub001/internal/ast"
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/token"
)

// Reader turns source text into a sequence of top-level ast.Node forms.
type Reader struct {
	file   string
	src    string
	pos    int // byte offset of r.ch
	next   int // byte offset to read after r.ch
	ch     rune
	line   int
	column int
}

// New creates a Reader over src, attributing diagnostics to file.
func New(file, src string) *Reader {
	r := &Reader{file: file, src: src, line: 1, column: 0}
	r.advance()
	return r
}

// ReadProgram reads every top-level form in the source text.
func (r *Reader) ReadProgram() (*ast.Program, error) {
	var forms []ast.Node
	for {
		r.skipAtmosphere()
		if r.ch == 0 {
			break
		}
		form, err := r.readDatum()
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return &ast.Program{File: r.file, Forms: forms}, nil
}

// ReadDatum reads exactly one top-level form, for contexts (like the REPL
// contract, out of core scope) that want one form at a time.
func (r *Reader) ReadDatum() (ast.Node, error) {
	r.skipAtmosphere()
	if r.ch == 0 {
		return nil, nil
	}
	return r.readDatum()
}

func (r *Reader) pos1() token.Position { return token.Position{Line: r.line, Column: r.column} }

func (r *Reader) advance() {
	if r.ch == '\n' {
		r.line++
		r.column = 0
	}
	if r.next >= len(r.src) {
		r.ch = 0
		r.pos = len(r.src)
		return
	}
	ru, w := utf8.DecodeRuneInString(r.src[r.next:])
	r.ch = ru
	r.pos = r.next
	r.next += w
	r.column++
}

func (r *Reader) peek() rune {
	if r.next >= len(r.src) {
		return 0
	}
	ru, _ := utf8.DecodeRuneInString(r.src[r.next:])
	return ru
}

func (r *Reader) skipAtmosphere() {
	for {
		switch {
		case unicode.IsSpace(r.ch):
			r.advance()
		case r.ch == ';':
			for r.ch != '\n' && r.ch != 0 {
				r.advance()
			}
		case r.ch == '#' && r.peek() == '|':
			r.advance()
			r.advance()
			depth := 1
			for depth > 0 && r.ch != 0 {
				if r.ch == '#' && r.peek() == '|' {
					depth++
					r.advance()
					r.advance()
				} else if r.ch == '|' && r.peek() == '#' {
					depth--
					r.advance()
					r.advance()
				} else {
					r.advance()
				}
			}
		default:
			return
		}
	}
}

func (r *Reader) errorf(start token.Position, format string, args ...any) error {
	sp := token.Span{File: r.file, Start: start, End: r.pos1()}
	return diagnostics.New(diagnostics.CodeMalformedForm, sp, format, args...)
}

func (r *Reader) readDatum() (ast.Node, error) {
	r.skipAtmosphere()
	start := r.pos1()
	switch {
	case r.ch == 0:
		return nil, r.errorf(start, "unexpected end of input")
	case r.ch == '(' || r.ch == '[':
		return r.readList(r.ch)
	case r.ch == ')' || r.ch == ']':
		return nil, r.errorf(start, "unexpected %q", r.ch)
	case r.ch == '\'':
		r.advance()
		return r.readAbbrev(start, ast.QuoteQuote, "quote")
	case r.ch == '`':
		r.advance()
		return r.readAbbrev(start, ast.QuoteQuasiquote, "quasiquote")
	case r.ch == ',':
		r.advance()
		if r.ch == '@' {
			r.advance()
			return r.readAbbrev(start, ast.QuoteUnquoteSplicing, "unquote-splicing")
		}
		return r.readAbbrev(start, ast.QuoteUnquote, "unquote")
	case r.ch == '#':
		return r.readHash(start)
	case r.ch == '"':
		return r.readString(start)
	default:
		return r.readAtom(start)
	}
}

func (r *Reader) readAbbrev(start token.Position, kind ast.QuoteKind, keyword string) (ast.Node, error) {
	datum, err := r.readDatum()
	if err != nil {
		return nil, err
	}
	sp := token.Span{File: r.file, Start: start, End: datum.Span().End}
	// Expand to (keyword datum) so the expander only ever sees kernel-ish
	// list shapes, per spec §4.M's rewrite-to-a-small-kernel contract.
	return &ast.List{
		SourceSpan: sp,
		Elements: []ast.Node{
			&ast.Identifier{SourceSpan: sp, Name: keyword},
			datum,
		},
	}, nil
}

func (r *Reader) readList(open rune) (ast.Node, error) {
	start := r.pos1()
	close := ')'
	if open == '[' {
		close = ']'
	}
	r.advance() // consume open paren
	var elems []ast.Node
	var tail ast.Node
	for {
		r.skipAtmosphere()
		if r.ch == 0 {
			return nil, r.errorf(start, "unterminated list")
		}
		if r.ch == close || r.ch == ')' || r.ch == ']' {
			r.advance()
			break
		}
		if r.ch == '.' && isDelimiter(r.peek()) {
			r.advance()
			d, err := r.readDatum()
			if err != nil {
				return nil, err
			}
			tail = d
			r.skipAtmosphere()
			if r.ch != close && r.ch != ')' && r.ch != ']' {
				return nil, r.errorf(start, "malformed dotted list")
			}
			r.advance()
			break
		}
		d, err := r.readDatum()
		if err != nil {
			return nil, err
		}
		elems = append(elems, d)
	}
	end := r.pos1()
	sp := token.Span{File: r.file, Start: start, End: end}
	if tail != nil {
		return &ast.Dotted{SourceSpan: sp, Head: elems, Tail: tail}, nil
	}
	return &ast.List{SourceSpan: sp, Elements: elems}, nil
}

func (r *Reader) readHash(start token.Position) (ast.Node, error) {
	r.advance() // consume '#'
	switch {
	case r.ch == '(':
		lst, err := r.readList('(')
		if err != nil {
			return nil, err
		}
		l := lst.(*ast.List)
		return &ast.Vector{SourceSpan: l.SourceSpan, Elements: l.Elements}, nil
	case r.ch == 't':
		r.advance()
		r.consumeWord("rue")
		return &ast.Literal{SourceSpan: r.spanFrom(start), Value: true}, nil
	case r.ch == 'f':
		r.advance()
		r.consumeWord("alse")
		return &ast.Literal{SourceSpan: r.spanFrom(start), Value: false}, nil
	case r.ch == '\\':
		r.advance()
		return r.readChar(start)
	case r.ch == 'u' && r.peek() == '8':
		r.advance()
		r.advance()
		if r.ch != '(' {
			return nil, r.errorf(start, "expected '(' after #u8")
		}
		lst, err := r.readList('(')
		if err != nil {
			return nil, err
		}
		l := lst.(*ast.List)
		bv := make([]byte, 0, len(l.Elements))
		for _, e := range l.Elements {
			lit, ok := e.(*ast.Literal)
			if !ok {
				return nil, r.errorf(start, "bytevector elements must be literal bytes")
			}
			n, ok := lit.Value.(*big.Int)
			if !ok {
				return nil, r.errorf(start, "bytevector elements must be integers")
			}
			bv = append(bv, byte(n.Int64()))
		}
		return &ast.Literal{SourceSpan: l.SourceSpan, Value: bv}, nil
	default:
		// #e, #i, #x, #o, #b, #d number prefixes and similar: re-read as an
		// atom including the leading '#'.
		return r.readAtom(start, '#')
	}
}

func (r *Reader) consumeWord(rest string) {
	for _, want := range rest {
		if r.ch == want {
			r.advance()
			continue
		}
		return
	}
}

func (r *Reader) spanFrom(start token.Position) token.Span {
	return token.Span{File: r.file, Start: start, End: r.pos1()}
}

var namedChars = map[string]rune{
	"space":     ' ',
	"newline":   '\n',
	"tab":       '\t',
	"nul":       0,
	"null":      0,
	"altmode":   27,
	"backspace": 8,
	"delete":    127,
	"escape":    27,
	"linefeed":  '\n',
	"page":      12,
	"return":    '\r',
	"rubout":    127,
}

func (r *Reader) readChar(start token.Position) (ast.Node, error) {
	if r.ch == 0 {
		return nil, r.errorf(start, "unterminated character literal")
	}
	first := r.ch
	r.advance()
	if !unicode.IsLetter(first) || isDelimiter(r.ch) {
		return &ast.Literal{SourceSpan: r.spanFrom(start), Value: first}, nil
	}
	var b strings.Builder
	b.WriteRune(first)
	for !isDelimiter(r.ch) {
		b.WriteRune(r.ch)
		r.advance()
	}
	name := b.String()
	if len(name) == 1 {
		return &ast.Literal{SourceSpan: r.spanFrom(start), Value: rune(name[0])}, nil
	}
	if ru, ok := namedChars[strings.ToLower(name)]; ok {
		return &ast.Literal{SourceSpan: r.spanFrom(start), Value: ru}, nil
	}
	if (name[0] == 'x' || name[0] == 'X') && len(name) > 1 {
		if n, err := strconv.ParseInt(name[1:], 16, 32); err == nil {
			return &ast.Literal{SourceSpan: r.spanFrom(start), Value: rune(n)}, nil
		}
	}
	return nil, r.errorf(start, "unknown character name %q", name)
}

func (r *Reader) readString(start token.Position) (ast.Node, error) {
	r.advance() // consume opening quote
	var b strings.Builder
	for r.ch != '"' {
		if r.ch == 0 {
			return nil, r.errorf(start, "unterminated string literal")
		}
		if r.ch == '\\' {
			r.advance()
			switch r.ch {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'a':
				b.WriteByte(7)
			case '\n':
				// Line continuation: backslash-newline drops the newline
				// and the intraline whitespace after it; whitespace
				// before the backslash is kept.
				r.advance()
				for r.ch == ' ' || r.ch == '\t' {
					r.advance()
				}
				continue
			default:
				b.WriteRune(r.ch)
			}
			r.advance()
			continue
		}
		b.WriteRune(r.ch)
		r.advance()
	}
	r.advance() // consume closing quote
	return &ast.Literal{SourceSpan: r.spanFrom(start), Value: b.String()}, nil
}

func isDelimiter(ch rune) bool {
	switch ch {
	case 0, ' ', '\t', '\n', '\r', '(', ')', '[', ']', '"', ';', '\'', '`', ',':
		return true
	default:
		return false
	}
}

// readAtom reads a run of non-delimiter characters and classifies it as a
// number (integer, rational, or real) or a symbol/identifier. prefix, if
// given, is prepended verbatim (used for #-prefixed numeric literals).
func (r *Reader) readAtom(start token.Position, prefix ...rune) (ast.Node, error) {
	var b strings.Builder
	for _, p := range prefix {
		b.WriteRune(p)
	}
	if r.ch == '|' {
		// |...| verbatim symbol syntax.
		r.advance()
		for r.ch != '|' {
			if r.ch == 0 {
				return nil, r.errorf(start, "unterminated |...| symbol")
			}
			b.WriteRune(r.ch)
			r.advance()
		}
		r.advance()
		return &ast.Identifier{SourceSpan: r.spanFrom(start), Name: b.String()}, nil
	}
	for !isDelimiter(r.ch) {
		b.WriteRune(r.ch)
		r.advance()
	}
	lit := b.String()
	if lit == "." {
		return nil, r.errorf(start, "unexpected '.'")
	}
	if n, ok := parseNumber(lit); ok {
		return &ast.Literal{SourceSpan: r.spanFrom(start), Value: n}, nil
	}
	return &ast.Identifier{SourceSpan: r.spanFrom(start), Name: lit}, nil
}

// parseNumber classifies lit as an exact integer (*big.Int), exact
// rational (*big.Rat), or inexact real (float64), returning ok=false if
// lit is not a numeric literal at all (i.e. it is an ordinary symbol).
func parseNumber(lit string) (any, bool) {
	s := lit
	exactness := byte(0) // 'e', 'i', or 0
	radix := 10
	for len(s) >= 2 && s[0] == '#' {
		switch s[1] {
		case 'e', 'E':
			exactness = 'e'
		case 'i', 'I':
			exactness = 'i'
		case 'x', 'X':
			radix = 16
		case 'o', 'O':
			radix = 8
		case 'b', 'B':
			radix = 2
		case 'd', 'D':
			radix = 10
		default:
			return nil, false
		}
		s = s[2:]
	}
	if s == "" {
		return nil, false
	}
	if strings.Contains(s, "/") {
		parts := strings.SplitN(s, "/", 2)
		num, ok1 := new(big.Int).SetString(parts[0], radix)
		den, ok2 := new(big.Int).SetString(parts[1], radix)
		if !ok1 || !ok2 || den.Sign() == 0 {
			return nil, false
		}
		rat := new(big.Rat).SetFrac(num, den)
		if exactness == 'i' {
			f, _ := rat.Float64()
			return f, true
		}
		return rat, true
	}
	if radix == 10 && (strings.ContainsAny(s, ".eE") && s != "..." ) {
		// Disambiguate from symbols like `...` or `1+`: require it to
		// parse cleanly as a float and start with a sign/digit/dot.
		if looksNumericStart(s) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				if exactness == 'e' {
					rat := new(big.Rat)
					rat.SetFloat64(f)
					return rat, true
				}
				return f, true
			}
		}
	}
	if !looksNumericStart(s) {
		return nil, false
	}
	if n, ok := new(big.Int).SetString(s, radix); ok {
		if exactness == 'i' {
			f := new(big.Float).SetInt(n)
			v, _ := f.Float64()
			return v, true
		}
		return n, true
	}
	return nil, false
}

func looksNumericStart(s string) bool {
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	if i >= len(s) {
		return false
	}
	return unicode.IsDigit(rune(s[i])) || s[i] == '.'
}

// Read is a convenience wrapper for ad-hoc single-source parses, used by
// pkg/lambdust.Runtime.Eval and by tests.
func Read(file, src string) (*ast.Program, error) {
	return New(file, src).ReadProgram()
}
