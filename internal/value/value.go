// Package value implements the V (Value Model) and E (Environment)
// components of spec §4. They are co-located in one package because a
// Closure's captured Frame holds Values and a Frame's binding cells hold
// Values — the same mutual dependency that keeps the teacher's own
// Environment and Object types inside a single `evaluator` package
// (internal/evaluator/object.go, internal/evaluator/environment.go).
//
// Tagged discrimination mirrors the teacher's ObjectType/Type() pattern:
// every Value reports a Tag via Tag(), and scalar variants (Nil,
// Boolean, Char, Fixnum, Symbol) are plain Go value types so the
// compiler can keep them off the heap when they don't escape, matching
// spec §4.V's "scalars stored inline with no heap allocation" intent as
// closely as Go's value/interface model allows.
package value

import (
	"fmt"

	"github.com/akasaka-miraina/lambdust-sub001/internal/symbol"
)

// Tag discriminates the Value variants of spec §3.
type Tag uint8

const (
	TagNil Tag = iota
	TagBoolean
	TagChar
	TagFixnum
	TagBignum
	TagRational
	TagReal
	TagComplex
	TagString
	TagSymbol
	TagPair
	TagVector
	TagBytevector
	TagProcedure
	TagContinuation
	TagPort
	TagRecord
	TagRecordType
	TagPromise
	TagHashTable
	TagForeignRef
	TagParameter
	TagUnspecified
	TagEOF
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagBoolean:
		return "boolean"
	case TagChar:
		return "char"
	case TagFixnum, TagBignum:
		return "integer"
	case TagRational:
		return "rational"
	case TagReal:
		return "real"
	case TagComplex:
		return "complex"
	case TagString:
		return "string"
	case TagSymbol:
		return "symbol"
	case TagPair:
		return "pair"
	case TagVector:
		return "vector"
	case TagBytevector:
		return "bytevector"
	case TagProcedure:
		return "procedure"
	case TagContinuation:
		return "continuation"
	case TagPort:
		return "port"
	case TagRecord:
		return "record"
	case TagRecordType:
		return "record-type"
	case TagPromise:
		return "promise"
	case TagHashTable:
		return "hash-table"
	case TagForeignRef:
		return "foreign"
	case TagParameter:
		return "parameter"
	case TagUnspecified:
		return "unspecified"
	case TagEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Value is the universal datum (spec §3).
type Value interface {
	Tag() Tag
	// Write returns the machine-readable representation (Scheme `write`).
	Write() string
	// Display returns the human-readable representation (Scheme `display`):
	// String and Char drop their quoting, and Pair and Vector display
	// their elements with Display; most other variants display as they
	// write.
	Display() string
}

// --- Nil ---------------------------------------------------------------

// NilValue is the empty list `()`. It is a distinct Value from
// Unspecified and from #f; only `nil?`/`null?` recognizes it.
type NilValue struct{}

var Nil Value = NilValue{}

func (NilValue) Tag() Tag        { return TagNil }
func (NilValue) Write() string   { return "()" }
func (NilValue) Display() string { return "()" }

// --- Unspecified ---------------------------------------------------------

// UnspecifiedValue is the result of expressions R7RS leaves unspecified
// (e.g. `set!`, `(if #f #f)`).
type UnspecifiedValue struct{}

var Unspecified Value = UnspecifiedValue{}

func (UnspecifiedValue) Tag() Tag        { return TagUnspecified }
func (UnspecifiedValue) Write() string   { return "#<unspecified>" }
func (UnspecifiedValue) Display() string { return "#<unspecified>" }

// EOFValue is returned by read procedures at end of input.
type EOFValue struct{}

var EOFObject Value = EOFValue{}

func (EOFValue) Tag() Tag        { return TagEOF }
func (EOFValue) Write() string   { return "#<eof>" }
func (EOFValue) Display() string { return "#<eof>" }

// --- Boolean -------------------------------------------------------------

type Boolean bool

const (
	True  Boolean = true
	False Boolean = false
)

func (b Boolean) Tag() Tag { return TagBoolean }
func (b Boolean) Write() string {
	if b {
		return "#t"
	}
	return "#f"
}
func (b Boolean) Display() string { return b.Write() }

// Truthy implements R7RS truthiness: everything except #f is true.
func Truthy(v Value) bool {
	b, ok := v.(Boolean)
	return !ok || bool(b)
}

func Bool(b bool) Value { return Boolean(b) }

// --- Char ------------------------------------------------------------------

type Char rune

func (c Char) Tag() Tag      { return TagChar }
func (c Char) Write() string { return fmt.Sprintf("#\\%c", rune(c)) }
func (c Char) Display() string {
	return string(rune(c))
}

// --- String ------------------------------------------------------------

// String is a mutable Scheme string, represented as a rune slice so
// `string-set!` can mutate in place without byte-width surprises.
type String struct {
	Runes []rune
}

func NewString(s string) *String { return &String{Runes: []rune(s)} }

func (s *String) Tag() Tag { return TagString }
func (s *String) Write() string {
	var b []byte
	b = append(b, '"')
	for _, r := range s.Runes {
		switch r {
		case '"':
			b = append(b, '\\', '"')
		case '\\':
			b = append(b, '\\', '\\')
		case '\n':
			b = append(b, '\\', 'n')
		default:
			b = append(b, []byte(string(r))...)
		}
	}
	b = append(b, '"')
	return string(b)
}
func (s *String) Display() string { return string(s.Runes) }
func (s *String) Go() string      { return string(s.Runes) }

// --- Symbol --------------------------------------------------------------

// Symbol is a reference to an interned name; two Symbols with the same
// ID are `eq?` by definition since ID equality is Go equality.
type Symbol struct {
	ID     symbol.ID
	Intern *symbol.Interner // the interner ID was issued from, for Name()
}

func NewSymbol(in *symbol.Interner, name string) Symbol {
	return Symbol{ID: in.Intern(name), Intern: in}
}

func (s Symbol) Name() string {
	if s.Intern == nil {
		return symbol.Default.Name(s.ID)
	}
	return s.Intern.Name(s.ID)
}

func (s Symbol) Tag() Tag        { return TagSymbol }
func (s Symbol) Write() string   { return s.Name() }
func (s Symbol) Display() string { return s.Name() }

// --- Promise ---------------------------------------------------------------

// Promise backs `delay`/`force`. Thunk is cleared once Forced so its
// captured environment can be collected.
type Promise struct {
	Forced bool
	Val    Value
	Thunk  func() (Value, error)
}

func (p *Promise) Tag() Tag        { return TagPromise }
func (p *Promise) Write() string   { return "#<promise>" }
func (p *Promise) Display() string { return "#<promise>" }

// --- ForeignRef --------------------------------------------------------

// ForeignRef wraps an opaque host value (spec §6: "record↔host-opaque").
type ForeignRef struct {
	Native any
	Label  string
}

func (f *ForeignRef) Tag() Tag      { return TagForeignRef }
func (f *ForeignRef) Write() string { return fmt.Sprintf("#<foreign %s>", f.label()) }
func (f *ForeignRef) Display() string {
	return f.Write()
}
func (f *ForeignRef) label() string {
	if f.Label != "" {
		return f.Label
	}
	return fmt.Sprintf("%T", f.Native)
}

// --- Parameter object ----------------------------------------------------

// Parameter is a dynamically scoped cell (spec §3, §4.X). Its current
// value always sits at the top of Stack; parameterize pushes/pops.
type Parameter struct {
	Converter func(Value) (Value, error)
	Stack     []Value
}

func NewParameter(init Value, conv func(Value) (Value, error)) (*Parameter, error) {
	p := &Parameter{Converter: conv}
	v := init
	if conv != nil {
		var err error
		v, err = conv(init)
		if err != nil {
			return nil, err
		}
	}
	p.Stack = []Value{v}
	return p, nil
}

func (p *Parameter) Tag() Tag        { return TagParameter }
func (p *Parameter) Write() string   { return "#<parameter>" }
func (p *Parameter) Display() string { return "#<parameter>" }

// Get returns the current dynamic value.
func (p *Parameter) Get() Value { return p.Stack[len(p.Stack)-1] }

// Push installs a new dynamic value, converted through Converter.
func (p *Parameter) Push(v Value) error {
	if p.Converter != nil {
		cv, err := p.Converter(v)
		if err != nil {
			return err
		}
		v = cv
	}
	p.Stack = append(p.Stack, v)
	return nil
}

// Pop reverts to the previous dynamic value. Called on parameterize exit,
// normal or non-local, by the restore function that
// internal/evaluator's stepParameterize defers.
func (p *Parameter) Pop() {
	if len(p.Stack) > 1 {
		p.Stack = p.Stack[:len(p.Stack)-1]
	}
}
