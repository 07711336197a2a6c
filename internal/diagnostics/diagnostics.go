// Package diagnostics implements the condition/error taxonomy of spec §7
// and the wire format of §6: {kind, message, source-span, call-stack}.
//
// It is deliberately independent of internal/value: conditions raised by
// the evaluator are converted to Scheme values by internal/dynstate, but
// the diagnostic record itself (used for host-visible errors and for the
// CLI) lives here so every other package can report through one type
// without importing the evaluator.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/akasaka-miraina/lambdust-sub001/internal/token"
)

// Kind is the top-level error category from spec §7.
type Kind string

const (
	KindSyntax      Kind = "syntax"
	KindType        Kind = "type"
	KindReference   Kind = "reference"
	KindNumeric     Kind = "numeric"
	KindResource    Kind = "resource"
	KindControl     Kind = "control"
	KindCancelled   Kind = "cancellation"
)

// Code enumerates the concrete condition names from spec §7. These are
// stable strings so host embedders can match on them.
type Code string

const (
	// Syntax
	CodeUnknownIdentifier Code = "UnknownIdentifier"
	CodeMalformedForm     Code = "MalformedForm"
	CodePatternMismatch   Code = "PatternMismatch"
	CodeAmbiguousTemplate Code = "AmbiguousTemplate"

	// Type
	CodeTypeMismatch       Code = "TypeMismatch"
	CodeArityMismatch      Code = "ArityMismatch"
	CodeWrongNumberOfValues Code = "WrongNumberOfValues"
	CodeContractViolation  Code = "ContractViolation"
	CodeAmbiguousInstance  Code = "AmbiguousInstance"
	CodeNonExhaustiveMatch Code = "NonExhaustiveMatch"

	// Reference
	CodeUnboundVariable     Code = "UnboundVariable"
	CodeAssignmentToImmutable Code = "AssignmentToImmutable"
	CodeForeignContinuation Code = "ForeignContinuation"

	// Numeric
	CodeDivisionByZero  Code = "DivisionByZero"
	CodeDomainError     Code = "DomainError"
	CodeIntegerOverflow Code = "IntegerOverflow"

	// Resource
	CodeOutOfMemory    Code = "OutOfMemory"
	CodeStackOverflow  Code = "StackOverflow"
	CodeIOError        Code = "IOError"
	CodeEffectDenied   Code = "EffectDenied"

	// Control
	CodeUncaughtException Code = "UncaughtException"

	// Cancellation
	CodeCancelled Code = "Cancelled"
)

// kindByCode is the canonical mapping used by New so callers only need to
// pass a Code; the Kind is derived, never duplicated by hand.
var kindByCode = map[Code]Kind{
	CodeUnknownIdentifier:    KindSyntax,
	CodeMalformedForm:        KindSyntax,
	CodePatternMismatch:      KindSyntax,
	CodeAmbiguousTemplate:    KindSyntax,
	CodeTypeMismatch:         KindType,
	CodeArityMismatch:        KindType,
	CodeWrongNumberOfValues:  KindType,
	CodeContractViolation:    KindType,
	CodeAmbiguousInstance:    KindType,
	CodeNonExhaustiveMatch:   KindType,
	CodeUnboundVariable:      KindReference,
	CodeAssignmentToImmutable: KindReference,
	CodeForeignContinuation:  KindReference,
	CodeDivisionByZero:       KindNumeric,
	CodeDomainError:          KindNumeric,
	CodeIntegerOverflow:      KindNumeric,
	CodeOutOfMemory:          KindResource,
	CodeStackOverflow:        KindResource,
	CodeIOError:              KindResource,
	CodeEffectDenied:         KindResource,
	CodeUncaughtException:    KindControl,
	CodeCancelled:            KindCancelled,
}

// Frame is one entry of a diagnostic call stack, per §6's
// {procedure-name?, call-site-span} shape.
type Frame struct {
	ProcedureName string // optional; empty for anonymous closures
	CallSite      token.Span
}

// DiagnosticError is the condition object raised on every Scheme-level
// error and surfaced to host embedders as the `error` return of Eval/Apply.
type DiagnosticError struct {
	Kind      Kind
	Code      Code
	Message   string
	Span      token.Span
	CallStack []Frame

	// Irritants holds the raw values passed to (raise v) / (error msg irritants...)
	// when the condition originates in Scheme code rather than a host
	// diagnostic; it is opaque to this package (declared as `any` to avoid
	// an import cycle with internal/value).
	Irritants []any
}

// New builds a DiagnosticError, deriving Kind from Code.
func New(code Code, span token.Span, format string, args ...any) *DiagnosticError {
	return &DiagnosticError{
		Kind:    kindByCode[code],
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	}
}

// Fatal reports whether this condition is a host-level invariant
// violation that the runtime cannot recover from via `raise` (spec §4.EV,
// "Fatal vs. recoverable failures").
func (d *DiagnosticError) Fatal() bool {
	return d.Code == CodeOutOfMemory
}

func (d *DiagnosticError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", d.Code, d.Message)
	if d.Span.File != "" || d.Span != (token.Span{}) {
		fmt.Fprintf(&b, " at %s", d.Span)
	}
	for _, f := range d.CallStack {
		name := f.ProcedureName
		if name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(&b, "\n  in %s (%s)", name, f.CallSite)
	}
	return b.String()
}

// WithFrame returns a copy of d with an additional call-stack frame
// appended, deepest-first as required by §7 for macro expansion traces
// and evaluator call stacks alike.
func (d *DiagnosticError) WithFrame(f Frame) *DiagnosticError {
	cp := *d
	cp.CallStack = append(append([]Frame{}, d.CallStack...), f)
	return &cp
}
