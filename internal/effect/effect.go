// Package effect implements the F (algebraic effect) component: effect
// declarations, handler installation, operation dispatch innermost-
// handler-first, and the isolation policy that lets a handler's dynamic
// extent allow or deny specific effects from reaching outer handlers
// (spec §4.F).
//
// Grounded conceptually on hayabusa-cloud-kont's Handler.Dispatch /
// one-shot resumable-Suspension vocabulary (see DESIGN.md for why kont
// itself is not an import: its handlers are selected by a Go generic
// type parameter at compile time, Lambdust's by a runtime Scheme
// symbol), reimplemented here as a stack the evaluator consults by
// operation name, the same way internal/dynstate's HandlerStack is
// consulted by the evaluator for raise.
package effect

import (
	"fmt"

	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// Declaration names an effect and the operations it offers, each
// operation's arity recorded for argument-count checking at the
// `perform`/invocation site.
type Declaration struct {
	Name       string
	Operations map[string]int // operation name -> arity
}

// Policy controls which effects a handler's dynamic extent lets escape
// to an enclosing handler versus requires itself to field (spec §4.F
// "allow/deny-list isolation policies").
type Policy struct {
	// Allow, if non-nil, is the exhaustive set of effect names this
	// handler's extent permits to pass through to an outer handler when
	// this handler does not itself declare an operation for them.
	Allow map[string]bool
	// Deny is checked first: an effect named here is never passed
	// through, even if also present in Allow, surfacing as
	// CodeEffectDenied instead.
	Deny map[string]bool
}

func (p Policy) permits(effect string) bool {
	if p.Deny != nil && p.Deny[effect] {
		return false
	}
	if p.Allow == nil {
		return true
	}
	return p.Allow[effect]
}

// HandlerFrame is one installed handler: the effect it handles, its
// operation closures, and the isolation policy active for its dynamic
// extent. An operation closure here is called directly on perform's
// arguments and its return value substitutes for the perform
// expression — no resumption continuation is passed. Resumable
// handling (continuing the computation that performed the effect) is a
// separate mechanism, internal/evaluator's with-handler/ResumableOp,
// which does not route through this Stack at all: see that package's
// effects.go for why a HandlerFrame-based resumption continuation isn't
// how it's built.
type HandlerFrame struct {
	Effect     string
	Operations map[string]value.Value // operation name -> Closure/Primitive; key "*" answers any operation
	Policy     Policy
}

// Stack is the per-evaluator-instance installed-handler chain, searched
// innermost-first on every `perform` (spec §4.F: "innermost-first
// ordering").
type Stack struct {
	frames []HandlerFrame
}

func NewStack() *Stack { return &Stack{} }

func (s *Stack) Install(h HandlerFrame) *Stack {
	return &Stack{frames: append(append([]HandlerFrame{}, s.frames...), h)}
}

// Resolve finds the innermost handler offering op of effect, subject to
// every handler between the call site and that handler permitting the
// effect through via its Policy. Returns the resolved frame's index
// (for computing the resumption's continuing stack) and the operation's
// closure.
func (s *Stack) Resolve(effect, op string) (value.Value, int, error) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.Effect == effect {
			if proc, ok := f.Operations[op]; ok {
				return proc, i, nil
			}
			if proc, ok := f.Operations["*"]; ok {
				return proc, i, nil
			}
		}
		if !f.Policy.permits(effect) {
			return nil, -1, fmt.Errorf("effect %s denied by handler for %s", effect, f.Effect)
		}
	}
	return nil, -1, fmt.Errorf("no handler installed for effect %s", effect)
}

// Outer returns the handler stack visible from inside the handler at
// index i — everything below it — so a resumed computation's further
// `perform`s of the same effect skip straight past the handler now
// running (spec: a handler does not see its own operation's `perform`
// of the same effect as re-entrant unless it resumes into a context
// where the handler is reinstalled).
func (s *Stack) Outer(i int) *Stack {
	if i <= 0 {
		return &Stack{}
	}
	return &Stack{frames: s.frames[:i]}
}

// Len reports how many handlers are installed.
func (s *Stack) Len() int { return len(s.frames) }
