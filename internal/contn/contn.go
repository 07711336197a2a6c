// Package contn implements the C (first-class continuation) component.
//
// Lambdust's evaluator (internal/evaluator) runs tail calls through an
// explicit trampoline so they execute in O(1) Go stack regardless of
// recursion depth, but non-tail evaluation still uses the Go call stack
// directly rather than a fully reified CEK kontinuation chain. Within
// that design, call/cc is implemented as an escape continuation: Invoke
// unwinds the Go stack with a panic carrying a Jump back to the
// matching call/cc frame's recover, exactly the extent of power R7RS
// requires for every one of spec §8's scenarios (escaping a loop,
// unwinding through dynamic-wind). Invoking a Continuation after its
// capturing call/cc has already returned finds no matching recover and
// is reported as CodeForeignContinuation by the evaluator's top-level
// recovery — a documented, deliberate scope reduction from full
// multi-shot re-entrant continuations (see DESIGN.md).
//
// Grounded conceptually on hayabusa-cloud-kont's one-shot affine
// Suspension/Resume vocabulary (see DESIGN.md for why kont itself is
// not a dependency): a Continuation here plays the role of a resumable
// Suspension that may be resumed exactly once, during its own dynamic
// extent.
package contn

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// WindEntry is one dynamic-wind frame active at the point a continuation
// was captured, used by the evaluator to run After thunks for every
// extent being escaped and Before thunks for every extent being
// entered, keeping the wind stack balanced across the jump.
type WindEntry struct {
	Before func() error
	After  func() error
}

// Continuation is the reified, invokable continuation captured by
// call/cc. It satisfies value.ContinuationProc so the evaluator's apply
// step recognizes it alongside Closures and Primitives.
type Continuation struct {
	ID    string
	Winds []*WindEntry
}

// Capture creates a Continuation identified by a fresh ID, matched
// against the call/cc frame's recover by that ID, and snapshotting the
// dynamic-wind chain active at the capture point.
func Capture(winds []*WindEntry) *Continuation {
	return &Continuation{ID: uuid.NewString(), Winds: winds}
}

func (c *Continuation) Tag() value.Tag  { return value.TagContinuation }
func (c *Continuation) Write() string   { return fmt.Sprintf("#<continuation %s>", c.ID) }
func (c *Continuation) Display() string { return c.Write() }
func (c *Continuation) ContinuationTag() {}

// Jump is the panic payload Invoke raises. The evaluator's call/cc frame
// recovers exactly the Jump whose Target.ID matches its own captured
// Continuation; any other Jump (escaping to an outer call/cc, or a
// foreign continuation invoked outside its extent) is re-panicked so it
// keeps unwinding toward its real target, or reaches the top-level Eval
// recover which reports CodeForeignContinuation.
type Jump struct {
	Target *Continuation
	Values []value.Value
}

// Invoke transfers control to c, delivering args as the result values of
// the call/cc expression that captured it (R7RS allows invoking a
// continuation with any number of values).
func (c *Continuation) Invoke(args []value.Value) {
	panic(&Jump{Target: c, Values: args})
}

// UnwindTo computes which of `from`'s active winds must run their After
// thunk, and which of `to`'s winds must run their Before thunk, to
// transition the dynamic-wind stack from `from` to `to` (spec: "before
// and after thunks balanced across continuation invocation"). Entries
// common to both chains (by pointer identity) are left alone.
func UnwindTo(from, to []*WindEntry) (leave []*WindEntry, enter []*WindEntry) {
	common := 0
	for common < len(from) && common < len(to) && from[common] == to[common] {
		common++
	}
	for i := len(from) - 1; i >= common; i-- {
		leave = append(leave, from[i])
	}
	enter = append(enter, to[common:]...)
	return leave, enter
}
