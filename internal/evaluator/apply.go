package evaluator

import (
	"fmt"

	"github.com/akasaka-miraina/lambdust-sub001/internal/ast"
	"github.com/akasaka-miraina/lambdust-sub001/internal/contn"
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/token"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

func (ev *Evaluator) stepLambda(d syntax.Datum, elems []syntax.Datum, env *value.Frame, name string) (value.Value, error) {
	if len(elems) < 2 {
		return nil, malformed(d, "lambda")
	}
	params, rest, err := parseFormals(elems[1])
	if err != nil {
		return nil, err
	}
	body := make([]syntax.Datum, len(elems[2:]))
	copy(body, elems[2:])
	return &Closure{
		Name:   name,
		Params: params,
		Rest:   rest,
		Body:   body,
		Env:    env,
	}, nil
}

// parseFormals destructures a lambda formals list into fixed parameter
// names and an optional rest-parameter name: a bare identifier formals
// list (`lambda args ...`), a proper list (`lambda (a b) ...`), or a
// dotted tail (`lambda (a b . rest) ...`).
func parseFormals(d syntax.Datum) ([]string, string, error) {
	if name, ok := d.IdentifierName(); ok {
		return nil, name, nil
	}
	if dotted, ok := d.Node.(*ast.Dotted); ok {
		params := make([]string, 0, len(dotted.Head))
		for _, h := range dotted.Head {
			name, ok := syntax.Wrap(h, d.Scopes).IdentifierName()
			if !ok {
				return nil, "", malformed(d, "lambda formals")
			}
			params = append(params, name)
		}
		rest, ok := syntax.Wrap(dotted.Tail, d.Scopes).IdentifierName()
		if !ok {
			return nil, "", malformed(d, "lambda formals")
		}
		return params, rest, nil
	}
	elems := d.Elements()
	var params []string
	for _, e := range elems {
		name, ok := e.IdentifierName()
		if !ok {
			return nil, "", malformed(d, "lambda formals")
		}
		params = append(params, name)
	}
	return params, "", nil
}

func (ev *Evaluator) stepApplication(d syntax.Datum, elems []syntax.Datum, env *value.Frame, tail bool) (value.Value, error) {
	proc, err := ev.evalSub(elems[0], env)
	if err != nil {
		return nil, err
	}
	args := make([]value.Value, len(elems)-1)
	for i, e := range elems[1:] {
		v, err := ev.evalSub(e, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if tail {
		return ev.applyTail(proc, args, d.Span())
	}
	return ev.Apply(proc, args, d.Span())
}

// Apply invokes proc with args to completion, fully resolving any tail
// call chain — used for non-tail application and for every host-facing
// or primitive-originated call (map, apply, call-with-values, ...).
func (ev *Evaluator) Apply(proc value.Value, args []value.Value, span token.Span) (value.Value, error) {
	v, err := ev.applyTail(proc, args, span)
	if err != nil {
		return nil, err
	}
	if tc, ok := v.(*tailCall); ok {
		return ev.evalTail(tc.body, tc.env)
	}
	return v, nil
}

// windEntries adapts the evaluator's Scheme-level wind stack (closures
// bound to the dynstate package) into the Go-closure WindEntry form
// internal/contn works with, so contn.UnwindTo can compare and replay
// them independently of how winds are represented at the Scheme level.
func (ev *Evaluator) windEntries(span token.Span) []*contn.WindEntry {
	frames := ev.Winds.Snapshot()
	out := make([]*contn.WindEntry, len(frames))
	for i, f := range frames {
		f := f
		out[i] = &contn.WindEntry{
			Before: func() error { _, err := ev.Apply(f.Before, nil, span); return err },
			After:  func() error { _, err := ev.Apply(f.After, nil, span); return err },
		}
	}
	return out
}

// applyTail invokes proc with args, returning a *tailCall marker instead
// of recursing when proc is a Closure with more than zero body forms —
// the trampoline point that gives self- and mutual-tail-recursion O(1)
// Go stack growth (spec §4.EV).
func (ev *Evaluator) applyTail(proc value.Value, args []value.Value, span token.Span) (value.Value, error) {
	switch p := proc.(type) {
	case *Primitive:
		return p.Fn(args)
	case *Closure:
		return ev.enterClosure(p, args, span)
	case *CaseLambda:
		clause := p.Select(len(args))
		if clause == nil {
			return nil, diagnostics.New(diagnostics.CodeArityMismatch, span,
				"no case-lambda clause accepts %d arguments", len(args))
		}
		return ev.enterClosure(clause, args, span)
	case *contn.Continuation:
		leave, enter := contn.UnwindTo(ev.windEntries(span), p.Winds)
		for _, w := range leave {
			if w.After != nil {
				if err := w.After(); err != nil {
					return nil, err
				}
			}
		}
		for _, w := range enter {
			if w.Before != nil {
				if err := w.Before(); err != nil {
					return nil, err
				}
			}
		}
		p.Invoke(args)
		panic("unreachable: Continuation.Invoke always panics")
	case *value.Parameter:
		if len(args) != 0 {
			return nil, diagnostics.New(diagnostics.CodeArityMismatch, span,
				"parameter object expects 0 arguments, got %d (use parameterize to rebind)", len(args))
		}
		return p.Stack[len(p.Stack)-1], nil
	default:
		return nil, diagnostics.New(diagnostics.CodeContractViolation, span,
			"attempt to apply non-procedure: %s", writeOrNil(proc))
	}
}

func writeOrNil(v value.Value) string {
	if v == nil {
		return "#f"
	}
	return v.Write()
}

func (ev *Evaluator) enterClosure(c *Closure, args []value.Value, span token.Span) (value.Value, error) {
	min, max := c.Arity()
	if len(args) < min || (max != -1 && len(args) > max) {
		return nil, diagnostics.New(diagnostics.CodeArityMismatch, span,
			"%s expects %s, got %d", closureLabel(c), arityDesc(min, max), len(args))
	}
	callEnv := value.NewFrame(c.Env)
	for i, name := range c.Params {
		callEnv.Define(ev.Intern(name), args[i])
	}
	if c.Rest != "" {
		callEnv.Define(ev.Intern(c.Rest), value.List(args[len(c.Params):]...))
	}
	if len(c.Body) == 0 {
		return value.Unspecified, nil
	}
	for _, b := range c.Body[:len(c.Body)-1] {
		if _, err := ev.evalSub(b, callEnv); err != nil {
			return nil, err
		}
	}
	return &tailCall{body: c.Body[len(c.Body)-1], env: callEnv}, nil
}

func closureLabel(c *Closure) string {
	if c.Name != "" {
		return c.Name
	}
	return "#<procedure>"
}

func arityDesc(min, max int) string {
	if max == -1 {
		return fmt.Sprintf("at least %d arguments", min)
	}
	if min == max {
		return fmt.Sprintf("%d arguments", min)
	}
	return fmt.Sprintf("between %d and %d arguments", min, max)
}

// evalBody evaluates a sequence of forms (begin/lambda body), returning
// the value of the last form. When tail is true the last form is
// evaluated in tail position (it may itself produce a *tailCall marker).
//
// Each form is first checked against tryResumableCall: a direct call to
// a ResumableOp bound in env (installed by with-handler) does not just
// evaluate and discard its result the way an ordinary statement would —
// it hands the rest of forms to the handler clause as a `continue`
// procedure, so the handler decides whether and how the sequence
// resumes (spec.md §3's effect-handler resumption).
func (ev *Evaluator) evalBody(forms []syntax.Datum, env *value.Frame, tail bool) (value.Value, error) {
	if len(forms) == 0 {
		return value.Unspecified, nil
	}
	for i := 0; i < len(forms)-1; i++ {
		if handled, v, err := ev.tryResumableCall(forms[i], forms[i+1:], env); handled {
			return v, err
		}
		if _, err := ev.evalSub(forms[i], env); err != nil {
			return nil, err
		}
	}
	last := forms[len(forms)-1]
	if handled, v, err := ev.tryResumableCall(last, nil, env); handled {
		return v, err
	}
	return ev.step(last, env, tail)
}
