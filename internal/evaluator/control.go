package evaluator

import (
	"github.com/akasaka-miraina/lambdust-sub001/internal/ast"
	"github.com/akasaka-miraina/lambdust-sub001/internal/contn"
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/dynstate"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/token"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

func (ev *Evaluator) stepDefine(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) < 2 {
		return nil, malformed(d, "define")
	}
	// (define (name . formals) body...) is sugar for
	// (define name (lambda formals body...)).
	if !elems[1].IsIdentifier() {
		name, params, rest, err := defineFormals(elems[1])
		if err != nil {
			return nil, err
		}
		body := make([]syntax.Datum, len(elems[2:]))
		copy(body, elems[2:])
		proc := &Closure{Name: name, Params: params, Rest: rest, Body: body, Env: env}
		env.Define(ev.Intern(name), proc)
		return value.NewSymbol(ev.Interner, name), nil
	}
	name, _ := elems[1].IdentifierName()
	var v value.Value = value.Unspecified
	if len(elems) >= 3 {
		val, err := ev.evalSub(elems[2], env)
		if err != nil {
			return nil, err
		}
		v = val
	}
	if c, ok := v.(*Closure); ok && c.Name == "" {
		c.Name = name
	}
	env.Define(ev.Intern(name), v)
	return value.NewSymbol(ev.Interner, name), nil
}

// defineFormals destructures the target of a (define (name . formals)
// ...) form, which is either an *ast.List (proper formals, no rest) or
// an *ast.Dotted (formals with a trailing rest parameter).
func defineFormals(d syntax.Datum) (name string, params []string, rest string, err error) {
	switch t := d.Node.(type) {
	case *ast.List:
		if len(t.Elements) == 0 {
			return "", nil, "", malformed(d, "define")
		}
		head := syntax.Wrap(t.Elements[0], d.Scopes)
		name, ok := head.IdentifierName()
		if !ok {
			return "", nil, "", malformed(d, "define")
		}
		for _, e := range t.Elements[1:] {
			pname, ok := syntax.Wrap(e, d.Scopes).IdentifierName()
			if !ok {
				return "", nil, "", malformed(d, "define formals")
			}
			params = append(params, pname)
		}
		return name, params, "", nil
	case *ast.Dotted:
		if len(t.Head) == 0 {
			return "", nil, "", malformed(d, "define")
		}
		head := syntax.Wrap(t.Head[0], d.Scopes)
		name, ok := head.IdentifierName()
		if !ok {
			return "", nil, "", malformed(d, "define")
		}
		for _, e := range t.Head[1:] {
			pname, ok := syntax.Wrap(e, d.Scopes).IdentifierName()
			if !ok {
				return "", nil, "", malformed(d, "define formals")
			}
			params = append(params, pname)
		}
		restName, ok := syntax.Wrap(t.Tail, d.Scopes).IdentifierName()
		if !ok {
			return "", nil, "", malformed(d, "define formals")
		}
		return name, params, restName, nil
	default:
		return "", nil, "", malformed(d, "define")
	}
}

// stepCallCC evaluates call/cc's single procedure argument and invokes
// it with a freshly captured escape continuation, recovering exactly
// the Jump whose Target matches the continuation just captured (spec
// §4.C: escape-only call/cc, see internal/contn's package doc).
func (ev *Evaluator) stepCallCC(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (result value.Value, err error) {
	if len(elems) != 2 {
		return nil, malformed(d, "call/cc")
	}
	proc, err := ev.evalSub(elems[1], env)
	if err != nil {
		return nil, err
	}
	k := contn.Capture(ev.windEntries(d.Span()))
	defer func() {
		if r := recover(); r != nil {
			jump, ok := r.(*contn.Jump)
			if !ok || jump.Target != k {
				panic(r)
			}
			if len(jump.Values) == 1 {
				result, err = jump.Values[0], nil
			} else {
				result, err = &MultipleValues{Values: jump.Values}, nil
			}
		}
	}()
	return ev.Apply(proc, []value.Value{k}, d.Span())
}

func (ev *Evaluator) stepDynamicWind(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) != 4 {
		return nil, malformed(d, "dynamic-wind")
	}
	before, err := ev.evalSub(elems[1], env)
	if err != nil {
		return nil, err
	}
	thunk, err := ev.evalSub(elems[2], env)
	if err != nil {
		return nil, err
	}
	after, err := ev.evalSub(elems[3], env)
	if err != nil {
		return nil, err
	}
	if _, err := ev.Apply(before, nil, d.Span()); err != nil {
		return nil, err
	}
	ev.Winds.Push(dynstate.WindFrame{Before: before, After: after})
	result, thunkErr := func() (value.Value, error) {
		defer ev.Winds.Pop()
		return ev.Apply(thunk, nil, d.Span())
	}()
	if _, err := ev.Apply(after, nil, d.Span()); err != nil {
		if thunkErr != nil {
			return nil, thunkErr
		}
		return nil, err
	}
	return result, thunkErr
}

func (ev *Evaluator) stepWithExceptionHandler(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) != 3 {
		return nil, malformed(d, "with-exception-handler")
	}
	handler, err := ev.evalSub(elems[1], env)
	if err != nil {
		return nil, err
	}
	thunk, err := ev.evalSub(elems[2], env)
	if err != nil {
		return nil, err
	}
	ev.Handlers.Push(dynstate.Handler{Proc: handler})
	result, err := ev.Apply(thunk, nil, d.Span())
	ev.Handlers.Pop()
	return result, err
}

func (ev *Evaluator) stepRaise(d syntax.Datum, elems []syntax.Datum, env *value.Frame, continuable bool) (value.Value, error) {
	if len(elems) != 2 {
		return nil, malformed(d, "raise")
	}
	payload, err := ev.evalSub(elems[1], env)
	if err != nil {
		return nil, err
	}
	return ev.raise(payload, continuable, d.Span())
}

// raise invokes the innermost installed exception handler with payload,
// the handler's own entry popped for the duration of the call per R7RS
// ("the handler in effect when the handler being called was installed").
// A continuable raise's result is the handler's return value; a
// non-continuable raise treats a normal handler return as itself an
// error, since R7RS requires the handler to escape.
func (ev *Evaluator) raise(payload value.Value, continuable bool, span token.Span) (value.Value, error) {
	handler, rest, ok := ev.Handlers.Current()
	if !ok {
		return nil, diagnostics.New(diagnostics.CodeUncaughtException, span, "unhandled exception: %s", payload.Write())
	}
	saved := ev.Handlers
	ev.Handlers = rest
	result, err := func() (value.Value, error) {
		defer func() { ev.Handlers = saved }()
		return ev.Apply(handler.Proc, []value.Value{payload}, span)
	}()
	if err != nil {
		return nil, err
	}
	if continuable {
		return result, nil
	}
	return nil, diagnostics.New(diagnostics.CodeUncaughtException, span, "exception handler returned from non-continuable raise of %s", payload.Write())
}

func (ev *Evaluator) stepGuard(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (result value.Value, err error) {
	if len(elems) < 2 {
		return nil, malformed(d, "guard")
	}
	spec := elems[1].Elements()
	if len(spec) < 1 {
		return nil, malformed(d, "guard")
	}
	varName, ok := spec[0].IdentifierName()
	if !ok {
		return nil, malformed(d, "guard")
	}
	clauses := spec[1:]
	body := elems[2:]

	marker := new(int)
	handlerProc := &Primitive{Name: "guard-handler", Fn: func(args []value.Value) (value.Value, error) {
		panic(&guardSignal{marker: marker, payload: args[0]})
	}}
	ev.Handlers.Push(dynstate.Handler{Proc: handlerProc})
	defer func() {
		ev.Handlers.Pop()
		if r := recover(); r != nil {
			gs, ok := r.(*guardSignal)
			if !ok || gs.marker != marker {
				panic(r)
			}
			callEnv := value.NewFrame(env)
			callEnv.Define(ev.Intern(varName), gs.payload)
			matched, v, clauseErr := ev.evalCondClauses(clauses, callEnv, d.Span())
			if clauseErr != nil {
				result, err = nil, clauseErr
				return
			}
			if matched {
				result, err = v, nil
				return
			}
			result, err = ev.raise(gs.payload, true, d.Span())
		}
	}()
	return ev.evalBody(body, env, false)
}

// guardSignal is the panic payload a guard's installed handler raises to
// escape straight back to its own stepGuard frame, identified by marker
// so nested guards never intercept an outer guard's escape.
type guardSignal struct {
	marker  *int
	payload value.Value
}

// evalCondClauses evaluates clauses like cond: (test expr...), (test =>
// proc), or (else expr...). Returns matched=false if no clause's test
// was truthy, letting the caller decide what "no match" means.
func (ev *Evaluator) evalCondClauses(clauses []syntax.Datum, env *value.Frame, span token.Span) (bool, value.Value, error) {
	for _, clause := range clauses {
		ce := clause.Elements()
		if len(ce) == 0 {
			continue
		}
		if name, ok := ce[0].IdentifierName(); ok && name == "else" {
			v, err := ev.evalBody(ce[1:], env, false)
			return true, v, err
		}
		test, err := ev.evalSub(ce[0], env)
		if err != nil {
			return false, nil, err
		}
		if !value.Truthy(test) {
			continue
		}
		if len(ce) >= 3 {
			if name, ok := ce[1].IdentifierName(); ok && name == "=>" {
				proc, err := ev.evalSub(ce[2], env)
				if err != nil {
					return false, nil, err
				}
				v, err := ev.Apply(proc, []value.Value{test}, span)
				return true, v, err
			}
		}
		if len(ce) == 1 {
			return true, test, nil
		}
		v, err := ev.evalBody(ce[1:], env, false)
		return true, v, err
	}
	return false, nil, nil
}

func (ev *Evaluator) stepParameterize(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) < 2 {
		return nil, malformed(d, "parameterize")
	}
	specs := elems[1].Elements()
	bindings := make([]dynstate.ParameterBinding, len(specs))
	for i, s := range specs {
		se := s.Elements()
		if len(se) != 2 {
			return nil, malformed(d, "parameterize")
		}
		pv, err := ev.evalSub(se[0], env)
		if err != nil {
			return nil, err
		}
		param, ok := pv.(*value.Parameter)
		if !ok {
			return nil, diagnostics.New(diagnostics.CodeContractViolation, d.Span(), "parameterize: not a parameter object")
		}
		val, err := ev.evalSub(se[1], env)
		if err != nil {
			return nil, err
		}
		bindings[i] = dynstate.ParameterBinding{Param: param, Value: val}
	}
	restore, err := dynstate.PushAll(bindings)
	if err != nil {
		return nil, err
	}
	defer restore()
	return ev.evalBody(elems[2:], env, false)
}
