package evaluator

import (
	"math/big"

	"github.com/akasaka-miraina/lambdust-sub001/internal/ast"
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/symbol"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// step expands d to a kernel form and evaluates it. When tail is true
// and d is a procedure application in tail position, step returns a
// *tailCall marker instead of recursing into the callee's body.
//
// Expansion happens here, at every recursive descent into a
// subexpression (operator/operand positions, if-branches, begin/lambda
// bodies, ...), not just once at the top-level form: a macro use or
// derived form (let, cond, when, ...) can appear anywhere a kernel form
// evaluates a subexpression, not only as the literal outermost datum of
// a program, and each of those positions reaches step before it is
// evaluated.
func (ev *Evaluator) step(d syntax.Datum, env *value.Frame, tail bool) (value.Value, error) {
	expanded, err := ev.Expander.Expand(d)
	if err != nil {
		return nil, err
	}
	d = expanded
	if lit, ok := d.Node.(*ast.Literal); ok {
		return literalValue(lit)
	}
	if name, ok := d.IdentifierName(); ok {
		if name == "#t" {
			return value.True, nil
		}
		if name == "#f" {
			return value.False, nil
		}
		id := ev.Intern(name)
		if v, ok := env.Lookup(id); ok {
			return v, nil
		}
		return nil, unbound(d, name)
	}
	if !d.IsList() {
		return value.Unspecified, nil
	}
	elems := d.Elements()
	if len(elems) == 0 {
		return value.Nil, nil
	}
	if name, ok := elems[0].IdentifierName(); ok {
		if handled, v, err := ev.stepSpecialForm(name, d, elems, env, tail); handled {
			return v, err
		}
	}
	return ev.stepApplication(d, elems, env, tail)
}

func (ev *Evaluator) stepSpecialForm(name string, d syntax.Datum, elems []syntax.Datum, env *value.Frame, tail bool) (bool, value.Value, error) {
	switch name {
	case "quote":
		if len(elems) != 2 {
			return true, nil, malformed(d, "quote")
		}
		return true, datumToValue(elems[1]), nil
	case "if":
		v, err := ev.stepIf(d, elems, env, tail)
		return true, v, err
	case "lambda":
		v, err := ev.stepLambda(d, elems, env, "")
		return true, v, err
	case "named-lambda":
		if len(elems) < 3 {
			return true, nil, malformed(d, "named-lambda")
		}
		name, _ := elems[1].IdentifierName()
		v, err := ev.stepLambda(d, append([]syntax.Datum{elems[0], elems[2]}, elems[3:]...), env, name)
		return true, v, err
	case "define":
		v, err := ev.stepDefine(d, elems, env)
		return true, v, err
	case "set!":
		v, err := ev.stepSet(d, elems, env)
		return true, v, err
	case "begin":
		v, err := ev.evalBody(elems[1:], env, tail)
		return true, v, err
	case "and", "or":
		// expandDerived rewrites these into if forms before step sees
		// them; one that did arrive here would fall through to
		// stepApplication as an ordinary call.
		return false, nil, nil
	case "call/cc", "call-with-current-continuation":
		v, err := ev.stepCallCC(d, elems, env)
		return true, v, err
	case "dynamic-wind":
		v, err := ev.stepDynamicWind(d, elems, env)
		return true, v, err
	case "with-exception-handler":
		v, err := ev.stepWithExceptionHandler(d, elems, env)
		return true, v, err
	case "raise":
		v, err := ev.stepRaise(d, elems, env, false)
		return true, v, err
	case "raise-continuable":
		v, err := ev.stepRaise(d, elems, env, true)
		return true, v, err
	case "guard":
		v, err := ev.stepGuard(d, elems, env)
		return true, v, err
	case "parameterize":
		v, err := ev.stepParameterize(d, elems, env)
		return true, v, err
	case "values":
		v, err := ev.stepValues(elems, env)
		return true, v, err
	case "call-with-values":
		v, err := ev.stepCallWithValues(d, elems, env)
		return true, v, err
	case "define-record-type":
		v, err := ev.stepDefineRecordType(d, elems, env)
		return true, v, err
	case "define-syntax":
		v, err := ev.stepDefineSyntax(d, elems, env)
		return true, v, err
	case "handle":
		v, err := ev.stepHandle(d, elems, env)
		return true, v, err
	case "perform":
		v, err := ev.stepPerform(d, elems, env)
		return true, v, err
	case "define-effect":
		v, err := ev.stepDefineEffect(d, elems, env)
		return true, v, err
	case "with-handler":
		v, err := ev.stepWithHandler(d, elems, env)
		return true, v, err
	case "delay":
		v, err := ev.stepDelay(d, elems, env)
		return true, v, err
	case "quasiquote":
		if len(elems) != 2 {
			return true, nil, malformed(d, "quasiquote")
		}
		v, err := ev.evalQuasiquote(elems[1], env, 1)
		return true, v, err
	case "case-lambda":
		v, err := ev.stepCaseLambda(d, elems, env)
		return true, v, err
	default:
		return false, nil, nil
	}
}

func literalValue(lit *ast.Literal) (value.Value, error) {
	switch x := lit.Value.(type) {
	case bool:
		return value.Bool(x), nil
	case rune:
		return value.Char(x), nil
	case string:
		return value.NewString(x), nil
	case *big.Int:
		return value.NewBignum(x), nil
	case *big.Rat:
		return value.NewRational(x), nil
	case float64:
		return value.Real(x), nil
	case complex128:
		return value.Complex(x), nil
	case value.Value:
		return x, nil
	default:
		return value.Unspecified, nil
	}
}

// datumToValue converts a syntax-wrapped datum (as produced by `quote`)
// into a first-class Value, interning any identifiers as Symbols.
func datumToValue(d syntax.Datum) value.Value {
	if lit, ok := d.Node.(*ast.Literal); ok {
		v, _ := literalValue(lit)
		return v
	}
	if name, ok := d.IdentifierName(); ok {
		return value.NewSymbol(symbol.Default, name)
	}
	switch t := d.Node.(type) {
	case *ast.List:
		elems := d.Elements()
		var result value.Value = value.Nil
		for i := len(elems) - 1; i >= 0; i-- {
			result = value.Cons(datumToValue(elems[i]), result)
		}
		return result
	case *ast.Dotted:
		tail := datumToValue(syntax.Wrap(t.Tail, d.Scopes))
		for i := len(t.Head) - 1; i >= 0; i-- {
			tail = value.Cons(datumToValue(syntax.Wrap(t.Head[i], d.Scopes)), tail)
		}
		return tail
	case *ast.Vector:
		elems := d.Elements()
		out := make([]value.Value, len(elems))
		for i, e := range elems {
			out[i] = datumToValue(e)
		}
		return value.NewVector(out)
	default:
		return value.Unspecified
	}
}

func (ev *Evaluator) stepIf(d syntax.Datum, elems []syntax.Datum, env *value.Frame, tail bool) (value.Value, error) {
	if len(elems) < 3 || len(elems) > 4 {
		return nil, malformed(d, "if")
	}
	test, err := ev.evalSub(elems[1], env)
	if err != nil {
		return nil, err
	}
	if value.Truthy(test) {
		return ev.step(elems[2], env, tail)
	}
	if len(elems) == 4 {
		return ev.step(elems[3], env, tail)
	}
	return value.Unspecified, nil
}

func (ev *Evaluator) stepSet(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) != 3 {
		return nil, malformed(d, "set!")
	}
	name, ok := elems[1].IdentifierName()
	if !ok {
		return nil, malformed(d, "set!")
	}
	v, err := ev.evalSub(elems[2], env)
	if err != nil {
		return nil, err
	}
	id := ev.Intern(name)
	if err := env.Set(id, v); err != nil {
		return nil, diagnostics.New(diagnostics.CodeUnboundVariable, d.Span(), "unbound variable: %s", name)
	}
	return value.Unspecified, nil
}

func (ev *Evaluator) stepValues(elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	vals := make([]value.Value, len(elems)-1)
	for i, e := range elems[1:] {
		v, err := ev.evalSub(e, env)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	if len(vals) == 1 {
		return vals[0], nil
	}
	return &MultipleValues{Values: vals}, nil
}

// MultipleValues is the internal representation of an R7RS multiple-
// values result. call-with-values unpacks it; any other context that
// receives one (e.g. a single-value continuation) just uses the first
// value, matching R7RS's "passing multiple values to a continuation
// expecting one is unspecified" slack.
type MultipleValues struct {
	Values []value.Value
}

func (m *MultipleValues) Tag() value.Tag  { return value.TagUnspecified }
func (m *MultipleValues) Write() string   { return "#<values>" }
func (m *MultipleValues) Display() string { return m.Write() }

func (ev *Evaluator) stepCallWithValues(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) != 3 {
		return nil, malformed(d, "call-with-values")
	}
	producer, err := ev.evalSub(elems[1], env)
	if err != nil {
		return nil, err
	}
	consumer, err := ev.evalSub(elems[2], env)
	if err != nil {
		return nil, err
	}
	produced, err := ev.Apply(producer, nil, d.Span())
	if err != nil {
		return nil, err
	}
	var args []value.Value
	if mv, ok := produced.(*MultipleValues); ok {
		args = mv.Values
	} else {
		args = []value.Value{produced}
	}
	return ev.Apply(consumer, args, d.Span())
}

func (ev *Evaluator) stepDelay(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) != 2 {
		return nil, malformed(d, "delay")
	}
	body := elems[1]
	return &value.Promise{Thunk: func() (value.Value, error) {
		return ev.evalSub(body, env)
	}}, nil
}

func (ev *Evaluator) stepCaseLambda(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	cl := &CaseLambda{}
	for _, clause := range elems[1:] {
		ce := clause.Elements()
		if len(ce) < 1 {
			return nil, malformed(d, "case-lambda")
		}
		v, err := ev.stepLambda(d, append([]syntax.Datum{elems[0], ce[0]}, ce[1:]...), env, "")
		if err != nil {
			return nil, err
		}
		cl.Clauses = append(cl.Clauses, v.(*Closure))
	}
	return cl, nil
}
