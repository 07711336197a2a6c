package evaluator

import (
	"github.com/akasaka-miraina/lambdust-sub001/internal/ast"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// evalQuasiquote implements R7RS quasiquote, tracking nesting depth so
// an unquote/unquote-splicing only evaluates at the matching
// quasiquote's own level; a nested quasiquote increments depth and a
// nested unquote/unquote-splicing decrements it, reproducing the
// surrounding form as data rather than evaluating through it.
func (ev *Evaluator) evalQuasiquote(d syntax.Datum, env *value.Frame, depth int) (value.Value, error) {
	if _, ok := d.Node.(*ast.Literal); ok {
		return literalValue(d.Node.(*ast.Literal))
	}
	if d.IsIdentifier() {
		return datumToValue(d), nil
	}
	if !d.IsList() {
		return datumToValue(d), nil
	}
	elems := d.Elements()
	if len(elems) == 0 {
		return value.Nil, nil
	}
	if name, ok := elems[0].IdentifierName(); ok && len(elems) == 2 {
		switch name {
		case "unquote":
			if depth == 1 {
				return ev.evalSub(elems[1], env)
			}
			inner, err := ev.evalQuasiquote(elems[1], env, depth-1)
			if err != nil {
				return nil, err
			}
			return value.List(value.NewSymbol(ev.Interner, "unquote"), inner), nil
		case "quasiquote":
			inner, err := ev.evalQuasiquote(elems[1], env, depth+1)
			if err != nil {
				return nil, err
			}
			return value.List(value.NewSymbol(ev.Interner, "quasiquote"), inner), nil
		}
	}
	var result []value.Value
	for _, e := range elems {
		if ee := e.Elements(); len(ee) == 2 {
			if name, ok := ee[0].IdentifierName(); ok && name == "unquote-splicing" {
				if depth == 1 {
					spliced, err := ev.evalSub(ee[1], env)
					if err != nil {
						return nil, err
					}
					items, err := value.ToSlice(spliced)
					if err != nil {
						return nil, err
					}
					result = append(result, items...)
					continue
				}
				inner, err := ev.evalQuasiquote(ee[1], env, depth-1)
				if err != nil {
					return nil, err
				}
				result = append(result, value.List(value.NewSymbol(ev.Interner, "unquote-splicing"), inner))
				continue
			}
		}
		v, err := ev.evalQuasiquote(e, env, depth)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return value.List(result...), nil
}
