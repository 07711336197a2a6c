package evaluator

import (
	"github.com/akasaka-miraina/lambdust-sub001/internal/expander"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// stepDefineSyntax registers a top-level syntax-rules transformer:
//
//	(define-syntax name (syntax-rules (literal ...) (pattern template) ...))
func (ev *Evaluator) stepDefineSyntax(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) != 3 {
		return nil, malformed(d, "define-syntax")
	}
	name, ok := elems[1].IdentifierName()
	if !ok {
		return nil, malformed(d, "define-syntax")
	}
	transformer := elems[2].Elements()
	if len(transformer) < 2 {
		return nil, malformed(d, "syntax-rules")
	}
	if kw, ok := transformer[0].IdentifierName(); !ok || kw != "syntax-rules" {
		return nil, malformed(d, "define-syntax: only syntax-rules transformers are supported")
	}
	literals := map[string]bool{}
	for _, lit := range transformer[1].Elements() {
		litName, ok := lit.IdentifierName()
		if !ok {
			return nil, malformed(d, "syntax-rules literals")
		}
		literals[litName] = true
	}
	var rules []expander.Rule
	for _, r := range transformer[2:] {
		re := r.Elements()
		if len(re) != 2 {
			return nil, malformed(d, "syntax-rules clause")
		}
		rules = append(rules, expander.Rule{Pattern: re[0], Template: re[1]})
	}
	ev.Expander.DefineSyntax(&expander.Macro{Name: name, Literals: literals, Rules: rules})
	return value.NewSymbol(ev.Interner, name), nil
}
