// Package expander implements the M (macro expander) component: a
// hygienic syntax-rules expander plus rewriting of the derived forms
// named in spec §4.M (cond, case, when, unless, let, let*, letrec, do,
// and, or) down to the kernel forms the evaluator actually implements
// (lambda, if, set!, begin, define, quote, call/cc-adjacent
// primitives). quasiquote is not rewritten here; the evaluator
// evaluates it directly.
//
// Grounded on the teacher's internal/analyzer macro-ish desugaring
// passes and its internal/ast Visitor-driven rewriting style, adapted
// from compile-time static analysis to runtime-available hygienic
// macro expansion with fresh-scope-per-expansion as required by spec
// §4.M ("each use introduces a fresh set of scopes; hygiene prevents
// variable capture in both directions").
package expander

import (
	"github.com/akasaka-miraina/lambdust-sub001/internal/ast"
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/token"
)

// Macro is a syntax-rules transformer: a literal set and an ordered list
// of pattern/template rules.
type Macro struct {
	Name     string
	Literals map[string]bool
	Rules    []Rule
	DefScope syntax.ScopeSet
}

// Rule is one syntax-rules clause.
type Rule struct {
	Pattern  syntax.Datum
	Template syntax.Datum
}

// Expander owns the macro table and expands top-level forms one at a
// time, each call using a fresh macro-use scope so that two invocations
// of the same macro never share identifier identity (hygiene's
// non-capture property for introduced bindings).
type Expander struct {
	macros map[string]*Macro
}

func New() *Expander {
	return &Expander{macros: make(map[string]*Macro)}
}

// DefineSyntax registers m under its own name, making it visible to
// subsequent Expand calls (R7RS top-level define-syntax; a lexically
// scoped let-syntax/letrec-syntax is a concern of the evaluator's kernel
// forms, not of this table).
func (e *Expander) DefineSyntax(m *Macro) {
	e.macros[m.Name] = m
}

// Lookup reports whether name is bound to a macro transformer.
func (e *Expander) Lookup(name string) (*Macro, bool) {
	m, ok := e.macros[name]
	return m, ok
}

// Expand fully expands d, repeatedly rewriting the outermost macro use
// (or derived special form) until a fixed point of kernel forms is
// reached. Non-macro forms are returned as-is; the evaluator is
// responsible for recursing into subexpressions of kernel forms.
func (e *Expander) Expand(d syntax.Datum) (syntax.Datum, error) {
	for steps := 0; ; steps++ {
		if steps > 10000 {
			return d, diagnostics.New(diagnostics.CodeAmbiguousTemplate, d.Span(),
				"macro expansion did not terminate")
		}
		if !d.IsList() {
			return d, nil
		}
		elems := d.Elements()
		if len(elems) == 0 {
			return d, nil
		}
		name, ok := elems[0].IdentifierName()
		if !ok {
			return d, nil
		}
		if m, ok := e.macros[name]; ok {
			expanded, err := e.expandOne(m, d)
			if err != nil {
				return d, err
			}
			d = expanded
			continue
		}
		if rewritten, ok, err := expandDerived(name, d, elems); ok {
			if err != nil {
				return d, err
			}
			d = rewritten
			continue
		}
		return d, nil
	}
}

func (e *Expander) expandOne(m *Macro, use syntax.Datum) (syntax.Datum, error) {
	for _, rule := range m.Rules {
		bindings := map[string][]syntax.Datum{}
		if matchPattern(rule.Pattern, use, m.Literals, bindings, true) {
			scope := syntax.NewScope()
			return instantiate(rule.Template, bindings, scope), nil
		}
	}
	return use, diagnostics.New(diagnostics.CodePatternMismatch, use.Span(),
		"no matching syntax-rules clause for %s", m.Name)
}

// matchPattern implements syntax-rules pattern matching: literals must
// match by name, `_` matches anything without binding, a bare identifier
// is a pattern variable, and `p ...` greedily matches zero or more
// following elements, binding each pattern variable in p to a sequence.
// skipKeyword discards the macro keyword position (the pattern's own
// leading element never constrains the match).
func matchPattern(pat, use syntax.Datum, literals map[string]bool, bindings map[string][]syntax.Datum, skipKeyword bool) bool {
	if pat.IsIdentifier() {
		name, _ := pat.IdentifierName()
		if name == "_" {
			return true
		}
		if literals[name] {
			useName, ok := use.IdentifierName()
			return ok && useName == name
		}
		bindings[name] = append(bindings[name], use)
		return true
	}
	if !pat.IsList() || !use.IsList() {
		return pat.IsList() == use.IsList()
	}
	pelems := pat.Elements()
	uelems := use.Elements()
	if skipKeyword {
		if len(pelems) == 0 {
			return len(uelems) == 0
		}
		pelems = pelems[1:]
		if len(uelems) == 0 {
			return false
		}
		uelems = uelems[1:]
	}
	return matchSeq(pelems, uelems, literals, bindings)
}

func matchSeq(pelems, uelems []syntax.Datum, literals map[string]bool, bindings map[string][]syntax.Datum) bool {
	for i := 0; i < len(pelems); i++ {
		if i+1 < len(pelems) {
			if name, ok := pelems[i+1].IdentifierName(); ok && name == "..." {
				sub := pelems[i]
				remaining := len(pelems) - i - 2
				take := len(uelems) - remaining
				if take < 0 {
					return false
				}
				registerPatternVars(sub, literals, bindings)
				for k := 0; k < take; k++ {
					if !matchPattern(sub, uelems[k], literals, bindings, false) {
						return false
					}
				}
				return matchSeq(pelems[i+2:], uelems[take:], literals, bindings)
			}
		}
		if i >= len(uelems) {
			return false
		}
		if !matchPattern(pelems[i], uelems[i], literals, bindings, false) {
			return false
		}
	}
	return len(pelems) == len(uelems)
}

// registerPatternVars ensures every pattern variable under an ellipsis
// sub-pattern has a (possibly empty) binding slice, so a zero-repetition
// match still produces an entry the template substitution can find.
func registerPatternVars(pat syntax.Datum, literals map[string]bool, bindings map[string][]syntax.Datum) {
	if pat.IsIdentifier() {
		name, _ := pat.IdentifierName()
		if name != "_" && name != "..." && !literals[name] {
			if _, ok := bindings[name]; !ok {
				bindings[name] = []syntax.Datum{}
			}
		}
		return
	}
	if pat.IsList() {
		for _, e := range pat.Elements() {
			registerPatternVars(e, literals, bindings)
		}
	}
}

// instantiate substitutes pattern-variable bindings into the template
// and stamps every identifier the template introduces (i.e. every
// identifier that is NOT a substituted pattern variable) with a fresh
// scope, implementing hygiene: template-introduced identifiers can
// never be captured by, or capture, identifiers at the use site.
func instantiate(tmpl syntax.Datum, bindings map[string][]syntax.Datum, scope syntax.ScopeID) syntax.Datum {
	if tmpl.IsIdentifier() {
		name, _ := tmpl.IdentifierName()
		if vals, ok := bindings[name]; ok {
			if len(vals) == 1 {
				return vals[0]
			}
			if len(vals) == 0 {
				return tmpl
			}
			return vals[0]
		}
		return tmpl.AddScope(scope)
	}
	if !tmpl.IsList() {
		return tmpl
	}
	elems := tmpl.Elements()
	var out []syntax.Datum
	for i := 0; i < len(elems); i++ {
		if i+1 < len(elems) {
			if name, ok := elems[i+1].IdentifierName(); ok && name == "..." {
				n := ellipsisCount(elems[i], bindings)
				for k := 0; k < n; k++ {
					out = append(out, instantiateIndexed(elems[i], bindings, scope, k))
				}
				i++
				continue
			}
		}
		out = append(out, instantiate(elems[i], bindings, scope))
	}
	return rebuildList(tmpl, out)
}

func ellipsisCount(sub syntax.Datum, bindings map[string][]syntax.Datum) int {
	if sub.IsIdentifier() {
		name, _ := sub.IdentifierName()
		if vals, ok := bindings[name]; ok {
			return len(vals)
		}
		return 0
	}
	max := 0
	if sub.IsList() {
		for _, e := range sub.Elements() {
			if n := ellipsisCount(e, bindings); n > max {
				max = n
			}
		}
	}
	return max
}

func instantiateIndexed(sub syntax.Datum, bindings map[string][]syntax.Datum, scope syntax.ScopeID, idx int) syntax.Datum {
	if sub.IsIdentifier() {
		name, _ := sub.IdentifierName()
		if vals, ok := bindings[name]; ok {
			if idx < len(vals) {
				return vals[idx]
			}
			return sub
		}
		return sub.AddScope(scope)
	}
	if !sub.IsList() {
		return sub
	}
	var out []syntax.Datum
	for _, e := range sub.Elements() {
		out = append(out, instantiateIndexed(e, bindings, scope, idx))
	}
	return rebuildList(sub, out)
}

// rebuildList materializes a new List AST node from already-instantiated
// child datums, discarding their syntax wrapping back to plain ast.Node
// so the result can re-enter Wrap on the next expansion pass.
func rebuildList(shape syntax.Datum, children []syntax.Datum) syntax.Datum {
	nodes := make([]ast.Node, len(children))
	for i, c := range children {
		nodes[i] = unwrap(c)
	}
	list := &ast.List{SourceSpan: shape.Span(), Elements: nodes}
	return syntax.Wrap(list, shape.Scopes)
}

func unwrap(d syntax.Datum) ast.Node {
	if id, ok := d.Node.(*ast.Identifier); ok && d.Name != "" {
		return &ast.Identifier{SourceSpan: id.SourceSpan, Name: d.Name}
	}
	return d.Node
}

// expandDerived rewrites one step of a derived-form use (cond, case,
// when, unless, let, let*, letrec, do, and, or) to kernel
// forms, per spec §4.M's derived-form table. Returns ok=false when name
// does not name a derived form this package recognizes.
func expandDerived(name string, d syntax.Datum, elems []syntax.Datum) (syntax.Datum, bool, error) {
	switch name {
	case "when":
		// (when test body ...) => (if test (begin body ...) (if #f #f))
		if len(elems) < 2 {
			return d, true, diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed when")
		}
		body := kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "begin")}, elems[2:]...))
		unspec := kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), ident(d.Span(), "#f"), ident(d.Span(), "#f")})
		return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), elems[1], body, unspec}), true, nil
	case "unless":
		if len(elems) < 2 {
			return d, true, diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed unless")
		}
		body := kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "begin")}, elems[2:]...))
		notTest := kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "not"), elems[1]})
		unspec := kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), ident(d.Span(), "#f"), ident(d.Span(), "#f")})
		return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), notTest, body, unspec}), true, nil
	case "and":
		return expandAnd(d, elems), true, nil
	case "or":
		return expandOr(d, elems), true, nil
	case "let":
		return expandLet(d, elems)
	case "let*":
		return expandLetStar(d, elems)
	case "letrec", "letrec*":
		return expandLetrec(d, elems)
	case "cond":
		return expandCond(d, elems)
	case "case":
		return expandCase(d, elems)
	case "do":
		return expandDo(d, elems)
	default:
		return d, false, nil
	}
}

func ident(span token.Span, name string) syntax.Datum {
	return syntax.Wrap(&ast.Identifier{SourceSpan: span, Name: name}, nil)
}

func kernelList(span token.Span, elems []syntax.Datum) syntax.Datum {
	nodes := make([]ast.Node, len(elems))
	for i, e := range elems {
		nodes[i] = unwrap(e)
	}
	return syntax.Wrap(&ast.List{SourceSpan: span, Elements: nodes}, nil)
}

func expandAnd(d syntax.Datum, elems []syntax.Datum) syntax.Datum {
	args := elems[1:]
	if len(args) == 0 {
		return ident(d.Span(), "#t")
	}
	if len(args) == 1 {
		return args[0]
	}
	rest := expandAnd(d, append([]syntax.Datum{elems[0]}, args[1:]...))
	return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), args[0], rest, ident(d.Span(), "#f")})
}

func expandOr(d syntax.Datum, elems []syntax.Datum) syntax.Datum {
	args := elems[1:]
	if len(args) == 0 {
		return ident(d.Span(), "#f")
	}
	if len(args) == 1 {
		return args[0]
	}
	// (or a rest...) => (let ((t a)) (if t t (or rest...)))
	tmp := ident(d.Span(), "%or-tmp")
	binding := kernelList(d.Span(), []syntax.Datum{tmp, args[0]})
	bindings := kernelList(d.Span(), []syntax.Datum{binding})
	rest := expandOr(d, append([]syntax.Datum{elems[0]}, args[1:]...))
	body := kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), tmp, tmp, rest})
	return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "let"), bindings, body})
}

func expandLet(d syntax.Datum, elems []syntax.Datum) (syntax.Datum, bool, error) {
	if len(elems) < 3 {
		return d, true, diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed let")
	}
	// Named let: (let loop ((v init) ...) body ...)
	if elems[1].IsIdentifier() {
		loopName, _ := elems[1].IdentifierName()
		bindingList := elems[2].Elements()
		params := make([]syntax.Datum, len(bindingList))
		inits := make([]syntax.Datum, len(bindingList))
		for i, b := range bindingList {
			be := b.Elements()
			params[i] = be[0]
			inits[i] = be[1]
		}
		lambda := kernelList(d.Span(), append([]syntax.Datum{
			ident(d.Span(), "lambda"), kernelList(d.Span(), params)}, elems[3:]...))
		letrecBinding := kernelList(d.Span(), []syntax.Datum{elems[1], lambda})
		call := kernelList(d.Span(), append([]syntax.Datum{elems[1]}, inits...))
		body := kernelList(d.Span(), []syntax.Datum{
			ident(d.Span(), "letrec"), kernelList(d.Span(), []syntax.Datum{letrecBinding}), call})
		_ = loopName
		return body, true, nil
	}
	bindingList := elems[1].Elements()
	params := make([]syntax.Datum, len(bindingList))
	args := make([]syntax.Datum, len(bindingList))
	for i, b := range bindingList {
		be := b.Elements()
		params[i] = be[0]
		args[i] = be[1]
	}
	lambda := kernelList(d.Span(), append([]syntax.Datum{
		ident(d.Span(), "lambda"), kernelList(d.Span(), params)}, elems[2:]...))
	return kernelList(d.Span(), append([]syntax.Datum{lambda}, args...)), true, nil
}

func expandLetStar(d syntax.Datum, elems []syntax.Datum) (syntax.Datum, bool, error) {
	if len(elems) < 3 {
		return d, true, diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed let*")
	}
	bindingList := elems[1].Elements()
	if len(bindingList) == 0 {
		return expandLet(d, append([]syntax.Datum{elems[0], elems[1]}, elems[2:]...))
	}
	first := kernelList(d.Span(), []syntax.Datum{bindingList[0]})
	innerLetStar := kernelList(d.Span(), append([]syntax.Datum{
		ident(d.Span(), "let*"), kernelList(d.Span(), bindingList[1:])}, elems[2:]...))
	outer := kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "let"), first, innerLetStar})
	return outer, true, nil
}

func expandLetrec(d syntax.Datum, elems []syntax.Datum) (syntax.Datum, bool, error) {
	if len(elems) < 3 {
		return d, true, diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed letrec")
	}
	bindingList := elems[1].Elements()
	var defines []syntax.Datum
	for _, b := range bindingList {
		be := b.Elements()
		defines = append(defines, kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "define"), be[0], be[1]}))
	}
	body := append(defines, elems[2:]...)
	return kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "let"), kernelList(d.Span(), nil)}, body...)), true, nil
}

func expandCond(d syntax.Datum, elems []syntax.Datum) (syntax.Datum, bool, error) {
	clauses := elems[1:]
	if len(clauses) == 0 {
		return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), ident(d.Span(), "#f"), ident(d.Span(), "#f"), ident(d.Span(), "#f")}), true, nil
	}
	head := clauses[0].Elements()
	if len(head) == 0 {
		return d, true, diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed cond clause")
	}
	rest := kernelList(d.Span(), append([]syntax.Datum{elems[0]}, clauses[1:]...))
	if name, ok := head[0].IdentifierName(); ok && name == "else" {
		return kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "begin")}, head[1:]...)), true, nil
	}
	if len(head) >= 3 {
		if name, ok := head[1].IdentifierName(); ok && name == "=>" {
			// (test => proc) — proc applied to test's value if truthy.
			tmp := ident(d.Span(), "%cond-tmp")
			call := kernelList(d.Span(), []syntax.Datum{head[2], tmp})
			binding := kernelList(d.Span(), []syntax.Datum{tmp, head[0]})
			body := kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), tmp, call, rest})
			return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "let"), kernelList(d.Span(), []syntax.Datum{binding}), body}), true, nil
		}
	}
	var consequent syntax.Datum
	if len(head) == 1 {
		consequent = head[0]
	} else {
		consequent = kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "begin")}, head[1:]...))
	}
	return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), head[0], consequent, rest}), true, nil
}

func expandCase(d syntax.Datum, elems []syntax.Datum) (syntax.Datum, bool, error) {
	if len(elems) < 2 {
		return d, true, diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed case")
	}
	key := elems[1]
	clauses := elems[2:]
	tmp := ident(d.Span(), "%case-key")
	body := buildCaseClauses(d, tmp, clauses)
	binding := kernelList(d.Span(), []syntax.Datum{tmp, key})
	return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "let"), kernelList(d.Span(), []syntax.Datum{binding}), body}), true, nil
}

func buildCaseClauses(d syntax.Datum, key syntax.Datum, clauses []syntax.Datum) syntax.Datum {
	if len(clauses) == 0 {
		return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), ident(d.Span(), "#f"), ident(d.Span(), "#f"), ident(d.Span(), "#f")})
	}
	head := clauses[0].Elements()
	rest := buildCaseClauses(d, key, clauses[1:])
	if name, ok := head[0].IdentifierName(); ok && name == "else" {
		return kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "begin")}, head[1:]...))
	}
	datums := head[0].Elements()
	var test syntax.Datum
	if len(datums) == 0 {
		test = ident(d.Span(), "#f")
	} else {
		var memv []syntax.Datum
		memv = append(memv, ident(d.Span(), "memv"), key, kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "quasiquote")}, head[0])))
		test = kernelList(d.Span(), memv)
	}
	consequent := kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "begin")}, head[1:]...))
	return kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), test, consequent, rest})
}

func expandDo(d syntax.Datum, elems []syntax.Datum) (syntax.Datum, bool, error) {
	if len(elems) < 3 {
		return d, true, diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed do")
	}
	specs := elems[1].Elements()
	testClause := elems[2].Elements()
	if len(testClause) == 0 {
		return d, true, diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed do test clause")
	}
	commands := elems[3:]

	var params, inits, steps []syntax.Datum
	for _, s := range specs {
		se := s.Elements()
		params = append(params, se[0])
		inits = append(inits, se[1])
		if len(se) >= 3 {
			steps = append(steps, se[2])
		} else {
			steps = append(steps, se[0])
		}
	}
	loopName := ident(d.Span(), "%do-loop")
	recurCall := kernelList(d.Span(), append([]syntax.Datum{loopName}, steps...))
	bodyForms := append(append([]syntax.Datum{}, commands...), recurCall)
	resultBody := kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "begin")}, testClause[1:]...))
	ifForm := kernelList(d.Span(), []syntax.Datum{ident(d.Span(), "if"), testClause[0], resultBody,
		kernelList(d.Span(), append([]syntax.Datum{ident(d.Span(), "begin")}, bodyForms...))})

	var bindings []syntax.Datum
	for i := range params {
		bindings = append(bindings, kernelList(d.Span(), []syntax.Datum{params[i], inits[i]}))
	}
	named := kernelList(d.Span(), append([]syntax.Datum{
		ident(d.Span(), "let"), loopName, kernelList(d.Span(), bindings)}, ifForm))
	return named, true, nil
}
