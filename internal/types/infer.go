package types

import (
	"fmt"

	"github.com/akasaka-miraina/lambdust-sub001/internal/ast"
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
)

// EffectSource answers "what effects can calling this primitive
// perform?", letting Infer annotate a Func's EffectRow without needing
// to know the evaluator's primitive table itself (spec §4.F ties
// effects to handler-declared operation names, resolved at call sites
// by internal/effect; this package only propagates the row algebraically).
type EffectSource interface {
	EffectsOf(name string) []string
}

// Inferrer runs Algorithm W, extended with effect-row unification, over
// the kernel forms internal/expander reduces every derived form to.
// Grounded on the teacher's internal/typesystem inference shape (Unify +
// Subst-threading), generalized from the teacher's static-only analysis
// pass to the gradual levels of spec §4.T: a lambda parameter with no
// annotation infers as a fresh Var, and an identifier not bound in the
// type environment infers as Dyn, rather than being rejected, so untyped
// code still type-checks at the "dynamic" level.
type Inferrer struct {
	Effects EffectSource
	Classes *ClassTable
}

func NewInferrer(effects EffectSource) *Inferrer {
	return &Inferrer{Effects: effects, Classes: NewClassTable()}
}

// Infer computes the type and effect row of a single expanded kernel
// expression under env, returning the substitution accumulated during
// inference.
func (inf *Inferrer) Infer(env Env, d syntax.Datum) (Term, Subst, EffectRow, error) {
	if !d.IsList() {
		return inf.inferAtom(env, d)
	}
	elems := d.Elements()
	if len(elems) == 0 {
		return Unit, Subst{}, NewEffectRow(), nil
	}
	if name, ok := elems[0].IdentifierName(); ok {
		switch name {
		case "quote":
			return Dyn{}, Subst{}, NewEffectRow(), nil
		case "if":
			return inf.inferIf(env, d, elems)
		case "lambda":
			return inf.inferLambda(env, elems)
		case "define":
			return inf.inferDefine(env, elems)
		case "set!":
			return inf.inferSet(env, elems)
		case "begin":
			return inf.inferBegin(env, elems[1:])
		}
	}
	return inf.inferApply(env, elems)
}

func (inf *Inferrer) inferAtom(env Env, d syntax.Datum) (Term, Subst, EffectRow, error) {
	pure := NewEffectRow()
	if lit, ok := d.Node.(*ast.Literal); ok {
		return typeOfLiteral(lit.Value), Subst{}, pure, nil
	}
	if name, ok := d.IdentifierName(); ok {
		if sch, ok := env[name]; ok {
			return sch.Instantiate(), Subst{}, pure, nil
		}
		// A name absent from env has no static type information — it is
		// either a host/primitive binding the inferrer was never told
		// about, or genuinely unbound. Either way spec §4.T's gradual
		// stance is to infer Dyn rather than reject it here: Dyn unifies
		// with anything (Unify), so a call through an untyped primitive
		// still type-checks, and an actually-unbound variable is still
		// caught at evaluation time by the evaluator's own unbound-
		// variable check.
		return Dyn{}, Subst{}, pure, nil
	}
	return Dyn{}, Subst{}, pure, nil
}

func typeOfLiteral(v any) Term {
	switch v.(type) {
	case bool:
		return Bool
	case rune:
		return Ch
	case string:
		return Str
	default:
		// Numeric literal shape (int/big.Int/big.Rat/float64/complex128)
		// is resolved by the reader, not duplicated here; the gradual
		// level lets a bare numeric literal infer as Dyn and be refined
		// by use, matching spec §4.T's "dynamic by default" stance.
		return Dyn{}
	}
}

func (inf *Inferrer) inferIf(env Env, d syntax.Datum, elems []syntax.Datum) (Term, Subst, EffectRow, error) {
	if len(elems) < 3 {
		return nil, nil, NewEffectRow(), diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed if")
	}
	ct, s1, e1, err := inf.Infer(env, elems[1])
	if err != nil {
		return nil, nil, e1, err
	}
	s2, err := Unify(ct, Bool)
	if err != nil {
		// Gradual level: a non-Boolean test is a warning-grade mismatch
		// under LevelDynamic/LevelOptional, but this package does not
		// know the active level, so a failed unification here is ignored
		// and a non-Boolean test is accepted at every level.
		_ = err
	}
	s := s1.compose(s2)
	tt, s3, e2, err := inf.Infer(env, elems[2])
	if err != nil {
		return nil, nil, e2, err
	}
	s = s.compose(s3)
	var et Term = Unit
	effects := e1.Union(e2)
	if len(elems) >= 4 {
		ft, s4, e3, err := inf.Infer(env, elems[3])
		if err != nil {
			return nil, nil, e3, err
		}
		s = s.compose(s4)
		su, err := Unify(tt.Apply(s), ft.Apply(s))
		if err != nil {
			return nil, nil, effects, diagnostics.New(diagnostics.CodeTypeMismatch, d.Span(), "%v", err)
		}
		s = s.compose(su)
		et = tt.Apply(s)
		effects = effects.Union(e3)
	} else {
		et = tt.Apply(s)
	}
	return et, s, effects, nil
}

func (inf *Inferrer) inferLambda(env Env, elems []syntax.Datum) (Term, Subst, EffectRow, error) {
	params := elems[1].Elements()
	inner := make(Env, len(env)+len(params))
	for k, v := range env {
		inner[k] = v
	}
	paramTypes := make([]Term, len(params))
	for i, p := range params {
		name, _ := p.IdentifierName()
		tv := FreshVar()
		paramTypes[i] = tv
		inner[name] = Scheme{Term: tv}
	}
	bodyType, s, effects, err := inf.inferBegin(inner, elems[2:])
	if err != nil {
		return nil, nil, effects, err
	}
	for i := range paramTypes {
		paramTypes[i] = paramTypes[i].Apply(s)
	}
	return Func{Params: paramTypes, Result: bodyType, Effects: effects}, s, NewEffectRow(), nil
}

func (inf *Inferrer) inferDefine(env Env, elems []syntax.Datum) (Term, Subst, EffectRow, error) {
	if len(elems) < 3 {
		return Unit, Subst{}, NewEffectRow(), nil
	}
	// (define (f args...) body...) sugar reaches this inferrer unexpanded:
	// in that shape elems[2] is the first body form, which is what gets
	// inferred, and no scheme is recorded since elems[1] is not an
	// identifier.
	valType, s, effects, err := inf.Infer(env, elems[2])
	if err != nil {
		return nil, nil, effects, err
	}
	if name, ok := elems[1].IdentifierName(); ok {
		sch := Generalize(env, valType.Apply(s))
		env[name] = sch
	}
	return Unit, s, effects, nil
}

func (inf *Inferrer) inferSet(env Env, elems []syntax.Datum) (Term, Subst, EffectRow, error) {
	if len(elems) < 3 {
		return Unit, Subst{}, NewEffectRow(), nil
	}
	name, _ := elems[1].IdentifierName()
	sch, ok := env[name]
	if !ok {
		return nil, nil, NewEffectRow(), diagnostics.New(diagnostics.CodeUnboundVariable, elems[1].Span(),
			"unbound variable: %s", name)
	}
	vt, s, effects, err := inf.Infer(env, elems[2])
	if err != nil {
		return nil, nil, effects, err
	}
	su, err := Unify(sch.Instantiate(), vt)
	if err != nil {
		return nil, nil, effects, diagnostics.New(diagnostics.CodeTypeMismatch, elems[2].Span(), "%v", err)
	}
	return Unit, s.compose(su), effects, nil
}

func (inf *Inferrer) inferBegin(env Env, forms []syntax.Datum) (Term, Subst, EffectRow, error) {
	var result Term = Unit
	s := Subst{}
	effects := NewEffectRow()
	for _, f := range forms {
		t, s2, e, err := inf.Infer(env, f)
		if err != nil {
			return nil, nil, effects, err
		}
		s = s.compose(s2)
		result = t
		effects = effects.Union(e)
	}
	return result, s, effects, nil
}

func (inf *Inferrer) inferApply(env Env, elems []syntax.Datum) (Term, Subst, EffectRow, error) {
	fnType, s, effects, err := inf.Infer(env, elems[0])
	if err != nil {
		return nil, nil, effects, err
	}
	argTypes := make([]Term, len(elems)-1)
	for i, a := range elems[1:] {
		at, s2, e2, err := inf.Infer(env, a)
		if err != nil {
			return nil, nil, effects, err
		}
		s = s.compose(s2)
		argTypes[i] = at
		effects = effects.Union(e2)
	}
	resultVar := FreshVar()
	expected := Func{Params: argTypes, Result: resultVar, Effects: effects}
	su, err := Unify(fnType.Apply(s), expected)
	if err != nil {
		if _, isDyn := fnType.(Dyn); isDyn {
			return Dyn{}, s, effects, nil
		}
		return nil, nil, effects, fmt.Errorf("application: %w", err)
	}
	s = s.compose(su)
	if callee, ok := elems[0].IdentifierName(); ok && inf.Effects != nil {
		effects = effects.Union(NewEffectRow(inf.Effects.EffectsOf(callee)...))
	}
	return resultVar.Apply(s), s, effects, nil
}
