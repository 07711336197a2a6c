// Package evaluator implements the EV (evaluator) component: it drives
// expansion (internal/expander) and evaluation of syntax objects
// (internal/syntax) over the Value/Frame model (internal/value),
// threading the dynamic state components (internal/dynstate,
// internal/effect, internal/contn) required by spec §4.EV's application
// semantics.
//
// Tail calls run through an explicit trampoline in evalBody/Apply so a
// self-tail-recursive loop executes in O(1) Go stack regardless of
// iteration count (spec §4.EV, "proper tail calls"); non-tail
// evaluation recurses on the Go call stack directly, bounded by
// Config.MaxStackDepth (spec §7 CodeStackOverflow).
//
// Grounded on the teacher's expression/statement evaluation split
// (internal/evaluator/expressions*.go, statements*.go in the original
// teacher tree) and its signal-object control-flow discipline, adapted
// to the CEK-flavored trampoline spec §4.EV calls for.
package evaluator

import (
	"fmt"
	"os"

	"github.com/akasaka-miraina/lambdust-sub001/internal/ast"
	"github.com/akasaka-miraina/lambdust-sub001/internal/config"
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/dynstate"
	"github.com/akasaka-miraina/lambdust-sub001/internal/effect"
	"github.com/akasaka-miraina/lambdust-sub001/internal/expander"
	"github.com/akasaka-miraina/lambdust-sub001/internal/loader"
	"github.com/akasaka-miraina/lambdust-sub001/internal/symbol"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/types"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// Evaluator is one evaluation context. Global, Interner, Expander, and
// Loader are shared across every worker spawned from the same Runtime
// (spec §5); Handlers, Winds, Effects, and the recursion depth counter
// are per-instance so two workers never observe each other's dynamic
// extent (spec §9, "independent evaluator instances per worker").
type Evaluator struct {
	Interner *symbol.Interner
	Global   *value.Frame
	Expander *expander.Expander
	Loader   *loader.Loader
	Config   *config.Config

	Handlers *dynstate.HandlerStack
	Winds    *dynstate.WindStack
	Effects  *effect.Stack

	// EffectDecls records define-effect declarations by name, for
	// diagnostics; with-handler's operation dispatch is resolved by
	// lexical lookup (see effects.go's ResumableOp) and does not consult
	// this map.
	EffectDecls map[string]*effect.Declaration

	// Inferrer and TypeEnv are EvalProgram's connection to T (spec §4.T):
	// TypeEnv accumulates every top-level define's generalized scheme
	// the same way Global accumulates its runtime value, so later forms'
	// inference sees earlier ones. Consulted only per Config.TypeLevel —
	// see checkType.
	Inferrer *types.Inferrer
	TypeEnv  types.Env

	// Warn reports an "optional" type-level mismatch (spec §4.T:
	// "annotations recorded, warnings only") without blocking
	// evaluation. Defaults to writing to stderr in the same style
	// cmd/lambdust/main.go already reports diagnostics.
	Warn func(string)

	depth int
}

// New creates a fresh top-level Evaluator with its own global frame,
// expander, and dynamic state, wired to cfg.
func New(cfg *config.Config) *Evaluator {
	if cfg == nil {
		cfg = config.Default()
	}
	in := symbol.Default
	ev := &Evaluator{
		Interner: in,
		Global:   value.NewFrame(nil),
		Expander: expander.New(),
		Loader:   loader.New(cfg),
		Config:   cfg,
		Handlers: dynstate.NewHandlerStack(),
		Winds:    dynstate.NewWindStack(),
		Effects:  effect.NewStack(),
		TypeEnv:  types.Env{},
		Warn: func(msg string) {
			fmt.Fprintln(os.Stderr, "lambdust: type warning:", msg)
		},
	}
	ev.Inferrer = types.NewInferrer(ev)
	InstallBuiltins(ev)
	return ev
}

// EffectsOf implements types.EffectSource by reporting the operation
// names declared for every define-effect this Evaluator has evaluated,
// so the inferrer can annotate a call's effect row without importing
// internal/effect itself. A host-registered effect handler
// (pkg/lambdust.Runtime.RegisterEffectHandler) is a separate
// EffectSource of its own; the two are not merged here since an
// Evaluator has no reference back to its owning Runtime.
func (ev *Evaluator) EffectsOf(name string) []string {
	var out []string
	for _, decl := range ev.EffectDecls {
		if _, ok := decl.Operations[name]; ok {
			out = append(out, decl.Name)
		}
	}
	return out
}

// Fork creates a worker evaluator sharing this Evaluator's global
// bindings, macro table, and module loader, but with independent
// exception-handler, dynamic-wind, and effect-handler stacks (spec §5:
// "independent evaluator instances per worker").
func (ev *Evaluator) Fork() *Evaluator {
	child := &Evaluator{
		Interner:    ev.Interner,
		Global:      ev.Global,
		Expander:    ev.Expander,
		Loader:      ev.Loader,
		Config:      ev.Config,
		Handlers:    dynstate.NewHandlerStack(),
		Winds:       dynstate.NewWindStack(),
		Effects:     effect.NewStack(),
		EffectDecls: ev.EffectDecls,
		TypeEnv:     ev.TypeEnv,
		Warn:        ev.Warn,
	}
	child.Inferrer = types.NewInferrer(child)
	return child
}

// Intern interns name against this evaluator's shared interner.
func (ev *Evaluator) Intern(name string) symbol.ID { return ev.Interner.Intern(name) }

// EvalProgram expands and evaluates every top-level form of p in
// sequence against env, returning the value of the last form (R7RS
// top-level program semantics; the host embedding layer in
// pkg/lambdust is what callers actually use, but this is its core).
//
// Whether and when each form is consulted against T depends on
// Config.TypeLevel (spec §2: "EV consults T when ... a static-level
// module is in effect"; §4.T's four levels):
//
//   - dynamic: T is never consulted — zero overhead, matching "no checks".
//   - optional: each form is checked but a mismatch only calls Warn, never
//     blocks evaluation ("annotations recorded, warnings only").
//   - gradual: each form is checked immediately before it is evaluated; a
//     mismatch raises CodeTypeMismatch in place of evaluating that form
//     ("boundary casts ... failure is a TypeError at the boundary" —
//     deferred to the point evaluation actually reaches it, not
//     preparation time).
//   - static: every form is checked in a pass preceding evaluation of any
//     of them; the first mismatch aborts before any user code runs
//     ("every expression must type-check at preparation time").
func (ev *Evaluator) EvalProgram(p *ast.Program, env *value.Frame) (value.Value, error) {
	wrapped := make([]syntax.Datum, len(p.Forms))
	for i, form := range p.Forms {
		wrapped[i] = syntax.Wrap(form, syntax.ScopeSet{syntax.NewScope()})
	}
	if ev.Config.TypeLevel == config.TypeLevelStatic {
		for _, d := range wrapped {
			if err := ev.checkType(d); err != nil {
				return nil, diagnostics.New(diagnostics.CodeTypeMismatch, d.Span(),
					"static type check failed in preparation: %v", err)
			}
		}
	}
	var result value.Value = value.Unspecified
	for _, d := range wrapped {
		switch ev.Config.TypeLevel {
		case config.TypeLevelGradual:
			if err := ev.checkType(d); err != nil {
				return nil, diagnostics.New(diagnostics.CodeTypeMismatch, d.Span(),
					"type error at gradual boundary: %v", err)
			}
		case config.TypeLevelOptional:
			if err := ev.checkType(d); err != nil {
				ev.Warn(fmt.Sprintf("%s: %v", d.Span(), err))
			}
		}
		v, err := ev.Eval(d, env)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// checkType expands d the same way step does (the inferrer, like the
// evaluator, only understands kernel forms — quote/if/lambda/define/
// set!/begin/application — not derived forms or user macros) and runs
// the Algorithm W inferrer over it, threading ev.TypeEnv so a later
// form's inference sees an earlier define's generalized type, exactly
// as evaluation threads env for values.
func (ev *Evaluator) checkType(d syntax.Datum) error {
	expanded, err := ev.Expander.Expand(d)
	if err != nil {
		return err
	}
	_, _, _, err = ev.Inferrer.Infer(ev.TypeEnv, expanded)
	return err
}

// Eval expands and evaluates a single syntax object to a Value. It
// recurses on the Go stack for non-tail positions, incrementing and
// decrementing depth so runaway non-tail recursion raises
// CodeStackOverflow instead of crashing the process.
func (ev *Evaluator) Eval(d syntax.Datum, env *value.Frame) (value.Value, error) {
	ev.depth++
	defer func() { ev.depth-- }()
	if ev.depth > ev.Config.MaxStackDepth {
		return nil, diagnostics.New(diagnostics.CodeStackOverflow, d.Span(), "maximum recursion depth exceeded")
	}
	return ev.evalTail(d, env)
}

// evalTail evaluates d, trampolining through any chain of tail calls so
// that a self-tail-recursive (or mutually tail-recursive) sequence never
// grows the Go stack: applying a Closure in tail position returns a
// *tailCall marker instead of recursing, and this loop keeps unwrapping
// markers until a final Value is produced.
func (ev *Evaluator) evalTail(d syntax.Datum, env *value.Frame) (value.Value, error) {
	for {
		v, err := ev.step(d, env, true)
		if err != nil {
			return nil, err
		}
		tc, ok := v.(*tailCall)
		if !ok {
			return v, nil
		}
		d, env = tc.body, tc.env
	}
}

// tailCall is an internal-only marker value (never exposed as a
// value.Value to Scheme code) produced by enterClosure when a Closure is
// invoked from a tail position: it carries the single remaining body
// expression and environment still to evaluate, letting evalTail
// continue the loop instead of growing the Go stack.
type tailCall struct {
	body syntax.Datum
	env  *value.Frame
}

func (t *tailCall) Tag() value.Tag  { panic("tailCall is an internal control marker, not a Value") }
func (t *tailCall) Write() string   { return "#<tail-call>" }
func (t *tailCall) Display() string { return "#<tail-call>" }

// evalSub evaluates a non-tail subexpression: quote's argument, an
// operator or operand position, a let binding's initializer, and so on.
// It always fully resolves any tailCall marker before returning, since a
// non-tail caller must receive a real Value, and reduces a multiple-
// values result to its first value. Like Eval, it counts against
// Config.MaxStackDepth.
func (ev *Evaluator) evalSub(d syntax.Datum, env *value.Frame) (value.Value, error) {
	ev.depth++
	defer func() { ev.depth-- }()
	if ev.depth > ev.Config.MaxStackDepth {
		return nil, diagnostics.New(diagnostics.CodeStackOverflow, d.Span(), "maximum recursion depth exceeded")
	}
	v, err := ev.step(d, env, false)
	if err != nil {
		return nil, err
	}
	if tc, ok := v.(*tailCall); ok {
		v, err = ev.evalTail(syntax.Wrap(tc.body.Node, tc.body.Scopes), tc.env)
		if err != nil {
			return nil, err
		}
	}
	if mv, ok := v.(*MultipleValues); ok && len(mv.Values) > 0 {
		return mv.Values[0], nil
	}
	return v, nil
}

func unbound(d syntax.Datum, name string) error {
	return diagnostics.New(diagnostics.CodeUnboundVariable, d.Span(), "unbound variable: %s", name)
}

func malformed(d syntax.Datum, form string) error {
	return diagnostics.New(diagnostics.CodeMalformedForm, d.Span(), "ill-formed special form: %s", form)
}
