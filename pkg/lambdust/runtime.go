// Package lambdust is the host embedding surface for the Lambdust
// runtime, generalizing the teacher's pkg/embed VM{machine, marshaller,
// bindings} shape into a Runtime wrapping an *evaluator.Evaluator.
//
// Eval and Apply are the only places a stray *contn.Jump can legally
// surface: every call/cc frame recovers its own Jump inside
// internal/evaluator, so a Jump reaching here means its Continuation
// was invoked outside the dynamic extent that captured it (a foreign
// continuation, §9). That is reported as CodeForeignContinuation rather
// than crashing the host process, exactly as internal/contn's package
// doc promises.
package lambdust

import (
	"fmt"
	"runtime"

	"github.com/akasaka-miraina/lambdust-sub001/internal/concurrency"
	"github.com/akasaka-miraina/lambdust-sub001/internal/config"
	"github.com/akasaka-miraina/lambdust-sub001/internal/contn"
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/effect"
	"github.com/akasaka-miraina/lambdust-sub001/internal/evaluator"
	"github.com/akasaka-miraina/lambdust-sub001/internal/reader"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/token"
	"github.com/akasaka-miraina/lambdust-sub001/internal/types"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// HostProcedure is a Go function registered with Define, invocable from
// Scheme exactly like a Primitive.
type HostProcedure func(args []value.Value) (value.Value, error)

// HostHandler answers a (perform effect op arg ...) from Go code,
// installed for the Runtime's whole lifetime rather than a single
// dynamic extent (unlike Scheme-level `handle`, which is block-scoped).
type HostHandler func(op string, args []value.Value) (value.Value, error)

// Runtime is the embeddable Lambdust instance: one global environment,
// one macro table, one module loader, shared by every worker spawned
// through internal/concurrency.
type Runtime struct {
	ev       *evaluator.Evaluator
	inferrer *types.Inferrer
	handlers map[string]HostHandler
}

// New creates a Runtime with default configuration.
func New() *Runtime {
	return NewWithConfig(config.Default())
}

// NewWithConfig creates a Runtime from an explicit configuration,
// e.g. loaded via config.Load for a lambdust.yaml document.
func NewWithConfig(cfg *config.Config) *Runtime {
	r := &Runtime{
		ev:       evaluator.New(cfg),
		handlers: map[string]HostHandler{},
	}
	r.inferrer = types.NewInferrer(r)
	return r
}

// EffectsOf implements types.EffectSource by reporting the effect
// operations registered via RegisterEffectHandler, so inference can
// annotate a call to a host-handled operation with its effect row
// without the type layer knowing anything about internal/effect.
func (r *Runtime) EffectsOf(name string) []string {
	if _, ok := r.handlers[name]; ok {
		return []string{name}
	}
	return nil
}

// Define registers a Go function as a global Scheme procedure.
func (r *Runtime) Define(name string, proc HostProcedure) {
	r.ev.Global.Define(r.ev.Intern(name), &evaluator.Primitive{Name: name, Fn: proc})
}

// RegisterEffectHandler installs a host-level handler for every
// `(perform effect op ...)` whose effect name matches and that no
// Scheme-level `handle` form currently shadows. h is called for every
// operation of that effect and receives the effect name, not the
// operation name, as its op argument.
func (r *Runtime) RegisterEffectHandler(effectName string, h HostHandler) {
	r.handlers[effectName] = h
	r.ev.Effects = r.ev.Effects.Install(effect.HandlerFrame{
		Effect: effectName,
		Operations: map[string]value.Value{
			"*": &evaluator.Primitive{
				Name: effectName + ".*",
				Fn: func(args []value.Value) (value.Value, error) {
					return h(effectName, args)
				},
			},
		},
	})
}

// Eval parses and evaluates source against the Runtime's global
// environment, recovering a stray continuation jump as
// CodeForeignContinuation instead of letting it escape as a raw panic.
func (r *Runtime) Eval(source string) (result value.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result, err = nil, r.foreignJump(rec)
		}
	}()
	program, rerr := reader.Read("<eval>", source)
	if rerr != nil {
		return nil, rerr
	}
	return r.ev.EvalProgram(program, r.ev.Global)
}

// Apply invokes proc (a procedure previously obtained from Eval, or
// defined via Define) with args, under the same foreign-continuation
// recovery as Eval.
func (r *Runtime) Apply(proc value.Value, args []value.Value) (result value.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result, err = nil, r.foreignJump(rec)
		}
	}()
	return r.ev.Apply(proc, args, token.Span{})
}

func (r *Runtime) foreignJump(rec any) error {
	jump, ok := rec.(*contn.Jump)
	if !ok {
		panic(rec)
	}
	return diagnostics.New(diagnostics.CodeForeignContinuation, token.Span{},
		"continuation %s invoked outside its capturing dynamic extent", jump.Target.Write())
}

// Infer runs the gradual type/effect inferrer (internal/types) over
// source's forms without evaluating them, returning the inferred type
// of the final form (spec §4.T). Every form is inferred against a
// running environment so later forms see earlier `define`s.
func (r *Runtime) Infer(source string) (types.Term, error) {
	program, err := reader.Read("<infer>", source)
	if err != nil {
		return nil, err
	}
	env := types.Env{}
	var last types.Term = types.Dyn{}
	for _, form := range program.Forms {
		d := syntax.Wrap(form, syntax.ScopeSet{syntax.NewScope()})
		term, subst, _, ierr := r.inferrer.Infer(env, d)
		if ierr != nil {
			return nil, ierr
		}
		last = term.Apply(subst)
	}
	return last, nil
}

// Fork forks an independent worker Evaluator sharing this Runtime's
// global bindings and macro table (spec §5), satisfying
// internal/concurrency.Spawner so a Runtime can seed a Pool directly.
func (r *Runtime) Fork() *evaluator.Evaluator { return r.ev.Fork() }

// Pool builds a bounded worker pool (internal/concurrency) seeded from
// this Runtime's global environment, sized per cfg.WorkerPoolSize when
// size is zero.
func (r *Runtime) Pool(size int64) *concurrency.Pool {
	if size == 0 {
		size = int64(r.ev.Config.WorkerPoolSize)
	}
	if size == 0 {
		size = int64(runtime.GOMAXPROCS(0))
	}
	return concurrency.NewPool(r, size)
}

func (r *Runtime) String() string {
	return fmt.Sprintf("#<lambdust-runtime %d effect handlers>", len(r.handlers))
}
