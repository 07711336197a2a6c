package evaluator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasaka-miraina/lambdust-sub001/internal/config"
	"github.com/akasaka-miraina/lambdust-sub001/internal/evaluator"
	"github.com/akasaka-miraina/lambdust-sub001/internal/reader"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// evalString is the shared harness every scenario test below uses: read
// source into a Program, then evaluate every top-level form against a
// fresh top-level Evaluator, returning the last form's Value.
func evalString(t *testing.T, src string) value.Value {
	t.Helper()
	program, err := reader.Read("<test>", src)
	require.NoError(t, err)
	ev := evaluator.New(config.Default())
	result, err := ev.EvalProgram(program, ev.Global)
	require.NoError(t, err)
	return result
}

// TestArithmeticLiteral covers the spec §8 "42 result" scenario.
func TestArithmeticLiteral(t *testing.T) {
	got := evalString(t, `(+ 40 2)`)
	require.Equal(t, value.Fixnum(42), got)
}

// TestTailRecursiveLoopIsConstantStack covers spec §8's million-iteration
// tail loop: a naive recursive interpreter blows the Go stack well
// before 1,000,000 iterations, so reaching the final value at all
// demonstrates the evalTail trampoline in internal/evaluator/evaluator.go.
func TestTailRecursiveLoopIsConstantStack(t *testing.T) {
	got := evalString(t, `
		(define (loop n acc)
		  (if (= n 0) acc (loop (- n 1) (+ acc 1))))
		(loop 1000000 0)`)
	require.Equal(t, value.Fixnum(1000000), got)
}

// TestCallCCEscape covers spec §8's call/cc escape scenario: invoking
// the captured continuation from an argument position of + abandons the
// rest of that call, and the call/cc expression itself evaluates to the
// escaped value.
func TestCallCCEscape(t *testing.T) {
	got := evalString(t, `
		(call/cc
		  (lambda (k)
		    (+ 1 (k 11) 100)))`)
	require.Equal(t, value.Fixnum(11), got)
}

// TestDynamicWindBalancedAcrossEscape covers spec §8's dynamic-wind
// scenario: escaping the thunk via a captured continuation still runs
// the after thunk before control leaves the dynamic extent.
func TestDynamicWindBalancedAcrossEscape(t *testing.T) {
	got := evalString(t, `
		(define trace (list))
		(define (record! x) (set! trace (cons x trace)))
		(call/cc
		  (lambda (k)
		    (dynamic-wind
		      (lambda () (record! 'b))
		      (lambda () (k 'escaped))
		      (lambda () (record! 'a)))))
		trace`)
	require.Equal(t, "(a b)", got.Write())
}

// TestHygienicMacroNoCapture covers spec §8's hygiene scenario: a
// syntax-rules macro that introduces its own temporary binding named
// `tmp` does not capture a caller-visible `tmp`.
func TestHygienicMacroNoCapture(t *testing.T) {
	got := evalString(t, `
		(define-syntax my-swap!
		  (syntax-rules ()
		    ((_ a b)
		     (let ((tmp a))
		       (set! a b)
		       (set! b tmp)))))
		(define tmp 1)
		(define other 2)
		(my-swap! tmp other)
		(list tmp other)`)
	require.Equal(t, "(2 1)", got.Write())
}

// TestEffectHandlerDirectCall covers spec §8's effect scenario under the
// direct-call (non-resumable) handler semantics documented in
// internal/effect and DESIGN.md: perform's value is whatever the
// installed operation closure returns.
func TestEffectHandlerDirectCall(t *testing.T) {
	got := evalString(t, `
		(handle log ((emit (msg) (string-append "[" msg "]")))
		  (list (perform log emit "a") (perform log emit "b")))`)
	require.Equal(t, `("[a]" "[b]")`, got.Write())
}

// TestResumableHandlerContinuesSequence covers spec §8's scenario 6:
// with-handler's operation clauses resume the remainder of the
// sequential body that performed them via `continue`, so two direct
// calls to the declared operation each contribute to the final list
// rather than only the first one running.
func TestResumableHandlerContinuesSequence(t *testing.T) {
	got := evalString(t, `
		(define-effect Log (emit : String -> Unit))
		(with-handler (handler Log ((emit (m) (cons m (continue)))))
		  (begin (emit "a") (emit "b") '()))`)
	require.Equal(t, `("a" "b")`, got.Write())
}

// TestGuardCatchesRaise exercises guard/raise non-local exit and clause
// dispatch.
func TestGuardCatchesRaise(t *testing.T) {
	got := evalString(t, `
		(guard (e (#t (list 'caught e)))
		  (raise 'boom))`)
	require.Equal(t, "(caught boom)", got.Write())
}

// TestDerivedFormNestedInLambdaBody covers a `let` use that is not the
// literal outermost top-level form but appears nested inside a lambda
// body: expansion must reach every subexpression a kernel form
// evaluates, not just the program's top-level datums.
func TestDerivedFormNestedInLambdaBody(t *testing.T) {
	got := evalString(t, `
		(define (f x) (let ((y (* x 2))) y))
		(f 21)`)
	require.Equal(t, value.Fixnum(42), got)
}

// TestDerivedFormNestedInIfBranch covers a `cond` use nested inside an
// `if` consequent branch, another position that is not the literal
// outermost top-level form.
func TestDerivedFormNestedInIfBranch(t *testing.T) {
	got := evalString(t, `
		(define (classify n)
		  (if (> n 0)
		      (cond ((> n 10) 'big)
		            (else 'small))
		      'non-positive))
		(list (classify 20) (classify 1) (classify -1))`)
	require.Equal(t, "(big small non-positive)", got.Write())
}

// TestUserMacroNestedInLambdaBody covers a syntax-rules macro use nested
// inside a lambda body rather than as the literal outermost form.
func TestUserMacroNestedInLambdaBody(t *testing.T) {
	got := evalString(t, `
		(define-syntax double
		  (syntax-rules ()
		    ((_ e) (* 2 e))))
		(define (f x) (let ((y (double x))) y))
		(f 21)`)
	require.Equal(t, value.Fixnum(42), got)
}

// TestStaticTypeLevelAcceptsWellTypedProgram covers spec §4.T's static
// level: a program whose defines and calls type-check cleanly still
// evaluates normally, proving EvalProgram's preparation-time pass
// (checkType) does not itself block well-typed code, including calls to
// untyped host primitives like `+` (inferred Dyn, per internal/types'
// gradual fallback for names absent from the type environment).
func TestStaticTypeLevelAcceptsWellTypedProgram(t *testing.T) {
	program, err := reader.Read("<test>", `
		(define square (lambda (x) (* x x)))
		(square 6)`)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.TypeLevel = config.TypeLevelStatic
	ev := evaluator.New(cfg)
	got, err := ev.EvalProgram(program, ev.Global)
	require.NoError(t, err)
	require.Equal(t, value.Fixnum(36), got)
}

// TestStaticTypeLevelRejectsMismatchBeforeEvaluating covers spec §4.T's
// "every expression must type-check at preparation time" static-mode
// invariant: a program whose second form has a type error (its two `if`
// branches are a boolean and a string, which — unlike numeric literals,
// which infer as Dyn — unify strictly and mismatch) must fail before ANY
// form runs, so even the first form's `define` must not reach the
// global environment — proving the check really runs as a preparation
// pass, not per-form during evaluation.
func TestStaticTypeLevelRejectsMismatchBeforeEvaluating(t *testing.T) {
	program, err := reader.Read("<test>", `
		(define ran #t)
		(if 1 #t "mismatched-arm-type")`)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.TypeLevel = config.TypeLevelStatic
	ev := evaluator.New(cfg)
	_, err = ev.EvalProgram(program, ev.Global)
	require.Error(t, err)
	_, bound := ev.Global.Lookup(ev.Intern("ran"))
	require.False(t, bound, "preparation-time failure must precede evaluation of any form")
}

// TestDynamicTypeLevelSkipsChecking ensures the default dynamic level
// never consults T at all: the same mismatched-arm-type program the
// static level above rejects still evaluates under dynamic (spec §4.T:
// dynamic means "no checks").
func TestDynamicTypeLevelSkipsChecking(t *testing.T) {
	got := evalString(t, `(if 1 #t "mismatched-arm-type")`)
	require.Equal(t, value.True, got)
}

// TestStackOverflowIsRecoverable ensures unbounded non-tail recursion
// raises CodeStackOverflow rather than crashing the process (spec §7).
func TestStackOverflowIsRecoverable(t *testing.T) {
	program, err := reader.Read("<test>", `
		(define (deep n) (+ 1 (deep (+ n 1))))
		(deep 0)`)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.MaxStackDepth = 500
	ev := evaluator.New(cfg)
	_, err = ev.EvalProgram(program, ev.Global)
	require.Error(t, err)
}
