package lambdust_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
	"github.com/akasaka-miraina/lambdust-sub001/pkg/lambdust"
)

func TestEvalArithmetic(t *testing.T) {
	rt := lambdust.New()
	got, err := rt.Eval(`(+ 1 2 3)`)
	require.NoError(t, err)
	require.Equal(t, value.Fixnum(6), got)
}

func TestDefineHostProcedure(t *testing.T) {
	rt := lambdust.New()
	rt.Define("host-double", func(args []value.Value) (value.Value, error) {
		n := args[0].(value.Fixnum)
		return value.Fixnum(int64(n) * 2), nil
	})
	got, err := rt.Eval(`(host-double 21)`)
	require.NoError(t, err)
	require.Equal(t, value.Fixnum(42), got)
}

func TestRegisterEffectHandlerAnsweredFromHost(t *testing.T) {
	rt := lambdust.New()
	rt.RegisterEffectHandler("log", func(op string, args []value.Value) (value.Value, error) {
		s := args[0].(*value.String)
		return value.NewString("[" + s.Go() + "]"), nil
	})
	got, err := rt.Eval(`(perform log emit "hi")`)
	require.NoError(t, err)
	require.Equal(t, `"[hi]"`, got.Write())
}

// TestForeignContinuationIsReportedNotPanicked covers the escape-only
// continuation boundary: a continuation captured by one Eval call and
// invoked from a later, unrelated Eval call has no capturing dynamic
// extent left to unwind to, and must surface as a diagnostic rather
// than crash the host process.
func TestForeignContinuationIsReportedNotPanicked(t *testing.T) {
	rt := lambdust.New()
	_, err := rt.Eval(`
		(define saved #f)
		(call/cc (lambda (k) (set! saved k)))
		'ok`)
	require.NoError(t, err)

	_, err = rt.Eval(`(saved 42)`)
	require.Error(t, err)
	de, ok := err.(*diagnostics.DiagnosticError)
	require.True(t, ok, "expected a *diagnostics.DiagnosticError, got %T", err)
	require.Equal(t, diagnostics.CodeForeignContinuation, de.Code)
}
