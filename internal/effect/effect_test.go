package effect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasaka-miraina/lambdust-sub001/internal/effect"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

func TestResolveFindsInnermostHandlerFirst(t *testing.T) {
	s := effect.NewStack()
	s = s.Install(effect.HandlerFrame{
		Effect:     "log",
		Operations: map[string]value.Value{"emit": value.Fixnum(1)},
	})
	s = s.Install(effect.HandlerFrame{
		Effect:     "log",
		Operations: map[string]value.Value{"emit": value.Fixnum(2)},
	})

	proc, idx, err := s.Resolve("log", "emit")
	require.NoError(t, err)
	require.Equal(t, value.Fixnum(2), proc)
	require.Equal(t, 1, idx)
}

func TestResolveMissingHandlerErrors(t *testing.T) {
	s := effect.NewStack()
	_, _, err := s.Resolve("log", "emit")
	require.Error(t, err)
}

func TestDenyPolicyBlocksPassThrough(t *testing.T) {
	s := effect.NewStack()
	s = s.Install(effect.HandlerFrame{
		Effect:     "log",
		Operations: map[string]value.Value{"emit": value.Fixnum(1)},
	})
	s = s.Install(effect.HandlerFrame{
		Effect:     "net",
		Operations: map[string]value.Value{"fetch": value.Fixnum(9)},
		Policy:     effect.Policy{Deny: map[string]bool{"log": true}},
	})

	_, _, err := s.Resolve("log", "emit")
	require.Error(t, err)
}

func TestOuterStripsHandlersAtAndAboveIndex(t *testing.T) {
	s := effect.NewStack()
	s = s.Install(effect.HandlerFrame{Effect: "a"})
	s = s.Install(effect.HandlerFrame{Effect: "b"})
	s = s.Install(effect.HandlerFrame{Effect: "c"})

	require.Equal(t, 3, s.Len())
	require.Equal(t, 1, s.Outer(1).Len())
	require.Equal(t, 0, s.Outer(0).Len())
}
