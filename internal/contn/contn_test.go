package contn_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasaka-miraina/lambdust-sub001/internal/contn"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

func TestCaptureAssignsDistinctIdentity(t *testing.T) {
	a := contn.Capture(nil)
	b := contn.Capture(nil)
	require.NotEqual(t, a.ID, b.ID)
	require.NotSame(t, a, b)
}

func TestInvokePanicsWithJumpToItself(t *testing.T) {
	k := contn.Capture(nil)
	defer func() {
		rec := recover()
		jump, ok := rec.(*contn.Jump)
		require.True(t, ok, "expected *contn.Jump, got %T", rec)
		require.Same(t, k, jump.Target)
		require.Equal(t, []value.Value{value.Fixnum(7)}, jump.Values)
	}()
	k.Invoke([]value.Value{value.Fixnum(7)})
}

// TestUnwindToCommonPrefix covers dynamic-wind reconciliation: entries
// shared by both the escaping and entering chains (by pointer identity,
// i.e. extents the jump stays within) are left untouched, and only the
// divergent suffixes are unwound/rewound.
func TestUnwindToCommonPrefix(t *testing.T) {
	shared := &contn.WindEntry{}
	onlyFrom := &contn.WindEntry{}
	onlyTo := &contn.WindEntry{}

	from := []*contn.WindEntry{shared, onlyFrom}
	to := []*contn.WindEntry{shared, onlyTo}

	leave, enter := contn.UnwindTo(from, to)
	require.Equal(t, []*contn.WindEntry{onlyFrom}, leave)
	require.Equal(t, []*contn.WindEntry{onlyTo}, enter)
}

func TestUnwindToIdenticalChainsDoesNothing(t *testing.T) {
	shared := []*contn.WindEntry{{}, {}}
	leave, enter := contn.UnwindTo(shared, shared)
	require.Nil(t, leave)
	require.Nil(t, enter)
}
