package persist_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasaka-miraina/lambdust-sub001/internal/persist"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

func TestPutGetDeleteRoundTrip(t *testing.T) {
	store, err := persist.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, found, err := store.Get("name")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Put("name", value.NewString("ada")))
	raw, found, err := store.Get("name")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `"ada"`, raw)

	require.NoError(t, store.Put("name", value.NewString("grace")))
	raw, found, err = store.Get("name")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `"grace"`, raw)

	require.NoError(t, store.Delete("name"))
	_, found, err = store.Get("name")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRefLabel(t *testing.T) {
	store, err := persist.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ref := store.Ref()
	require.Equal(t, "#<foreign persist-store>", ref.Write())
}
