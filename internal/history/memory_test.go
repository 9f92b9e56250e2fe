package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRing_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	r := NewRing(3)

	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, r.Append(ctx, []byte(s)))
	}

	got, err := r.Recent(ctx)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, got)
}

func TestRing_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	r := NewRing(2)

	for _, s := range []string{"a", "b", "c", "d"} {
		require.NoError(t, r.Append(ctx, []byte(s)))
	}

	got, err := r.Recent(ctx)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("c"), []byte("d")}, got)
}

func TestRing_CopiesEntries(t *testing.T) {
	ctx := context.Background()
	r := NewRing(2)

	buf := []byte("original")
	require.NoError(t, r.Append(ctx, buf))
	buf[0] = 'X'

	got, err := r.Recent(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got[0])

	// mutating the returned slice must not poison the store
	got[0][0] = 'Y'
	again, err := r.Recent(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again[0])
}
