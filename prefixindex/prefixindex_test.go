package prefixindex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, words ...string) *Index {
	t.Helper()
	b := NewBuilder()
	for _, w := range words {
		b.Insert(w)
	}
	idx, _, err := b.Finalize()
	require.NoError(t, err)
	return idx
}

func TestGetAndPrefixRange(t *testing.T) {
	idx := buildIndex(t, "main", "mango", "man", "maple", "street")

	id, err := idx.Get("main")
	require.NoError(t, err)

	lo, hi, err := idx.PrefixRange("ma")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, id, lo)
	assert.Less(t, id, hi)
	assert.Equal(t, 4, int(hi-lo))
}

func TestGetNotFound(t *testing.T) {
	idx := buildIndex(t, "main")
	_, err := idx.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := NewBuilder()
	for _, w := range []string{"main", "street", "ave", "mlk", "blvd"} {
		b.Insert(w)
	}
	_, data, err := b.Finalize()
	require.NoError(t, err)

	words, err := decode(data)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "street", "ave", "mlk", "blvd"}, words)
}

func TestDecodeBadMagic(t *testing.T) {
	_, err := decode([]byte("bogus-not-an-index"))
	assert.Error(t, err)
}
