package wordtrie

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTrie(t *testing.T, words ...string) *Trie {
	t.Helper()
	b := NewBuilder()
	for _, w := range words {
		b.Insert(w)
	}
	trie, _, err := b.Finalize()
	require.NoError(t, err)
	return trie
}

func TestDenseIDAssignment(t *testing.T) {
	trie := buildTrie(t, "main", "ave", "street", "blvd", "mlk")
	seen := make(map[uint32]bool)
	for _, w := range []string{"main", "ave", "street", "blvd", "mlk"} {
		id, ok := trie.Get(w)
		require.True(t, ok)
		seen[id] = true
	}
	assert.Len(t, seen, 5)
	for i := uint32(0); i < 5; i++ {
		assert.True(t, seen[i], "id %d should be assigned", i)
	}
}

func TestPrefixRangeContiguous(t *testing.T) {
	trie := buildTrie(t, "main", "mango", "man", "maple", "zebra")
	lo, hi, ok := trie.PrefixRange("ma")
	require.True(t, ok)
	assert.Equal(t, 4, int(hi-lo))

	for _, w := range []string{"main", "mango", "man", "maple"} {
		id, ok := trie.Get(w)
		require.True(t, ok)
		assert.GreaterOrEqual(t, id, lo)
		assert.Less(t, id, hi)
	}

	zid, ok := trie.Get("zebra")
	require.True(t, ok)
	assert.False(t, zid >= lo && zid < hi)
}

func TestPrefixRangeNotFound(t *testing.T) {
	trie := buildTrie(t, "main", "ave")
	_, _, ok := trie.PrefixRange("xyz")
	assert.False(t, ok)
}

func TestGetNotFound(t *testing.T) {
	trie := buildTrie(t, "main")
	_, ok := trie.Get("missing")
	assert.False(t, ok)
}

func TestWordsRoundTrip(t *testing.T) {
	trie := buildTrie(t, "b", "a", "c")
	words := trie.Words(0, uint32(trie.Len()))
	assert.Equal(t, []string{"a", "b", "c"}, words)
	for i, w := range words {
		id, ok := trie.Get(w)
		require.True(t, ok)
		assert.Equal(t, uint32(i), id)
	}
}

func TestIDSpaceExhausted(t *testing.T) {
	b := NewBuilder()
	// cheaply simulate overflow without inserting 2^24 real words by
	// reaching into the builder's seen set directly.
	for i := 0; i < maxWords+1; i++ {
		b.seen[strconv.Itoa(i)] = struct{}{}
	}
	_, _, err := b.Finalize()
	assert.ErrorIs(t, err, ErrIDSpaceExhausted)
}
