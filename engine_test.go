package phrasex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFixture(t *testing.T, maxD int, phrases ...[]string) *Index {
	t.Helper()
	b := NewBuilder(maxD)
	for _, p := range phrases {
		require.NoError(t, b.InsertPhrase(p))
	}
	idx, err := b.Finalize(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

// S1 (README example).
func TestS1README(t *testing.T) {
	idx := buildFixture(t, 1,
		[]string{"100", "main", "street"},
		[]string{"200", "main", "street"},
		[]string{"100", "main", "ave"},
		[]string{"300", "mlk", "blvd"},
	)

	assert.True(t, idx.Contains([]string{"100", "main", "street"}))
	assert.False(t, idx.Contains([]string{"100", "main", "blvd"}))

	matches, err := idx.FuzzyMatch([]string{"100", "man", "street"}, 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"100", "main", "street"}, matches[0].Words)
	assert.Equal(t, 1, matches[0].Distance)
}

// S2 (prefix).
func TestS2Prefix(t *testing.T) {
	idx := buildFixture(t, 1,
		[]string{"100", "main", "street"},
		[]string{"200", "main", "street"},
		[]string{"100", "main", "ave"},
		[]string{"300", "mlk", "blvd"},
		[]string{"100", "west", "main", "street"},
	)

	matches, err := idx.FuzzyMatchPrefix([]string{"100", "west", "man", "stre"}, 1, 1)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	found := false
	for _, m := range matches {
		if len(m.Words) == 4 && m.Words[0] == "100" && m.Words[1] == "west" && m.Words[2] == "main" {
			found = true
		}
	}
	assert.True(t, found)
}

// S3 (non-alphabetic bypass).
func TestS3NonAlphabeticBypass(t *testing.T) {
	idx := buildFixture(t, 1, []string{"a1", "road"})

	matches, err := idx.FuzzyMatch([]string{"a2", "road"}, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.True(t, idx.Contains([]string{"a1", "road"}))
}

// S4 (window).
func TestS4Window(t *testing.T) {
	idx := buildFixture(t, 1, []string{"main", "street"})

	wins, err := idx.FuzzyMatchWindows([]string{"go", "to", "main", "stret", "now"}, 1, 1, false)
	require.NoError(t, err)
	require.NotEmpty(t, wins)
	found := false
	for _, w := range wins {
		if w.Start == 2 && w.End == 4 {
			found = true
			assert.Equal(t, 1, w.Distance)
		}
	}
	assert.True(t, found)
}

// S5 (prune): "man" spends the whole distance budget and the tail token
// "xyz" resolves to no variant, so the result must be empty.
func TestS5Prune(t *testing.T) {
	var phrases [][]string
	for i := 0; i < 10; i++ {
		phrases = append(phrases, []string{"100", "main", "street" + string(rune('a'+i))})
	}
	idx := buildFixture(t, 1, phrases...)

	matches, err := idx.FuzzyMatch([]string{"100", "man", "xyz"}, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// S7 (accent fold), the supplemented scenario.
func TestS7AccentFold(t *testing.T) {
	idx := buildFixture(t, 1, []string{"cafe", "de", "flore"})

	matches, err := idx.FuzzyMatch([]string{"café", "de", "flore"}, 1, 1)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, []string{"cafe", "de", "flore"}, matches[0].Words)
}

// Invariant 6: fuzzy_match_multi result-equivalence with per-query calls.
func TestFuzzyMatchMultiEquivalence(t *testing.T) {
	idx := buildFixture(t, 1,
		[]string{"100", "main", "street"},
		[]string{"200", "main", "street"},
	)

	single, err := idx.FuzzyMatch([]string{"100", "man", "street"}, 1, 1)
	require.NoError(t, err)

	batch, err := idx.FuzzyMatchMulti([]MultiQuery{
		{Words: []string{"100", "man", "street"}, MaxWordD: 1, MaxTotalD: 1},
	})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.ElementsMatch(t, single, batch[0])
}

// Invariant 8: ids are dense.
func TestDenseIDs(t *testing.T) {
	idx := buildFixture(t, 1, []string{"100", "main", "street"}, []string{"200", "mlk", "ave"})
	n := idx.pi.Len()
	seen := make(map[uint32]bool)
	for id := uint32(0); id < uint32(n); id++ {
		_, ok := idx.pi.Word(id)
		assert.True(t, ok)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestQueryErrors(t *testing.T) {
	idx := buildFixture(t, 1, []string{"main", "street"})

	_, err := idx.FuzzyMatch(nil, 1, 1)
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, QueryErrEmptyInput, qerr.Kind)

	_, err = idx.FuzzyMatch([]string{"main"}, 5, 5)
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, QueryErrDistanceTooHigh, qerr.Kind)
}

func TestBuilderFinalizeTwice(t *testing.T) {
	b := NewBuilder(1)
	require.NoError(t, b.InsertPhrase([]string{"main", "street"}))

	idx, err := b.Finalize(t.TempDir())
	require.NoError(t, err)
	defer idx.Close()

	_, err = b.Finalize(t.TempDir())
	var berr *BuildError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, BuildErrAlreadyFinalized, berr.Kind)
}

func TestOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder(1)
	require.NoError(t, b.InsertPhrase([]string{"100", "main", "street"}))
	idx, err := b.Finalize(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.Contains([]string{"100", "main", "street"}))
	assert.Equal(t, 1, reopened.Metadata().MaxEditDistance)
}

func TestExplain(t *testing.T) {
	idx := buildFixture(t, 1, []string{"100", "main", "street"})
	exp := idx.Explain([]string{"100", "man"})
	require.Len(t, exp.Tokens, 2)
	assert.Equal(t, "100", exp.Tokens[0].Token)
	assert.NotEmpty(t, exp.Tokens[1].Variants)
}
