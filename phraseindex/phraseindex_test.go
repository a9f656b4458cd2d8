package phraseindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocoder-oss/phrasex/internal/be3"
)

// ids for "100 main street", "200 main street", "100 main ave", "300 mlk blvd"
// using a small toy lexicon assigned by hand for clarity:
//
//	0: 100   1: 200   2: 300   3: ave   4: blvd   5: main   6: mlk   7: street
var (
	id100, id200, id300 be3.WordID = 0, 1, 2
	idAve, idBlvd                  = be3.WordID(3), be3.WordID(4)
	idMain, idMlk, idStreet        = be3.WordID(5), be3.WordID(6), be3.WordID(7)
)

func buildToyIndex(t *testing.T) *Index {
	t.Helper()
	b := NewBuilder()
	b.Insert([]be3.WordID{id100, idMain, idStreet})
	b.Insert([]be3.WordID{id200, idMain, idStreet})
	b.Insert([]be3.WordID{id100, idMain, idAve})
	b.Insert([]be3.WordID{id300, idMlk, idBlvd})
	idx, _, err := b.Finalize()
	require.NoError(t, err)
	return idx
}

func exact(id be3.WordID) Variant { return Variant{Exact: true, ID: id} }

func TestContains(t *testing.T) {
	idx := buildToyIndex(t)
	assert.True(t, idx.Contains([]be3.WordID{id100, idMain, idStreet}))
	assert.False(t, idx.Contains([]be3.WordID{id100, idMain, idBlvd}))
}

func TestContainsPrefix(t *testing.T) {
	idx := buildToyIndex(t)
	assert.True(t, idx.ContainsPrefix([]be3.WordID{id100, idMain}))
	assert.True(t, idx.ContainsPrefix([]be3.WordID{id100}))
	assert.False(t, idx.ContainsPrefix([]be3.WordID{idMlk, idMain}))
}

func TestMatchCombinationsExact(t *testing.T) {
	idx := buildToyIndex(t)
	variants := [][]Variant{
		{exact(id100)},
		{exact(idMain)},
		{{Exact: true, ID: idStreet}, {Exact: true, ID: idAve, Distance: 1}},
	}
	matches := idx.MatchCombinations(variants, 1, nil)
	require.Len(t, matches, 2)
	var sawStreet, sawAve bool
	for _, m := range matches {
		switch m.IDs[2] {
		case idStreet:
			sawStreet = true
			assert.Equal(t, 0, m.Distance)
		case idAve:
			sawAve = true
			assert.Equal(t, 1, m.Distance)
		}
	}
	assert.True(t, sawStreet)
	assert.True(t, sawAve)
}

func TestMatchCombinationsPrunesOverBudget(t *testing.T) {
	idx := buildToyIndex(t)
	variants := [][]Variant{
		{exact(id100)},
		{exact(idMain)},
		{{Exact: true, ID: idBlvd, Distance: 2}},
	}
	matches := idx.MatchCombinations(variants, 1, nil)
	assert.Empty(t, matches)
}

func TestMatchCombinationsAsPrefixesRangeTail(t *testing.T) {
	idx := buildToyIndex(t)
	variants := [][]Variant{
		{exact(id100)},
		{exact(idMain)},
		{{Lo: idAve, Hi: idStreet + 1}}, // covers ave..street
	}
	matches := idx.MatchCombinationsAsPrefixes(variants, 0, nil)
	assert.NotEmpty(t, matches)
}

func TestMatchCombinationsAsWindows(t *testing.T) {
	idx := buildToyIndex(t)
	// full variant list for a 5-token window query "go to main street now";
	// only positions 2..3 (main, street-ish) have real candidates here.
	variants := [][]Variant{
		{}, // go: no variant, can't participate
		{}, // to: no variant
		{exact(idMain)},
		{{Exact: true, ID: idStreet, Distance: 1}},
		{}, // now: no variant
	}
	wins := idx.MatchCombinationsAsWindows(variants, 1, false, nil)
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

// An alphabetic tail token's variant list carries its fuzzy Exact
// candidates before the trailing Range (engine.go's resolveToken order).
// A prefix hit must be detected from the edge actually taken into the
// final node, not from the tail position's first variant: here the Exact
// entry listed first never matches anything, so only the Range edge
// reaches the node, and it must still be reported as a prefix hit.
func TestMatchCombinationsAsWindowsPrefixHitAfterExactVariants(t *testing.T) {
	b := NewBuilder()
	b.Insert([]be3.WordID{id100, idMain, idAve})
	idFast := be3.WordID(8)
	b.Insert([]be3.WordID{id100, idMain, idAve, idFast})
	idx, _, err := b.Finalize()
	require.NoError(t, err)

	variants := [][]Variant{
		{exact(id100)},
		{exact(idStreet) /* never matches under "100"; present to reproduce the first-variant bug */, {Lo: idMain, Hi: idMain + 1}},
	}
	wins := idx.MatchCombinationsAsWindows(variants, 0, true, nil)
	found := false
	for _, w := range wins {
		if w.Start == 0 && w.End == 2 && w.EndsInPrefix {
			found = true
		}
	}
	assert.True(t, found, "range-reached node should surface as a prefix hit even though it is not the tail position's first variant")
}

func TestNodeBudgetStopsExploration(t *testing.T) {
	idx := buildToyIndex(t)
	variants := [][]Variant{
		{exact(id100)},
		{exact(idMain)},
		{exact(idStreet), exact(idAve)},
	}
	budget := 1
	matches := idx.MatchCombinations(variants, 1, &budget)
	assert.LessOrEqual(t, len(matches), 1)
}
