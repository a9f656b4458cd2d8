package fuzzyindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupExactAndOneEdit(t *testing.T) {
	b := NewBuilder(1)
	b.Insert("main", 0)
	b.Insert("street", 1)
	idx, _, _, err := b.Finalize()
	require.NoError(t, err)

	cands, err := idx.Lookup("main", 1)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.Equal(t, uint32(0), cands[0].WordID)
	assert.Equal(t, 0, cands[0].Distance)

	cands, err = idx.Lookup("man", 1)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	found := false
	for _, c := range cands {
		if c.WordID == 0 {
			assert.Equal(t, 1, c.Distance)
			found = true
		}
	}
	assert.True(t, found, "man should surface main at distance 1")
}

func TestLookupRejectsTooFar(t *testing.T) {
	b := NewBuilder(1)
	b.Insert("street", 0)
	idx, _, _, err := b.Finalize()
	require.NoError(t, err)

	cands, err := idx.Lookup("xyzzyx", 1)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestLookupDistanceExceedsBuild(t *testing.T) {
	b := NewBuilder(1)
	b.Insert("main", 0)
	idx, _, _, err := b.Finalize()
	require.NoError(t, err)

	_, err = idx.Lookup("main", 2)
	assert.Error(t, err)
}

func TestSymmetry(t *testing.T) {
	b := NewBuilder(1)
	b.Insert("main", 0)
	b.Insert("man", 1)
	idx, _, _, err := b.Finalize()
	require.NoError(t, err)

	fromMain, err := idx.Lookup("main", 1)
	require.NoError(t, err)
	fromMan, err := idx.Lookup("man", 1)
	require.NoError(t, err)

	hasMan := false
	for _, c := range fromMain {
		if c.WordID == 1 {
			hasMan = true
			assert.Equal(t, 1, c.Distance)
		}
	}
	hasMain := false
	for _, c := range fromMan {
		if c.WordID == 0 {
			hasMain = true
			assert.Equal(t, 1, c.Distance)
		}
	}
	assert.True(t, hasMan)
	assert.True(t, hasMain)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := NewBuilder(1)
	b.Insert("main", 0)
	b.Insert("street", 1)
	_, fstBytes, msgBytes, err := b.Finalize()
	require.NoError(t, err)

	keys, err := decodeFST(fstBytes)
	require.NoError(t, err)
	assert.NotEmpty(t, keys)

	payload, words, maxD, err := decodeMSG(msgBytes)
	require.NoError(t, err)
	assert.Equal(t, 1, maxD)
	assert.Len(t, payload, len(keys))
	assert.Equal(t, "main", words[0])
	assert.Equal(t, "street", words[1])
}
