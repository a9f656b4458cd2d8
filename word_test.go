package phrasex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWord(t *testing.T) {
	assert.Equal(t, "main", NormalizeWord("  Main  "))
	assert.Equal(t, "café", NormalizeWord("CAFÉ"))
	// precomposed vs decomposed é should normalize to the same bytes
	precomposed := "café"
	decomposed := "café"
	assert.Equal(t, NormalizeWord(precomposed), NormalizeWord(decomposed))
}

func TestIsAlphabetic(t *testing.T) {
	assert.True(t, IsAlphabetic("main"))
	assert.True(t, IsAlphabetic("café"))
	assert.False(t, IsAlphabetic("a1"))
	assert.False(t, IsAlphabetic("a"))
	assert.False(t, IsAlphabetic("100"))
	assert.False(t, IsAlphabetic(""))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"100", "main", "street"}, Tokenize("100 Main Street"))
	assert.Equal(t, []string{"main", "street"}, Tokenize("  main   street  "))
	assert.Equal(t, []string{"o'brien", "road"}, Tokenize("O'Brien Road"))
}
