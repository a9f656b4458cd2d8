package phrasex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeBE3(t *testing.T) {
	for _, id := range []WordID{0, 1, 255, 256, 65535, 65536, maxWordID} {
		buf := EncodeBE3(nil, id)
		assert.Len(t, buf, 3)
		assert.Equal(t, id, DecodeBE3(buf))
	}
}

func TestPhraseKey(t *testing.T) {
	key := PhraseKey([]WordID{1, 2, 3})
	assert.Len(t, key, 9)
	assert.Equal(t, WordID(1), DecodeBE3(key[0:3]))
	assert.Equal(t, WordID(2), DecodeBE3(key[3:6]))
	assert.Equal(t, WordID(3), DecodeBE3(key[6:9]))
}

func TestWordIDString(t *testing.T) {
	assert.Equal(t, "#42", WordID(42).String())
}
