// Package be3 is the single BE3 (3-byte big-endian) word-id codec shared
// by the root phrasex package and phraseindex: every phrase key on disk
// and every byte-trie transition in the combinatorial walk is built from
// this encoding, so there is exactly one place that knows how a WordID
// becomes bytes.
package be3

import "fmt"

// WordID identifies a word in the lexicon. Ids are dense, 0-based, and
// assigned at build time in ascending lexicographic order of the
// normalized word, the invariant every prefix-range lookup depends on.
// A WordID always fits in 24 bits: MaxWordID is the largest value this
// encoding can carry.
type WordID uint32

// MaxWordID is 2^24 - 1, the id space bound phrase keys are encoded to.
const MaxWordID = 1<<24 - 1

// Encode appends the 3 most-significant bytes of id's big-endian 32-bit
// rendering to dst. id must be <= MaxWordID; callers are expected to have
// checked this at build time (an id reaching this function should already
// have passed through a Builder, which rejects overflow before minting
// ids).
func Encode(dst []byte, id WordID) []byte {
	return append(dst, byte(id>>16), byte(id>>8), byte(id))
}

// Decode reads a single 3-byte big-endian word id from the front of b.
func Decode(b []byte) WordID {
	_ = b[2] // bounds check hint, mirrors encoding/binary's idiom
	return WordID(b[0])<<16 | WordID(b[1])<<8 | WordID(b[2])
}

// Key returns the BE3-concatenated byte key for a word-id sequence. Its
// length is always a multiple of 3.
func Key(ids []WordID) []byte {
	buf := make([]byte, 0, len(ids)*3)
	for _, id := range ids {
		buf = Encode(buf, id)
	}
	return buf
}

func (id WordID) String() string { return fmt.Sprintf("#%d", uint32(id)) }
