package phrasex

import "github.com/geocoder-oss/phrasex/internal/be3"

// WordID identifies a word in the lexicon. See internal/be3 for the BE3
// encoding every phrase key and trie transition in this module shares.
type WordID = be3.WordID

// maxWordID is 2^24 - 1: the id space spec.md §3/§7 bounds WordID to,
// enforced at build time by internal/wordtrie, which rejects more than
// 2^24 distinct words.
const maxWordID = be3.MaxWordID

// EncodeBE3 appends the 3 most-significant bytes of id's big-endian
// 32-bit rendering to dst, per spec §6's phrase byte encoding.
func EncodeBE3(dst []byte, id WordID) []byte { return be3.Encode(dst, id) }

// DecodeBE3 reads a single 3-byte big-endian word id from the front of b.
func DecodeBE3(b []byte) WordID { return be3.Decode(b) }

// PhraseKey returns the BE3-concatenated byte key PhraseIndex stores for a
// word-id sequence. Its length is always a multiple of 3.
func PhraseKey(ids []WordID) []byte { return be3.Key(ids) }
