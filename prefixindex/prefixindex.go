// Package prefixindex implements spec.md §4.1's PrefixIndex: an immutable
// ordered word -> id map assigning dense ids in lexicographic order, so
// any word prefix corresponds to a contiguous [lo, hi) id range.
package prefixindex

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/geocoder-oss/phrasex/internal/mmapfile"
	"github.com/geocoder-oss/phrasex/internal/wordtrie"
)

// magic identifies a prefix.fst artifact; version lets Open detect a
// format it no longer knows how to read.
const (
	magic   = "PFX1"
	version = uint32(1)
)

// ErrNotFound mirrors phrasex.ErrNotFound for the exact-lookup and
// prefix-range misses spec.md §4.1 calls out as normal, not errors.
var ErrNotFound = fmt.Errorf("prefixindex: not found")

// Builder accumulates words before Finalize freezes the lexicon. Not safe
// for concurrent Insert calls.
type Builder struct {
	wb *wordtrie.Builder
}

// NewBuilder returns an empty PrefixIndex builder.
func NewBuilder() *Builder { return &Builder{wb: wordtrie.NewBuilder()} }

// Insert records word (already normalized by the caller) for the next
// Finalize.
func (b *Builder) Insert(word string) { b.wb.Insert(word) }

// Len reports the number of distinct words inserted so far.
func (b *Builder) Len() int { return b.wb.Len() }

// Finalize sorts the accumulated words, assigns dense ids, and returns the
// built Index together with its serialized on-disk form.
func (b *Builder) Finalize() (*Index, []byte, error) {
	trie, words, err := b.wb.Finalize()
	if err != nil {
		return nil, nil, err
	}
	idx := &Index{trie: trie}
	return idx, encode(words), nil
}

// Index is the immutable, query-only PrefixIndex.
type Index struct {
	trie *wordtrie.Trie
	mf   *mmapfile.File // non-nil when opened from disk; Close releases it
}

// Get returns the id assigned to word, or ErrNotFound.
func (idx *Index) Get(word string) (uint32, error) {
	id, ok := idx.trie.Get(word)
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

// PrefixRange returns [lo, hi), the id range of every lexicon word
// starting with prefix, or ErrNotFound if no word matches.
func (idx *Index) PrefixRange(prefix string) (lo, hi uint32, err error) {
	lo, hi, ok := idx.trie.PrefixRange(prefix)
	if !ok {
		return 0, 0, ErrNotFound
	}
	return lo, hi, nil
}

// Words returns the lexicon words with ids in [lo, hi), in id order.
// Used by the engine to list the whole lexicon at Finalize and to
// reconstruct a Range variant back into text in its Explain diagnostic.
func (idx *Index) Words(lo, hi uint32) []string { return idx.trie.Words(lo, hi) }

// Word returns the word assigned to id, if any.
func (idx *Index) Word(id uint32) (string, bool) { return idx.trie.Word(id) }

// Len reports the lexicon size.
func (idx *Index) Len() int { return idx.trie.Len() }

// Close releases the memory-mapped backing file, if this Index was
// produced by Open. Calling Close on a freshly-built Index is a no-op.
func (idx *Index) Close() error {
	if idx.mf == nil {
		return nil
	}
	return idx.mf.Close()
}

// Open memory-maps path and parses it into a queryable Index.
func Open(path string) (*Index, error) {
	mf, err := mmapfile.Open(path)
	if err != nil {
		return nil, err
	}
	words, err := decode(mf.Bytes())
	if err != nil {
		mf.Close()
		return nil, err
	}
	wb := wordtrie.NewBuilder()
	for _, w := range words {
		wb.Insert(w)
	}
	trie, _, err := wb.Finalize()
	if err != nil {
		mf.Close()
		return nil, err
	}
	return &Index{trie: trie, mf: mf}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// ON-DISK ENCODING
// ═══════════════════════════════════════════════════════════════════════════════
// [magic: 4 bytes]["PFX1"]
// [version: uint32]
// [word_count: uint32]
// for each word, in ascending id order:
//   [length: uint16][utf8 bytes]
//
// The decoder replays the words through a fresh wordtrie.Builder, which
// re-derives identical ids because Finalize's sort is deterministic; this
// keeps the on-disk format simple (a sorted word list) while the runtime
// structure stays a trie with precomputed subtree bounds.
// ═══════════════════════════════════════════════════════════════════════════════

func encode(words []string) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(magic)
	binary.Write(buf, binary.LittleEndian, version)
	binary.Write(buf, binary.LittleEndian, uint32(len(words)))
	for _, w := range words {
		b := []byte(w)
		binary.Write(buf, binary.LittleEndian, uint16(len(b)))
		buf.Write(b)
	}
	return buf.Bytes()
}

func decode(data []byte) ([]string, error) {
	if len(data) < len(magic)+8 {
		return nil, fmt.Errorf("prefixindex: truncated header")
	}
	if string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("prefixindex: bad magic")
	}
	off := len(magic)
	ver := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if ver != version {
		return nil, fmt.Errorf("prefixindex: version mismatch: got %d want %d", ver, version)
	}
	count := binary.LittleEndian.Uint32(data[off:])
	off += 4
	words := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+2 > len(data) {
			return nil, fmt.Errorf("prefixindex: truncated word length")
		}
		l := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if off+l > len(data) {
			return nil, fmt.Errorf("prefixindex: truncated word body")
		}
		words = append(words, string(data[off:off+l]))
		off += l
	}
	return words, nil
}
