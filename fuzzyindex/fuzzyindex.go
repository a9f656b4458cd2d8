// Package fuzzyindex implements spec.md §4.2's FuzzyIndex using the
// symmetric-delete scheme: every stored word, plus every string obtained
// by deleting up to D characters from it, maps back to the word-ids whose
// original form produced it. A query is resolved by generating the same
// deletion family for the input token and probing the map.
package fuzzyindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/antzucaro/matchr"

	"github.com/geocoder-oss/phrasex/internal/mmapfile"
	"github.com/geocoder-oss/phrasex/internal/wordtrie"
)

const (
	fstMagic    = "FUZ1"
	msgMagic    = "FUZM"
	fileVersion = uint32(1)
)

// ErrNotFound mirrors phrasex.ErrNotFound. Lookup does not return it: a
// lookup with no candidates returns an empty slice and a nil error.
var ErrNotFound = fmt.Errorf("fuzzyindex: not found")

// Candidate is one lookup hit: a word id and its true edit distance from
// the queried token.
type Candidate struct {
	WordID   uint32
	Distance int
}

// Builder accumulates (word, id) pairs before Finalize. Ids must already
// be final: FuzzyIndex shares the lexicon's dense id space with
// PrefixIndex (spec.md §3: "each word-id that appears in any phrase must
// be retrievable from both"), so the engine takes the ids PrefixIndex
// assigned at its Finalize and feeds those (word, id) pairs here.
type Builder struct {
	maxD    int
	entries map[string]*roaring.Bitmap // deletion key -> candidate ids
	words   map[uint32]string          // word id -> original alphabetic word
}

// NewBuilder returns a FuzzyIndex builder parameterised by the build-time
// maximum edit distance D. Queries may later ask for any max_d <= D.
func NewBuilder(maxD int) *Builder {
	return &Builder{
		maxD:    maxD,
		entries: make(map[string]*roaring.Bitmap),
		words:   make(map[uint32]string),
	}
}

// Insert records word (which the caller has already verified is
// alphabetic, per spec.md §4.2's policy) under id, emitting the word
// itself and every string reachable by deleting up to maxD characters.
func (b *Builder) Insert(word string, id uint32) {
	b.words[id] = word
	for _, key := range deletionVariants(word, b.maxD) {
		bm, ok := b.entries[key]
		if !ok {
			bm = roaring.New()
			b.entries[key] = bm
		}
		bm.Add(id)
	}
}

// Finalize freezes the delete-key trie and its bitmap payload table,
// returning the queryable Index and its two on-disk artifacts (".fst",
// the delete-key -> ordinal trie, and ".msg", the payload table of
// bitmaps and original words the trie's ordinals reference).
func (b *Builder) Finalize() (idx *Index, fstBytes, msgBytes []byte, err error) {
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	wb := wordtrie.NewBuilder()
	for _, k := range keys {
		wb.Insert(k)
	}
	trie, sortedKeys, err := wb.Finalize()
	if err != nil {
		return nil, nil, nil, err
	}
	payload := make([]*roaring.Bitmap, len(sortedKeys))
	for i, k := range sortedKeys {
		payload[i] = b.entries[k]
	}
	idx = &Index{
		keyTrie: trie,
		payload: payload,
		words:   cloneWords(b.words),
		maxD:    b.maxD,
	}
	return idx, encodeFST(sortedKeys), encodeMSG(payload, b.words, b.maxD), nil
}

func cloneWords(m map[uint32]string) map[uint32]string {
	out := make(map[uint32]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Index is the immutable, query-only FuzzyIndex.
type Index struct {
	keyTrie *wordtrie.Trie
	payload []*roaring.Bitmap
	words   map[uint32]string
	maxD    int

	fstFile *mmapfile.File
	msgFile *mmapfile.File
}

// MaxBuildDistance returns D_build, the maximum edit distance any Lookup
// call may request.
func (idx *Index) MaxBuildDistance() int { return idx.maxD }

// Lookup returns every (word id, distance) within maxD of word, with
// distances deduplicated per id by keeping the minimum. maxD must not
// exceed the build-time maximum.
//
// Per spec.md §4.2's query scheme: generate word's deletion family up to
// maxD, probe the map for each variant, then verify every surfaced
// candidate's TRUE edit distance. The delete-map only proves distance
// *could* be within budget; a direct probe of one variant can collide
// with unrelated words at the same deletion key. True distance is the
// Optimal String Alignment (OSA) distance, computed with
// github.com/antzucaro/matchr's restricted-edit-distance implementation,
// which matches the metric spec.md requires without hand-rolling another
// dynamic-programming routine.
func (idx *Index) Lookup(word string, maxD int) ([]Candidate, error) {
	if maxD > idx.maxD {
		return nil, fmt.Errorf("fuzzyindex: requested max_d %d exceeds build-time maximum %d", maxD, idx.maxD)
	}
	best := make(map[uint32]int)
	for _, variant := range deletionVariants(word, maxD) {
		ordinal, ok := idx.keyTrie.Get(variant)
		if !ok {
			continue
		}
		bm := idx.payload[ordinal]
		it := bm.Iterator()
		for it.HasNext() {
			id := it.Next()
			orig, ok := idx.words[id]
			if !ok {
				continue
			}
			dist := matchr.DamerauLevenshtein(word, orig)
			if dist > maxD {
				continue
			}
			if prev, seen := best[id]; !seen || dist < prev {
				best[id] = dist
			}
		}
	}
	out := make([]Candidate, 0, len(best))
	for id, dist := range best {
		out = append(out, Candidate{WordID: id, Distance: dist})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].WordID < out[j].WordID
	})
	return out, nil
}

// Word returns the original word stored under id, if id was ever inserted.
func (idx *Index) Word(id uint32) (string, bool) {
	w, ok := idx.words[id]
	return w, ok
}

// Close releases memory-mapped backing files, if this Index was produced
// by Open.
func (idx *Index) Close() error {
	var err error
	if idx.fstFile != nil {
		err = idx.fstFile.Close()
	}
	if idx.msgFile != nil {
		if merr := idx.msgFile.Close(); err == nil {
			err = merr
		}
	}
	return err
}

// Open memory-maps the fst and msg artifacts and parses them into a
// queryable Index.
func Open(fstPath, msgPath string) (*Index, error) {
	fstFile, err := mmapfile.Open(fstPath)
	if err != nil {
		return nil, err
	}
	keys, err := decodeFST(fstFile.Bytes())
	if err != nil {
		fstFile.Close()
		return nil, err
	}
	msgFile, err := mmapfile.Open(msgPath)
	if err != nil {
		fstFile.Close()
		return nil, err
	}
	payload, words, maxD, err := decodeMSG(msgFile.Bytes())
	if err != nil {
		fstFile.Close()
		msgFile.Close()
		return nil, err
	}
	if len(payload) != len(keys) {
		fstFile.Close()
		msgFile.Close()
		return nil, fmt.Errorf("fuzzyindex: fst/msg ordinal mismatch: %d keys, %d payload entries", len(keys), len(payload))
	}
	wb := wordtrie.NewBuilder()
	for _, k := range keys {
		wb.Insert(k)
	}
	trie, _, err := wb.Finalize()
	if err != nil {
		fstFile.Close()
		msgFile.Close()
		return nil, err
	}
	return &Index{
		keyTrie: trie,
		payload: payload,
		words:   words,
		maxD:    maxD,
		fstFile: fstFile,
		msgFile: msgFile,
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SYMMETRIC DELETE: GENERATING THE DELETION FAMILY OF A WORD
// ═══════════════════════════════════════════════════════════════════════════════
// deletionVariants(word, maxD) returns word itself plus every distinct
// string obtained by deleting 1..maxD runes from it (any positions, not
// just a contiguous run). We expand one rune at a time, breadth-first, so
// maxD=2 correctly includes both "delete rune i then j" and "delete rune j
// then i" collapsed to the same resulting string exactly once.
//
// Example (maxD=1): "brown" -> {"brown", "rown", "bown", "brwn", "bron", "brow"}
// ═══════════════════════════════════════════════════════════════════════════════

func deletionVariants(word string, maxD int) []string {
	seen := map[string]struct{}{word: {}}
	frontier := []string{word}
	for d := 0; d < maxD; d++ {
		var next []string
		for _, w := range frontier {
			for _, v := range deleteOneRune(w) {
				if _, ok := seen[v]; ok {
					continue
				}
				seen[v] = struct{}{}
				next = append(next, v)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out
}

func deleteOneRune(w string) []string {
	runes := []rune(w)
	if len(runes) == 0 {
		return nil
	}
	out := make([]string, 0, len(runes))
	for i := range runes {
		var b strings.Builder
		b.Grow(len(w))
		for j, r := range runes {
			if j != i {
				b.WriteRune(r)
			}
		}
		out = append(out, b.String())
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// ON-DISK ENCODING
// ═══════════════════════════════════════════════════════════════════════════════
// fuzzy.fst: [magic "FUZ1"][version][count][length-prefixed delete keys in
//   ascending ordinal order], identical shape to prefixindex's encoding,
//   just over delete-key strings rather than words.
// fuzzy.msg: [magic "FUZM"][version][maxD][word_count][id, length-prefixed
//   word]... [payload_count][for each payload, serialized roaring bitmap]
// ═══════════════════════════════════════════════════════════════════════════════

func encodeFST(keys []string) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(fstMagic)
	binary.Write(buf, binary.LittleEndian, fileVersion)
	binary.Write(buf, binary.LittleEndian, uint32(len(keys)))
	for _, k := range keys {
		b := []byte(k)
		binary.Write(buf, binary.LittleEndian, uint16(len(b)))
		buf.Write(b)
	}
	return buf.Bytes()
}

func decodeFST(data []byte) ([]string, error) {
	if len(data) < len(fstMagic)+8 || string(data[:len(fstMagic)]) != fstMagic {
		return nil, fmt.Errorf("fuzzyindex: bad fst magic")
	}
	off := len(fstMagic)
	ver := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if ver != fileVersion {
		return nil, fmt.Errorf("fuzzyindex: fst version mismatch: got %d want %d", ver, fileVersion)
	}
	count := binary.LittleEndian.Uint32(data[off:])
	off += 4
	keys := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		l := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		keys = append(keys, string(data[off:off+l]))
		off += l
	}
	return keys, nil
}

func encodeMSG(payload []*roaring.Bitmap, words map[uint32]string, maxD int) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(msgMagic)
	binary.Write(buf, binary.LittleEndian, fileVersion)
	binary.Write(buf, binary.LittleEndian, uint32(maxD))

	binary.Write(buf, binary.LittleEndian, uint32(len(words)))
	ids := make([]uint32, 0, len(words))
	for id := range words {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		binary.Write(buf, binary.LittleEndian, id)
		w := []byte(words[id])
		binary.Write(buf, binary.LittleEndian, uint16(len(w)))
		buf.Write(w)
	}

	binary.Write(buf, binary.LittleEndian, uint32(len(payload)))
	for _, bm := range payload {
		bytes, _ := bm.ToBytes()
		binary.Write(buf, binary.LittleEndian, uint32(len(bytes)))
		buf.Write(bytes)
	}
	return buf.Bytes()
}

func decodeMSG(data []byte) (payload []*roaring.Bitmap, words map[uint32]string, maxD int, err error) {
	if len(data) < len(msgMagic)+12 || string(data[:len(msgMagic)]) != msgMagic {
		return nil, nil, 0, fmt.Errorf("fuzzyindex: bad msg magic")
	}
	off := len(msgMagic)
	ver := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if ver != fileVersion {
		return nil, nil, 0, fmt.Errorf("fuzzyindex: msg version mismatch: got %d want %d", ver, fileVersion)
	}
	maxD = int(binary.LittleEndian.Uint32(data[off:]))
	off += 4

	wordCount := binary.LittleEndian.Uint32(data[off:])
	off += 4
	words = make(map[uint32]string, wordCount)
	for i := uint32(0); i < wordCount; i++ {
		id := binary.LittleEndian.Uint32(data[off:])
		off += 4
		l := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		words[id] = string(data[off : off+l])
		off += l
	}

	payloadCount := binary.LittleEndian.Uint32(data[off:])
	off += 4
	payload = make([]*roaring.Bitmap, payloadCount)
	for i := uint32(0); i < payloadCount; i++ {
		l := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		bm := roaring.New()
		if err := bm.UnmarshalBinary(data[off : off+l]); err != nil {
			return nil, nil, 0, fmt.Errorf("fuzzyindex: decode bitmap %d: %w", i, err)
		}
		payload[i] = bm
		off += l
	}
	return payload, words, maxD, nil
}
