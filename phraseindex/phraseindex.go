// Package phraseindex implements spec.md §4.3's PhraseIndex: an ordered
// set of phrases, each stored as the BE3-concatenated byte key of its
// word-id sequence, supporting exact/prefix membership and the
// combinatorial search that is the hard part of this whole system: a
// depth-first walk over the phrase acceptor constrained by a running
// edit-distance budget, fed per-position candidate variants (exact ids or
// id ranges) resolved upstream by PrefixIndex/FuzzyIndex.
package phraseindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/geocoder-oss/phrasex/internal/be3"
	"github.com/geocoder-oss/phrasex/internal/bytetrie"
	"github.com/geocoder-oss/phrasex/internal/mmapfile"
)

const (
	magic   = "PHR1"
	version = uint32(1)
)

// Variant is a per-token search candidate, matching spec.md §3 exactly:
// either an Exact id at a known distance, or a Range [Lo, Hi) of ids at
// distance 0 (used at the tail of a prefix query). IDs are be3.WordID,
// the same type the root package exposes as phrasex.WordID; this package
// imports the internal be3 package directly rather than phrasex itself to
// stay import-cycle-free.
type Variant struct {
	Exact    bool
	ID       be3.WordID // valid when Exact
	Lo, Hi   be3.WordID // valid when !Exact; Hi is exclusive
	Distance int        // always 0 for a Range variant
}

// Match is one accepted phrase: the chosen id at each position and the
// summed edit distance across positions.
type Match struct {
	IDs      []be3.WordID
	Distance int
}

// WindowMatch is one accepted sub-phrase found by MatchCombinationsAsWindows:
// the half-open [Start, End) span of variant positions it covers, plus
// whether it was accepted as a prefix hit at the very end of the variant
// list (only possible when End == len(variants) and EndsInPrefix was
// requested).
type WindowMatch struct {
	Start, End   int
	IDs          []be3.WordID
	Distance     int
	EndsInPrefix bool
}

// Builder accumulates phrase key sequences before Finalize freezes the
// acceptor. The raw keys are kept alongside the trie build because the
// acceptor itself is write-only at query time (it exposes no enumeration),
// so the on-disk encoder needs its own copy of the key set.
type Builder struct {
	b    *bytetrie.Builder
	keys [][]byte
	seen map[string]struct{}
}

// NewBuilder returns an empty PhraseIndex builder.
func NewBuilder() *Builder {
	return &Builder{b: bytetrie.NewBuilder(), seen: make(map[string]struct{})}
}

// Insert adds a complete phrase, given as its word-id sequence.
func (bd *Builder) Insert(ids []be3.WordID) {
	key := be3.Key(ids)
	bd.b.Insert(key)
	if _, ok := bd.seen[string(key)]; !ok {
		bd.seen[string(key)] = struct{}{}
		bd.keys = append(bd.keys, key)
	}
}

// Len reports the number of distinct phrases inserted so far.
func (bd *Builder) Len() int { return len(bd.keys) }

// Finalize freezes the acceptor and returns the queryable Index and its
// on-disk form.
func (bd *Builder) Finalize() (*Index, []byte, error) {
	trie := bd.b.Finalize()
	idx := &Index{trie: trie}
	return idx, encode(bd.keys), nil
}

// Index is the immutable, query-only PhraseIndex.
type Index struct {
	trie *bytetrie.Trie
	mf   *mmapfile.File
}

// Close releases the memory-mapped backing file, if this Index was
// produced by Open.
func (idx *Index) Close() error {
	if idx.mf == nil {
		return nil
	}
	return idx.mf.Close()
}

// Contains reports whether the exact phrase ids is present in the index.
func (idx *Index) Contains(ids []be3.WordID) bool {
	return idx.trie.Contains(be3.Key(ids))
}

// ContainsPrefix reports whether ids is a prefix of some stored phrase.
func (idx *Index) ContainsPrefix(ids []be3.WordID) bool {
	return idx.trie.ContainsPrefix(be3.Key(ids))
}

// MatchCombinations walks the acceptor across the per-position variant
// lists, returning every complete phrase reachable within maxTotalD total
// edit distance. budget, if non-nil, is decremented once per node visited
// and the walk gives up exploring further branches once it reaches zero;
// existing results are still returned. This exists purely so tests can
// assert the walk actually prunes (spec.md §8 S5), not to change results
// under normal budgets.
func (idx *Index) MatchCombinations(variants [][]Variant, maxTotalD int, budget *int) []Match {
	var out []Match
	walk(idx.trie.Root(), variants, maxTotalD, budget, func(depth int, node *bytetrie.Node, ids []be3.WordID, dist int, viaRange bool) bool {
		if depth != len(variants) {
			return true
		}
		if node.Final() {
			out = append(out, Match{IDs: append([]be3.WordID(nil), ids...), Distance: dist})
		}
		return true
	})
	return out
}

// MatchCombinationsAsPrefixes is MatchCombinations, but acceptance at the
// final depth only requires prefix reachability rather than an exact
// match: the last position's variants may be a Range (the common case:
// the caller's final token is incomplete).
func (idx *Index) MatchCombinationsAsPrefixes(variants [][]Variant, maxTotalD int, budget *int) []Match {
	var out []Match
	n := len(variants)
	walk(idx.trie.Root(), variants, maxTotalD, budget, func(depth int, node *bytetrie.Node, ids []be3.WordID, dist int, viaRange bool) bool {
		if depth != n {
			return true
		}
		if node.HasFinalBelow() {
			out = append(out, Match{IDs: append([]be3.WordID(nil), ids...), Distance: dist})
		}
		return true
	})
	return out
}

// MatchCombinationsAsWindows finds every (start, end) sub-span of the
// variant list that forms a complete phrase present in the index,
// starting the walk fresh from every possible start position. When
// endsInPrefix is true and a span reaches the very end of the variant
// list by consuming a Range variant at the last position, it is
// additionally emitted as a prefix hit. Zero-length windows are never
// emitted.
func (idx *Index) MatchCombinationsAsWindows(variants [][]Variant, maxTotalD int, endsInPrefix bool, budget *int) []WindowMatch {
	var out []WindowMatch
	n := len(variants)
	for start := 0; start < n; start++ {
		sub := variants[start:]
		walk(idx.trie.Root(), sub, maxTotalD, budget, func(depth int, node *bytetrie.Node, ids []be3.WordID, dist int, viaRange bool) bool {
			if depth == 0 {
				return true
			}
			end := start + depth
			if node.Final() {
				out = append(out, WindowMatch{
					Start: start, End: end,
					IDs:      append([]be3.WordID(nil), ids...),
					Distance: dist,
				})
			}
			if endsInPrefix && end == n && viaRange && node.HasFinalBelow() {
				out = append(out, WindowMatch{
					Start: start, End: end,
					IDs:          append([]be3.WordID(nil), ids...),
					Distance:     dist,
					EndsInPrefix: true,
				})
			}
			return true
		})
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// THE COMBINATORIAL WALK
// ═══════════════════════════════════════════════════════════════════════════════
// Depth-first over the phrase acceptor. At depth d (the d-th phrase
// position), for every variant at that position, in (distance asc, id
// asc) order:
//   - Exact(id, delta): consume the 3 id bytes; recurse if the trie has
//     that transition, adding delta to the running distance.
//   - Range(lo, hi, 0): enumerate child subtrees whose 3-byte value falls
//     in [lo, hi) without expanding all 256^3 possibilities, by pruning
//     whole subtrees against the range at each of the 3 byte levels.
// onVisit is called once per path reaching a node (a node reached through
// two different variants is visited twice), in discovery
// order (start index ascending implicitly via the caller, then depth
// ascending, then variant order), with viaRange reporting whether the
// edge just consumed to reach this node was a Range variant rather than
// an Exact one. This is the shared hook MatchCombinations, MatchCombinationsAsPrefixes
// and MatchCombinationsAsWindows all build on.
// ═══════════════════════════════════════════════════════════════════════════════

func walk(root *bytetrie.Node, variants [][]Variant, maxTotalD int, budget *int, onVisit func(depth int, node *bytetrie.Node, ids []be3.WordID, dist int, viaRange bool) bool) {
	var rec func(node *bytetrie.Node, depth int, dist int, ids []be3.WordID, viaRange bool)
	rec = func(node *bytetrie.Node, depth int, dist int, ids []be3.WordID, viaRange bool) {
		if dist > maxTotalD {
			return
		}
		if budget != nil {
			if *budget <= 0 {
				return
			}
			*budget--
		}
		onVisit(depth, node, ids, dist, viaRange)
		if depth == len(variants) {
			return
		}
		for _, v := range sortedVariants(variants[depth]) {
			if dist+v.Distance > maxTotalD {
				continue
			}
			if v.Exact {
				n1, ok := node.Child(byte(v.ID >> 16))
				if !ok {
					continue
				}
				n2, ok := n1.Child(byte(v.ID >> 8))
				if !ok {
					continue
				}
				n3, ok := n2.Child(byte(v.ID))
				if !ok {
					continue
				}
				rec(n3, depth+1, dist+v.Distance, append(ids, v.ID), false)
			} else {
				enumerateRange(node, v.Lo, v.Hi, func(leaf *bytetrie.Node, id be3.WordID) {
					rec(leaf, depth+1, dist, append(ids, id), true)
				})
			}
		}
	}
	rec(root, 0, 0, nil, false)
}

// sortedVariants returns variants ordered (distance asc, id asc) as
// spec.md §4.3 requires. Range variants sort by Lo as their tie-break key
// and always carry distance 0.
func sortedVariants(vs []Variant) []Variant {
	out := append([]Variant(nil), vs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}

func sortKey(v Variant) be3.WordID {
	if v.Exact {
		return v.ID
	}
	return v.Lo
}

// enumerateRange visits every child reachable from node via a 3-byte
// value in [lo, hi), without enumerating outside that span: at each of
// the 3 byte levels it only descends into present children whose entire
// sub-range could intersect [lo, hi), using the trie's presence bitset to
// jump straight to the next candidate byte (bytetrie.EachChildInByteRange)
// rather than probing all 256 possible bytes.
func enumerateRange(node *bytetrie.Node, lo, hi be3.WordID, visit func(leaf *bytetrie.Node, id be3.WordID)) {
	if lo >= hi {
		return
	}
	var rec func(n *bytetrie.Node, level int, prefix uint32)
	rec = func(n *bytetrie.Node, level int, prefix uint32) {
		if level == 3 {
			if prefix >= uint32(lo) && prefix < uint32(hi) {
				visit(n, be3.WordID(prefix))
			}
			return
		}
		shift := uint(8 * (2 - level))
		lowerMask := uint32(1)<<shift - 1
		// Narrow the byte span at this level: when prefix still shares its
		// upper bytes with lo (or with hi-1), the child byte can't go below
		// lo's byte (or above hi-1's byte) at this level.
		upperMask := ^(uint32(1)<<(shift+8) - 1)
		last := uint32(hi) - 1
		loB, hiB := 0, 256
		if prefix&upperMask == uint32(lo)&upperMask {
			loB = int((uint32(lo) >> shift) & 0xFF)
		}
		if prefix&upperMask == last&upperMask {
			hiB = int((last>>shift)&0xFF) + 1
		}
		n.EachChildInByteRange(loB, hiB, func(b byte, child *bytetrie.Node) {
			childPrefix := prefix | (uint32(b) << shift)
			childMax := childPrefix | lowerMask
			if childMax < uint32(lo) || childPrefix >= uint32(hi) {
				return
			}
			rec(child, level+1, childPrefix)
		})
	}
	rec(node, 0, 0)
}

// Open memory-maps path and parses it into a queryable Index.
func Open(path string) (*Index, error) {
	mf, err := mmapfile.Open(path)
	if err != nil {
		return nil, err
	}
	keys, err := decode(mf.Bytes())
	if err != nil {
		mf.Close()
		return nil, err
	}
	b := bytetrie.NewBuilder()
	for _, k := range keys {
		b.Insert(k)
	}
	return &Index{trie: b.Finalize(), mf: mf}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// ON-DISK ENCODING
// ═══════════════════════════════════════════════════════════════════════════════
// [magic "PHR1"][version][count][for each phrase key: length uint16][bytes]
// Keys need not be stored in any particular order; Open rebuilds the
// acceptor by inserting them all and finalizing, same as the other two
// indices.
// ═══════════════════════════════════════════════════════════════════════════════

func encode(keys [][]byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(magic)
	binary.Write(buf, binary.LittleEndian, version)
	binary.Write(buf, binary.LittleEndian, uint32(len(keys)))
	for _, k := range keys {
		binary.Write(buf, binary.LittleEndian, uint16(len(k)))
		buf.Write(k)
	}
	return buf.Bytes()
}

func decode(data []byte) ([][]byte, error) {
	if len(data) < len(magic)+8 || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("phraseindex: bad magic")
	}
	off := len(magic)
	ver := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if ver != version {
		return nil, fmt.Errorf("phraseindex: version mismatch: got %d want %d", ver, version)
	}
	count := binary.LittleEndian.Uint32(data[off:])
	off += 4
	keys := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		l := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		keys = append(keys, append([]byte(nil), data[off:off+l]...))
		off += l
	}
	return keys, nil
}
