// Package bytetrie is the phrase acceptor backing
// github.com/geocoder-oss/phrasex/phraseindex: an immutable trie over the
// 256-byte alphabet, storing each phrase as its BE3 word-id-sequence key
// (spec.md §4.3/§6). Each node's children are tracked with a 256-bit
// presence bitset (github.com/bits-and-blooms/bitset) rather than a bare
// map, the same "which of my fixed-width children exist" trick
// gaissmai/bart uses for CIDR stride nodes, ported here from IP-address
// strides to raw phrase-key bytes so range iteration over a span of ids
// (the Range variant of spec.md §4.3) can seek directly to the first
// present byte instead of probing all 256.
package bytetrie

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// Node is one state of the phrase acceptor.
type Node struct {
	present       *bitset.BitSet
	kids          map[byte]*Node
	final         bool
	hasFinalBelow bool // true if Final() anywhere in this node's subtree, itself included
}

func newNode() *Node {
	return &Node{present: bitset.New(256), kids: make(map[byte]*Node)}
}

// Final reports whether a phrase key ends exactly at this node.
func (n *Node) Final() bool { return n.final }

// HasFinalBelow reports whether any phrase key terminates at or below this
// node: the reachability check spec.md §4.3 needs for contains_prefix and
// for completing a prefix-variant match.
func (n *Node) HasFinalBelow() bool { return n.hasFinalBelow }

// Child returns the node reached by consuming byte b, if that transition
// exists.
func (n *Node) Child(b byte) (*Node, bool) {
	if !n.present.Test(uint(b)) {
		return nil, false
	}
	return n.kids[b], true
}

// EachChildInByteRange calls fn for every present child whose byte label
// lies in [lo, hi), in ascending byte order, seeking directly to the first
// present byte >= lo via the presence bitset rather than probing every
// value below it. lo and hi are ints (not byte) so callers can pass hi=256
// to mean "through 0xFF inclusive".
func (n *Node) EachChildInByteRange(lo, hi int, fn func(b byte, child *Node)) {
	if lo < 0 {
		lo = 0
	}
	if hi > 256 {
		hi = 256
	}
	if lo >= hi {
		return
	}
	i, ok := n.present.NextSet(uint(lo))
	for ok && i < uint(hi) {
		b := byte(i)
		fn(b, n.kids[b])
		i, ok = n.present.NextSet(i + 1)
	}
}

// Builder accumulates phrase keys before Finalize freezes the trie.
type Builder struct {
	root *Node
}

// NewBuilder returns an empty phrase-key accumulator.
func NewBuilder() *Builder {
	return &Builder{root: newNode()}
}

// Insert adds a phrase key (a multiple-of-3-byte BE3 id sequence) to the
// set. Safe to call with duplicate keys.
func (b *Builder) Insert(key []byte) {
	cur := b.root
	for _, by := range key {
		if !cur.present.Test(uint(by)) {
			child := newNode()
			cur.kids[by] = child
			cur.present.Set(uint(by))
		}
		cur = cur.kids[by]
	}
	cur.final = true
}

// Finalize computes hasFinalBelow bottom-up and returns the immutable
// Trie. The Builder should not be reused afterward.
func (b *Builder) Finalize() *Trie {
	annotate(b.root)
	return &Trie{root: b.root}
}

func annotate(n *Node) bool {
	has := n.final
	keys := make([]byte, 0, len(n.kids))
	for k := range n.kids {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		if annotate(n.kids[k]) {
			has = true
		}
	}
	n.hasFinalBelow = has
	return has
}

// Trie is the finalized, immutable phrase acceptor.
type Trie struct {
	root *Node
}

// Root returns the start state for a traversal.
func (t *Trie) Root() *Node { return t.root }

// Contains reports whether key (a complete BE3 id sequence) names a phrase
// present in the set.
func (t *Trie) Contains(key []byte) bool {
	cur := t.root
	for _, b := range key {
		next, ok := cur.Child(b)
		if !ok {
			return false
		}
		cur = next
	}
	return cur.Final()
}

// ContainsPrefix reports whether key is a prefix of some stored phrase key
// (including being a stored key itself).
func (t *Trie) ContainsPrefix(key []byte) bool {
	cur := t.root
	for _, b := range key {
		next, ok := cur.Child(b)
		if !ok {
			return false
		}
		cur = next
	}
	return cur.HasFinalBelow()
}
