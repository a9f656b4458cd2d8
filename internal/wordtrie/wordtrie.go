// Package wordtrie is the ordered word -> id map backing
// github.com/geocoder-oss/phrasex/prefixindex. It plays the role spec.md
// §4.1 assigns to a finite-state transducer: build from a lexicographically
// sorted word list with ids assigned in that sort order, then answer exact
// lookups and prefix-range lookups by descending the byte trie.
//
// Why a byte trie rather than an in-memory sorted slice plus binary
// search? Two reasons this system cares about: (1) prefix_range needs the
// subtree's [min, max] id bound, which a trie node can cache once at build
// time and a sorted slice cannot without a second structure, and (2) this
// mirrors the shape every real geocoder prefix index takes (an FST or
// similar ordered automaton), which is the point of the exercise.
package wordtrie

import "sort"

// Builder accumulates words in arbitrary order before Finalize sorts and
// assigns ids. Not safe for concurrent Insert calls.
type Builder struct {
	seen map[string]struct{}
}

// NewBuilder returns an empty word-set accumulator.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

// Insert records a word for the next Finalize. Duplicate inserts are
// idempotent.
func (b *Builder) Insert(word string) {
	b.seen[word] = struct{}{}
}

// Len reports how many distinct words have been inserted so far.
func (b *Builder) Len() int { return len(b.seen) }

// ErrIDSpaceExhausted is returned by Finalize when more than 2^24 distinct
// words were inserted, more ids than the BE3 phrase encoding can carry.
var ErrIDSpaceExhausted = idSpaceExhausted{}

type idSpaceExhausted struct{}

func (idSpaceExhausted) Error() string { return "wordtrie: word-id space exhausted" }

const maxWords = 1 << 24

// Finalize sorts the accumulated words, assigns dense 0-based ids in that
// order, and builds the trie. It returns the sorted word list (index i is
// the word with id i) alongside the Trie itself. Finalize does not modify
// the Builder's word set.
func (b *Builder) Finalize() (*Trie, []string, error) {
	if len(b.seen) > maxWords {
		return nil, nil, ErrIDSpaceExhausted
	}
	words := make([]string, 0, len(b.seen))
	for w := range b.seen {
		words = append(words, w)
	}
	sort.Strings(words)

	t := &Trie{root: &node{}, words: words}
	for id, w := range words {
		t.insert(w, uint32(id))
	}
	t.annotate(t.root, 0, uint32(len(words)-1))
	if len(words) == 0 {
		t.root.hasLeaf = false
	}
	return t, words, nil
}

type node struct {
	children map[byte]*node
	// byteOrder preserves first-insertion order isn't needed: children map
	// keys are iterated in sorted byte order on demand via sortedBytes.
	isWord  bool
	id      uint32
	minID   uint32
	maxID   uint32
	hasLeaf bool // true once minID/maxID have been set by annotate
}

// Trie is the finalized, immutable ordered word -> id map.
type Trie struct {
	root  *node
	words []string
}

func (t *Trie) insert(word string, id uint32) {
	cur := t.root
	for i := 0; i < len(word); i++ {
		b := word[i]
		if cur.children == nil {
			cur.children = make(map[byte]*node)
		}
		child, ok := cur.children[b]
		if !ok {
			child = &node{}
			cur.children[b] = child
		}
		cur = child
	}
	cur.isWord = true
	cur.id = id
}

// annotate computes, bottom-up in insertion id order, the [min, max] word
// id reachable under each node. Because ids were assigned in sorted word
// order and the trie is a prefix tree, the minimum id under any node is
// the first (lexicographically smallest) word below it and the maximum is
// the last, exactly the "accumulated output of the shortest and longest
// paths" spec.md §4.1 describes.
func (t *Trie) annotate(n *node, lo, hi uint32) {
	// We don't know lo/hi analytically without a traversal that visits
	// words in id order, so instead compute directly from descendants.
	min, max, has := t.minMax(n)
	n.minID, n.maxID, n.hasLeaf = min, max, has
}

func (t *Trie) minMax(n *node) (min, max uint32, has bool) {
	if n.isWord {
		min, max, has = n.id, n.id, true
	}
	keys := sortedBytes(n.children)
	for _, k := range keys {
		child := n.children[k]
		cMin, cMax, cHas := t.minMax(child)
		child.minID, child.maxID, child.hasLeaf = cMin, cMax, cHas
		if !cHas {
			continue
		}
		if !has || cMin < min {
			min = cMin
		}
		if !has || cMax > max {
			max = cMax
		}
		has = true
	}
	return
}

func sortedBytes(m map[byte]*node) []byte {
	keys := make([]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Get returns the id assigned to word, and false if word is not in the
// lexicon.
func (t *Trie) Get(word string) (uint32, bool) {
	cur := t.root
	for i := 0; i < len(word); i++ {
		if cur.children == nil {
			return 0, false
		}
		next, ok := cur.children[word[i]]
		if !ok {
			return 0, false
		}
		cur = next
	}
	if !cur.isWord {
		return 0, false
	}
	return cur.id, true
}

// PrefixRange returns [lo, hi), the contiguous id range of every lexicon
// word starting with prefix, or false if no word has this prefix.
func (t *Trie) PrefixRange(prefix string) (lo, hi uint32, ok bool) {
	cur := t.root
	for i := 0; i < len(prefix); i++ {
		if cur.children == nil {
			return 0, 0, false
		}
		next, found := cur.children[prefix[i]]
		if !found {
			return 0, 0, false
		}
		cur = next
	}
	if !cur.hasLeaf {
		return 0, 0, false
	}
	return cur.minID, cur.maxID + 1, true
}

// Words returns the words with ids in [lo, hi), in id order. Because ids
// are assigned in sorted order, this is a direct slice of the finalized
// word list.
func (t *Trie) Words(lo, hi uint32) []string {
	if lo > uint32(len(t.words)) {
		lo = uint32(len(t.words))
	}
	if hi > uint32(len(t.words)) {
		hi = uint32(len(t.words))
	}
	if lo >= hi {
		return nil
	}
	return t.words[lo:hi]
}

// Len reports the lexicon size.
func (t *Trie) Len() int { return len(t.words) }

// Word returns the word assigned id, if id is in range.
func (t *Trie) Word(id uint32) (string, bool) {
	if int(id) >= len(t.words) {
		return "", false
	}
	return t.words[id], true
}
