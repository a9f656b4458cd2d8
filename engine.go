package phrasex

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/multierr"

	"github.com/geocoder-oss/phrasex/fuzzyindex"
	"github.com/geocoder-oss/phrasex/phraseindex"
	"github.com/geocoder-oss/phrasex/prefixindex"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BUILD
// ═══════════════════════════════════════════════════════════════════════════════

// BuildConfig parameterises a build. MaxEditDistance is D_build, the
// ceiling every later query's max_word_d is checked against.
type BuildConfig struct {
	MaxEditDistance int
	Dir             string
}

// Builder accumulates phrases before Finalize emits the three on-disk
// indices and metadata.json. Not safe for concurrent InsertPhrase calls,
// mirroring every sub-index builder it wraps.
type Builder struct {
	maxEditDistance int
	phrases         [][]string
	finalized       bool
}

// NewBuilder returns an empty Builder parameterised by the build-time
// maximum edit distance.
func NewBuilder(maxEditDistance int) *Builder {
	return &Builder{maxEditDistance: maxEditDistance}
}

// InsertPhrase records a phrase as an already-tokenized word sequence.
func (b *Builder) InsertPhrase(words []string) error {
	if len(words) == 0 {
		return &BuildError{Kind: BuildErrEmptyPhrase}
	}
	norm := make([]string, len(words))
	for i, w := range words {
		norm[i] = NormalizeWord(w)
	}
	b.phrases = append(b.phrases, norm)
	return nil
}

// InsertPhrasesFromLines tokenizes each line into words and inserts it as
// a phrase. Splitting text into lines is the caller's concern; this just
// saves callers building from a corpus file the trouble of tokenizing and
// calling InsertPhrase themselves, and accumulates every malformed line's
// error rather than stopping at the first.
func (b *Builder) InsertPhrasesFromLines(lines []string) error {
	var errs error
	for i, line := range lines {
		words := Tokenize(line)
		if err := b.InsertPhrase(words); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", i, err))
		}
	}
	return errs
}

// Finalize builds the lexicon, the three sub-indices, and writes them
// plus metadata.json to dir. dir must be empty if it exists; Finalize
// creates it if absent. A Builder may be finalized
// only once; a second call returns BuildErrAlreadyFinalized.
func (b *Builder) Finalize(dir string) (*Index, error) {
	if b.finalized {
		return nil, &BuildError{Kind: BuildErrAlreadyFinalized}
	}
	if err := prepareBuildDir(dir); err != nil {
		return nil, &BuildError{Kind: BuildErrWriteFailure, Err: err}
	}
	b.finalized = true

	pb := prefixindex.NewBuilder()
	for _, phrase := range b.phrases {
		for _, w := range phrase {
			pb.Insert(w)
		}
	}
	pi, prefixBytes, err := pb.Finalize()
	if err != nil {
		return nil, &BuildError{Kind: BuildErrIDSpaceExhausted, Err: err}
	}

	lexicon := pi.Words(0, uint32(pi.Len()))
	fb := fuzzyindex.NewBuilder(b.maxEditDistance)
	for id, w := range lexicon {
		if IsAlphabetic(w) {
			fb.Insert(w, uint32(id))
		}
	}
	fi, fuzzyFSTBytes, fuzzyMSGBytes, err := fb.Finalize()
	if err != nil {
		return nil, &BuildError{Kind: BuildErrUnknown, Err: err}
	}

	phb := phraseindex.NewBuilder()
	for _, phrase := range b.phrases {
		ids := make([]WordID, len(phrase))
		for i, w := range phrase {
			id, err := pi.Get(w)
			if err != nil {
				return nil, &BuildError{Kind: BuildErrUnknown, Err: fmt.Errorf("word %q missing from lexicon after finalize", w)}
			}
			ids[i] = WordID(id)
		}
		phb.Insert(ids)
	}
	phraseCount := phb.Len()
	phi, phraseBytes, err := phb.Finalize()
	if err != nil {
		return nil, &BuildError{Kind: BuildErrUnknown, Err: err}
	}

	artifacts := map[string][]byte{
		prefixFile:   prefixBytes,
		fuzzyFSTFile: fuzzyFSTBytes,
		fuzzyMSGFile: fuzzyMSGBytes,
		phraseFile:   phraseBytes,
	}
	checksums := make(map[string]string, len(artifacts))
	for name, data := range artifacts {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return nil, &BuildError{Kind: BuildErrWriteFailure, Err: err}
		}
		checksums[name] = checksumOf(data)
	}

	meta := Metadata{
		MaxEditDistance: b.maxEditDistance,
		WordCount:       pi.Len(),
		PhraseCount:     phraseCount,
		Version:         metadataVersion,
		BuildID:         newBuildID(),
		Checksums:       checksums,
	}
	metaBytes, err := marshalMetadata(meta)
	if err != nil {
		return nil, &BuildError{Kind: BuildErrWriteFailure, Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metaBytes, 0o644); err != nil {
		return nil, &BuildError{Kind: BuildErrWriteFailure, Err: err}
	}

	return &Index{pi: pi, fi: fi, phi: phi, meta: meta, dir: dir}, nil
}

func prepareBuildDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("build directory %s is not empty", dir)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// QUERY
// ═══════════════════════════════════════════════════════════════════════════════

// Match is one accepted phrase: its resolved words and the summed edit
// distance across all positions.
type Match struct {
	Words    []string
	Distance int
}

// WindowMatch is one accepted sub-phrase found by a windowed query: the
// [Start, End) span of query-token positions it covers.
type WindowMatch struct {
	Start, End      int
	Words           []string
	Distance        int
	EndsInPrefixHit bool
}

// MultiQuery is one request within a FuzzyMatchMulti batch.
type MultiQuery struct {
	Words       []string
	MaxWordD    int
	MaxTotalD   int
	AllowPrefix bool
}

// Index is an opened, immutable, concurrently queryable instance: the
// glue layer owning the three sub-indices plus the metadata that
// described how they were built.
type Index struct {
	pi   *prefixindex.Index
	fi   *fuzzyindex.Index
	phi  *phraseindex.Index
	meta Metadata
	dir  string
}

// Open memory-maps and validates a directory produced by Builder.Finalize.
func Open(dir string) (*Index, error) {
	metaPath := filepath.Join(dir, metadataFile)
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, &OpenError{Kind: OpenErrMissingFile, Path: metaPath, Err: err}
	}
	meta, err := validateMetadata(metaPath, metaBytes)
	if err != nil {
		return nil, err
	}
	if meta.Version != metadataVersion {
		return nil, &OpenError{Kind: OpenErrVersionMismatch, Path: metaPath, Err: fmt.Errorf("metadata version %d, want %d", meta.Version, metadataVersion)}
	}

	artifacts := []string{prefixFile, fuzzyFSTFile, fuzzyMSGFile, phraseFile}
	for _, name := range artifacts {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &OpenError{Kind: OpenErrMissingFile, Path: path, Err: err}
		}
		if err := verifyChecksum(dir, name, data, meta.Checksums); err != nil {
			return nil, err
		}
	}

	pi, err := prefixindex.Open(filepath.Join(dir, prefixFile))
	if err != nil {
		return nil, &OpenError{Kind: OpenErrBadMagic, Path: prefixFile, Err: err}
	}
	fi, err := fuzzyindex.Open(filepath.Join(dir, fuzzyFSTFile), filepath.Join(dir, fuzzyMSGFile))
	if err != nil {
		pi.Close()
		return nil, &OpenError{Kind: OpenErrBadMagic, Path: fuzzyFSTFile, Err: err}
	}
	phi, err := phraseindex.Open(filepath.Join(dir, phraseFile))
	if err != nil {
		pi.Close()
		fi.Close()
		return nil, &OpenError{Kind: OpenErrBadMagic, Path: phraseFile, Err: err}
	}

	return &Index{pi: pi, fi: fi, phi: phi, meta: meta, dir: dir}, nil
}

// Close unmaps the backing files of all three sub-indices. Idempotent.
func (idx *Index) Close() error {
	return multierr.Combine(idx.pi.Close(), idx.fi.Close(), idx.phi.Close())
}

// Metadata returns the build-time parameters this instance was opened (or
// built) with.
func (idx *Index) Metadata() Metadata { return idx.meta }

// Contains reports whether words is exactly a phrase inserted at build
// time.
func (idx *Index) Contains(words []string) bool {
	ids, ok := idx.exactIDs(words)
	if !ok {
		return false
	}
	return idx.phi.Contains(ids)
}

// ContainsPrefix reports whether words is a prefix of some inserted
// phrase: every token but the last resolved exactly, the last resolved to
// a prefix range.
func (idx *Index) ContainsPrefix(words []string) bool {
	if len(words) == 0 {
		return false
	}
	variants := make([][]phraseindex.Variant, len(words))
	for i := 0; i < len(words)-1; i++ {
		id, err := idx.pi.Get(NormalizeWord(words[i]))
		if err != nil {
			return false
		}
		variants[i] = []phraseindex.Variant{{Exact: true, ID: WordID(id)}}
	}
	lo, hi, err := idx.pi.PrefixRange(NormalizeWord(words[len(words)-1]))
	if err != nil {
		return false
	}
	variants[len(words)-1] = []phraseindex.Variant{{Lo: WordID(lo), Hi: WordID(hi)}}
	return len(idx.phi.MatchCombinationsAsPrefixes(variants, 0, nil)) > 0
}

// FuzzyMatch resolves every token to its fuzzy/exact variant set (no
// range at the tail) and returns every complete phrase reachable within
// maxTotalD.
func (idx *Index) FuzzyMatch(words []string, maxWordD, maxTotalD int) ([]Match, error) {
	variants, ok, err := idx.resolveVariants(words, maxWordD, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return idx.toMatches(idx.phi.MatchCombinations(variants, maxTotalD, nil)), nil
}

// FuzzyMatchPrefix is FuzzyMatch but the last token additionally resolves
// to a prefix range, and acceptance only requires prefix reachability.
func (idx *Index) FuzzyMatchPrefix(words []string, maxWordD, maxTotalD int) ([]Match, error) {
	variants, ok, err := idx.resolveVariants(words, maxWordD, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return idx.toMatches(idx.phi.MatchCombinationsAsPrefixes(variants, maxTotalD, nil)), nil
}

// FuzzyMatchWindows returns every sub-span of words that forms a complete
// phrase within maxTotalD, optionally also accepting a prefix hit at the
// very end of words when endsInPrefix is true.
func (idx *Index) FuzzyMatchWindows(words []string, maxWordD, maxTotalD int, endsInPrefix bool) ([]WindowMatch, error) {
	if err := idx.checkQuery(words, maxWordD); err != nil {
		return nil, err
	}
	n := len(words)
	variants := make([][]phraseindex.Variant, n)
	for i, raw := range words {
		t := NormalizeWord(raw)
		isTail := i == n-1
		vs, err := idx.resolveToken(t, isTail, endsInPrefix && isTail, maxWordD)
		if err != nil {
			return nil, err
		}
		variants[i] = vs
	}
	raw := idx.phi.MatchCombinationsAsWindows(variants, maxTotalD, endsInPrefix, nil)
	out := make([]WindowMatch, 0, len(raw))
	for _, m := range raw {
		out = append(out, WindowMatch{
			Start:           m.Start,
			End:             m.End,
			Words:           idx.wordsOf(m.IDs),
			Distance:        m.Distance,
			EndsInPrefixHit: m.EndsInPrefix,
		})
	}
	return out, nil
}

// FuzzyMatchMulti answers several FuzzyMatch/FuzzyMatchPrefix queries
// together, resolving each distinct (word, max_word_d, allow_prefix) token
// only once across the whole batch. Result j is exactly what a standalone
// FuzzyMatch/FuzzyMatchPrefix call for queries[j] would return.
func (idx *Index) FuzzyMatchMulti(queries []MultiQuery) ([][]Match, error) {
	type cacheKey struct {
		word        string
		maxD        int
		allowPrefix bool
	}
	cache := make(map[cacheKey][]phraseindex.Variant)
	out := make([][]Match, len(queries))

	for qi, q := range queries {
		if err := idx.checkQuery(q.Words, q.MaxWordD); err != nil {
			return nil, err
		}
		n := len(q.Words)
		variants := make([][]phraseindex.Variant, n)
		zeroInterior := false
		for i, raw := range q.Words {
			t := NormalizeWord(raw)
			isTail := i == n-1
			allowPrefixHere := q.AllowPrefix && isTail
			key := cacheKey{t, q.MaxWordD, allowPrefixHere}
			vs, cached := cache[key]
			if !cached {
				var err error
				vs, err = idx.resolveToken(t, isTail, allowPrefixHere, q.MaxWordD)
				if err != nil {
					return nil, err
				}
				cache[key] = vs
			}
			if !isTail && len(vs) == 0 {
				zeroInterior = true
			}
			variants[i] = vs
		}
		if zeroInterior {
			continue
		}
		var raw []phraseindex.Match
		if q.AllowPrefix {
			raw = idx.phi.MatchCombinationsAsPrefixes(variants, q.MaxTotalD, nil)
		} else {
			raw = idx.phi.MatchCombinations(variants, q.MaxTotalD, nil)
		}
		out[qi] = idx.toMatches(raw)
	}
	return out, nil
}

const explainRangeSample = 20

// VariantExplanation is one resolved candidate for a single query token.
type VariantExplanation struct {
	Kind       string // "exact" or "range"
	Word       string // set when Kind == "exact"
	Distance   int    // set when Kind == "exact"
	RangeWords []string
	RangeSize  int
}

// TokenExplanation is the full resolved variant set for one query token.
type TokenExplanation struct {
	Token    string
	Variants []VariantExplanation
}

// Explanation is Explain's diagnostic result.
type Explanation struct {
	Tokens []TokenExplanation
}

// Explain resolves words exactly as FuzzyMatchPrefix would, but returns
// the variant set itself rather than running the combinatorial walk.
// Useful for understanding why a query did or didn't match.
func (idx *Index) Explain(words []string) Explanation {
	n := len(words)
	maxWordD := idx.fi.MaxBuildDistance()
	exp := Explanation{Tokens: make([]TokenExplanation, n)}
	for i, raw := range words {
		t := NormalizeWord(raw)
		isTail := i == n-1
		vs, _ := idx.resolveToken(t, isTail, isTail, maxWordD)
		te := TokenExplanation{Token: t}
		for _, v := range vs {
			if v.Exact {
				w, _ := idx.pi.Word(uint32(v.ID))
				te.Variants = append(te.Variants, VariantExplanation{Kind: "exact", Word: w, Distance: v.Distance})
			} else {
				sample := idx.pi.Words(uint32(v.Lo), uint32(v.Hi))
				full := len(sample)
				if len(sample) > explainRangeSample {
					sample = sample[:explainRangeSample]
				}
				te.Variants = append(te.Variants, VariantExplanation{Kind: "range", RangeWords: sample, RangeSize: full})
			}
		}
		exp.Tokens[i] = te
	}
	return exp
}

// ═══════════════════════════════════════════════════════════════════════════════
// VARIANT RESOLUTION: spec.md §4.4's table, reproduced exactly
// ═══════════════════════════════════════════════════════════════════════════════

func (idx *Index) checkQuery(words []string, maxWordD int) error {
	if len(words) == 0 {
		return &QueryError{Kind: QueryErrEmptyInput}
	}
	if maxWordD > idx.fi.MaxBuildDistance() {
		return &QueryError{Kind: QueryErrDistanceTooHigh}
	}
	return nil
}

// resolveVariants resolves every token of words, returning ok=false
// (never an error) if an interior token resolved to zero variants. This
// is the signal that a non-windowed query must return empty immediately.
func (idx *Index) resolveVariants(words []string, maxWordD int, tailAllowsPrefix bool) (variants [][]phraseindex.Variant, ok bool, err error) {
	if err := idx.checkQuery(words, maxWordD); err != nil {
		return nil, false, err
	}
	n := len(words)
	variants = make([][]phraseindex.Variant, n)
	ok = true
	for i, raw := range words {
		t := NormalizeWord(raw)
		isTail := i == n-1
		vs, err := idx.resolveToken(t, isTail, tailAllowsPrefix && isTail, maxWordD)
		if err != nil {
			return nil, false, err
		}
		variants[i] = vs
		if !isTail && len(vs) == 0 {
			ok = false
		}
	}
	return variants, ok, nil
}

// resolveToken implements one cell of spec.md §4.4's resolution table for
// a single already-normalized token.
func (idx *Index) resolveToken(t string, isTail, tailPrefix bool, maxWordD int) ([]phraseindex.Variant, error) {
	if !utf8.ValidString(t) {
		return nil, &QueryError{Kind: QueryErrInvalidUTF8}
	}
	if IsAlphabetic(t) {
		cands, err := idx.fi.Lookup(t, maxWordD)
		if err != nil {
			return nil, err
		}
		vs := make([]phraseindex.Variant, 0, len(cands)+1)
		for _, c := range cands {
			vs = append(vs, phraseindex.Variant{Exact: true, ID: WordID(c.WordID), Distance: c.Distance})
		}
		if tailPrefix {
			if lo, hi, err := idx.pi.PrefixRange(t); err == nil {
				vs = append(vs, phraseindex.Variant{Lo: WordID(lo), Hi: WordID(hi)})
			}
		}
		return vs, nil
	}

	if tailPrefix {
		if lo, hi, err := idx.pi.PrefixRange(t); err == nil {
			return []phraseindex.Variant{{Lo: WordID(lo), Hi: WordID(hi)}}, nil
		}
		if id, err := idx.pi.Get(t); err == nil {
			return []phraseindex.Variant{{Exact: true, ID: WordID(id)}}, nil
		}
		return nil, nil
	}

	id, err := idx.pi.Get(t)
	if err != nil {
		return nil, nil
	}
	return []phraseindex.Variant{{Exact: true, ID: WordID(id)}}, nil
}

func (idx *Index) exactIDs(words []string) ([]WordID, bool) {
	ids := make([]WordID, len(words))
	for i, w := range words {
		id, err := idx.pi.Get(NormalizeWord(w))
		if err != nil {
			return nil, false
		}
		ids[i] = WordID(id)
	}
	return ids, true
}

func (idx *Index) wordsOf(ids []WordID) []string {
	words := make([]string, len(ids))
	for i, id := range ids {
		w, _ := idx.pi.Word(uint32(id))
		words[i] = w
	}
	return words
}

func (idx *Index) toMatches(raw []phraseindex.Match) []Match {
	out := make([]Match, 0, len(raw))
	for _, m := range raw {
		out = append(out, Match{Words: idx.wordsOf(m.IDs), Distance: m.Distance})
	}
	return out
}
