package phrasex

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WORD NORMALIZATION
// ═══════════════════════════════════════════════════════════════════════════════
// A word is a Unicode string normalized to lowercase with surrounding
// whitespace stripped. We run Unicode NFC normalization before lower-casing
// so that two byte-distinct spellings of the same accented word ("é" as one
// precomposed rune vs. "e" + combining acute) collapse onto the same
// lexicon entry. Without this, the dense-id and prefix-range invariants
// (spec §3) could see a single logical word assigned two ids.
// ═══════════════════════════════════════════════════════════════════════════════

// NormalizeWord lower-cases and NFC-normalizes a single token, trimming
// surrounding whitespace. This is the only transformation applied to words
// anywhere in the system: build and query paths both funnel through it.
func NormalizeWord(s string) string {
	s = strings.TrimSpace(s)
	s = norm.NFC.String(s)
	return strings.ToLower(s)
}

// IsAlphabetic reports whether w is eligible for fuzzy or prefix treatment:
// every rune belongs to the Latin, Greek or Cyrillic scripts, none is a
// decimal digit, and the word has length >= 2 runes.
//
// The standard library's unicode package already ships exactly the script
// range tables an implementer needs here (unicode.Latin, unicode.Greek,
// unicode.Cyrillic); no third-party Unicode table is warranted for this.
func IsAlphabetic(w string) bool {
	count := 0
	for _, r := range w {
		if unicode.IsDigit(r) {
			return false
		}
		if !unicode.In(r, unicode.Latin, unicode.Greek, unicode.Cyrillic) {
			return false
		}
		count++
	}
	return count >= 2
}

// Tokenize splits raw input into normalized words using Unicode Text
// Segmentation (UAX #29) word boundaries rather than naive whitespace
// splitting, then drops segments containing no letter and no digit
// (punctuation-only boundaries, stray symbols). This handles apostrophes,
// hyphenated house names and mixed scripts the way a real address corpus
// requires, while remaining "whitespace tokenization" in spirit for the
// phrases this system targets.
func Tokenize(text string) []string {
	seg := wordsSegmenter([]byte(text))
	out := make([]string, 0, len(text)/5+1)
	for seg.Next() {
		tok := string(seg.Bytes())
		if !hasWordContent(tok) {
			continue
		}
		norm := NormalizeWord(tok)
		if norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

func hasWordContent(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
