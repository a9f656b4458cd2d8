package phrasex

import (
	"github.com/clipperhouse/uax29/v2/words"
)

// wordSegments adapts the uax29 word segmenter to the single method
// Tokenize needs, so an upstream API shape change only touches this file.
type wordSegments struct {
	seg *words.Segmenter
}

func wordsSegmenter(data []byte) *wordSegments {
	s := words.NewSegmenter(data)
	return &wordSegments{seg: s}
}

func (w *wordSegments) Next() bool { return w.seg.Next() }

func (w *wordSegments) Bytes() []byte { return w.seg.Value() }
