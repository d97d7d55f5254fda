package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/dgallion1/bookchunk/internal/book"
)

// Private-use runes standing in for math markers while splitting. A single
// rune cannot be cut by a character-level split.
const (
	openSentinel  = '\uE000'
	closeSentinel = '\uE001'
)

var (
	protectMarkers = strings.NewReplacer(MathOpen, string(openSentinel), MathClose, string(closeSentinel))
	restoreMarkers = strings.NewReplacer(string(openSentinel), MathOpen, string(closeSentinel), MathClose)
	dropSentinels  = strings.NewReplacer(string(openSentinel), "", string(closeSentinel), "")
)

// Splitter cuts page text into fragments of at most ChunkSize runes,
// preferring the earliest separator that keeps pieces within bounds.
type Splitter struct {
	size    int
	overlap int
	rc      textsplitter.RecursiveCharacter
}

// NewSplitter validates the size bounds and builds a recursive splitter.
func NewSplitter(size, overlap int, separators []string) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	if len(separators) == 0 {
		separators = structuralSeparators
	}
	seps := make([]string, len(separators))
	for i, sep := range separators {
		seps[i] = protectMarkers.Replace(sep)
	}

	return &Splitter{
		size:    size,
		overlap: overlap,
		rc: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators(seps),
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithLenFunc(markerLen),
		),
	}, nil
}

// markerLen measures text in runes, counting each sentinel as the full
// marker it replaces.
func markerLen(s string) int {
	n := utf8.RuneCountInString(s)
	n += strings.Count(s, string(openSentinel)) * (utf8.RuneCountInString(MathOpen) - 1)
	n += strings.Count(s, string(closeSentinel)) * (utf8.RuneCountInString(MathClose) - 1)
	return n
}

// Split splits each page independently. Every fragment keeps its page's
// label and a copy of its metadata. Blank pages produce nothing.
func (s *Splitter) Split(pages []book.Page) ([]book.Fragment, error) {
	var frags []book.Fragment
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		text := protectMarkers.Replace(dropSentinels.Replace(p.Content))
		pieces, err := s.rc.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", p.Label, err)
		}
		for _, piece := range pieces {
			if piece == "" {
				continue
			}
			frags = append(frags, book.Fragment{
				Content:   restoreMarkers.Replace(piece),
				PageLabel: p.Label,
				Metadata:  book.CloneMetadata(p.Metadata),
			})
		}
	}
	return frags, nil
}
