package toc

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/bookchunk/internal/book"
)

// ErrMalformed marks a table of contents that cannot be used for chapter
// attribution as given.
var ErrMalformed = errors.New("malformed table of contents")

// Validate checks that start pages never decrease and that numbers and
// pages are non-negative. An empty table is valid.
func Validate(toc book.TableOfContents) error {
	prev := 0
	for i, ch := range toc.Chapters {
		if ch.Number < 0 {
			return fmt.Errorf("%w: chapter %d has negative number %d", ErrMalformed, i, ch.Number)
		}
		if ch.StartPage < 0 {
			return fmt.Errorf("%w: chapter %d has negative start page %d", ErrMalformed, i, ch.StartPage)
		}
		if ch.StartPage < prev {
			return fmt.Errorf("%w: chapter %d (%q) starts on page %d, before page %d",
				ErrMalformed, i, ch.Name, ch.StartPage, prev)
		}
		prev = ch.StartPage
	}
	return nil
}

// Sorted returns a copy of toc ordered by start page. Chapters sharing a
// start page keep their relative order.
func Sorted(toc book.TableOfContents) book.TableOfContents {
	chapters := make([]book.Chapter, len(toc.Chapters))
	copy(chapters, toc.Chapters)
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].StartPage < chapters[j].StartPage
	})
	return book.TableOfContents{Chapters: chapters}
}

var nonChapterPattern = regexp.MustCompile(
	`(?i)^\s*(glossary|appendix|appendices|references|bibliography|index|` +
		`acknowledge?ments?|preface|foreword|answers(\s+to\s+exercises)?|` +
		`further\s+reading|list\s+of\s+(figures|tables))\b`,
)

// DropNonChapters removes back-matter and front-matter entries such as the
// glossary, appendix or references.
func DropNonChapters(toc book.TableOfContents) book.TableOfContents {
	out := make([]book.Chapter, 0, len(toc.Chapters))
	for _, ch := range toc.Chapters {
		ch.Name = strings.TrimSpace(ch.Name)
		if nonChapterPattern.MatchString(ch.Name) {
			continue
		}
		out = append(out, ch)
	}
	return book.TableOfContents{Chapters: out}
}
