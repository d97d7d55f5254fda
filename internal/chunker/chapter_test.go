package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dgallion1/bookchunk/internal/book"
)

func twoChapters() book.TableOfContents {
	return book.TableOfContents{Chapters: []book.Chapter{
		{Name: "Map work", Number: 1, StartPage: 1},
		{Name: "Climate", Number: 2, StartPage: 10},
	}}
}

func TestChapterFor_TwoChapters(t *testing.T) {
	toc := twoChapters()
	assert.Equal(t, 1, ChapterFor(5, 1, toc))
	assert.Equal(t, 2, ChapterFor(10, 1, toc))
	assert.Equal(t, 0, ChapterFor(3, 1, book.TableOfContents{}))
}

func TestChapterFor_BeforeFirstChapter(t *testing.T) {
	toc := book.TableOfContents{Chapters: []book.Chapter{{Number: 1, StartPage: 3}}}
	// Book page 3 is physical page 3+9-1 = 11.
	for label := 1; label < 11; label++ {
		assert.Equal(t, 0, ChapterFor(label, 9, toc), "label %d", label)
	}
	assert.Equal(t, 1, ChapterFor(11, 9, toc))
}

func TestChapterFor_Monotonic(t *testing.T) {
	toc := book.TableOfContents{Chapters: []book.Chapter{
		{Number: 1, StartPage: 2}, {Number: 2, StartPage: 2}, {Number: 4, StartPage: 7}, {Number: 5, StartPage: 30},
	}}
	prev := 0
	for label := 1; label <= 40; label++ {
		got := ChapterFor(label, 3, toc)
		assert.GreaterOrEqual(t, got, prev, "label %d", label)
		prev = got
	}
	assert.Equal(t, 5, prev)
}

func TestPageNumber(t *testing.T) {
	assert.Equal(t, 1, PageNumber(9, 9))
	assert.Equal(t, 5, PageNumber(5, 1))
}
