package chunker

import "github.com/dgallion1/bookchunk/internal/book"

// ChapterFor returns the number of the chapter active at pageLabel, or 0 when
// the page precedes the first chapter or toc is empty. Chapter start pages
// are book page numbers; firstPage is the physical page on which book page 1
// is printed. Chapters must be in ascending start page order.
func ChapterFor(pageLabel, firstPage int, toc book.TableOfContents) int {
	chapter := 0
	for _, ch := range toc.Chapters {
		if pageLabel < ch.StartPage+firstPage-1 {
			break
		}
		chapter = ch.Number
	}
	return chapter
}

// PageNumber converts a physical page label to a book page number.
func PageNumber(pageLabel, firstPage int) int {
	return pageLabel - firstPage + 1
}

// frontMatterEnd is the first physical page of chapter content, or 0 when
// the table of contents is empty.
func frontMatterEnd(firstPage int, toc book.TableOfContents) int {
	if toc.Empty() {
		return 0
	}
	return toc.Chapters[0].StartPage + firstPage - 1
}
