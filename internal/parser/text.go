package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/bookchunk/internal/book"
)

// TextParser handles plain text files. Pages are separated by form feeds,
// the layout pdftotext and most OCR exports produce.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*book.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}

	return &book.Document{
		Source: filename,
		Title:  baseTitle(filename),
		Pages:  pagesFromTexts(splitFormFeed(string(data))),
	}, nil
}
