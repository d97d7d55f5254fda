package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/bookchunk/internal/book"
)

// Parser extracts the page text of a book.
type Parser interface {
	Parse(r io.Reader, filename string) (*book.Document, error)
}

// Options tune parser selection.
type Options struct {
	// FallbackPdftotext shells out to pdftotext when the PDF library fails.
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	return ForFileWith(filename, Options{})
}

// ForFileWith is ForFile with explicit options.
func ForFileWith(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// baseTitle strips directory and extension from a filename.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// normalizeText NFC-normalizes text and unifies line endings.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(s)
}

// pagesFromTexts numbers texts from 1. Blank pages keep their number but
// are not emitted.
func pagesFromTexts(texts []string) []book.Page {
	pages := make([]book.Page, 0, len(texts))
	for i, t := range texts {
		t = normalizeText(t)
		if strings.TrimSpace(t) == "" {
			continue
		}
		pages = append(pages, book.Page{Content: t, Label: i + 1})
	}
	return pages
}

// splitFormFeed splits text into physical pages on form feed characters.
func splitFormFeed(text string) []string {
	return strings.Split(text, "\f")
}
