package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/bookchunk/internal/book"
)

// PDFParser handles PDF files page by page. It tries the Go library first,
// then falls back to pdftotext if enabled. Page labels are physical page
// numbers; pages without text are skipped but keep their numbering.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*book.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "bookchunk-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	texts, err := extractPDFPages(tmpPath)
	if (err != nil || blank(texts)) && p.FallbackPdftotext {
		texts, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	return &book.Document{
		Source: filename,
		Title:  baseTitle(filename),
		Pages:  pagesFromTexts(texts),
	}, nil
}

func extractPDFPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	texts := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i-1] = text
	}
	return texts, nil
}

func extractPdftotext(path string) ([]string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitFormFeed(string(out)), nil
}

func blank(texts []string) bool {
	for _, t := range texts {
		if len(t) > 0 {
			return false
		}
	}
	return true
}
