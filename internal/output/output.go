// Package output writes the chunked-book JSON document consumed by the
// downstream indexers.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/bookchunk/internal/book"
	"github.com/dgallion1/bookchunk/internal/chunker"
)

// Payload is the on-disk shape of one chunked book.
type Payload struct {
	Resource      book.Resource        `json:"resource"`
	Class         book.Class           `json:"class"`
	Subject       book.Subject         `json:"subject"`
	TOC           book.TableOfContents `json:"table_of_contents"`
	ChunkerConfig chunker.Config       `json:"chunker_config"`
	Chunks        []book.Chunk         `json:"chunks"`
}

// NewPayload assembles a payload from the book info and a chunking run.
func NewPayload(info book.Info, toc book.TableOfContents, cfg chunker.Config, chunks []book.Chunk) Payload {
	if toc.Chapters == nil {
		toc.Chapters = []book.Chapter{}
	}
	if chunks == nil {
		chunks = []book.Chunk{}
	}
	return Payload{
		Resource:      info.Resource,
		Class:         info.Class,
		Subject:       info.Subject,
		TOC:           toc,
		ChunkerConfig: cfg,
		Chunks:        chunks,
	}
}

// Write encodes p as indented JSON.
func Write(w io.Writer, p Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// FileName maps a source file to its output name: "geo.pdf" -> "geo.json".
func FileName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}

// WriteFile writes p to dir/FileName(source), replacing any previous file
// atomically, and returns the path written.
func WriteFile(dir, source string, p Payload) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".bookchunk-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, p); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp output: %w", err)
	}
	path := filepath.Join(dir, FileName(source))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename output: %w", err)
	}
	return path, nil
}
