package toc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/bookchunk/internal/book"
)

// Parse decodes a table of contents in the given format: "json", "yaml"
// or "markdown". An empty format is treated as JSON.
func Parse(data []byte, format string) (book.TableOfContents, error) {
	var toc book.TableOfContents
	switch strings.ToLower(format) {
	case "", "json":
		if err := json.Unmarshal(data, &toc); err != nil {
			return book.TableOfContents{}, fmt.Errorf("decode toc json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &toc); err != nil {
			return book.TableOfContents{}, fmt.Errorf("decode toc yaml: %w", err)
		}
	case "md", "markdown":
		return ParseMarkdown(data)
	default:
		return book.TableOfContents{}, fmt.Errorf("unsupported toc format %q", format)
	}
	return toc, nil
}

// LoadFile reads a table of contents, picking the format by extension.
func LoadFile(path string) (book.TableOfContents, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return book.TableOfContents{}, fmt.Errorf("read toc: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	toc, err := Parse(data, format)
	if err != nil {
		return book.TableOfContents{}, fmt.Errorf("%s: %w", path, err)
	}
	return toc, nil
}
