package parser

import (
	"fmt"
	"strings"
	"testing"
)

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

func TestMarkdownParser_PagesKeepSource(t *testing.T) {
	input := "# Geography Form Two\n\nFOR ONLINE USE ONLY\f## Chapter One\n\nThe equation $x^2$ and ![map](img/map.png).\f"
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "geo.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "Geography Form Two" {
		t.Errorf("expected title from first h1, got %q", doc.Title)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}

	page2 := doc.Pages[1]
	if page2.Label != 2 {
		t.Errorf("expected label 2, got %d", page2.Label)
	}
	if !strings.Contains(page2.Content, "$x^2$") || !strings.Contains(page2.Content, "![map](img/map.png)") {
		t.Errorf("markdown source should be preserved, got %q", page2.Content)
	}
	if page2.Metadata["heading"] != "Chapter One" {
		t.Errorf("expected heading metadata %q, got %v", "Chapter One", page2.Metadata["heading"])
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := "Just some plain text.\n\nAnother paragraph here."

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Metadata != nil {
		t.Errorf("expected no metadata without headings, got %v", doc.Pages[0].Metadata)
	}
	if doc.Title != "plain" {
		t.Errorf("expected title %q, got %q", "plain", doc.Title)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("expected 0 pages for empty input, got %d", len(doc.Pages))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"dir/plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		doc, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if doc.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, doc.Title)
		}
	}
}
