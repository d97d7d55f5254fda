package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/bookchunk/internal/book"
)

// MarkdownParser handles Markdown exports of scanned books, one form-feed
// separated page per physical page. Page content is kept as Markdown source
// so math and image syntax survive for the chunker; goldmark is only used
// to find headings.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*book.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	doc := &book.Document{
		Source: filename,
		Title:  baseTitle(filename),
		Pages:  pagesFromTexts(splitFormFeed(string(src))),
	}

	// The first level-1 heading names the book; every page remembers its
	// first heading.
	md := goldmark.New()
	titled := false
	for i := range doc.Pages {
		headings := headingsOf(md, []byte(doc.Pages[i].Content))
		if len(headings) == 0 {
			continue
		}
		doc.Pages[i].Metadata = map[string]any{"heading": headings[0].text}
		for _, h := range headings {
			if !titled && h.level == 1 {
				doc.Title = h.text
				titled = true
			}
		}
	}
	return doc, nil
}

type heading struct {
	level int
	text  string
}

// headingsOf returns the top-level headings of a Markdown page in order.
func headingsOf(md goldmark.Markdown, src []byte) []heading {
	root := md.Parser().Parse(text.NewReader(src))
	var out []heading
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		if t := inlineText(h, src); t != "" {
			out = append(out, heading{level: h.Level, text: t})
		}
	}
	return out
}

// inlineText gets the text content of a goldmark inline subtree.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
			continue
		}
		buf.WriteString(inlineText(c, src))
	}
	return strings.TrimSpace(buf.String())
}
