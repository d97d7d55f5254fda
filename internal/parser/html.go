package parser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"

	"github.com/dgallion1/bookchunk/internal/book"
)

// HTMLParser handles HTML exports. Each element carrying a data-page
// attribute or the "page" class is one page; without such elements the
// whole body is page 1. Pages are converted to Markdown so images become
// ![alt](src) references the chunker knows how to strip.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*book.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &book.Document{Source: filename, Title: baseTitle(filename)}
	if title := findTitle(root); title != "" {
		doc.Title = title
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	var nodes []*html.Node
	collectPages(root, &nodes)
	if len(nodes) == 0 {
		body := findBody(root)
		if body == nil {
			body = root
		}
		nodes = []*html.Node{body}
	}

	next := 1
	for _, n := range nodes {
		label := next
		if v, ok := attr(n, "data-page"); ok {
			if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
				label = parsed
			}
		}
		next = label + 1

		var buf bytes.Buffer
		if err := html.Render(&buf, n); err != nil {
			return nil, fmt.Errorf("render page %d: %w", label, err)
		}
		md, err := conv.ConvertString(buf.String())
		if err != nil {
			return nil, fmt.Errorf("convert page %d: %w", label, err)
		}
		md = normalizeText(md)
		if strings.TrimSpace(md) == "" {
			continue
		}
		doc.Pages = append(doc.Pages, book.Page{Content: md, Label: label})
	}
	return doc, nil
}

// collectPages finds page elements in document order without descending
// into a page once found.
func collectPages(n *html.Node, out *[]*html.Node) {
	if n.Type == html.ElementNode && isPage(n) {
		*out = append(*out, n)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectPages(c, out)
	}
}

func isPage(n *html.Node) bool {
	if _, ok := attr(n, "data-page"); ok {
		return true
	}
	class, _ := attr(n, "class")
	for _, c := range strings.Fields(class) {
		if c == "page" {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
