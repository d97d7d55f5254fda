package toc

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/bookchunk/internal/book"
)

// tocLine matches "Chapter One: Map work ....... 12", "3. Climate 45" and
// "Map work | 12" style lines. Groups: number, name, page.
var tocLine = regexp.MustCompile(
	`^(?i:(?:chapter|unit)\s+)?([0-9]+|[A-Za-z]+)?\b\s*[.:)\-–]?\s*(.+?)[\s.·…_|-]*?\s+([0-9]{1,4})$`,
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20,
}

// ParseMarkdown extracts chapters from the text of a table of contents page
// (plain text, Markdown lists or Markdown tables). Lines that do not end in
// a page number are ignored; chapters without a number are numbered after
// the previous one. Non-chapter entries are dropped.
func ParseMarkdown(src []byte) (book.TableOfContents, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(text.NewReader(src))

	var lines []string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.List:
			if !n.IsOrdered() {
				return ast.WalkContinue, nil
			}
			// Goldmark consumes the "3." marker; put it back so the
			// chapter number survives.
			i := 0
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				itemLines := strings.Split(nodeText(item, src), "\n")
				itemLines[0] = strconv.Itoa(n.Start+i) + ". " + itemLines[0]
				lines = append(lines, itemLines...)
				i++
			}
			return ast.WalkSkipChildren, nil
		case *extast.TableRow, *extast.TableHeader:
			var cells []string
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				cells = append(cells, nodeText(c, src))
			}
			lines = append(lines, strings.Join(cells, " "))
			return ast.WalkSkipChildren, nil
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			lines = append(lines, strings.Split(nodeText(n, src), "\n")...)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	var chapters []book.Chapter
	next := 1
	for _, line := range lines {
		ch, ok := parseLine(strings.TrimSpace(line), next)
		if !ok || nonChapterPattern.MatchString(ch.Name) {
			continue
		}
		chapters = append(chapters, ch)
		next = ch.Number + 1
	}
	return book.TableOfContents{Chapters: chapters}, nil
}

func parseLine(line string, next int) (book.Chapter, bool) {
	m := tocLine.FindStringSubmatch(line)
	if m == nil {
		return book.Chapter{}, false
	}
	page, err := strconv.Atoi(m[3])
	if err != nil {
		return book.Chapter{}, false
	}

	name := strings.TrimSpace(strings.TrimRight(m[2], " .·…_|-"))
	number := next
	if token := m[1]; token != "" {
		if n, err := strconv.Atoi(token); err == nil {
			number = n
		} else if n, ok := numberWords[strings.ToLower(token)]; ok {
			number = n
		} else {
			// Not a number word: the token is the first word of the name.
			name = strings.TrimSpace(token + " " + name)
		}
	}
	if name == "" {
		return book.Chapter{}, false
	}
	return book.Chapter{Name: name, Number: number, StartPage: page}, true
}

// nodeText concatenates the text segments under n, one line per soft or
// hard line break.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
