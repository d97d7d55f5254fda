package chunker

import (
	"regexp"
	"strings"
)

// Markers wrapped around every detected math span.
const (
	MathOpen  = "<math>"
	MathClose = "</math>"
)

var mathEnvironments = []string{
	"align", "align*",
	"equation", "equation*",
	"gather", "gather*",
	"multline", "multline*",
}

// mathPattern is tried leftmost-first: named environments, $$…$$, \[…\],
// \(…\), then $…$. RE2 has no back-references, so each environment name
// gets its own begin/end alternative.
var mathPattern = regexp.MustCompile(buildMathPattern())

func buildMathPattern() string {
	alts := make([]string, 0, len(mathEnvironments)+4)
	for _, env := range mathEnvironments {
		name := regexp.QuoteMeta(env)
		alts = append(alts, `\\begin\{`+name+`\}.*?\\end\{`+name+`\}`)
	}
	alts = append(alts,
		`\$\$.*?\$\$`,
		`\\\[.*?\\\]`,
		`\\\(.*?\\\)`,
		`\$(?:\\.|[^$\\])+\$`,
	)
	return `(?s)` + strings.Join(alts, "|")
}

// WrapMath encloses every math expression in MathOpen/MathClose. Spans that
// are already enclosed, or that already contain a marker, are left alone,
// so WrapMath(WrapMath(s)) == WrapMath(s).
func WrapMath(text string) string {
	matches := mathPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(matches)*(len(MathOpen)+len(MathClose)))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		expr := text[start:end]
		b.WriteString(text[last:start])
		if isWrapped(text, start, end) || strings.Contains(expr, MathOpen) || strings.Contains(expr, MathClose) {
			b.WriteString(expr)
		} else {
			b.WriteString(MathOpen)
			b.WriteString(expr)
			b.WriteString(MathClose)
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func isWrapped(text string, start, end int) bool {
	return strings.HasSuffix(text[:start], MathOpen) && strings.HasPrefix(text[end:], MathClose)
}

// MathBalance returns the number of open markers minus close markers in text.
func MathBalance(text string) int {
	return strings.Count(text, MathOpen) - strings.Count(text, MathClose)
}
