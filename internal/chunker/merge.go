package chunker

import (
	"strings"

	"github.com/dgallion1/bookchunk/internal/book"
)

// MergeBalanced re-joins adjacent fragments so that no fragment boundary
// falls inside a math span. The merged fragment takes the page label and
// metadata of its first piece. A trailing unbalanced buffer is flushed as is.
func MergeBalanced(frags []book.Fragment) []book.Fragment {
	if len(frags) == 0 {
		return nil
	}

	out := make([]book.Fragment, 0, len(frags))
	var (
		buf     []book.Fragment
		balance int
	)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		var b strings.Builder
		for _, f := range buf {
			b.WriteString(f.Content)
		}
		out = append(out, book.Fragment{
			Content:   b.String(),
			PageLabel: buf[0].PageLabel,
			Metadata:  buf[0].Metadata,
		})
		buf = buf[:0]
	}

	for _, f := range frags {
		buf = append(buf, f)
		balance += MathBalance(f.Content)
		if balance == 0 {
			flush()
		}
	}
	flush()
	return out
}
