package embed

import "context"

// Noop returns zero vectors of a fixed size. It is meant for dry runs and
// tests where chunk boundaries matter and vectors do not.
type Noop struct {
	Dimension int
}

func (n *Noop) Name() string { return "noop" }

func (n *Noop) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, n.Dimension)
	}
	return out, nil
}
