package chunker

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/dgallion1/bookchunk/internal/book"
)

// Embedder turns texts into vectors, one per input and in input order.
// A nil or empty vector marks a single text that could not be embedded;
// an error fails the whole batch.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// Tagged is a merged fragment with its book page and chapter resolved.
type Tagged struct {
	Content       string
	PageNumber    int
	ChapterNumber int
}

// AssembleOptions identify the run for error reporting and carry the
// length and batch limits.
type AssembleOptions struct {
	Source string
	Config Config
}

// Assemble drops fragments shorter than MinLength, embeds the rest in
// sequential batches and returns one chunk per successfully embedded
// fragment. Nothing is returned alongside an error.
func Assemble(ctx context.Context, embedder Embedder, tagged []Tagged, opts AssembleOptions) ([]book.Chunk, error) {
	cfg := opts.Config.withDefaults()

	kept := make([]Tagged, 0, len(tagged))
	for _, t := range tagged {
		if utf8.RuneCountInString(t.Content) < cfg.MinLength {
			continue
		}
		kept = append(kept, t)
	}

	chunks := make([]book.Chunk, 0, len(kept))
	for start := 0; start < len(kept); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(kept))
		batch := kept[start:end]

		if err := ctx.Err(); err != nil {
			return nil, &EmbeddingBatchError{Source: opts.Source, Start: start, End: end, Err: err}
		}

		texts := make([]string, len(batch))
		for i, t := range batch {
			texts[i] = t.Content
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, &EmbeddingBatchError{Source: opts.Source, Start: start, End: end, Err: err}
		}
		if len(vectors) != len(texts) {
			return nil, &EmbeddingBatchError{
				Source: opts.Source, Start: start, End: end,
				Err: fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts)),
			}
		}

		for i, vec := range vectors {
			if len(vec) == 0 {
				continue
			}
			chunks = append(chunks, book.Chunk{
				Content:       batch[i].Content,
				Embedding:     vec,
				PageNumber:    batch[i].PageNumber,
				ChapterNumber: batch[i].ChapterNumber,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, &EmptyResultError{Source: opts.Source, Strategy: cfg.Strategy, Config: cfg}
	}
	return chunks, nil
}
