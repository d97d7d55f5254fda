package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/bookchunk/internal/book"
)

// Strategy turns an extracted book into embedded, chapter-tagged chunks.
// firstPage is the physical page on which book page 1 is printed; values
// below 1 are treated as 1.
type Strategy interface {
	Name() string
	Chunk(ctx context.Context, doc book.Document, toc book.TableOfContents, firstPage int) ([]book.Chunk, error)
}

// New returns the strategy selected by cfg.Strategy.
func New(cfg Config, embedder Embedder, log *slog.Logger) (Strategy, error) {
	if embedder == nil {
		return nil, fmt.Errorf("chunker: embedder is required")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, Separators(cfg.Noise))
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	base := pipeline{cfg: cfg, splitter: splitter, embedder: embedder, log: log}

	switch strings.ToLower(cfg.Strategy) {
	case StrategyMathematical:
		base.cfg.Strategy = StrategyMathematical
		return &Mathematical{base}, nil
	case StrategyRecursive, "langchain":
		base.cfg.Strategy = StrategyRecursive
		return &Recursive{base}, nil
	case "unstructured", "llm":
		return nil, fmt.Errorf("%w: %q", ErrDeprecatedStrategy, cfg.Strategy)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
}

// Mathematical strips noise, protects math spans from being split and
// re-merges fragments cut inside a span.
type Mathematical struct {
	pipeline
}

func (m *Mathematical) Name() string { return StrategyMathematical }

func (m *Mathematical) Chunk(ctx context.Context, doc book.Document, toc book.TableOfContents, firstPage int) ([]book.Chunk, error) {
	return m.run(ctx, doc, toc, firstPage, true)
}

// Recursive strips noise and splits without math protection.
type Recursive struct {
	pipeline
}

func (r *Recursive) Name() string { return StrategyRecursive }

func (r *Recursive) Chunk(ctx context.Context, doc book.Document, toc book.TableOfContents, firstPage int) ([]book.Chunk, error) {
	return r.run(ctx, doc, toc, firstPage, false)
}

type pipeline struct {
	cfg      Config
	splitter *Splitter
	embedder Embedder
	log      *slog.Logger
}

// Config returns the effective configuration after defaults.
func (p *pipeline) Config() Config { return p.cfg }

func (p *pipeline) run(ctx context.Context, doc book.Document, toc book.TableOfContents, firstPage int, protectMath bool) ([]book.Chunk, error) {
	if firstPage < 1 {
		firstPage = 1
	}
	log := p.log.With("source", doc.Source, "strategy", p.cfg.Strategy)

	pages := make([]book.Page, 0, len(doc.Pages))
	for _, pg := range doc.Pages {
		text := StripNoise(pg.Content, p.cfg.Noise)
		if protectMath {
			text = WrapMath(text)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, book.Page{Content: text, Label: pg.Label, Metadata: pg.Metadata})
	}

	frags, err := p.splitter.Split(pages)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", doc.Source, err)
	}
	split := len(frags)
	if protectMath {
		frags = MergeBalanced(frags)
	}

	start := 0
	if p.cfg.SkipFrontMatter {
		start = frontMatterEnd(firstPage, toc)
	}
	tagged := make([]Tagged, 0, len(frags))
	for _, f := range frags {
		if f.PageLabel < start {
			continue
		}
		tagged = append(tagged, Tagged{
			Content:       f.Content,
			PageNumber:    PageNumber(f.PageLabel, firstPage),
			ChapterNumber: ChapterFor(f.PageLabel, firstPage, toc),
		})
	}
	log.Debug("fragments prepared",
		"pages", len(pages),
		"split", split,
		"merged", len(frags),
		"tagged", len(tagged),
	)

	chunks, err := Assemble(ctx, p.embedder, tagged, AssembleOptions{Source: doc.Source, Config: p.cfg})
	if err != nil {
		return nil, err
	}
	log.Info("book chunked", "chunks", len(chunks), "chapters", len(toc.Chapters))
	return chunks, nil
}
