package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/bookchunk/internal/book"
	"github.com/dgallion1/bookchunk/internal/chunker"
	"github.com/dgallion1/bookchunk/internal/embed"
	"github.com/dgallion1/bookchunk/internal/metrics"
	"github.com/dgallion1/bookchunk/internal/output"
	"github.com/dgallion1/bookchunk/internal/parser"
	"github.com/dgallion1/bookchunk/internal/pathstore"
	"github.com/dgallion1/bookchunk/internal/store"
	"github.com/dgallion1/bookchunk/internal/toc"
)

// TOCExtractor reads a table of contents out of page text.
type TOCExtractor interface {
	Extract(ctx context.Context, pageText string) (book.TableOfContents, error)
}

// BookStore persists chunked books.
type BookStore interface {
	FindByHash(ctx context.Context, hash string) (store.Book, error)
	SaveBook(ctx context.Context, b store.Book, chunks []book.Chunk) (string, error)
}

// Mirror publishes a stored book to a secondary system.
type Mirror interface {
	MirrorBook(ctx context.Context, m pathstore.Mirror) error
}

// Deps are the collaborators a Worker drives. Only Embedder is required;
// without a Store there is no dedup and nothing is persisted.
type Deps struct {
	Embedder  embed.Embedder
	Extractor TOCExtractor
	Store     BookStore
	Mirror    Mirror
	Metrics   *metrics.Metrics
}

// Settings are the per-service knobs of a Worker.
type Settings struct {
	Chunker   chunker.Config
	SortTOC   bool
	OutputDir string
	Parser    parser.Options
}

// Worker processes a single book job.
type Worker struct {
	deps     Deps
	settings Settings
	log      *slog.Logger
	backoff  func(int) time.Duration
}

func NewWorker(deps Deps, settings Settings, log *slog.Logger) *Worker {
	return &Worker{
		deps:     deps,
		settings: settings,
		log:      log,
		backoff:  Backoff,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	in := job.Input()
	defer job.release()
	log := w.log.With("job_id", job.ID, "filename", in.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFileWith(in.Filename, w.settings.Parser)
	if err != nil {
		w.fail(log, job, "parsing", "unsupported format", err)
		return
	}
	doc, err := p.Parse(bytes.NewReader(in.Data), in.Filename)
	if err != nil {
		w.fail(log, job, "parsing", "parse", err)
		return
	}
	if in.Title != "" {
		doc.Title = in.Title
	}
	job.SetPages(len(doc.Pages))
	if len(doc.Pages) == 0 {
		w.fail(log, job, "parsing", "parse", errors.New("no extractable text"))
		return
	}

	// Phase 1.5: Dedup on the extracted text, so re-exports of the same
	// book with different file bytes still match.
	hash := ContentHashHex([]byte(flattenPages(doc.Pages)))
	job.SetContentHash(hash)
	if !in.Force && w.deps.Store != nil {
		existing, err := w.deps.Store.FindByHash(ctx, hash)
		switch {
		case err == nil:
			log.Info("duplicate book, skipping", "existing_book_id", existing.ID)
			job.SetBookID(existing.ID)
			w.finish(job, StatusDupSkipped, "dedup")
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}

	// Phase 2: Table of contents
	job.SetStatus(StatusResolving, "resolving table of contents")
	contents, err := w.resolveTOC(ctx, log, in, doc)
	if err != nil {
		w.fail(log, job, "resolving_toc", "table of contents", err)
		return
	}
	job.SetChapters(len(contents.Chapters))

	// Phase 3: Chunk and embed
	job.SetStatus(StatusChunking, "chunking")
	strategy, err := chunker.New(w.settings.Chunker, w.deps.Embedder, log)
	if err != nil {
		w.fail(log, job, "chunking", "chunker", err)
		return
	}
	chunks, err := strategy.Chunk(ctx, *doc, contents, firstPage(in))
	if err != nil {
		w.fail(log, job, "chunking", "chunk", err)
		return
	}
	tokens := 0
	for _, c := range chunks {
		tokens += chunker.EstimateTokens(c.Content)
	}
	job.SetChunks(len(chunks), tokens)
	log.Info("chunked book", "strategy", strategy.Name(), "chunks", len(chunks), "estimated_tokens", tokens)

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	cfg := w.settings.Chunker
	cfg.Strategy = strategy.Name()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		w.fail(log, job, "storing", "encode chunker config", err)
		return
	}
	info := bookInfo(in)
	var bookID string
	if w.deps.Store != nil {
		bookID, err = w.deps.Store.SaveBook(ctx, store.Book{
			Source:      in.Filename,
			Title:       doc.Title,
			Resource:    info.Resource.Name,
			Class:       info.Class.Name,
			Subject:     info.Subject.Name,
			ContentHash: hash,
			Strategy:    strategy.Name(),
			Config:      cfgJSON,
			TOC:         contents,
		}, chunks)
		if err != nil {
			w.fail(log, job, "storing", "store", err)
			return
		}
		job.SetBookID(bookID)
		log = log.With("book_id", bookID)
	}

	// Mirror and output failures leave the stored book in place.
	partial := false
	if w.deps.Mirror != nil && bookID != "" {
		err := w.deps.Mirror.MirrorBook(ctx, pathstore.Mirror{
			BookID:  bookID,
			Title:   doc.Title,
			Subject: info.Subject.Name,
			Source:  in.Filename,
			TOC:     contents,
			Chunks:  chunks,
		})
		if err != nil {
			log.Error("mirror failed", "error", err)
			job.AddError(fmt.Sprintf("mirror: %s", err))
			partial = true
		}
	}
	if w.settings.OutputDir != "" {
		path, err := output.WriteFile(w.settings.OutputDir, in.Filename, output.NewPayload(info, contents, cfg, chunks))
		if err != nil {
			log.Error("output failed", "error", err)
			job.AddError(fmt.Sprintf("output: %s", err))
			partial = true
		} else {
			log.Info("wrote output", "path", path)
		}
	}

	if w.deps.Metrics != nil {
		w.deps.Metrics.Chunks.Add(float64(len(chunks)))
	}
	if partial {
		w.finish(job, StatusPartial, "done")
		return
	}
	w.finish(job, StatusCompleted, "done")
}

// resolveTOC picks the table of contents source: an uploaded file, the
// TOC pages of the book itself, or none.
func (w *Worker) resolveTOC(ctx context.Context, log *slog.Logger, in Input, doc *book.Document) (book.TableOfContents, error) {
	var (
		contents book.TableOfContents
		err      error
	)
	info := bookInfo(in)
	pages := in.TOCPages
	if len(pages) == 0 {
		pages = info.Config.TOCPageNumbers
	}

	switch {
	case len(in.TOC) > 0:
		contents, err = toc.Parse(in.TOC, in.TOCFormat)
		if err != nil {
			return book.TableOfContents{}, err
		}
	case len(pages) > 0:
		text := pageText(doc.Pages, pages)
		if strings.TrimSpace(text) == "" {
			log.Warn("table of contents pages are blank", "pages", pages)
			return book.TableOfContents{}, nil
		}
		if w.deps.Extractor == nil || strings.EqualFold(info.Config.TOCParser, "markdown") {
			contents, err = toc.ParseMarkdown([]byte(text))
			if err != nil {
				return book.TableOfContents{}, err
			}
			break
		}
		err = retry(ctx, w.backoff, func(attempt int, err error) {
			log.Warn("retryable table of contents error", "attempt", attempt, "error", err)
		}, func() error {
			var extractErr error
			contents, extractErr = w.deps.Extractor.Extract(ctx, text)
			return extractErr
		})
		if err != nil {
			return book.TableOfContents{}, err
		}
	default:
		return book.TableOfContents{}, nil
	}

	if w.settings.SortTOC {
		contents = toc.Sorted(contents)
	}
	if err := toc.Validate(contents); err != nil {
		return book.TableOfContents{}, err
	}
	log.Info("resolved table of contents", "chapters", len(contents.Chapters))
	return contents, nil
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase, what string, err error) {
	log.Error(what+" failed", "error", err)
	job.AddError(fmt.Sprintf("%s: %s", what, err))
	w.finish(job, StatusFailed, phase)
}

func (w *Worker) finish(job *Job, status JobStatus, phase string) {
	job.SetStatus(status, phase)
	if w.deps.Metrics != nil {
		w.deps.Metrics.Jobs.WithLabelValues(string(status)).Inc()
	}
}

func bookInfo(in Input) book.Info {
	if in.Info == nil {
		return book.Info{}
	}
	return *in.Info
}

func firstPage(in Input) int {
	if in.FirstPage > 0 {
		return in.FirstPage
	}
	if in.Info != nil && in.Info.Config.FirstPageNumber > 0 {
		return in.Info.Config.FirstPageNumber
	}
	return 1
}

// pageText joins the pages whose labels are listed, in label order.
func pageText(pages []book.Page, labels []int) string {
	want := make(map[int]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	var parts []string
	for _, p := range pages {
		if want[p.Label] {
			parts = append(parts, p.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// flattenPages joins page text for hashing.
func flattenPages(pages []book.Page) string {
	var sb strings.Builder
	for _, p := range pages {
		if sb.Len() > 0 {
			sb.WriteString("\f")
		}
		sb.WriteString(p.Content)
	}
	return sb.String()
}
