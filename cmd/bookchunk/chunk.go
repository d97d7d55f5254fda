package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/bookchunk/internal/book"
	"github.com/dgallion1/bookchunk/internal/config"
	"github.com/dgallion1/bookchunk/internal/embed"
	"github.com/dgallion1/bookchunk/internal/parser"
	"github.com/dgallion1/bookchunk/internal/pipeline"
	"github.com/dgallion1/bookchunk/internal/store"
	"github.com/dgallion1/bookchunk/internal/toc"
)

type chunkOptions struct {
	tocFile         string
	infoFile        string
	tocPages        string
	firstPage       int
	strategy        string
	size            int
	overlap         int
	minLength       int
	batchSize       int
	outDir          string
	db              string
	jobs            int
	skipFrontMatter bool
	sortTOC         bool
	force           bool
}

func newChunkCommand() *cobra.Command {
	var opts chunkOptions
	cmd := &cobra.Command{
		Use:   "chunk <file>...",
		Short: "Chunk and embed one or more books",
		Long: `Chunk and embed books, writing one JSON document per book.

An info.yaml next to a book is picked up automatically; --info overrides it.
Embedding and extraction settings come from the same environment variables
as the server.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd.Context(), cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.tocFile, "toc", "", "Table of contents file (.json, .yaml or .md)")
	f.StringVar(&opts.infoFile, "info", "", "Book info.yaml")
	f.StringVar(&opts.tocPages, "toc-pages", "", "Physical pages holding the table of contents, e.g. 3,4")
	f.IntVar(&opts.firstPage, "first-page", 0, "Physical page on which book page 1 is printed")
	f.StringVar(&opts.strategy, "strategy", "", "Chunking strategy (mathematical, recursive)")
	f.IntVar(&opts.size, "size", 0, "Chunk size in characters")
	f.IntVar(&opts.overlap, "overlap", -1, "Chunk overlap in characters")
	f.IntVar(&opts.minLength, "min-length", 0, "Minimum chunk length")
	f.IntVar(&opts.batchSize, "batch-size", 0, "Texts per embedding call")
	f.StringVarP(&opts.outDir, "out-dir", "o", "", "Output directory (default OUTPUT_DIR or .)")
	f.StringVar(&opts.db, "db", "", "Also store chunks in this SQLite database")
	f.IntVarP(&opts.jobs, "jobs", "j", 2, "Books processed in parallel")
	f.BoolVar(&opts.skipFrontMatter, "skip-front-matter", false, "Drop chunks before the first chapter")
	f.BoolVar(&opts.sortTOC, "sort-toc", false, "Sort the table of contents by start page")
	f.BoolVar(&opts.force, "force", false, "Re-chunk books already in --db")
	return cmd
}

func runChunk(ctx context.Context, cmd *cobra.Command, files []string, opts chunkOptions) error {
	log := cliLogger(cmd)
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	chunkCfg := cfg.ChunkerConfig()
	if opts.strategy != "" {
		chunkCfg.Strategy = opts.strategy
	}
	if opts.size > 0 {
		chunkCfg = chunkCfg.WithChunkSize(opts.size)
	}
	if opts.overlap >= 0 {
		chunkCfg.ChunkOverlap = opts.overlap
	}
	if opts.minLength > 0 {
		chunkCfg.MinLength = opts.minLength
	}
	if opts.batchSize > 0 {
		chunkCfg.BatchSize = opts.batchSize
	}
	if opts.skipFrontMatter {
		chunkCfg.SkipFrontMatter = true
	}
	outDir := opts.outDir
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	if outDir == "" {
		outDir = "."
	}

	embedder, err := embed.New(cfg.EmbedConfig())
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	deps := pipeline.Deps{Embedder: embedder}
	if cfg.AnthropicAPIKey != "" {
		ex := toc.NewExtractor(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		defer ex.Close()
		deps.Extractor = ex
	}
	if opts.db != "" {
		st, err := store.Open(ctx, opts.db)
		if err != nil {
			return err
		}
		defer st.Close()
		deps.Store = st
	}

	var tocData []byte
	if opts.tocFile != "" {
		if tocData, err = os.ReadFile(opts.tocFile); err != nil {
			return fmt.Errorf("read toc: %w", err)
		}
	}
	tocPages, err := book.ParsePageList(opts.tocPages)
	if err != nil {
		return fmt.Errorf("--toc-pages: %w", err)
	}

	w := pipeline.NewWorker(deps, pipeline.Settings{
		Chunker:   chunkCfg,
		SortTOC:   opts.sortTOC || cfg.SortTOC,
		OutputDir: outDir,
		Parser:    parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
	}, log)

	jobs := make([]*pipeline.Job, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.jobs, 1))
	for i, file := range files {
		g.Go(func() error {
			in, err := bookInput(file, opts)
			if err != nil {
				return err
			}
			in.TOC = tocData
			in.TOCFormat = tocFormat(opts.tocFile)
			in.TOCPages = tocPages
			job, err := pipeline.NewJob(in)
			if err != nil {
				return err
			}
			jobs[i] = job
			w.Process(gctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return report(cmd.OutOrStdout(), jobs)
}

// bookInput reads a book and its info.yaml.
func bookInput(file string, opts chunkOptions) (pipeline.Input, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("read %s: %w", file, err)
	}
	in := pipeline.Input{
		Filename:  file,
		Data:      data,
		FirstPage: opts.firstPage,
		Force:     opts.force,
	}

	infoPath := opts.infoFile
	if infoPath == "" {
		candidate := filepath.Join(filepath.Dir(file), "info.yaml")
		if _, err := os.Stat(candidate); err == nil {
			infoPath = candidate
		}
	}
	if infoPath != "" {
		info, err := book.LoadInfo(infoPath)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("%s: %w", infoPath, err)
		}
		in.Info = &info
	}
	return in, nil
}

func tocFormat(path string) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return ext[1:]
}

var errSomeFailed = errors.New("some books failed")

func report(out io.Writer, jobs []*pipeline.Job) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tPAGES\tCHAPTERS\tCHUNKS\tTOKENS\tERROR")
	failed := false
	for _, job := range jobs {
		snap := job.Snapshot()
		msg := ""
		if len(snap.Progress.Errors) > 0 {
			msg = snap.Progress.Errors[len(snap.Progress.Errors)-1]
		}
		if snap.Status == pipeline.StatusFailed || snap.Status == pipeline.StatusPartial {
			failed = true
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			snap.Filename, snap.Status, snap.Progress.Pages, snap.Progress.Chapters,
			snap.Progress.TotalChunks, snap.Progress.EstimatedTokens, msg)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed {
		return errSomeFailed
	}
	return nil
}

func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
