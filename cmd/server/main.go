package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/bookchunk/internal/api"
	"github.com/dgallion1/bookchunk/internal/config"
	"github.com/dgallion1/bookchunk/internal/embed"
	"github.com/dgallion1/bookchunk/internal/metrics"
	"github.com/dgallion1/bookchunk/internal/parser"
	"github.com/dgallion1/bookchunk/internal/pathstore"
	"github.com/dgallion1/bookchunk/internal/pipeline"
	"github.com/dgallion1/bookchunk/internal/store"
	"github.com/dgallion1/bookchunk/internal/toc"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open store", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	base, err := embed.New(cfg.EmbedConfig())
	if err != nil {
		log.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	m := metrics.New()
	stats := embed.NewLatencyStats(time.Hour)
	embedder := embed.Timed(m.Instrument(base), stats)

	deps := pipeline.Deps{Embedder: embedder, Store: st, Metrics: m}
	var extractor *toc.Extractor
	if cfg.AnthropicAPIKey != "" {
		extractor = toc.NewExtractor(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		deps.Extractor = extractor
	} else {
		log.Warn("ANTHROPIC_API_KEY not set, table of contents pages use the heuristic parser")
	}
	var ps *pathstore.Client
	if cfg.PathstoreURL != "" {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		deps.Mirror = ps
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(
		pipeline.Options{Workers: cfg.WorkerCount, QueueSize: cfg.MaxQueueSize, JobTTL: cfg.JobTTL},
		deps,
		pipeline.Settings{
			Chunker:   cfg.ChunkerConfig(),
			SortTOC:   cfg.SortTOC,
			OutputDir: cfg.OutputDir,
			Parser:    parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		},
		log,
	)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(api.Deps{
		Orchestrator: orch,
		Store:        st,
		Mirror:       ps,
		Embedder:     embedder,
		Stats:        stats,
		Metrics:      m,
	}, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if extractor != nil {
			extractor.Close()
		}
		if ps != nil {
			ps.Close()
		}
		st.Close()
	}()

	log.Info("starting bookchunk",
		"port", cfg.Port,
		"embed", base.Name(),
		"chunker", cfg.ChunkerConfig().String(),
		"workers", cfg.WorkerCount,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
