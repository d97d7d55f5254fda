package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/bookchunk/internal/book"
	"github.com/dgallion1/bookchunk/internal/chunker"
	"github.com/dgallion1/bookchunk/internal/toc"
)

// chunkRequest is the body of POST /api/chunk. Zero-valued overrides keep
// the service configuration.
type chunkRequest struct {
	Source          string               `json:"source"`
	Pages           []book.Page          `json:"pages"`
	TableOfContents book.TableOfContents `json:"table_of_contents"`
	FirstPage       int                  `json:"first_page"`

	Strategy        string `json:"strategy"`
	ChunkSize       int    `json:"chunk_size"`
	ChunkOverlap    *int   `json:"chunk_overlap"`
	MinLength       int    `json:"min_length"`
	SkipFrontMatter *bool  `json:"skip_front_matter"`
}

type chunkResponse struct {
	Source        string         `json:"source"`
	ChunkerConfig chunker.Config `json:"chunker_config"`
	Chunks        []book.Chunk   `json:"chunks"`
}

// handleChunk chunks already extracted pages synchronously.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Pages) == 0 {
		jsonError(w, "pages are required", http.StatusBadRequest)
		return
	}
	if req.Source == "" {
		req.Source = "request"
	}

	contents := req.TableOfContents
	if s.cfg.SortTOC {
		contents = toc.Sorted(contents)
	}
	if err := toc.Validate(contents); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := s.cfg.ChunkerConfig()
	if req.Strategy != "" {
		cfg.Strategy = req.Strategy
	}
	if req.ChunkSize > 0 {
		cfg = cfg.WithChunkSize(req.ChunkSize)
	}
	if req.ChunkOverlap != nil {
		cfg.ChunkOverlap = *req.ChunkOverlap
	}
	if req.MinLength > 0 {
		cfg.MinLength = req.MinLength
	}
	if req.SkipFrontMatter != nil {
		cfg.SkipFrontMatter = *req.SkipFrontMatter
	}

	log := s.log.With("source", req.Source)
	strategy, err := chunker.New(cfg, s.deps.Embedder, log)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc := book.Document{Source: req.Source, Title: req.Source, Pages: req.Pages}
	chunks, err := strategy.Chunk(r.Context(), doc, contents, req.FirstPage)
	if err != nil {
		var batchErr *chunker.EmbeddingBatchError
		switch {
		case chunker.IsEmptyResult(err):
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.As(err, &batchErr):
			jsonError(w, err.Error(), http.StatusBadGateway)
		default:
			jsonError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.Chunks.Add(float64(len(chunks)))
	}

	cfg.Strategy = strategy.Name()
	writeJSON(w, http.StatusOK, chunkResponse{Source: req.Source, ChunkerConfig: cfg, Chunks: chunks})
}
