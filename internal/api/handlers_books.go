package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/bookchunk/internal/store"
)

// handleListBooks lists every stored book without its chunks.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.deps.Store.ListBooks(r.Context())
	if err != nil {
		jsonError(w, "failed to list books: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if books == nil {
		books = []store.Book{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

// handleBookChunks returns a book's chunks, with embeddings unless
// ?embeddings=false.
func (s *Server) handleBookChunks(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	chunks, err := s.deps.Store.Chunks(r.Context(), bookID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "book not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to load chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if r.URL.Query().Get("embeddings") == "false" {
		for i := range chunks {
			chunks[i].Embedding = nil
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"book_id": bookID, "chunks": chunks})
}

// handleDeleteBook removes a book from the store and from the mirror.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	ctx := r.Context()

	err := s.deps.Store.DeleteBook(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "book not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to delete book: "+err.Error(), http.StatusInternalServerError)
		return
	}

	mirrorDeleted := false
	if s.deps.Mirror != nil {
		if err := s.deps.Mirror.DeleteBook(ctx, bookID); err != nil {
			s.log.Warn("mirror delete failed", "book_id", bookID, "error", err)
		} else {
			mirrorDeleted = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"book_id":        bookID,
		"deleted":        true,
		"mirror_deleted": mirrorDeleted,
	})
}
