package api

import (
	"net/http"
)

func (s *Server) handleEmbedStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		jsonError(w, "embedding stats unavailable", http.StatusServiceUnavailable)
		return
	}

	snap := s.deps.Stats.Snapshot()
	snap.Provider = s.cfg.EmbedProvider
	if s.deps.Embedder != nil {
		snap.Model = s.deps.Embedder.Name()
	}
	resp := map[string]any{"stats": snap}
	if s.deps.Orchestrator != nil {
		resp["queue_depth"] = s.deps.Orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, resp)
}
