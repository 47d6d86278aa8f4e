package api

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/bobmatnyc/dedup-cli/internal/model"
	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"registry": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveResponse pairs a queried file path with the canonical document it
// belongs to today.
type resolveResponse struct {
	FilePath  string                   `json:"file_path"`
	Canonical *model.CanonicalDocument `json:"canonical"`
}

// handleResolve maps any historical file path to its current canonical
// document, following merge chains to a live identity.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	filePath := r.URL.Query().Get("path")
	if filePath == "" {
		writeError(w, http.StatusBadRequest, eris.New("query parameter path is required"))
		return
	}

	doc, err := s.store.ResolveSourcePath(r.Context(), filePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if doc != nil && doc.Retired() {
		doc, err = registry.ResolveCanonical(r.Context(), s.store, doc.CanonicalID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, eris.Errorf("no canonical document for path %q", filePath))
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{FilePath: filePath, Canonical: doc})
}

// canonicalResponse is a canonical document with its full provenance list.
type canonicalResponse struct {
	*model.CanonicalDocument
	Sources []model.Source `json:"sources"`
}

func (s *Server) handleCanonical(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.store.GetCanonical(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, eris.Errorf("no canonical document %q", id))
		return
	}

	sources, err := s.store.ListSources(r.Context(), doc.CanonicalID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, canonicalResponse{CanonicalDocument: doc, Sources: sources})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
