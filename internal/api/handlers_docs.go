package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleGetDocument returns a built body, or its sidecar with ?sidecar=true.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docname, err := cleanDocname(chi.URLParam(r, "*"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	name, contentType := s.cfg.Options.BodyFile(docname), "text/markdown; charset=utf-8"
	if sidecar, _ := strconv.ParseBool(r.URL.Query().Get("sidecar")); sidecar {
		name, contentType = s.cfg.Options.SidecarFile(docname), "application/json"
	}

	data, err := s.out.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteDocument removes a document's body and sidecar.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docname, err := cleanDocname(chi.URLParam(r, "*"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var removed []string
	// Sidecar first, so a sidecar never outlives its body.
	for _, name := range []string{s.cfg.Options.SidecarFile(docname), s.cfg.Options.BodyFile(docname)} {
		if !s.out.Exists(name) {
			continue
		}
		if err := s.out.Remove(name); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		removed = append(removed, name)
	}
	if len(removed) == 0 {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	s.log.Info("document removed", "docname", docname, "files", removed)
	writeJSON(w, http.StatusOK, map[string]any{"docname": docname, "removed": removed})
}

// handleStats reports pipeline load and the build options in effect.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth":  s.orchestrator.QueueDepth(),
		"worker_count": s.cfg.WorkerCount,
		"options":      s.cfg.Options,
	})
}
