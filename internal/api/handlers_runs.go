package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/docweave/docweave/internal/config"
	"github.com/go-chi/chi/v5"
)

// handleSubmitRun accepts a configuration document (spec §6.1) as the
// request body, binds it to a runnable pipeline, and starts it
// asynchronously, mirroring the shape of the teacher's handleIngest but
// pointed at a pipeline document instead of a single uploaded file.
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		jsonError(w, "failed to read request body", http.StatusInternalServerError)
		return
	}

	doc, err := config.ParseDocument(body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pl, err := config.Build(doc, s.metrics)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID, err := s.orchestrator.RunAsync(r.Context(), pl)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":   runID,
		"status":   "queued",
		"poll_url": "/api/runs/" + runID,
	})
}

// handleRunStatus returns the current snapshot of a tracked run.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, ok := s.orchestrator.Runs.Get(runID)
	if !ok {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&snap)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
