package server

import (
	"encoding/json"
	"net/http"

	"github.com/vecbench/vecbench/internal/backend"
	"github.com/vecbench/vecbench/internal/bench"
	"github.com/vecbench/vecbench/internal/dataset"
	"github.com/vecbench/vecbench/internal/pkg/errors"
)

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"backends": backend.Names(),
		"default":  s.cfg.Backend.Name,
	})
}

type indexRequest struct {
	Documents []dataset.Document `json:"documents"`
	BatchSize int                `json:"batch_size,omitempty"`
}

// handleIndex loads documents into the shared store. Used for ad-hoc
// experiments outside a full benchmark run.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.InvalidRequestError("invalid JSON body"))
		return
	}
	if len(req.Documents) == 0 {
		errors.WriteError(w, errors.InvalidRequestError("documents must not be empty"))
		return
	}
	if req.BatchSize == 0 {
		req.BatchSize = s.cfg.Workload.BatchSize
	}

	store, err := s.sharedStore()
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	indexer := bench.NewIndexer(bench.IndexerConfig{BatchSize: req.BatchSize}, store, s.log, s.bus)
	stats, err := indexer.Index(r.Context(), req.Documents)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents":       stats.Documents,
		"batches":         stats.Batches,
		"dim":             stats.Dim,
		"build_time_sec":  stats.BuildTime.Seconds(),
		"upsert_rate_vps": stats.UpsertRateVPS,
	})
}

type searchRequest struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.InvalidRequestError("invalid JSON body"))
		return
	}
	if len(req.Vector) == 0 {
		errors.WriteError(w, errors.InvalidRequestError("vector must not be empty"))
		return
	}
	if req.K <= 0 {
		req.K = s.cfg.Workload.TopK
	}

	store, err := s.sharedStore()
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	found, err := store.Search(r.Context(), req.Vector, req.K)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": found})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	store, err := s.sharedStore()
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	if err := store.Clear(r.Context()); err != nil {
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
