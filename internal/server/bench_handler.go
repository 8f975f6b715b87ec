package server

import (
	"encoding/json"
	"net/http"

	"github.com/vecbench/vecbench/internal/backend"
	"github.com/vecbench/vecbench/internal/bench"
	"github.com/vecbench/vecbench/internal/dataset"
	"github.com/vecbench/vecbench/internal/embed"
	"github.com/vecbench/vecbench/internal/pkg/errors"
	"github.com/vecbench/vecbench/internal/results"
)

// runRequest is the benchmark run request body. Unset fields fall back to
// the server configuration. Concurrency, warmup, and normalized are pointers
// because zero and false are meaningful values there: an explicit 0 must not
// be mistaken for "use the configured default".
type runRequest struct {
	CorpusPath    string `json:"corpus_path"`
	QueriesPath   string `json:"queries_path"`
	JudgmentsPath string `json:"judgments_path"`

	Dataset string `json:"dataset,omitempty"`
	Backend string `json:"backend,omitempty"`
	Model   string `json:"model,omitempty"`

	TopK        int    `json:"top_k,omitempty"`
	BatchSize   int    `json:"batch_size,omitempty"`
	Concurrency *int   `json:"concurrency,omitempty"`
	Warmup      *int   `json:"warmup,omitempty"`
	Normalized  *bool  `json:"normalized,omitempty"`
	KeepData    bool   `json:"keep_data,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

func (req *runRequest) applyDefaults(s *Server) {
	if req.Dataset == "" {
		req.Dataset = s.cfg.Dataset.Name
	}
	if req.Backend == "" {
		req.Backend = s.cfg.Backend.Name
	}
	if req.Model == "" {
		req.Model = s.cfg.Dataset.ModelName
	}
	if req.CorpusPath == "" {
		req.CorpusPath = s.cfg.Dataset.CorpusPath
	}
	if req.QueriesPath == "" {
		req.QueriesPath = s.cfg.Dataset.QueriesPath
	}
	if req.JudgmentsPath == "" {
		req.JudgmentsPath = s.cfg.Dataset.JudgmentsPath
	}
	if req.TopK == 0 {
		req.TopK = s.cfg.Workload.TopK
	}
	if req.BatchSize == 0 {
		req.BatchSize = s.cfg.Workload.BatchSize
	}
	if req.Concurrency == nil {
		req.Concurrency = &s.cfg.Workload.Concurrency
	}
	if req.Warmup == nil {
		req.Warmup = &s.cfg.Workload.Warmup
	}
	if req.Normalized == nil {
		req.Normalized = &s.cfg.Dataset.Normalized
	}
}

// handleBenchmarkRun executes a full benchmark run synchronously and
// returns the aggregated result. A partial run still returns its result;
// the partial flag and error are included so the caller can decide.
func (s *Server) handleBenchmarkRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.InvalidRequestError("invalid JSON body"))
		return
	}
	req.applyDefaults(s)

	if req.CorpusPath == "" || req.QueriesPath == "" || req.JudgmentsPath == "" {
		errors.WriteError(w, errors.InvalidRequestError("corpus_path, queries_path, and judgments_path are required"))
		return
	}

	docs, err := dataset.LoadCorpus(req.CorpusPath)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	queries, err := dataset.LoadQueries(req.QueriesPath)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	judgments, err := dataset.LoadJudgments(req.JudgmentsPath)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	sink, err := results.NewFileSink(s.cfg.Results.Dir)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	var embedder embed.Embedder
	if s.cfg.Embedder.APIKey != "" {
		embedder, err = embed.NewOpenAI(embed.OpenAIConfig{
			APIKey:  s.cfg.Embedder.APIKey,
			BaseURL: s.cfg.Embedder.BaseURL,
			Model:   s.cfg.Embedder.Model,
		})
		if err != nil {
			errors.WriteError(w, err)
			return
		}
	}

	// Runs get their own store so the runner can close it unconditionally.
	store, err := backend.Open(req.Backend, storeConfig(s.cfg))
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	runner := bench.NewRunner(bench.RunnerConfig{
		Context: bench.RunContext{
			Dataset:    req.Dataset,
			ModelName:  req.Model,
			Normalized: *req.Normalized,
		},
		Backend: bench.BackendInfo{
			Name:       req.Backend,
			Collection: s.cfg.Backend.Namespace,
		},
		Indexer: bench.IndexerConfig{BatchSize: req.BatchSize},
		Querier: bench.QuerierConfig{
			TopK:        req.TopK,
			Concurrency: *req.Concurrency,
			Warmup:      *req.Warmup,
		},
		KeepData: req.KeepData,
		Notes:    req.Notes,
	}, store, embedder, sink, s.log.WithDataset(req.Dataset), s.bus)

	result, runErr := runner.Run(r.Context(), docs, queries, judgments)
	if runErr != nil && result == nil {
		errors.WriteError(w, runErr)
		return
	}

	resp := map[string]any{"result": result}
	if runErr != nil {
		resp["error"] = runErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
