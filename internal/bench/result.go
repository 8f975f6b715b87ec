// Package bench contains the benchmark orchestration core: the indexing and
// query pipelines, metric aggregation, and the run orchestrator.
package bench

import "time"

// SchemaVersion identifies the result record layout.
const SchemaVersion = "1.0"

// VectorDtype is the element type of every vector the harness handles.
const VectorDtype = "float32"

// Meta carries run provenance.
type Meta struct {
	SchemaVersion string `json:"schema_version"`
	Timestamp     string `json:"timestamp"`
	GitCommit     string `json:"git_commit,omitempty"`
	Runner        string `json:"runner"`
	RunID         string `json:"run_id"`
}

// RunContext captures the dataset and embedding-model identity of a run.
type RunContext struct {
	Dataset      string `json:"dataset"`
	DatasetSize  int    `json:"dataset_size"`
	QueriesCount int    `json:"queries_count"`
	ModelName    string `json:"model_name"`
	VectorDim    int    `json:"vector_dim"`
	Dtype        string `json:"dtype"`
	Normalized   bool   `json:"normalized"`
}

// BackendInfo identifies the backend under test.
type BackendInfo struct {
	Name       string            `json:"name"`
	Version    string            `json:"version,omitempty"`
	Host       string            `json:"host,omitempty"`
	Collection string            `json:"collection,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// Workload records the benchmark parameters.
type Workload struct {
	TopK          int `json:"top_k"`
	BatchSize     int `json:"batch_size"`
	Concurrency   int `json:"concurrency"`
	WarmupQueries int `json:"warmup_queries"`
}

// LatencySummary holds latency percentiles in milliseconds.
type LatencySummary struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Performance holds the measured throughput and latency metrics.
type Performance struct {
	IndexBuildTimeSec float64        `json:"index_build_time_sec"`
	UpsertRateVPS     float64        `json:"upsert_rate_vps"`
	LatencyMs         LatencySummary `json:"latency_ms"`
	EmbedLatencyMs    LatencySummary `json:"embed_latency_ms"`
	SearchLatencyMs   LatencySummary `json:"search_latency_ms"`
	QPS               float64        `json:"qps"`
}

// Retrieval holds the mean quality metrics at the workload's top-k cutoff.
type Retrieval struct {
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
	NDCG      float64 `json:"ndcg"`
	Precision float64 `json:"precision"`
}

// Result is the immutable record of one benchmark run. It is created once
// by the aggregator and never mutated afterwards.
type Result struct {
	Meta        Meta        `json:"meta"`
	Context     RunContext  `json:"context"`
	Backend     BackendInfo `json:"db"`
	Workload    Workload    `json:"workload"`
	Performance Performance `json:"performance"`
	Retrieval   Retrieval   `json:"retrieval"`

	// Partial marks a run whose query phase aborted; the retrieval and
	// latency figures cover only the queries evaluated before the failure.
	Partial bool `json:"partial,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// Outcome is the per-query measurement produced by the query pipeline and
// consumed once by the aggregator. Immutable once computed.
type Outcome struct {
	QueryID string `json:"query_id"`

	// LatencyMs is the wall-clock time of the search call only.
	LatencyMs float64 `json:"latency_ms"`

	// EmbedMs is the embedding time when the query vector was generated on
	// the fly; 0 for pre-computed embeddings.
	EmbedMs float64 `json:"embed_ms"`

	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
	NDCG      float64 `json:"ndcg"`
	Precision float64 `json:"precision"`
}

// Sink persists a completed result record, returning its location.
// File and database sinks live outside the benchmark core.
type Sink interface {
	Persist(result *Result) (string, error)
}

// IndexStats summarizes the indexing phase.
type IndexStats struct {
	Documents     int           `json:"documents"`
	Batches       int           `json:"batches"`
	Dim           int           `json:"dim"`
	BuildTime     time.Duration `json:"build_time"`
	UpsertRateVPS float64       `json:"upsert_rate_vps"`
}

// QueryStats summarizes the query phase.
type QueryStats struct {
	Outcomes []Outcome     `json:"outcomes"`
	WallTime time.Duration `json:"wall_time"`

	// Partial is set when the phase aborted after some queries completed.
	Partial bool `json:"partial,omitempty"`
}
