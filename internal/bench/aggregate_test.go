package bench

import (
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	hundred := make([]float64, 100)
	for i := range hundred {
		hundred[i] = float64(i + 1)
	}

	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 95, 0},
		{"single", []float64{7}, 50, 7},
		{"median interpolates", []float64{1, 2, 3, 4}, 50, 2.5},
		{"p0 is min", []float64{5, 1, 9}, 0, 1},
		{"p100 is max", []float64{5, 1, 9}, 100, 9},
		{"unsorted input", []float64{3, 1, 2}, 50, 2},
		{"p95 of 1..100", hundred, 95, 95.05},
		{"p99 of 1..100", hundred, 99, 99.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentile(tt.values, tt.p); !approxEqual(got, tt.want) {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.values, tt.p, got, tt.want)
			}
		})
	}
}

func TestAggregate_Means(t *testing.T) {
	query := &QueryStats{
		Outcomes: []Outcome{
			{QueryID: "q1", LatencyMs: 10, Recall: 1.0, MRR: 1.0, NDCG: 1.0, Precision: 0.2},
			{QueryID: "q2", LatencyMs: 20, Recall: 0.5, MRR: 0.25, NDCG: 0.5, Precision: 0.1},
		},
		WallTime: 2 * time.Second,
	}

	result := Aggregate(AggregateInput{Query: query})

	if !approxEqual(result.Retrieval.Recall, 0.75) {
		t.Errorf("recall = %v, want 0.75", result.Retrieval.Recall)
	}
	if !approxEqual(result.Retrieval.MRR, 0.625) {
		t.Errorf("mrr = %v, want 0.625", result.Retrieval.MRR)
	}
	if !approxEqual(result.Retrieval.NDCG, 0.75) {
		t.Errorf("ndcg = %v, want 0.75", result.Retrieval.NDCG)
	}
	if !approxEqual(result.Retrieval.Precision, 0.15) {
		t.Errorf("precision = %v, want 0.15", result.Retrieval.Precision)
	}
	if !approxEqual(result.Performance.QPS, 1.0) {
		t.Errorf("qps = %v, want 1.0", result.Performance.QPS)
	}
	if !approxEqual(result.Performance.SearchLatencyMs.P50, 15) {
		t.Errorf("p50 = %v, want 15", result.Performance.SearchLatencyMs.P50)
	}
	if result.Context.QueriesCount != 2 {
		t.Errorf("queries_count = %d, want 2", result.Context.QueriesCount)
	}
}

func TestAggregate_EmptyOutcomes(t *testing.T) {
	result := Aggregate(AggregateInput{Query: &QueryStats{}})

	if result.Retrieval.Recall != 0 || result.Retrieval.NDCG != 0 {
		t.Errorf("retrieval = %+v, want zeros", result.Retrieval)
	}
	if result.Performance.QPS != 0 {
		t.Errorf("qps = %v, want 0", result.Performance.QPS)
	}
	if result.Context.QueriesCount != 0 {
		t.Errorf("queries_count = %d, want 0", result.Context.QueriesCount)
	}
}

func TestAggregate_Provenance(t *testing.T) {
	index := &IndexStats{Documents: 100, Batches: 1, Dim: 8, BuildTime: time.Second, UpsertRateVPS: 100}
	query := &QueryStats{Partial: true, WallTime: time.Second}

	result := Aggregate(AggregateInput{
		Context:   RunContext{Dataset: "fiqa", ModelName: "text-embedding-3-small", Normalized: true},
		Backend:   BackendInfo{Name: "qdrant"},
		Index:     index,
		Query:     query,
		GitCommit: "abc1234",
		Notes:     "smoke",
	})

	if result.Meta.SchemaVersion != SchemaVersion {
		t.Errorf("schema_version = %q, want %q", result.Meta.SchemaVersion, SchemaVersion)
	}
	if result.Meta.RunID == "" {
		t.Error("run_id should be set")
	}
	if _, err := time.Parse(time.RFC3339, result.Meta.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", result.Meta.Timestamp, err)
	}
	if result.Meta.GitCommit != "abc1234" || result.Meta.Runner != RunnerTag {
		t.Errorf("meta = %+v", result.Meta)
	}
	if !result.Partial {
		t.Error("partial flag should carry through")
	}
	if result.Context.VectorDim != 8 || result.Context.DatasetSize != 100 {
		t.Errorf("context = %+v", result.Context)
	}
	if result.Context.Dtype != VectorDtype {
		t.Errorf("dtype = %q, want %q", result.Context.Dtype, VectorDtype)
	}
	if !result.Context.Normalized {
		t.Error("normalized flag should carry through")
	}
	if !approxEqual(result.Performance.IndexBuildTimeSec, 1.0) {
		t.Errorf("index_build_time_sec = %v, want 1.0", result.Performance.IndexBuildTimeSec)
	}

	// Distinct runs get distinct IDs.
	other := Aggregate(AggregateInput{Query: query})
	if other.Meta.RunID == result.Meta.RunID {
		t.Error("run IDs should be unique per aggregation")
	}
}

func TestAggregate_NoQueryPhase(t *testing.T) {
	result := Aggregate(AggregateInput{
		Index: &IndexStats{Documents: 10, Dim: 4, BuildTime: time.Second},
	})

	if result.Partial {
		t.Error("index-only result should not be partial")
	}
	if result.Context.DatasetSize != 10 {
		t.Errorf("dataset_size = %d, want 10", result.Context.DatasetSize)
	}
}
