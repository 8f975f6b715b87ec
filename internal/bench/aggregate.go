package bench

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RunnerTag identifies the producing harness in result records.
const RunnerTag = "vecbench@local"

// AggregateInput collects everything the aggregator folds into one result.
type AggregateInput struct {
	Context   RunContext
	Backend   BackendInfo
	Workload  Workload
	Index     *IndexStats
	Query     *QueryStats
	GitCommit string
	Notes     string
}

// Aggregate reduces per-query outcomes and phase stats into the immutable
// benchmark result record. Outcome arrival order does not matter: means and
// percentiles are order-independent.
func Aggregate(in AggregateInput) *Result {
	result := &Result{
		Meta: Meta{
			SchemaVersion: SchemaVersion,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			GitCommit:     in.GitCommit,
			Runner:        RunnerTag,
			RunID:         uuid.NewString(),
		},
		Context:  in.Context,
		Backend:  in.Backend,
		Workload: in.Workload,
		Notes:    in.Notes,
	}
	result.Context.Dtype = VectorDtype

	if in.Index != nil {
		result.Performance.IndexBuildTimeSec = in.Index.BuildTime.Seconds()
		result.Performance.UpsertRateVPS = in.Index.UpsertRateVPS
		result.Context.VectorDim = in.Index.Dim
		result.Context.DatasetSize = in.Index.Documents
	}

	if in.Query == nil {
		return result
	}

	outcomes := in.Query.Outcomes
	result.Partial = in.Query.Partial
	result.Context.QueriesCount = len(outcomes)

	searchLatencies := make([]float64, len(outcomes))
	embedLatencies := make([]float64, len(outcomes))
	totalLatencies := make([]float64, len(outcomes))
	for i, o := range outcomes {
		searchLatencies[i] = o.LatencyMs
		embedLatencies[i] = o.EmbedMs
		totalLatencies[i] = o.LatencyMs + o.EmbedMs

		result.Retrieval.Recall += o.Recall
		result.Retrieval.MRR += o.MRR
		result.Retrieval.NDCG += o.NDCG
		result.Retrieval.Precision += o.Precision
	}

	if n := float64(len(outcomes)); n > 0 {
		result.Retrieval.Recall /= n
		result.Retrieval.MRR /= n
		result.Retrieval.NDCG /= n
		result.Retrieval.Precision /= n
	}

	result.Performance.SearchLatencyMs = summarizeLatencies(searchLatencies)
	result.Performance.EmbedLatencyMs = summarizeLatencies(embedLatencies)
	result.Performance.LatencyMs = summarizeLatencies(totalLatencies)

	if wall := in.Query.WallTime.Seconds(); wall > 0 {
		result.Performance.QPS = float64(len(outcomes)) / wall
	}

	return result
}

func summarizeLatencies(values []float64) LatencySummary {
	return LatencySummary{
		P50: Percentile(values, 50),
		P90: Percentile(values, 90),
		P95: Percentile(values, 95),
		P99: Percentile(values, 99),
	}
}

// Percentile computes the p-th percentile with linear interpolation between
// closest ranks (the same rule numpy applies by default). Returns 0 for an
// empty input.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	frac := rank - float64(lower)

	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
