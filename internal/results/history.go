package results

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vecbench/vecbench/internal/bench"
)

// HistoryPoint is one headline metric sample.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// RedisHistory keeps a rolling window of headline metrics per
// dataset/backend pair in Redis sorted sets, so successive runs can be
// compared without re-reading every result file.
type RedisHistory struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisHistory connects to Redis and verifies the connection.
func NewRedisHistory(url string) (*RedisHistory, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisHistory{
		client: client,
		prefix: "vecbench:history:",
		ttl:    30 * 24 * time.Hour,
	}, nil
}

// Record stores the headline metrics of a completed run. Partial runs are
// skipped: their figures cover an incomplete query set and would skew
// comparisons.
func (h *RedisHistory) Record(ctx context.Context, result *bench.Result) error {
	if result.Partial {
		return nil
	}

	ts, err := time.Parse(time.RFC3339, result.Meta.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	score := float64(ts.Unix())

	metrics := map[string]float64{
		"recall":    result.Retrieval.Recall,
		"mrr":       result.Retrieval.MRR,
		"ndcg":      result.Retrieval.NDCG,
		"precision": result.Retrieval.Precision,
		"qps":       result.Performance.QPS,
		"p95_ms":    result.Performance.SearchLatencyMs.P95,
	}

	pipe := h.client.Pipeline()
	minScore := strconv.FormatInt(time.Now().Add(-h.ttl).Unix(), 10)

	for name, value := range metrics {
		key := h.key(result, name)
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  score,
			Member: fmt.Sprintf("%s:%.6f", result.Meta.RunID, value),
		})
		pipe.ZRemRangeByScore(ctx, key, "-inf", minScore)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording history: %w", err)
	}
	return nil
}

// Load returns the samples for one metric since the given time, oldest
// first.
func (h *RedisHistory) Load(ctx context.Context, dataset, backendName, metric string, since time.Time) ([]HistoryPoint, error) {
	key := h.prefix + dataset + ":" + backendName + ":" + metric

	entries, err := h.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	points := make([]HistoryPoint, 0, len(entries))
	for _, z := range entries {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		value, err := parseMemberValue(member)
		if err != nil {
			continue
		}

		points = append(points, HistoryPoint{
			Timestamp: time.Unix(int64(z.Score), 0).UTC(),
			Value:     value,
		})
	}

	return points, nil
}

// Close closes the Redis connection.
func (h *RedisHistory) Close() error {
	return h.client.Close()
}

func (h *RedisHistory) key(result *bench.Result, metric string) string {
	return h.prefix + result.Context.Dataset + ":" + result.Backend.Name + ":" + metric
}

// parseMemberValue extracts the value from a "{run_id}:{value}" member. The
// run-id prefix keeps members unique when two runs report equal values.
func parseMemberValue(member string) (float64, error) {
	for i := len(member) - 1; i >= 0; i-- {
		if member[i] == ':' {
			return strconv.ParseFloat(member[i+1:], 64)
		}
	}
	return strconv.ParseFloat(member, 64)
}
