// Package main provides the vecbench binary: a vector search benchmark
// harness with a CLI runner and an HTTP server mode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vecbench/vecbench/internal/backend"
	"github.com/vecbench/vecbench/internal/bench"
	"github.com/vecbench/vecbench/internal/bus"
	"github.com/vecbench/vecbench/internal/config"
	"github.com/vecbench/vecbench/internal/dataset"
	"github.com/vecbench/vecbench/internal/embed"
	"github.com/vecbench/vecbench/internal/pkg/logger"
	"github.com/vecbench/vecbench/internal/results"
	"github.com/vecbench/vecbench/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vecbench",
		Short: "Vector search benchmark harness",
		Long: `vecbench indexes an embedded corpus into a vector database, replays an
evaluation query set against it, and reports retrieval quality (recall,
MRR, nDCG, precision) alongside latency percentiles and throughput.

Examples:
  vecbench run --corpus corpus.jsonl --queries queries.jsonl --qrels qrels.tsv
  vecbench run --backend qdrant --concurrency 8 --warmup 20
  vecbench serve --port 8080
  vecbench backends`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBackendsCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vecbench %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if verbose {
		cfg.Log.Level = "debug"
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	return cfg, log, nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark against one backend",
		RunE:  runBenchmark,
	}

	cmd.Flags().String("corpus", "", "corpus JSONL path (id, doc_id, text, emb)")
	cmd.Flags().String("queries", "", "queries JSONL path (_id, text, emb)")
	cmd.Flags().String("qrels", "", "relevance judgments TSV path")
	cmd.Flags().String("dataset", "", "dataset name for result records")
	cmd.Flags().String("model", "", "embedding model name for result records")
	cmd.Flags().String("backend", "", "backend to benchmark (bolt, qdrant, redisearch)")
	cmd.Flags().Int("top-k", 0, "search depth and metric cutoff")
	cmd.Flags().Int("batch-size", 0, "documents per upsert batch")
	cmd.Flags().Int("concurrency", 0, "query workers (1 = sequential)")
	cmd.Flags().Int("warmup", 0, "warm-up queries excluded from measurement")
	cmd.Flags().Bool("normalized", false, "record that the corpus embeddings are unit-length")
	cmd.Flags().Bool("keep-data", false, "leave the collection in place after the run")
	cmd.Flags().String("notes", "", "free-form note stored with the result")
	cmd.Flags().String("results-dir", "", "directory for result JSON files")

	return cmd
}

func runBenchmark(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if cfg.Dataset.CorpusPath == "" || cfg.Dataset.QueriesPath == "" || cfg.Dataset.JudgmentsPath == "" {
		return fmt.Errorf("corpus, queries, and qrels paths are required (flags or config)")
	}

	docs, err := dataset.LoadCorpus(cfg.Dataset.CorpusPath)
	if err != nil {
		return err
	}
	queries, err := dataset.LoadQueries(cfg.Dataset.QueriesPath)
	if err != nil {
		return err
	}
	judgments, err := dataset.LoadJudgments(cfg.Dataset.JudgmentsPath)
	if err != nil {
		return err
	}
	log.Info("dataset loaded",
		"documents", len(docs),
		"queries", len(queries),
		"judged_queries", len(judgments))

	eventBus, err := bus.New(cfg.Bus.Type, cfg.Bus.KafkaBrokers)
	if err != nil {
		return err
	}
	defer func() { _ = eventBus.Close() }()

	store, err := backend.Open(cfg.Backend.Name, backend.Config{
		Namespace:    cfg.Backend.Namespace,
		QdrantHost:   cfg.Backend.QdrantHost,
		QdrantPort:   cfg.Backend.QdrantPort,
		QdrantAPIKey: cfg.Backend.QdrantAPIKey,
		QdrantUseTLS: cfg.Backend.QdrantUseTLS,
		RedisURL:     cfg.Backend.RedisURL,
		BoltPath:     cfg.Backend.BoltPath,
		Timeout:      cfg.BackendTimeout(),
	})
	if err != nil {
		return err
	}

	sink, err := newSink(cfg, log)
	if err != nil {
		return err
	}

	var embedder embed.Embedder
	if cfg.Embedder.APIKey != "" {
		embedder, err = embed.NewOpenAI(embed.OpenAIConfig{
			APIKey:  cfg.Embedder.APIKey,
			BaseURL: cfg.Embedder.BaseURL,
			Model:   cfg.Embedder.Model,
		})
		if err != nil {
			return err
		}
	}

	runner := bench.NewRunner(bench.RunnerConfig{
		Context: bench.RunContext{
			Dataset:    cfg.Dataset.Name,
			ModelName:  cfg.Dataset.ModelName,
			Normalized: cfg.Dataset.Normalized,
		},
		Backend: bench.BackendInfo{
			Name:       cfg.Backend.Name,
			Collection: cfg.Backend.Namespace,
		},
		Indexer: bench.IndexerConfig{BatchSize: cfg.Workload.BatchSize},
		Querier: bench.QuerierConfig{
			TopK:        cfg.Workload.TopK,
			Concurrency: cfg.Workload.Concurrency,
			Warmup:      cfg.Workload.Warmup,
		},
		KeepData: cfg.Workload.KeepData,
		Notes:    flagString(cmd, "notes"),
	}, store, embedder, sink, log.WithDataset(cfg.Dataset.Name), eventBus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := runner.Run(ctx, docs, queries, judgments)
	if result != nil {
		printSummary(result)
	}
	return runErr
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if v := flagString(cmd, "corpus"); v != "" {
		cfg.Dataset.CorpusPath = v
	}
	if v := flagString(cmd, "queries"); v != "" {
		cfg.Dataset.QueriesPath = v
	}
	if v := flagString(cmd, "qrels"); v != "" {
		cfg.Dataset.JudgmentsPath = v
	}
	if v := flagString(cmd, "dataset"); v != "" {
		cfg.Dataset.Name = v
	}
	if v := flagString(cmd, "model"); v != "" {
		cfg.Dataset.ModelName = v
	}
	if v := flagString(cmd, "backend"); v != "" {
		cfg.Backend.Name = v
	}
	if v := flagString(cmd, "results-dir"); v != "" {
		cfg.Results.Dir = v
	}
	if v, _ := cmd.Flags().GetInt("top-k"); v > 0 {
		cfg.Workload.TopK = v
	}
	if v, _ := cmd.Flags().GetInt("batch-size"); v > 0 {
		cfg.Workload.BatchSize = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		cfg.Workload.Concurrency = v
	}
	if v, _ := cmd.Flags().GetInt("warmup"); v > 0 {
		cfg.Workload.Warmup = v
	}
	if cmd.Flags().Changed("normalized") {
		v, _ := cmd.Flags().GetBool("normalized")
		cfg.Dataset.Normalized = v
	}
	if v, _ := cmd.Flags().GetBool("keep-data"); v {
		cfg.Workload.KeepData = true
	}
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// newSink builds the result sink: always the file sink, with Redis history
// layered on when configured.
func newSink(cfg *config.Config, log *logger.Logger) (bench.Sink, error) {
	fileSink, err := results.NewFileSink(cfg.Results.Dir)
	if err != nil {
		return nil, err
	}

	if cfg.Results.HistoryURL == "" {
		return fileSink, nil
	}

	history, err := results.NewRedisHistory(cfg.Results.HistoryURL)
	if err != nil {
		log.Warn("redis history unavailable, writing files only", "error", err)
		return fileSink, nil
	}

	return &historySink{file: fileSink, history: history, log: log}, nil
}

// historySink persists to disk and records headline metrics in Redis.
// History failures never fail the run; the file is the canonical record.
type historySink struct {
	file    *results.FileSink
	history *results.RedisHistory
	log     *logger.Logger
}

func (s *historySink) Persist(result *bench.Result) (string, error) {
	path, err := s.file.Persist(result)
	if err != nil {
		return "", err
	}

	if histErr := s.history.Record(context.Background(), result); histErr != nil {
		s.log.Warn("recording history failed", "error", histErr)
	}
	return path, nil
}

func printSummary(result *bench.Result) {
	status := "complete"
	if result.Partial {
		status = "PARTIAL"
	}

	fmt.Printf("\nRun %s (%s)\n", result.Meta.RunID, status)
	fmt.Printf("  dataset:    %s (%d docs, %d queries)\n",
		result.Context.Dataset, result.Context.DatasetSize, result.Context.QueriesCount)
	fmt.Printf("  backend:    %s\n", result.Backend.Name)
	fmt.Printf("  recall@%d:   %.4f\n", result.Workload.TopK, result.Retrieval.Recall)
	fmt.Printf("  mrr@%d:      %.4f\n", result.Workload.TopK, result.Retrieval.MRR)
	fmt.Printf("  ndcg@%d:     %.4f\n", result.Workload.TopK, result.Retrieval.NDCG)
	fmt.Printf("  p95 search: %.2f ms\n", result.Performance.SearchLatencyMs.P95)
	fmt.Printf("  qps:        %.1f\n", result.Performance.QPS)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the benchmark HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if v, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
				cfg.Port = v
			}
			if v := flagString(cmd, "host"); cmd.Flags().Changed("host") {
				cfg.Host = v
			}

			srv, err := server.New(cfg, version, log)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				log.Info("shutdown signal received")
				return srv.Stop(context.Background())
			}
		},
	}

	cmd.Flags().Int("port", 8080, "HTTP port")
	cmd.Flags().String("host", "0.0.0.0", "bind address")

	return cmd
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List supported backends",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(strings.Join(backend.Names(), "\n"))
		},
	}
}
