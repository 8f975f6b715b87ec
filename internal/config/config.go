// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"VECBENCH_HOST" yaml:"host"`
	Port int    `envconfig:"VECBENCH_PORT" yaml:"port"`

	// Dataset configuration
	Dataset DatasetConfig `yaml:"dataset"`

	// Backend configuration
	Backend BackendConfig `yaml:"backend"`

	// Workload configuration
	Workload WorkloadConfig `yaml:"workload"`

	// Embedder configuration
	Embedder EmbedderConfig `yaml:"embedder"`

	// Results configuration
	Results ResultsConfig `yaml:"results"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`
}

// DatasetConfig identifies the corpus, query, and judgment inputs.
type DatasetConfig struct {
	Name          string `envconfig:"VECBENCH_DATASET" yaml:"name"`
	CorpusPath    string `envconfig:"VECBENCH_CORPUS_PATH" yaml:"corpus_path"`
	QueriesPath   string `envconfig:"VECBENCH_QUERIES_PATH" yaml:"queries_path"`
	JudgmentsPath string `envconfig:"VECBENCH_JUDGMENTS_PATH" yaml:"judgments_path"`
	ModelName     string `envconfig:"VECBENCH_MODEL_NAME" yaml:"model_name"`

	// Normalized records whether the corpus embeddings are unit-length.
	Normalized bool `envconfig:"VECBENCH_NORMALIZED" yaml:"normalized"`
}

// BackendConfig holds backend selection and connection settings.
type BackendConfig struct {
	Name      string `envconfig:"VECBENCH_BACKEND" yaml:"name"`
	Namespace string `envconfig:"VECBENCH_NAMESPACE" yaml:"namespace"`

	QdrantHost   string `envconfig:"QDRANT_HOST" yaml:"qdrant_host"`
	QdrantPort   int    `envconfig:"QDRANT_PORT" yaml:"qdrant_port"`
	QdrantAPIKey string `envconfig:"QDRANT_API_KEY" yaml:"qdrant_api_key"`
	QdrantUseTLS bool   `envconfig:"QDRANT_USE_TLS" yaml:"qdrant_use_tls"`

	RedisURL string `envconfig:"VECBENCH_REDIS_URL" yaml:"redis_url"`
	BoltPath string `envconfig:"VECBENCH_BOLT_PATH" yaml:"bolt_path"`

	TimeoutSec int `envconfig:"VECBENCH_BACKEND_TIMEOUT" yaml:"timeout_sec"`
}

// WorkloadConfig holds the benchmark parameters.
type WorkloadConfig struct {
	TopK        int  `envconfig:"VECBENCH_TOP_K" yaml:"top_k"`
	BatchSize   int  `envconfig:"VECBENCH_BATCH_SIZE" yaml:"batch_size"`
	Concurrency int  `envconfig:"VECBENCH_CONCURRENCY" yaml:"concurrency"`
	Warmup      int  `envconfig:"VECBENCH_WARMUP" yaml:"warmup"`
	KeepData    bool `envconfig:"VECBENCH_KEEP_DATA" yaml:"keep_data"`
}

// EmbedderConfig holds on-the-fly query embedding settings.
type EmbedderConfig struct {
	APIKey  string `envconfig:"OPENAI_API_KEY" yaml:"api_key"`
	BaseURL string `envconfig:"OPENAI_BASE_URL" yaml:"base_url"`
	Model   string `envconfig:"VECBENCH_EMBED_MODEL" yaml:"model"`
}

// ResultsConfig holds result persistence settings.
type ResultsConfig struct {
	Dir        string `envconfig:"VECBENCH_RESULTS_DIR" yaml:"dir"`
	HistoryURL string `envconfig:"VECBENCH_HISTORY_REDIS_URL" yaml:"history_url"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"VECBENCH_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"VECBENCH_KAFKA_BROKERS" yaml:"kafka_brokers"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"VECBENCH_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"VECBENCH_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds server security settings.
type SecurityConfig struct {
	APIKey    string `envconfig:"VECBENCH_API_KEY" yaml:"api_key"`
	RateLimit int    `envconfig:"VECBENCH_RATE_LIMIT" yaml:"rate_limit"` // requests/sec, 0 = disabled
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Defaults first, then file, then environment (highest priority)
	setDefaults(cfg)

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Dataset = DatasetConfig{
		Name:      "fiqa",
		ModelName: "text-embedding-3-small",
	}

	cfg.Backend = BackendConfig{
		Name:       "bolt",
		Namespace:  "vecbench",
		QdrantHost: "localhost",
		QdrantPort: 6334,
		RedisURL:   "redis://localhost:6379",
		BoltPath:   "./vecbench.db",
		TimeoutSec: 30,
	}

	cfg.Workload = WorkloadConfig{
		TopK:        10,
		BatchSize:   1000,
		Concurrency: 1,
		Warmup:      0,
	}

	cfg.Embedder = EmbedderConfig{
		Model: "text-embedding-3-small",
	}

	cfg.Results = ResultsConfig{
		Dir: "./results",
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	validBackends := map[string]bool{"bolt": true, "qdrant": true, "redisearch": true, "redis": true}
	if !validBackends[strings.ToLower(c.Backend.Name)] {
		errs = append(errs, fmt.Sprintf("invalid backend: %s (must be bolt, qdrant, or redisearch)", c.Backend.Name))
	}

	if c.Backend.Namespace == "" {
		errs = append(errs, "namespace must not be empty")
	}

	if c.Workload.TopK < 1 {
		errs = append(errs, "top_k must be positive")
	}

	if c.Workload.BatchSize < 1 {
		errs = append(errs, "batch_size must be positive")
	}

	if c.Workload.Concurrency < 1 {
		errs = append(errs, "concurrency must be positive")
	}

	if c.Workload.Warmup < 0 {
		errs = append(errs, "warmup must not be negative")
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BackendTimeout returns the backend call timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSec) * time.Second
}
