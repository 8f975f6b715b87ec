package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.Backend.Name != "bolt" {
		t.Errorf("backend = %q, want bolt", cfg.Backend.Name)
	}
	if cfg.Workload.TopK != 10 || cfg.Workload.BatchSize != 1000 || cfg.Workload.Concurrency != 1 {
		t.Errorf("workload = %+v", cfg.Workload)
	}
	if cfg.Bus.Type != "memory" {
		t.Errorf("bus type = %q, want memory", cfg.Bus.Type)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VECBENCH_BACKEND", "qdrant")
	t.Setenv("VECBENCH_TOP_K", "25")
	t.Setenv("VECBENCH_CONCURRENCY", "8")
	t.Setenv("QDRANT_HOST", "qdrant.internal")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Backend.Name != "qdrant" {
		t.Errorf("backend = %q, want qdrant", cfg.Backend.Name)
	}
	if cfg.Workload.TopK != 25 {
		t.Errorf("top_k = %d, want 25", cfg.Workload.TopK)
	}
	if cfg.Workload.Concurrency != 8 {
		t.Errorf("concurrency = %d, want 8", cfg.Workload.Concurrency)
	}
	if cfg.Backend.QdrantHost != "qdrant.internal" {
		t.Errorf("qdrant host = %q", cfg.Backend.QdrantHost)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
port: 9090
backend:
  name: redisearch
  redis_url: redis://cache:6379
workload:
  top_k: 5
  batch_size: 200
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.Backend.Name != "redisearch" || cfg.Backend.RedisURL != "redis://cache:6379" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Workload.TopK != 5 || cfg.Workload.BatchSize != 200 {
		t.Errorf("workload = %+v", cfg.Workload)
	}

	// File values do not clobber untouched defaults.
	if cfg.Workload.Concurrency != 1 {
		t.Errorf("concurrency = %d, want default 1", cfg.Workload.Concurrency)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VECBENCH_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() with missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"bad backend", func(c *Config) { c.Backend.Name = "pinecone" }, true},
		{"backend case insensitive", func(c *Config) { c.Backend.Name = "Qdrant" }, false},
		{"empty namespace", func(c *Config) { c.Backend.Namespace = "" }, true},
		{"zero top_k", func(c *Config) { c.Workload.TopK = 0 }, true},
		{"zero batch", func(c *Config) { c.Workload.BatchSize = 0 }, true},
		{"negative warmup", func(c *Config) { c.Workload.Warmup = -1 }, true},
		{"bad bus", func(c *Config) { c.Bus.Type = "nats" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 8080}
	if got := cfg.Address(); got != "127.0.0.1:8080" {
		t.Errorf("Address() = %q", got)
	}
}
