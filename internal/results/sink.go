// Package results persists completed benchmark results: JSON files for the
// canonical records and an optional Redis history of headline metrics.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vecbench/vecbench/internal/bench"
)

// FileSink writes each result as a pretty-printed JSON file named
// {dataset}__{backend}__{model}__{timestamp}.json so directory listings
// sort and group naturally.
type FileSink struct {
	dir string
}

// NewFileSink creates a sink writing into dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Persist writes the result and returns the file path.
func (s *FileSink) Persist(result *bench.Result) (string, error) {
	path := filepath.Join(s.dir, filename(result))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing result: %w", err)
	}

	return path, nil
}

func filename(result *bench.Result) string {
	ts := time.Now().UTC().Format("20060102T150405Z")
	if result.Meta.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, result.Meta.Timestamp); err == nil {
			ts = parsed.Format("20060102T150405Z")
		}
	}

	parts := []string{
		sanitize(result.Context.Dataset),
		sanitize(result.Backend.Name),
		sanitize(result.Context.ModelName),
		ts,
	}
	return strings.Join(parts, "__") + ".json"
}

// sanitize keeps filenames portable: path separators and whitespace become
// dashes, empty fields become "unknown".
func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "-", ":", "-")
	return replacer.Replace(s)
}
