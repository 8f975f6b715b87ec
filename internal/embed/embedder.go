// Package embed provides query embedding for runs whose query vectors are
// not pre-computed. Embedding time is measured separately from search time.
package embed

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

// Embedder turns query text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIConfig holds settings for the OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // Optional, for OpenAI-compatible servers
	Model   string
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAI creates an embedder against the configured endpoint.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.ValidationError("embedder API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.ValidationError("embedder model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(cfg.Model),
	}, nil
}

// Embed returns the dense vector for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "embedding request failed", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New(errors.CodeInternal, "embedding response contained no vectors")
	}

	return resp.Data[0].Embedding, nil
}
