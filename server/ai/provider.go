// Package ai provides the external AI collaborators: the embedding provider
// and the summarization provider.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/NikhilTirunagiri/petal-v1/store/cache"
)

// maxEmbedChars is a conservative input limit (~8K tokens) for the embedding
// model; longer texts are truncated with a warning.
const maxEmbedChars = 30000

// maxBatchSize is the provider-side limit on texts per batch request.
const maxBatchSize = 2048

// EmbeddingService generates embedding vectors for text.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Config holds the embedding provider configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	Dimensions     int
	MaxRetries     int
	Timeout        time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://api.openai.com/v1",
		EmbeddingModel: "text-embedding-3-small",
		Dimensions:     1536,
		MaxRetries:     3,
		Timeout:        30 * time.Second,
	}
}

// Provider generates embeddings through an OpenAI-compatible API, consulting
// the content-addressed embedding cache before every single-text call.
type Provider struct {
	client *openai.Client
	config *Config
	cache  *cache.EmbeddingCache
}

// NewProvider creates a new embedding provider. embeddingCache may be nil to
// disable caching.
func NewProvider(cfg *Config, embeddingCache *cache.EmbeddingCache) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		cache:  embeddingCache,
	}
}

// Embed generates an embedding vector for the given text, cache-first.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	text = truncate(text)

	if p.cache != nil {
		if vector, ok := p.cache.Get(ctx, text); ok {
			slog.Debug("embedding served from cache", "chars", len(text))
			return vector, nil
		}
	}

	var result []float32
	err := p.doWithRetry(ctx, func() error {
		req := openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(p.config.EmbeddingModel),
		}

		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("empty embedding response")
		}
		result = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if p.cache != nil {
		p.cache.Put(ctx, text, result)
	}

	return result, nil
}

// EmbedBatch generates embeddings for multiple texts in a single API call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > maxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds limit of %d", len(texts), maxBatchSize)
	}

	truncated := make([]string, len(texts))
	for i, text := range texts {
		truncated[i] = truncate(text)
	}

	var result [][]float32
	err := p.doWithRetry(ctx, func() error {
		req := openai.EmbeddingRequest{
			Input: truncated,
			Model: openai.EmbeddingModel(p.config.EmbeddingModel),
		}

		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(truncated) {
			return fmt.Errorf("embedding response count mismatch: got %d, want %d", len(resp.Data), len(truncated))
		}
		result = make([][]float32, len(resp.Data))
		for i, item := range resp.Data {
			result[i] = item.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch embeddings: %w", err)
	}

	return result, nil
}

// Dimensions returns the dimensionality of generated embeddings.
func (p *Provider) Dimensions() int {
	return p.config.Dimensions
}

func truncate(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	slog.Warn("embedding input truncated", "from", len(text), "to", maxEmbedChars)
	return text[:maxEmbedChars]
}

// doWithRetry executes a function with exponential backoff retry.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("embedding request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

var _ EmbeddingService = (*Provider)(nil)
