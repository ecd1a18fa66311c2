package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// EmbeddingTTL is the expiry for cached embedding vectors.
const EmbeddingTTL = 24 * time.Hour

// embeddingKeyVersion is bumped when the embedding model changes, so stale
// vectors age out without a manual purge.
const embeddingKeyVersion = "v1"

// EmbeddingCache is a content-addressed cache of embedding vectors. Embeddings
// are a pure function of text, so identical text from different sessions or
// users shares one entry.
type EmbeddingCache struct {
	kv *Client
}

// NewEmbeddingCache creates an embedding cache on top of the shared client.
func NewEmbeddingCache(kv *Client) *EmbeddingCache {
	return &EmbeddingCache{kv: kv}
}

func embeddingKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embed:%s:%s", embeddingKeyVersion, hex.EncodeToString(hash[:]))
}

// Get returns the cached embedding vector for text.
func (c *EmbeddingCache) Get(ctx context.Context, text string) ([]float32, bool) {
	raw, ok := c.kv.Get(ctx, embeddingKey(text))
	if !ok {
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		slog.Warn("failed to decode cached embedding", "error", err)
		return nil, false
	}
	return vector, true
}

// Put stores the embedding vector for text with a 24 hour expiry.
func (c *EmbeddingCache) Put(ctx context.Context, text string, vector []float32) bool {
	raw, err := json.Marshal(vector)
	if err != nil {
		slog.Warn("failed to encode embedding for cache", "error", err)
		return false
	}
	return c.kv.Set(ctx, embeddingKey(text), string(raw), EmbeddingTTL)
}
