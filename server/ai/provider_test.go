package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/NikhilTirunagiri/petal-v1/store/cache"
)

func newEmbeddingBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		response := map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
			"model": "text-embedding-3-small",
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestEmbed(t *testing.T) {
	backend, calls := newEmbeddingBackend(t)
	provider := NewProvider(&Config{BaseURL: backend.URL, APIKey: "test"}, nil)

	vector, err := provider.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	require.EqualValues(t, 1, calls.Load())
}

func TestEmbedCacheFirst(t *testing.T) {
	backend, calls := newEmbeddingBackend(t)
	mr := miniredis.RunT(t)
	kv := cache.NewClient(cache.Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = kv.Close() })

	provider := NewProvider(&Config{BaseURL: backend.URL, APIKey: "test"}, cache.NewEmbeddingCache(kv))

	first, err := provider.Embed(context.Background(), "identical text")
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())

	second, err := provider.Embed(context.Background(), "identical text")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, calls.Load(), "second identical request must be served from cache")

	_, err = provider.Embed(context.Background(), "different text")
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestEmbedBatch(t *testing.T) {
	backend, _ := newEmbeddingBackend(t)
	provider := NewProvider(&Config{BaseURL: backend.URL, APIKey: "test"}, nil)

	_, err := provider.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
}
