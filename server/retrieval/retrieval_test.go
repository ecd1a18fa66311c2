package retrieval

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/NikhilTirunagiri/petal-v1/store"
)

type stubStrategy struct {
	name    string
	results []*store.MemoryWithScore
	err     error
	calls   int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Search(_ context.Context, _ *Request) ([]*store.MemoryWithScore, error) {
	s.calls++
	return s.results, s.err
}

func result(uid string, score float32) *store.MemoryWithScore {
	return &store.MemoryWithScore{
		Memory: &store.Memory{UID: uid},
		Score:  score,
	}
}

func TestChainFirstStrategyWins(t *testing.T) {
	first := &stubStrategy{name: "vector", results: []*store.MemoryWithScore{result("m1", 0.9)}}
	second := &stubStrategy{name: "keyword"}
	chain := NewChain(first, second)

	results, used, err := chain.Search(context.Background(), &Request{SessionUID: "s", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, "vector", used)
	require.Len(t, results, 1)
	require.Equal(t, 0, second.calls, "fallback must not run when the first strategy has results")
}

func TestChainFallsBackOnEmpty(t *testing.T) {
	first := &stubStrategy{name: "vector"}
	second := &stubStrategy{name: "keyword", results: []*store.MemoryWithScore{result("m2", 0.5)}}
	chain := NewChain(first, second)

	results, used, err := chain.Search(context.Background(), &Request{SessionUID: "s", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, "keyword", used)
	require.Len(t, results, 1)
	require.Equal(t, "m2", results[0].Memory.UID)
}

func TestChainFallsBackOnError(t *testing.T) {
	first := &stubStrategy{name: "vector", err: errors.New("embedding backend down")}
	second := &stubStrategy{name: "keyword", results: []*store.MemoryWithScore{result("m3", 0.4)}}
	chain := NewChain(first, second)

	results, used, err := chain.Search(context.Background(), &Request{SessionUID: "s", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, "keyword", used)
	require.Len(t, results, 1)
}

func TestChainSurfacesFinalFailure(t *testing.T) {
	first := &stubStrategy{name: "vector", err: errors.New("embedding backend down")}
	second := &stubStrategy{name: "keyword", err: errors.New("db gone")}
	chain := NewChain(first, second)

	_, used, err := chain.Search(context.Background(), &Request{SessionUID: "s", Query: "q"})
	require.Error(t, err)
	require.Equal(t, "keyword", used)
	require.Contains(t, err.Error(), "keyword")
}

func TestChainAllEmpty(t *testing.T) {
	chain := NewChain(&stubStrategy{name: "vector"}, &stubStrategy{name: "keyword"})

	results, used, err := chain.Search(context.Background(), &Request{SessionUID: "s", Query: "q"})
	require.NoError(t, err)
	require.Empty(t, results)
	require.Equal(t, "keyword", used)
}

func TestChainNoStrategies(t *testing.T) {
	chain := NewChain()
	_, _, err := chain.Search(context.Background(), &Request{Query: "q"})
	require.Error(t, err)
}
