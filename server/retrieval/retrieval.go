// Package retrieval runs memory search as an explicit ordered chain of
// strategies. Each strategy is tried in turn; a strategy that errors or
// returns nothing hands over to the next one, and only the final strategy's
// failure is surfaced to the caller.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/NikhilTirunagiri/petal-v1/server/ai"
	"github.com/NikhilTirunagiri/petal-v1/store"
)

// DefaultThreshold is the minimum cosine similarity for a vector match.
const DefaultThreshold = 0.3

// Request is a session-scoped search.
type Request struct {
	SessionUID string
	Query      string
	Limit      int
}

// Strategy is one way of finding memories for a query.
type Strategy interface {
	Name() string
	Search(ctx context.Context, req *Request) ([]*store.MemoryWithScore, error)
}

// Searcher is the slice of the store the strategies read through.
type Searcher interface {
	VectorSearchMemories(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.MemoryWithScore, error)
	KeywordSearchMemories(ctx context.Context, sessionUID, query string, limit int) ([]*store.MemoryWithScore, error)
}

// Chain tries its strategies in order.
type Chain struct {
	strategies []Strategy
}

func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// NewDefaultChain builds the standard chain: semantic vector search first,
// keyword matching as the fallback.
func NewDefaultChain(searcher Searcher, embed ai.EmbeddingService) *Chain {
	return NewChain(
		&VectorStrategy{searcher: searcher, embed: embed, threshold: DefaultThreshold},
		&KeywordStrategy{searcher: searcher},
	)
}

// Search runs the chain and returns the results together with the name of
// the strategy that produced them. When every strategy comes back empty the
// result is empty with no error; when the last strategy fails its error is
// returned.
func (c *Chain) Search(ctx context.Context, req *Request) ([]*store.MemoryWithScore, string, error) {
	if len(c.strategies) == 0 {
		return nil, "", errors.New("no search strategies configured")
	}

	for i, strategy := range c.strategies {
		results, err := strategy.Search(ctx, req)
		if err != nil {
			if i == len(c.strategies)-1 {
				return nil, strategy.Name(), errors.Wrapf(err, "search strategy %s failed", strategy.Name())
			}
			slog.Warn("search strategy failed, falling back",
				slog.String("strategy", strategy.Name()), slog.Any("err", err))
			continue
		}
		if len(results) > 0 {
			return results, strategy.Name(), nil
		}
	}
	return []*store.MemoryWithScore{}, c.strategies[len(c.strategies)-1].Name(), nil
}

// VectorStrategy embeds the query and searches by cosine similarity.
type VectorStrategy struct {
	searcher  Searcher
	embed     ai.EmbeddingService
	threshold float32
}

func (s *VectorStrategy) Name() string {
	return "vector"
}

func (s *VectorStrategy) Search(ctx context.Context, req *Request) ([]*store.MemoryWithScore, error) {
	vector, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}
	return s.searcher.VectorSearchMemories(ctx, &store.VectorSearchOptions{
		SessionUID: req.SessionUID,
		Vector:     vector,
		Threshold:  s.threshold,
		Limit:      req.Limit,
	})
}

// KeywordStrategy matches memories by word overlap with the query.
type KeywordStrategy struct {
	searcher Searcher
}

func (s *KeywordStrategy) Name() string {
	return "keyword"
}

func (s *KeywordStrategy) Search(ctx context.Context, req *Request) ([]*store.MemoryWithScore, error) {
	return s.searcher.KeywordSearchMemories(ctx, req.SessionUID, req.Query, req.Limit)
}
