// Package enrichment turns raw captured text into a persisted memory: the
// text is summarized and embedded in parallel, then stored together with
// its vector.
package enrichment

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NikhilTirunagiri/petal-v1/server/ai"
	"github.com/NikhilTirunagiri/petal-v1/server/queue"
	"github.com/NikhilTirunagiri/petal-v1/store"
)

// deferredTimeout bounds a single deferred enrichment, including both model
// calls and the database write.
const deferredTimeout = 2 * time.Minute

// MemoryStore is the slice of the store the orchestrator persists through.
type MemoryStore interface {
	CreateMemory(ctx context.Context, create *store.Memory) (*store.Memory, error)
}

// CaptureRequest is a piece of raw text to enrich and persist.
type CaptureRequest struct {
	SessionUID string
	UserID     string
	Text       string
	Source     string
}

// Orchestrator coordinates summarization and embedding for captured text.
type Orchestrator struct {
	store   MemoryStore
	summary ai.SummaryService
	embed   ai.EmbeddingService
	queue   *queue.Queue
}

func NewOrchestrator(store MemoryStore, summary ai.SummaryService, embed ai.EmbeddingService, queue *queue.Queue) *Orchestrator {
	return &Orchestrator{
		store:   store,
		summary: summary,
		embed:   embed,
		queue:   queue,
	}
}

// ProcessNow enriches and persists synchronously. Summarization and embedding
// run in parallel. A summarization failure aborts the whole capture and
// nothing is persisted. An embedding failure is tolerated: the memory is
// stored with a nil vector and stays reachable through keyword search.
func (o *Orchestrator) ProcessNow(ctx context.Context, req *CaptureRequest) (*store.Memory, error) {
	var processedText string
	var vector []float32

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		text, err := o.summary.ProcessText(egCtx, req.Text)
		if err != nil {
			return err
		}
		processedText = text
		return nil
	})
	eg.Go(func() error {
		v, err := o.embed.Embed(egCtx, req.Text)
		if err != nil {
			slog.Warn("embedding generation failed, storing memory without vector",
				slog.String("session", req.SessionUID), slog.Any("err", err))
			return nil
		}
		vector = v
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	memory := &store.Memory{
		SessionUID:    req.SessionUID,
		UserID:        req.UserID,
		OriginalText:  req.Text,
		ProcessedText: processedText,
		Source:        req.Source,
		Embedding:     vector,
	}
	return o.store.CreateMemory(ctx, memory)
}

// ProcessDeferred schedules the enrichment on the background queue and
// returns immediately with the task id. The task runs with its own timeout,
// detached from the request context.
func (o *Orchestrator) ProcessDeferred(req *CaptureRequest) (string, error) {
	return o.queue.Enqueue("enrich_memory", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, deferredTimeout)
		defer cancel()

		memory, err := o.ProcessNow(ctx, req)
		if err != nil {
			return err
		}
		slog.Debug("deferred enrichment completed",
			slog.String("session", req.SessionUID), slog.String("memory", memory.UID))
		return nil
	})
}
