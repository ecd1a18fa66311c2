package enrichment

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/NikhilTirunagiri/petal-v1/server/queue"
	"github.com/NikhilTirunagiri/petal-v1/store"
)

type mockSummary struct {
	processFn func(ctx context.Context, text string) (string, error)
	calls     atomic.Int32
}

func (m *mockSummary) ProcessText(ctx context.Context, text string) (string, error) {
	m.calls.Add(1)
	if m.processFn != nil {
		return m.processFn(ctx, text)
	}
	return "summary of: " + text, nil
}

func (m *mockSummary) DescribeSession(_ context.Context, _ []string) (string, error) {
	return "a session", nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
	calls   atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return 3 }

type mockStore struct {
	createFn func(ctx context.Context, create *store.Memory) (*store.Memory, error)
	creates  atomic.Int32
}

func (m *mockStore) CreateMemory(ctx context.Context, create *store.Memory) (*store.Memory, error) {
	m.creates.Add(1)
	if m.createFn != nil {
		return m.createFn(ctx, create)
	}
	create.UID = "mem-1"
	return create, nil
}

func TestProcessNow(t *testing.T) {
	ctx := context.Background()
	summary := &mockSummary{}
	embedder := &mockEmbedder{}
	st := &mockStore{}
	orchestrator := NewOrchestrator(st, summary, embedder, nil)

	memory, err := orchestrator.ProcessNow(ctx, &CaptureRequest{
		SessionUID: "sess-1",
		UserID:     "user-1",
		Text:       "the mitochondria is the powerhouse of the cell",
		Source:     "smart_copy",
	})
	require.NoError(t, err)
	require.Equal(t, "summary of: the mitochondria is the powerhouse of the cell", memory.ProcessedText)
	require.Equal(t, "the mitochondria is the powerhouse of the cell", memory.OriginalText)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, memory.Embedding)
	require.EqualValues(t, 1, summary.calls.Load())
	require.EqualValues(t, 1, embedder.calls.Load())
	require.EqualValues(t, 1, st.creates.Load())
}

func TestProcessNowRunsInParallel(t *testing.T) {
	ctx := context.Background()
	summaryEntered := make(chan struct{})
	embedEntered := make(chan struct{})

	summary := &mockSummary{
		processFn: func(ctx context.Context, text string) (string, error) {
			close(summaryEntered)
			select {
			case <-embedEntered:
			case <-time.After(2 * time.Second):
				return "", errors.New("embedding never started")
			}
			return "summary", nil
		},
	}
	embedder := &mockEmbedder{
		embedFn: func(ctx context.Context, text string) ([]float32, error) {
			close(embedEntered)
			select {
			case <-summaryEntered:
			case <-time.After(2 * time.Second):
				return nil, errors.New("summarization never started")
			}
			return []float32{1}, nil
		},
	}
	orchestrator := NewOrchestrator(&mockStore{}, summary, embedder, nil)

	_, err := orchestrator.ProcessNow(ctx, &CaptureRequest{Text: "x"})
	require.NoError(t, err)
}

func TestProcessNowEmbeddingFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	embedder := &mockEmbedder{
		embedFn: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("embedding backend down")
		},
	}
	st := &mockStore{}
	orchestrator := NewOrchestrator(st, &mockSummary{}, embedder, nil)

	memory, err := orchestrator.ProcessNow(ctx, &CaptureRequest{SessionUID: "sess-1", Text: "x"})
	require.NoError(t, err)
	require.Nil(t, memory.Embedding)
	require.EqualValues(t, 1, st.creates.Load())
}

func TestProcessNowSummarizationFailureAbortsCapture(t *testing.T) {
	ctx := context.Background()
	summary := &mockSummary{
		processFn: func(ctx context.Context, text string) (string, error) {
			return "", errors.New("model overloaded")
		},
	}
	st := &mockStore{}
	orchestrator := NewOrchestrator(st, summary, &mockEmbedder{}, nil)

	_, err := orchestrator.ProcessNow(ctx, &CaptureRequest{SessionUID: "sess-1", Text: "x"})
	require.Error(t, err)
	require.EqualValues(t, 0, st.creates.Load(), "nothing may be persisted when summarization fails")
}

func TestProcessDeferred(t *testing.T) {
	q := queue.New()
	q.Start(2)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	}()

	persisted := make(chan *store.Memory, 1)
	st := &mockStore{
		createFn: func(ctx context.Context, create *store.Memory) (*store.Memory, error) {
			create.UID = "mem-1"
			persisted <- create
			return create, nil
		},
	}
	orchestrator := NewOrchestrator(st, &mockSummary{}, &mockEmbedder{}, q)

	taskID, err := orchestrator.ProcessDeferred(&CaptureRequest{SessionUID: "sess-1", Text: "deferred"})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	select {
	case memory := <-persisted:
		require.Equal(t, "summary of: deferred", memory.ProcessedText)
	case <-time.After(5 * time.Second):
		t.Fatal("deferred enrichment did not run")
	}
}
