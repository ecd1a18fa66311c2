// Package queue implements the in-process background task queue used for
// deferred enrichment. Tasks are fire-and-forget: failures are logged at the
// worker boundary and never reach the enqueuer, and nothing is persisted or
// retried. If the process dies mid-task the task is lost.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pollInterval bounds how long an idle worker sleeps before re-checking the
// queue, so a stop signal is observed promptly even when no work arrives.
const pollInterval = 100 * time.Millisecond

// TaskFunc is the unit of background work. The error return exists only for
// logging; it never propagates to the enqueuer.
type TaskFunc func(ctx context.Context) error

type task struct {
	id         string
	name       string
	fn         TaskFunc
	enqueuedAt time.Time
}

// Queue is a FIFO background task queue served by a fixed pool of workers.
// The queue itself is unbounded; Enqueue never blocks.
type Queue struct {
	mu      sync.Mutex
	tasks   []*task
	running bool

	// pending counts enqueued-but-not-finished tasks so Stop can drain.
	pending sync.WaitGroup
	workers sync.WaitGroup
	stopCh  chan struct{}
}

// New creates a stopped queue.
func New() *Queue {
	return &Queue{}
}

// Start transitions the queue to running and spawns workerCount worker loops.
// Starting an already running queue is a no-op.
func (q *Queue) Start(workerCount int) {
	if workerCount <= 0 {
		workerCount = 2
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})

	slog.Info("starting background task queue", "workers", workerCount)
	for i := 0; i < workerCount; i++ {
		q.workers.Add(1)
		go q.worker(i)
	}
}

// Enqueue appends a task and returns its generated identifier immediately.
// The caller has no further visibility into completion, success or failure.
func (q *Queue) Enqueue(name string, fn TaskFunc) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return "", fmt.Errorf("task queue is not running")
	}

	t := &task{
		id:         uuid.New().String(),
		name:       name,
		fn:         fn,
		enqueuedAt: time.Now(),
	}
	q.tasks = append(q.tasks, t)
	q.pending.Add(1)

	slog.Debug("enqueued task", "task_id", t.id, "task", t.name)
	return t.id, nil
}

// Stop rejects further enqueues, blocks until every already-enqueued task has
// completed, then signals the workers and waits for them to exit. The context
// bounds only the drain wait; tasks already claimed still run to completion.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	stopCh := q.stopCh
	q.mu.Unlock()

	slog.Info("stopping background task queue")

	// Drain: by construction nothing remains queued after this, so the
	// cancel below only ever interrupts idle workers.
	drained := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		// Give up waiting but still release the workers; they keep pulling
		// until the queue is empty, so nothing already enqueued is dropped.
		close(stopCh)
		return ctx.Err()
	}

	close(stopCh)
	q.workers.Wait()
	slog.Info("background task queue stopped")
	return nil
}

// Len returns the number of tasks waiting for a worker.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *Queue) dequeue() *task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t
}

func (q *Queue) worker(id int) {
	defer q.workers.Done()
	slog.Debug("worker started", "worker", id)

	for {
		t := q.dequeue()
		if t == nil {
			select {
			case <-q.stopCh:
				slog.Debug("worker stopped", "worker", id)
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		q.execute(id, t)
	}
}

// execute runs one task. Any error or panic is caught here, logged with full
// context, and swallowed; a failing task must not crash the worker or affect
// other tasks.
func (q *Queue) execute(workerID int, t *task) {
	defer q.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked",
				"worker", workerID,
				"task_id", t.id,
				"task", t.name,
				"panic", r)
		}
	}()

	start := time.Now()
	slog.Debug("processing task", "worker", workerID, "task_id", t.id, "task", t.name)

	if err := t.fn(context.Background()); err != nil {
		slog.Error("task failed",
			"worker", workerID,
			"task_id", t.id,
			"task", t.name,
			"queued_for", time.Since(t.enqueuedAt),
			"error", err)
		return
	}

	slog.Debug("task completed",
		"worker", workerID,
		"task_id", t.id,
		"task", t.name,
		"duration", time.Since(start))
}
