package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/leadsmith/leadgen/internal/pipeline"
)

// DocumentQueue runs queued documents through the pipeline on a fixed
// worker pool. Enqueue blocks only when the buffer is full.
type DocumentQueue struct {
	pipe    *pipeline.Pipeline
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*DocumentQueue)

func WithWorkers(n int) Option {
	return func(q *DocumentQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *DocumentQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *DocumentQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewDocumentQueue(pipe *pipeline.Pipeline, logger *slog.Logger, opts ...Option) *DocumentQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &DocumentQueue{
		pipe:    pipe,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *DocumentQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					out := q.pipe.ProcessFile(ctx, job.Path)
					cancel()

					if out.Err != nil {
						q.logger.Error("queue.document.failed", "worker_id", workerID, "path", job.Path, "error", out.Err)
					} else {
						q.logger.Info("queue.document.processed",
							"worker_id", workerID,
							"path", job.Path,
							"lead_id", out.LeadID,
							"duplicate", out.Duplicate,
							"skipped", out.Skipped,
						)
					}
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *DocumentQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "path", job.Path)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.document.queued", "path", job.Path, "rescan", job.Rescan)
	default:
		q.logger.Warn("queue.full.backpressure", "path", job.Path)
		q.ch <- job
	}
	return nil
}

func (q *DocumentQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
