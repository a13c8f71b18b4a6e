package workqueue

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
	"github.com/ekaya-inc/review-engine/pkg/retry"
)

// RetryConfig configures retry behavior for failed tasks.
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration (cap)
	BackoffFactor  float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns the retry policy for short database/network writes:
// 3 retries at 200ms, 400ms, 800ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Stats are cumulative counters since the queue was created.
type Stats struct {
	Enqueued  int64
	Completed int64
	Failed    int64
	Dropped   int64
}

// Queue runs tasks on a fixed number of workers.
type Queue struct {
	mu     sync.RWMutex
	tasks  chan Task
	closed bool

	workers     int
	retryConfig RetryConfig
	wg          sync.WaitGroup

	// ctx is handed to running tasks and cancelled when Shutdown gives up.
	ctx    context.Context
	cancel context.CancelFunc

	enqueued  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	logger *zap.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(config RetryConfig) QueueOption {
	return func(q *Queue) {
		q.retryConfig = config
	}
}

// WithWorkers sets the number of worker goroutines (default 1).
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithCapacity sets how many tasks may wait for a worker (default 100).
func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.tasks = make(chan Task, n)
		}
	}
}

// New creates a work queue and starts its workers.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:       make(chan Task, 100),
		workers:     1,
		retryConfig: DefaultRetryConfig(),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("workqueue"),
	}

	for _, opt := range opts {
		opt(q)
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

// TryEnqueue adds a task without blocking. It returns apperrors.ErrQueueFull
// when every slot is taken and apperrors.ErrQueueClosed after Shutdown.
func (q *Queue) TryEnqueue(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		return apperrors.ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		q.enqueued.Add(1)
		return nil
	default:
		q.dropped.Add(1)
		return apperrors.ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued tasks to finish.
// If ctx ends first, running tasks are cancelled, pending ones are
// abandoned, and ctx.Err() is returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-drained
		stats := q.Stats()
		q.logger.Warn("Queue shut down before draining",
			zap.Int64("unfinished", stats.Enqueued-stats.Completed-stats.Failed))
		return ctx.Err()
	}
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
	}
}

// Len returns the number of tasks waiting for a worker.
func (q *Queue) Len() int {
	return len(q.tasks)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		if q.ctx.Err() != nil {
			// Shutdown timed out; drain the channel without running.
			continue
		}
		q.runTask(task)
	}
}

// runTask executes a task with retry logic for transient errors.
func (q *Queue) runTask(task Task) {
	var lastErr error
	attempt := 0

	for ; attempt <= q.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := q.calculateBackoff(attempt)
			q.logger.Debug("retrying task after backoff",
				zap.String("task_id", task.ID()),
				zap.String("task_name", task.Name()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))

			timer := time.NewTimer(backoff)
			select {
			case <-q.ctx.Done():
				timer.Stop()
				q.fail(task, q.ctx.Err(), attempt)
				return
			case <-timer.C:
			}
		}

		err := task.Execute(q.ctx)
		if err == nil {
			q.completed.Add(1)
			return
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || !retry.IsRetryable(err) {
			break
		}
	}

	q.fail(task, lastErr, min(attempt, q.retryConfig.MaxRetries))
}

func (q *Queue) fail(task Task, err error, attempts int) {
	q.failed.Add(1)
	q.logger.Error("task failed",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.Int("retries", attempts),
		zap.Error(err))
}

// calculateBackoff computes the backoff duration for a retry attempt.
// Uses exponential backoff with ±10% jitter.
func (q *Queue) calculateBackoff(attempt int) time.Duration {
	backoff := float64(q.retryConfig.InitialBackoff) *
		math.Pow(q.retryConfig.BackoffFactor, float64(attempt-1))

	if q.retryConfig.MaxBackoff > 0 && backoff > float64(q.retryConfig.MaxBackoff) {
		backoff = float64(q.retryConfig.MaxBackoff)
	}

	jitter := backoff * 0.1 * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}
