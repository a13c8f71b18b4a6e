package workqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
)

// transientError reports itself as retryable.
type transientError struct{}

func (transientError) Error() string     { return "transient" }
func (transientError) IsRetryable() bool { return true }

func fastRetry(max int) RetryConfig {
	return RetryConfig{MaxRetries: max, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffFactor: 2}
}

func shutdown(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
}

func TestQueue_RunsTasks(t *testing.T) {
	q := New(zap.NewNop(), WithWorkers(2))

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, q.TryEnqueue(NewFuncTask("count", func(context.Context) error {
			ran.Add(1)
			return nil
		})))
	}

	shutdown(t, q)
	assert.Equal(t, int32(10), ran.Load())
	assert.Equal(t, Stats{Enqueued: 10, Completed: 10}, q.Stats())
}

func TestQueue_FullQueueRejectsWithoutBlocking(t *testing.T) {
	q := New(zap.NewNop(), WithWorkers(1), WithCapacity(1))

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, q.TryEnqueue(NewFuncTask("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	})))
	<-started

	require.NoError(t, q.TryEnqueue(NewFuncTask("waiting", func(context.Context) error { return nil })))

	done := make(chan error, 1)
	go func() {
		done <- q.TryEnqueue(NewFuncTask("overflow", func(context.Context) error { return nil }))
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, apperrors.ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("TryEnqueue blocked on a full queue")
	}

	close(release)
	shutdown(t, q)
	assert.Equal(t, int64(1), q.Stats().Dropped)
	assert.Equal(t, int64(2), q.Stats().Completed)
}

func TestQueue_RetriesTransientErrors(t *testing.T) {
	q := New(zap.NewNop(), WithRetryConfig(fastRetry(3)))

	var attempts atomic.Int32
	require.NoError(t, q.TryEnqueue(NewFuncTask("flaky", func(context.Context) error {
		if attempts.Add(1) < 3 {
			return transientError{}
		}
		return nil
	})))

	shutdown(t, q)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, int64(1), q.Stats().Completed)
}

func TestQueue_PermanentErrorsFailImmediately(t *testing.T) {
	q := New(zap.NewNop(), WithRetryConfig(fastRetry(5)))

	var attempts atomic.Int32
	require.NoError(t, q.TryEnqueue(NewFuncTask("broken", func(context.Context) error {
		attempts.Add(1)
		return errors.New("constraint violation")
	})))

	shutdown(t, q)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, int64(1), q.Stats().Failed)
}

func TestQueue_GivesUpAfterMaxRetries(t *testing.T) {
	q := New(zap.NewNop(), WithRetryConfig(fastRetry(2)))

	var attempts atomic.Int32
	require.NoError(t, q.TryEnqueue(NewFuncTask("always-transient", func(context.Context) error {
		attempts.Add(1)
		return transientError{}
	})))

	shutdown(t, q)
	assert.Equal(t, int32(3), attempts.Load(), "first attempt plus two retries")
	assert.Equal(t, int64(1), q.Stats().Failed)
}

func TestQueue_EnqueueAfterShutdown(t *testing.T) {
	q := New(zap.NewNop())
	shutdown(t, q)

	err := q.TryEnqueue(NewFuncTask("late", func(context.Context) error { return nil }))
	assert.ErrorIs(t, err, apperrors.ErrQueueClosed)

	// Second shutdown is a no-op.
	shutdown(t, q)
}

func TestQueue_ShutdownTimeoutCancelsRunningTasks(t *testing.T) {
	q := New(zap.NewNop())

	started := make(chan struct{})
	require.NoError(t, q.TryEnqueue(NewFuncTask("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), q.Stats().Failed)
}

func TestBaseTask(t *testing.T) {
	a := NewBaseTask("a")
	b := NewBaseTask("a")
	assert.Equal(t, "a", a.Name())
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
