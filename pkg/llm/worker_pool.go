package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPoolConfig configures the LLM worker pool.
type WorkerPoolConfig struct {
	MaxConcurrent int // Maximum concurrent LLM calls (default: 1)
}

// WorkerPool runs LLM calls with bounded parallelism.
type WorkerPool struct {
	config WorkerPoolConfig
	logger *zap.Logger
}

// NewWorkerPool creates a new LLM worker pool.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	return &WorkerPool{
		config: config,
		logger: logger.Named("llm-worker-pool"),
	}
}

// MaxConcurrent returns the configured parallelism.
func (p *WorkerPool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all items on at most MaxConcurrent goroutines and returns
// the results in submission order. Every item gets a result: items not started
// before ctx ends carry ctx.Err(). With MaxConcurrent 1 items run serially on
// the calling goroutine.
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	var mu sync.Mutex
	completed := 0

	run := func(i int) {
		item := items[i]
		var r WorkResult[T]
		r.ID = item.ID
		if err := ctx.Err(); err != nil {
			r.Err = err
		} else {
			r.Result, r.Err = item.Execute(ctx)
		}
		results[i] = r

		mu.Lock()
		completed++
		done := completed
		mu.Unlock()
		if onProgress != nil {
			onProgress(done, len(items))
		}
	}

	workers := min(pool.config.MaxConcurrent, len(items))
	if workers == 1 {
		for i := range items {
			run(i)
		}
		return results
	}

	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				run(i)
			}
		}()
	}
	for i := range items {
		next <- i
	}
	close(next)
	wg.Wait()

	pool.logger.Debug("Processed work items",
		zap.Int("items", len(items)),
		zap.Int("workers", workers))

	return results
}
