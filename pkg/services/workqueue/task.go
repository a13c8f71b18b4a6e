// Package workqueue runs background tasks on a fixed set of workers fed by a
// bounded queue. Enqueueing never blocks; a full queue rejects the task.
package workqueue

import (
	"context"

	"github.com/google/uuid"
)

// Task is the interface that all work queue tasks must implement.
type Task interface {
	// ID returns a unique identifier for this task.
	ID() string

	// Name returns a human-readable name for logs.
	Name() string

	// Execute runs the task. ctx is cancelled when the queue is shut down
	// without enough time to drain.
	Execute(ctx context.Context) error
}

// BaseTask provides common task functionality.
// Embed this in concrete task implementations.
type BaseTask struct {
	id   string
	name string
}

// NewBaseTask creates a new base task.
func NewBaseTask(name string) BaseTask {
	return BaseTask{
		id:   uuid.New().String(),
		name: name,
	}
}

// ID returns the task ID.
func (t BaseTask) ID() string {
	return t.id
}

// Name returns the task name.
func (t BaseTask) Name() string {
	return t.name
}

// FuncTask adapts a function to the Task interface.
type FuncTask struct {
	BaseTask
	fn func(ctx context.Context) error
}

// NewFuncTask creates a task that runs fn.
func NewFuncTask(name string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{BaseTask: NewBaseTask(name), fn: fn}
}

// Execute implements Task.
func (t *FuncTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}
