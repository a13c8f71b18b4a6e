package accesslog

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/logging"
	"github.com/ekaya-inc/review-engine/pkg/services/workqueue"
)

// Logger records an access string. Log never blocks and never fails the caller.
type Logger interface {
	Log(text string)
}

type queueLogger struct {
	queue  *workqueue.Queue
	sink   Sink
	logger *zap.Logger
}

// NewLogger returns a Logger that hands entries to queue for delivery to sink.
func NewLogger(queue *workqueue.Queue, sink Sink, logger *zap.Logger) Logger {
	return &queueLogger{
		queue:  queue,
		sink:   sink,
		logger: logger.Named("accesslog"),
	}
}

func (l *queueLogger) Log(text string) {
	task := workqueue.NewFuncTask("access-log", func(ctx context.Context) error {
		return l.sink.Write(ctx, text)
	})
	if err := l.queue.TryEnqueue(task); err != nil {
		l.logger.Warn("Dropped access log entry",
			zap.String("text", logging.TruncateString(text, 100)),
			zap.Error(err))
	}
}

// NopLogger discards every entry.
type NopLogger struct{}

func (NopLogger) Log(string) {}
