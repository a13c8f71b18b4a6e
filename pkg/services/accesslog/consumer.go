package accesslog

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/retry"
)

// ListPopper is the subset of *redis.Client used by Consumer.
type ListPopper interface {
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

const (
	defaultPollTimeout = 5 * time.Second
	errorBackoff       = time.Second
)

// Consumer drains the Redis access-log list into a Sink, oldest entry first.
type Consumer struct {
	client      ListPopper
	key         string
	sink        Sink
	pollTimeout time.Duration
	retryConfig *retry.Config
	logger      *zap.Logger
}

func NewConsumer(client ListPopper, key string, sink Sink, logger *zap.Logger) *Consumer {
	return &Consumer{
		client:      client,
		key:         key,
		sink:        sink,
		pollTimeout: defaultPollTimeout,
		retryConfig: retry.DefaultConfig(),
		logger:      logger.Named("accesslog-consumer"),
	}
}

// Run consumes entries until ctx is done. Entries that cannot be stored after
// retries are logged and dropped.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Consuming access log", zap.String("key", c.key))

	for {
		if ctx.Err() != nil {
			c.logger.Info("Access log consumer stopped")
			return nil
		}

		text, ok, err := c.pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("Failed to read access log queue", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}
		if !ok {
			continue
		}

		c.store(ctx, text)
	}
}

// pop waits up to pollTimeout for one entry. ok is false when none arrived.
func (c *Consumer) pop(ctx context.Context) (string, bool, error) {
	res, err := c.client.BRPop(ctx, c.pollTimeout, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

func (c *Consumer) store(ctx context.Context, text string) {
	// A popped entry is no longer in Redis; finish writing it even during shutdown.
	writeCtx := context.WithoutCancel(ctx)
	err := retry.DoIfRetryable(writeCtx, c.retryConfig, func() error {
		return c.sink.Write(writeCtx, text)
	})
	if err != nil {
		c.logger.Error("Failed to store access log entry", zap.Error(err))
		return
	}
	c.logger.Debug("Stored access log entry", zap.Int("len", len(text)))
}
