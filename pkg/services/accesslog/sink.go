// Package accesslog records access strings without slowing down requests.
// Entries are queued in process and delivered by background workers either
// straight to the accesslog table or to a Redis list drained by the worker
// command.
package accesslog

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/review-engine/pkg/database"
	"github.com/ekaya-inc/review-engine/pkg/repositories"
)

// Sink delivers one access-log entry.
type Sink interface {
	Write(ctx context.Context, text string) error
}

// DirectSink inserts entries into the accesslog table, one connection per write.
type DirectSink struct {
	repo     repositories.AccessLogRepository
	getScope database.ScopeFunc
}

func NewDirectSink(repo repositories.AccessLogRepository, getScope database.ScopeFunc) *DirectSink {
	return &DirectSink{repo: repo, getScope: getScope}
}

var _ Sink = (*DirectSink)(nil)

func (s *DirectSink) Write(ctx context.Context, text string) error {
	scopedCtx, cleanup, err := s.getScope(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for access log: %w", err)
	}
	defer cleanup()

	if _, err := s.repo.Create(scopedCtx, text); err != nil {
		return err
	}
	return nil
}

// ListPusher is the subset of *redis.Client used by RedisSink.
type ListPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisSink pushes entries onto a Redis list for the worker to consume.
type RedisSink struct {
	client ListPusher
	key    string
}

func NewRedisSink(client ListPusher, key string) *RedisSink {
	return &RedisSink{client: client, key: key}
}

var _ Sink = (*RedisSink)(nil)

func (s *RedisSink) Write(ctx context.Context, text string) error {
	if err := s.client.LPush(ctx, s.key, text).Err(); err != nil {
		return fmt.Errorf("push access log to %s: %w", s.key, err)
	}
	return nil
}
