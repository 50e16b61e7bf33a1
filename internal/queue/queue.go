// Package queue provides the dispatch channel between the API and the worker.
// Delivery is at-least-once: a message may be consumed more than once, and
// consumers must treat redelivery as a harmless overwrite.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmancini/pickflow/pkg/models"
	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Dequeue when no message arrived within the block window.
var ErrEmpty = errors.New("queue empty")

// Queue carries dispatch messages from the orchestrator to the processor.
type Queue interface {
	Enqueue(ctx context.Context, msg models.DispatchMessage) error
	Dequeue(ctx context.Context) (*models.DispatchMessage, error)
	Ping(ctx context.Context) error
}

// RedisQueue implements Queue on a Redis list using go-redis/v9.
type RedisQueue struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewRedisQueue creates a RedisQueue from a Redis URL.
func NewRedisQueue(redisURL, key string, blockTimeout time.Duration) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{
		client:       redis.NewClient(opts),
		key:          key,
		blockTimeout: blockTimeout,
	}, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg models.DispatchMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal dispatch message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue dispatch message: %w", err)
	}
	return nil
}

// Dequeue blocks for up to the configured window and returns ErrEmpty on a
// quiet queue so callers can loop and re-check ctx.
func (q *RedisQueue) Dequeue(ctx context.Context) (*models.DispatchMessage, error) {
	vals, err := q.client.BRPop(ctx, q.blockTimeout, q.key).Result()
	if err == redis.Nil {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue dispatch message: %w", err)
	}
	if len(vals) < 2 {
		return nil, fmt.Errorf("unexpected BRPOP response: %v", vals)
	}

	var msg models.DispatchMessage
	if err := json.Unmarshal([]byte(vals[1]), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal dispatch message: %w", err)
	}
	return &msg, nil
}

// Compile-time check that RedisQueue implements Queue.
var _ Queue = (*RedisQueue)(nil)
