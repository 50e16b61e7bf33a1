// Package notify broadcasts job progress to real-time subscribers.
// Publishing is best-effort: a failed publish is logged and never fails the job.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dmancini/pickflow/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Publisher is the progress side channel. Implementations must not block
// job processing on delivery.
type Publisher interface {
	Publish(ctx context.Context, event models.ProgressEvent)
}

// RedisPublisher publishes progress events on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a RedisPublisher from a Redis URL.
func NewRedisPublisher(redisURL, channel string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisPublisher{client: redis.NewClient(opts), channel: channel}, nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Publish sends the event and swallows any failure. Subscribers get no
// delivery guarantee; the job record is the source of truth.
func (p *RedisPublisher) Publish(ctx context.Context, event models.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("marshal progress event failed", "error", err, "job_id", event.JobID)
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		slog.Warn("publish progress event failed", "error", err, "job_id", event.JobID, "status", event.Status)
	}
}

// Compile-time check that RedisPublisher implements Publisher.
var _ Publisher = (*RedisPublisher)(nil)
