// Package queue carries draft identifiers between pipeline stages over Redis lists.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsPoster/internal/ports"
)

const (
	// Vetted holds drafts that passed critique and await review.
	Vetted = "vetted"
	// Approved holds drafts a human approved for publishing.
	Approved = "approved"
)

// Connect parses a redis:// URL and verifies the server answers.
// A bare host:port is accepted as well.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		opt = &redis.Options{Addr: rawURL}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisQueue is a FIFO list: LPUSH on enqueue, BRPOP on dequeue.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

var _ ports.DraftQueue = (*RedisQueue)(nil)

// NewRedisQueue binds a queue name under the configured key prefix.
func NewRedisQueue(client redis.Cmdable, prefix, name string) *RedisQueue {
	return &RedisQueue{client: client, key: Key(prefix, name)}
}

// Key builds "<prefix>:queue:<name>".
func Key(prefix, name string) string {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		return "queue:" + name
	}
	return prefix + ":queue:" + name
}

func (q *RedisQueue) Enqueue(ctx context.Context, draftID string) error {
	if err := q.client.LPush(ctx, q.key, draftID).Err(); err != nil {
		return fmt.Errorf("enqueue %s on %s: %w", draftID, q.key, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		return "", false, fmt.Errorf("dequeue from %s: %w", q.key, err)
	}
	if len(result) < 2 {
		return "", false, nil
	}
	return result[1], true, nil
}

// Len reports how many ids are waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
