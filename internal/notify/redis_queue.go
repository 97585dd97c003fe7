package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultRedisQueueKey = "storefront:notifications"
	redisPollInterval    = 200 * time.Millisecond
	redisErrorBackoff    = time.Second
)

// RedisQueue is a Queue backed by a sorted set scored by NotBefore, so scheduled
// retries survive a restart.
type RedisQueue struct {
	client       redis.UniversalClient
	key          string
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewRedisQueue creates a queue stored under key. The client is owned by the caller.
func NewRedisQueue(client redis.UniversalClient, key string, logger zerolog.Logger) *RedisQueue {
	if key == "" {
		key = DefaultRedisQueueKey
	}
	return &RedisQueue{
		client:       client,
		key:          key,
		pollInterval: redisPollInterval,
		logger:       logger.With().Str("component", "notify-redis-queue").Logger(),
	}
}

func (q *RedisQueue) Push(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal notification task: %w", err)
	}

	return q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(task.NotBefore.UnixMilli()),
		Member: string(data),
	}).Err()
}

// Pop polls for the earliest due task and claims it with ZREM so that concurrent
// consumers never receive the same task.
func (q *RedisQueue) Pop(ctx context.Context) (Task, error) {
	for {
		task, ok, err := q.claim(ctx)
		if err == nil && ok {
			return task, nil
		}

		wait := q.pollInterval
		if err != nil {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			q.logger.Error().Err(err).Msg("failed to poll notification queue")
			wait = redisErrorBackoff
		}

		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (q *RedisQueue) claim(ctx context.Context) (Task, bool, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: 1,
	}).Result()
	if err != nil {
		return Task{}, false, fmt.Errorf("failed to read notification queue: %w", err)
	}
	if len(members) == 0 {
		return Task{}, false, nil
	}

	removed, err := q.client.ZRem(ctx, q.key, members[0]).Result()
	if err != nil {
		return Task{}, false, fmt.Errorf("failed to claim notification task: %w", err)
	}
	if removed == 0 {
		return Task{}, false, nil
	}

	var task Task
	if err := json.Unmarshal([]byte(members[0]), &task); err != nil {
		q.logger.Error().Err(err).Msg("discarding undecodable notification task")
		return Task{}, false, nil
	}

	return task, true, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	return int(n), err
}

// Close is a no-op; the Redis client is closed by its owner.
func (q *RedisQueue) Close() error {
	return nil
}
