package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig contains configuration for the Redis queue backend.
type RedisConfig struct {
	// URL is the Redis connection URL.
	URL string `mapstructure:"url" yaml:"url"`

	// KeyPrefix namespaces all queue keys.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *RedisConfig) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "redis://localhost:6379/0"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "quern:jobs:"
	}
}

// RedisQueue is a Redis-backed job queue.
//
// Layout under the key prefix:
//   - pending: list of document IDs, FIFO
//   - payload: hash of document ID to job JSON
//   - processing: zset of document IDs scored by lease deadline (unix)
//   - dead: list of document IDs that exhausted their retries
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(ctx context.Context, config RedisConfig) (*RedisQueue, error) {
	config.ApplyDefaults()

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{
		client: client,
		prefix: config.KeyPrefix,
	}, nil
}

func (q *RedisQueue) pendingKey() string    { return q.prefix + "pending" }
func (q *RedisQueue) payloadKey() string    { return q.prefix + "payload" }
func (q *RedisQueue) processingKey() string { return q.prefix + "processing" }
func (q *RedisQueue) deadKey() string       { return q.prefix + "dead" }

// Enqueue stores the job payload and appends its ID to the pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.payloadKey(), job.DocumentID, payload)
		pipe.RPush(ctx, q.pendingKey(), job.DocumentID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Lease pops the next pending job and records its deadline in the
// processing set. Blocks up to the lease window when the queue is empty.
func (q *RedisQueue) Lease(ctx context.Context, ttl time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, leaseBlockWindow, q.pendingKey()).Result()
	if err == redis.Nil {
		return nil, nil // Window elapsed, no job available.
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lease job: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	documentID := result[1]

	payload, err := q.client.HGet(ctx, q.payloadKey(), documentID).Result()
	if err == redis.Nil {
		// Payload settled concurrently; nothing to lease.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job payload: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	deadline := time.Now().Add(ttl)
	err = q.client.ZAdd(ctx, q.processingKey(), redis.Z{
		Score:  float64(deadline.Unix()),
		Member: documentID,
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}
	return &job, nil
}

// Ack settles a leased job. Unknown IDs are ignored.
func (q *RedisQueue) Ack(ctx context.Context, documentID string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.processingKey(), documentID)
		pipe.HDel(ctx, q.payloadKey(), documentID)
		pipe.LRem(ctx, q.pendingKey(), 0, documentID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack releases a leased job back to pending or into the dead-letter
// queue.
func (q *RedisQueue) Nack(ctx context.Context, job *Job, requeue bool) error {
	if requeue {
		retried := *job
		retried.Attempt++
		retried.EnqueuedAt = time.Now().UTC()
		payload, err := json.Marshal(&retried)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, q.processingKey(), job.DocumentID)
			pipe.HSet(ctx, q.payloadKey(), job.DocumentID, payload)
			pipe.RPush(ctx, q.pendingKey(), job.DocumentID)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to requeue job: %w", err)
		}
		return nil
	}

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.processingKey(), job.DocumentID)
		pipe.RPush(ctx, q.deadKey(), job.DocumentID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter job: %w", err)
	}
	return nil
}

// ReapExpired moves jobs with passed deadlines back to pending, or to
// the dead-letter queue once maxAttempts is exhausted.
func (q *RedisQueue) ReapExpired(ctx context.Context, maxAttempts int) ([]*Job, []*Job, error) {
	now := time.Now().Unix()
	expired, err := q.client.ZRangeByScore(ctx, q.processingKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list expired leases: %w", err)
	}

	var requeued, dead []*Job
	for _, documentID := range expired {
		payload, err := q.client.HGet(ctx, q.payloadKey(), documentID).Result()
		if err == redis.Nil {
			q.client.ZRem(ctx, q.processingKey(), documentID)
			continue
		}
		if err != nil {
			return requeued, dead, fmt.Errorf("failed to load expired job: %w", err)
		}

		var job Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return requeued, dead, fmt.Errorf("failed to unmarshal expired job: %w", err)
		}

		if job.Attempt < maxAttempts {
			job.Attempt++
			job.EnqueuedAt = time.Now().UTC()
			updated, err := json.Marshal(&job)
			if err != nil {
				return requeued, dead, err
			}
			_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZRem(ctx, q.processingKey(), documentID)
				pipe.HSet(ctx, q.payloadKey(), documentID, updated)
				pipe.RPush(ctx, q.pendingKey(), documentID)
				return nil
			})
			if err != nil {
				return requeued, dead, fmt.Errorf("failed to requeue expired job: %w", err)
			}
			requeued = append(requeued, &job)
		} else {
			_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZRem(ctx, q.processingKey(), documentID)
				pipe.RPush(ctx, q.deadKey(), documentID)
				return nil
			})
			if err != nil {
				return requeued, dead, fmt.Errorf("failed to dead-letter expired job: %w", err)
			}
			jobCopy := job
			dead = append(dead, &jobCopy)
		}
	}
	return requeued, dead, nil
}

// Depth returns the number of pending jobs.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	depth, err := q.client.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return depth, nil
}

// DeadLetters returns up to limit dead jobs, oldest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := q.client.LRange(ctx, q.deadKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, documentID := range ids {
		payload, err := q.client.HGet(ctx, q.payloadKey(), documentID).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load dead job: %w", err)
		}
		var job Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
