// Package queue provides the durable FIFO job queue that feeds the
// external worker pool, plus the dispatcher that drives it.
//
// Two backends are supported:
//   - redis: pending list + processing zset scored by lease deadline,
//     for multi-node deployments
//   - badger: embedded key-value queue for single-node deployments
//
// The queue is not the source of truth for document state; the store
// is. Jobs only carry what the worker needs to start processing.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quernlabs/quern/pkg/models"
)

var (
	// ErrClosed means the queue has been closed.
	ErrClosed = errors.New("queue is closed")
)

// leaseBlockWindow caps how long one Lease call waits for a job so
// callers stay responsive to shutdown.
const leaseBlockWindow = 2 * time.Second

// Job is one unit of background work. A document has at most one job
// in flight, so jobs are keyed by document ID throughout.
type Job struct {
	DocumentID string `json:"documentId"`

	// StoragePath is the resolved blob locator the worker reads from:
	// an absolute path or an s3:// URI.
	StoragePath string `json:"storagePath"`

	Format    string `json:"format"`
	ProfileID string `json:"profileId"`

	// ProfileConfig is the processing snapshot taken at upload time.
	ProfileConfig models.ProfileConfig `json:"profileConfig"`

	// Attempt counts re-enqueues; 0 for the first dispatch.
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue is a durable FIFO with leases.
//
// Implementations must be safe for concurrent use.
type Queue interface {
	// Enqueue appends a job. The caller commits the document row first.
	Enqueue(ctx context.Context, job *Job) error

	// Lease removes the next job from the pending queue and marks it
	// in flight until now+ttl. Returns (nil, nil) when no job became
	// available within the backend's poll window; callers loop.
	Lease(ctx context.Context, ttl time.Duration) (*Job, error)

	// Ack settles a leased job after its callback landed. Acking a job
	// that is no longer leased is a no-op: the callback may race the
	// reaper.
	Ack(ctx context.Context, documentID string) error

	// Nack releases a leased job: back to pending with the attempt
	// counter bumped when requeue is set, to the dead-letter queue
	// otherwise.
	Nack(ctx context.Context, job *Job, requeue bool) error

	// ReapExpired sweeps jobs whose lease deadline passed. Jobs under
	// maxAttempts are requeued with the attempt counter bumped; the
	// rest move to the dead-letter queue. Both sets are returned so
	// the caller can log and mark documents failed.
	ReapExpired(ctx context.Context, maxAttempts int) (requeued, dead []*Job, err error)

	// Depth returns the number of pending jobs.
	Depth(ctx context.Context) (int64, error)

	// DeadLetters returns up to limit jobs from the dead-letter queue,
	// oldest first.
	DeadLetters(ctx context.Context, limit int) ([]*Job, error)

	// Close releases backend resources.
	Close() error
}

// BackendType selects the queue backend.
type BackendType string

const (
	// BackendRedis uses Redis lists and sorted sets.
	BackendRedis BackendType = "redis"

	// BackendBadger uses an embedded BadgerDB (default).
	BackendBadger BackendType = "badger"
)

// Config contains job queue configuration.
type Config struct {
	Backend BackendType  `mapstructure:"backend" yaml:"backend"`
	Redis   RedisConfig  `mapstructure:"redis" yaml:"redis,omitempty"`
	Badger  BadgerConfig `mapstructure:"badger" yaml:"badger,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendBadger
	}
	c.Redis.ApplyDefaults()
	c.Badger.ApplyDefaults()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis url is required")
		}
	case BackendBadger:
		if c.Badger.Path == "" {
			return fmt.Errorf("badger path is required")
		}
	default:
		return fmt.Errorf("unsupported queue backend: %s", c.Backend)
	}
	return nil
}

// New creates a job queue for the configured backend.
func New(ctx context.Context, config *Config) (Queue, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue configuration: %w", err)
	}

	switch config.Backend {
	case BackendRedis:
		return NewRedisQueue(ctx, config.Redis)
	case BackendBadger:
		return NewBadgerQueue(config.Badger)
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", config.Backend)
	}
}
