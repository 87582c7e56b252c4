package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// badgerPollInterval is how often an empty queue is re-checked within
// one Lease call.
const badgerPollInterval = 200 * time.Millisecond

var (
	badgerPendingPrefix = []byte("pending/")
	badgerLeasedPrefix  = []byte("leased/")
	badgerDeadPrefix    = []byte("dead/")
	badgerSeqKey        = []byte("seq")
)

// BadgerConfig contains configuration for the embedded Badger queue
// backend.
type BadgerConfig struct {
	// Path is the directory for the queue database.
	Path string `mapstructure:"path" yaml:"path"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *BadgerConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "/var/lib/quern/queue"
	}
}

// leaseRecord is the stored form of a leased job.
type leaseRecord struct {
	Job      *Job      `json:"job"`
	Deadline time.Time `json:"deadline"`
}

// BadgerQueue is an embedded single-node job queue. Pending jobs are
// keyed by a monotonic sequence so iteration order is FIFO.
type BadgerQueue struct {
	db  *badger.DB
	seq *badger.Sequence

	mu     sync.Mutex // serializes pending pops across workers
	closed bool
}

// NewBadgerQueue opens (or creates) the queue database at the
// configured path.
func NewBadgerQueue(config BadgerConfig) (*BadgerQueue, error) {
	config.ApplyDefaults()

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	seq, err := db.GetSequence(badgerSeqKey, 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open queue sequence: %w", err)
	}

	return &BadgerQueue{db: db, seq: seq}, nil
}

func pendingSeqKey(seq uint64) []byte {
	key := make([]byte, len(badgerPendingPrefix)+8)
	copy(key, badgerPendingPrefix)
	binary.BigEndian.PutUint64(key[len(badgerPendingPrefix):], seq)
	return key
}

func deadSeqKey(seq uint64) []byte {
	key := make([]byte, len(badgerDeadPrefix)+8)
	copy(key, badgerDeadPrefix)
	binary.BigEndian.PutUint64(key[len(badgerDeadPrefix):], seq)
	return key
}

func leasedKey(documentID string) []byte {
	return append(append([]byte{}, badgerLeasedPrefix...), documentID...)
}

// Enqueue appends the job to the pending queue.
func (q *BadgerQueue) Enqueue(ctx context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	seq, err := q.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to advance queue sequence: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingSeqKey(seq), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Lease pops the oldest pending job and records its deadline. Polls up
// to the lease window when the queue is empty.
func (q *BadgerQueue) Lease(ctx context.Context, ttl time.Duration) (*Job, error) {
	deadline := time.Now().Add(leaseBlockWindow)
	for {
		job, err := q.tryLease(ttl)
		if err != nil || job != nil {
			return job, err
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(badgerPollInterval):
		}
	}
}

func (q *BadgerQueue) tryLease(ttl time.Duration) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}

	var job *Job
	err := q.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		it.Seek(badgerPendingPrefix)
		if !it.ValidForPrefix(badgerPendingPrefix) {
			return nil // Queue empty.
		}

		item := it.Item()
		key := item.KeyCopy(nil)
		var decoded Job
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &decoded)
		})
		if err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}

		record, err := json.Marshal(&leaseRecord{
			Job:      &decoded,
			Deadline: time.Now().Add(ttl),
		})
		if err != nil {
			return err
		}

		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Set(leasedKey(decoded.DocumentID), record); err != nil {
			return err
		}
		job = &decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to lease job: %w", err)
	}
	return job, nil
}

// Ack settles a leased job. Unknown IDs are ignored.
func (q *BadgerQueue) Ack(ctx context.Context, documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(leasedKey(documentID))
	})
	if err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack releases a leased job back to pending or into the dead-letter
// queue.
func (q *BadgerQueue) Nack(ctx context.Context, job *Job, requeue bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	stored := *job
	if requeue {
		stored.Attempt++
		stored.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	seq, err := q.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to advance queue sequence: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(leasedKey(job.DocumentID)); err != nil {
			return err
		}
		if requeue {
			return txn.Set(pendingSeqKey(seq), payload)
		}
		return txn.Set(deadSeqKey(seq), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to nack job: %w", err)
	}
	return nil
}

// ReapExpired moves jobs with passed deadlines back to pending, or to
// the dead-letter queue once maxAttempts is exhausted.
func (q *BadgerQueue) ReapExpired(ctx context.Context, maxAttempts int) ([]*Job, []*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, nil, ErrClosed
	}

	now := time.Now()
	var expired []*Job
	err := q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(badgerLeasedPrefix); it.ValidForPrefix(badgerLeasedPrefix); it.Next() {
			var record leaseRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			if record.Deadline.Before(now) {
				expired = append(expired, record.Job)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan leases: %w", err)
	}

	var requeued, dead []*Job
	for _, job := range expired {
		retry := job.Attempt < maxAttempts
		stored := *job
		if retry {
			stored.Attempt++
			stored.EnqueuedAt = time.Now().UTC()
		}
		payload, err := json.Marshal(&stored)
		if err != nil {
			return requeued, dead, err
		}

		seq, err := q.seq.Next()
		if err != nil {
			return requeued, dead, fmt.Errorf("failed to advance queue sequence: %w", err)
		}

		err = q.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete(leasedKey(job.DocumentID)); err != nil {
				return err
			}
			if retry {
				return txn.Set(pendingSeqKey(seq), payload)
			}
			return txn.Set(deadSeqKey(seq), payload)
		})
		if err != nil {
			return requeued, dead, fmt.Errorf("failed to reap expired job: %w", err)
		}
		if retry {
			requeued = append(requeued, &stored)
		} else {
			dead = append(dead, &stored)
		}
	}
	return requeued, dead, nil
}

// Depth returns the number of pending jobs.
func (q *BadgerQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, ErrClosed
	}

	var count int64
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(badgerPendingPrefix); it.ValidForPrefix(badgerPendingPrefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return count, nil
}

// DeadLetters returns up to limit dead jobs, oldest first.
func (q *BadgerQueue) DeadLetters(ctx context.Context, limit int) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}

	var jobs []*Job
	err := q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(badgerDeadPrefix); it.ValidForPrefix(badgerDeadPrefix) && len(jobs) < limit; it.Next() {
			var job Job
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			})
			if err != nil {
				return err
			}
			jobCopy := job
			jobs = append(jobs, &jobCopy)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return jobs, nil
}

// Close releases the sequence and closes the database.
func (q *BadgerQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.seq.Release(); err != nil {
		q.db.Close()
		return fmt.Errorf("failed to release queue sequence: %w", err)
	}
	return q.db.Close()
}
