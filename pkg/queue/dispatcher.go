package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/pkg/models"
)

// Failure reasons reported when a job exhausts its retries.
const (
	FailureReasonTimeout  = "TIMEOUT"
	FailureReasonDispatch = "DISPATCH_FAILED"
)

const (
	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second
)

// FailureReporter receives jobs that could not be delivered to a
// worker. Implemented by the ingest coordinator, which marks the
// document failed and emits the status event.
type FailureReporter interface {
	ReportDispatchFailure(ctx context.Context, documentID, reason string)
}

// DispatcherMetrics records dispatcher outcomes. All methods must be
// safe for concurrent use.
type DispatcherMetrics interface {
	JobDispatched()
	JobRequeued()
	JobDeadLettered(reason string)
}

// DispatcherConfig contains configuration for the worker dispatcher.
type DispatcherConfig struct {
	// Endpoint is the URL of the external processing worker.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// Workers is the number of concurrent dispatch loops.
	Workers int `mapstructure:"workers" yaml:"workers,omitempty"`

	// RequestTimeout bounds a single dispatch request.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout,omitempty"`

	// LeaseTTL is how long a dispatched job may stay in flight before
	// the reaper reclaims it. Covers worker processing time, not just
	// the HTTP request.
	LeaseTTL time.Duration `mapstructure:"lease_ttl" yaml:"lease_ttl,omitempty"`

	// MaxRetries is the number of re-enqueues before a job is
	// dead-lettered.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries,omitempty"`

	// ReapInterval is how often expired leases are scanned.
	ReapInterval time.Duration `mapstructure:"reap_interval" yaml:"reap_interval,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *DispatcherConfig) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 15 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = 30 * time.Second
	}
}

// Validate checks the configuration for errors.
func (c *DispatcherConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("worker endpoint is required")
	}
	return nil
}

// dispatchRequest is the wire form sent to the processing worker.
type dispatchRequest struct {
	DocumentID    string               `json:"documentId"`
	FilePath      string               `json:"filePath"`
	Format        string               `json:"format"`
	ProfileConfig models.ProfileConfig `json:"profileConfig"`
}

// Dispatcher drains the job queue and hands jobs to the external
// processing worker over HTTP. A 2xx response means the worker accepted
// the job; the lease is settled later, when the worker's callback
// lands. Failed dispatches are retried with exponential backoff and
// dead-lettered once retries run out.
type Dispatcher struct {
	config   DispatcherConfig
	queue    Queue
	reporter FailureReporter
	metrics  DispatcherMetrics
	client   *http.Client

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewDispatcher creates a dispatcher for the given queue. reporter and
// metrics may be nil.
func NewDispatcher(config DispatcherConfig, queue Queue, reporter FailureReporter, metrics DispatcherMetrics) (*Dispatcher, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Dispatcher{
		config:   config,
		queue:    queue,
		reporter: reporter,
		metrics:  metrics,
		client:   &http.Client{Timeout: config.RequestTimeout},
	}, nil
}

// Start launches the worker and reaper goroutines.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("dispatcher already started")
	}
	d.started = true

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go func(worker int) {
			defer d.wg.Done()
			d.runWorker(runCtx, worker)
		}(i)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runReaper(runCtx)
	}()

	logger.Info("dispatcher started",
		"workers", d.config.Workers,
		"endpoint", d.config.Endpoint,
		"lease_ttl", d.config.LeaseTTL.String())
	return nil
}

// Stop cancels the loops and waits for them to drain, bounded by ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown timed out: %w", ctx.Err())
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, worker int) {
	for {
		job, err := d.queue.Lease(ctx, d.config.LeaseTTL)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			logger.Error("failed to lease job", "worker", worker, "error", err)
			if !sleepCtx(ctx, backoffBase) {
				return
			}
			continue
		}
		if job == nil {
			continue // Poll window elapsed.
		}
		d.dispatch(ctx, worker, job)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, worker int, job *Job) {
	err := d.post(ctx, job)
	if err == nil {
		logger.Info("job dispatched",
			"document_id", job.DocumentID,
			"format", job.Format,
			"attempt", job.Attempt)
		if d.metrics != nil {
			d.metrics.JobDispatched()
		}
		return // Lease stays open until the worker calls back.
	}
	if ctx.Err() != nil {
		// Shutting down; the lease will expire and the reaper requeues.
		return
	}

	reason := FailureReasonDispatch
	if isTimeout(err) {
		reason = FailureReasonTimeout
	}

	if job.Attempt < d.config.MaxRetries {
		logger.Warn("dispatch failed, requeueing",
			"document_id", job.DocumentID,
			"attempt", job.Attempt,
			"reason", reason,
			"error", err)
		if !sleepCtx(ctx, backoffFor(job.Attempt)) {
			return
		}
		if nackErr := d.queue.Nack(ctx, job, true); nackErr != nil {
			logger.Error("failed to requeue job", "document_id", job.DocumentID, "error", nackErr)
			return
		}
		if d.metrics != nil {
			d.metrics.JobRequeued()
		}
		return
	}

	logger.Error("dispatch failed, retries exhausted",
		"document_id", job.DocumentID,
		"attempt", job.Attempt,
		"reason", reason,
		"error", err)
	if nackErr := d.queue.Nack(ctx, job, false); nackErr != nil {
		logger.Error("failed to dead-letter job", "document_id", job.DocumentID, "error", nackErr)
	}
	if d.metrics != nil {
		d.metrics.JobDeadLettered(reason)
	}
	if d.reporter != nil {
		d.reporter.ReportDispatchFailure(ctx, job.DocumentID, reason)
	}
}

func (d *Dispatcher) post(ctx context.Context, job *Job) error {
	body, err := json.Marshal(dispatchRequest{
		DocumentID:    job.DocumentID,
		FilePath:      job.StoragePath,
		Format:        job.Format,
		ProfileConfig: job.ProfileConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("worker rejected job: status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) runReaper(ctx context.Context) {
	ticker := time.NewTicker(d.config.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		requeued, dead, err := d.queue.ReapExpired(ctx, d.config.MaxRetries)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return
			}
			logger.Error("failed to reap expired leases", "error", err)
			continue
		}
		for _, job := range requeued {
			logger.Warn("lease expired, job requeued",
				"document_id", job.DocumentID,
				"attempt", job.Attempt)
			if d.metrics != nil {
				d.metrics.JobRequeued()
			}
		}
		for _, job := range dead {
			logger.Error("lease expired, retries exhausted",
				"document_id", job.DocumentID,
				"attempt", job.Attempt)
			if d.metrics != nil {
				d.metrics.JobDeadLettered(FailureReasonTimeout)
			}
			if d.reporter != nil {
				d.reporter.ReportDispatchFailure(ctx, job.DocumentID, FailureReasonTimeout)
			}
		}
	}
}

// backoffFor returns the delay before re-enqueueing attempt n.
func backoffFor(attempt int) time.Duration {
	delay := backoffBase << uint(attempt)
	if delay > backoffCap || delay <= 0 {
		return backoffCap
	}
	return delay
}

// sleepCtx sleeps for d unless the context ends first. Reports whether
// the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
