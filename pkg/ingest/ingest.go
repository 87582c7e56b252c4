// Package ingest contains the ingestion coordinator: the state machine
// that accepts uploads, deduplicates by content hash, classifies the
// processing lane, dispatches heavy work to the queue, applies worker
// callbacks idempotently, and emits lifecycle events.
//
// Single-writer-per-document discipline: every state change goes
// through a compare-and-set on the document status with an explicit
// "from" set, so concurrent actors serialize on the status column.
package ingest

import (
	"fmt"
	"time"

	"github.com/quernlabs/quern/internal/bytesize"
	"github.com/quernlabs/quern/pkg/blob"
	"github.com/quernlabs/quern/pkg/embed"
	"github.com/quernlabs/quern/pkg/events"
	"github.com/quernlabs/quern/pkg/ingest/registry"
	"github.com/quernlabs/quern/pkg/models"
	"github.com/quernlabs/quern/pkg/queue"
	"github.com/quernlabs/quern/pkg/store"
)

// maxBulkSize caps the number of IDs one bulk mutation may carry.
const maxBulkSize = 100

// Config contains ingestion limits. Size fields accept human-readable
// values like "50Mi" in config files.
type Config struct {
	// ManualMaxBytes caps direct uploads through the REST API.
	ManualMaxBytes bytesize.ByteSize `mapstructure:"manual_max_bytes" yaml:"manual_max_bytes,omitempty"`

	// ExternalMaxBytes caps uploads pushed by external sync integrations.
	ExternalMaxBytes bytesize.ByteSize `mapstructure:"external_max_bytes" yaml:"external_max_bytes,omitempty"`

	// MaxFilenameLength bounds sanitized filenames.
	MaxFilenameLength int `mapstructure:"max_filename_length" yaml:"max_filename_length,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.ManualMaxBytes == 0 {
		c.ManualMaxBytes = 50 * bytesize.MiB
	}
	if c.ExternalMaxBytes == 0 {
		c.ExternalMaxBytes = 100 * bytesize.MiB
	}
	if c.MaxFilenameLength <= 0 {
		c.MaxFilenameLength = 255
	}
}

// maxBytesFor returns the size cap for the given source.
func (c *Config) maxBytesFor(source models.SourceType) int64 {
	if source == models.SourceExternal {
		return c.ExternalMaxBytes.Int64()
	}
	return c.ManualMaxBytes.Int64()
}

// UploadInput describes one file handed to Upload.
type UploadInput struct {
	Filename     string
	Content      []byte
	DeclaredMIME string
	Source       models.SourceType
}

// BulkFailure reports why one ID of a bulk mutation was skipped.
type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult summarizes a bulk mutation.
type BulkResult struct {
	Updated int           `json:"updated"`
	Failed  []BulkFailure `json:"failed"`
}

// Metrics records ingestion outcomes. All methods must be safe for
// concurrent use; a nil Metrics disables instrumentation.
type Metrics interface {
	// UploadAccepted is called once per created document.
	UploadAccepted(source models.SourceType, format models.DocumentFormat, lane models.ProcessingLane, sizeBytes int64)

	// CallbackApplied is called per applied callback with the terminal
	// result: completed, failed, or dropped.
	CallbackApplied(result string)

	// StageObserved records one processing stage duration.
	StageObserved(stage string, d time.Duration)
}

// Callback results reported to Metrics.
const (
	CallbackResultCompleted = "completed"
	CallbackResultFailed    = "failed"
	CallbackResultDropped   = "dropped"
)

// Coordinator drives the document lifecycle. All collaborators are
// injected; the coordinator owns no persistent state of its own.
type Coordinator struct {
	config   Config
	store    store.Store
	blobs    blob.Store
	queue    queue.Queue
	bus      *events.Bus
	embedder embed.Embedder
	registry *registry.Registry
	metrics  Metrics
}

// NewCoordinator wires the ingestion coordinator. metrics may be nil.
func NewCoordinator(
	config Config,
	st store.Store,
	blobs blob.Store,
	q queue.Queue,
	bus *events.Bus,
	embedder embed.Embedder,
	reg *registry.Registry,
	metrics Metrics,
) (*Coordinator, error) {
	config.ApplyDefaults()
	if st == nil || blobs == nil || q == nil || bus == nil || embedder == nil || reg == nil {
		return nil, fmt.Errorf("all coordinator collaborators are required")
	}
	return &Coordinator{
		config:   config,
		store:    st,
		blobs:    blobs,
		queue:    q,
		bus:      bus,
		embedder: embedder,
		registry: reg,
		metrics:  metrics,
	}, nil
}
