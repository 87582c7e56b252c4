// Package events provides the in-process broadcast bus for document
// lifecycle events.
//
// Every subscriber owns a dedicated bounded buffer. Publishing never
// blocks: when a subscriber's buffer is full the oldest event is
// dropped and counted. There is no persistence and no replay; clients
// that miss events reconcile against the REST listing.
package events

// Event is a typed broadcast message. Name returns the wire tag used
// as the SSE event name.
type Event interface {
	Name() string
}

// DocumentCreated announces a new document row.
type DocumentCreated struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// Name returns the event tag.
func (DocumentCreated) Name() string { return "document:created" }

// DocumentStatus announces a lifecycle transition. ChunksCount is set
// on completion, Error on failure.
type DocumentStatus struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	ChunksCount *int    `json:"chunksCount,omitempty"`
	Error       *string `json:"error,omitempty"`
}

// Name returns the event tag.
func (DocumentStatus) Name() string { return "document:status" }

// DocumentDeleted announces a hard delete.
type DocumentDeleted struct {
	ID string `json:"id"`
}

// Name returns the event tag.
func (DocumentDeleted) Name() string { return "document:deleted" }

// DocumentAvailability announces a retrieval visibility toggle.
type DocumentAvailability struct {
	ID       string `json:"id"`
	IsActive bool   `json:"isActive"`
}

// Name returns the event tag.
func (DocumentAvailability) Name() string { return "document:availability" }

// SyncStart announces the beginning of an external-sync run.
type SyncStart struct {
	Source string `json:"source"`
}

// Name returns the event tag.
func (SyncStart) Name() string { return "sync:start" }

// SyncComplete announces a finished external-sync run.
type SyncComplete struct {
	Source  string `json:"source"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
}

// Name returns the event tag.
func (SyncComplete) Name() string { return "sync:complete" }

// SyncError announces a failed external-sync run.
type SyncError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Name returns the event tag.
func (SyncError) Name() string { return "sync:error" }

// BulkCompleted announces the outcome of a bulk mutation.
type BulkCompleted struct {
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// Name returns the event tag.
func (BulkCompleted) Name() string { return "bulk:completed" }
