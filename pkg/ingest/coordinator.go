package ingest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/pkg/blob"
	"github.com/quernlabs/quern/pkg/events"
	"github.com/quernlabs/quern/pkg/models"
	"github.com/quernlabs/quern/pkg/queue"
	"github.com/quernlabs/quern/pkg/store"
)

// Upload accepts one file: it validates size and format, rejects
// duplicates by content hash within the source, persists the blob,
// snapshots the processing profile, and creates the PENDING row.
//
// Fast-lane formats are converted, chunked, and embedded before this
// returns; the returned document still reports the accepted PENDING
// state, and callers observe the settled state via events or a follow-up
// read. Heavy formats are marked PROCESSING and handed to the dispatch
// queue.
func (c *Coordinator) Upload(ctx context.Context, input UploadInput) (*models.Document, error) {
	source := input.Source
	if source == "" {
		source = models.SourceManual
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("invalid source %q", input.Source)
	}

	if len(input.Content) == 0 {
		return nil, models.ErrEmptyUpload
	}
	if max := c.config.maxBytesFor(source); int64(len(input.Content)) > max {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit",
			models.ErrFileTooLarge, len(input.Content), max)
	}

	filename := sanitizeFilename(input.Filename, c.config.MaxFilenameLength)
	format, ok := models.FormatFromFilename(filename)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", models.ErrInvalidFormat, filename)
	}

	sum := md5.Sum(input.Content)
	hash := hex.EncodeToString(sum[:])

	if existing, err := c.store.GetDocumentByHash(ctx, hash, source); err == nil {
		return nil, fmt.Errorf("%w: content already ingested as %s",
			models.ErrDuplicateDocument, existing.ID)
	} else if !errors.Is(err, models.ErrDocumentNotFound) {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}

	profile, err := c.registry.ResolveSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := profile.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile.ID, err)
	}

	key, size, err := c.blobs.Write(ctx, hash, bytes.NewReader(input.Content))
	if err != nil {
		return nil, fmt.Errorf("persist blob: %w", err)
	}

	doc := &models.Document{
		Filename:        filename,
		MIMEType:        mimeType(input.DeclaredMIME),
		FileSize:        size,
		Format:          string(format),
		ContentHash:     hash,
		Source:          string(source),
		Status:          string(models.StatusPending),
		IsActive:        true,
		ConnectionState: string(connectionFor(source)),
		StoragePath:     &key,
		ProfileID:       profile.ID,
	}
	if _, err := c.store.CreateDocument(ctx, doc); err != nil {
		// A concurrent upload of the same content may own the blob now;
		// releaseBlob checks references before unlinking.
		if !errors.Is(err, models.ErrDuplicateDocument) {
			c.releaseBlob(ctx, key)
		}
		return nil, err
	}

	c.bus.Publish(events.DocumentCreated{ID: doc.ID, Filename: doc.Filename, Status: doc.Status})

	lane := format.Lane()
	if c.metrics != nil {
		c.metrics.UploadAccepted(source, format, lane, doc.FileSize)
	}
	logger.InfoCtx(ctx, "document accepted",
		"document_id", doc.ID,
		"filename", filename,
		"format", doc.Format,
		"lane", string(lane),
		"size_bytes", doc.FileSize,
	)

	if lane == models.LaneFast {
		snapshot := *doc
		c.runFastLane(ctx, doc, input.Content, cfg)
		return &snapshot, nil
	}

	if err := c.enqueueHeavy(ctx, doc, cfg); err != nil {
		return nil, err
	}
	doc.Status = string(models.StatusProcessing)
	return doc, nil
}

// runFastLane converts, gates, chunks, and embeds inline, then settles
// through the same callback path the worker pool uses. Failures park
// the document in FAILED without failing the upload that created it.
func (c *Coordinator) runFastLane(ctx context.Context, doc *models.Document, content []byte, cfg models.ProfileConfig) {
	req := c.buildFastCallback(ctx, doc, content, cfg)
	if err := c.ApplyCallback(ctx, req); err != nil {
		logger.ErrorCtx(ctx, "fast lane settlement failed", "document_id", doc.ID, "error", err)
	}
}

func (c *Coordinator) buildFastCallback(ctx context.Context, doc *models.Document, content []byte, cfg models.ProfileConfig) *CallbackRequest {
	fail := func(code string) *CallbackRequest {
		return &CallbackRequest{
			DocumentID: doc.ID,
			Success:    false,
			Error:      &CallbackError{Code: code},
		}
	}

	started := time.Now().UTC()
	markdown, err := convertToMarkdown(doc.GetFormat(), content)
	if err != nil {
		return fail("PROCESSING_ERROR: " + err.Error())
	}
	if code, ok := qualityGate(markdown, cfg); !ok {
		return fail(code)
	}
	conversionMs := time.Since(started).Milliseconds()

	chunkStart := time.Now()
	chunks := chunkMarkdown(markdown, cfg)
	if len(chunks) == 0 {
		return fail(QualityEmptyContent)
	}
	chunkingMs := time.Since(chunkStart).Milliseconds()

	embedStart := time.Now()
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fail("PROCESSING_ERROR: " + err.Error())
	}
	if len(vectors) != len(chunks) {
		return fail(fmt.Sprintf("PROCESSING_ERROR: got %d embeddings for %d chunks", len(vectors), len(chunks)))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	embeddingMs := time.Since(embedStart).Milliseconds()

	completed := time.Now().UTC()
	totalMs := time.Since(started).Milliseconds()
	return &CallbackRequest{
		DocumentID: doc.ID,
		Success:    true,
		Result: &CallbackResult{
			ProcessedContent: markdown,
			Chunks:           chunks,
			FormatCategory:   string(doc.GetFormat().Category()),
			ProcessingTimeMs: &totalMs,
			Metrics: &CallbackMetrics{
				ConversionTimeMs: conversionMs,
				ChunkingTimeMs:   chunkingMs,
				EmbeddingTimeMs:  embeddingMs,
				TotalTimeMs:      totalMs,
				StartedAt:        &started,
				CompletedAt:      &completed,
			},
		},
	}
}

// enqueueHeavy marks the document PROCESSING and hands it to the
// dispatch queue. On enqueue failure the document is parked in FAILED
// and the error surfaces to the caller, so nothing is silently lost.
func (c *Coordinator) enqueueHeavy(ctx context.Context, doc *models.Document, cfg models.ProfileConfig) error {
	err := c.store.UpdateDocumentStatus(ctx, doc.ID,
		[]models.DocumentStatus{models.StatusPending}, models.StatusProcessing, nil)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	job := &queue.Job{
		DocumentID:    doc.ID,
		StoragePath:   c.blobs.Path(*doc.StoragePath),
		Format:        doc.Format,
		ProfileID:     doc.ProfileID,
		ProfileConfig: cfg,
		EnqueuedAt:    time.Now().UTC(),
	}
	if err := c.queue.Enqueue(ctx, job); err != nil {
		reason := truncateReason(queue.FailureReasonDispatch + ": " + err.Error())
		ferr := c.store.UpdateDocumentStatus(ctx, doc.ID,
			[]models.DocumentStatus{models.StatusProcessing}, models.StatusFailed,
			&store.StatusUpdate{FailReason: &reason})
		if ferr != nil {
			logger.ErrorCtx(ctx, "failed to park document after enqueue failure",
				"document_id", doc.ID, "error", ferr)
		} else {
			c.bus.Publish(events.DocumentStatus{ID: doc.ID, Status: string(models.StatusFailed), Error: &reason})
		}
		return fmt.Errorf("%w: %v", models.ErrQueueUnavailable, err)
	}

	logger.DebugCtx(ctx, "document enqueued", "document_id", doc.ID, "format", doc.Format)
	return nil
}

// Retry re-enters a FAILED document into its processing lane. The retry
// counter increments and the failure reason clears atomically with the
// transition back to PENDING.
func (c *Coordinator) Retry(ctx context.Context, id string) (*models.Document, error) {
	doc, err := c.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.GetStatus() != models.StatusFailed {
		return nil, fmt.Errorf("%w: only failed documents can be retried", models.ErrInvalidStatus)
	}
	if doc.StoragePath == nil {
		return nil, fmt.Errorf("%w: raw content was cleaned up", models.ErrContentUnavailable)
	}

	profile, err := c.store.GetProfile(ctx, doc.ProfileID)
	if err != nil {
		return nil, err
	}
	cfg, err := profile.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile.ID, err)
	}

	// Fast-lane retries re-read the blob before any state changes so a
	// missing blob leaves the document untouched.
	var content []byte
	lane := doc.GetFormat().Lane()
	if lane == models.LaneFast {
		content, err = c.readBlob(ctx, *doc.StoragePath)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				return nil, fmt.Errorf("%w: blob %s is missing", models.ErrContentUnavailable, *doc.StoragePath)
			}
			return nil, err
		}
	}

	err = c.store.UpdateDocumentStatus(ctx, id,
		[]models.DocumentStatus{models.StatusFailed}, models.StatusPending,
		&store.StatusUpdate{IncrementRetry: true, ClearFailReason: true})
	if err != nil {
		return nil, err
	}

	c.bus.Publish(events.DocumentStatus{ID: id, Status: string(models.StatusPending)})
	logger.InfoCtx(ctx, "document retry", "document_id", id, "retry_count", doc.RetryCount+1)

	if lane == models.LaneFast {
		c.runFastLane(ctx, doc, content, cfg)
	} else if err := c.enqueueHeavy(ctx, doc, cfg); err != nil {
		return nil, err
	}
	return c.store.GetDocument(ctx, id)
}

// Delete removes a document with its chunks and metrics, then unlinks
// the blob when no other document shares it. PROCESSING documents are
// refused; cancel-by-delete would race the worker's callback.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	path, err := c.store.DeleteDocumentCascade(ctx, id)
	if err != nil {
		return err
	}
	if path != nil {
		c.releaseBlob(ctx, *path)
	}
	c.bus.Publish(events.DocumentDeleted{ID: id})
	logger.InfoCtx(ctx, "document deleted", "document_id", id)
	return nil
}

// BulkDelete deletes up to maxBulkSize documents, skipping the ones
// that refuse with a per-ID reason. One bulk:completed event summarizes
// the run after the per-document deleted events.
func (c *Coordinator) BulkDelete(ctx context.Context, ids []string) (*BulkResult, error) {
	if err := checkBulkSize(ids); err != nil {
		return nil, err
	}
	result := &BulkResult{}
	for _, id := range ids {
		if err := c.Delete(ctx, id); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Reason: bulkReason(err)})
			continue
		}
		result.Updated++
	}
	c.publishBulk(result)
	return result, nil
}

// SetAvailability toggles retrieval visibility. Only COMPLETED
// documents participate in retrieval; the store refuses the rest.
func (c *Coordinator) SetAvailability(ctx context.Context, id string, active bool) (*models.Document, error) {
	if err := c.store.SetDocumentAvailability(ctx, id, active); err != nil {
		return nil, err
	}
	c.bus.Publish(events.DocumentAvailability{ID: id, IsActive: active})
	return c.store.GetDocument(ctx, id)
}

// BulkSetAvailability toggles up to maxBulkSize documents with per-ID
// failure reasons and a single bulk:completed summary.
func (c *Coordinator) BulkSetAvailability(ctx context.Context, ids []string, active bool) (*BulkResult, error) {
	if err := checkBulkSize(ids); err != nil {
		return nil, err
	}
	result := &BulkResult{}
	for _, id := range ids {
		if err := c.store.SetDocumentAvailability(ctx, id, active); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Reason: bulkReason(err)})
			continue
		}
		result.Updated++
		c.bus.Publish(events.DocumentAvailability{ID: id, IsActive: active})
	}
	c.publishBulk(result)
	return result, nil
}

// ReportDispatchFailure parks a document in FAILED after the dispatcher
// exhausted its delivery attempts or the reaper gave up on a silent
// worker. A document already settled by a late callback is left alone.
func (c *Coordinator) ReportDispatchFailure(ctx context.Context, documentID, reason string) {
	failReason := truncateReason(reason)
	err := c.store.UpdateDocumentStatus(ctx, documentID,
		[]models.DocumentStatus{models.StatusPending, models.StatusProcessing},
		models.StatusFailed, &store.StatusUpdate{FailReason: &failReason})
	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		logger.DebugCtx(ctx, "dispatch failure for deleted document", "document_id", documentID)
	case errors.Is(err, models.ErrInvalidStatus):
		logger.DebugCtx(ctx, "dispatch failure for settled document", "document_id", documentID)
	case err != nil:
		logger.ErrorCtx(ctx, "failed to record dispatch failure",
			"document_id", documentID, "reason", reason, "error", err)
	default:
		c.bus.Publish(events.DocumentStatus{ID: documentID, Status: string(models.StatusFailed), Error: &failReason})
		logger.WarnCtx(ctx, "document failed dispatch", "document_id", documentID, "reason", reason)
	}
}

// releaseBlob unlinks a blob key unless another document still
// references it: deduplicated content shares one blob across sources.
func (c *Coordinator) releaseBlob(ctx context.Context, key string) {
	count, err := c.store.CountDocumentsByStoragePath(ctx, key)
	if err != nil {
		logger.WarnCtx(ctx, "failed to count blob references", "key", key, "error", err)
		return
	}
	if count > 0 {
		return
	}
	if err := c.blobs.Delete(ctx, key); err != nil {
		logger.WarnCtx(ctx, "failed to unlink blob", "key", key, "error", err)
	}
}

func (c *Coordinator) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, err := c.blobs.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (c *Coordinator) publishBulk(result *BulkResult) {
	failed := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, f.ID)
	}
	c.bus.Publish(events.BulkCompleted{Updated: result.Updated, Failed: failed})
}

func checkBulkSize(ids []string) error {
	if len(ids) == 0 {
		return errors.New("at least one document ID is required")
	}
	if len(ids) > maxBulkSize {
		return fmt.Errorf("%w: %d IDs exceeds the limit of %d",
			models.ErrBulkLimitExceeded, len(ids), maxBulkSize)
	}
	return nil
}

func bulkReason(err error) string {
	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		return "NOT_FOUND"
	case errors.Is(err, models.ErrInvalidStatus):
		return "INVALID_STATUS"
	default:
		return "INTERNAL_ERROR"
	}
}

// sanitizeFilename strips path components (some browsers send full
// paths) and control characters, then bounds the length while
// preserving the extension.
func sanitizeFilename(name string, maxLen int) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	name = b.String()
	if name == "." || name == ".." {
		return ""
	}

	if utf8.RuneCountInString(name) > maxLen {
		ext := filepath.Ext(name)
		if utf8.RuneCountInString(ext) >= maxLen {
			ext = ""
		}
		base := []rune(strings.TrimSuffix(name, ext))
		keep := maxLen - utf8.RuneCountInString(ext)
		name = string(base[:keep]) + ext
	}
	return name
}

func mimeType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return "application/octet-stream"
	}
	return declared
}

func connectionFor(source models.SourceType) models.ConnectionState {
	if source == models.SourceExternal {
		return models.ConnectionLinked
	}
	return models.ConnectionStandalone
}
