package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/pkg/events"
	"github.com/quernlabs/quern/pkg/models"
	"github.com/quernlabs/quern/pkg/store"
)

// Processing stages reported to Metrics.
const (
	StageConversion = "conversion"
	StageChunking   = "chunking"
	StageEmbedding  = "embedding"
	StageTotal      = "total"
)

// failReasonLimit bounds stored failure reasons; worker messages can be
// arbitrarily long.
const failReasonLimit = 2000

// CallbackRequest is the completion report for one document. Workers
// post it to the internal callback endpoint; the fast lane builds the
// same structure in-process so both lanes settle identically.
type CallbackRequest struct {
	DocumentID string          `json:"documentId"`
	Success    bool            `json:"success"`
	Result     *CallbackResult `json:"result,omitempty"`
	Error      *CallbackError  `json:"error,omitempty"`
}

// CallbackError describes why processing failed. Code becomes the
// document's FailReason.
type CallbackError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// CallbackResult carries the processed artifacts of a successful run.
type CallbackResult struct {
	ProcessedContent string           `json:"processedContent"`
	Chunks           []CallbackChunk  `json:"chunks"`
	FormatCategory   string           `json:"formatCategory,omitempty"`
	PageCount        *int             `json:"pageCount,omitempty"`
	OCRApplied       bool             `json:"ocrApplied,omitempty"`
	ProcessingTimeMs *int64           `json:"processingTimeMs,omitempty"`
	Metrics          *CallbackMetrics `json:"metrics,omitempty"`
}

// CallbackChunk is one chunk with its embedding, ordered by Index.
type CallbackChunk struct {
	Index     int            `json:"index"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding"`
	Metadata  *ChunkMetadata `json:"metadata,omitempty"`
}

// ChunkMetadata is the optional per-chunk context block.
type ChunkMetadata struct {
	Heading      *string               `json:"heading,omitempty"`
	Breadcrumbs  []string              `json:"breadcrumbs,omitempty"`
	Location     *models.ChunkLocation `json:"location,omitempty"`
	ChunkType    string                `json:"chunkType,omitempty"`
	QualityScore *float64              `json:"qualityScore,omitempty"`
	QualityFlags []string              `json:"qualityFlags,omitempty"`
	TokenCount   int                   `json:"tokenCount,omitempty"`
	CharStart    *int                  `json:"charStart,omitempty"`
	CharEnd      *int                  `json:"charEnd,omitempty"`
	Completeness string                `json:"completeness,omitempty"`
	HasTitle     bool                  `json:"hasTitle,omitempty"`
}

// CallbackMetrics is the worker's own timing report. Stage durations
// are trusted as reported; everything chunk-derived is recomputed
// server-side.
type CallbackMetrics struct {
	ConversionTimeMs int64      `json:"conversionTimeMs,omitempty"`
	ChunkingTimeMs   int64      `json:"chunkingTimeMs,omitempty"`
	EmbeddingTimeMs  int64      `json:"embeddingTimeMs,omitempty"`
	TotalTimeMs      int64      `json:"totalTimeMs,omitempty"`
	UserWaitTimeMs   int64      `json:"userWaitTimeMs,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// ApplyCallback settles a document from a completion report. It is
// idempotent: replaying a callback replaces the same chunk set and
// rewrites the same terminal state. A success report lands a document
// in COMPLETED even when a dispatch timeout already marked it FAILED;
// late results win over bookkeeping.
//
// The matching queue lease is acked on every terminal application, so
// the reaper never redispatches settled work.
func (c *Coordinator) ApplyCallback(ctx context.Context, req *CallbackRequest) error {
	doc, err := c.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			logger.WarnCtx(ctx, "callback for unknown document dropped", "document_id", req.DocumentID)
			c.ackQueue(ctx, req.DocumentID)
			c.observeCallback(CallbackResultDropped)
		}
		return err
	}

	if !req.Success {
		code := "PROCESSING_ERROR"
		if req.Error != nil && req.Error.Code != "" {
			code = req.Error.Code
		}
		c.failDocument(ctx, doc, code)
		return nil
	}

	if req.Result == nil {
		return c.failProcessing(ctx, doc, fmt.Errorf("success callback carried no result"))
	}

	profile, err := c.store.GetProfile(ctx, doc.ProfileID)
	if err != nil {
		return c.failProcessing(ctx, doc, fmt.Errorf("load profile snapshot: %w", err))
	}
	cfg, err := profile.GetConfig()
	if err != nil {
		return c.failProcessing(ctx, doc, fmt.Errorf("parse profile snapshot: %w", err))
	}

	// The gate runs against the profile parameters captured at upload,
	// not whatever is active now.
	if code, ok := qualityGate(req.Result.ProcessedContent, cfg); !ok {
		c.failDocument(ctx, doc, code)
		return nil
	}

	chunks, err := buildChunkRows(doc.ID, req.Result.Chunks)
	if err != nil {
		return c.failProcessing(ctx, doc, err)
	}
	if len(chunks) == 0 {
		c.failDocument(ctx, doc, QualityEmptyContent)
		return nil
	}

	if err := c.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return c.failProcessing(ctx, doc, err)
	}

	now := time.Now().UTC()
	update := &store.StatusUpdate{
		ProcessedContent: &req.Result.ProcessedContent,
		ProcessedAt:      &now,
		ClearFailReason:  true,
	}
	category := string(doc.GetFormat().Category())
	if req.Result.FormatCategory != "" && models.FormatCategory(req.Result.FormatCategory).IsValid() {
		category = req.Result.FormatCategory
	}
	update.FormatCategory = &category
	if req.Result.PageCount != nil {
		update.PageCount = req.Result.PageCount
	}
	if req.Result.OCRApplied {
		applied := true
		update.OCRApplied = &applied
	}
	if req.Result.ProcessingTimeMs != nil {
		update.ProcessingTimeMs = req.Result.ProcessingTimeMs
	}

	err = c.store.UpdateDocumentStatus(ctx, doc.ID,
		[]models.DocumentStatus{models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed},
		models.StatusCompleted, update)
	if err != nil {
		return c.failProcessing(ctx, doc, fmt.Errorf("complete document: %w", err))
	}

	metrics, err := buildMetricsRow(doc, req.Result, chunks, cfg)
	if err == nil {
		err = c.store.UpsertMetrics(ctx, metrics)
	}
	if err != nil {
		return c.failProcessing(ctx, doc, fmt.Errorf("record metrics: %w", err))
	}

	chunksCount := len(chunks)
	c.bus.Publish(events.DocumentStatus{
		ID:          doc.ID,
		Status:      string(models.StatusCompleted),
		ChunksCount: &chunksCount,
	})

	// External sources mirror content that lives elsewhere; once the
	// markdown is stored the raw blob is dead weight.
	if doc.GetSource() == models.SourceExternal && doc.StoragePath != nil {
		c.releaseBlob(ctx, *doc.StoragePath)
		if err := c.store.ClearStoragePath(ctx, doc.ID); err != nil {
			logger.WarnCtx(ctx, "failed to clear storage path", "document_id", doc.ID, "error", err)
		}
	}

	c.ackQueue(ctx, doc.ID)
	c.observeCallback(CallbackResultCompleted)
	c.observeStages(req.Result.Metrics)

	logger.InfoCtx(ctx, "document completed",
		"document_id", doc.ID,
		"chunks", chunksCount,
		"format", doc.Format,
	)
	return nil
}

// failDocument applies a reported processing failure. COMPLETED is
// never downgraded: a stale failure arriving after a success report is
// logged and dropped.
func (c *Coordinator) failDocument(ctx context.Context, doc *models.Document, code string) {
	reason := truncateReason(code)
	err := c.store.UpdateDocumentStatus(ctx, doc.ID,
		[]models.DocumentStatus{models.StatusPending, models.StatusProcessing, models.StatusFailed},
		models.StatusFailed, &store.StatusUpdate{FailReason: &reason})
	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		logger.WarnCtx(ctx, "document deleted before failure applied", "document_id", doc.ID)
		c.ackQueue(ctx, doc.ID)
		c.observeCallback(CallbackResultDropped)
		return
	case errors.Is(err, models.ErrInvalidStatus):
		logger.InfoCtx(ctx, "stale failure ignored for completed document",
			"document_id", doc.ID, "reason", reason)
		c.ackQueue(ctx, doc.ID)
		c.observeCallback(CallbackResultDropped)
		return
	case err != nil:
		// Leave the lease open; the reaper will settle the document.
		logger.ErrorCtx(ctx, "failed to mark document failed",
			"document_id", doc.ID, "reason", reason, "error", err)
		return
	default:
		failReason := reason
		c.bus.Publish(events.DocumentStatus{
			ID:     doc.ID,
			Status: string(models.StatusFailed),
			Error:  &failReason,
		})
		logger.InfoCtx(ctx, "document failed", "document_id", doc.ID, "reason", reason)
	}
	c.ackQueue(ctx, doc.ID)
	c.observeCallback(CallbackResultFailed)
}

// failProcessing handles a server-side persistence failure while
// applying a success report. The document is marked FAILED so it stays
// retryable, the lease is acked, and the cause is returned to the
// caller.
func (c *Coordinator) failProcessing(ctx context.Context, doc *models.Document, cause error) error {
	c.failDocument(ctx, doc, "PROCESSING_ERROR: "+cause.Error())
	return cause
}

func (c *Coordinator) ackQueue(ctx context.Context, documentID string) {
	if err := c.queue.Ack(ctx, documentID); err != nil {
		logger.WarnCtx(ctx, "failed to ack queue lease", "document_id", documentID, "error", err)
	}
}

func (c *Coordinator) observeCallback(result string) {
	if c.metrics != nil {
		c.metrics.CallbackApplied(result)
	}
}

func (c *Coordinator) observeStages(m *CallbackMetrics) {
	if c.metrics == nil || m == nil {
		return
	}
	c.metrics.StageObserved(StageConversion, time.Duration(m.ConversionTimeMs)*time.Millisecond)
	c.metrics.StageObserved(StageChunking, time.Duration(m.ChunkingTimeMs)*time.Millisecond)
	c.metrics.StageObserved(StageEmbedding, time.Duration(m.EmbeddingTimeMs)*time.Millisecond)
	c.metrics.StageObserved(StageTotal, time.Duration(m.TotalTimeMs)*time.Millisecond)
}

// buildChunkRows converts wire chunks to rows. Indexes must be unique;
// row identity is (documentID, index) and ReplaceChunks inserts the set
// atomically.
func buildChunkRows(documentID string, in []CallbackChunk) ([]*models.Chunk, error) {
	seen := make(map[int]struct{}, len(in))
	rows := make([]*models.Chunk, 0, len(in))

	for _, cc := range in {
		if _, dup := seen[cc.Index]; dup {
			return nil, fmt.Errorf("%w: index %d", models.ErrDuplicateChunkIndex, cc.Index)
		}
		seen[cc.Index] = struct{}{}

		row := &models.Chunk{
			DocumentID:   documentID,
			ChunkIndex:   cc.Index,
			Content:      cc.Content,
			Embedding:    pgvector.NewVector(cc.Embedding),
			QualityScore: 1.0,
			ChunkType:    "text",
		}

		if md := cc.Metadata; md != nil {
			row.Heading = md.Heading
			row.CharStart = md.CharStart
			row.CharEnd = md.CharEnd
			row.HasTitle = md.HasTitle
			row.Completeness = md.Completeness
			if md.ChunkType != "" {
				row.ChunkType = md.ChunkType
			}
			if md.QualityScore != nil {
				row.QualityScore = *md.QualityScore
			}
			if md.TokenCount > 0 {
				row.TokenCount = md.TokenCount
			}
			if len(md.Breadcrumbs) > 0 {
				if err := row.SetBreadcrumbs(md.Breadcrumbs); err != nil {
					return nil, fmt.Errorf("chunk %d breadcrumbs: %w", cc.Index, err)
				}
			}
			if len(md.QualityFlags) > 0 {
				if err := row.SetQualityFlags(md.QualityFlags); err != nil {
					return nil, fmt.Errorf("chunk %d quality flags: %w", cc.Index, err)
				}
			}
			if md.Location != nil {
				if err := row.SetLocation(md.Location); err != nil {
					return nil, fmt.Errorf("chunk %d location: %w", cc.Index, err)
				}
			}
		}
		if row.TokenCount == 0 {
			row.TokenCount = estimateTokens(cc.Content)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// buildMetricsRow assembles the telemetry row. Stage timings come from
// the worker's report; chunk statistics are recomputed from the rows
// actually persisted so a miscounting worker cannot skew analytics.
func buildMetricsRow(doc *models.Document, result *CallbackResult, chunks []*models.Chunk, cfg models.ProfileConfig) (*models.ProcessingMetrics, error) {
	m := &models.ProcessingMetrics{
		DocumentID:        doc.ID,
		RawSizeBytes:      doc.FileSize,
		MarkdownSizeChars: int64(len([]rune(result.ProcessedContent))),
		TotalChunks:       len(chunks),
	}

	var totalChars, totalTokens int
	var totalScore float64
	flagCounts := make(map[string]int)
	for _, ch := range chunks {
		chars := len([]rune(ch.Content))
		totalChars += chars
		totalTokens += ch.TokenCount
		totalScore += ch.QualityScore
		if chars > cfg.ChunkSize {
			m.OversizedChunks++
		}
		flags, err := ch.GetQualityFlags()
		if err != nil {
			return nil, fmt.Errorf("chunk %d quality flags: %w", ch.ChunkIndex, err)
		}
		for _, f := range flags {
			flagCounts[f]++
		}
	}
	if len(chunks) > 0 {
		m.AvgChunkSize = float64(totalChars) / float64(len(chunks))
		m.AvgQualityScore = totalScore / float64(len(chunks))
	}
	m.TotalTokens = totalTokens
	if err := m.SetQualityFlagCounts(flagCounts); err != nil {
		return nil, err
	}

	if wm := result.Metrics; wm != nil {
		m.ConversionTimeMs = wm.ConversionTimeMs
		m.ChunkingTimeMs = wm.ChunkingTimeMs
		m.EmbeddingTimeMs = wm.EmbeddingTimeMs
		m.TotalTimeMs = wm.TotalTimeMs
		m.UserWaitTimeMs = wm.UserWaitTimeMs
		m.StartedAt = wm.StartedAt
		m.CompletedAt = wm.CompletedAt

		if wm.StartedAt != nil {
			queueMs := wm.StartedAt.Sub(doc.CreatedAt).Milliseconds()
			if queueMs < 0 {
				queueMs = 0
			}
			m.QueueTimeMs = queueMs
		}
	}
	if m.TotalTimeMs == 0 && result.ProcessingTimeMs != nil {
		m.TotalTimeMs = *result.ProcessingTimeMs
	}
	if m.CompletedAt == nil {
		now := time.Now().UTC()
		m.CompletedAt = &now
	}
	return m, nil
}

// truncateReason bounds a failure reason to the stored column size.
func truncateReason(reason string) string {
	if len(reason) <= failReasonLimit {
		return reason
	}
	return reason[:failReasonLimit]
}
