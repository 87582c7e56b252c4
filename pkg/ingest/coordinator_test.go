//go:build integration

package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quernlabs/quern/pkg/blob"
	"github.com/quernlabs/quern/pkg/events"
	"github.com/quernlabs/quern/pkg/ingest/registry"
	"github.com/quernlabs/quern/pkg/models"
	"github.com/quernlabs/quern/pkg/queue"
	"github.com/quernlabs/quern/pkg/store"
)

const testDims = 3

// sampleText clears the default quality gate (minimum length, low
// noise) and terminates cleanly.
const sampleText = "Quern ingests documents into retrieval chunks. The pipeline converts " +
	"uploads to markdown, splits them along headings, and embeds every chunk " +
	"for semantic search. This sample carries enough prose to clear the gate."

type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failWith error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Dimensions() int { return testDims }

func (f *fakeEmbedder) setFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

type fakeQueue struct {
	mu         sync.Mutex
	jobs       []*queue.Job
	acked      []string
	enqueueErr error
}

func (q *fakeQueue) Enqueue(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Lease(context.Context, time.Duration) (*queue.Job, error) { return nil, nil }

func (q *fakeQueue) Ack(_ context.Context, documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, documentID)
	return nil
}

func (q *fakeQueue) Nack(context.Context, *queue.Job, bool) error { return nil }

func (q *fakeQueue) ReapExpired(context.Context, int) ([]*queue.Job, []*queue.Job, error) {
	return nil, nil, nil
}

func (q *fakeQueue) Depth(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

func (q *fakeQueue) DeadLetters(context.Context, int) ([]*queue.Job, error) { return nil, nil }

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) enqueued() []*queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*queue.Job(nil), q.jobs...)
}

func (q *fakeQueue) ackedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...)
}

type testEnv struct {
	coordinator *Coordinator
	store       *store.GORMStore
	blobs       blob.Store
	queue       *fakeQueue
	bus         *events.Bus
	embedder    *fakeEmbedder
	registry    *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:             store.DatabaseTypeSQLite,
		SQLite:           store.SQLiteConfig{Path: ":memory:"},
		VectorDimensions: testDims,
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blob.NewFilesystemStore(blob.FilesystemConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	t.Cleanup(func() { blobs.Close() })

	bus := events.NewBus(events.Config{BufferSize: 64})
	t.Cleanup(bus.Close)

	fq := &fakeQueue{}
	fe := &fakeEmbedder{}
	reg := registry.New(st, blobs, bus)
	if _, err := reg.EnsureDefault(context.Background()); err != nil {
		t.Fatalf("failed to seed default profile: %v", err)
	}

	coordinator, err := NewCoordinator(Config{}, st, blobs, fq, bus, fe, reg, nil)
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}

	return &testEnv{
		coordinator: coordinator,
		store:       st,
		blobs:       blobs,
		queue:       fq,
		bus:         bus,
		embedder:    fe,
		registry:    reg,
	}
}

func textUpload(name, content string) UploadInput {
	return UploadInput{
		Filename:     name,
		Content:      []byte(content),
		DeclaredMIME: "text/plain",
		Source:       models.SourceManual,
	}
}

func (e *testEnv) mustUpload(t *testing.T, input UploadInput) *models.Document {
	t.Helper()
	doc, err := e.coordinator.Upload(context.Background(), input)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	return doc
}

func (e *testEnv) document(t *testing.T, id string) *models.Document {
	t.Helper()
	doc, err := e.store.GetDocument(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load document %s: %v", id, err)
	}
	return doc
}

func nextEvent(t *testing.T, sub *events.Subscription) events.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

// successCallback builds a worker report that passes the quality gate.
func successCallback(docID string, chunkCount int) *CallbackRequest {
	started := time.Now().UTC()
	completed := started.Add(250 * time.Millisecond)
	chunks := make([]CallbackChunk, chunkCount)
	for i := range chunks {
		score := 0.9
		chunks[i] = CallbackChunk{
			Index:     i,
			Content:   sampleText,
			Embedding: []float32{float32(i), 1, 0},
			Metadata: &ChunkMetadata{
				Breadcrumbs:  []string{"Doc"},
				TokenCount:   40,
				QualityScore: &score,
				Completeness: CompletenessComplete,
			},
		}
	}
	return &CallbackRequest{
		DocumentID: docID,
		Success:    true,
		Result: &CallbackResult{
			ProcessedContent: sampleText,
			Chunks:           chunks,
			Metrics: &CallbackMetrics{
				ConversionTimeMs: 120,
				ChunkingTimeMs:   30,
				EmbeddingTimeMs:  80,
				TotalTimeMs:      230,
				StartedAt:        &started,
				CompletedAt:      &completed,
			},
		},
	}
}

func TestUploadFastLane(t *testing.T) {
	env := newTestEnv(t)
	sub := env.bus.Subscribe()
	defer sub.Unsubscribe()

	doc := env.mustUpload(t, textUpload("notes.txt", sampleText))

	// The response reports the accepted state even though the fast lane
	// already settled the document.
	if doc.Status != string(models.StatusPending) {
		t.Errorf("expected PENDING in the response, got %s", doc.Status)
	}

	settled := env.document(t, doc.ID)
	if settled.GetStatus() != models.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (reason %v)", settled.Status, settled.FailReason)
	}
	if settled.ProcessedContent == nil || *settled.ProcessedContent == "" {
		t.Error("expected processed content")
	}
	if settled.ProcessedAt == nil {
		t.Error("expected processed timestamp")
	}
	if settled.StoragePath == nil {
		t.Error("manual uploads keep their blob")
	}

	count, err := env.store.CountChunks(context.Background(), doc.ID)
	if err != nil || count == 0 {
		t.Errorf("expected persisted chunks, got %d (err %v)", count, err)
	}

	metrics, err := env.store.GetMetrics(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("expected metrics row: %v", err)
	}
	if metrics.TotalChunks != int(count) {
		t.Errorf("metrics count %d, chunks %d", metrics.TotalChunks, count)
	}
	if metrics.RawSizeBytes != int64(len(sampleText)) {
		t.Errorf("unexpected raw size %d", metrics.RawSizeBytes)
	}

	// created, then completed.
	ev := nextEvent(t, sub)
	created, ok := ev.(events.DocumentCreated)
	if !ok || created.ID != doc.ID {
		t.Fatalf("expected DocumentCreated, got %#v", ev)
	}
	ev = nextEvent(t, sub)
	status, ok := ev.(events.DocumentStatus)
	if !ok || status.Status != string(models.StatusCompleted) {
		t.Fatalf("expected COMPLETED status event, got %#v", ev)
	}
	if status.ChunksCount == nil || *status.ChunksCount != int(count) {
		t.Errorf("expected chunksCount %d, got %v", count, status.ChunksCount)
	}
}

func TestUploadHeavyLane(t *testing.T) {
	env := newTestEnv(t)

	doc := env.mustUpload(t, UploadInput{
		Filename:     "report.pdf",
		Content:      []byte("%PDF-1.4 payload"),
		DeclaredMIME: "application/pdf",
		Source:       models.SourceManual,
	})

	if doc.Status != string(models.StatusProcessing) {
		t.Errorf("expected PROCESSING in the response, got %s", doc.Status)
	}

	stored := env.document(t, doc.ID)
	if stored.GetStatus() != models.StatusProcessing {
		t.Errorf("expected PROCESSING in the store, got %s", stored.Status)
	}

	jobs := env.queue.enqueued()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.DocumentID != doc.ID {
		t.Errorf("job document %s, want %s", job.DocumentID, doc.ID)
	}
	if job.Format != string(models.FormatPDF) {
		t.Errorf("job format %s", job.Format)
	}
	if stored.StoragePath == nil || job.StoragePath != env.blobs.Path(*stored.StoragePath) {
		t.Errorf("job path %q does not resolve the blob key", job.StoragePath)
	}
	if job.ProfileConfig.ChunkSize != models.DefaultProfileConfig().ChunkSize {
		t.Errorf("job profile config not snapshotted: %+v", job.ProfileConfig)
	}
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		_, err := env.coordinator.Upload(ctx, textUpload("notes.txt", ""))
		if !errors.Is(err, models.ErrEmptyUpload) {
			t.Errorf("expected ErrEmptyUpload, got %v", err)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := env.coordinator.Upload(ctx, textUpload("virus.exe", sampleText))
		if !errors.Is(err, models.ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
	})

	t.Run("size cap by source", func(t *testing.T) {
		capped, err := NewCoordinator(Config{ManualMaxBytes: 16},
			env.store, env.blobs, env.queue, env.bus, env.embedder, env.registry, nil)
		if err != nil {
			t.Fatalf("failed to create coordinator: %v", err)
		}
		_, err = capped.Upload(ctx, textUpload("big.txt", strings.Repeat("a", 17)))
		if !errors.Is(err, models.ErrFileTooLarge) {
			t.Errorf("expected ErrFileTooLarge, got %v", err)
		}
	})

	t.Run("duplicate content within source", func(t *testing.T) {
		env.mustUpload(t, textUpload("first.txt", sampleText+" dup check."))
		_, err := env.coordinator.Upload(ctx, textUpload("second.txt", sampleText+" dup check."))
		if !errors.Is(err, models.ErrDuplicateDocument) {
			t.Errorf("expected ErrDuplicateDocument, got %v", err)
		}
	})

	t.Run("same content allowed across sources", func(t *testing.T) {
		content := sampleText + " cross-source copy."
		manual := env.mustUpload(t, textUpload("a.txt", content))
		external := env.mustUpload(t, UploadInput{
			Filename: "b.txt",
			Content:  []byte(content),
			Source:   models.SourceExternal,
		})

		manualDoc := env.document(t, manual.ID)
		externalDoc := env.document(t, external.ID)
		if manualDoc.ContentHash != externalDoc.ContentHash {
			t.Error("expected identical content hashes")
		}
		if externalDoc.ConnectionState != string(models.ConnectionLinked) {
			t.Errorf("expected LINKED external document, got %s", externalDoc.ConnectionState)
		}
	})
}

func TestUploadFastLaneGateFailure(t *testing.T) {
	env := newTestEnv(t)

	doc := env.mustUpload(t, textUpload("tiny.txt", "Too short."))

	settled := env.document(t, doc.ID)
	if settled.GetStatus() != models.StatusFailed {
		t.Fatalf("expected FAILED, got %s", settled.Status)
	}
	if settled.FailReason == nil || *settled.FailReason != QualityTextTooShort {
		t.Errorf("expected %s, got %v", QualityTextTooShort, settled.FailReason)
	}
}

func TestUploadEnqueueFailure(t *testing.T) {
	env := newTestEnv(t)
	env.queue.enqueueErr = errors.New("backend down")

	_, err := env.coordinator.Upload(context.Background(), UploadInput{
		Filename: "report.pdf",
		Content:  []byte("%PDF-1.4 payload"),
		Source:   models.SourceManual,
	})
	if !errors.Is(err, models.ErrQueueUnavailable) {
		t.Fatalf("expected ErrQueueUnavailable, got %v", err)
	}

	docs, _, lerr := env.store.ListDocuments(context.Background(), store.DocumentFilter{})
	if lerr != nil || len(docs) != 1 {
		t.Fatalf("expected the document row to survive, got %d (err %v)", len(docs), lerr)
	}
	if docs[0].GetStatus() != models.StatusFailed {
		t.Errorf("expected FAILED, got %s", docs[0].Status)
	}
	if docs[0].FailReason == nil || !strings.HasPrefix(*docs[0].FailReason, queue.FailureReasonDispatch) {
		t.Errorf("expected dispatch failure reason, got %v", docs[0].FailReason)
	}
}

func TestApplyCallbackSuccess(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "report.pdf",
		Content:  []byte("%PDF-1.4 payload"),
		Source:   models.SourceManual,
	})

	if err := env.coordinator.ApplyCallback(context.Background(), successCallback(doc.ID, 2)); err != nil {
		t.Fatalf("callback failed: %v", err)
	}

	settled := env.document(t, doc.ID)
	if settled.GetStatus() != models.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (reason %v)", settled.Status, settled.FailReason)
	}

	chunks, err := env.store.ListChunks(context.Background(), doc.ID)
	if err != nil || len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d (err %v)", len(chunks), err)
	}
	if chunks[0].ChunkIndex != 0 || chunks[1].ChunkIndex != 1 {
		t.Error("chunks out of order")
	}

	metrics, err := env.store.GetMetrics(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("expected metrics: %v", err)
	}
	if metrics.TotalChunks != 2 || metrics.ConversionTimeMs != 120 {
		t.Errorf("unexpected metrics %+v", metrics)
	}
	if metrics.QueueTimeMs < 0 {
		t.Errorf("queue time must be clamped at zero, got %d", metrics.QueueTimeMs)
	}

	acked := env.queue.ackedIDs()
	if len(acked) == 0 || acked[len(acked)-1] != doc.ID {
		t.Errorf("expected lease ack for %s, got %v", doc.ID, acked)
	}
}

func TestApplyCallbackFailure(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "scan.pdf",
		Content:  []byte("%PDF-1.4 scan"),
		Source:   models.SourceManual,
	})

	req := &CallbackRequest{
		DocumentID: doc.ID,
		Success:    false,
		Error:      &CallbackError{Code: "CONVERSION_FAILED", Message: "unreadable page"},
	}
	if err := env.coordinator.ApplyCallback(context.Background(), req); err != nil {
		t.Fatalf("failure callback should apply cleanly: %v", err)
	}

	settled := env.document(t, doc.ID)
	if settled.GetStatus() != models.StatusFailed {
		t.Fatalf("expected FAILED, got %s", settled.Status)
	}
	if settled.FailReason == nil || *settled.FailReason != "CONVERSION_FAILED" {
		t.Errorf("expected CONVERSION_FAILED, got %v", settled.FailReason)
	}
	if acked := env.queue.ackedIDs(); len(acked) == 0 {
		t.Error("expected lease ack on failure")
	}
}

func TestApplyCallbackIdempotent(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "report.pdf",
		Content:  []byte("%PDF-1.4 payload"),
		Source:   models.SourceManual,
	})

	req := successCallback(doc.ID, 3)
	for i := 0; i < 2; i++ {
		if err := env.coordinator.ApplyCallback(context.Background(), req); err != nil {
			t.Fatalf("apply %d failed: %v", i+1, err)
		}
	}

	count, err := env.store.CountChunks(context.Background(), doc.ID)
	if err != nil || count != 3 {
		t.Errorf("expected chunk set replaced, not appended: got %d (err %v)", count, err)
	}
	if env.document(t, doc.ID).GetStatus() != models.StatusCompleted {
		t.Error("expected COMPLETED after replay")
	}
}

func TestApplyCallbackNeverDowngradesCompleted(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "report.pdf",
		Content:  []byte("%PDF-1.4 payload"),
		Source:   models.SourceManual,
	})

	if err := env.coordinator.ApplyCallback(context.Background(), successCallback(doc.ID, 1)); err != nil {
		t.Fatalf("success callback failed: %v", err)
	}

	late := &CallbackRequest{
		DocumentID: doc.ID,
		Success:    false,
		Error:      &CallbackError{Code: "TIMEOUT"},
	}
	if err := env.coordinator.ApplyCallback(context.Background(), late); err != nil {
		t.Fatalf("stale failure should be dropped, not errored: %v", err)
	}

	if env.document(t, doc.ID).GetStatus() != models.StatusCompleted {
		t.Error("completed document must not be downgraded")
	}
}

func TestApplyCallbackLateSuccessBeatsTimeout(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "slow.pdf",
		Content:  []byte("%PDF-1.4 slow"),
		Source:   models.SourceManual,
	})

	// Reaper exhausted the lease before the callback arrived.
	env.coordinator.ReportDispatchFailure(context.Background(), doc.ID, queue.FailureReasonTimeout)
	if env.document(t, doc.ID).GetStatus() != models.StatusFailed {
		t.Fatal("expected FAILED after dispatch failure")
	}

	if err := env.coordinator.ApplyCallback(context.Background(), successCallback(doc.ID, 1)); err != nil {
		t.Fatalf("late callback failed: %v", err)
	}

	settled := env.document(t, doc.ID)
	if settled.GetStatus() != models.StatusCompleted {
		t.Fatalf("late result must win, got %s", settled.Status)
	}
	if settled.FailReason != nil {
		t.Errorf("expected cleared failure reason, got %q", *settled.FailReason)
	}
}

func TestApplyCallbackUnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	err := env.coordinator.ApplyCallback(context.Background(), successCallback("no-such-doc", 1))
	if !errors.Is(err, models.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if acked := env.queue.ackedIDs(); len(acked) != 1 || acked[0] != "no-such-doc" {
		t.Errorf("expected stale lease acked, got %v", acked)
	}
}

func TestApplyCallbackQualityGate(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "thin.pdf",
		Content:  []byte("%PDF-1.4 thin"),
		Source:   models.SourceManual,
	})

	req := successCallback(doc.ID, 1)
	req.Result.ProcessedContent = "Nearly nothing."
	if err := env.coordinator.ApplyCallback(context.Background(), req); err != nil {
		t.Fatalf("gate rejection should apply cleanly: %v", err)
	}

	settled := env.document(t, doc.ID)
	if settled.GetStatus() != models.StatusFailed {
		t.Fatalf("expected FAILED, got %s", settled.Status)
	}
	if settled.FailReason == nil || *settled.FailReason != QualityTextTooShort {
		t.Errorf("expected %s, got %v", QualityTextTooShort, settled.FailReason)
	}
}

func TestApplyCallbackExternalCleanup(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "synced.pdf",
		Content:  []byte("%PDF-1.4 synced"),
		Source:   models.SourceExternal,
	})

	key := *env.document(t, doc.ID).StoragePath
	if err := env.coordinator.ApplyCallback(context.Background(), successCallback(doc.ID, 1)); err != nil {
		t.Fatalf("callback failed: %v", err)
	}

	settled := env.document(t, doc.ID)
	if settled.StoragePath != nil {
		t.Error("expected storage path cleared for external source")
	}
	if _, err := env.blobs.Open(context.Background(), key); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("expected blob removed, got %v", err)
	}
}

func TestRetryFastLane(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.setFailure(errors.New("model warming up"))

	doc := env.mustUpload(t, textUpload("notes.txt", sampleText))
	if env.document(t, doc.ID).GetStatus() != models.StatusFailed {
		t.Fatal("expected FAILED while the embedder is down")
	}

	env.embedder.setFailure(nil)
	retried, err := env.coordinator.Retry(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried.GetStatus() != models.StatusCompleted {
		t.Fatalf("expected COMPLETED after retry, got %s", retried.Status)
	}
	if retried.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", retried.RetryCount)
	}
	if retried.FailReason != nil {
		t.Errorf("expected cleared failure reason, got %q", *retried.FailReason)
	}
}

func TestRetryHeavyLane(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "report.pdf",
		Content:  []byte("%PDF-1.4 payload"),
		Source:   models.SourceManual,
	})
	env.coordinator.ReportDispatchFailure(context.Background(), doc.ID, queue.FailureReasonDispatch)

	retried, err := env.coordinator.Retry(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried.GetStatus() != models.StatusProcessing {
		t.Errorf("expected PROCESSING, got %s", retried.Status)
	}
	if jobs := env.queue.enqueued(); len(jobs) != 2 {
		t.Errorf("expected a second enqueue, got %d jobs", len(jobs))
	}
}

func TestRetryRequiresFailedStatus(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, textUpload("notes.txt", sampleText))

	_, err := env.coordinator.Retry(context.Background(), doc.ID)
	if !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus for completed document, got %v", err)
	}
}

func TestRetryContentUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.setFailure(errors.New("model down"))
	doc := env.mustUpload(t, textUpload("notes.txt", sampleText))
	env.embedder.setFailure(nil)

	if err := env.store.ClearStoragePath(context.Background(), doc.ID); err != nil {
		t.Fatalf("failed to clear storage path: %v", err)
	}

	_, err := env.coordinator.Retry(context.Background(), doc.ID)
	if !errors.Is(err, models.ErrContentUnavailable) {
		t.Errorf("expected ErrContentUnavailable, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, textUpload("notes.txt", sampleText))
	key := *env.document(t, doc.ID).StoragePath

	if err := env.coordinator.Delete(context.Background(), doc.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := env.store.GetDocument(context.Background(), doc.ID); !errors.Is(err, models.ErrDocumentNotFound) {
		t.Errorf("expected document gone, got %v", err)
	}
	if _, err := env.blobs.Open(context.Background(), key); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("expected blob unlinked, got %v", err)
	}
}

func TestDeleteRefusesProcessing(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "report.pdf",
		Content:  []byte("%PDF-1.4 payload"),
		Source:   models.SourceManual,
	})

	err := env.coordinator.Delete(context.Background(), doc.ID)
	if !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus for processing document, got %v", err)
	}
}

func TestDeleteKeepsSharedBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content := sampleText + " shared across sources."

	manual := env.mustUpload(t, textUpload("a.txt", content))
	key := *env.document(t, manual.ID).StoragePath

	// The same bytes land on the same blob key regardless of source. The
	// external fast lane releases its reference on completion, but the
	// manual document still holds one, so the blob must survive.
	external := env.mustUpload(t, UploadInput{
		Filename: "b.txt",
		Content:  []byte(content),
		Source:   models.SourceExternal,
	})
	if env.document(t, external.ID).StoragePath != nil {
		t.Error("expected external reference released on completion")
	}
	if _, err := env.blobs.Open(ctx, key); err != nil {
		t.Fatalf("shared blob must survive the external release: %v", err)
	}

	if err := env.coordinator.Delete(ctx, manual.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := env.blobs.Open(ctx, key); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("expected blob unlinked with the last reference, got %v", err)
	}
}

func TestBulkDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.mustUpload(t, textUpload("one.txt", sampleText+" one."))
	second := env.mustUpload(t, textUpload("two.txt", sampleText+" two."))
	processing := env.mustUpload(t, UploadInput{
		Filename: "busy.pdf",
		Content:  []byte("%PDF-1.4 busy"),
		Source:   models.SourceManual,
	})

	result, err := env.coordinator.BulkDelete(ctx, []string{first.ID, second.ID, processing.ID, "missing"})
	if err != nil {
		t.Fatalf("bulk delete failed: %v", err)
	}
	if result.Updated != 2 {
		t.Errorf("expected 2 deleted, got %d", result.Updated)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %v", result.Failed)
	}

	reasons := map[string]string{}
	for _, f := range result.Failed {
		reasons[f.ID] = f.Reason
	}
	if reasons[processing.ID] != "INVALID_STATUS" {
		t.Errorf("expected INVALID_STATUS for processing doc, got %q", reasons[processing.ID])
	}
	if reasons["missing"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %q", reasons["missing"])
	}
}

func TestBulkLimits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ids := make([]string, maxBulkSize+1)
	for i := range ids {
		ids[i] = "doc"
	}
	if _, err := env.coordinator.BulkDelete(ctx, ids); !errors.Is(err, models.ErrBulkLimitExceeded) {
		t.Errorf("expected ErrBulkLimitExceeded, got %v", err)
	}
	if _, err := env.coordinator.BulkSetAvailability(ctx, ids, false); !errors.Is(err, models.ErrBulkLimitExceeded) {
		t.Errorf("expected ErrBulkLimitExceeded, got %v", err)
	}
	if _, err := env.coordinator.BulkDelete(ctx, nil); err == nil {
		t.Error("expected error for empty ID list")
	}
}

func TestSetAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.mustUpload(t, textUpload("notes.txt", sampleText))

	updated, err := env.coordinator.SetAvailability(ctx, doc.ID, false)
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if updated.IsActive {
		t.Error("expected document deactivated")
	}

	pending := env.mustUpload(t, UploadInput{
		Filename: "fresh.pdf",
		Content:  []byte("%PDF-1.4 fresh"),
		Source:   models.SourceManual,
	})
	if _, err := env.coordinator.SetAvailability(ctx, pending.ID, false); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus for non-completed doc, got %v", err)
	}
}

func TestBulkSetAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	good := env.mustUpload(t, textUpload("good.txt", sampleText+" good."))
	pending := env.mustUpload(t, UploadInput{
		Filename: "fresh.pdf",
		Content:  []byte("%PDF-1.4 fresh"),
		Source:   models.SourceManual,
	})

	result, err := env.coordinator.BulkSetAvailability(ctx, []string{good.ID, pending.ID}, false)
	if err != nil {
		t.Fatalf("bulk availability failed: %v", err)
	}
	if result.Updated != 1 || len(result.Failed) != 1 {
		t.Fatalf("expected 1 updated and 1 failed, got %+v", result)
	}
	if result.Failed[0].Reason != "INVALID_STATUS" {
		t.Errorf("expected INVALID_STATUS, got %q", result.Failed[0].Reason)
	}
	if env.document(t, good.ID).IsActive {
		t.Error("expected completed document deactivated")
	}
}

func TestReportDispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	doc := env.mustUpload(t, UploadInput{
		Filename: "report.pdf",
		Content:  []byte("%PDF-1.4 payload"),
		Source:   models.SourceManual,
	})

	env.coordinator.ReportDispatchFailure(context.Background(), doc.ID, queue.FailureReasonTimeout)

	settled := env.document(t, doc.ID)
	if settled.GetStatus() != models.StatusFailed {
		t.Fatalf("expected FAILED, got %s", settled.Status)
	}
	if settled.FailReason == nil || *settled.FailReason != queue.FailureReasonTimeout {
		t.Errorf("expected TIMEOUT reason, got %v", settled.FailReason)
	}

	// A settled document is left alone.
	if err := env.coordinator.ApplyCallback(context.Background(), successCallback(doc.ID, 1)); err != nil {
		t.Fatalf("late callback failed: %v", err)
	}
	env.coordinator.ReportDispatchFailure(context.Background(), doc.ID, queue.FailureReasonTimeout)
	if env.document(t, doc.ID).GetStatus() != models.StatusCompleted {
		t.Error("dispatch failure must not downgrade a completed document")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"notes.txt", "notes.txt"},
		{"/etc/passwd", "passwd"},
		{`C:\Users\me\report.pdf`, "report.pdf"},
		{"../../escape.md", "escape.md"},
		{"  spaced.txt ", "spaced.txt"},
		{"bad\x00name.txt", "badname.txt"},
		{"..", ""},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in, 255); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	long := strings.Repeat("a", 300) + ".txt"
	got := sanitizeFilename(long, 255)
	if len(got) != 255 || !strings.HasSuffix(got, ".txt") {
		t.Errorf("expected bounded name keeping extension, got %d runes", len(got))
	}
}
