package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type reportedFailure struct {
	documentID string
	reason     string
}

type captureReporter struct {
	ch chan reportedFailure
}

func newCaptureReporter() *captureReporter {
	return &captureReporter{ch: make(chan reportedFailure, 8)}
}

func (r *captureReporter) ReportDispatchFailure(ctx context.Context, documentID, reason string) {
	r.ch <- reportedFailure{documentID: documentID, reason: reason}
}

func (r *captureReporter) wait(t *testing.T) reportedFailure {
	t.Helper()
	select {
	case f := <-r.ch:
		return f
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for failure report")
		return reportedFailure{}
	}
}

func stopDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestNewDispatcher(t *testing.T) {
	q := newBadgerTestQueue(t)

	if _, err := NewDispatcher(DispatcherConfig{}, q, nil, nil); err == nil {
		t.Error("NewDispatcher() without endpoint: error = nil, want error")
	}

	d, err := NewDispatcher(DispatcherConfig{Endpoint: "http://localhost:9876/process"}, q, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	if d.config.Workers != 1 {
		t.Errorf("Workers = %d, want default 1", d.config.Workers)
	}
	if d.config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", d.config.MaxRetries)
	}
}

func TestDispatcherDeliversJob(t *testing.T) {
	bodyCh := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode dispatch body: %v", err)
		}
		select {
		case bodyCh <- body:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := newBadgerTestQueue(t)
	d, err := NewDispatcher(DispatcherConfig{Endpoint: srv.URL}, q, nil, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopDispatcher(t, d)

	if err := q.Enqueue(context.Background(), testJob("doc-1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	var body map[string]any
	select {
	case body = <-bodyCh:
	case <-time.After(10 * time.Second):
		t.Fatal("worker never received the job")
	}

	if got := body["documentId"]; got != "doc-1" {
		t.Errorf("documentId = %v, want doc-1", got)
	}
	if got := body["filePath"]; got != "/data/blobs/ab/abcdef" {
		t.Errorf("filePath = %v, want /data/blobs/ab/abcdef", got)
	}
	if got := body["format"]; got != "pdf" {
		t.Errorf("format = %v, want pdf", got)
	}
	if _, ok := body["profileConfig"]; !ok {
		t.Error("dispatch body is missing profileConfig")
	}

	// A 2xx response only means the worker accepted the job: the lease
	// must stay open for the processing callback to settle.
	depth, err := q.Depth(context.Background())
	if err != nil {
		t.Fatalf("Depth() error = %v", err)
	}
	if depth != 0 {
		t.Errorf("Depth() = %d, want 0", depth)
	}
	if err := q.Ack(context.Background(), "doc-1"); err != nil {
		t.Errorf("Ack() error = %v", err)
	}
}

func TestDispatcherDeadLettersOnWorkerErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := newBadgerTestQueue(t)
	reporter := newCaptureReporter()
	d, err := NewDispatcher(DispatcherConfig{
		Endpoint:   srv.URL,
		MaxRetries: 1,
	}, q, reporter, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopDispatcher(t, d)

	if err := q.Enqueue(context.Background(), testJob("doc-1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	report := reporter.wait(t)
	if report.documentID != "doc-1" {
		t.Errorf("reported document = %s, want doc-1", report.documentID)
	}
	if report.reason != FailureReasonDispatch {
		t.Errorf("reported reason = %s, want %s", report.reason, FailureReasonDispatch)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("worker hit %d times, want 2 (initial + one retry)", got)
	}

	dead, err := q.DeadLetters(context.Background(), 10)
	if err != nil {
		t.Fatalf("DeadLetters() error = %v", err)
	}
	if len(dead) != 1 || dead[0].DocumentID != "doc-1" {
		t.Errorf("DeadLetters() = %v, want [doc-1]", dead)
	}
}

func TestDispatcherClassifiesTimeouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := newBadgerTestQueue(t)
	reporter := newCaptureReporter()
	d, err := NewDispatcher(DispatcherConfig{
		Endpoint:       srv.URL,
		RequestTimeout: 50 * time.Millisecond,
		MaxRetries:     1,
	}, q, reporter, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopDispatcher(t, d)

	if err := q.Enqueue(context.Background(), testJob("doc-1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	report := reporter.wait(t)
	if report.reason != FailureReasonTimeout {
		t.Errorf("reported reason = %s, want %s", report.reason, FailureReasonTimeout)
	}
}

func TestDispatcherReaperReclaimsSilentJobs(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK) // Accepted, but no callback ever lands.
	}))
	defer srv.Close()

	q := newBadgerTestQueue(t)
	reporter := newCaptureReporter()
	d, err := NewDispatcher(DispatcherConfig{
		Endpoint:     srv.URL,
		LeaseTTL:     50 * time.Millisecond,
		ReapInterval: 25 * time.Millisecond,
	}, q, reporter, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopDispatcher(t, d)

	if err := q.Enqueue(context.Background(), testJob("doc-1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	report := reporter.wait(t)
	if report.reason != FailureReasonTimeout {
		t.Errorf("reported reason = %s, want %s", report.reason, FailureReasonTimeout)
	}
	if got := hits.Load(); got < 2 {
		t.Errorf("worker hit %d times, want at least 2 redispatches", got)
	}
}

func TestBackoffFor(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{63, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffFor(tt.attempt); got != tt.want {
			t.Errorf("backoffFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
