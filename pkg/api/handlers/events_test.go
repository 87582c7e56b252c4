package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quernlabs/quern/pkg/events"
)

// readFrame reads one SSE frame, skipping keepalive comments.
func readFrame(t *testing.T, reader *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")

		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventStream(t *testing.T) {
	bus := events.NewBus(events.Config{BufferSize: 8})
	defer bus.Close()

	srv := httptest.NewServer(http.HandlerFunc(NewEventsHandler(bus).Stream))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", ct)
	}

	reader := bufio.NewReader(resp.Body)

	event, _ := readFrame(t, reader)
	if event != "ready" {
		t.Fatalf("expected ready frame first, got %q", event)
	}

	// The ready frame is written after Subscribe, so this publish cannot
	// race the subscription.
	bus.Publish(events.DocumentCreated{ID: "doc-1", Filename: "notes.txt", Status: "PENDING"})

	event, data := readFrame(t, reader)
	if event != "document:created" {
		t.Errorf("expected document:created, got %q", event)
	}
	var payload struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("failed to decode frame data %q: %v", data, err)
	}
	if payload.ID != "doc-1" || payload.Filename != "notes.txt" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestEventStreamEndsOnBusClose(t *testing.T) {
	bus := events.NewBus(events.Config{BufferSize: 8})

	srv := httptest.NewServer(http.HandlerFunc(NewEventsHandler(bus).Stream))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	if event, _ := readFrame(t, reader); event != "ready" {
		t.Fatalf("expected ready frame, got %q", event)
	}

	bus.Close()

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, reader)
		done <- err
	}()
	select {
	case <-done:
		// Stream ended; EOF or a benign close error are both fine.
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after bus close")
	}
}

func TestEventStreamNilBus(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)

	NewEventsHandler(nil).Stream(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}
