package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/quernlabs/quern/pkg/models"
)

// newEchoServer returns a server that answers each input with a
// 3-vector [n, 0, 0] where n is the input parsed as a number. Lets
// tests verify order across batches.
func newEchoServer(t *testing.T, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode embedding request: %v", err)
		}
		resp := embedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i, input := range req.Input {
			n, _ := strconv.Atoi(input)
			resp.Embeddings[i] = []float32{float32(n), 0, 0}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(Config{Endpoint: endpoint, Dimensions: 3})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("NewClient() without endpoint: error = nil, want error")
	}

	client, err := NewClient(Config{Endpoint: "http://localhost:11434/embed"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.Dimensions() != 768 {
		t.Errorf("Dimensions() = %d, want default 768", client.Dimensions())
	}
	if client.model != "nomic-embed-text" {
		t.Errorf("model = %s, want default nomic-embed-text", client.model)
	}
}

func TestEmbed(t *testing.T) {
	srv := newEchoServer(t, nil)
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	vectors, err := client.Embed(context.Background(), []string{"1", "2", "3"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("Embed() returned %d vectors, want 3", len(vectors))
	}
	for i, want := range []float32{1, 2, 3} {
		if vectors[i][0] != want {
			t.Errorf("vectors[%d][0] = %v, want %v", i, vectors[i][0], want)
		}
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	client := newTestClient(t, "http://localhost:1") // must not be contacted
	vectors, err := client.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed(nil) error = %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("Embed(nil) = %v, want empty", vectors)
	}
}

func TestEmbedSplitsLargeBatches(t *testing.T) {
	var requests atomic.Int64
	srv := newEchoServer(t, &requests)
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	inputs := make([]string, 150)
	for i := range inputs {
		inputs[i] = strconv.Itoa(i)
	}

	vectors, err := client.Embed(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
	if len(vectors) != 150 {
		t.Fatalf("Embed() returned %d vectors, want 150", len(vectors))
	}
	// Order must survive the batch split.
	for i := range vectors {
		if vectors[i][0] != float32(i) {
			t.Fatalf("vectors[%d][0] = %v, want %v", i, vectors[i][0], float32(i))
		}
	}
}

func TestEmbedQuery(t *testing.T) {
	srv := newEchoServer(t, nil)
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	vec, err := client.EmbedQuery(context.Background(), "7")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if vec[0] != 7 {
		t.Errorf("vec[0] = %v, want 7", vec[0])
	}
}

func TestEmbedSendsModelAndAuth(t *testing.T) {
	var gotModel, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0, 0, 0}}})
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		Endpoint:   srv.URL,
		Model:      "custom-model",
		APIKey:     "secret",
		Dimensions: 3,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.EmbedQuery(context.Background(), "hello"); err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if gotModel != "custom-model" {
		t.Errorf("model = %s, want custom-model", gotModel)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %s, want Bearer secret", gotAuth)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	_, err := client.EmbedQuery(context.Background(), "hello")
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("EmbedQuery() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0, 0, 0}, {0, 0, 0}}})
	}))
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	_, err := client.EmbedQuery(context.Background(), "hello")
	if err == nil {
		t.Error("EmbedQuery() error = nil, want count mismatch error")
	}
}

func TestEmbedUnavailable(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		client := newTestClient(t, srv.URL)

		_, err := client.EmbedQuery(context.Background(), "hello")
		if !errors.Is(err, models.ErrEmbeddingUnavailable) {
			t.Errorf("error = %v, want ErrEmbeddingUnavailable", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // shut down before the call
		client := newTestClient(t, srv.URL)

		_, err := client.EmbedQuery(context.Background(), "hello")
		if !errors.Is(err, models.ErrEmbeddingUnavailable) {
			t.Errorf("error = %v, want ErrEmbeddingUnavailable", err)
		}
	})

	t.Run("client error is not unavailability", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()
		client := newTestClient(t, srv.URL)

		_, err := client.EmbedQuery(context.Background(), "hello")
		if err == nil {
			t.Fatal("error = nil, want rejection error")
		}
		if errors.Is(err, models.ErrEmbeddingUnavailable) {
			t.Errorf("a 400 response must not read as unavailability: %v", err)
		}
	})
}
