// Package embed provides the HTTP client for the external embedding
// service. Chunk and query text goes out as a JSON batch; vectors come
// back dimension-checked against the store's configured width.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quernlabs/quern/pkg/models"
)

// maxBatchSize caps how many inputs go out in one request. Larger
// batches are split and reassembled in order.
const maxBatchSize = 64

// Embedder turns text into vectors. Implemented by Client; consumers
// take the interface so tests can substitute a fake.
type Embedder interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the vector width the service is expected to
	// produce.
	Dimensions() int
}

// Config contains embedding service configuration.
type Config struct {
	// Endpoint is the URL of the embedding service.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// Model is sent with every request.
	Model string `mapstructure:"model" yaml:"model,omitempty"`

	// APIKey is sent as a bearer token when set.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// Timeout bounds a single embedding request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`

	// Dimensions is the expected vector width. Must match the store.
	Dimensions int `mapstructure:"dimensions" yaml:"dimensions,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "nomic-embed-text"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Dimensions <= 0 {
		c.Dimensions = 768
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("embedding endpoint is required")
	}
	return nil
}

// Client is the embedding service client.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	dimensions int
	httpClient *http.Client
}

// NewClient creates an embedding client from the given configuration.
func NewClient(config Config) (*Client, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		endpoint:   config.Endpoint,
		model:      config.Model,
		apiKey:     config.APIKey,
		dimensions: config.Dimensions,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Dimensions returns the expected vector width.
func (c *Client) Dimensions() int {
	return c.dimensions
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per input, in input order. Batches larger
// than the request cap are split transparently.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		batch, err := c.embedBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery embeds a single search query.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding service returned %d vectors for one query", len(vectors))
	}
	return vectors[0], nil
}

func (c *Client) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", models.ErrEmbeddingUnavailable, err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", models.ErrEmbeddingUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedding request rejected: status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	var decoded embedResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(decoded.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(decoded.Embeddings), len(inputs))
	}
	for i, vec := range decoded.Embeddings {
		if len(vec) != c.dimensions {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", models.ErrDimensionMismatch, i, len(vec), c.dimensions)
		}
	}
	return decoded.Embeddings, nil
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
