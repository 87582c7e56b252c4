// Package search exposes the retrieval gateway: it validates query
// requests, embeds the query text, and delegates ranked retrieval to
// the store. Visibility rules live in the store; the gateway never
// widens them.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/pkg/embed"
	"github.com/quernlabs/quern/pkg/store"
)

// Request bound defaults.
const (
	defaultMaxQueryRunes = 1000
	defaultMaxTopK       = 100
	defaultTopK          = 5
	defaultAlpha         = 0.7
)

// Config tunes the request bounds. Zero values take the package defaults.
type Config struct {
	// DefaultTopK is the result count when the request omits topK.
	DefaultTopK int `mapstructure:"default_top_k" yaml:"default_top_k,omitempty"`

	// MaxTopK is the largest accepted topK.
	MaxTopK int `mapstructure:"max_top_k" yaml:"max_top_k,omitempty"`

	// DefaultAlpha weighs the vector score when a hybrid request omits
	// alpha.
	DefaultAlpha float64 `mapstructure:"default_alpha" yaml:"default_alpha,omitempty"`

	// MaxQueryLength is the longest accepted query, in runes.
	MaxQueryLength int `mapstructure:"max_query_length" yaml:"max_query_length,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = defaultTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = defaultMaxTopK
	}
	if c.DefaultAlpha <= 0 || c.DefaultAlpha > 1 {
		c.DefaultAlpha = defaultAlpha
	}
	if c.MaxQueryLength <= 0 {
		c.MaxQueryLength = defaultMaxQueryRunes
	}
}

var (
	// ErrInvalidRequest marks a request the caller must fix.
	ErrInvalidRequest = errors.New("invalid search request")

	// ErrUnavailable marks a retrieval backend failure. The embedding
	// service reports its own sentinel; both map to 503 at the API.
	ErrUnavailable = errors.New("search backend unavailable")
)

// Request is one retrieval query. TopK and Alpha are pointers so an
// omitted field takes the default while an explicit zero is validated.
type Request struct {
	Query   string   `json:"query"`
	TopK    *int     `json:"topK,omitempty"`
	Mode    string   `json:"mode,omitempty"`
	Alpha   *float64 `json:"alpha,omitempty"`
	Filters *Filters `json:"filters,omitempty"`
}

// Filters narrow the candidate chunk set before ranking.
type Filters struct {
	BreadcrumbsContain string   `json:"breadcrumbsContain,omitempty"`
	MinQualityScore    *float64 `json:"minQualityScore,omitempty"`
	ChunkTypes         []string `json:"chunkTypes,omitempty"`
}

// Response carries the ranked results plus the mode that actually ran;
// a hybrid request that fell back reports semantic. Alpha is present
// only for hybrid responses.
type Response struct {
	Results []*store.SearchResult `json:"results"`
	Mode    string                `json:"mode"`
	Alpha   *float64              `json:"alpha,omitempty"`
}

// ChunkSearcher is the slice of the store the gateway needs.
type ChunkSearcher interface {
	VectorSearch(ctx context.Context, req store.VectorSearchRequest) ([]*store.SearchResult, error)
}

// Metrics records search outcomes. A nil Metrics disables
// instrumentation.
type Metrics interface {
	// SearchObserved is called once per query with its terminal status.
	SearchObserved(mode, status string, d time.Duration)

	// EmbeddingObserved records one query-embedding round trip.
	EmbeddingObserved(d time.Duration)
}

// Search statuses reported to Metrics.
const (
	SearchStatusOK          = "ok"
	SearchStatusInvalid     = "invalid"
	SearchStatusUnavailable = "unavailable"
)

// Gateway answers retrieval queries.
type Gateway struct {
	config   Config
	searcher ChunkSearcher
	embedder embed.Embedder
	metrics  Metrics
}

// NewGateway wires the search gateway. A zero Config takes the package
// defaults; metrics may be nil.
func NewGateway(config Config, searcher ChunkSearcher, embedder embed.Embedder, metrics Metrics) (*Gateway, error) {
	if searcher == nil || embedder == nil {
		return nil, fmt.Errorf("searcher and embedder are required")
	}
	config.ApplyDefaults()
	return &Gateway{config: config, searcher: searcher, embedder: embedder, metrics: metrics}, nil
}

// params is a normalized, validated request.
type params struct {
	query string
	topK  int
	mode  store.SearchMode
	alpha float64
}

// Query validates the request, embeds the query text, and runs the
// ranked retrieval. Validation failures are reported before any
// backend is touched. A hybrid query whose keyword ranking fails falls
// back to semantic scoring with a logged warning; the response reports
// the mode that actually ran.
func (g *Gateway) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	p, err := g.normalize(req)
	if err != nil {
		g.observe("unknown", SearchStatusInvalid, start)
		return nil, err
	}

	embedStart := time.Now()
	vector, err := g.embedder.EmbedQuery(ctx, p.query)
	if err != nil {
		logger.WarnCtx(ctx, "query embedding failed", "error", err)
		g.observe(string(p.mode), SearchStatusUnavailable, start)
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.EmbeddingObserved(time.Since(embedStart))
	}

	storeReq := store.VectorSearchRequest{
		Embedding: vector,
		Query:     p.query,
		TopK:      p.topK,
		Mode:      p.mode,
		Alpha:     p.alpha,
	}
	if req.Filters != nil {
		storeReq.BreadcrumbsContain = req.Filters.BreadcrumbsContain
		storeReq.MinQualityScore = req.Filters.MinQualityScore
		storeReq.ChunkTypes = req.Filters.ChunkTypes
	}

	results, err := g.searcher.VectorSearch(ctx, storeReq)
	if err != nil && p.mode == store.SearchModeHybrid {
		logger.WarnCtx(ctx, "keyword ranking unavailable, falling back to semantic",
			"error", err)
		storeReq.Mode = store.SearchModeSemantic
		p.mode = store.SearchModeSemantic
		results, err = g.searcher.VectorSearch(ctx, storeReq)
	}
	if err != nil {
		logger.ErrorCtx(ctx, "vector search failed", "mode", string(p.mode), "error", err)
		g.observe(string(p.mode), SearchStatusUnavailable, start)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp := &Response{Results: results, Mode: string(p.mode)}
	if p.mode == store.SearchModeHybrid {
		alpha := p.alpha
		resp.Alpha = &alpha
	}
	g.observe(string(p.mode), SearchStatusOK, start)
	return resp, nil
}

func (g *Gateway) observe(mode, status string, start time.Time) {
	if g.metrics != nil {
		g.metrics.SearchObserved(mode, status, time.Since(start))
	}
}

// normalize applies defaults and checks bounds.
func (g *Gateway) normalize(req Request) (params, error) {
	p := params{
		query: req.Query,
		topK:  g.config.DefaultTopK,
		mode:  store.SearchModeSemantic,
		alpha: g.config.DefaultAlpha,
	}

	if n := utf8.RuneCountInString(req.Query); n < 1 || n > g.config.MaxQueryLength {
		return p, fmt.Errorf("%w: query must be 1 to %d characters, got %d",
			ErrInvalidRequest, g.config.MaxQueryLength, n)
	}
	if req.TopK != nil {
		if *req.TopK < 1 || *req.TopK > g.config.MaxTopK {
			return p, fmt.Errorf("%w: topK must be 1 to %d, got %d",
				ErrInvalidRequest, g.config.MaxTopK, *req.TopK)
		}
		p.topK = *req.TopK
	}
	if req.Mode != "" {
		mode := store.SearchMode(req.Mode)
		if !mode.IsValid() {
			return p, fmt.Errorf("%w: mode must be %q or %q, got %q",
				ErrInvalidRequest, store.SearchModeSemantic, store.SearchModeHybrid, req.Mode)
		}
		p.mode = mode
	}
	if req.Alpha != nil {
		if *req.Alpha < 0 || *req.Alpha > 1 {
			return p, fmt.Errorf("%w: alpha must be between 0 and 1, got %g",
				ErrInvalidRequest, *req.Alpha)
		}
		p.alpha = *req.Alpha
	}
	if req.Filters != nil && req.Filters.MinQualityScore != nil {
		if s := *req.Filters.MinQualityScore; s < 0 || s > 1 {
			return p, fmt.Errorf("%w: minQualityScore must be between 0 and 1, got %g",
				ErrInvalidRequest, s)
		}
	}
	return p, nil
}
