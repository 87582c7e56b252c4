// Package store provides the persistence layer for documents, chunks,
// processing profiles, and metrics.
//
// Two backends are supported:
//   - SQLite (development and tests, schema via AutoMigrate)
//   - PostgreSQL (production, schema via embedded migrations with pgvector)
//
// Every public operation is a single logical transaction.
package store

import (
	"context"
	"time"

	"github.com/quernlabs/quern/pkg/models"
)

// DocumentFilter narrows and pages a document listing.
type DocumentFilter struct {
	Status          *models.DocumentStatus
	IsActive        *bool
	ConnectionState *models.ConnectionState
	Source          *models.SourceType
	Format          *models.DocumentFormat
	FormatCategory  *models.FormatCategory

	// Search matches a case-insensitive filename substring.
	Search string

	// SortBy is one of createdAt, filename, fileSize. SortOrder is asc or desc.
	SortBy    string
	SortOrder string

	Limit  int
	Offset int
}

// StatusUpdate carries the optional field writes that accompany a
// document status transition.
type StatusUpdate struct {
	ProcessedContent *string
	FailReason       *string
	FormatCategory   *string
	PageCount        *int
	OCRApplied       *bool
	ProcessingTimeMs *int64
	ProcessedAt      *time.Time

	// IncrementRetry bumps RetryCount, used on FAILED -> PENDING.
	IncrementRetry bool
	// ClearFailReason wipes a stale failure message on re-entry.
	ClearFailReason bool
}

// ProfileCascadeResult reports what a profile cascade delete removed so
// the caller can emit events and unlink blobs after commit.
type ProfileCascadeResult struct {
	DocumentIDs  []string
	StoragePaths []string
}

// SearchMode selects the retrieval scoring strategy.
type SearchMode string

const (
	// SearchModeSemantic ranks purely by embedding cosine similarity.
	SearchModeSemantic SearchMode = "semantic"
	// SearchModeHybrid blends vector and keyword scores.
	SearchModeHybrid SearchMode = "hybrid"
)

// IsValid checks if the mode is a supported SearchMode.
func (m SearchMode) IsValid() bool {
	return m == SearchModeSemantic || m == SearchModeHybrid
}

// VectorSearchRequest is a ranked retrieval over visible chunks.
// Visibility is fixed: only chunks of COMPLETED, active documents match.
type VectorSearchRequest struct {
	// Embedding is the query vector; its length must match the store dimension.
	Embedding []float32
	// Query is the raw query text used for keyword ranking in hybrid mode.
	Query string
	TopK  int
	Mode  SearchMode
	// Alpha weighs the vector score in hybrid mode: S = alpha*V + (1-alpha)*K.
	Alpha float64

	// Optional filters.
	BreadcrumbsContain string
	MinQualityScore    *float64
	ChunkTypes         []string
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	ChunkID    string                `json:"chunkId"`
	DocumentID string                `json:"documentId"`
	Filename   string                `json:"filename"`
	ChunkIndex int                   `json:"chunkIndex"`
	Content    string                `json:"content"`
	Heading    *string               `json:"heading,omitempty"`
	Location   *models.ChunkLocation `json:"location,omitempty"`

	Breadcrumbs  []string `json:"breadcrumbs,omitempty"`
	ChunkType    string   `json:"chunkType"`
	QualityScore float64  `json:"qualityScore"`

	// Score is the final ranking score. In hybrid mode the component
	// scores are populated as well.
	Score        float64  `json:"score"`
	VectorScore  *float64 `json:"vectorScore,omitempty"`
	KeywordScore *float64 `json:"keywordScore,omitempty"`
}

// Overview is the analytics landing aggregation.
type Overview struct {
	TotalDocuments    int64            `json:"totalDocuments"`
	DocumentsByStatus map[string]int64 `json:"documentsByStatus"`
	ActiveDocuments   int64            `json:"activeDocuments"`
	TotalChunks       int64            `json:"totalChunks"`
	TotalSizeBytes    int64            `json:"totalSizeBytes"`
	AvgChunksPerDoc   float64          `json:"avgChunksPerDoc"`
}

// ProcessingStats aggregates stage timings over completed documents.
type ProcessingStats struct {
	DocumentsMeasured int64   `json:"documentsMeasured"`
	AvgConversionMs   float64 `json:"avgConversionMs"`
	AvgChunkingMs     float64 `json:"avgChunkingMs"`
	AvgEmbeddingMs    float64 `json:"avgEmbeddingMs"`
	AvgTotalMs        float64 `json:"avgTotalMs"`
	AvgQueueMs        float64 `json:"avgQueueMs"`
	OCRApplied        int64   `json:"ocrApplied"`
}

// QualityStats aggregates quality scores and failure rates.
type QualityStats struct {
	AvgChunkQuality   float64          `json:"avgChunkQuality"`
	LowQualityChunks  int64            `json:"lowQualityChunks"`
	CompletedRate     float64          `json:"completedRate"`
	FailedRate        float64          `json:"failedRate"`
	FailReasonCounts  map[string]int64 `json:"failReasonCounts"`
	QualityFlagCounts map[string]int64 `json:"qualityFlagCounts"`
}

// ProfileWithUsage pairs a profile with its dependent document count.
type ProfileWithUsage struct {
	Profile       *models.ProcessingProfile `json:"profile"`
	DocumentCount int64                     `json:"documentCount"`
}

// FormatCount is one slice of the format distribution.
type FormatCount struct {
	Format string `json:"format"`
	Count  int64  `json:"count"`
}

// DocumentStats breaks the corpus down by format, category, and source.
type DocumentStats struct {
	ByFormat   []FormatCount    `json:"byFormat"`
	ByCategory map[string]int64 `json:"byCategory"`
	BySource   map[string]int64 `json:"bySource"`
}

// Store provides the persistence interface for the ingestion pipeline.
//
// Thread safety: implementations must be safe for concurrent use from
// multiple goroutines.
type Store interface {
	// ============================================
	// DOCUMENT OPERATIONS
	// ============================================

	// CreateDocument creates a new document row.
	// The document ID will be generated if empty. Returns the ID.
	// Returns models.ErrDuplicateDocument if (contentHash, source) exists.
	CreateDocument(ctx context.Context, doc *models.Document) (string, error)

	// GetDocument returns a document by ID.
	// Returns models.ErrDocumentNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	// GetDocumentByHash returns the document with the given content hash
	// and source, if any.
	// Returns models.ErrDocumentNotFound if no such document exists.
	GetDocumentByHash(ctx context.Context, hash string, source models.SourceType) (*models.Document, error)

	// ListDocuments returns documents matching the filter plus the total
	// count before paging.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*models.Document, int64, error)

	// CountDocumentsByStatus returns row counts grouped by lifecycle status.
	CountDocumentsByStatus(ctx context.Context) (map[models.DocumentStatus]int64, error)

	// CountDocumentsByStoragePath returns how many documents reference
	// the given blob key. Used to decide whether a blob may be unlinked.
	CountDocumentsByStoragePath(ctx context.Context, path string) (int64, error)

	// UpdateDocumentStatus transitions a document to a new status with a
	// compare-and-set: the current status must be in the from set.
	// Returns models.ErrDocumentNotFound if the document doesn't exist and
	// models.ErrInvalidStatus if the current status is not in from.
	UpdateDocumentStatus(ctx context.Context, id string, from []models.DocumentStatus, to models.DocumentStatus, update *StatusUpdate) error

	// SetDocumentAvailability toggles retrieval visibility.
	// Returns models.ErrInvalidStatus unless the document is COMPLETED.
	SetDocumentAvailability(ctx context.Context, id string, isActive bool) error

	// ClearStoragePath nils the storage path after the raw blob has been
	// removed (external-source cleanup).
	ClearStoragePath(ctx context.Context, id string) error

	// DeleteDocumentCascade deletes a document and its chunks and metrics
	// in one transaction. The storage path (if any) is returned so the
	// caller can unlink the blob outside the transaction.
	DeleteDocumentCascade(ctx context.Context, id string) (*string, error)

	// ============================================
	// CHUNK OPERATIONS
	// ============================================

	// ReplaceChunks atomically swaps the full chunk set of a document:
	// existing chunks are deleted and the new set inserted in one
	// transaction. Failure leaves the prior set intact. Embedding lengths
	// are validated against the configured dimension.
	ReplaceChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error

	// ListChunks returns the chunks of a document ordered by index.
	ListChunks(ctx context.Context, documentID string) ([]*models.Chunk, error)

	// CountChunks returns the number of chunks for a document.
	CountChunks(ctx context.Context, documentID string) (int64, error)

	// ============================================
	// PROFILE OPERATIONS
	// ============================================

	// CreateProfile creates a new processing profile.
	// The profile ID will be generated if empty. Returns the ID.
	// Returns models.ErrDuplicateProfile if the name is taken.
	CreateProfile(ctx context.Context, profile *models.ProcessingProfile) (string, error)

	// GetProfile returns a profile by ID.
	// Returns models.ErrProfileNotFound if the profile doesn't exist.
	GetProfile(ctx context.Context, id string) (*models.ProcessingProfile, error)

	// GetProfileByName returns a profile by unique name.
	GetProfileByName(ctx context.Context, name string) (*models.ProcessingProfile, error)

	// ListProfiles returns all profiles, hiding archived ones unless asked.
	ListProfiles(ctx context.Context, includeArchived bool) ([]*models.ProcessingProfile, error)

	// GetActiveProfile returns the single active profile.
	// Returns models.ErrProfileNotFound if none is active.
	GetActiveProfile(ctx context.Context) (*models.ProcessingProfile, error)

	// GetDefaultProfile returns the built-in default profile.
	GetDefaultProfile(ctx context.Context) (*models.ProcessingProfile, error)

	// ActivateProfile clears isActive on all profiles and sets it on the
	// target, in one transaction.
	// Returns models.ErrProfileArchived if the target is archived.
	ActivateProfile(ctx context.Context, id string) error

	// UpdateProfileInfo updates name and description. Processing
	// parameters are immutable once created.
	UpdateProfileInfo(ctx context.Context, id, name, description string) error

	// SetProfileArchived archives or unarchives a profile.
	// Archiving the default or active profile returns models.ErrProfileProtected.
	SetProfileArchived(ctx context.Context, id string, archived bool) error

	// CountDocumentsByProfile returns how many documents snapshot the profile.
	CountDocumentsByProfile(ctx context.Context, profileID string) (int64, error)

	// DeleteProfileCascade deletes the chunks of all documents owned by
	// the profile, then the documents, then the profile, in one
	// transaction. The caller must have verified archival preconditions.
	DeleteProfileCascade(ctx context.Context, id string) (*ProfileCascadeResult, error)

	// EnsureDefaultProfile seeds the built-in default profile if no
	// default exists yet and returns it.
	EnsureDefaultProfile(ctx context.Context) (*models.ProcessingProfile, error)

	// ============================================
	// METRICS OPERATIONS
	// ============================================

	// UpsertMetrics inserts or overwrites the metrics row for a document.
	UpsertMetrics(ctx context.Context, metrics *models.ProcessingMetrics) error

	// GetMetrics returns the metrics row for a document.
	// Returns models.ErrMetricsNotFound if none exists.
	GetMetrics(ctx context.Context, documentID string) (*models.ProcessingMetrics, error)

	// ============================================
	// SEARCH
	// ============================================

	// VectorSearch runs a ranked retrieval per the request. Only chunks
	// of COMPLETED, active documents are considered.
	VectorSearch(ctx context.Context, req VectorSearchRequest) ([]*SearchResult, error)

	// ============================================
	// ANALYTICS
	// ============================================

	AnalyticsOverview(ctx context.Context) (*Overview, error)
	ProcessingStats(ctx context.Context) (*ProcessingStats, error)
	QualityStats(ctx context.Context) (*QualityStats, error)
	DocumentStats(ctx context.Context) (*DocumentStats, error)

	// ============================================
	// LIFECYCLE
	// ============================================

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying database connection.
	Close() error
}

// Compile-time check that GORMStore implements Store.
var _ Store = (*GORMStore)(nil)
