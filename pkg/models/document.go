package models

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus represents the lifecycle state of a document.
type DocumentStatus string

const (
	// StatusPending means the document is persisted but processing has not started.
	StatusPending DocumentStatus = "PENDING"
	// StatusProcessing means the document is queued or being converted.
	StatusProcessing DocumentStatus = "PROCESSING"
	// StatusCompleted means chunks and processed content are persisted.
	StatusCompleted DocumentStatus = "COMPLETED"
	// StatusFailed means processing failed; FailReason holds the cause.
	StatusFailed DocumentStatus = "FAILED"
)

// IsValid checks if the status is a valid DocumentStatus.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status is a terminal processing state.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SourceType identifies where an upload came from.
type SourceType string

const (
	// SourceManual is a direct user upload through the REST API.
	SourceManual SourceType = "MANUAL"
	// SourceExternal is an upload pushed by an external sync integration.
	SourceExternal SourceType = "EXTERNAL"
)

// IsValid checks if the source is a valid SourceType.
func (s SourceType) IsValid() bool {
	return s == SourceManual || s == SourceExternal
}

// ConnectionState tracks whether an external document is still linked
// to its remote origin.
type ConnectionState string

const (
	// ConnectionStandalone is the state for manual uploads and unlinked documents.
	ConnectionStandalone ConnectionState = "STANDALONE"
	// ConnectionLinked marks documents mirrored from an external drive.
	ConnectionLinked ConnectionState = "LINKED"
)

// IsValid checks if the state is a valid ConnectionState.
func (c ConnectionState) IsValid() bool {
	return c == ConnectionStandalone || c == ConnectionLinked
}

// ProcessingLane selects how a document is processed.
type ProcessingLane string

const (
	// LaneFast processes the document inline in the upload request.
	LaneFast ProcessingLane = "fast"
	// LaneHeavy enqueues the document for the external worker pool.
	LaneHeavy ProcessingLane = "heavy"
)

// FormatCategory groups formats for analytics and the retrieval UI.
type FormatCategory string

const (
	CategoryDocument     FormatCategory = "DOCUMENT"
	CategoryPresentation FormatCategory = "PRESENTATION"
	CategoryTabular      FormatCategory = "TABULAR"
)

// IsValid checks if the category is a valid FormatCategory.
func (c FormatCategory) IsValid() bool {
	switch c {
	case CategoryDocument, CategoryPresentation, CategoryTabular:
		return true
	}
	return false
}

// DocumentFormat is the declared format tag of an uploaded file.
type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "PDF"
	FormatJSON DocumentFormat = "JSON"
	FormatTXT  DocumentFormat = "TXT"
	FormatMD   DocumentFormat = "MD"
	FormatDOCX DocumentFormat = "DOCX"
	FormatXLSX DocumentFormat = "XLSX"
	FormatCSV  DocumentFormat = "CSV"
	FormatPPTX DocumentFormat = "PPTX"
	FormatHTML DocumentFormat = "HTML"
	FormatEPUB DocumentFormat = "EPUB"
)

// IsValid checks if the format is on the ingestion allow-list.
func (f DocumentFormat) IsValid() bool {
	switch f {
	case FormatPDF, FormatJSON, FormatTXT, FormatMD, FormatDOCX,
		FormatXLSX, FormatCSV, FormatPPTX, FormatHTML, FormatEPUB:
		return true
	}
	return false
}

// Lane returns the processing lane for the format. Plain-text formats
// are converted inline; everything else goes through the worker pool.
func (f DocumentFormat) Lane() ProcessingLane {
	switch f {
	case FormatTXT, FormatMD, FormatJSON:
		return LaneFast
	default:
		return LaneHeavy
	}
}

// Category returns the format category used for analytics grouping.
func (f DocumentFormat) Category() FormatCategory {
	switch f {
	case FormatPPTX:
		return CategoryPresentation
	case FormatXLSX, FormatCSV:
		return CategoryTabular
	default:
		return CategoryDocument
	}
}

// formatsByExtension maps lowercase file extensions to formats.
var formatsByExtension = map[string]DocumentFormat{
	".pdf":      FormatPDF,
	".json":     FormatJSON,
	".txt":      FormatTXT,
	".text":     FormatTXT,
	".md":       FormatMD,
	".markdown": FormatMD,
	".docx":     FormatDOCX,
	".xlsx":     FormatXLSX,
	".csv":      FormatCSV,
	".pptx":     FormatPPTX,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".epub":     FormatEPUB,
}

// FormatFromFilename derives the document format from a filename extension.
// Returns false if the extension is not on the allow-list.
func FormatFromFilename(filename string) (DocumentFormat, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	format, ok := formatsByExtension[ext]
	return format, ok
}

// Document is the unit of ingestion. One row per uploaded file; chunks
// hang off it and are cascade-deleted with it.
type Document struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Filename string `gorm:"not null;size:512" json:"filename"`
	MIMEType string `gorm:"size:255" json:"mimeType,omitempty"`
	FileSize int64  `gorm:"not null" json:"fileSize"`

	// Format is the declared format tag (allow-list in DocumentFormat).
	Format         string  `gorm:"not null;size:16;index" json:"format"`
	FormatCategory *string `gorm:"size:32" json:"formatCategory,omitempty"`

	// ContentHash is the MD5 of the raw upload, unique per (hash, source).
	ContentHash string `gorm:"not null;size:32;uniqueIndex:idx_documents_hash_source" json:"contentHash"`
	Source      string `gorm:"not null;size:16;uniqueIndex:idx_documents_hash_source;default:MANUAL" json:"source"`

	Status          string `gorm:"not null;size:16;index;default:PENDING" json:"status"`
	IsActive        bool   `gorm:"not null;index;default:true" json:"isActive"`
	ConnectionState string `gorm:"not null;size:16;default:STANDALONE" json:"connectionState"`

	// StoragePath points at the content-addressed blob; nil after cleanup
	// for externally-sourced documents.
	StoragePath      *string `gorm:"size:1024" json:"-"`
	ProcessedContent *string `gorm:"type:text" json:"-"`
	FailReason       *string `gorm:"size:2048" json:"failReason,omitempty"`
	RetryCount       int     `gorm:"not null;default:0" json:"retryCount"`

	PageCount        *int   `json:"pageCount,omitempty"`
	OCRApplied       bool   `gorm:"default:false" json:"ocrApplied"`
	ProcessingTimeMs *int64 `json:"processingTimeMs,omitempty"`

	// ProfileID is the processing profile snapshotted at upload time.
	// It never changes afterwards, even if another profile is activated.
	ProfileID string `gorm:"not null;size:36;index" json:"profileId"`

	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`

	// Relationships
	Profile ProcessingProfile `gorm:"foreignKey:ProfileID" json:"-"`
	Chunks  []Chunk           `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Document.
func (Document) TableName() string {
	return "documents"
}

// GetStatus returns the document status as a DocumentStatus type.
func (d *Document) GetStatus() DocumentStatus {
	return DocumentStatus(d.Status)
}

// GetFormat returns the declared format as a DocumentFormat type.
func (d *Document) GetFormat() DocumentFormat {
	return DocumentFormat(d.Format)
}

// GetSource returns the source as a SourceType type.
func (d *Document) GetSource() SourceType {
	return SourceType(d.Source)
}

// CanToggleAvailability reports whether the availability flag may change.
// Only fully processed documents participate in retrieval visibility.
func (d *Document) CanToggleAvailability() bool {
	return d.GetStatus() == StatusCompleted
}

// CanDelete reports whether the document may be hard-deleted.
// Documents in flight keep their rows until processing settles.
func (d *Document) CanDelete() bool {
	return d.GetStatus() != StatusProcessing
}

// CanRetry reports whether the document may re-enter processing.
func (d *Document) CanRetry() bool {
	return d.GetStatus() == StatusFailed
}
