package models

import (
	"encoding/json"
	"time"
)

// ProcessingMetrics records per-document processing telemetry, one row
// per document, written when the document reaches COMPLETED. Rows are
// upserted by DocumentID so re-ingests overwrite earlier measurements.
type ProcessingMetrics struct {
	DocumentID string `gorm:"primaryKey;size:36" json:"documentId"`

	ConversionTimeMs int64 `gorm:"not null;default:0" json:"conversionTimeMs"`
	ChunkingTimeMs   int64 `gorm:"not null;default:0" json:"chunkingTimeMs"`
	EmbeddingTimeMs  int64 `gorm:"not null;default:0" json:"embeddingTimeMs"`
	TotalTimeMs      int64 `gorm:"not null;default:0" json:"totalTimeMs"`

	// QueueTimeMs is startedAt minus the document's createdAt, clamped
	// at zero so clock skew between worker and server never goes negative.
	QueueTimeMs    int64 `gorm:"not null;default:0" json:"queueTimeMs"`
	UserWaitTimeMs int64 `gorm:"not null;default:0" json:"userWaitTimeMs"`

	RawSizeBytes      int64 `gorm:"not null;default:0" json:"rawSizeBytes"`
	MarkdownSizeChars int64 `gorm:"not null;default:0" json:"markdownSizeChars"`

	TotalChunks     int     `gorm:"not null;default:0" json:"totalChunks"`
	AvgChunkSize    float64 `gorm:"not null;default:0" json:"avgChunkSize"`
	OversizedChunks int     `gorm:"not null;default:0" json:"oversizedChunks"`
	AvgQualityScore float64 `gorm:"not null;default:0" json:"avgQualityScore"`

	// QualityFlagCounts is a JSON histogram of flag name to occurrences.
	QualityFlagCounts string `gorm:"type:text" json:"-"`
	TotalTokens       int    `gorm:"not null;default:0" json:"totalTokens"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for ProcessingMetrics.
func (ProcessingMetrics) TableName() string {
	return "processing_metrics"
}

// GetQualityFlagCounts returns the parsed flag histogram.
func (m *ProcessingMetrics) GetQualityFlagCounts() (map[string]int, error) {
	if m.QualityFlagCounts == "" {
		return map[string]int{}, nil
	}
	var counts map[string]int
	if err := json.Unmarshal([]byte(m.QualityFlagCounts), &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// SetQualityFlagCounts serializes the flag histogram into the row.
func (m *ProcessingMetrics) SetQualityFlagCounts(counts map[string]int) error {
	if len(counts) == 0 {
		m.QualityFlagCounts = ""
		return nil
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	m.QualityFlagCounts = string(data)
	return nil
}
