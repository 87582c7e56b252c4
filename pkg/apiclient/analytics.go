package apiclient

import "net/url"

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

type documentChunks struct {
	DocumentID string  `json:"documentId"`
	Chunks     []Chunk `json:"chunks"`
}

// AnalyticsOverview returns corpus-wide totals.
func (c *Client) AnalyticsOverview() (*Overview, error) {
	return getResource[Overview](c, "/api/analytics/overview")
}

// ProcessingAnalytics returns pipeline timing aggregates.
func (c *Client) ProcessingAnalytics() (*ProcessingStats, error) {
	return getResource[ProcessingStats](c, "/api/analytics/processing")
}

// QualityAnalytics returns chunk quality and failure-rate aggregates.
func (c *Client) QualityAnalytics() (*QualityStats, error) {
	return getResource[QualityStats](c, "/api/analytics/quality")
}

// DocumentAnalytics returns the corpus distribution by format and source.
func (c *Client) DocumentAnalytics() (*DocumentStats, error) {
	return getResource[DocumentStats](c, "/api/analytics/documents")
}

// DocumentChunks returns the full chunk inventory of one document.
func (c *Client) DocumentChunks(id string) ([]Chunk, error) {
	resp, err := getResource[documentChunks](c, resourcePath("/api/analytics/documents/%s/chunks", url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	return resp.Chunks, nil
}
