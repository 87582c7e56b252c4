package store

import (
	"context"

	"github.com/quernlabs/quern/pkg/models"
)

// lowQualityThreshold is the score below which a chunk counts as
// low quality in the quality aggregation.
const lowQualityThreshold = 0.5

// AnalyticsOverview returns the landing-page totals.
func (s *GORMStore) AnalyticsOverview(ctx context.Context) (*Overview, error) {
	overview := &Overview{DocumentsByStatus: map[string]int64{}}

	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Document{}).Count(&overview.TotalDocuments).Error; err != nil {
		return nil, err
	}

	counts, err := s.CountDocumentsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for status, count := range counts {
		overview.DocumentsByStatus[string(status)] = count
	}

	if err := db.Model(&models.Document{}).
		Where("is_active = ? AND status = ?", true, string(models.StatusCompleted)).
		Count(&overview.ActiveDocuments).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Chunk{}).Count(&overview.TotalChunks).Error; err != nil {
		return nil, err
	}

	var totalSize struct{ Total int64 }
	if err := db.Model(&models.Document{}).
		Select("COALESCE(SUM(file_size), 0) AS total").
		Scan(&totalSize).Error; err != nil {
		return nil, err
	}
	overview.TotalSizeBytes = totalSize.Total

	completed := overview.DocumentsByStatus[string(models.StatusCompleted)]
	if completed > 0 {
		overview.AvgChunksPerDoc = float64(overview.TotalChunks) / float64(completed)
	}
	return overview, nil
}

// ProcessingStats averages the stage timings recorded per document.
func (s *GORMStore) ProcessingStats(ctx context.Context) (*ProcessingStats, error) {
	var row struct {
		DocumentsMeasured int64
		AvgConversionMs   float64
		AvgChunkingMs     float64
		AvgEmbeddingMs    float64
		AvgTotalMs        float64
		AvgQueueMs        float64
	}
	err := s.db.WithContext(ctx).Model(&models.ProcessingMetrics{}).
		Select("COUNT(*) AS documents_measured, " +
			"COALESCE(AVG(conversion_time_ms), 0) AS avg_conversion_ms, " +
			"COALESCE(AVG(chunking_time_ms), 0) AS avg_chunking_ms, " +
			"COALESCE(AVG(embedding_time_ms), 0) AS avg_embedding_ms, " +
			"COALESCE(AVG(total_time_ms), 0) AS avg_total_ms, " +
			"COALESCE(AVG(queue_time_ms), 0) AS avg_queue_ms").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	var ocrApplied int64
	if err := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("ocr_applied = ?", true).
		Count(&ocrApplied).Error; err != nil {
		return nil, err
	}

	return &ProcessingStats{
		DocumentsMeasured: row.DocumentsMeasured,
		AvgConversionMs:   row.AvgConversionMs,
		AvgChunkingMs:     row.AvgChunkingMs,
		AvgEmbeddingMs:    row.AvgEmbeddingMs,
		AvgTotalMs:        row.AvgTotalMs,
		AvgQueueMs:        row.AvgQueueMs,
		OCRApplied:        ocrApplied,
	}, nil
}

// QualityStats aggregates chunk quality and terminal-status rates.
func (s *GORMStore) QualityStats(ctx context.Context) (*QualityStats, error) {
	stats := &QualityStats{
		FailReasonCounts:  map[string]int64{},
		QualityFlagCounts: map[string]int64{},
	}
	db := s.db.WithContext(ctx)

	var quality struct {
		AvgScore float64
		LowCount int64
	}
	err := db.Model(&models.Chunk{}).
		Select("COALESCE(AVG(quality_score), 0) AS avg_score, "+
			"COALESCE(SUM(CASE WHEN quality_score < ? THEN 1 ELSE 0 END), 0) AS low_count",
			lowQualityThreshold).
		Scan(&quality).Error
	if err != nil {
		return nil, err
	}
	stats.AvgChunkQuality = quality.AvgScore
	stats.LowQualityChunks = quality.LowCount

	counts, err := s.CountDocumentsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	if total > 0 {
		stats.CompletedRate = float64(counts[models.StatusCompleted]) / float64(total)
		stats.FailedRate = float64(counts[models.StatusFailed]) / float64(total)
	}

	var reasons []struct {
		FailReason string
		Count      int64
	}
	err = db.Model(&models.Document{}).
		Select("fail_reason, COUNT(*) AS count").
		Where("status = ? AND fail_reason IS NOT NULL", string(models.StatusFailed)).
		Group("fail_reason").
		Scan(&reasons).Error
	if err != nil {
		return nil, err
	}
	for _, r := range reasons {
		stats.FailReasonCounts[r.FailReason] = r.Count
	}

	// Flags live as JSON arrays per chunk; fold them in memory.
	var flagBlobs []string
	err = db.Model(&models.Chunk{}).
		Where("quality_flags IS NOT NULL AND quality_flags != ''").
		Pluck("quality_flags", &flagBlobs).Error
	if err != nil {
		return nil, err
	}
	for _, blob := range flagBlobs {
		chunk := models.Chunk{QualityFlags: blob}
		flags, err := chunk.GetQualityFlags()
		if err != nil {
			continue
		}
		for _, f := range flags {
			stats.QualityFlagCounts[f]++
		}
	}
	return stats, nil
}

// DocumentStats breaks the corpus down by format, category, and source.
func (s *GORMStore) DocumentStats(ctx context.Context) (*DocumentStats, error) {
	stats := &DocumentStats{
		ByCategory: map[string]int64{},
		BySource:   map[string]int64{},
	}
	db := s.db.WithContext(ctx)

	var formats []struct {
		Format string
		Count  int64
	}
	err := db.Model(&models.Document{}).
		Select("format, COUNT(*) AS count").
		Group("format").
		Order("count DESC").
		Scan(&formats).Error
	if err != nil {
		return nil, err
	}
	for _, f := range formats {
		stats.ByFormat = append(stats.ByFormat, FormatCount{Format: f.Format, Count: f.Count})
	}

	var categories []struct {
		FormatCategory *string
		Count          int64
	}
	err = db.Model(&models.Document{}).
		Select("format_category, COUNT(*) AS count").
		Group("format_category").
		Scan(&categories).Error
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		key := "unknown"
		if c.FormatCategory != nil && *c.FormatCategory != "" {
			key = *c.FormatCategory
		}
		stats.ByCategory[key] = c.Count
	}

	var sources []struct {
		Source string
		Count  int64
	}
	err = db.Model(&models.Document{}).
		Select("source, COUNT(*) AS count").
		Group("source").
		Scan(&sources).Error
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		stats.BySource[src.Source] = src.Count
	}
	return stats, nil
}
