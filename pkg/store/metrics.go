package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/quernlabs/quern/pkg/models"
)

// UpsertMetrics inserts or overwrites the metrics row for a document.
// Re-ingests of the same document replace earlier measurements.
func (s *GORMStore) UpsertMetrics(ctx context.Context, metrics *models.ProcessingMetrics) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}},
			UpdateAll: true,
		}).
		Create(metrics).Error
}

// GetMetrics returns the metrics row for a document.
func (s *GORMStore) GetMetrics(ctx context.Context, documentID string) (*models.ProcessingMetrics, error) {
	var metrics models.ProcessingMetrics
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		First(&metrics).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrMetricsNotFound)
	}
	return &metrics, nil
}
