package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quernlabs/quern/pkg/models"
)

// CreateDocument creates a new document row.
// Returns models.ErrDuplicateDocument when (contentHash, source) already exists.
func (s *GORMStore) CreateDocument(ctx context.Context, doc *models.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", models.ErrDuplicateDocument
		}
		return "", err
	}
	return doc.ID, nil
}

// GetDocument returns a document by ID.
func (s *GORMStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrDocumentNotFound)
	}
	return &doc, nil
}

// GetDocumentByHash returns the document with the given content hash and source.
func (s *GORMStore) GetDocumentByHash(ctx context.Context, hash string, source models.SourceType) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Where("content_hash = ? AND source = ?", hash, string(source)).
		First(&doc).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrDocumentNotFound)
	}
	return &doc, nil
}

// sortColumns maps API sort keys to database columns.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"filename":  "filename",
	"fileSize":  "file_size",
}

// ListDocuments returns documents matching the filter plus the total count
// before paging.
func (s *GORMStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*models.Document, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Document{})

	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	if filter.ConnectionState != nil {
		q = q.Where("connection_state = ?", string(*filter.ConnectionState))
	}
	if filter.Source != nil {
		q = q.Where("source = ?", string(*filter.Source))
	}
	if filter.Format != nil {
		q = q.Where("format = ?", string(*filter.Format))
	}
	if filter.FormatCategory != nil {
		q = q.Where("format_category = ?", string(*filter.FormatCategory))
	}
	if filter.Search != "" {
		if s.isPostgres() {
			q = q.Where("filename ILIKE ?", "%"+filter.Search+"%")
		} else {
			// SQLite LIKE is case-insensitive for ASCII.
			q = q.Where("filename LIKE ?", "%"+filter.Search+"%")
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}
	q = q.Order(fmt.Sprintf("%s %s", column, order))

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var docs []*models.Document
	if err := q.Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// CountDocumentsByStatus returns row counts grouped by lifecycle status.
func (s *GORMStore) CountDocumentsByStatus(ctx context.Context) (map[models.DocumentStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Document{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.DocumentStatus]int64, len(rows))
	for _, r := range rows {
		counts[models.DocumentStatus(r.Status)] = r.Count
	}
	return counts, nil
}

// CountDocumentsByStoragePath returns how many documents reference the
// given blob key. Content addressing means the same bytes uploaded
// under different sources share one blob; callers unlink only when the
// count drops to zero.
func (s *GORMStore) CountDocumentsByStoragePath(ctx context.Context, path string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("storage_path = ?", path).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count documents by storage path: %w", err)
	}
	return count, nil
}

// UpdateDocumentStatus transitions id to the new status if and only if the
// current status is in from. The optional update fields are written in the
// same statement, so concurrent writers serialize on the status column.
func (s *GORMStore) UpdateDocumentStatus(ctx context.Context, id string, from []models.DocumentStatus, to models.DocumentStatus, update *StatusUpdate) error {
	if !to.IsValid() {
		return fmt.Errorf("invalid target status %q", to)
	}

	fields := map[string]any{"status": string(to)}
	if update != nil {
		if update.ProcessedContent != nil {
			fields["processed_content"] = *update.ProcessedContent
		}
		if update.FailReason != nil {
			fields["fail_reason"] = *update.FailReason
		}
		if update.FormatCategory != nil {
			fields["format_category"] = *update.FormatCategory
		}
		if update.PageCount != nil {
			fields["page_count"] = *update.PageCount
		}
		if update.OCRApplied != nil {
			fields["ocr_applied"] = *update.OCRApplied
		}
		if update.ProcessingTimeMs != nil {
			fields["processing_time_ms"] = *update.ProcessingTimeMs
		}
		if update.ProcessedAt != nil {
			fields["processed_at"] = *update.ProcessedAt
		}
		if update.IncrementRetry {
			fields["retry_count"] = gorm.Expr("retry_count + 1")
		}
		if update.ClearFailReason {
			fields["fail_reason"] = nil
		}
	}

	fromStatuses := make([]string, len(from))
	for i, f := range from {
		fromStatuses[i] = string(f)
	}

	result := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing row from a lost CAS race.
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Document{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrDocumentNotFound
		}
		return models.ErrInvalidStatus
	}
	return nil
}

// SetDocumentAvailability toggles retrieval visibility for a COMPLETED document.
func (s *GORMStore) SetDocumentAvailability(ctx context.Context, id string, isActive bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.Where("id = ?", id).First(&doc).Error; err != nil {
			return convertNotFoundError(err, models.ErrDocumentNotFound)
		}
		if !doc.CanToggleAvailability() {
			return models.ErrInvalidStatus
		}
		return tx.Model(&models.Document{}).
			Where("id = ?", id).
			Update("is_active", isActive).Error
	})
}

// ClearStoragePath nils the storage path after external-source blob cleanup.
func (s *GORMStore) ClearStoragePath(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Update("storage_path", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

// DeleteDocumentCascade deletes a document with its chunks and metrics in
// one transaction. Documents in PROCESSING are refused; the worker may
// still call back and must find consistent state. The storage path is
// returned for best-effort unlink after commit.
func (s *GORMStore) DeleteDocumentCascade(ctx context.Context, id string) (*string, error) {
	var storagePath *string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.Where("id = ?", id).First(&doc).Error; err != nil {
			return convertNotFoundError(err, models.ErrDocumentNotFound)
		}
		if !doc.CanDelete() {
			return models.ErrInvalidStatus
		}
		storagePath = doc.StoragePath

		if err := tx.Where("document_id = ?", id).Delete(&models.Chunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&models.ProcessingMetrics{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Document{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return storagePath, nil
}
