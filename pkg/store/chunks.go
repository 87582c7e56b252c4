package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quernlabs/quern/pkg/models"
)

// chunkInsertBatchSize bounds the rows per INSERT so large documents do
// not exceed driver parameter limits.
const chunkInsertBatchSize = 200

// ReplaceChunks atomically swaps the full chunk set of a document.
// Existing chunks are deleted and the new set inserted in one
// transaction, so readers never observe a partial set. Failure at any
// point leaves the prior set intact.
//
// Every embedding must match the configured store dimension; a mismatch
// returns models.ErrDimensionMismatch before anything is written.
func (s *GORMStore) ReplaceChunks(ctx context.Context, documentID string, chunks []*models.Chunk) error {
	for _, chunk := range chunks {
		if got := len(chunk.Embedding.Slice()); got != s.config.VectorDimensions {
			return fmt.Errorf("chunk %d: embedding has %d dimensions, store expects %d: %w",
				chunk.ChunkIndex, got, s.config.VectorDimensions, models.ErrDimensionMismatch)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Document{}).Where("id = ?", documentID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrDocumentNotFound
		}

		if err := tx.Where("document_id = ?", documentID).Delete(&models.Chunk{}).Error; err != nil {
			return err
		}

		for _, chunk := range chunks {
			if chunk.ID == "" {
				chunk.ID = uuid.New().String()
			}
			chunk.DocumentID = documentID
			if chunk.ChunkType == "" {
				chunk.ChunkType = "text"
			}
			// The Postgres column is jsonb NOT NULL.
			if chunk.Breadcrumbs == "" {
				chunk.Breadcrumbs = "[]"
			}
		}

		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, chunkInsertBatchSize).Error
	})
}

// ListChunks returns the chunks of a document ordered by chunk index.
func (s *GORMStore) ListChunks(ctx context.Context, documentID string) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// CountChunks returns the number of chunks stored for a document.
func (s *GORMStore) CountChunks(ctx context.Context, documentID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Chunk{}).
		Where("document_id = ?", documentID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
