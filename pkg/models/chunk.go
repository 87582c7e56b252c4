package models

import (
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
)

// ChunkLocation describes where a chunk sits inside its source document.
// Only the fields relevant to the source format are set.
type ChunkLocation struct {
	Page    *int    `json:"page,omitempty"`
	Slide   *int    `json:"slide,omitempty"`
	Sheet   *string `json:"sheet,omitempty"`
	Chapter *string `json:"chapter,omitempty"`
}

// Chunk is an addressable retrieval unit. Chunks are owned by their
// document: (DocumentID, ChunkIndex) is unique and replacement on
// re-ingest swaps the full set in one transaction.
type Chunk struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	DocumentID string `gorm:"not null;size:36;index;uniqueIndex:idx_chunks_document_index" json:"documentId"`
	ChunkIndex int    `gorm:"not null;uniqueIndex:idx_chunks_document_index" json:"chunkIndex"`
	Content    string `gorm:"type:text;not null" json:"content"`

	// Embedding is the dense vector for semantic search. Its length must
	// match the configured store dimension; the store rejects mismatches.
	Embedding pgvector.Vector `gorm:"type:vector(768)" json:"-"`

	CharStart *int    `json:"charStart,omitempty"`
	CharEnd   *int    `json:"charEnd,omitempty"`
	Heading   *string `gorm:"size:512" json:"heading,omitempty"`

	// Location and Breadcrumbs are JSON blobs; use the typed accessors.
	Location    string `gorm:"type:text" json:"-"`
	Breadcrumbs string `gorm:"type:text" json:"-"`

	TokenCount   int     `gorm:"not null;default:0" json:"tokenCount"`
	QualityScore float64 `gorm:"not null;default:1" json:"qualityScore"`
	QualityFlags string  `gorm:"type:text" json:"-"`
	ChunkType    string  `gorm:"size:32;default:text" json:"chunkType"`
	Completeness string  `gorm:"size:32" json:"completeness,omitempty"`
	HasTitle     bool    `gorm:"default:false" json:"hasTitle"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for Chunk.
func (Chunk) TableName() string {
	return "chunks"
}

// GetLocation returns the parsed structured location, or nil if unset.
func (c *Chunk) GetLocation() (*ChunkLocation, error) {
	if c.Location == "" {
		return nil, nil
	}
	var loc ChunkLocation
	if err := json.Unmarshal([]byte(c.Location), &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// SetLocation serializes the structured location into the row.
func (c *Chunk) SetLocation(loc *ChunkLocation) error {
	if loc == nil {
		c.Location = ""
		return nil
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	c.Location = string(data)
	return nil
}

// GetBreadcrumbs returns the hierarchical breadcrumb path, outermost first.
func (c *Chunk) GetBreadcrumbs() ([]string, error) {
	if c.Breadcrumbs == "" {
		return nil, nil
	}
	var crumbs []string
	if err := json.Unmarshal([]byte(c.Breadcrumbs), &crumbs); err != nil {
		return nil, err
	}
	return crumbs, nil
}

// SetBreadcrumbs serializes the breadcrumb path into the row.
func (c *Chunk) SetBreadcrumbs(crumbs []string) error {
	if len(crumbs) == 0 {
		c.Breadcrumbs = ""
		return nil
	}
	data, err := json.Marshal(crumbs)
	if err != nil {
		return err
	}
	c.Breadcrumbs = string(data)
	return nil
}

// GetQualityFlags returns the quality flags raised during chunking.
func (c *Chunk) GetQualityFlags() ([]string, error) {
	if c.QualityFlags == "" {
		return nil, nil
	}
	var flags []string
	if err := json.Unmarshal([]byte(c.QualityFlags), &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// SetQualityFlags serializes the quality flags into the row.
func (c *Chunk) SetQualityFlags(flags []string) error {
	if len(flags) == 0 {
		c.QualityFlags = ""
		return nil
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	c.QualityFlags = string(data)
	return nil
}
