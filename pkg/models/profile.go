package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProfileConfig holds the conversion, chunking, and quality parameters
// snapshotted onto every document at upload time. Once a profile row is
// created these values never change; duplication produces a new row.
type ProfileConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int `json:"chunkSize"`
	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int `json:"chunkOverlap"`
	// MinChunkSize drops trailing fragments shorter than this.
	MinChunkSize int `json:"minChunkSize"`
	// MinTextLength is the quality gate floor for converted markdown.
	MinTextLength int `json:"minTextLength"`
	// MaxNoiseRatio is the quality gate ceiling for non-linguistic content.
	MaxNoiseRatio float64 `json:"maxNoiseRatio"`
	// OCREnabled lets the worker pool run OCR on scanned pages.
	OCREnabled bool `json:"ocrEnabled"`
	// EmbeddingModel is a display-only descriptor of the model in use.
	EmbeddingModel string `json:"embeddingModel"`
}

// DefaultProfileConfig returns the parameters of the built-in profile.
func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		MinChunkSize:   100,
		MinTextLength:  100,
		MaxNoiseRatio:  0.5,
		OCREnabled:     true,
		EmbeddingModel: "nomic-embed-text",
	}
}

// Validate checks that the chunking parameters are coherent.
func (c *ProfileConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunkOverlap must be in [0, chunkSize)")
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.ChunkSize {
		return fmt.Errorf("minChunkSize must be in [0, chunkSize]")
	}
	if c.MinTextLength < 0 {
		return fmt.Errorf("minTextLength must be non-negative")
	}
	if c.MaxNoiseRatio < 0 || c.MaxNoiseRatio > 1 {
		return fmt.Errorf("maxNoiseRatio must be in [0, 1]")
	}
	return nil
}

// ProcessingProfile is an immutable configuration bundle for ingestion.
// At most one profile is default and at most one is active at any time.
type ProcessingProfile struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Name        string `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Description string `gorm:"size:1024" json:"description,omitempty"`

	// Config is the JSON-serialized ProfileConfig; use GetConfig/SetConfig.
	Config string `gorm:"type:text;not null" json:"-"`

	IsDefault  bool `gorm:"not null;default:false" json:"isDefault"`
	IsActive   bool `gorm:"not null;default:false" json:"isActive"`
	IsArchived bool `gorm:"not null;default:false" json:"isArchived"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// Parsed configuration (not stored in DB)
	ParsedConfig *ProfileConfig `gorm:"-" json:"config,omitempty"`
}

// TableName returns the table name for ProcessingProfile.
func (ProcessingProfile) TableName() string {
	return "processing_profiles"
}

// GetConfig returns the parsed profile configuration.
func (p *ProcessingProfile) GetConfig() (ProfileConfig, error) {
	if p.ParsedConfig != nil {
		return *p.ParsedConfig, nil
	}
	if p.Config == "" {
		cfg := DefaultProfileConfig()
		p.ParsedConfig = &cfg
		return cfg, nil
	}
	var cfg ProfileConfig
	if err := json.Unmarshal([]byte(p.Config), &cfg); err != nil {
		return ProfileConfig{}, err
	}
	p.ParsedConfig = &cfg
	return cfg, nil
}

// SetConfig serializes the profile configuration into the row.
func (p *ProcessingProfile) SetConfig(cfg ProfileConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	p.Config = string(data)
	p.ParsedConfig = &cfg
	return nil
}

// Validate checks if the profile has valid configuration.
func (p *ProcessingProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	cfg, err := p.GetConfig()
	if err != nil {
		return fmt.Errorf("invalid profile config: %w", err)
	}
	return cfg.Validate()
}

// CanActivate reports whether the profile may become the active profile.
// Archived profiles must be unarchived first.
func (p *ProcessingProfile) CanActivate() bool {
	return !p.IsArchived
}

// CanArchive reports whether the profile may be archived.
// The default profile and the active profile stay visible.
func (p *ProcessingProfile) CanArchive() bool {
	return !p.IsDefault && !p.IsActive
}

// CanDelete reports whether the profile may be deleted.
// Deletion requires prior archival.
func (p *ProcessingProfile) CanDelete() bool {
	return p.IsArchived && !p.IsDefault && !p.IsActive
}
