package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quernlabs/quern/pkg/models"
)

// DefaultProfileName is the name of the seeded built-in profile.
const DefaultProfileName = "Default"

// CreateProfile creates a new processing profile.
// Returns models.ErrDuplicateProfile when the name is already taken.
func (s *GORMStore) CreateProfile(ctx context.Context, profile *models.ProcessingProfile) (string, error) {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if err := profile.Validate(); err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Create(profile).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", models.ErrDuplicateProfile
		}
		return "", err
	}
	return profile.ID, nil
}

// GetProfile returns a profile by ID.
func (s *GORMStore) GetProfile(ctx context.Context, id string) (*models.ProcessingProfile, error) {
	var profile models.ProcessingProfile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrProfileNotFound)
	}
	return &profile, nil
}

// GetProfileByName returns a profile by its unique name.
func (s *GORMStore) GetProfileByName(ctx context.Context, name string) (*models.ProcessingProfile, error) {
	var profile models.ProcessingProfile
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&profile).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrProfileNotFound)
	}
	return &profile, nil
}

// ListProfiles returns all profiles ordered by creation time. Archived
// profiles are hidden unless includeArchived is set.
func (s *GORMStore) ListProfiles(ctx context.Context, includeArchived bool) ([]*models.ProcessingProfile, error) {
	q := s.db.WithContext(ctx).Model(&models.ProcessingProfile{})
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}

	var profiles []*models.ProcessingProfile
	if err := q.Order("created_at ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetActiveProfile returns the single active profile.
func (s *GORMStore) GetActiveProfile(ctx context.Context) (*models.ProcessingProfile, error) {
	var profile models.ProcessingProfile
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).First(&profile).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrProfileNotFound)
	}
	return &profile, nil
}

// GetDefaultProfile returns the built-in default profile.
func (s *GORMStore) GetDefaultProfile(ctx context.Context) (*models.ProcessingProfile, error) {
	var profile models.ProcessingProfile
	if err := s.db.WithContext(ctx).Where("is_default = ?", true).First(&profile).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrProfileNotFound)
	}
	return &profile, nil
}

// ActivateProfile makes the target the single active profile: the flag
// is cleared on every other row and set on the target in one
// transaction, preserving the at-most-one-active invariant.
// Returns models.ErrProfileArchived when the target is archived.
func (s *GORMStore) ActivateProfile(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.ProcessingProfile
		if err := tx.Where("id = ?", id).First(&profile).Error; err != nil {
			return convertNotFoundError(err, models.ErrProfileNotFound)
		}
		if !profile.CanActivate() {
			return models.ErrProfileArchived
		}
		if profile.IsActive {
			return nil
		}

		if err := tx.Model(&models.ProcessingProfile{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.ProcessingProfile{}).
			Where("id = ?", id).
			Update("is_active", true).Error
	})
}

// UpdateProfileInfo renames a profile and updates its description.
// Processing parameters are immutable; only the label changes.
func (s *GORMStore) UpdateProfileInfo(ctx context.Context, id, name, description string) error {
	result := s.db.WithContext(ctx).Model(&models.ProcessingProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{"name": name, "description": description})
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return models.ErrDuplicateProfile
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrProfileNotFound
	}
	return nil
}

// SetProfileArchived archives or unarchives a profile. The default and
// the active profile are protected from archival.
func (s *GORMStore) SetProfileArchived(ctx context.Context, id string, archived bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.ProcessingProfile
		if err := tx.Where("id = ?", id).First(&profile).Error; err != nil {
			return convertNotFoundError(err, models.ErrProfileNotFound)
		}
		if archived && !profile.CanArchive() {
			return models.ErrProfileProtected
		}
		if profile.IsArchived == archived {
			return nil
		}
		return tx.Model(&models.ProcessingProfile{}).
			Where("id = ?", id).
			Update("is_archived", archived).Error
	})
}

// CountDocumentsByProfile returns how many documents snapshot the profile.
func (s *GORMStore) CountDocumentsByProfile(ctx context.Context, profileID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("profile_id = ?", profileID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteProfileCascade removes a profile together with every document
// that snapshots it, including their chunks and metrics, in one
// transaction. The profile must be archived, and never the default or
// active one. Deleted document IDs and blob paths are reported so the
// caller can emit events and unlink files after commit.
func (s *GORMStore) DeleteProfileCascade(ctx context.Context, id string) (*ProfileCascadeResult, error) {
	result := &ProfileCascadeResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.ProcessingProfile
		if err := tx.Where("id = ?", id).First(&profile).Error; err != nil {
			return convertNotFoundError(err, models.ErrProfileNotFound)
		}
		if profile.IsDefault || profile.IsActive {
			return models.ErrProfileProtected
		}
		if !profile.IsArchived {
			return models.ErrProfileNotArchived
		}

		var docs []*models.Document
		if err := tx.Where("profile_id = ?", id).Find(&docs).Error; err != nil {
			return err
		}
		for _, doc := range docs {
			result.DocumentIDs = append(result.DocumentIDs, doc.ID)
			if doc.StoragePath != nil && *doc.StoragePath != "" {
				result.StoragePaths = append(result.StoragePaths, *doc.StoragePath)
			}
		}

		if len(result.DocumentIDs) > 0 {
			if err := tx.Where("document_id IN ?", result.DocumentIDs).Delete(&models.Chunk{}).Error; err != nil {
				return err
			}
			if err := tx.Where("document_id IN ?", result.DocumentIDs).Delete(&models.ProcessingMetrics{}).Error; err != nil {
				return err
			}
			if err := tx.Where("profile_id = ?", id).Delete(&models.Document{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.ProcessingProfile{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EnsureDefaultProfile seeds the built-in default profile when the table
// has no default yet. The seeded profile starts active so a fresh
// deployment can ingest without further setup.
func (s *GORMStore) EnsureDefaultProfile(ctx context.Context) (*models.ProcessingProfile, error) {
	var profile models.ProcessingProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("is_default = ?", true).First(&profile).Error
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return err
		}

		profile = models.ProcessingProfile{
			ID:          uuid.New().String(),
			Name:        DefaultProfileName,
			Description: "Built-in processing defaults",
			IsDefault:   true,
			IsActive:    true,
		}
		if err := profile.SetConfig(models.DefaultProfileConfig()); err != nil {
			return err
		}

		// A concurrent boot may have seeded in between; treat the unique
		// name collision as success and re-read.
		if err := tx.Create(&profile).Error; err != nil {
			if isUniqueConstraintError(err) {
				return tx.Where("is_default = ?", true).First(&profile).Error
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
