// Package registry manages the processing-profile catalog. Profiles are
// immutable once created: changing parameters means duplicating into a
// new row with a versioned name. The registry also resolves the profile
// snapshot stamped onto every upload.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/pkg/blob"
	"github.com/quernlabs/quern/pkg/events"
	"github.com/quernlabs/quern/pkg/models"
	"github.com/quernlabs/quern/pkg/store"
)

// maxNamingAttempts bounds the versioned-name retry loop on duplicate
// profile names.
const maxNamingAttempts = 100

// versionedName matches names that already carry a version suffix.
var versionedName = regexp.MustCompile(`^(.+) v(\d+)$`)

// Registry is a thin layer over the store's profile tables that
// enforces the lifecycle rules: snapshot resolution, single-active
// activation, archive-before-delete, and versioned duplication.
type Registry struct {
	store store.Store
	blobs blob.Store
	bus   *events.Bus
}

// New creates a profile registry.
func New(st store.Store, blobs blob.Store, bus *events.Bus) *Registry {
	return &Registry{store: st, blobs: blobs, bus: bus}
}

// EnsureDefault seeds the built-in default profile on first boot and
// returns it.
func (r *Registry) EnsureDefault(ctx context.Context) (*models.ProcessingProfile, error) {
	return r.store.EnsureDefaultProfile(ctx)
}

// ResolveSnapshot returns the profile to stamp onto a new document:
// the active profile, or the default when nothing is active.
func (r *Registry) ResolveSnapshot(ctx context.Context) (*models.ProcessingProfile, error) {
	profile, err := r.store.GetActiveProfile(ctx)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, models.ErrProfileNotFound) {
		return nil, err
	}

	profile, err = r.store.GetDefaultProfile(ctx)
	if err != nil {
		if errors.Is(err, models.ErrProfileNotFound) {
			return nil, models.ErrNoProfileAvailable
		}
		return nil, err
	}
	return profile, nil
}

// List returns the catalog, hiding archived profiles unless asked.
func (r *Registry) List(ctx context.Context, includeArchived bool) ([]*store.ProfileWithUsage, error) {
	profiles, err := r.store.ListProfiles(ctx, includeArchived)
	if err != nil {
		return nil, err
	}

	out := make([]*store.ProfileWithUsage, 0, len(profiles))
	for _, p := range profiles {
		count, err := r.store.CountDocumentsByProfile(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &store.ProfileWithUsage{Profile: p, DocumentCount: count})
	}
	return out, nil
}

// Get returns a profile by ID.
func (r *Registry) Get(ctx context.Context, id string) (*models.ProcessingProfile, error) {
	return r.store.GetProfile(ctx, id)
}

// Create adds a new profile with the given parameters. The name must be
// unique; use Duplicate to derive a versioned variant.
func (r *Registry) Create(ctx context.Context, name, description string, config models.ProfileConfig) (*models.ProcessingProfile, error) {
	profile := &models.ProcessingProfile{
		Name:        name,
		Description: description,
	}
	if err := profile.SetConfig(config); err != nil {
		return nil, err
	}
	if _, err := r.store.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Duplicate clones a profile into a new row under a versioned name
// ("Name" becomes "Name v2", "Name v2" becomes "Name v3"), retrying
// past name conflicts. Parameter overrides are applied to the clone.
func (r *Registry) Duplicate(ctx context.Context, id string, overrides *models.ProfileConfig) (*models.ProcessingProfile, error) {
	source, err := r.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	config, err := source.GetConfig()
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		config = *overrides
	}

	name := nextVersionName(source.Name)
	for attempt := 0; attempt < maxNamingAttempts; attempt++ {
		clone := &models.ProcessingProfile{
			Name:        name,
			Description: source.Description,
		}
		if err := clone.SetConfig(config); err != nil {
			return nil, err
		}
		_, err := r.store.CreateProfile(ctx, clone)
		if err == nil {
			return clone, nil
		}
		if !errors.Is(err, models.ErrDuplicateProfile) {
			return nil, err
		}
		name = nextVersionName(name)
	}
	return nil, fmt.Errorf("could not find a free versioned name for %q after %d attempts", source.Name, maxNamingAttempts)
}

// nextVersionName appends or increments the " vN" suffix.
func nextVersionName(name string) string {
	if m := versionedName.FindStringSubmatch(name); m != nil {
		version, err := strconv.Atoi(m[2])
		if err == nil {
			return fmt.Sprintf("%s v%d", m[1], version+1)
		}
	}
	return name + " v2"
}

// Activate makes the profile the single active one.
func (r *Registry) Activate(ctx context.Context, id string) error {
	return r.store.ActivateProfile(ctx, id)
}

// UpdateInfo renames a profile and updates its description. Processing
// parameters stay immutable.
func (r *Registry) UpdateInfo(ctx context.Context, id, name, description string) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	return r.store.UpdateProfileInfo(ctx, id, name, description)
}

// Archive hides a profile from the default listing. The default and the
// active profile cannot be archived.
func (r *Registry) Archive(ctx context.Context, id string) error {
	return r.store.SetProfileArchived(ctx, id, true)
}

// Unarchive restores an archived profile.
func (r *Registry) Unarchive(ctx context.Context, id string) error {
	profile, err := r.store.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if !profile.IsArchived {
		return models.ErrProfileNotArchived
	}
	return r.store.SetProfileArchived(ctx, id, false)
}

// DeleteCheck is the first phase of a profile deletion. When the
// profile still owns documents, the caller must confirm before the
// cascade runs.
type DeleteCheck struct {
	RequireConfirmation bool  `json:"requireConfirmation"`
	DocumentCount       int64 `json:"documentCount"`
}

// DeleteResult reports what a confirmed cascade removed.
type DeleteResult struct {
	DocumentsDeleted int `json:"documentsDeleted"`
}

// Delete removes an archived profile. When the profile owns documents
// and confirmed is false, no deletion happens and the returned check
// asks for confirmation with the dependent count. A confirmed call
// cascades through documents and chunks, unlinks their blobs, and
// emits one document:deleted event per removed document.
func (r *Registry) Delete(ctx context.Context, id string, confirmed bool) (*DeleteCheck, *DeleteResult, error) {
	profile, err := r.store.GetProfile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !profile.CanDelete() {
		if profile.IsDefault || profile.IsActive {
			return nil, nil, models.ErrProfileProtected
		}
		return nil, nil, models.ErrProfileNotArchived
	}

	count, err := r.store.CountDocumentsByProfile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if count > 0 && !confirmed {
		return &DeleteCheck{RequireConfirmation: true, DocumentCount: count}, nil, nil
	}

	cascade, err := r.store.DeleteProfileCascade(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	for _, path := range cascade.StoragePaths {
		if err := r.blobs.Delete(ctx, path); err != nil {
			logger.Warn("failed to unlink blob after profile delete", "key", path, "error", err)
		}
	}
	for _, docID := range cascade.DocumentIDs {
		r.bus.Publish(events.DocumentDeleted{ID: docID})
	}

	logger.Info("profile deleted",
		"profile_id", id,
		"name", profile.Name,
		"documents_deleted", len(cascade.DocumentIDs))
	return nil, &DeleteResult{DocumentsDeleted: len(cascade.DocumentIDs)}, nil
}
