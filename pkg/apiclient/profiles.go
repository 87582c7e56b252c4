package apiclient

import (
	"net/url"
	"time"
)

// ProfileConfig carries the processing parameters snapshotted onto each
// document at upload time.
type ProfileConfig struct {
	ChunkSize      int     `json:"chunkSize"`
	ChunkOverlap   int     `json:"chunkOverlap"`
	MinChunkSize   int     `json:"minChunkSize"`
	MinTextLength  int     `json:"minTextLength"`
	MaxNoiseRatio  float64 `json:"maxNoiseRatio"`
	OCREnabled     bool    `json:"ocrEnabled"`
	EmbeddingModel string  `json:"embeddingModel"`
}

// Profile is one processing profile.
type Profile struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	IsDefault   bool           `json:"isDefault"`
	IsActive    bool           `json:"isActive"`
	IsArchived  bool           `json:"isArchived"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Config      *ProfileConfig `json:"config,omitempty"`
}

// CreateProfileRequest is the request to create a profile. A nil Config
// starts from the server defaults.
type CreateProfileRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Config      *ProfileConfig `json:"config,omitempty"`
}

// UpdateProfileRequest renames a profile or changes its description.
type UpdateProfileRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProfileDeleteCheck is the confirmation handshake for deleting a profile
// that documents still reference.
type ProfileDeleteCheck struct {
	RequireConfirmation bool  `json:"requireConfirmation"`
	DocumentCount       int64 `json:"documentCount"`
}

// ProfileDeleteResult reports a confirmed profile deletion.
type ProfileDeleteResult struct {
	DocumentsDeleted int `json:"documentsDeleted"`
}

type profileList struct {
	Profiles []Profile `json:"profiles"`
}

// ListProfiles returns all profiles, optionally including archived ones.
func (c *Client) ListProfiles(includeArchived bool) ([]Profile, error) {
	path := "/api/profiles"
	if includeArchived {
		path += "?includeArchived=true"
	}
	list, err := getResource[profileList](c, path)
	if err != nil {
		return nil, err
	}
	return list.Profiles, nil
}

// GetProfile returns one profile with its parsed config.
func (c *Client) GetProfile(id string) (*Profile, error) {
	return getResource[Profile](c, resourcePath("/api/profiles/%s", url.PathEscape(id)))
}

// CreateProfile creates a new profile.
func (c *Client) CreateProfile(req *CreateProfileRequest) (*Profile, error) {
	return createResource[Profile](c, "/api/profiles", req)
}

// UpdateProfile renames a profile or changes its description.
func (c *Client) UpdateProfile(id string, req *UpdateProfileRequest) (*Profile, error) {
	return updateResource[Profile](c, resourcePath("/api/profiles/%s", url.PathEscape(id)), req)
}

// DuplicateProfile clones a profile under a versioned name. A non-nil
// overrides replaces the clone's config wholesale.
func (c *Client) DuplicateProfile(id string, overrides *ProfileConfig) (*Profile, error) {
	var body any
	if overrides != nil {
		body = map[string]*ProfileConfig{"config": overrides}
	}
	return createResource[Profile](c, resourcePath("/api/profiles/%s/duplicate", url.PathEscape(id)), body)
}

// ActivateProfile makes the profile the one applied to new uploads.
func (c *Client) ActivateProfile(id string) (*Profile, error) {
	return createResource[Profile](c, resourcePath("/api/profiles/%s/activate", url.PathEscape(id)), nil)
}

// ArchiveProfile hides a profile from the default listing.
func (c *Client) ArchiveProfile(id string) error {
	return c.post(resourcePath("/api/profiles/%s/archive", url.PathEscape(id)), nil, nil)
}

// UnarchiveProfile restores an archived profile.
func (c *Client) UnarchiveProfile(id string) error {
	return c.post(resourcePath("/api/profiles/%s/unarchive", url.PathEscape(id)), nil, nil)
}

// DeleteProfile deletes a profile. Without confirm the server answers with a
// check when documents still reference the profile; with confirm it deletes
// the profile and those documents, reporting how many went with it.
func (c *Client) DeleteProfile(id string, confirm bool) (*ProfileDeleteCheck, *ProfileDeleteResult, error) {
	path := resourcePath("/api/profiles/%s", url.PathEscape(id))
	if confirm {
		path += "?confirm=true"
	}

	var raw struct {
		RequireConfirmation *bool `json:"requireConfirmation"`
		DocumentCount       int64 `json:"documentCount"`
		DocumentsDeleted    int   `json:"documentsDeleted"`
	}
	if err := c.delete(path, &raw); err != nil {
		return nil, nil, err
	}
	if raw.RequireConfirmation != nil {
		return &ProfileDeleteCheck{
			RequireConfirmation: *raw.RequireConfirmation,
			DocumentCount:       raw.DocumentCount,
		}, nil, nil
	}
	return nil, &ProfileDeleteResult{DocumentsDeleted: raw.DocumentsDeleted}, nil
}
