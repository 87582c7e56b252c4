package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quernlabs/quern/pkg/ingest/registry"
	"github.com/quernlabs/quern/pkg/models"
)

// ProfileHandler handles processing-profile administration endpoints.
type ProfileHandler struct {
	registry *registry.Registry
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(reg *registry.Registry) *ProfileHandler {
	return &ProfileHandler{registry: reg}
}

// writeProfileProblem maps registry errors shared across endpoints.
func writeProfileProblem(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrProfileNotFound):
		NotFound(w, "Profile not found")
	case errors.Is(err, models.ErrDuplicateProfile):
		Conflict(w, "A profile with that name already exists", CodeNameInUse)
	case errors.Is(err, models.ErrProfileProtected):
		Conflict(w, "The default or active profile cannot be archived or deleted", CodeProfileProtected)
	case errors.Is(err, models.ErrProfileArchived):
		Conflict(w, "Archived profiles cannot be activated", CodeProfileArchived)
	case errors.Is(err, models.ErrProfileNotArchived):
		Conflict(w, "Profile must be archived first", CodeProfileNotArchived)
	default:
		InternalServerError(w, "Profile operation failed")
	}
}

// List handles GET /api/profiles?includeArchived=true.
// Returns every profile with its document usage count.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	includeArchived := false
	if v := r.URL.Query().Get("includeArchived"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "includeArchived must be a boolean")
			return
		}
		includeArchived = parsed
	}

	profiles, err := h.registry.List(r.Context(), includeArchived)
	if err != nil {
		InternalServerError(w, "Failed to list profiles")
		return
	}

	WriteJSONOK(w, map[string]any{"profiles": profiles})
}

// CreateProfileRequest is the request body for POST /api/profiles.
type CreateProfileRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Config      *models.ProfileConfig `json:"config"`
}

// Create handles POST /api/profiles.
// Omitted config fields fall back to the built-in defaults.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	config := models.DefaultProfileConfig()
	if req.Config != nil {
		config = *req.Config
	}
	if err := config.Validate(); err != nil {
		UnprocessableEntity(w, err.Error())
		return
	}

	profile, err := h.registry.Create(r.Context(), req.Name, req.Description, config)
	if err != nil {
		writeProfileProblem(w, err)
		return
	}

	WriteJSONCreated(w, profile)
}

// Get handles GET /api/profiles/{id}.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	profile, err := h.registry.Get(r.Context(), id)
	if err != nil {
		writeProfileProblem(w, err)
		return
	}
	// Populate the parsed config for the response body.
	if _, err := profile.GetConfig(); err != nil {
		InternalServerError(w, "Profile configuration is corrupt")
		return
	}

	WriteJSONOK(w, profile)
}

// UpdateProfileRequest is the request body for PUT /api/profiles/{id}.
// Only the label changes; processing parameters are immutable.
type UpdateProfileRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Update handles PUT /api/profiles/{id}.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	if err := h.registry.UpdateInfo(r.Context(), id, req.Name, req.Description); err != nil {
		writeProfileProblem(w, err)
		return
	}

	profile, err := h.registry.Get(r.Context(), id)
	if err != nil {
		writeProfileProblem(w, err)
		return
	}
	WriteJSONOK(w, profile)
}

// DuplicateProfileRequest is the optional request body for duplication.
type DuplicateProfileRequest struct {
	Config *models.ProfileConfig `json:"config"`
}

// Duplicate handles POST /api/profiles/{id}/duplicate.
// Clones the profile under a versioned name, optionally overriding the
// processing parameters. The body may be empty.
func (h *ProfileHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DuplicateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "Request body must be valid JSON")
		return
	}
	if req.Config != nil {
		if err := req.Config.Validate(); err != nil {
			UnprocessableEntity(w, err.Error())
			return
		}
	}

	clone, err := h.registry.Duplicate(r.Context(), id, req.Config)
	if err != nil {
		writeProfileProblem(w, err)
		return
	}

	WriteJSONCreated(w, clone)
}

// Activate handles POST /api/profiles/{id}/activate.
func (h *ProfileHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.registry.Activate(r.Context(), id); err != nil {
		writeProfileProblem(w, err)
		return
	}

	profile, err := h.registry.Get(r.Context(), id)
	if err != nil {
		writeProfileProblem(w, err)
		return
	}
	WriteJSONOK(w, profile)
}

// Archive handles POST /api/profiles/{id}/archive.
func (h *ProfileHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.registry.Archive(r.Context(), id); err != nil {
		writeProfileProblem(w, err)
		return
	}

	WriteJSONOK(w, map[string]any{"id": id, "isArchived": true})
}

// Unarchive handles POST /api/profiles/{id}/unarchive.
func (h *ProfileHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.registry.Unarchive(r.Context(), id); err != nil {
		writeProfileProblem(w, err)
		return
	}

	WriteJSONOK(w, map[string]any{"id": id, "isArchived": false})
}

// Delete handles DELETE /api/profiles/{id}?confirm=true.
// When the profile still owns documents and confirm is absent, no
// deletion happens and the body asks for confirmation with the count.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	confirmed := false
	if v := r.URL.Query().Get("confirm"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "confirm must be a boolean")
			return
		}
		confirmed = parsed
	}

	check, result, err := h.registry.Delete(r.Context(), id, confirmed)
	if err != nil {
		writeProfileProblem(w, err)
		return
	}
	if check != nil {
		WriteJSONOK(w, check)
		return
	}
	WriteJSONOK(w, result)
}
