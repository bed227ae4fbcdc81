package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"healthchat/internal/models"
	"healthchat/internal/profiles"
)

// ProfileStore defines the store operations the HTTP layer consumes.
type ProfileStore interface {
	Profile(userID string) (models.Profile, models.LookupState)
	ProfileOrFetch(ctx context.Context, userID string, opts ...profiles.FetchOption) (models.Profile, models.LookupState, error)
	FetchProfile(ctx context.Context, userID string, opts ...profiles.FetchOption) (models.Profile, models.LookupState, error)
	ProfileLookupError(userID string) error
	KnownProfile(userID string) (models.Profile, models.LookupState)
	FetchKnownProfile(ctx context.Context, userID string) (models.Profile, models.LookupState, error)
	ServerSupportsExtendedProfiles(ctx context.Context, userID string) bool
	ExtendedPropertyOrFetch(ctx context.Context, userID, key string) models.PropertyValue
	SetExtendedProperty(ctx context.Context, key string, value models.PropertyValue) bool
	DeleteExtendedProperty(ctx context.Context, key string) bool
	Flush()
}

// ProfileResponse is the API response for profile lookups.
type ProfileResponse struct {
	Success     bool            `json:"success"`
	UserID      string          `json:"user_id,omitempty"`
	State       string          `json:"state,omitempty"`
	Profile     *models.Profile `json:"profile,omitempty"`
	LookupError string          `json:"lookup_error,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// PropertyResponse is the API response for extended property lookups.
type PropertyResponse struct {
	Success         bool                 `json:"success"`
	UserID          string               `json:"user_id,omitempty"`
	Key             string               `json:"key,omitempty"`
	Value           models.PropertyValue `json:"value"`
	ServerSupported bool                 `json:"server_supported"`
	Error           string               `json:"error,omitempty"`
}

// ProfileHandler handles HTTP requests for profile operations
type ProfileHandler struct {
	store ProfileStore
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(store ProfileStore) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// GetProfile handles GET /api/v1/profiles/{user_id}.
// ?cached_only=true answers from cache without network access and
// ?refresh=true forces a remote fetch.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if err := models.ValidateUserID(userID); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		profile models.Profile
		state   models.LookupState
		err     error
	)
	switch {
	case isTrue(r, "cached_only"):
		profile, state = h.store.Profile(userID)
	case isTrue(r, "refresh"):
		profile, state, err = h.store.FetchProfile(r.Context(), userID)
	default:
		profile, state, err = h.store.ProfileOrFetch(r.Context(), userID)
	}
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadGateway, "failed to fetch profile")
		return
	}

	h.writeProfileResponse(w, userID, profile, state)
}

// GetKnownProfile handles GET /api/v1/profiles/{user_id}/known. Lookups are
// gated on the user sharing a room with the local user.
func (h *ProfileHandler) GetKnownProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if err := models.ValidateUserID(userID); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		profile models.Profile
		state   models.LookupState
		err     error
	)
	if isTrue(r, "cached_only") {
		profile, state = h.store.KnownProfile(userID)
	} else {
		profile, state, err = h.store.FetchKnownProfile(r.Context(), userID)
		if errors.Is(err, profiles.ErrUnknownUser) {
			h.writeErrorResponse(w, http.StatusNotFound, "user does not share a room with the local user")
			return
		}
		if err != nil {
			h.writeErrorResponse(w, http.StatusBadGateway, "failed to fetch profile")
			return
		}
	}

	h.writeProfileResponse(w, userID, profile, state)
}

// GetProperty handles GET /api/v1/profiles/{user_id}/properties/{key}.
func (h *ProfileHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, key := vars["user_id"], vars["key"]
	if err := models.ValidateUserID(userID); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if key == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "key is required")
		return
	}

	response := PropertyResponse{
		Success: true,
		UserID:  userID,
		Key:     key,
	}
	if !h.store.ServerSupportsExtendedProfiles(r.Context(), userID) {
		// No point fetching; the value stays null.
		h.writeJSONResponse(w, http.StatusOK, response)
		return
	}

	response.ServerSupported = true
	response.Value = h.store.ExtendedPropertyOrFetch(r.Context(), userID, key)
	h.writeJSONResponse(w, http.StatusOK, response)
}

// PutProperty handles PUT /api/v1/profile/properties/{key}. The body is the
// raw JSON value; writes always target the local user.
func (h *ProfileHandler) PutProperty(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "key is required")
		return
	}

	var value models.PropertyValue
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if !h.store.SetExtendedProperty(r.Context(), key, value) {
		h.writeErrorResponse(w, http.StatusBadGateway, "remote write failed")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, PropertyResponse{
		Success:         true,
		Key:             key,
		Value:           value,
		ServerSupported: true,
	})
}

// DeleteProperty handles DELETE /api/v1/profile/properties/{key}.
func (h *ProfileHandler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "key is required")
		return
	}

	if !h.store.DeleteExtendedProperty(r.Context(), key) {
		h.writeErrorResponse(w, http.StatusBadGateway, "remote delete failed")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]any{"success": true, "key": key})
}

// FlushCache handles POST /api/v1/cache/flush.
func (h *ProfileHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	h.store.Flush()
	h.writeJSONResponse(w, http.StatusOK, map[string]any{"success": true})
}

func (h *ProfileHandler) writeProfileResponse(w http.ResponseWriter, userID string, profile models.Profile, state models.LookupState) {
	response := ProfileResponse{
		Success: state == models.LookupFound,
		UserID:  userID,
		State:   state.String(),
	}
	status := http.StatusOK
	switch state {
	case models.LookupFound:
		response.Profile = &profile
	default:
		status = http.StatusNotFound
		if lookupErr := h.store.ProfileLookupError(userID); lookupErr != nil {
			response.LookupError = lookupErr.Error()
		}
	}
	h.writeJSONResponse(w, status, response)
}

func isTrue(r *http.Request, param string) bool {
	return r.URL.Query().Get(param) == "true"
}

// writeJSONResponse writes a JSON response
func (h *ProfileHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes an error response
func (h *ProfileHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSONResponse(w, statusCode, map[string]any{"success": false, "error": message})
}
