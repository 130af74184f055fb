package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"biolink/internal/httputil"
	"biolink/internal/model"
	"biolink/internal/service"
	"biolink/internal/transport/http/middleware"
)

// maxJSONBody caps profile create and patch bodies.
const maxJSONBody = 64 << 10

type ProfileHandler struct {
	profileService *service.ProfileService
	logger         zerolog.Logger
}

func NewProfileHandler(profileService *service.ProfileService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		logger:         logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Get handles GET /profiles/{ownerId}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.Get(r.Context(), chi.URLParam(r, "ownerId"), middleware.CallerID(r.Context()))
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// GetBySlug handles GET /profiles/by-slug/{slug}
func (h *ProfileHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.GetBySlug(r.Context(), chi.URLParam(r, "slug"), middleware.CallerID(r.Context()))
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// Create handles POST /profiles. An empty body creates the caller's profile with defaults.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var init model.ProfileInit
	if err := json.NewDecoder(r.Body).Decode(&init); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteDomainError(w, h.logger, model.NewFieldError("body", "must be a JSON object"))
		return
	}

	profile, err := h.profileService.Create(r.Context(), middleware.CallerID(r.Context()), init)
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, profile)
}

// Update handles PATCH /profiles/{ownerId}
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteDomainError(w, h.logger, model.NewFieldError("body", "too large or unreadable"))
		return
	}

	patch, err := model.ParsePatch(body)
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}

	profile, err := h.profileService.Update(r.Context(), middleware.CallerID(r.Context()), chi.URLParam(r, "ownerId"), patch)
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// Sync handles POST /profiles/{ownerId}/sync
func (h *ProfileHandler) Sync(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.SyncIdentity(r.Context(), middleware.CallerID(r.Context()), chi.URLParam(r, "ownerId"))
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// LookupIdentity handles GET /identities/{id}
func (h *ProfileHandler) LookupIdentity(w http.ResponseWriter, r *http.Request) {
	identity, err := h.profileService.LookupIdentity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			httputil.WriteNotFound(w, "identity not found")
			return
		}
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}
