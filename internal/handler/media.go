package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"biolink/internal/httputil"
	"biolink/internal/model"
	"biolink/internal/service"
	"biolink/internal/transport/http/middleware"
)

// multipartOverhead leaves room for boundaries and part headers on top of the file limit.
const multipartOverhead = 1 << 20

type MediaHandler struct {
	profileService *service.ProfileService
	logger         zerolog.Logger
}

func NewMediaHandler(profileService *service.ProfileService, logger zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		profileService: profileService,
		logger:         logger.With().Str("component", "media_handler").Logger(),
	}
}

// UploadAvatar handles POST /profiles/{ownerId}/avatar with a multipart "avatar" file.
func (h *MediaHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	file, cleanup, err := formFile(w, r, "avatar", model.MaxAvatarSizeBytes)
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	defer cleanup()

	profile, err := h.profileService.SetAvatar(r.Context(), middleware.CallerID(r.Context()), chi.URLParam(r, "ownerId"), file)
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UploadBackground handles POST /profiles/{ownerId}/background with a multipart "background" file.
func (h *MediaHandler) UploadBackground(w http.ResponseWriter, r *http.Request) {
	file, cleanup, err := formFile(w, r, "background", model.MaxBackgroundSizeBytes)
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	defer cleanup()

	profile, err := h.profileService.SetBackground(r.Context(), middleware.CallerID(r.Context()), chi.URLParam(r, "ownerId"), file)
	if err != nil {
		httputil.WriteDomainError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// formFile pulls one file part out of a size-limited multipart body.
func formFile(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (service.UploadFile, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.UploadFile{}, nil, model.ErrFileTooLarge
		}
		return service.UploadFile{}, nil, model.NewFieldError(field, "expected a multipart/form-data upload")
	}

	f, header, err := r.FormFile(field)
	if err != nil {
		return service.UploadFile{}, nil, model.NewFieldError(field, "file is required")
	}

	cleanup := func() {
		_ = f.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	return service.UploadFile{
		Body:        f,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}, cleanup, nil
}
