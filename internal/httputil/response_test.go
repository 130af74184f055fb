package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"biolink/internal/model"
)

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		field  string
	}{
		{"field", model.NewFieldError("displayName", "must not be empty"), http.StatusBadRequest, ErrCodeValidation, "displayName"},
		{"state", &model.StateError{Fields: []string{"backgroundKind", "backgroundRef"}, Reason: "x"}, http.StatusUnprocessableEntity, ErrCodeInvalidState, "backgroundKind,backgroundRef"},
		{"conflict", &model.ConflictError{Field: "shareableSlug", Value: "cool"}, http.StatusConflict, ErrCodeConflict, "shareableSlug"},
		{"not found", fmt.Errorf("get: %w", model.ErrNotFound), http.StatusNotFound, ErrCodeNotFound, ""},
		{"unauthenticated", model.ErrUnauthenticated, http.StatusUnauthorized, ErrCodeUnauthorized, ""},
		{"forbidden", model.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, ""},
		{"upstream", fmt.Errorf("%w: r2", model.ErrUpstreamUnavailable), http.StatusServiceUnavailable, ErrCodeUpstream, ""},
		{"too large", model.ErrFileTooLarge, http.StatusRequestEntityTooLarge, model.CodeFileTooLarge, ""},
		{"media type", model.ErrInvalidMediaType, http.StatusUnsupportedMediaType, model.CodeInvalidMediaType, ""},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, ErrCodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, zerolog.Nop(), tt.err)

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.code, body.Error.Code)
			require.Equal(t, tt.field, body.Error.Field)
			require.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestWriteDomainError_DropsWrappingContext(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"conflict", fmt.Errorf("failed to update profile: %w", &model.ConflictError{Field: "shareableSlug", Value: "cool"}), `shareableSlug "cool" already in use`},
		{"insert conflict", fmt.Errorf("failed to insert profile: %w", &model.ConflictError{Field: "ownerId"}), "ownerId already in use"},
		{"field", fmt.Errorf("merge: %w", model.NewFieldError("nameColor", "must be #RRGGBB")), "nameColor: must be #RRGGBB"},
		{"bare conflict", fmt.Errorf("failed to update profile: %w", model.ErrConflict), "already in use"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, zerolog.Nop(), tt.err)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.want, body.Error.Message)
			require.NotContains(t, rec.Body.String(), "profile:")
			require.NotContains(t, rec.Body.String(), "merge")
		})
	}
}

func TestWriteDomainError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(rec, zerolog.Nop(), errors.New("pq: password authentication failed for user postgres"))

	require.NotContains(t, rec.Body.String(), "postgres")
}
