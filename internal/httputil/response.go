package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"biolink/internal/model"
)

// Error codes returned in the "code" field of error bodies
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeInvalidState = "INVALID_STATE"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeUpstream     = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code, a readable message and the offending field when known
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		// Headers are already sent; an encode error here cannot be reported to the client.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes an error response:
// {"error": {"code": "ERROR_CODE", "message": "Human readable message"}}
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// WriteUnauthorized writes a 401 Unauthorized error
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// WriteUnauthorizedWithCode writes a 401 Unauthorized error with a custom code
func WriteUnauthorizedWithCode(w http.ResponseWriter, code string, message string) {
	WriteError(w, http.StatusUnauthorized, code, message)
}

// WriteNotFound writes a 404 Not Found error
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// WriteDomainError maps an error kind onto a status code and body.
// Only the validation kinds expose err's text; everything else gets a fixed message.
// 5xx responses are logged with the underlying error.
func WriteDomainError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	}
	WriteJSON(w, status, ErrorResponse{Error: detail})
}

func classify(err error) (int, ErrorDetail) {
	field := model.ErrorField(err)

	switch {
	case errors.Is(err, model.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, ErrorDetail{Code: model.CodeFileTooLarge, Message: "file exceeds the size limit"}
	case errors.Is(err, model.ErrInvalidMediaType):
		return http.StatusUnsupportedMediaType, ErrorDetail{Code: model.CodeInvalidMediaType, Message: "unsupported media type"}
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, ErrorDetail{Code: ErrCodeValidation, Message: publicMessage(err), Field: field}
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusUnprocessableEntity, ErrorDetail{Code: ErrCodeInvalidState, Message: publicMessage(err), Field: field}
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, ErrorDetail{Code: ErrCodeConflict, Message: publicMessage(err), Field: field}
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, ErrorDetail{Code: ErrCodeNotFound, Message: "profile not found"}
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorDetail{Code: ErrCodeUnauthorized, Message: "authentication required"}
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, ErrorDetail{Code: ErrCodeForbidden, Message: "not allowed to modify this profile"}
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, ErrorDetail{Code: ErrCodeUpstream, Message: "upstream service unavailable, try again later"}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: ErrCodeInternal, Message: "internal server error"}
	}
}

// publicMessage returns the text of the typed domain error inside err, dropping any
// wrapping context added by lower layers.
func publicMessage(err error) string {
	var fe *model.FieldError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	var se *model.StateError
	if errors.As(err, &se) {
		return se.Error()
	}
	var ce *model.ConflictError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	if errors.Is(err, model.ErrConflict) {
		return "already in use"
	}
	return err.Error()
}
