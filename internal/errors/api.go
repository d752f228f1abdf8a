package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is a structured error response rendered by the HTTP layer.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError creates an APIError with the given parameters.
func NewAPIError(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

var (
	ErrAPIInvalidRequest = NewAPIError(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrAPINotFound       = NewAPIError(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrAPIInternal       = NewAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// WriteJSONError writes an APIError directly, for use outside the
// render pipeline (middleware, raw handlers).
func WriteJSONError(w http.ResponseWriter, apiErr *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_ = json.NewEncoder(w).Encode(apiErr)
}

// APIFromError maps a domain or pipeline error onto an HTTP response.
func APIFromError(err error) *APIError {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, ErrIngestionInProgress):
		return &APIError{
			StatusCode: http.StatusConflict,
			ErrorCode:  "INGESTION_IN_PROGRESS",
			Message:    err.Error(),
		}
	case stderrors.Is(err, ErrNoData):
		return &APIError{
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NO_DATA",
			Message:    err.Error(),
		}
	}

	var pe *PipelineError
	if stderrors.As(err, &pe) {
		status := http.StatusInternalServerError
		switch pe.Type {
		case TypeNetwork, TypeRateLimited:
			status = http.StatusBadGateway
		case TypeValidation, TypeFormat, TypeRow:
			status = http.StatusUnprocessableEntity
		case TypeUnknownSymbol:
			status = http.StatusNotFound
		}
		return &APIError{
			StatusCode: status,
			ErrorCode:  "PIPELINE_" + string(pe.Type),
			Message:    pe.Message,
			Details:    pe.Error(),
		}
	}

	return &APIError{
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  "INTERNAL_SERVER_ERROR",
		Message:    err.Error(),
	}
}

// InvalidParam builds a 400 response naming the offending parameter.
func InvalidParam(name, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  "INVALID_PARAMETER",
		Message:    message,
		Details:    map[string]string{"param": name},
	}
}
