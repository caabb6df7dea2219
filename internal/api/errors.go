// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/medallion-map/backend/internal/archive"
	"github.com/medallion-map/backend/internal/logging"
	"github.com/medallion-map/backend/internal/parser"
	"github.com/medallion-map/backend/internal/render"
	"github.com/medallion-map/backend/internal/session"
	"github.com/medallion-map/backend/internal/storage"
	"github.com/medallion-map/backend/internal/upload"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ShowErrorDetails includes the text of unexpected errors in responses.
var ShowErrorDetails = false

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewParseError creates a 422 error for content that is not usable CSV
func NewParseError(pe *parser.ParseError) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "PARSE_ERROR",
		Message: "The file could not be read as CSV",
		Details: pe.Error(),
		Line:    pe.Line,
	}
}

// NewRenderError creates a 502 error for renders that failed on an upstream
func NewRenderError(re *render.RenderError) *APIError {
	err := &APIError{
		Status:  http.StatusBadGateway,
		Code:    "RENDER_ERROR",
		Message: re.UserMessage(),
	}
	if ShowErrorDetails && re.Err != nil {
		err.Details = re.Err.Error()
	}
	return err
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// toAPIError maps errors of the domain packages onto API errors.
func toAPIError(err error, resource, id string) *APIError {
	var apiErr *APIError
	var pe *parser.ParseError
	var re *render.RenderError

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &pe):
		return NewParseError(pe)
	case errors.As(err, &re):
		return NewRenderError(re)
	case errors.Is(err, session.ErrPanelNotFound):
		return NewNotFoundError("panel", id)
	case errors.Is(err, session.ErrNotRendered):
		return NewNotFoundError("render", id)
	case errors.Is(err, session.ErrTooManyPanels):
		return NewServiceUnavailableError("too many panels are open, try again later")
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, archive.ErrNotArchived):
		return NewNotFoundError(resource, id)
	case errors.Is(err, upload.ErrTooLarge):
		return &APIError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    "BAD_REQUEST",
			Message: "file is too large",
			Details: err.Error(),
		}
	default:
		return NewInternalError("unexpected error", err)
	}
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    httpCode(httpErr.Code),
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred",
		}
		if ShowErrorDetails {
			apiErr.Details = err.Error()
		}
	}

	if apiErr.Status >= http.StatusInternalServerError {
		log := logging.For("api")
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", apiErr.Status).
			Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case http.StatusRequestEntityTooLarge, http.StatusBadRequest, http.StatusMethodNotAllowed, http.StatusUnsupportedMediaType:
		return "BAD_REQUEST"
	}
	if status >= http.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return "BAD_REQUEST"
}
