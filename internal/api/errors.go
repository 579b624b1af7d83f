// errors.go - JSON error bodies and the mapping from domain errors
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	pkgerrors "github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/logging"
)

// Development includes the cause of 5xx errors in response bodies.
var Development = true

// APIError is the body of every failed request.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

func newAPIError(status int, code, message string, cause error) *APIError {
	e := &APIError{Status: status, Code: code, Message: message}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

func NewBadRequestError(message string, cause error) *APIError {
	return newAPIError(http.StatusBadRequest, "BAD_REQUEST", message, cause)
}

// NewValidationError rejects a missing or malformed request field.
func NewValidationError(field string) *APIError {
	return newAPIError(http.StatusBadRequest, "VALIDATION_ERROR", "invalid or missing field: "+field, nil)
}

func NewNotFoundError(resource, id string) *APIError {
	return newAPIError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found: %s", resource, id), nil)
}

func NewInternalError(message string, cause error) *APIError {
	return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", message, cause)
}

func NewServiceUnavailableError(message string) *APIError {
	return newAPIError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, nil)
}

// FromError maps a domain error to an APIError. APIErrors pass through.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var notFound *pkgerrors.NotFoundError
	var invalid *pkgerrors.ValidationError
	switch {
	case errors.As(err, &notFound):
		return NewNotFoundError(notFound.Resource, notFound.ID)
	case errors.As(err, &invalid):
		apiErr := NewValidationError(invalid.Field)
		apiErr.Details = invalid.Message
		return apiErr
	case errors.Is(err, pkgerrors.ErrLimitReached):
		return NewServiceUnavailableError(err.Error())
	case errors.Is(err, pkgerrors.ErrInvalidInput):
		return NewBadRequestError("invalid input", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		return newAPIError(http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	}
	return NewInternalError("internal error", err)
}

// ErrorHandler writes err as an APIError body. Install with e.HTTPErrorHandler = api.ErrorHandler.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code := strings.ToUpper(strings.ReplaceAll(http.StatusText(httpErr.Code), " ", "_"))
		if code == "" {
			code = "HTTP_ERROR"
		}
		apiErr = newAPIError(httpErr.Code, code, fmt.Sprint(httpErr.Message), nil)
	} else {
		apiErr = FromError(err)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error().Err(err).
			Str("path", c.Request().URL.Path).Msg("Request failed")
		if !Development {
			apiErr = &APIError{Status: apiErr.Status, Code: apiErr.Code, Message: apiErr.Message}
		}
	}

	if err := c.JSON(apiErr.Status, apiErr); err != nil {
		logging.FromContext(c.Request().Context()).Debug().Err(err).Msg("Error response not written")
	}
}
