package handlers

import (
	"net/http"

	"github.com/dorucioclea/dlc-stack/internal/oracle"
	"github.com/dorucioclea/dlc-stack/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error represents an API error
type Error struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// classify maps service errors onto HTTP errors. Messages of client errors
// are passed through; backend details are logged but not returned.
func classify(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, oracle.ErrUnknownAssetPair),
		errors.Is(err, oracle.ErrUnrecordedAssetPair),
		errors.Is(err, oracle.ErrInvalidEventID),
		errors.Is(err, oracle.ErrInvalidMaturation),
		errors.Is(err, oracle.ErrOutcomeOutOfRange):
		return &Error{Message: err.Error(), StatusCode: http.StatusBadRequest, Code: "VALIDATION_ERROR"}
	case errors.Is(err, oracle.ErrEventNotFound):
		return &Error{Message: err.Error(), StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	case errors.Is(err, oracle.ErrEventAlreadyAttested),
		errors.Is(err, oracle.ErrConcurrentUpdate):
		return &Error{Message: err.Error(), StatusCode: http.StatusConflict, Code: "CONFLICT"}
	case store.IsStoreError(err), errors.Is(err, oracle.ErrCorruptRecord):
		return &Error{Message: "Event store unavailable", StatusCode: http.StatusServiceUnavailable, Code: "STORE_UNAVAILABLE"}
	default:
		return &Error{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	}
}

// writeError writes err as JSON and logs server side failures
func writeError(c *gin.Context, err error) {
	apiErr := classify(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.AbortWithStatusJSON(apiErr.StatusCode, ErrorResponse{Message: apiErr.Message, Code: apiErr.Code})
}

func newValidationError(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusBadRequest, Code: "VALIDATION_ERROR"}
}
