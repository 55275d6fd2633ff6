package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorKind classifies failures so the boundary can map them to HTTP status
// codes without inspecting error strings.
type ErrorKind string

const (
	// Kinds surfaced at the HTTP boundary.
	KindBadInput    ErrorKind = "bad_input"
	KindUnsupported ErrorKind = "unsupported"
	KindTooLarge    ErrorKind = "too_large"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindInternal    ErrorKind = "internal"

	// Internal kinds; all map to 500 if they ever reach the boundary.
	KindParse             ErrorKind = "parse_error"
	KindChunk             ErrorKind = "chunk_error"
	KindEmbed             ErrorKind = "embed_error"
	KindIndex             ErrorKind = "index_error"
	KindStore             ErrorKind = "store_error"
	KindModel             ErrorKind = "model_error"
	KindInconsistentState ErrorKind = "inconsistent_state"
)

// AppError carries a kind alongside the message so callers can branch on it.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewError creates an AppError without a cause.
func NewError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// WrapError creates an AppError wrapping an underlying cause.
func WrapError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to internal.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func statusForKind(kind ErrorKind) int {
	switch kind {
	case KindBadInput:
		return http.StatusBadRequest
	case KindUnsupported:
		return http.StatusUnsupportedMediaType
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithAppError maps an error chain to the proper status code.
// Internal kinds never leak their detail; the message is replaced.
func RespondWithAppError(c *gin.Context, err error) {
	kind := KindOf(err)
	status := statusForKind(kind)

	message := err.Error()
	code := string(kind)
	if status == http.StatusInternalServerError {
		message = "internal error"
		code = string(KindInternal)
	}
	var appErr *AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		message = appErr.Message
	}

	RespondWithError(c, status, code, message, nil)
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, string(KindBadInput), message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, string(KindNotFound), message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, string(KindInternal), message, details)
}
