package prompts

import (
	"errors"
	"net/http"

	"github.com/mxn2020/prompt-verse-io/pkg/repository"
)

// Domain errors for prompt operations.
var (
	ErrNotFound     = errors.New("prompt not found")
	ErrDuplicate    = errors.New("prompt already exists")
	ErrValidation   = errors.New("invalid prompt")
	ErrInvalidType  = errors.New("prompt_type must be standard, structured, modularized, or advanced")
	ErrLinkConflict = errors.New("a module referenced by the prompt was removed concurrently")
)

// MapHTTPStatus maps prompt domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrLinkConflict) || repository.IsForeignKeyViolation(err) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidType) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
