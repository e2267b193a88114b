package modules

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
)

// Domain errors for module operations.
var (
	ErrNotFound    = errors.New("module not found")
	ErrDuplicate   = errors.New("module name already exists")
	ErrValidation  = errors.New("invalid module")
	ErrReferenced  = errors.New("module is referenced")
	ErrComposition = errors.New("module library does not compose")
)

// ReferencedError is returned when deleting or renaming a module that other
// prompts or modules still include.
type ReferencedError struct {
	Name string
	References
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf(
		"module %q is referenced by %d prompt(s) and %d module(s)",
		e.Name, len(e.Prompts), len(e.Modules),
	)
}

func (e *ReferencedError) Is(target error) bool {
	return target == ErrReferenced
}

// MapHTTPStatus maps module domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrReferenced):
		return http.StatusConflict
	case errors.Is(err, ErrValidation),
		errors.Is(err, bundle.ErrInvalid),
		errors.Is(err, bundle.ErrUnsupportedVersion):
		return http.StatusBadRequest
	case errors.Is(err, ErrComposition):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
