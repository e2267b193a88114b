package compose

import (
	"errors"
	"net/http"

	"github.com/mxn2020/prompt-verse-io/internal/modules"
	"github.com/mxn2020/prompt-verse-io/internal/prompts"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
)

// ErrValidation wraps malformed composition requests.
var ErrValidation = errors.New("invalid composition request")

// MapHTTPStatus maps composition errors to HTTP status codes. Structural
// resolution failures are 422.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, prompts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, composition.ErrCycle),
		errors.Is(err, composition.ErrDepthExceeded),
		errors.Is(err, composition.ErrMissingModule),
		errors.Is(err, composition.ErrBudget),
		errors.Is(err, modules.ErrComposition):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
