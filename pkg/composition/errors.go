package composition

import (
	"errors"
	"fmt"
	"strings"
)

// Structural errors. Typed errors returned by Resolve match these through errors.Is.
var (
	ErrCycle         = errors.New("module reference cycle")
	ErrMissingModule = errors.New("module not found in registry")
	ErrDepthExceeded = errors.New("expansion depth exceeded")
	ErrBudget        = errors.New("expansion budget exceeded")
)

// Registry construction errors.
var (
	ErrDuplicateKey = errors.New("duplicate registry key")
	ErrAmbiguousKey = errors.New("registry key collides with another module under the alternate key scheme")
	ErrInvalidKey   = errors.New("registry key is not a placeholder identifier")
)

// CycleError reports a module that transitively references itself.
// Path lists module keys from the outermost expansion to the repeated key.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// Module returns the key that closed the cycle.
func (e *CycleError) Module() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[len(e.Path)-1]
}

// MissingModuleError reports a module reference the registry claims to hold
// but cannot return.
type MissingModuleError struct {
	Key  string
	Path []string
}

func (e *MissingModuleError) Error() string {
	if len(e.Path) > 1 {
		return fmt.Sprintf("%s: %q (via %s)", ErrMissingModule, e.Key, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%s: %q", ErrMissingModule, e.Key)
}

func (e *MissingModuleError) Is(target error) bool {
	return target == ErrMissingModule
}

// DepthExceededError reports nesting or pass counts beyond the depth limit.
// Path is empty when the limit was hit by repeated expansion passes.
type DepthExceededError struct {
	Depth int
	Path  []string
}

func (e *DepthExceededError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s: more than %d expansion passes", ErrDepthExceeded, e.Depth)
	}
	return fmt.Sprintf("%s: limit %d at %s", ErrDepthExceeded, e.Depth, strings.Join(e.Path, " -> "))
}

func (e *DepthExceededError) Is(target error) bool {
	return target == ErrDepthExceeded
}

// Budget resources reported by BudgetError.
const (
	BudgetExpansions = "expansions"
	BudgetOutput     = "output bytes"
)

// BudgetError reports a resolution that expanded too many modules or
// produced too much text.
type BudgetError struct {
	Resource string
	Limit    int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s: more than %d %s", ErrBudget, e.Limit, e.Resource)
}

func (e *BudgetError) Is(target error) bool {
	return target == ErrBudget
}
