// Package compose serves template composition against an owner's module
// library. It loads prompts and library snapshots from their stores and
// delegates expansion to pkg/composition.
package compose

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
)

// Request assembles an ad-hoc template.
type Request struct {
	Template string               `json:"template"`
	Bindings composition.Bindings `json:"bindings"`
	Required []string             `json:"required"`
}

// Validate checks the template is present and required names are identifiers.
func (r Request) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Template, validation.Required),
		validation.Field(&r.Required, validation.Each(validation.Required, bundle.Identifier)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// PromptRequest assembles a stored prompt. Required names are merged with
// the prompt's own required variables. Record increments usage counters for
// the prompt and every expanded module.
type PromptRequest struct {
	Bindings composition.Bindings `json:"bindings"`
	Required []string             `json:"required"`
	Record   bool                 `json:"record"`
}

// Validate checks required names are identifiers.
func (r PromptRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Required, validation.Each(validation.Required, bundle.Identifier)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// AnalyzeRequest carries a template to classify.
type AnalyzeRequest struct {
	Template string `json:"template"`
}

// Response is an assembly plus how it was produced.
type Response struct {
	composition.Assembly
	// Blocking is set when a required variable is unresolved.
	Blocking bool       `json:"blocking"`
	Cached   bool       `json:"cached"`
	PromptID *uuid.UUID `json:"prompt_id,omitempty"`
}

// Analysis splits a template's placeholders into library module references
// and variables.
type Analysis struct {
	Placeholders []string `json:"placeholders"`
	Modules      []string `json:"modules"`
	Variables    []string `json:"variables"`
}

// Analyze classifies the placeholders of template against registry.
func Analyze(template string, registry composition.Registry) Analysis {
	a := Analysis{
		Placeholders: composition.Scan(template),
		Modules:      []string{},
		Variables:    []string{},
	}
	for _, name := range a.Placeholders {
		if registry.Has(name) {
			a.Modules = append(a.Modules, name)
		} else {
			a.Variables = append(a.Variables, name)
		}
	}
	return a
}

// mergeRequired returns the union of both lists, first list order first.
func mergeRequired(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
