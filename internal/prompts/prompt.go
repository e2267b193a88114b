// Package prompts implements the prompt store. A prompt persists an
// unresolved root template together with its authoring metadata; module
// placeholders in the template are linked to the owner's module library.
package prompts

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/internal/visibility"
	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxTags              = 20
	MaxTagLength         = 50
	MaxStopSequences     = 4
)

// Prompt is a stored root template owned by a single user.
type Prompt struct {
	ID                uuid.UUID             `json:"id"`
	OwnerID           uuid.UUID             `json:"owner_id"`
	WorkspaceID       *uuid.UUID            `json:"workspace_id"`
	ParentID          *uuid.UUID            `json:"parent_id"`
	Title             string                `json:"title"`
	Description       *string               `json:"description"`
	Content           string                `json:"content"`
	Type              Type                  `json:"prompt_type"`
	Visibility        visibility.Visibility `json:"visibility"`
	Tags              []string              `json:"tags"`
	Starred           bool                  `json:"starred"`
	UsageCount        int                   `json:"usage_count"`
	ModelSettings     *ModelSettings        `json:"model_settings"`
	RequiredVariables []string              `json:"required_variables"`
	Version           int                   `json:"version"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// ModelSettings records the generation parameters a prompt was tuned for.
// They are stored and returned but never interpreted.
type ModelSettings struct {
	Model            string   `json:"model,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`
}

// Validate checks parameter ranges.
func (s ModelSettings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Model, validation.Length(0, 100)),
		validation.Field(&s.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&s.MaxTokens, validation.By(positive)),
		validation.Field(&s.TopP, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&s.FrequencyPenalty, validation.Min(-2.0), validation.Max(2.0)),
		validation.Field(&s.PresencePenalty, validation.Min(-2.0), validation.Max(2.0)),
		validation.Field(&s.Stop, validation.Length(0, MaxStopSequences), validation.Each(validation.Required)),
	)
}

func positive(value any) error {
	if n, ok := value.(*int); ok && n != nil && *n <= 0 {
		return errors.New("must be greater than 0")
	}
	return nil
}

// CreateCommand carries the data needed to create a prompt.
type CreateCommand struct {
	WorkspaceID       *uuid.UUID            `json:"workspace_id"`
	Title             string                `json:"title"`
	Description       *string               `json:"description"`
	Content           string                `json:"content"`
	Type              Type                  `json:"prompt_type"`
	Visibility        visibility.Visibility `json:"visibility"`
	Tags              []string              `json:"tags"`
	ModelSettings     *ModelSettings        `json:"model_settings"`
	RequiredVariables []string              `json:"required_variables"`
}

// UpdateCommand replaces every editable field of a prompt. Each update
// increments the prompt version.
type UpdateCommand struct {
	WorkspaceID       *uuid.UUID            `json:"workspace_id"`
	Title             string                `json:"title"`
	Description       *string               `json:"description"`
	Content           string                `json:"content"`
	Type              Type                  `json:"prompt_type"`
	Visibility        visibility.Visibility `json:"visibility"`
	Tags              []string              `json:"tags"`
	ModelSettings     *ModelSettings        `json:"model_settings"`
	RequiredVariables []string              `json:"required_variables"`
}

// Normalize fills defaults for omitted optional fields.
func (c *CreateCommand) Normalize() {
	c.Type = c.Type.OrDefault()
	c.Visibility = c.Visibility.OrDefault()
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.RequiredVariables == nil {
		c.RequiredVariables = []string{}
	}
}

// Validate checks field constraints. Errors wrap ErrValidation.
func (c CreateCommand) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Title, validation.Required, validation.Length(1, MaxTitleLength)),
		validation.Field(&c.Description, validation.Length(0, MaxDescriptionLength)),
		validation.Field(&c.Content, validation.Required),
		validation.Field(&c.Type, validation.Required),
		validation.Field(&c.Visibility, validation.Required),
		validation.Field(&c.Tags, validation.Length(0, MaxTags), validation.Each(validation.Required, validation.Length(1, MaxTagLength))),
		validation.Field(&c.ModelSettings),
		validation.Field(&c.RequiredVariables, validation.Each(validation.Required, bundle.Identifier)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Normalize fills defaults for omitted optional fields.
func (c *UpdateCommand) Normalize() {
	cmd := CreateCommand(*c)
	cmd.Normalize()
	*c = UpdateCommand(cmd)
}

// Validate checks field constraints. Errors wrap ErrValidation.
func (c UpdateCommand) Validate() error {
	return CreateCommand(c).Validate()
}

// ModuleLink is a library module included by a prompt's content. Position
// is the byte offset of the module's first placeholder.
type ModuleLink struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
}
