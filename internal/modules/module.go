// Package modules implements the reusable prompt module library. Modules are
// named text fragments that other modules and prompts include through
// {{name}} placeholders.
package modules

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/internal/visibility"
	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
)

const (
	MaxDescriptionLength = 1000
	MaxTags              = 20
	MaxTagLength         = 50
)

// Module is a stored library entry owned by a single user.
type Module struct {
	ID          uuid.UUID             `json:"id"`
	OwnerID     uuid.UUID             `json:"owner_id"`
	WorkspaceID *uuid.UUID            `json:"workspace_id"`
	Name        string                `json:"name"`
	Description *string               `json:"description"`
	Content     string                `json:"content"`
	Variables   []string              `json:"variables"`
	Tags        []string              `json:"tags"`
	Visibility  visibility.Visibility `json:"visibility"`
	UsageCount  int                   `json:"usage_count"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// CreateCommand carries the data needed to create a module.
type CreateCommand struct {
	WorkspaceID *uuid.UUID            `json:"workspace_id"`
	Name        string                `json:"name"`
	Description *string               `json:"description"`
	Content     string                `json:"content"`
	Variables   []string              `json:"variables"`
	Tags        []string              `json:"tags"`
	Visibility  visibility.Visibility `json:"visibility"`
}

// UpdateCommand replaces every editable field of a module.
type UpdateCommand struct {
	WorkspaceID *uuid.UUID            `json:"workspace_id"`
	Name        string                `json:"name"`
	Description *string               `json:"description"`
	Content     string                `json:"content"`
	Variables   []string              `json:"variables"`
	Tags        []string              `json:"tags"`
	Visibility  visibility.Visibility `json:"visibility"`
}

// Normalize fills defaults for omitted optional fields.
func (c *CreateCommand) Normalize() {
	c.Visibility = c.Visibility.OrDefault()
	if c.Variables == nil {
		c.Variables = []string{}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
}

// Validate checks field constraints. Errors wrap ErrValidation.
func (c CreateCommand) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, bundle.MaxNameLength), bundle.Identifier),
		validation.Field(&c.Description, validation.Length(0, MaxDescriptionLength)),
		validation.Field(&c.Content, validation.Required),
		validation.Field(&c.Variables, validation.Each(validation.Required, bundle.Identifier)),
		validation.Field(&c.Tags, validation.Length(0, MaxTags), validation.Each(validation.Required, validation.Length(1, MaxTagLength))),
		validation.Field(&c.Visibility, validation.Required),
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

// Ref identifies an entity that includes a module.
type Ref struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// References lists the prompts and modules that include a module.
type References struct {
	Prompts []Ref `json:"prompts"`
	Modules []Ref `json:"modules"`
}

// Empty reports whether nothing includes the module.
func (r References) Empty() bool {
	return len(r.Prompts) == 0 && len(r.Modules) == 0
}

// ImportResult reports which bundle modules were inserted or replaced.
type ImportResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// ArchiveResult describes an uploaded library export.
type ArchiveResult struct {
	Key     string `json:"key"`
	Modules int    `json:"modules"`
	Size    int64  `json:"size"`
}
