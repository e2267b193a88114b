package prompts

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/internal/visibility"
	"github.com/mxn2020/prompt-verse-io/pkg/query"
	"github.com/mxn2020/prompt-verse-io/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "prompts", "p").
	Project("id", "ID").
	Project("owner_id", "OwnerID").
	Project("workspace_id", "WorkspaceID").
	Project("parent_id", "ParentID").
	Project("title", "Title").
	Project("description", "Description").
	Project("content", "Content").
	Project("prompt_type", "Type").
	Project("visibility", "Visibility").
	Project("tags", "Tags").
	Project("starred", "Starred").
	Project("usage_count", "UsageCount").
	Project("model_settings", "ModelSettings").
	Project("required_variables", "RequiredVariables").
	Project("version", "Version").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var returning = projection.Returning()

var defaultSort = query.SortField{
	Field:      "UpdatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for prompt queries.
// Nil fields are ignored. Title uses case-insensitive contains matching.
type Filters struct {
	Title       *string                `json:"title,omitempty"`
	Type        *Type                  `json:"prompt_type,omitempty"`
	Visibility  *visibility.Visibility `json:"visibility,omitempty"`
	Tag         *string                `json:"tag,omitempty"`
	Starred     *bool                  `json:"starred,omitempty"`
	WorkspaceID *uuid.UUID             `json:"workspace_id,omitempty"`
	ParentID    *uuid.UUID             `json:"parent_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	b.WhereContains("Title", f.Title).
		WhereEquals("Type", f.Type).
		WhereEquals("Visibility", f.Visibility).
		WhereEquals("Starred", f.Starred).
		WhereEquals("WorkspaceID", f.WorkspaceID).
		WhereEquals("ParentID", f.ParentID)

	if f.Tag != nil && *f.Tag != "" {
		b.WhereJSONContains("Tags", []string{*f.Tag})
	}
	return b
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if t := values.Get("title"); t != "" {
		f.Title = &t
	}

	if t := values.Get("prompt_type"); t != "" {
		if parsed, err := ParseType(t); err == nil {
			f.Type = &parsed
		}
	}

	if v := values.Get("visibility"); v != "" {
		if parsed, err := visibility.Parse(v); err == nil {
			f.Visibility = &parsed
		}
	}

	if t := values.Get("tag"); t != "" {
		f.Tag = &t
	}

	if s := values.Get("starred"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			f.Starred = &v
		}
	}

	if w := values.Get("workspace_id"); w != "" {
		if id, err := uuid.Parse(w); err == nil {
			f.WorkspaceID = &id
		}
	}

	if p := values.Get("parent_id"); p != "" {
		if id, err := uuid.Parse(p); err == nil {
			f.ParentID = &id
		}
	}

	return f
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var (
		p           Prompt
		tagsRaw     []byte
		settingsRaw []byte
		requiredRaw []byte
	)

	err := s.Scan(
		&p.ID,
		&p.OwnerID,
		&p.WorkspaceID,
		&p.ParentID,
		&p.Title,
		&p.Description,
		&p.Content,
		&p.Type,
		&p.Visibility,
		&tagsRaw,
		&p.Starred,
		&p.UsageCount,
		&settingsRaw,
		&requiredRaw,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}

	if p.Tags, err = unmarshalStrings(tagsRaw); err != nil {
		return p, fmt.Errorf("unmarshal tags: %w", err)
	}
	if p.RequiredVariables, err = unmarshalStrings(requiredRaw); err != nil {
		return p, fmt.Errorf("unmarshal required_variables: %w", err)
	}

	if len(settingsRaw) > 0 && string(settingsRaw) != "null" {
		p.ModelSettings = &ModelSettings{}
		if err := json.Unmarshal(settingsRaw, p.ModelSettings); err != nil {
			return p, fmt.Errorf("unmarshal model_settings: %w", err)
		}
	}

	return p, nil
}

func unmarshalStrings(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func scanModuleLink(s repository.Scanner) (ModuleLink, error) {
	var l ModuleLink
	err := s.Scan(&l.ID, &l.Name, &l.Position)
	return l, err
}
