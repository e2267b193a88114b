package modules

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/internal/visibility"
	"github.com/mxn2020/prompt-verse-io/pkg/query"
	"github.com/mxn2020/prompt-verse-io/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "modules", "m").
	Project("id", "ID").
	Project("owner_id", "OwnerID").
	Project("workspace_id", "WorkspaceID").
	Project("name", "Name").
	Project("description", "Description").
	Project("content", "Content").
	Project("variables", "Variables").
	Project("tags", "Tags").
	Project("visibility", "Visibility").
	Project("usage_count", "UsageCount").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var returning = projection.Returning()

var defaultSort = query.SortField{
	Field: "Name",
}

// Filters contains optional filtering criteria for module queries.
// Nil fields are ignored. Name uses case-insensitive contains matching,
// Tag requires the tag to be present.
type Filters struct {
	Name        *string                `json:"name,omitempty"`
	Visibility  *visibility.Visibility `json:"visibility,omitempty"`
	Tag         *string                `json:"tag,omitempty"`
	WorkspaceID *uuid.UUID             `json:"workspace_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	b.WhereContains("Name", f.Name).
		WhereEquals("Visibility", f.Visibility).
		WhereEquals("WorkspaceID", f.WorkspaceID)

	if f.Tag != nil && *f.Tag != "" {
		b.WhereJSONContains("Tags", []string{*f.Tag})
	}
	return b
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unparseable values are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if v := values.Get("visibility"); v != "" {
		if parsed, err := visibility.Parse(v); err == nil {
			f.Visibility = &parsed
		}
	}

	if t := values.Get("tag"); t != "" {
		f.Tag = &t
	}

	if w := values.Get("workspace_id"); w != "" {
		if id, err := uuid.Parse(w); err == nil {
			f.WorkspaceID = &id
		}
	}

	return f
}

func scanModule(s repository.Scanner) (Module, error) {
	var (
		m            Module
		variablesRaw []byte
		tagsRaw      []byte
	)

	err := s.Scan(
		&m.ID,
		&m.OwnerID,
		&m.WorkspaceID,
		&m.Name,
		&m.Description,
		&m.Content,
		&variablesRaw,
		&tagsRaw,
		&m.Visibility,
		&m.UsageCount,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return m, err
	}

	if m.Variables, err = unmarshalStrings(variablesRaw); err != nil {
		return m, fmt.Errorf("unmarshal variables: %w", err)
	}
	if m.Tags, err = unmarshalStrings(tagsRaw); err != nil {
		return m, fmt.Errorf("unmarshal tags: %w", err)
	}

	return m, nil
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
