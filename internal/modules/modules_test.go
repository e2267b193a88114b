package modules_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/internal/modules"
	"github.com/mxn2020/prompt-verse-io/internal/visibility"
	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
	"github.com/mxn2020/prompt-verse-io/pkg/query"
)

func ptr[T any](v T) *T { return &v }

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", modules.ErrNotFound, http.StatusNotFound},
		{"duplicate", modules.ErrDuplicate, http.StatusConflict},
		{"referenced", modules.ErrReferenced, http.StatusConflict},
		{"referenced error", &modules.ReferencedError{Name: "intro"}, http.StatusConflict},
		{"validation", modules.ErrValidation, http.StatusBadRequest},
		{"bundle invalid", bundle.ErrInvalid, http.StatusBadRequest},
		{"bundle version", bundle.ErrUnsupportedVersion, http.StatusBadRequest},
		{"composition", modules.ErrComposition, http.StatusUnprocessableEntity},
		{"unknown error", errors.New("something else"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("find failed: %w", modules.ErrNotFound), http.StatusNotFound},
		{"wrapped composition", fmt.Errorf("save: %w", modules.ErrComposition), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := modules.MapHTTPStatus(tt.err)
			if got != tt.want {
				t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestReferencedError(t *testing.T) {
	err := &modules.ReferencedError{
		Name: "intro",
		References: modules.References{
			Prompts: []modules.Ref{{ID: uuid.New(), Name: "Welcome"}},
			Modules: []modules.Ref{{ID: uuid.New(), Name: "outro"}, {ID: uuid.New(), Name: "footer"}},
		},
	}

	if !errors.Is(err, modules.ErrReferenced) {
		t.Error("errors.Is(ReferencedError, ErrReferenced) = false")
	}

	want := `module "intro" is referenced by 1 prompt(s) and 2 module(s)`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if err.Empty() {
		t.Error("Empty() = true, want false")
	}
	if !(modules.References{}).Empty() {
		t.Error("zero References Empty() = false, want true")
	}
}

func validCreate() modules.CreateCommand {
	return modules.CreateCommand{
		Name:      "greeting",
		Content:   "Hello {{user}}!",
		Variables: []string{"user"},
		Tags:      []string{"intro"},
	}
}

func TestCreateCommandNormalize(t *testing.T) {
	cmd := modules.CreateCommand{Name: "a", Content: "b"}
	cmd.Normalize()

	if cmd.Visibility != visibility.Private {
		t.Errorf("Visibility = %q, want private", cmd.Visibility)
	}
	if cmd.Variables == nil || cmd.Tags == nil {
		t.Error("Normalize should replace nil lists with empty slices")
	}
}

func TestCreateCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*modules.CreateCommand)
		wantErr bool
	}{
		{"valid", func(*modules.CreateCommand) {}, false},
		{"empty name", func(c *modules.CreateCommand) { c.Name = "" }, true},
		{"name with space", func(c *modules.CreateCommand) { c.Name = "my module" }, true},
		{"name with hyphen", func(c *modules.CreateCommand) { c.Name = "my-module" }, true},
		{"name starts with digit", func(c *modules.CreateCommand) { c.Name = "1st" }, true},
		{"name at limit", func(c *modules.CreateCommand) { c.Name = strings.Repeat("a", bundle.MaxNameLength) }, false},
		{"name too long", func(c *modules.CreateCommand) { c.Name = strings.Repeat("a", bundle.MaxNameLength+1) }, true},
		{"empty content", func(c *modules.CreateCommand) { c.Content = "" }, true},
		{"bad variable", func(c *modules.CreateCommand) { c.Variables = []string{"first name"} }, true},
		{"empty variable", func(c *modules.CreateCommand) { c.Variables = []string{""} }, true},
		{"description too long", func(c *modules.CreateCommand) {
			c.Description = ptr(strings.Repeat("d", modules.MaxDescriptionLength+1))
		}, true},
		{"too many tags", func(c *modules.CreateCommand) {
			c.Tags = make([]string, modules.MaxTags+1)
			for i := range c.Tags {
				c.Tags[i] = fmt.Sprintf("t%d", i)
			}
		}, true},
		{"tag too long", func(c *modules.CreateCommand) { c.Tags = []string{strings.Repeat("t", modules.MaxTagLength+1)} }, true},
		{"bad visibility", func(c *modules.CreateCommand) { c.Visibility = "secret" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validCreate()
			tt.mutate(&cmd)
			cmd.Normalize()

			err := cmd.Validate()
			if tt.wantErr {
				if !errors.Is(err, modules.ErrValidation) {
					t.Errorf("Validate() = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestUpdateCommandValidate(t *testing.T) {
	cmd := modules.UpdateCommand(validCreate())
	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	cmd.Name = "has space"
	if err := cmd.Validate(); !errors.Is(err, modules.ErrValidation) {
		t.Errorf("Validate() = %v, want ErrValidation", err)
	}
}

func TestFiltersFromQuery(t *testing.T) {
	ws := uuid.New()

	t.Run("all filters", func(t *testing.T) {
		values := url.Values{
			"name":         {"greet"},
			"visibility":   {"public"},
			"tag":          {"intro"},
			"workspace_id": {ws.String()},
		}
		f := modules.FiltersFromQuery(values)

		if f.Name == nil || *f.Name != "greet" {
			t.Errorf("Name = %v, want greet", f.Name)
		}
		if f.Visibility == nil || *f.Visibility != visibility.Public {
			t.Errorf("Visibility = %v, want public", f.Visibility)
		}
		if f.Tag == nil || *f.Tag != "intro" {
			t.Errorf("Tag = %v, want intro", f.Tag)
		}
		if f.WorkspaceID == nil || *f.WorkspaceID != ws {
			t.Errorf("WorkspaceID = %v, want %v", f.WorkspaceID, ws)
		}
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		f := modules.FiltersFromQuery(url.Values{
			"visibility":   {"secret"},
			"workspace_id": {"not-a-uuid"},
		})
		if f.Visibility != nil {
			t.Errorf("Visibility = %v, want nil", f.Visibility)
		}
		if f.WorkspaceID != nil {
			t.Errorf("WorkspaceID = %v, want nil", f.WorkspaceID)
		}
	})
}

func TestFiltersApply(t *testing.T) {
	projection := query.
		NewProjectionMap("public", "modules", "m").
		Project("name", "Name").
		Project("visibility", "Visibility").
		Project("tags", "Tags").
		Project("workspace_id", "WorkspaceID")

	t.Run("no filters produces no WHERE clause", func(t *testing.T) {
		b := query.NewBuilder(projection)
		modules.Filters{}.Apply(b)
		sql, args := b.Build()

		want := "SELECT m.name, m.visibility, m.tags, m.workspace_id FROM public.modules m"
		if sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if len(args) != 0 {
			t.Errorf("args = %v, want empty", args)
		}
	})

	t.Run("tag uses jsonb containment", func(t *testing.T) {
		b := query.NewBuilder(projection)
		modules.Filters{Tag: ptr("intro")}.Apply(b)
		sql, args := b.Build()

		if !strings.Contains(sql, "m.tags @> $1::jsonb") {
			t.Errorf("sql = %q, want jsonb containment", sql)
		}
		if len(args) != 1 || args[0] != `["intro"]` {
			t.Errorf("args = %v, want [\"intro\"]", args)
		}
	})

	t.Run("combined filters", func(t *testing.T) {
		b := query.NewBuilder(projection)
		vis := visibility.Team
		modules.Filters{Name: ptr("greet"), Visibility: &vis, Tag: ptr("x")}.Apply(b)
		_, args := b.Build()

		if len(args) != 3 {
			t.Errorf("args length = %d, want 3", len(args))
		}
	})
}

func TestArchiveKey(t *testing.T) {
	owner := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))

	want := "modules/00000000-0000-0000-0000-000000000001/20260304T040607Z.yaml"
	if got := modules.ArchiveKey(owner, at); got != want {
		t.Errorf("ArchiveKey() = %q, want %q", got, want)
	}
	if !strings.HasPrefix(want, modules.ArchivePrefix(owner)) {
		t.Errorf("ArchivePrefix() = %q is not a prefix of the key", modules.ArchivePrefix(owner))
	}
}

func TestModuleConversions(t *testing.T) {
	m := modules.Module{
		ID:          uuid.New(),
		Name:        "intro",
		Description: ptr("Greeting"),
		Content:     "Hi {{user}}",
		Variables:   []string{"user"},
		Tags:        []string{"greeting"},
	}

	c := m.Composition()
	if c.ID != m.ID.String() || c.Name != "intro" || c.Content != m.Content {
		t.Errorf("Composition() = %+v", c)
	}
	if len(c.DeclaredVariables) != 1 || c.DeclaredVariables[0] != "user" {
		t.Errorf("DeclaredVariables = %v, want [user]", c.DeclaredVariables)
	}

	bm := m.Bundle()
	if bm.Name != "intro" || bm.Description != "Greeting" || bm.Content != m.Content {
		t.Errorf("Bundle() = %+v", bm)
	}

	m.Description = nil
	if got := m.Bundle().Description; got != "" {
		t.Errorf("Bundle().Description = %q, want empty", got)
	}
}
