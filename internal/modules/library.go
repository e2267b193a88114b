package modules

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
	"github.com/mxn2020/prompt-verse-io/pkg/query"
	"github.com/mxn2020/prompt-verse-io/pkg/repository"
)

// Composition converts a stored module into its composition form. The id is
// the module's UUID string so expanded modules can be traced back to rows.
func (m Module) Composition() composition.Module {
	return composition.Module{
		ID:                m.ID.String(),
		Name:              m.Name,
		Content:           m.Content,
		DeclaredVariables: m.Variables,
	}
}

// LockLibrary serializes writes that read or link an owner's module library
// until the surrounding transaction ends. Module writes and prompt writes
// that rebuild module links both take it.
func LockLibrary(ctx context.Context, tx repository.Executor, owner uuid.UUID) error {
	return repository.Lock(ctx, tx, "modules:"+owner.String())
}

func loadLibrary(ctx context.Context, q repository.Querier, owner uuid.UUID) ([]Module, error) {
	sqlStr, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("OwnerID", owner).
		Build()

	library, err := repository.QueryMany(ctx, q, sqlStr, args, scanModule)
	if err != nil {
		return nil, fmt.Errorf("load module library: %w", err)
	}
	return library, nil
}

// newSnapshot keys library by name. Modules without an ID (not yet inserted)
// fall back to their name as composition id.
func newSnapshot(library []Module) (*composition.Snapshot, error) {
	mods := make([]composition.Module, len(library))
	for i, m := range library {
		mods[i] = m.Composition()
		if m.ID == uuid.Nil {
			mods[i].ID = ""
		}
	}
	return composition.NewSnapshot(composition.KeyByName, mods...)
}

// checkLibrary verifies every module of library expands without a cycle and
// within limits.
func checkLibrary(library []Module, limits composition.Limits) error {
	snap, err := newSnapshot(library)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrComposition, err)
	}
	if err := snap.Check(limits); err != nil {
		return fmt.Errorf("%w: %w", ErrComposition, err)
	}
	return nil
}

// mergeImport returns library as it reads after importing incoming: modules
// with a matching name take the incoming content, the rest are appended.
func mergeImport(library []Module, incoming []bundle.Module) []Module {
	positions := make(map[string]int, len(library))
	for i, m := range library {
		positions[m.Name] = i
	}

	merged := append([]Module(nil), library...)
	for _, bm := range incoming {
		if i, ok := positions[bm.Name]; ok {
			merged[i].Content = bm.Content
			merged[i].Variables = bm.Variables
			continue
		}
		positions[bm.Name] = len(merged)
		merged = append(merged, Module{Name: bm.Name, Content: bm.Content, Variables: bm.Variables})
	}
	return merged
}

func indexByName(library []Module) map[string]uuid.UUID {
	ids := make(map[string]uuid.UUID, len(library))
	for _, m := range library {
		ids[m.Name] = m.ID
	}
	return ids
}

func nameTaken(library []Module, name string, except uuid.UUID) bool {
	for _, m := range library {
		if m.Name == name && m.ID != except {
			return true
		}
	}
	return false
}

// syncReferences replaces the outgoing reference rows of module id with the
// library modules named in content.
func syncReferences(ctx context.Context, tx *sql.Tx, id uuid.UUID, content string, ids map[string]uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM module_references WHERE module_id = $1", id); err != nil {
		return fmt.Errorf("clear module references: %w", err)
	}

	for _, name := range composition.Scan(content) {
		ref, ok := ids[name]
		if !ok || ref == id {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO module_references(module_id, referenced_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			id, ref,
		); err != nil {
			return fmt.Errorf("insert module reference %s: %w", name, err)
		}
	}
	return nil
}

// backfill links modules and prompts that already mention m by name. It runs
// when a name first appears in the library, on create, import or rename.
func backfill(ctx context.Context, tx *sql.Tx, owner uuid.UUID, m Module, library []Module) error {
	placeholder := composition.Placeholder(m.Name)

	for _, other := range library {
		if other.ID == m.ID || !strings.Contains(other.Content, placeholder) {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO module_references(module_id, referenced_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			other.ID, m.ID,
		); err != nil {
			return fmt.Errorf("backfill module reference from %s: %w", other.Name, err)
		}
	}

	type mention struct {
		id      uuid.UUID
		content string
	}

	mentions, err := repository.QueryMany(ctx, tx,
		"SELECT id, content FROM prompts WHERE owner_id = $1 AND strpos(content, $2) > 0",
		[]any{owner, placeholder},
		func(s repository.Scanner) (mention, error) {
			var p mention
			err := s.Scan(&p.id, &p.content)
			return p, err
		},
	)
	if err != nil {
		return fmt.Errorf("find prompts mentioning %s: %w", m.Name, err)
	}

	for _, p := range mentions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prompt_modules(prompt_id, module_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (prompt_id, module_id) DO UPDATE SET position = EXCLUDED.position`,
			p.id, m.ID, strings.Index(p.content, placeholder),
		); err != nil {
			return fmt.Errorf("backfill prompt link %s: %w", p.id, err)
		}
	}

	return nil
}

func scanRef(s repository.Scanner) (Ref, error) {
	var r Ref
	err := s.Scan(&r.ID, &r.Name)
	return r, err
}

// findReferences lists the prompts and modules that include module id.
func findReferences(ctx context.Context, q repository.Querier, id uuid.UUID) (References, error) {
	var refs References
	var err error

	refs.Modules, err = repository.QueryMany(ctx, q, `
		SELECT m.id, m.name
		FROM module_references r
		JOIN modules m ON m.id = r.module_id
		WHERE r.referenced_id = $1
		ORDER BY m.name`,
		[]any{id}, scanRef,
	)
	if err != nil {
		return refs, fmt.Errorf("query referencing modules: %w", err)
	}

	refs.Prompts, err = repository.QueryMany(ctx, q, `
		SELECT p.id, p.title
		FROM prompt_modules pm
		JOIN prompts p ON p.id = pm.prompt_id
		WHERE pm.module_id = $1
		ORDER BY p.title`,
		[]any{id}, scanRef,
	)
	if err != nil {
		return refs, fmt.Errorf("query referencing prompts: %w", err)
	}

	return refs, nil
}
