package modules

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
	"github.com/mxn2020/prompt-verse-io/pkg/query"
	"github.com/mxn2020/prompt-verse-io/pkg/repository"
	"github.com/mxn2020/prompt-verse-io/pkg/storage"
)

const archiveContentType = "application/yaml"

type repo struct {
	db         *sql.DB
	store      storage.System
	logger     *slog.Logger
	pagination pagination.Config
	limits     composition.Limits
}

// New creates a module repository implementing the System interface.
// limits bound module expansion when library writes are checked.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
	limits composition.Limits,
) System {
	return &repo{
		db:         db,
		store:      store,
		logger:     logger.With("system", "modules"),
		pagination: pagination,
		limits:     limits,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	owner uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Module], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("OwnerID", owner).
		WhereSearch(page.Search, "Name", "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count modules: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanModule)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, owner, id uuid.UUID) (*Module, error) {
	m, err := r.find(ctx, r.db, owner, id)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &m, nil
}

func (r *repo) find(ctx context.Context, q repository.Querier, owner, id uuid.UUID) (Module, error) {
	sqlStr, args := query.
		NewBuilder(projection).
		WhereEquals("ID", id).
		WhereEquals("OwnerID", owner).
		BuildSingleOrNull()

	return repository.QueryOne(ctx, q, sqlStr, args, scanModule)
}

func (r *repo) Create(ctx context.Context, owner uuid.UUID, cmd CreateCommand) (*Module, error) {
	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	variables, tags, err := marshalLists(cmd.Variables, cmd.Tags)
	if err != nil {
		return nil, err
	}

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Module, error) {
		if err := LockLibrary(ctx, tx, owner); err != nil {
			return Module{}, err
		}

		library, err := loadLibrary(ctx, tx, owner)
		if err != nil {
			return Module{}, err
		}
		if nameTaken(library, cmd.Name, uuid.Nil) {
			return Module{}, ErrDuplicate
		}

		candidate := Module{Name: cmd.Name, Content: cmd.Content, Variables: cmd.Variables}
		if err := checkLibrary(append(library, candidate), r.limits); err != nil {
			return Module{}, err
		}

		m, err := repository.QueryOne(ctx, tx, `
			INSERT INTO modules(owner_id, workspace_id, name, description, content, variables, tags, visibility)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+returning,
			[]any{owner, cmd.WorkspaceID, cmd.Name, cmd.Description, cmd.Content, variables, tags, cmd.Visibility},
			scanModule,
		)
		if err != nil {
			return Module{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		if err := syncReferences(ctx, tx, m.ID, m.Content, indexByName(library)); err != nil {
			return Module{}, err
		}
		if err := backfill(ctx, tx, owner, m, library); err != nil {
			return Module{}, err
		}

		return m, nil
	})

	if err != nil {
		return nil, err
	}

	r.logger.Info("module created", "id", m.ID, "name", m.Name)
	return &m, nil
}

func (r *repo) Update(ctx context.Context, owner, id uuid.UUID, cmd UpdateCommand) (*Module, error) {
	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	variables, tags, err := marshalLists(cmd.Variables, cmd.Tags)
	if err != nil {
		return nil, err
	}

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Module, error) {
		if err := LockLibrary(ctx, tx, owner); err != nil {
			return Module{}, err
		}

		library, err := loadLibrary(ctx, tx, owner)
		if err != nil {
			return Module{}, err
		}

		idx := -1
		for i := range library {
			if library[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Module{}, ErrNotFound
		}

		current := library[idx]
		renamed := current.Name != cmd.Name

		if renamed {
			if nameTaken(library, cmd.Name, id) {
				return Module{}, ErrDuplicate
			}
			refs, err := findReferences(ctx, tx, id)
			if err != nil {
				return Module{}, err
			}
			if !refs.Empty() {
				return Module{}, &ReferencedError{Name: current.Name, References: refs}
			}
		}

		library[idx].Name = cmd.Name
		library[idx].Content = cmd.Content
		library[idx].Variables = cmd.Variables
		if err := checkLibrary(library, r.limits); err != nil {
			return Module{}, err
		}

		m, err := repository.QueryOne(ctx, tx, `
			UPDATE modules
			SET workspace_id = $1, name = $2, description = $3, content = $4,
				variables = $5, tags = $6, visibility = $7, updated_at = NOW()
			WHERE id = $8 AND owner_id = $9
			RETURNING `+returning,
			[]any{cmd.WorkspaceID, cmd.Name, cmd.Description, cmd.Content, variables, tags, cmd.Visibility, id, owner},
			scanModule,
		)
		if err != nil {
			return Module{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		if err := syncReferences(ctx, tx, m.ID, m.Content, indexByName(library)); err != nil {
			return Module{}, err
		}
		if renamed {
			if err := backfill(ctx, tx, owner, m, library); err != nil {
				return Module{}, err
			}
		}

		return m, nil
	})

	if err != nil {
		return nil, err
	}

	r.logger.Info("module updated", "id", m.ID, "name", m.Name)
	return &m, nil
}

func (r *repo) Delete(ctx context.Context, owner, id uuid.UUID) error {
	name, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (string, error) {
		if err := LockLibrary(ctx, tx, owner); err != nil {
			return "", err
		}

		m, err := r.find(ctx, tx, owner, id)
		if err != nil {
			return "", repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		refs, err := findReferences(ctx, tx, id)
		if err != nil {
			return "", err
		}
		if !refs.Empty() {
			return "", &ReferencedError{Name: m.Name, References: refs}
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM modules WHERE id = $1 AND owner_id = $2",
			id, owner,
		); err != nil {
			if repository.IsForeignKeyViolation(err) {
				return "", fmt.Errorf("%w: %s", ErrReferenced, m.Name)
			}
			return "", repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		return m.Name, nil
	})

	if err != nil {
		return err
	}

	r.logger.Info("module deleted", "id", id, "name", name)
	return nil
}

func (r *repo) References(ctx context.Context, owner, id uuid.UUID) (*References, error) {
	if _, err := r.find(ctx, r.db, owner, id); err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	refs, err := findReferences(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &refs, nil
}

func (r *repo) Snapshot(ctx context.Context, owner uuid.UUID) (*composition.Snapshot, error) {
	library, err := loadLibrary(ctx, r.db, owner)
	if err != nil {
		return nil, err
	}

	snap, err := newSnapshot(library)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrComposition, err)
	}
	return snap, nil
}

func (r *repo) RecordUsage(ctx context.Context, owner uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	n, err := repository.ExecAffected(ctx, r.db,
		"UPDATE modules SET usage_count = usage_count + 1 WHERE owner_id = $1 AND id = ANY($2::uuid[])",
		owner, keys,
	)
	if err != nil {
		return fmt.Errorf("record module usage: %w", err)
	}

	r.logger.Debug("module usage recorded", "requested", len(ids), "updated", n)
	return nil
}

func (r *repo) Import(ctx context.Context, owner uuid.UUID, b *bundle.Bundle) (*ImportResult, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	result, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (ImportResult, error) {
		result := ImportResult{Created: []string{}, Updated: []string{}}

		if err := LockLibrary(ctx, tx, owner); err != nil {
			return result, err
		}

		library, err := loadLibrary(ctx, tx, owner)
		if err != nil {
			return result, err
		}

		if err := checkLibrary(mergeImport(library, b.Modules), r.limits); err != nil {
			return result, err
		}

		upserted := make([]uuid.UUID, 0, len(b.Modules))
		for _, bm := range b.Modules {
			id, created, err := upsert(ctx, tx, owner, bm)
			if err != nil {
				return result, fmt.Errorf("import module %s: %w", bm.Name, err)
			}
			upserted = append(upserted, id)
			if created {
				result.Created = append(result.Created, bm.Name)
			} else {
				result.Updated = append(result.Updated, bm.Name)
			}
		}

		final, err := loadLibrary(ctx, tx, owner)
		if err != nil {
			return result, err
		}
		ids := indexByName(final)
		byID := make(map[uuid.UUID]Module, len(final))
		for _, m := range final {
			byID[m.ID] = m
		}

		for _, id := range upserted {
			m := byID[id]
			if err := syncReferences(ctx, tx, m.ID, m.Content, ids); err != nil {
				return result, err
			}
		}

		for _, name := range result.Created {
			if err := backfill(ctx, tx, owner, byID[ids[name]], final); err != nil {
				return result, err
			}
		}

		return result, nil
	})

	if err != nil {
		return nil, err
	}

	r.logger.Info("modules imported",
		"owner", owner,
		"created", len(result.Created),
		"updated", len(result.Updated),
	)
	return &result, nil
}

func upsert(ctx context.Context, tx *sql.Tx, owner uuid.UUID, bm bundle.Module) (uuid.UUID, bool, error) {
	var (
		id      uuid.UUID
		created bool
	)

	variables, tags, err := marshalLists(bm.Variables, bm.Tags)
	if err != nil {
		return id, false, err
	}

	var description *string
	if bm.Description != "" {
		description = &bm.Description
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO modules(owner_id, name, description, content, variables, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, name) DO UPDATE SET
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			variables = EXCLUDED.variables,
			tags = EXCLUDED.tags,
			updated_at = NOW()
		RETURNING id, (xmax = 0)`,
		owner, bm.Name, description, bm.Content, variables, tags,
	).Scan(&id, &created)

	return id, created, err
}

func (r *repo) Export(ctx context.Context, owner uuid.UUID) (*bundle.Bundle, error) {
	library, err := loadLibrary(ctx, r.db, owner)
	if err != nil {
		return nil, err
	}

	mods := make([]bundle.Module, len(library))
	for i, m := range library {
		mods[i] = m.Bundle()
	}
	return bundle.New(mods...), nil
}

func (r *repo) Archive(ctx context.Context, owner uuid.UUID) (*ArchiveResult, error) {
	b, err := r.Export(ctx, owner)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := bundle.Encode(&buf, b); err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}

	result := &ArchiveResult{
		Key:     ArchiveKey(owner, time.Now()),
		Modules: len(b.Modules),
		Size:    int64(buf.Len()),
	}

	if err := r.store.Upload(ctx, result.Key, &buf, archiveContentType); err != nil {
		return nil, fmt.Errorf("upload archive: %w", err)
	}

	r.logger.Info("module library archived",
		"key", result.Key,
		"modules", result.Modules,
		"size", result.Size,
	)
	return result, nil
}

// ArchivePrefix is the storage prefix holding an owner's library archives.
func ArchivePrefix(owner uuid.UUID) string {
	return "modules/" + owner.String() + "/"
}

// ArchiveKey builds the storage key for an archive taken at t.
func ArchiveKey(owner uuid.UUID, t time.Time) string {
	return ArchivePrefix(owner) + t.UTC().Format("20060102T150405Z") + ".yaml"
}

// Bundle converts a stored module into its portable form.
func (m Module) Bundle() bundle.Module {
	bm := bundle.Module{
		Name:      m.Name,
		Content:   m.Content,
		Variables: m.Variables,
		Tags:      m.Tags,
	}
	if m.Description != nil {
		bm.Description = *m.Description
	}
	return bm
}

func marshalLists(variables, tags []string) ([]byte, []byte, error) {
	if variables == nil {
		variables = []string{}
	}
	if tags == nil {
		tags = []string{}
	}

	v, err := json.Marshal(variables)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal variables: %w", err)
	}
	t, err := json.Marshal(tags)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tags: %w", err)
	}
	return v, t, nil
}
