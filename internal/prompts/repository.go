package prompts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/internal/modules"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
	"github.com/mxn2020/prompt-verse-io/pkg/query"
	"github.com/mxn2020/prompt-verse-io/pkg/repository"
)

// ForkSuffix is appended to the title of a forked prompt.
const ForkSuffix = " (fork)"

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a prompt repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "prompts"),
		pagination: pagination,
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
) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("OwnerID", owner).
		WhereSearch(page.Search, "Title", "Description", "Content")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count prompts: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	prompts, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}

	result := pagination.NewPageResult(prompts, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, owner, id uuid.UUID) (*Prompt, error) {
	p, err := r.find(ctx, r.db, owner, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *repo) find(ctx context.Context, q repository.Querier, owner, id uuid.UUID) (Prompt, error) {
	sqlStr, args := query.
		NewBuilder(projection).
		WhereEquals("ID", id).
		WhereEquals("OwnerID", owner).
		BuildSingleOrNull()

	return repository.QueryOne(ctx, q, sqlStr, args, scanPrompt)
}

func (r *repo) Create(ctx context.Context, owner uuid.UUID, cmd CreateCommand) (*Prompt, error) {
	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	fields, err := encodeFields(cmd.Tags, cmd.RequiredVariables, cmd.ModelSettings)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO prompts(
			owner_id, workspace_id, title, description, content, prompt_type,
			visibility, tags, model_settings, required_variables
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + returning

	args := []any{
		owner, cmd.WorkspaceID, cmd.Title, cmd.Description, cmd.Content, cmd.Type,
		cmd.Visibility, fields.tags, fields.settings, fields.required,
	}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		if err := modules.LockLibrary(ctx, tx, owner); err != nil {
			return Prompt{}, err
		}
		p, err := repository.QueryOne(ctx, tx, q, args, scanPrompt)
		if err != nil {
			return Prompt{}, err
		}
		if err := syncModules(ctx, tx, owner, p.ID, p.Content); err != nil {
			return Prompt{}, err
		}
		return p, nil
	})

	if err != nil {
		return nil, mapError(err)
	}

	r.logger.Info("prompt created", "id", p.ID, "title", p.Title, "type", p.Type)
	return &p, nil
}

func (r *repo) Update(ctx context.Context, owner, id uuid.UUID, cmd UpdateCommand) (*Prompt, error) {
	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	fields, err := encodeFields(cmd.Tags, cmd.RequiredVariables, cmd.ModelSettings)
	if err != nil {
		return nil, err
	}

	q := `
		UPDATE prompts
		SET workspace_id = $1, title = $2, description = $3, content = $4,
			prompt_type = $5, visibility = $6, tags = $7, model_settings = $8,
			required_variables = $9, version = version + 1, updated_at = NOW()
		WHERE id = $10 AND owner_id = $11
		RETURNING ` + returning

	args := []any{
		cmd.WorkspaceID, cmd.Title, cmd.Description, cmd.Content, cmd.Type,
		cmd.Visibility, fields.tags, fields.settings, fields.required, id, owner,
	}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		if err := modules.LockLibrary(ctx, tx, owner); err != nil {
			return Prompt{}, err
		}
		p, err := repository.QueryOne(ctx, tx, q, args, scanPrompt)
		if err != nil {
			return Prompt{}, err
		}
		if err := syncModules(ctx, tx, owner, p.ID, p.Content); err != nil {
			return Prompt{}, err
		}
		return p, nil
	})

	if err != nil {
		return nil, mapError(err)
	}

	r.logger.Info("prompt updated", "id", p.ID, "title", p.Title, "version", p.Version)
	return &p, nil
}

func (r *repo) Delete(ctx context.Context, owner, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM prompts WHERE id = $1 AND owner_id = $2",
			id, owner,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return mapError(err)
	}

	r.logger.Info("prompt deleted", "id", id)
	return nil
}

func (r *repo) Fork(ctx context.Context, owner, id uuid.UUID) (*Prompt, error) {
	q := `
		INSERT INTO prompts(
			owner_id, workspace_id, parent_id, title, description, content,
			prompt_type, visibility, tags, model_settings, required_variables
		)
		SELECT owner_id, workspace_id, id, left(title, $3) || $4, description, content,
			prompt_type, 'private', tags, model_settings, required_variables
		FROM prompts
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + returning

	args := []any{id, owner, MaxTitleLength - len(ForkSuffix), ForkSuffix}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		if err := modules.LockLibrary(ctx, tx, owner); err != nil {
			return Prompt{}, err
		}
		p, err := repository.QueryOne(ctx, tx, q, args, scanPrompt)
		if err != nil {
			return Prompt{}, err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prompt_modules(prompt_id, module_id, position)
			SELECT $1, module_id, position FROM prompt_modules WHERE prompt_id = $2`,
			p.ID, id,
		); err != nil {
			return Prompt{}, fmt.Errorf("copy module links: %w", err)
		}

		return p, nil
	})

	if err != nil {
		return nil, mapError(err)
	}

	r.logger.Info("prompt forked", "id", p.ID, "parent_id", id)
	return &p, nil
}

func (r *repo) Star(ctx context.Context, owner, id uuid.UUID) (*Prompt, error) {
	return r.setStarred(ctx, owner, id, true)
}

func (r *repo) Unstar(ctx context.Context, owner, id uuid.UUID) (*Prompt, error) {
	return r.setStarred(ctx, owner, id, false)
}

func (r *repo) setStarred(ctx context.Context, owner, id uuid.UUID, starred bool) (*Prompt, error) {
	q := `
		UPDATE prompts SET starred = $1
		WHERE id = $2 AND owner_id = $3
		RETURNING ` + returning

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, []any{starred, id, owner}, scanPrompt)
	})

	if err != nil {
		return nil, mapError(err)
	}

	r.logger.Info("prompt starred", "id", p.ID, "starred", starred)
	return &p, nil
}

func (r *repo) References(ctx context.Context, owner, id uuid.UUID) ([]ModuleLink, error) {
	if _, err := r.find(ctx, r.db, owner, id); err != nil {
		return nil, mapError(err)
	}

	links, err := repository.QueryMany(ctx, r.db, `
		SELECT m.id, m.name, pm.position
		FROM prompt_modules pm
		JOIN modules m ON m.id = pm.module_id
		WHERE pm.prompt_id = $1
		ORDER BY pm.position, m.name`,
		[]any{id}, scanModuleLink,
	)
	if err != nil {
		return nil, fmt.Errorf("query prompt modules: %w", err)
	}
	return links, nil
}

func (r *repo) RecordUsage(ctx context.Context, owner, id uuid.UUID) error {
	err := repository.ExecExpectOne(
		ctx, r.db,
		"UPDATE prompts SET usage_count = usage_count + 1 WHERE id = $1 AND owner_id = $2",
		id, owner,
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// mapError translates database errors to prompt domain errors. A foreign key
// violation means a linked module was removed before the write committed.
func mapError(err error) error {
	if repository.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: %w", ErrLinkConflict, err)
	}
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

// syncModules rebuilds the module links of a prompt from the library
// modules its content names. The caller holds the owner's library lock.
func syncModules(ctx context.Context, tx *sql.Tx, owner, promptID uuid.UUID, content string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM prompt_modules WHERE prompt_id = $1", promptID); err != nil {
		return fmt.Errorf("clear module links: %w", err)
	}

	names := composition.Scan(content)
	if len(names) == 0 {
		return nil
	}

	type named struct {
		id   uuid.UUID
		name string
	}

	found, err := repository.QueryMany(ctx, tx,
		"SELECT id, name FROM modules WHERE owner_id = $1 AND name = ANY($2::text[])",
		[]any{owner, names},
		func(s repository.Scanner) (named, error) {
			var n named
			err := s.Scan(&n.id, &n.name)
			return n, err
		},
	)
	if err != nil {
		return fmt.Errorf("resolve module names: %w", err)
	}

	for _, m := range found {
		position := strings.Index(content, composition.Placeholder(m.name))
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prompt_modules(prompt_id, module_id, position)
			VALUES ($1, $2, $3)`,
			promptID, m.id, position,
		); err != nil {
			return fmt.Errorf("link module %s: %w", m.name, err)
		}
	}
	return nil
}

type encoded struct {
	tags     []byte
	required []byte
	settings any
}

func encodeFields(tags, required []string, settings *ModelSettings) (encoded, error) {
	var (
		e   encoded
		err error
	)

	if e.tags, err = json.Marshal(tags); err != nil {
		return e, fmt.Errorf("marshal tags: %w", err)
	}
	if e.required, err = json.Marshal(required); err != nil {
		return e, fmt.Errorf("marshal required_variables: %w", err)
	}
	if settings != nil {
		raw, err := json.Marshal(settings)
		if err != nil {
			return e, fmt.Errorf("marshal model_settings: %w", err)
		}
		e.settings = raw
	}
	return e, nil
}
