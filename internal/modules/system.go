package modules

import (
	"context"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
)

// System defines the public contract for module library operations.
// Every operation is scoped to the owner that holds the library.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		owner uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Module], error)

	Find(ctx context.Context, owner, id uuid.UUID) (*Module, error)
	Create(ctx context.Context, owner uuid.UUID, cmd CreateCommand) (*Module, error)
	Update(ctx context.Context, owner, id uuid.UUID, cmd UpdateCommand) (*Module, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
	References(ctx context.Context, owner, id uuid.UUID) (*References, error)

	// Snapshot returns the owner's whole library as a name-keyed registry.
	Snapshot(ctx context.Context, owner uuid.UUID) (*composition.Snapshot, error)
	RecordUsage(ctx context.Context, owner uuid.UUID, ids []uuid.UUID) error

	Import(ctx context.Context, owner uuid.UUID, b *bundle.Bundle) (*ImportResult, error)
	Export(ctx context.Context, owner uuid.UUID) (*bundle.Bundle, error)
	Archive(ctx context.Context, owner uuid.UUID) (*ArchiveResult, error)
}
