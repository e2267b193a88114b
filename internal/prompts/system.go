package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
)

// System defines the public contract for prompt domain operations.
// Every operation is scoped to the owning user.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		owner uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Prompt], error)

	Find(ctx context.Context, owner, id uuid.UUID) (*Prompt, error)
	Create(ctx context.Context, owner uuid.UUID, cmd CreateCommand) (*Prompt, error)
	Update(ctx context.Context, owner, id uuid.UUID, cmd UpdateCommand) (*Prompt, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error

	Fork(ctx context.Context, owner, id uuid.UUID) (*Prompt, error)
	Star(ctx context.Context, owner, id uuid.UUID) (*Prompt, error)
	Unstar(ctx context.Context, owner, id uuid.UUID) (*Prompt, error)

	References(ctx context.Context, owner, id uuid.UUID) ([]ModuleLink, error)
	RecordUsage(ctx context.Context, owner, id uuid.UUID) error
}
