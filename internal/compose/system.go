package compose

import (
	"context"

	"github.com/google/uuid"
)

// System defines the composition operations exposed over HTTP.
type System interface {
	Handler() *Handler

	Compose(ctx context.Context, owner uuid.UUID, req Request) (*Response, error)
	ComposePrompt(ctx context.Context, owner, promptID uuid.UUID, req PromptRequest) (*Response, error)
	Analyze(ctx context.Context, owner uuid.UUID, template string) (*Analysis, error)
}
