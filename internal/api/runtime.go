package api

import (
	"github.com/mxn2020/prompt-verse-io/internal/config"
	"github.com/mxn2020/prompt-verse-io/internal/infrastructure"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Limits     composition.Limits
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Cache:     infra.Cache,
			Tracing:   infra.Tracing,
			Verifier:  infra.Verifier,
		},
		Pagination: cfg.API.Pagination,
		Limits:     cfg.Composition.Limits(),
	}
}
