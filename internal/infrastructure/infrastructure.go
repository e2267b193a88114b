// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, cache, tracing,
// token verification) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mxn2020/prompt-verse-io/internal/config"
	"github.com/mxn2020/prompt-verse-io/pkg/auth"
	"github.com/mxn2020/prompt-verse-io/pkg/cache"
	"github.com/mxn2020/prompt-verse-io/pkg/database"
	"github.com/mxn2020/prompt-verse-io/pkg/lifecycle"
	"github.com/mxn2020/prompt-verse-io/pkg/storage"
	"github.com/mxn2020/prompt-verse-io/pkg/tracing"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Cache     cache.System
	Tracing   tracing.System
	Verifier  auth.Verifier
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	verifier, err := auth.New(lc.Context(), &cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Cache:     cache.New(&cfg.Cache, logger),
		Tracing:   tracing.New(&cfg.Tracing, cfg.Version, logger),
		Verifier:  verifier,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Tracing starts first so spans from the other systems' startup are exported.
func (i *Infrastructure) Start() error {
	if err := i.Tracing.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("tracing start failed: %w", err)
	}
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Cache.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("cache start failed: %w", err)
	}
	return nil
}
