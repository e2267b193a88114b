package main

import (
	"time"

	"github.com/mxn2020/prompt-verse-io/internal/config"
	"github.com/mxn2020/prompt-verse-io/internal/infrastructure"
	"github.com/mxn2020/prompt-verse-io/pkg/formatting"
)

type Server struct {
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra, cfg.Version)
	modules.Mount(router)

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"max_body", formatting.FormatBytes(cfg.API.MaxBodySizeBytes(), 0),
		"max_depth", cfg.Composition.MaxDepth,
		"max_expansions", cfg.Composition.MaxExpansions,
		"max_output", cfg.Composition.MaxOutput,
		"cache", cfg.Cache.Enabled,
		"modules", router.Prefixes(),
	)

	return &Server{
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
