package main

import (
	"net/http"

	"github.com/mxn2020/prompt-verse-io/internal/api"
	"github.com/mxn2020/prompt-verse-io/internal/config"
	"github.com/mxn2020/prompt-verse-io/internal/infrastructure"
	"github.com/mxn2020/prompt-verse-io/pkg/handlers"
	"github.com/mxn2020/prompt-verse-io/pkg/middleware"
	"github.com/mxn2020/prompt-verse-io/pkg/module"
	"github.com/mxn2020/prompt-verse-io/web/scalar"
)

// Modules holds the HTTP modules mounted on the root router.
type Modules struct {
	API    *module.Module
	Scalar *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	scalarModule := scalar.NewModule("/scalar", cfg.API.BasePath+"/openapi.json")
	scalarModule.Use(middleware.Logger(infra.Logger))

	return &Modules{
		API:    apiModule,
		Scalar: scalarModule,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
	router.Mount(m.Scalar)
}

// readiness is the body of the /readyz response.
type readiness struct {
	Status     string          `json:"status"`
	Version    string          `json:"version"`
	Subsystems map[string]bool `json:"subsystems"`
}

func buildRouter(infra *infrastructure.Infrastructure, version string) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		body := readiness{
			Status:     "ready",
			Version:    version,
			Subsystems: infra.Lifecycle.Status(),
		}

		if !infra.Lifecycle.Ready() {
			body.Status = "not ready"
			handlers.RespondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		handlers.RespondJSON(w, http.StatusOK, body)
	})

	return router
}
