// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/mxn2020/prompt-verse-io/internal/config"
	"github.com/mxn2020/prompt-verse-io/internal/infrastructure"
	"github.com/mxn2020/prompt-verse-io/pkg/auth"
	"github.com/mxn2020/prompt-verse-io/pkg/middleware"
	"github.com/mxn2020/prompt-verse-io/pkg/module"
)

// TracerName identifies spans started by the API module's HTTP middleware.
const TracerName = "github.com/mxn2020/prompt-verse-io/internal/api"

// NewModule creates the API module with all domain handlers and middleware.
// The OpenAPI document is served without authentication; every other route
// requires a verified owner.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg, runtime); err != nil {
		return nil, err
	}

	authenticated := auth.Middleware(runtime.Verifier, runtime.Logger)(mux)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/openapi.json" {
			mux.ServeHTTP(w, r)
			return
		}
		authenticated.ServeHTTP(w, r)
	})

	m := module.New(cfg.API.BasePath, http.MaxBytesHandler(handler, cfg.API.MaxBodySizeBytes()))
	m.Use(
		middleware.CORS(&cfg.API.CORS),
		middleware.Recovery(runtime.Logger),
		middleware.Tracing(TracerName),
		middleware.Logger(runtime.Logger),
	)

	return m, nil
}
