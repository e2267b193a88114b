package api

import (
	"net/http"

	"github.com/mxn2020/prompt-verse-io/internal/config"
	"github.com/mxn2020/prompt-verse-io/pkg/routes"
)

// groups returns every documented route group served by the API module.
func groups(domain *Domain, runtime *Runtime, cfg *config.Config) []routes.Group {
	return []routes.Group{
		domain.Modules.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
		domain.Compose.Handler().Routes(),
		newStorageHandler(
			runtime.Storage,
			runtime.Logger,
			cfg.Storage.MaxListSize,
		).routes(),
	}
}

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	all := groups(domain, runtime, cfg)
	routes.Register(mux, all...)

	spec, err := specJSON(cfg, all...)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", serveSpec(spec))

	return nil
}
