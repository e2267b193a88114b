package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mxn2020/prompt-verse-io/internal/compose"
	"github.com/mxn2020/prompt-verse-io/internal/config"
	"github.com/mxn2020/prompt-verse-io/internal/modules"
	"github.com/mxn2020/prompt-verse-io/internal/prompts"
	"github.com/mxn2020/prompt-verse-io/pkg/openapi"
	"github.com/mxn2020/prompt-verse-io/pkg/routes"
)

// buildSpec documents every route in groups that carries an operation.
// Untagged operations are tagged with their full group prefix.
func buildSpec(cfg *config.Config, groups ...routes.Group) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	if cfg.API.OpenAPI.Description != "" {
		spec.SetDescription(cfg.API.OpenAPI.Description)
	}
	spec.AddServer(cfg.API.BasePath)
	if cfg.Auth.Enabled {
		spec.RequireBearer("bearerAuth", "JWT")
	}

	spec.Components.AddSchemas(modules.Spec.Schemas)
	spec.Components.AddSchemas(prompts.Spec.Schemas)
	spec.Components.AddSchemas(compose.Spec.Schemas)
	spec.Components.AddSchemas(storageSpec.Schemas)

	routes.Walk(func(prefix string, r routes.Route) {
		if r.OpenAPI == nil {
			return
		}
		op := *r.OpenAPI
		if len(op.Tags) == 0 {
			op.Tags = []string{strings.TrimPrefix(prefix, "/")}
		}
		spec.AddOperation(specPath(prefix+r.Pattern), r.Method, &op)
	}, groups...)

	return spec
}

// specPath converts a ServeMux pattern to an OpenAPI path template.
func specPath(pattern string) string {
	return strings.ReplaceAll(pattern, "...}", "}")
}

func specJSON(cfg *config.Config, groups ...routes.Group) ([]byte, error) {
	data, err := openapi.MarshalJSON(buildSpec(cfg, groups...))
	if err != nil {
		return nil, fmt.Errorf("marshal openapi spec: %w", err)
	}
	return data, nil
}

func serveSpec(data []byte) http.HandlerFunc {
	return openapi.ServeSpec(data)
}
