// Package scalar serves the Scalar API reference UI for the API module's
// OpenAPI document.
package scalar

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/mxn2020/prompt-verse-io/pkg/module"
)

//go:embed index.html
var staticFS embed.FS

var tmpl = template.Must(template.ParseFS(staticFS, "index.html"))

// NewModule creates a module that serves the API reference at basePath,
// reading the OpenAPI document from specURL.
func NewModule(basePath, specURL string) *module.Module {
	return module.New(basePath, buildRouter(basePath, specURL))
}

func buildRouter(basePath, specURL string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		tmpl.Execute(w, map[string]string{
			"BasePath": basePath,
			"SpecURL":  specURL,
		})
	})

	return mux
}
