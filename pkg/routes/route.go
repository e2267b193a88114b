package routes

import (
	"net/http"

	"github.com/mxn2020/prompt-verse-io/pkg/openapi"
)

// Route binds an HTTP method and pattern to a handler. OpenAPI, when set,
// documents the route in the generated API spec.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	OpenAPI *openapi.Operation
}
