package openapi

import (
	"encoding/json"
	"net/http"
)

// Spec represents an OpenAPI 3.1 specification document.
type Spec struct {
	OpenAPI    string                `json:"openapi"`
	Info       *Info                 `json:"info"`
	Servers    []*Server             `json:"servers,omitempty"`
	Paths      map[string]*PathItem  `json:"paths"`
	Components *Components           `json:"components,omitempty"`
	Security   []SecurityRequirement `json:"security,omitempty"`
}

// NewSpec creates a Spec with the given title, version, and default components.
func NewSpec(title, version string) *Spec {
	return &Spec{
		OpenAPI: "3.1.0",
		Info: &Info{
			Title:   title,
			Version: version,
		},
		Components: NewComponents(),
		Paths:      make(map[string]*PathItem),
	}
}

// AddServer appends a server URL to the spec.
func (s *Spec) AddServer(url string) {
	s.Servers = append(s.Servers, &Server{URL: url})
}

// SetDescription sets the API description in the info object.
func (s *Spec) SetDescription(desc string) {
	s.Info.Description = desc
}

// RequireBearer registers a bearer token scheme under name and requires it
// for every operation that does not override security.
func (s *Spec) RequireBearer(name, format string) {
	if s.Components.SecuritySchemes == nil {
		s.Components.SecuritySchemes = make(map[string]*SecurityScheme)
	}
	s.Components.SecuritySchemes[name] = &SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: format,
	}
	s.Security = append(s.Security, SecurityRequirement{name: {}})
}

// MarshalJSON serializes the spec to indented JSON bytes.
func MarshalJSON(spec *Spec) ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// AddOperation documents method on path, creating the path item as needed.
// Unsupported methods are ignored.
func (s *Spec) AddOperation(path, method string, op *Operation) {
	item, ok := s.Paths[path]
	if !ok {
		item = &PathItem{}
		s.Paths[path] = item
	}

	switch method {
	case http.MethodGet:
		item.Get = op
	case http.MethodPost:
		item.Post = op
	case http.MethodPut:
		item.Put = op
	case http.MethodDelete:
		item.Delete = op
	}
}

// ServeSpec returns a handler that serves pre-serialized JSON spec bytes.
func ServeSpec(specBytes []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(specBytes)
	}
}
