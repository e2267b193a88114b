package middleware

import "net/http"

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// System manages an ordered stack of HTTP middleware. The first middleware
// added is the outermost.
type System interface {
	Use(mw ...Middleware)
	Apply(handler http.Handler) http.Handler
}

type mw struct {
	stack []Middleware
}

// New creates an empty middleware System.
func New() System {
	return &mw{
		stack: []Middleware{},
	}
}

func (m *mw) Use(fns ...Middleware) {
	m.stack = append(m.stack, fns...)
}

func (m *mw) Apply(handler http.Handler) http.Handler {
	for i := len(m.stack) - 1; i >= 0; i-- {
		handler = m.stack[i](handler)
	}
	return handler
}
