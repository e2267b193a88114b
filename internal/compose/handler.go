package compose

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/internal/prompts"
	"github.com/mxn2020/prompt-verse-io/pkg/auth"
	"github.com/mxn2020/prompt-verse-io/pkg/handlers"
	"github.com/mxn2020/prompt-verse-io/pkg/routes"
)

// Handler provides HTTP endpoints for template composition.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "compose"),
	}
}

// Routes returns the route group definition for composition endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/compose",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Compose, OpenAPI: Spec.Compose},
			{Method: "POST", Pattern: "/analyze", Handler: h.Analyze, OpenAPI: Spec.Analyze},
			{Method: "POST", Pattern: "/prompts/{id}", Handler: h.ComposePrompt, OpenAPI: Spec.ComposePrompt},
		},
	}
}

// Compose assembles an ad-hoc template against the caller's library.
func (h *Handler) Compose(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.RequireOwner(w, r, h.logger)
	if !ok {
		return
	}

	var req Request
	if err := handlers.DecodeJSON(w, r, 0, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	resp, err := h.sys.Compose(r.Context(), owner, req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, resp)
}

// ComposePrompt assembles a stored prompt. An empty body composes with no
// bindings.
func (h *Handler) ComposePrompt(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.RequireOwner(w, r, h.logger)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, prompts.ErrNotFound)
		return
	}

	var req PromptRequest
	if err := handlers.DecodeJSON(w, r, 0, &req); err != nil && !errors.Is(err, handlers.ErrEmptyBody) {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	resp, err := h.sys.ComposePrompt(r.Context(), owner, id, req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, resp)
}

// Analyze reports which placeholders of a template are library modules and
// which are variables.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.RequireOwner(w, r, h.logger)
	if !ok {
		return
	}

	var req AnalyzeRequest
	if err := handlers.DecodeJSON(w, r, 0, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	a, err := h.sys.Analyze(r.Context(), owner, req.Template)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}
