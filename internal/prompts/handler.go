package prompts

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/pkg/auth"
	"github.com/mxn2020/prompt-verse-io/pkg/handlers"
	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
	"github.com/mxn2020/prompt-verse-io/pkg/routes"
)

// Handler provides HTTP endpoints for prompt operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for prompt endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/prompts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: Spec.List},
			{Method: "GET", Pattern: "/types", Handler: h.Types, OpenAPI: Spec.Types},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: Spec.Find},
			{Method: "GET", Pattern: "/{id}/modules", Handler: h.References, OpenAPI: Spec.References},
			{Method: "POST", Pattern: "", Handler: h.Create, OpenAPI: Spec.Create},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update, OpenAPI: Spec.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: Spec.Delete},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: Spec.Search},
			{Method: "POST", Pattern: "/{id}/fork", Handler: h.Fork, OpenAPI: Spec.Fork},
			{Method: "POST", Pattern: "/{id}/star", Handler: h.Star, OpenAPI: Spec.Star},
			{Method: "POST", Pattern: "/{id}/unstar", Handler: h.Unstar, OpenAPI: Spec.Unstar},
		},
	}
}

// List returns a paginated list of prompts with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.RequireOwner(w, r, h.logger)
	if !ok {
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), owner, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Types returns the list of valid prompt types.
func (h *Handler) Types(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, Types())
}

// Find returns a single prompt by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	prompt, err := h.sys.Find(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, prompt)
}

// References lists the library modules a prompt includes, in position order.
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	links, err := h.sys.References(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, links)
}

// Create processes a JSON body to create a new prompt.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.RequireOwner(w, r, h.logger)
	if !ok {
		return
	}

	var cmd CreateCommand
	if err := handlers.DecodeJSON(w, r, 0, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	prompt, err := h.sys.Create(r.Context(), owner, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, prompt)
}

// Update processes a JSON body to replace an existing prompt.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var cmd UpdateCommand
	if err := handlers.DecodeJSON(w, r, 0, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	prompt, err := h.sys.Update(r.Context(), owner, id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, prompt)
}

// Delete removes a prompt by its UUID path parameter.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), owner, id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching prompts.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.RequireOwner(w, r, h.logger)
	if !ok {
		return
	}

	var req SearchRequest
	if err := handlers.DecodeJSON(w, r, 0, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), owner, req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Fork copies a prompt into a new private prompt whose parent is the source.
func (h *Handler) Fork(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	prompt, err := h.sys.Fork(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, prompt)
}

// Star marks a prompt as starred.
func (h *Handler) Star(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	prompt, err := h.sys.Star(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, prompt)
}

// Unstar clears the starred flag on a prompt.
func (h *Handler) Unstar(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	prompt, err := h.sys.Unstar(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, prompt)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := auth.RequireOwner(w, r, h.logger)
	if !ok {
		return owner, uuid.Nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return owner, uuid.Nil, false
	}
	return owner, id, true
}
