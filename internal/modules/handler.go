package modules

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/pkg/auth"
	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
	"github.com/mxn2020/prompt-verse-io/pkg/handlers"
	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
	"github.com/mxn2020/prompt-verse-io/pkg/routes"
)

// Handler provides HTTP endpoints for module library operations.
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
		logger:     logger.With("handler", "modules"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for module endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/modules",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: Spec.List},
			{Method: "GET", Pattern: "/export", Handler: h.Export, OpenAPI: Spec.Export},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: Spec.Find},
			{Method: "GET", Pattern: "/{id}/references", Handler: h.References, OpenAPI: Spec.References},
			{Method: "POST", Pattern: "", Handler: h.Create, OpenAPI: Spec.Create},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: Spec.Search},
			{Method: "POST", Pattern: "/import", Handler: h.Import, OpenAPI: Spec.Import},
			{Method: "POST", Pattern: "/export/archive", Handler: h.Archive, OpenAPI: Spec.Archive},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update, OpenAPI: Spec.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: Spec.Delete},
		},
	}
}

// List returns a paginated list of modules with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
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

// Search accepts a JSON body with pagination and filter criteria and returns matching modules.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
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

// Find returns a single module by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	m, err := h.sys.Find(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, m)
}

// References lists the prompts and modules that include a module.
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	refs, err := h.sys.References(r.Context(), owner, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, refs)
}

// Create processes a JSON body to create a new module.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var cmd CreateCommand
	if err := handlers.DecodeJSON(w, r, 0, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	m, err := h.sys.Create(r.Context(), owner, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, m)
}

// Update processes a JSON body to replace an existing module.
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

	m, err := h.sys.Update(r.Context(), owner, id, cmd)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, m)
}

// Delete removes a module by its UUID path parameter. A module that is still
// included elsewhere responds 409 with the referencing entities.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), owner, id); err != nil {
		h.fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Import reads a YAML or JSON module bundle and upserts it into the library.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	b, err := bundle.Decode(r.Body)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Import(r.Context(), owner, b)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Export downloads the owner's library as a YAML bundle, or JSON with
// ?format=json.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	b, err := h.sys.Export(r.Context(), owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		handlers.RespondJSON(w, http.StatusOK, b)
		return
	}

	w.Header().Set("Content-Type", archiveContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="modules.yaml"`)
	w.WriteHeader(http.StatusOK)
	if err := bundle.Encode(w, b); err != nil {
		h.logger.Error("export encode failed", "error", err)
	}
}

// Archive uploads the owner's library to blob storage.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	result, err := h.sys.Archive(r.Context(), owner)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, result)
}

// ReferencedResponse is the 409 body for writes blocked by references.
type ReferencedResponse struct {
	Error      string     `json:"error"`
	References References `json:"references"`
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var refErr *ReferencedError
	if errors.As(err, &refErr) {
		h.logger.Warn("request rejected", "status", http.StatusConflict, "error", err)
		handlers.RespondJSON(w, http.StatusConflict, ReferencedResponse{
			Error:      err.Error(),
			References: refErr.References,
		})
		return
	}
	handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return auth.RequireOwner(w, r, h.logger)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := h.owner(w, r)
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
