package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/mxn2020/prompt-verse-io/internal/modules"
	"github.com/mxn2020/prompt-verse-io/pkg/auth"
	"github.com/mxn2020/prompt-verse-io/pkg/handlers"
	"github.com/mxn2020/prompt-verse-io/pkg/openapi"
	"github.com/mxn2020/prompt-verse-io/pkg/routes"
	"github.com/mxn2020/prompt-verse-io/pkg/storage"
)

var blobKey = &openapi.Parameter{
	Name:        "key",
	In:          "path",
	Required:    true,
	Description: "Blob key",
	Schema:      &openapi.Schema{Type: "string"},
}

var storageSpec = struct {
	List     *openapi.Operation
	Find     *openapi.Operation
	Download *openapi.Operation
	Schemas  map[string]*openapi.Schema
}{
	List: &openapi.Operation{
		Summary:     "List library archives",
		Description: "Lists the caller's module library archives.",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("prefix", "string", "Key prefix within the caller's archives", false),
			openapi.QueryParam("marker", "string", "Continuation marker", false),
			openapi.QueryParam("max_results", "integer", "Page size", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Archive list", "BlobList"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	Find: &openapi.Operation{
		Summary:    "Find archive metadata",
		Parameters: []*openapi.Parameter{blobKey},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Archive metadata", "BlobMeta"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Download: &openapi.Operation{
		Summary:    "Download archive",
		Parameters: []*openapi.Parameter{blobKey},
		Responses: map[int]*openapi.Response{
			200: {Description: "Archive content"},
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Schemas: map[string]*openapi.Schema{
		"BlobMeta": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"key":            {Type: "string"},
				"content_type":   {Type: "string"},
				"content_length": {Type: "integer"},
				"last_modified":  {Type: "string", Format: "date-time"},
			},
		},
		"BlobList": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"blobs":       {Type: "array", Items: openapi.SchemaRef("BlobMeta")},
				"next_marker": {Type: "string"},
			},
		},
	},
}

// storageHandler exposes an owner's library archives. Keys outside the
// owner's archive prefix are reported as not found.
type storageHandler struct {
	store       storage.System
	logger      *slog.Logger
	maxListSize int32
}

func newStorageHandler(
	store storage.System,
	logger *slog.Logger,
	maxListSize int32,
) *storageHandler {
	return &storageHandler{
		store:       store,
		logger:      logger.With("handler", "storage"),
		maxListSize: maxListSize,
	}
}

func (h *storageHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/storage",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list, OpenAPI: storageSpec.List},
			{Method: "GET", Pattern: "/download/{key...}", Handler: h.download, OpenAPI: storageSpec.Download},
			{Method: "GET", Pattern: "/{key...}", Handler: h.find, OpenAPI: storageSpec.Find},
		},
	}
}

func (h *storageHandler) list(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.RequireOwner(w, r, h.logger)
	if !ok {
		return
	}

	prefix := modules.ArchivePrefix(owner) + r.URL.Query().Get("prefix")
	marker := r.URL.Query().Get("marker")

	maxResults, err := storage.ParseMaxResults(
		r.URL.Query().Get("max_results"),
		h.maxListSize,
	)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			http.StatusBadRequest, err,
		)
		return
	}

	result, err := h.store.List(
		r.Context(),
		prefix,
		marker,
		maxResults,
	)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			http.StatusInternalServerError, err,
		)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *storageHandler) find(w http.ResponseWriter, r *http.Request) {
	key, ok := h.ownedKey(w, r)
	if !ok {
		return
	}

	meta, err := h.store.Find(r.Context(), key)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, meta)
}

func (h *storageHandler) download(w http.ResponseWriter, r *http.Request) {
	key, ok := h.ownedKey(w, r)
	if !ok {
		return
	}

	result, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)

	if result.ContentLength > 0 {
		w.Header().Set(
			"Content-Length",
			strconv.FormatInt(result.ContentLength, 10),
		)
	}
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(key)),
	)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, result.Body)
}

func (h *storageHandler) ownedKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := auth.RequireOwner(w, r, h.logger)
	if !ok {
		return "", false
	}

	key := r.PathValue("key")
	if !strings.HasPrefix(key, modules.ArchivePrefix(owner)) {
		handlers.RespondError(w, h.logger, http.StatusNotFound, storage.ErrNotFound)
		return "", false
	}
	return key, true
}
