package modules

import "github.com/mxn2020/prompt-verse-io/pkg/openapi"

type spec struct {
	List       *openapi.Operation
	Find       *openapi.Operation
	References *openapi.Operation
	Create     *openapi.Operation
	Update     *openapi.Operation
	Delete     *openapi.Operation
	Search     *openapi.Operation
	Import     *openapi.Operation
	Export     *openapi.Operation
	Archive    *openapi.Operation
	Schemas    map[string]*openapi.Schema
}

var moduleID = openapi.PathParam("id", "Module UUID")

// Spec documents the module endpoints and schemas.
var Spec = spec{
	List: &openapi.Operation{
		Summary:     "List modules",
		Description: "Returns a page of the caller's modules.",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Search name and description", false),
			openapi.QueryParam("sort", "string", "Sort fields", false),
			openapi.QueryParam("name", "string", "Name contains", false),
			openapi.QueryParam("visibility", "string", "private, team or public", false),
			openapi.QueryParam("tag", "string", "Tag", false),
			openapi.QueryParam("workspace_id", "string", "Workspace UUID", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Module page", "ModulePage"),
		},
	},
	Find: &openapi.Operation{
		Summary:    "Find module",
		Parameters: []*openapi.Parameter{moduleID},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Module", "Module"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	References: &openapi.Operation{
		Summary:     "List module references",
		Description: "Prompts and modules whose content includes this module.",
		Parameters:  []*openapi.Parameter{moduleID},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("References", "ModuleReferences"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Create: &openapi.Operation{
		Summary:     "Create module",
		RequestBody: openapi.RequestBodyJSON("ModuleCommand", true),
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Created module", "Module"),
			400: openapi.ResponseRef("BadRequest"),
			409: openapi.ResponseRef("Conflict"),
			422: openapi.ResponseRef("UnprocessableEntity"),
		},
	},
	Update: &openapi.Operation{
		Summary:     "Update module",
		Parameters:  []*openapi.Parameter{moduleID},
		RequestBody: openapi.RequestBodyJSON("ModuleCommand", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Updated module", "Module"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			409: openapi.ResponseRef("Conflict"),
			422: openapi.ResponseRef("UnprocessableEntity"),
		},
	},
	Delete: &openapi.Operation{
		Summary:    "Delete module",
		Parameters: []*openapi.Parameter{moduleID},
		Responses: map[int]*openapi.Response{
			204: {Description: "Deleted"},
			404: openapi.ResponseRef("NotFound"),
			409: openapi.ResponseRef("Conflict"),
		},
	},
	Search: &openapi.Operation{
		Summary:     "Search modules",
		RequestBody: openapi.RequestBodyJSON("PageRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Module page", "ModulePage"),
		},
	},
	Import: &openapi.Operation{
		Summary:     "Import module bundle",
		Description: "Accepts a YAML or JSON bundle and upserts modules by name.",
		RequestBody: &openapi.RequestBody{
			Required: true,
			Content: map[string]*openapi.MediaType{
				"application/yaml": {Schema: openapi.SchemaRef("Bundle")},
				"application/json": {Schema: openapi.SchemaRef("Bundle")},
			},
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Import result", "ImportResult"),
			400: openapi.ResponseRef("BadRequest"),
			422: openapi.ResponseRef("UnprocessableEntity"),
		},
	},
	Export: &openapi.Operation{
		Summary: "Export module library",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("format", "string", "yaml (default) or json", false),
		},
		Responses: map[int]*openapi.Response{
			200: {
				Description: "Module bundle",
				Content: map[string]*openapi.MediaType{
					"application/yaml": {Schema: openapi.SchemaRef("Bundle")},
					"application/json": {Schema: openapi.SchemaRef("Bundle")},
				},
			},
		},
	},
	Archive: &openapi.Operation{
		Summary:     "Archive module library",
		Description: "Uploads the YAML export to blob storage.",
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Archive", "ArchiveResult"),
		},
	},
	Schemas: map[string]*openapi.Schema{
		"Module": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":           {Type: "string", Format: "uuid"},
				"owner_id":     {Type: "string", Format: "uuid"},
				"workspace_id": {Type: "string", Format: "uuid"},
				"name":         {Type: "string", Pattern: `^[A-Za-z0-9_]+$`},
				"description":  {Type: "string"},
				"content":      {Type: "string"},
				"variables":    {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"tags":         {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"visibility":   {Type: "string", Enum: []any{"private", "team", "public"}},
				"usage_count":  {Type: "integer"},
				"created_at":   {Type: "string", Format: "date-time"},
				"updated_at":   {Type: "string", Format: "date-time"},
			},
		},
		"ModuleCommand": {
			Type:     "object",
			Required: []string{"name", "content"},
			Properties: map[string]*openapi.Schema{
				"workspace_id": {Type: "string", Format: "uuid"},
				"name":         {Type: "string", Pattern: `^[A-Za-z0-9_]+$`},
				"description":  {Type: "string"},
				"content":      {Type: "string"},
				"variables":    {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"tags":         {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"visibility":   {Type: "string", Enum: []any{"private", "team", "public"}},
			},
		},
		"ModulePage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Module")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"ModuleRef": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":   {Type: "string", Format: "uuid"},
				"name": {Type: "string"},
			},
		},
		"ModuleReferences": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"prompts": {Type: "array", Items: openapi.SchemaRef("ModuleRef")},
				"modules": {Type: "array", Items: openapi.SchemaRef("ModuleRef")},
			},
		},
		"Bundle": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"version": {Type: "integer", Example: 1},
				"modules": {Type: "array", Items: &openapi.Schema{
					Type:     "object",
					Required: []string{"name", "content"},
					Properties: map[string]*openapi.Schema{
						"name":        {Type: "string"},
						"description": {Type: "string"},
						"content":     {Type: "string"},
						"variables":   {Type: "array", Items: &openapi.Schema{Type: "string"}},
						"tags":        {Type: "array", Items: &openapi.Schema{Type: "string"}},
					},
				}},
			},
		},
		"ImportResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"created": {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"updated": {Type: "array", Items: &openapi.Schema{Type: "string"}},
			},
		},
		"ArchiveResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"key":     {Type: "string"},
				"modules": {Type: "integer"},
				"size":    {Type: "integer"},
			},
		},
	},
}
