package prompts

import "github.com/mxn2020/prompt-verse-io/pkg/openapi"

type spec struct {
	List       *openapi.Operation
	Types      *openapi.Operation
	Find       *openapi.Operation
	References *openapi.Operation
	Create     *openapi.Operation
	Update     *openapi.Operation
	Delete     *openapi.Operation
	Search     *openapi.Operation
	Fork       *openapi.Operation
	Star       *openapi.Operation
	Unstar     *openapi.Operation
	Schemas    map[string]*openapi.Schema
}

var promptID = openapi.PathParam("id", "Prompt UUID")

func single(summary string, status int, description string) *openapi.Operation {
	return &openapi.Operation{
		Summary:    summary,
		Parameters: []*openapi.Parameter{promptID},
		Responses: map[int]*openapi.Response{
			status: openapi.ResponseJSON(description, "Prompt"),
			404:    openapi.ResponseRef("NotFound"),
		},
	}
}

// Spec documents the prompt endpoints and schemas.
var Spec = spec{
	List: &openapi.Operation{
		Summary: "List prompts",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Search title, description and content", false),
			openapi.QueryParam("sort", "string", "Sort fields", false),
			openapi.QueryParam("title", "string", "Title contains", false),
			openapi.QueryParam("prompt_type", "string", "Prompt type", false),
			openapi.QueryParam("visibility", "string", "private, team or public", false),
			openapi.QueryParam("tag", "string", "Tag", false),
			openapi.QueryParam("starred", "boolean", "Starred only", false),
			openapi.QueryParam("workspace_id", "string", "Workspace UUID", false),
			openapi.QueryParam("parent_id", "string", "Forked from prompt UUID", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Prompt page", "PromptPage"),
		},
	},
	Types: &openapi.Operation{
		Summary: "List prompt types",
		Responses: map[int]*openapi.Response{
			200: {
				Description: "Prompt types",
				Content: map[string]*openapi.MediaType{
					"application/json": {Schema: &openapi.Schema{Type: "array", Items: &openapi.Schema{Type: "string"}}},
				},
			},
		},
	},
	Find: single("Find prompt", 200, "Prompt"),
	References: &openapi.Operation{
		Summary:     "List prompt modules",
		Description: "Library modules the prompt includes, in order of first occurrence.",
		Parameters:  []*openapi.Parameter{promptID},
		Responses: map[int]*openapi.Response{
			200: {
				Description: "Module links",
				Content: map[string]*openapi.MediaType{
					"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("ModuleLink")}},
				},
			},
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Create: &openapi.Operation{
		Summary:     "Create prompt",
		RequestBody: openapi.RequestBodyJSON("PromptCommand", true),
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Created prompt", "Prompt"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	Update: &openapi.Operation{
		Summary:     "Update prompt",
		Description: "Replaces the prompt and increments its version.",
		Parameters:  []*openapi.Parameter{promptID},
		RequestBody: openapi.RequestBodyJSON("PromptCommand", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Updated prompt", "Prompt"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Delete: &openapi.Operation{
		Summary:    "Delete prompt",
		Parameters: []*openapi.Parameter{promptID},
		Responses: map[int]*openapi.Response{
			204: {Description: "Deleted"},
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Search: &openapi.Operation{
		Summary:     "Search prompts",
		RequestBody: openapi.RequestBodyJSON("PageRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Prompt page", "PromptPage"),
		},
	},
	Fork:   single("Fork prompt", 201, "Forked prompt"),
	Star:   single("Star prompt", 200, "Starred prompt"),
	Unstar: single("Unstar prompt", 200, "Unstarred prompt"),
	Schemas: map[string]*openapi.Schema{
		"ModelSettings": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"model":             {Type: "string"},
				"temperature":       {Type: "number"},
				"max_tokens":        {Type: "integer"},
				"top_p":             {Type: "number"},
				"frequency_penalty": {Type: "number"},
				"presence_penalty":  {Type: "number"},
				"stop":              {Type: "array", Items: &openapi.Schema{Type: "string"}},
			},
		},
		"Prompt": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":                 {Type: "string", Format: "uuid"},
				"owner_id":           {Type: "string", Format: "uuid"},
				"workspace_id":       {Type: "string", Format: "uuid"},
				"parent_id":          {Type: "string", Format: "uuid"},
				"title":              {Type: "string"},
				"description":        {Type: "string"},
				"content":            {Type: "string"},
				"prompt_type":        {Type: "string", Enum: []any{"standard", "structured", "modularized", "advanced"}},
				"visibility":         {Type: "string", Enum: []any{"private", "team", "public"}},
				"tags":               {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"starred":            {Type: "boolean"},
				"usage_count":        {Type: "integer"},
				"model_settings":     openapi.SchemaRef("ModelSettings"),
				"required_variables": {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"version":            {Type: "integer"},
				"created_at":         {Type: "string", Format: "date-time"},
				"updated_at":         {Type: "string", Format: "date-time"},
			},
		},
		"PromptCommand": {
			Type:     "object",
			Required: []string{"title", "content"},
			Properties: map[string]*openapi.Schema{
				"workspace_id":       {Type: "string", Format: "uuid"},
				"title":              {Type: "string"},
				"description":        {Type: "string"},
				"content":            {Type: "string"},
				"prompt_type":        {Type: "string", Enum: []any{"standard", "structured", "modularized", "advanced"}},
				"visibility":         {Type: "string", Enum: []any{"private", "team", "public"}},
				"tags":               {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"model_settings":     openapi.SchemaRef("ModelSettings"),
				"required_variables": {Type: "array", Items: &openapi.Schema{Type: "string"}},
			},
		},
		"PromptPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Prompt")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"ModuleLink": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":       {Type: "string", Format: "uuid"},
				"name":     {Type: "string"},
				"position": {Type: "integer"},
			},
		},
	},
}
