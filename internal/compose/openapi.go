package compose

import "github.com/mxn2020/prompt-verse-io/pkg/openapi"

type spec struct {
	Compose       *openapi.Operation
	ComposePrompt *openapi.Operation
	Analyze       *openapi.Operation
	Schemas       map[string]*openapi.Schema
}

var stringList = &openapi.Schema{Type: "array", Items: &openapi.Schema{Type: "string"}}

// Spec documents the composition endpoints and schemas.
var Spec = spec{
	Compose: &openapi.Operation{
		Summary:     "Compose template",
		Description: "Expands library modules in the template, substitutes bindings, and reports issues.",
		RequestBody: openapi.RequestBodyJSON("ComposeRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Assembly", "ComposeResponse"),
			400: openapi.ResponseRef("BadRequest"),
			422: openapi.ResponseRef("UnprocessableEntity"),
		},
	},
	ComposePrompt: &openapi.Operation{
		Summary:     "Compose stored prompt",
		Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Prompt UUID")},
		RequestBody: openapi.RequestBodyJSON("ComposePromptRequest", false),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Assembly", "ComposeResponse"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			422: openapi.ResponseRef("UnprocessableEntity"),
		},
	},
	Analyze: &openapi.Operation{
		Summary:     "Analyze template",
		Description: "Splits placeholders into library module references and variables.",
		RequestBody: openapi.RequestBodyJSON("AnalyzeRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Analysis", "Analysis"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	Schemas: map[string]*openapi.Schema{
		"Bindings": {
			Type:        "object",
			Description: "Variable name to literal value",
		},
		"ComposeRequest": {
			Type:     "object",
			Required: []string{"template"},
			Properties: map[string]*openapi.Schema{
				"template": {Type: "string", Example: "{{greeting}} {{topic}}"},
				"bindings": openapi.SchemaRef("Bindings"),
				"required": stringList,
			},
		},
		"ComposePromptRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"bindings": openapi.SchemaRef("Bindings"),
				"required": stringList,
				"record":   {Type: "boolean", Description: "Increment usage counts"},
			},
		},
		"AnalyzeRequest": {
			Type:       "object",
			Required:   []string{"template"},
			Properties: map[string]*openapi.Schema{"template": {Type: "string"}},
		},
		"Analysis": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"placeholders": stringList,
				"modules":      stringList,
				"variables":    stringList,
			},
		},
		"Issue": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"kind": {Type: "string", Enum: []any{
					"unresolved_required_variable",
					"unresolved_optional_variable",
					"unused_declared_variable",
				}},
				"severity":  {Type: "string", Enum: []any{"error", "warning", "info"}},
				"name":      {Type: "string"},
				"module_id": {Type: "string"},
			},
		},
		"ComposeResponse": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"result": {
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"output":           {Type: "string"},
						"unresolved":       stringList,
						"expanded_modules": stringList,
					},
				},
				"issues":    {Type: "array", Items: openapi.SchemaRef("Issue")},
				"blocking":  {Type: "boolean"},
				"cached":    {Type: "boolean"},
				"prompt_id": {Type: "string", Format: "uuid"},
			},
		},
	},
}
