package openapi

import "maps"

// NewComponents creates Components with shared schemas and error responses.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: name,-created_at"},
				},
			},
			"Error": {
				Type: "object",
				Properties: map[string]*Schema{
					"error": {Type: "string", Description: "Error message"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":          errorResponse("Invalid request"),
			"Unauthorized":        errorResponse("Missing or invalid bearer token"),
			"NotFound":            errorResponse("Resource not found"),
			"Conflict":            errorResponse("Resource conflict (duplicate name or still referenced)"),
			"UnprocessableEntity": errorResponse("Composition failed (cycle, missing module, or depth exceeded)"),
		},
	}
}

func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Content: map[string]*MediaType{
			"application/json": {Schema: SchemaRef("Error")},
		},
	}
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
