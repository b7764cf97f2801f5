package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
type ExtractionSchema struct {
	Name        string
	Description string
	Fields      []SchemaField
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint shown to the model
	Description string
	Required    bool
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\nReturn ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = `"string"`
		}
		sb.WriteString(fmt.Sprintf("  %q: %s", field.Name, typeHint))
		if field.Required {
			sb.WriteString(" (required)")
		}
		if field.Description != "" {
			sb.WriteString(" // " + field.Description)
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Use null for anything the text does not state; never guess.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// ProjectDetailsSchema returns the extraction schema for staffing requests.
func ProjectDetailsSchema(description string) ExtractionSchema {
	return ExtractionSchema{
		Name:        "ProjectDetails",
		Description: description,
		Fields: []SchemaField{
			{Name: "name", Type: `"string" | null`, Description: "project name"},
			{Name: "duration_months", Type: "integer | null", Description: "project length in months"},
			{Name: "starting_from", Type: `"string" | null`, Description: "start month or date as written"},
			{Name: "skills_required", Type: `["string"] | null`, Description: "most critical first"},
			{
				Name:        "resources_required",
				Type:        `[{"resource_type": "string", "resource_count": integer, "required_allocation_percentage": integer | null}] | null`,
				Description: "one entry per designation",
			},
		},
	}
}
