package serp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolName is the function name the model uses to request a search.
const ToolName = "product_search"

// ToolDescription is surfaced to the model alongside the parameter schema.
const ToolDescription = "Search the web for product information. Use google_shopping or marketplace " +
	"for prices and offers, google_images or bing_images for product photos, and google_lens " +
	"for visual matches against a hosted image URL."

// ToolParameters returns the JSON-schema parameter description for the
// search tool definition.
func ToolParameters() map[string]any {
	engines := make([]string, 0, len(Engines()))
	for _, engine := range Engines() {
		engines = append(engines, string(engine))
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"engine": map[string]any{
				"type":        "string",
				"enum":        engines,
				"description": "Search backend to query.",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "Search query. For google_lens pass a hosted image URL.",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": "Optional maximum number of results.",
			},
		},
		"required":             []string{"engine", "query"},
		"additionalProperties": false,
	}
}

// ToolArgs is the decoded argument payload of one search tool call.
type ToolArgs struct {
	Engine Engine `json:"engine"`
	Query  string `json:"query"`
	Count  int    `json:"count,omitempty"`
}

// ParseToolArgs decodes and validates raw tool-call arguments.
func ParseToolArgs(raw string) (ToolArgs, error) {
	var decoded struct {
		Engine string `json:"engine"`
		Query  string `json:"query"`
		Count  int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return ToolArgs{}, fmt.Errorf("decode tool arguments: %w", err)
	}
	engine, err := ParseEngine(decoded.Engine)
	if err != nil {
		return ToolArgs{}, err
	}
	query := strings.TrimSpace(decoded.Query)
	if query == "" {
		return ToolArgs{}, fmt.Errorf("tool call missing query")
	}
	if decoded.Count < 0 {
		decoded.Count = 0
	}
	return ToolArgs{Engine: engine, Query: query, Count: decoded.Count}, nil
}
