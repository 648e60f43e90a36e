package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Parameter bounds shared by the retrieval tools
const (
	maxTopK   = 100
	maxBudget = 100000
)

func retrievalProperties() map[string]interface{} {
	return map[string]interface{}{
		"domain": map[string]interface{}{
			"type":        "string",
			"description": "Knowledge domain to search (see list_domains). May be omitted when only one domain is configured",
		},
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Natural language query",
		},
		"top_k": map[string]interface{}{
			"type":        "integer",
			"description": "Number of candidates fetched from the index (0-100, 0 uses the domain setting)",
			"minimum":     0,
			"maximum":     maxTopK,
		},
		"rerank_k": map[string]interface{}{
			"type":        "integer",
			"description": "Number of candidates kept after reranking (default: domain setting)",
			"minimum":     0,
			"maximum":     maxTopK,
		},
		"filters": map[string]interface{}{
			"type":        "object",
			"description": "Optional filters applied before ranking",
			"properties": map[string]interface{}{
				"id_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Only documents whose id starts with this prefix",
				},
				"metadata": map[string]interface{}{
					"type":                 "object",
					"description":          "Exact metadata matches, e.g. {\"source\": \"theme.md\"}",
					"additionalProperties": map[string]interface{}{"type": "string"},
				},
			},
		},
	}
}

// searchDocsTool returns the tool definition for search_docs
func searchDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_docs",
		Description: "Search a documentation domain and return ranked passages",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: retrievalProperties(),
			Required:   []string{"query"},
		},
	}
}

// getContextTool returns the tool definition for get_context
func getContextTool() mcp.Tool {
	props := retrievalProperties()
	props["budget"] = map[string]interface{}{
		"type":        "integer",
		"description": "Maximum context size in the domain's budget unit (words or bytes)",
		"minimum":     0,
		"maximum":     maxBudget,
	}
	return mcp.Tool{
		Name:        "get_context",
		Description: "Retrieve passages for a query and assemble them into a size-bounded context block",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"query"},
		},
	}
}

// lookupAPITool returns the tool definition for lookup_api
func lookupAPITool() mcp.Tool {
	return mcp.Tool{
		Name:        "lookup_api",
		Description: "Look up API documentation by extension@Symbol identifier, with suggestions for near misses",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Identifier such as 'widgets@Button' or 'widgets@Button.Click'. Separate several with commas",
				},
			},
			Required: []string{"id"},
		},
	}
}

// listDomainsTool returns the tool definition for list_domains
func listDomainsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_domains",
		Description: "List the configured documentation domains and their defaults",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
