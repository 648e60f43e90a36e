package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docrag-mcp/internal/pipeline"
	"github.com/dshills/docrag-mcp/internal/vectorindex"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleSearchDocs handles the search_docs tool invocation
func (s *Server) handleSearchDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := parseRetrieval(request)
	if err != nil {
		return nil, err
	}
	return resultJSON(s.backend.Search(ctx, req))
}

// handleGetContext handles the get_context tool invocation
func (s *Server) handleGetContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := parseRetrieval(request)
	if err != nil {
		return nil, err
	}

	args, _ := request.Params.Arguments.(map[string]interface{})
	req.Budget = getIntDefault(args, "budget", 0)
	if req.Budget < 0 || req.Budget > maxBudget {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("budget must be between 0 and %d (0 uses the domain default)", maxBudget), map[string]interface{}{
			"param": "budget",
			"value": req.Budget,
		})
	}
	return resultJSON(s.backend.Context(ctx, req))
}

// handleLookupAPI handles the lookup_api tool invocation. A single id yields
// one result object; a comma separated list yields an array in input order.
func (s *Server) handleLookupAPI(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	raw, _ := args["id"].(string)
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}

	results := s.backend.LookupAPIs(ctx, ids)
	if len(results) == 1 {
		return resultJSON(results[0])
	}
	return resultJSON(results)
}

// handleListDomains handles the list_domains tool invocation
func (s *Server) handleListDomains(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return resultJSON(types.OK(s.backend.Domains()))
}

// parseRetrieval extracts the parameters shared by search_docs and get_context
func parseRetrieval(request mcp.CallToolRequest) (pipeline.Request, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return pipeline.Request{}, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return pipeline.Request{}, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	req := pipeline.Request{
		Domain:  getStringDefault(args, "domain", ""),
		Query:   query,
		TopK:    getIntDefault(args, "top_k", 0),
		RerankK: getIntDefault(args, "rerank_k", 0),
	}
	for name, v := range map[string]int{"top_k": req.TopK, "rerank_k": req.RerankK} {
		if v < 0 || v > maxTopK {
			return pipeline.Request{}, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("%s must be between 0 and %d (0 uses the domain default)", name, maxTopK), map[string]interface{}{
				"param": name,
				"value": v,
			})
		}
	}

	filter, err := parseFilter(args)
	if err != nil {
		return pipeline.Request{}, err
	}
	req.Filter = filter
	return req, nil
}

func parseFilter(args map[string]interface{}) (*vectorindex.Filter, error) {
	raw, ok := args["filters"].(map[string]interface{})
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	filter := &vectorindex.Filter{IDPrefix: getStringDefault(raw, "id_prefix", "")}
	if meta, ok := raw["metadata"].(map[string]interface{}); ok {
		filter.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			s, ok := v.(string)
			if !ok {
				return nil, newMCPError(ErrorCodeInvalidParams, "metadata filter values must be strings", map[string]interface{}{
					"param": "filters.metadata." + k,
				})
			}
			filter.Metadata[k] = s
		}
	}
	if filter.IDPrefix == "" && len(filter.Metadata) == 0 {
		return nil, nil
	}
	return filter, nil
}

// Helper functions

// resultJSON renders v as the tool's text content
func resultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode result", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(string(data)), nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
