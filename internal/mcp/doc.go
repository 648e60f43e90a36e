// Package mcp exposes the retrieval pipeline as Model Context Protocol tools.
//
// The server speaks JSON-RPC 2.0 over stdio and registers four tools:
//   - search_docs: ranked passages for a query in one domain
//   - get_context: the same passages assembled into a size-bounded block
//   - lookup_api: documentation for extension@Symbol identifiers
//   - list_domains: configured domains and their defaults
//
// Every tool answers with the JSON rendering of a result envelope:
//
//	{"success": true, "error": null, "result": [...]}
//	{"success": false, "error": "index unavailable: ...", "result": null}
//
// Retrieval failures are reported inside the envelope. Malformed arguments
// (missing query, out of range top_k) are returned as MCP errors instead.
//
// # Tool: search_docs
//
//	{
//	  "name": "search_docs",
//	  "arguments": {
//	    "domain": "ui",
//	    "query": "how do I enable dark mode",
//	    "top_k": 20,
//	    "rerank_k": 5,
//	    "filters": {"metadata": {"source": "theme.md"}}
//	  }
//	}
//
// # Tool: get_context
//
// Accepts the search_docs arguments plus budget, measured in the domain's
// unit (words or bytes). The result carries text, source_count and truncated.
//
// # Tool: lookup_api
//
//	{"name": "lookup_api", "arguments": {"id": "widgets@Button, widgets@Buton"}}
//
// A single id returns one envelope; a comma separated list returns an array
// of envelopes in input order. Misses carry "did you mean" suggestions in the
// error text.
package mcp
