// Package types provides shared type definitions for the docrag retrieval pipeline.
//
// This package defines the values that flow between the embedder, the vector index,
// the retriever, the context assembler and the API lookup service, plus the error
// taxonomy every component reports through.
//
// # Core Types
//
// CandidateDocument is a passage stored in a vector index at build time:
//
//	doc := types.CandidateDocument{
//	    ID:       "omni.ui-button-01",
//	    Text:     "ui.Button(\"Click\", clicked_fn=on_click)",
//	    Metadata: map[string]any{"title": "Button", "source": "omni.ui"},
//	}
//
// RankedResult pairs a candidate with its score and 1-based rank. Before reranking
// results are ordered ascending by distance; after reranking descending by score.
// Score always follows "higher is better".
//
// RAGContext is the bounded text blob handed to a downstream consumer:
//
//	ctx := types.RAGContext{Text: "...", SourceCount: 3, Truncated: true}
//
// # Results
//
// Every pipeline-level operation reports through Result[T], which serializes as
//
//	{"success": true, "error": null, "result": ...}
//
// A successful empty result and a failure are structurally distinct: check Ok(),
// never the length of the payload.
//
// # Errors
//
// Errors are classified by sentinel so callers can branch with errors.Is:
//
//	ErrNotFound   - identifier absent; recoverable, triggers "did you mean"
//	ErrTransport  - network failure or timeout talking to a backend
//	ErrIntegrity  - persisted index missing, corrupt or failing checksum
//	ErrConfig     - invalid configuration detected at construction
//	ErrInvalidInput - caller supplied an unusable request
//
// The typed errors (NotFoundError, TransportError, IntegrityError, ConfigError)
// carry structured detail and match their sentinel.
package types
