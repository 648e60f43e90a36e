// Package embedder turns text into embedding vectors through a remote or a
// local HTTP backend.
//
// # Basic Usage
//
//	emb, err := embedder.New(cfg.Embedding, embedder.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vec, err := emb.EmbedQuery(ctx, "how do I open a window")
//
// # Input Types
//
// Backends embed queries and documents differently. EmbedQuery sends
// input_type "query" and EmbedDocuments sends "search_document"; vectors
// built with one must only be compared against vectors built with the other.
//
// # Backends
//
//   - remote: authenticated hosted API, requires an API key
//   - local: self-hosted service at base_url, no authentication
//
// Providers never retry. A failed or timed-out call returns an
// *EmbeddingError wrapping a *types.TransportError; the caller decides
// whether to abort or degrade.
package embedder
