// Package searcher implements the retriever: it embeds a query, fetches the
// nearest passages from a vector index and optionally reranks them.
//
// # Basic Usage
//
//	r := searcher.New(loader, emb, rr, searcher.Options{Domain: "settings"})
//
//	resp, err := r.SearchAndRerank(ctx, "change the theme", 20, 5, nil)
//	for _, result := range resp.Results {
//	    fmt.Printf("[%d] %s (score: %.2f)\n",
//	        result.Rank, result.Candidate.ID, result.Score)
//	}
//
// # Search Modes
//
//   - vector: the query embedding is compared against the index (normal path)
//   - keyword: term overlap scoring over the same corpus, used only when the
//     embedding backend fails and the domain enables keyword fallback
//
// The embedding call is bounded by Options.Timeout even if the backend
// ignores cancellation. Reranker failures never fail a search: the vector
// ordering is kept and Response.Degraded is set.
package searcher
