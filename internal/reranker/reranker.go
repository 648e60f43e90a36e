// Package reranker reorders candidate passages by relevance to a query using a
// remote or local cross-encoder service.
//
// Reranking is an optimization. Rerank never fails: on any backend problem it
// logs a warning and returns the identity ordering truncated to topK, so the
// result always has the same shape.
package reranker

import (
	"context"
	"sort"
)

// Ranking points back into the passages slice given to Rerank
type Ranking struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Reranker reorders passages by relevance
type Reranker interface {
	// Rerank returns at most topK rankings sorted by descending score.
	// topK <= 0 keeps every passage. degraded reports that the backend
	// failed and the identity ordering was returned instead.
	Rerank(ctx context.Context, query string, passages []string, topK int) (rankings []Ranking, degraded bool)

	// Provider returns the backend name
	Provider() string

	// Close releases any resources held by the reranker
	Close() error
}

// Identity returns [{0},{1},...] truncated to topK
func Identity(n, topK int) []Ranking {
	n = limit(n, topK)
	out := make([]Ranking, n)
	for i := range out {
		out[i] = Ranking{Index: i}
	}
	return out
}

func limit(n, topK int) int {
	if topK > 0 && topK < n {
		return topK
	}
	return n
}

// normalize drops out-of-range and duplicate indices, sorts by descending
// score and truncates. Equal scores keep backend order.
func normalize(rankings []Ranking, n, topK int) []Ranking {
	seen := make(map[int]bool, len(rankings))
	out := make([]Ranking, 0, len(rankings))
	for _, r := range rankings {
		if r.Index < 0 || r.Index >= n || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out[:limit(len(out), topK)]
}
