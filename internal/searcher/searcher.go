package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/metrics"
	"github.com/dshills/docrag-mcp/internal/reranker"
	"github.com/dshills/docrag-mcp/internal/vectorindex"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// SearchMode records how results were produced
type SearchMode string

const (
	SearchModeVector  SearchMode = "vector"  // embedding similarity
	SearchModeKeyword SearchMode = "keyword" // term overlap fallback
)

const (
	// DefaultTopK is used when a caller passes topK <= 0
	DefaultTopK = 10

	// DefaultTimeout bounds the query embedding call
	DefaultTimeout = 30 * time.Second
)

// IndexSource supplies the loaded index, typically a *vectorindex.Loader
type IndexSource interface {
	Get(ctx context.Context) (*vectorindex.Index, error)
}

// Options configures a Retriever
type Options struct {
	Domain          string        // metrics and log label
	Timeout         time.Duration // query embedding ceiling
	KeywordFallback bool          // serve keyword results when embedding fails
	Logger          *zap.Logger
}

// Response contains search results and metadata
type Response struct {
	Results  []types.RankedResult
	Mode     SearchMode
	Degraded bool // keyword fallback or reranker failure
	Reranked bool // results are in reranker order
	Duration time.Duration
}

// Retriever coordinates embedding, index lookup and reranking
type Retriever struct {
	index    IndexSource
	embedder embedder.Embedder
	reranker reranker.Reranker // nil disables reranking
	domain   string
	timeout  time.Duration
	fallback bool
	logger   *zap.Logger
}

// New creates a Retriever. rr may be nil.
func New(index IndexSource, emb embedder.Embedder, rr reranker.Reranker, opts Options) *Retriever {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		index:    index,
		embedder: emb,
		reranker: rr,
		domain:   opts.Domain,
		timeout:  timeout,
		fallback: opts.KeywordFallback,
		logger:   logger.With(zap.String("domain", opts.Domain)),
	}
}

// Search returns the topK candidates nearest to query, sorted by ascending
// distance. A zero-candidate outcome is an empty result, not an error.
func (r *Retriever) Search(ctx context.Context, query string, topK int, filter *vectorindex.Filter) (*Response, error) {
	start := time.Now()

	if r.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", types.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	idx, err := r.index.Get(ctx)
	if err != nil {
		return nil, err
	}

	resp := &Response{Mode: SearchModeVector}

	vec, err := r.embedQuery(ctx, query)
	switch {
	case err == nil:
		resp.Results, err = idx.SimilaritySearch(vec, topK, filter)
		if err != nil {
			return nil, fmt.Errorf("similarity search: %w", err)
		}
	case r.fallback && !errors.Is(err, types.ErrInvalidInput):
		r.logger.Warn("embedding failed, falling back to keyword search", zap.Error(err))
		metrics.SearchFallbackTotal.WithLabelValues(r.domain).Inc()

		resp.Mode = SearchModeKeyword
		resp.Degraded = true
		resp.Results, err = idx.KeywordSearch(query, topK, filter)
		if errors.Is(err, types.ErrInvalidInput) {
			resp.Results = []types.RankedResult{}
		} else if err != nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
	default:
		return nil, fmt.Errorf("embed query: %w", err)
	}

	resp.Duration = time.Since(start)
	metrics.SearchDuration.WithLabelValues(r.domain, string(resp.Mode)).Observe(resp.Duration.Seconds())

	r.logger.Debug("search complete",
		zap.String("mode", string(resp.Mode)),
		zap.Int("results", len(resp.Results)),
		zap.Duration("duration", resp.Duration))

	return resp, nil
}

// SearchAndRerank fetches topK candidates and narrows them to rerankK.
// With a reranker the results follow its order and carry its scores; without
// one, or when it fails, the index order is truncated. rerankK <= 0 keeps
// topK. When the reranker returns fewer rankings than rerankK, only those are
// returned.
func (r *Retriever) SearchAndRerank(ctx context.Context, query string, topK, rerankK int, filter *vectorindex.Filter) (*Response, error) {
	start := time.Now()

	resp, err := r.Search(ctx, query, topK, filter)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return resp, nil
	}
	if rerankK <= 0 {
		rerankK = len(resp.Results)
	}

	if r.reranker == nil {
		resp.Results = truncate(resp.Results, rerankK)
		return resp, nil
	}

	texts := make([]string, len(resp.Results))
	for i, res := range resp.Results {
		texts[i] = res.Candidate.Text
	}

	rankings, degraded := r.reranker.Rerank(ctx, query, texts, rerankK)
	if degraded {
		resp.Degraded = true
		resp.Results = truncate(resp.Results, rerankK)
		resp.Duration = time.Since(start)
		return resp, nil
	}

	resp.Results = applyRankings(resp.Results, rankings, rerankK)
	resp.Reranked = true
	resp.Duration = time.Since(start)
	return resp, nil
}

// applyRankings reorders candidates by rankings, skipping out-of-range and
// repeated indices
func applyRankings(candidates []types.RankedResult, rankings []reranker.Ranking, limit int) []types.RankedResult {
	out := make([]types.RankedResult, 0, len(rankings))
	used := make(map[int]bool, len(rankings))
	for _, rk := range rankings {
		if len(out) == limit {
			break
		}
		if rk.Index < 0 || rk.Index >= len(candidates) || used[rk.Index] {
			continue
		}
		used[rk.Index] = true

		res := candidates[rk.Index]
		res.Distance = 0
		res.Score = rk.Score
		res.Rank = len(out) + 1
		out = append(out, res)
	}
	return out
}

func truncate(results []types.RankedResult, n int) []types.RankedResult {
	if n < len(results) {
		return results[:n]
	}
	return results
}

// embedQuery runs the embedding call in its own goroutine so the deadline
// holds even when the provider does not honor ctx
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	done := make(chan result, 1)
	go func() {
		vec, err := r.embedder.EmbedQuery(ctx, query)
		done <- result{vec: vec, err: err}
	}()

	select {
	case res := <-done:
		return res.vec, res.err
	case <-ctx.Done():
		return nil, &types.TransportError{
			Backend: r.embedder.Provider(),
			Op:      "embed",
			Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:     ctx.Err(),
		}
	}
}
