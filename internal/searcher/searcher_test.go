package searcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/docrag-mcp/internal/reranker"
	"github.com/dshills/docrag-mcp/internal/vectorindex"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// mockEmbedder implements the Embedder interface for testing
type mockEmbedder struct {
	vectors map[string][]float32
	delay   time.Duration // sleeps without honoring ctx
	err     error

	mu      sync.Mutex
	queries []string
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

// mockReranker returns fixed rankings
type mockReranker struct {
	rankings []reranker.Ranking
	degraded bool
	calls    int
	gotTopK  int
}

func (m *mockReranker) Rerank(ctx context.Context, query string, passages []string, topK int) ([]reranker.Ranking, bool) {
	m.calls++
	m.gotTopK = topK
	if m.degraded {
		return reranker.Identity(len(passages), topK), true
	}
	return m.rankings, false
}

func (m *mockReranker) Provider() string { return "mock" }
func (m *mockReranker) Close() error     { return nil }

type staticSource struct {
	idx *vectorindex.Index
	err error
}

func (s staticSource) Get(ctx context.Context) (*vectorindex.Index, error) {
	return s.idx, s.err
}

func testIndex(t *testing.T) staticSource {
	t.Helper()
	docs := []types.CandidateDocument{
		{ID: "a", Text: "open a window from a script"},
		{ID: "b", Text: "button widget reference"},
		{ID: "c", Text: "theme settings for the window"},
		{ID: "d", Text: "slider widget reference"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0.5, 0.5, 0},
		{0, 0, 1},
	}
	idx, err := vectorindex.NewIndex(vectorindex.Metadata{}, docs, vectors)
	require.NoError(t, err)
	return staticSource{idx: idx}
}

func ids(results []types.RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Candidate.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	emb := &mockEmbedder{}
	r := New(testIndex(t), emb, nil, Options{Domain: "test"})

	resp, err := r.Search(context.Background(), "  open window  ", 3, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, ids(resp.Results))
	assert.Equal(t, SearchModeVector, resp.Mode)
	assert.False(t, resp.Degraded)
	emb.mu.Lock()
	assert.Equal(t, []string{"open window"}, emb.queries)
	emb.mu.Unlock()
	for i := 1; i < len(resp.Results); i++ {
		assert.LessOrEqual(t, resp.Results[i-1].Distance, resp.Results[i].Distance)
	}
}

func TestSearchDefaults(t *testing.T) {
	r := New(testIndex(t), &mockEmbedder{}, nil, Options{})

	resp, err := r.Search(context.Background(), "q", 0, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 4, "topK <= 0 uses the default")

	_, err = r.Search(context.Background(), "   ", 5, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSearchEmptyFilterResult(t *testing.T) {
	rr := &mockReranker{}
	r := New(testIndex(t), &mockEmbedder{}, rr, Options{})

	resp, err := r.SearchAndRerank(context.Background(), "q", 5, 2, &vectorindex.Filter{IDPrefix: "zzz"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Zero(t, rr.calls, "reranker is skipped for empty candidates")
}

func TestSearchIndexUnavailable(t *testing.T) {
	src := staticSource{err: &types.IntegrityError{Path: "/idx", Reason: "missing required file index.db"}}
	r := New(src, &mockEmbedder{}, nil, Options{})

	_, err := r.Search(context.Background(), "q", 5, nil)
	assert.ErrorIs(t, err, types.ErrIntegrity)
}

func TestSearchEmbeddingFailure(t *testing.T) {
	emb := &mockEmbedder{err: &types.TransportError{Backend: "mock", Op: "embed", StatusCode: 503}}
	r := New(testIndex(t), emb, nil, Options{})

	_, err := r.Search(context.Background(), "window", 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransport)
}

func TestSearchKeywordFallback(t *testing.T) {
	emb := &mockEmbedder{err: &types.TransportError{Backend: "mock", Op: "embed", StatusCode: 503}}
	core, logs := observer.New(zapcore.WarnLevel)
	r := New(testIndex(t), emb, nil, Options{KeywordFallback: true, Logger: zap.New(core), Domain: "test"})

	resp, err := r.Search(context.Background(), "window widget", 5, nil)
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.Equal(t, SearchModeKeyword, resp.Mode)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(resp.Results))
	assert.Equal(t, 1, logs.FilterMessage("embedding failed, falling back to keyword search").Len())

	resp, err = r.Search(context.Background(), "to a", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Results, "a query with only stopwords yields no keyword hits")
}

func TestSearchTimeoutWithSlowProvider(t *testing.T) {
	emb := &mockEmbedder{delay: 2 * time.Second}

	t.Run("structured error", func(t *testing.T) {
		r := New(testIndex(t), emb, nil, Options{Timeout: 50 * time.Millisecond})

		start := time.Now()
		_, err := r.Search(context.Background(), "window", 5, nil)
		elapsed := time.Since(start)

		require.Error(t, err)
		var te *types.TransportError
		require.True(t, errors.As(err, &te))
		assert.True(t, te.Timeout)
		assert.Less(t, elapsed, time.Second, "retriever must not wait for the provider")
	})

	t.Run("keyword fallback", func(t *testing.T) {
		r := New(testIndex(t), emb, nil, Options{Timeout: 50 * time.Millisecond, KeywordFallback: true})

		start := time.Now()
		resp, err := r.Search(context.Background(), "window", 5, nil)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.True(t, resp.Degraded)
		assert.Equal(t, []string{"a", "c"}, ids(resp.Results))
		assert.Less(t, elapsed, time.Second)
	})
}

func TestSearchAndRerank(t *testing.T) {
	rr := &mockReranker{rankings: []reranker.Ranking{
		{Index: 2, Score: 9.5},
		{Index: 7, Score: 9.0}, // out of range, dropped
		{Index: 0, Score: 3.1},
		{Index: 1, Score: 1.0},
	}}
	r := New(testIndex(t), &mockEmbedder{}, rr, Options{})

	resp, err := r.SearchAndRerank(context.Background(), "q", 4, 2, nil)
	require.NoError(t, err)

	assert.True(t, resp.Reranked)
	assert.False(t, resp.Degraded)
	assert.Equal(t, 2, rr.gotTopK)
	assert.Equal(t, []string{"c", "a"}, ids(resp.Results))
	assert.Equal(t, 9.5, resp.Results[0].Score)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 2, resp.Results[1].Rank)
}

func TestSearchAndRerankFewerThanRequested(t *testing.T) {
	rr := &mockReranker{rankings: []reranker.Ranking{{Index: 3, Score: 1}}}
	r := New(testIndex(t), &mockEmbedder{}, rr, Options{})

	resp, err := r.SearchAndRerank(context.Background(), "q", 4, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(resp.Results), "never padded")
}

func TestSearchAndRerankDegraded(t *testing.T) {
	rr := &mockReranker{degraded: true}
	r := New(testIndex(t), &mockEmbedder{}, rr, Options{})

	resp, err := r.SearchAndRerank(context.Background(), "q", 4, 2, nil)
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.False(t, resp.Reranked)
	assert.Equal(t, []string{"a", "b"}, ids(resp.Results))
	assert.Greater(t, resp.Results[0].Score, 0.0, "index scores are kept")
}

func TestSearchAndRerankWithoutReranker(t *testing.T) {
	r := New(testIndex(t), &mockEmbedder{}, nil, Options{})

	resp, err := r.SearchAndRerank(context.Background(), "q", 4, 2, nil)
	require.NoError(t, err)
	assert.False(t, resp.Reranked)
	assert.Equal(t, []string{"a", "b"}, ids(resp.Results))

	resp, err = r.SearchAndRerank(context.Background(), "q", 3, 0, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3, "unset rerankK keeps topK")
}
