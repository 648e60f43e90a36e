package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/docrag-mcp/internal/vectorindex"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// mockEmbedder maps each text to a vector derived from its length and first byte
type mockEmbedder struct {
	mu       sync.Mutex
	batches  []int
	inFlight atomic.Int32
	peak     atomic.Int32
	err      error
	block    chan struct{}
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.batches = append(m.batches, len(texts))
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), float32(t[0]), 1}
	}
	return out, nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := m.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func writeCorpus(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestReadCorpus(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a","text":"Alpha text","metadata":{"title":"Alpha"}}`,
		``,
		`{"text":"No id here"}`,
		`{"id":"empty","text":"   "}`,
	}, "\n")

	docs, skipped, err := ReadCorpus(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "Alpha", docs[0].MetadataString("title"))
	assert.Len(t, docs[1].ID, 36, "missing ids get a uuid")
}

func TestReadCorpusErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"invalid json", "{\"id\":\"a\",\"text\":\"x\"}\n{not json", "line 2"},
		{"duplicate id", "{\"id\":\"a\",\"text\":\"x\"}\n{\"id\":\"a\",\"text\":\"y\"}", "duplicate id \"a\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadCorpus(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuild(t *testing.T) {
	corpus := writeCorpus(t,
		`{"id":"theme","text":"Themes control colors.","metadata":{"title":"Theme","source":"theme.md"}}`,
		`{"id":"button","text":"Buttons trigger actions.","metadata":{"title":"Button"}}`,
		`{"id":"long","text":"`+strings.Repeat("a", 40)+`\n\n`+strings.Repeat("b", 40)+`"}`,
	)
	out := filepath.Join(t.TempDir(), "index")

	emb := &mockEmbedder{}
	idx := New(emb, &Config{Workers: 2, BatchSize: 2, MaxTokens: 12}, zaptest.NewLogger(t))

	stats, err := idx.Build(context.Background(), corpus, out)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.DocumentsRead)
	assert.Equal(t, 4, stats.PassagesCreated)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 3, stats.Dimension)

	loaded, err := vectorindex.Load(context.Background(), out, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())
	assert.Equal(t, "mock-v1", loaded.Metadata().Model)
	assert.Equal(t, vectorindex.MetricL2, loaded.Metadata().Metric)

	results, err := loaded.SimilaritySearch([]float32{22, 'T', 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "theme", results[0].Candidate.ID)
	assert.Equal(t, "theme.md", results[0].Candidate.MetadataString("source"))

	chunks, err := loaded.SimilaritySearch([]float32{40, 'b', 1}, 10, &vectorindex.Filter{IDPrefix: "long#"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "long#1", chunks[0].Candidate.ID)
	assert.Equal(t, "long", chunks[0].Candidate.MetadataString("parent_id"))
}

func TestBuildBoundsWorkers(t *testing.T) {
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = `{"text":"document number ` + strings.Repeat("x", i+1) + `"}`
	}
	corpus := writeCorpus(t, lines...)

	emb := &mockEmbedder{}
	idx := New(emb, &Config{Workers: 2, BatchSize: 1}, nil)

	stats, err := idx.Build(context.Background(), corpus, filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Batches)
	assert.LessOrEqual(t, emb.peak.Load(), int32(2))

	emb.mu.Lock()
	defer emb.mu.Unlock()
	assert.Len(t, emb.batches, 12)
}

func TestBuildEmbeddingFailure(t *testing.T) {
	corpus := writeCorpus(t, `{"id":"a","text":"alpha"}`)
	out := filepath.Join(t.TempDir(), "index")

	backendErr := &types.TransportError{Backend: "mock", Op: "embed", Err: errors.New("connection refused")}
	idx := New(&mockEmbedder{err: backendErr}, nil, nil)

	_, err := idx.Build(context.Background(), corpus, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransport)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no index is written on failure")
}

func TestBuildEmptyCorpus(t *testing.T) {
	corpus := writeCorpus(t, `{"id":"a","text":""}`)
	idx := New(&mockEmbedder{}, nil, nil)

	_, err := idx.Build(context.Background(), corpus, filepath.Join(t.TempDir(), "index"))
	assert.ErrorIs(t, err, vectorindex.ErrEmptyIndex)
}

func TestBuildMissingCorpus(t *testing.T) {
	idx := New(&mockEmbedder{}, nil, nil)
	_, err := idx.Build(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildInProgress(t *testing.T) {
	corpus := writeCorpus(t, `{"id":"a","text":"alpha"}`)
	emb := &mockEmbedder{block: make(chan struct{})}
	idx := New(emb, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := idx.Build(context.Background(), corpus, filepath.Join(t.TempDir(), "index"))
		done <- err
	}()

	require.Eventually(t, func() bool { return emb.inFlight.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err := idx.Build(context.Background(), corpus, filepath.Join(t.TempDir(), "other"))
	assert.ErrorIs(t, err, ErrBuildInProgress)

	close(emb.block)
	require.NoError(t, <-done)
}

func TestIndexLock(t *testing.T) {
	var l IndexLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())
}
