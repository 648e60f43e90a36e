package vectorindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/docrag-mcp/pkg/types"
)

func sampleDocs() ([]types.CandidateDocument, [][]float32) {
	docs := []types.CandidateDocument{
		{ID: "ui/button", Text: "Button widget renders a clickable button", Metadata: map[string]any{"title": "Button", "kind": "widget"}},
		{ID: "ui/slider", Text: "Slider widget selects a value in a range", Metadata: map[string]any{"title": "Slider", "kind": "widget"}},
		{ID: "settings/theme", Text: "Theme setting controls window colors", Metadata: map[string]any{"title": "Theme", "kind": "setting"}},
		{ID: "ui/window", Text: "Window examples open a window with a button", Metadata: map[string]any{"title": "Window", "kind": "example"}},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{1, 1, 0},
	}
	return docs, vectors
}

func buildSample(t *testing.T, metric string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "idx")
	docs, vectors := sampleDocs()
	require.NoError(t, Build(context.Background(), dir, docs, vectors, BuildOptions{Model: "test-model", Metric: metric}))
	return dir
}

func requireIntegrity(t *testing.T, err error) *types.IntegrityError {
	t.Helper()
	require.Error(t, err)
	var ie *types.IntegrityError
	require.True(t, errors.As(err, &ie), "want IntegrityError, got %T: %v", err, err)
	assert.ErrorIs(t, err, types.ErrIntegrity)
	return ie
}

func TestBuildAndLoad(t *testing.T) {
	dir := buildSample(t, "")

	for _, name := range []string{DBFile, MetaFile, ChecksumFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	idx, err := Load(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, dir, idx.Path())

	meta := idx.Metadata()
	assert.Equal(t, FormatVersion, meta.FormatVersion)
	assert.Equal(t, "test-model", meta.Model)
	assert.Equal(t, 3, meta.Dimension)
	assert.Equal(t, MetricL2, meta.Metric)

	results, err := idx.SimilaritySearch([]float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "ui/button", results[0].Candidate.ID)
	assert.Equal(t, "Button", results[0].Candidate.MetadataString("title"))
	assert.InDelta(t, 0, results[0].Distance, 1e-9)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, 1, results[0].Rank)

	assert.Equal(t, "ui/window", results[1].Candidate.ID)
	assert.InDelta(t, 1.0, results[1].Distance, 1e-6)
	assert.InDelta(t, 0.5, results[1].Score, 1e-6)
	assert.Equal(t, 2, results[1].Rank)
}

func TestBuildReplacesExisting(t *testing.T) {
	dir := buildSample(t, "")

	docs := []types.CandidateDocument{{ID: "only", Text: "only doc"}}
	require.NoError(t, Build(context.Background(), dir, docs, [][]float32{{1, 2}}, BuildOptions{}))

	idx, err := Load(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging and backup directories are removed")
}

func TestBuildRejectsBadInput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	ctx := context.Background()

	assert.ErrorIs(t, Build(ctx, dir, nil, nil, BuildOptions{}), ErrEmptyIndex)

	docs := []types.CandidateDocument{{ID: "a"}, {ID: "b"}}
	assert.Error(t, Build(ctx, dir, docs, [][]float32{{1}}, BuildOptions{}))
	assert.Error(t, Build(ctx, dir, docs, [][]float32{{1}, {1, 2}}, BuildOptions{}))
	assert.Error(t, Build(ctx, dir, []types.CandidateDocument{{ID: "a"}, {ID: "a"}}, [][]float32{{1}, {2}}, BuildOptions{}))
	assert.Error(t, Build(ctx, dir, docs[:1], [][]float32{{1}}, BuildOptions{Metric: "dot"}))

	assert.NoDirExists(t, dir)
}

func TestCosineMetric(t *testing.T) {
	dir := buildSample(t, MetricCosine)
	idx, err := Load(context.Background(), dir, nil)
	require.NoError(t, err)

	results, err := idx.SimilaritySearch([]float32{2, 0, 0}, 4, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "ui/button", results[0].Candidate.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6, "cosine similarity is used as the score directly")
	assert.Equal(t, "ui/window", results[1].Candidate.ID)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-3)

	// orthogonal docs tie; stored position breaks the tie
	assert.Equal(t, "ui/slider", results[2].Candidate.ID)
	assert.Equal(t, "settings/theme", results[3].Candidate.ID)
}

func TestSimilaritySearchOrdering(t *testing.T) {
	docs, vectors := sampleDocs()
	idx, err := NewIndex(Metadata{}, docs, vectors)
	require.NoError(t, err)

	results, err := idx.SimilaritySearch([]float32{0.5, 0.5, 0.2}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		assert.Equal(t, i+1, results[i].Rank)
	}
}

func TestSimilaritySearchPreFilter(t *testing.T) {
	docs, vectors := sampleDocs()
	idx, err := NewIndex(Metadata{}, docs, vectors)
	require.NoError(t, err)

	// the nearest document is filtered out; k is still filled from the rest
	results, err := idx.SimilaritySearch([]float32{1, 0, 0}, 2, &Filter{IDPrefix: "ui/", Metadata: map[string]string{"kind": "widget"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ui/button", results[0].Candidate.ID)
	assert.Equal(t, "ui/slider", results[1].Candidate.ID)

	results, err = idx.SimilaritySearch([]float32{1, 0, 0}, 3, &Filter{IDPrefix: "settings/"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "settings/theme", results[0].Candidate.ID)

	results, err = idx.SimilaritySearch([]float32{1, 0, 0}, 3, &Filter{Metadata: map[string]string{"kind": "nothing"}})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSimilaritySearchInvalid(t *testing.T) {
	docs, vectors := sampleDocs()
	idx, err := NewIndex(Metadata{}, docs, vectors)
	require.NoError(t, err)

	_, err = idx.SimilaritySearch([]float32{1, 0}, 2, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	results, err := idx.SimilaritySearch([]float32{1, 0, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKeywordSearch(t *testing.T) {
	docs, vectors := sampleDocs()
	idx, err := NewIndex(Metadata{}, docs, vectors)
	require.NoError(t, err)

	results, err := idx.KeywordSearch("open a window button", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "ui/window", results[0].Candidate.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "ui/button", results[1].Candidate.ID)
	assert.Equal(t, "settings/theme", results[2].Candidate.ID)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
	}

	again, err := idx.KeywordSearch("open a window button", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, results, again)

	filtered, err := idx.KeywordSearch("window", 10, &Filter{IDPrefix: "settings/"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	_, err = idx.KeywordSearch("a an to", 10, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestLoadMissingFiles(t *testing.T) {
	for _, name := range []string{DBFile, MetaFile} {
		t.Run(name, func(t *testing.T) {
			dir := buildSample(t, "")
			require.NoError(t, os.Remove(filepath.Join(dir, name)))

			idx, err := Load(context.Background(), dir, nil)
			assert.Nil(t, idx)
			ie := requireIntegrity(t, err)
			assert.Contains(t, ie.Reason, name)
		})
	}

	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	requireIntegrity(t, err)
}

func TestLoadChecksumMismatch(t *testing.T) {
	dir := buildSample(t, "")

	metaPath := filepath.Join(dir, MetaFile)
	data, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(metaPath, append(data, ' '), 0o644))

	idx, err := Load(context.Background(), dir, nil)
	assert.Nil(t, idx, "no partial index is returned")
	ie := requireIntegrity(t, err)
	assert.Contains(t, ie.Error(), "checksum mismatch for "+MetaFile)
}

func TestLoadManifestProblems(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"empty", ""},
		{"malformed line", "abc\n"},
		{"bad digest", "zz  index.db\n"},
		{"outside directory", strings.Repeat("a", 64) + "  ../index.db\n"},
		{"listed file missing", strings.Repeat("a", 64) + "  vectors.bin\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := buildSample(t, "")
			require.NoError(t, os.WriteFile(filepath.Join(dir, ChecksumFile), []byte(tt.manifest), 0o644))

			_, err := Load(context.Background(), dir, nil)
			requireIntegrity(t, err)
		})
	}
}

func TestLoadWithoutManifestLogs(t *testing.T) {
	dir := buildSample(t, "")
	require.NoError(t, os.Remove(filepath.Join(dir, ChecksumFile)))

	core, logs := observer.New(zapcore.InfoLevel)
	idx, err := Load(context.Background(), dir, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 1, logs.FilterMessage("checksum manifest not found, skipping verification").Len())
}

func TestLoadUnsupportedFormat(t *testing.T) {
	dir := buildSample(t, "")
	require.NoError(t, os.Remove(filepath.Join(dir, ChecksumFile)))

	meta := []byte(`{"format_version":"2.0.0","dimension":3,"metric":"l2","count":4}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetaFile), meta, 0o644))

	_, err := Load(context.Background(), dir, nil)
	ie := requireIntegrity(t, err)
	assert.Equal(t, "invalid sidecar", ie.Reason)
}

func TestLoadCountMismatch(t *testing.T) {
	dir := buildSample(t, "")
	require.NoError(t, os.Remove(filepath.Join(dir, ChecksumFile)))

	meta := []byte(`{"format_version":"1.2.0","dimension":3,"metric":"l2","count":7}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetaFile), meta, 0o644))

	_, err := Load(context.Background(), dir, nil)
	ie := requireIntegrity(t, err)
	assert.Contains(t, ie.Reason, "count 7")
}

func TestLoadDimensionMismatch(t *testing.T) {
	dir := buildSample(t, "")
	require.NoError(t, os.Remove(filepath.Join(dir, ChecksumFile)))

	meta := []byte(`{"format_version":"1.0.0","dimension":8,"metric":"l2","count":4}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetaFile), meta, 0o644))

	_, err := Load(context.Background(), dir, nil)
	ie := requireIntegrity(t, err)
	assert.Equal(t, "inconsistent contents", ie.Reason)
}

func TestLoaderLoadsOnce(t *testing.T) {
	dir := buildSample(t, "")
	core, logs := observer.New(zapcore.InfoLevel)
	loader := NewLoader(dir, zap.New(core))

	var wg sync.WaitGroup
	indexes := make([]*Index, 8)
	for i := range indexes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := loader.Get(context.Background())
			assert.NoError(t, err)
			indexes[i] = idx
		}(i)
	}
	wg.Wait()

	for _, idx := range indexes {
		assert.Same(t, indexes[0], idx)
	}
	assert.Equal(t, 1, logs.FilterMessage("index loaded").Len())
}

func TestLoaderRemembersFailure(t *testing.T) {
	dir := buildSample(t, "")
	require.NoError(t, os.Remove(filepath.Join(dir, DBFile)))

	loader := NewLoader(dir, nil)
	_, err := loader.Get(context.Background())
	requireIntegrity(t, err)

	// repairing the files does not help until Reset
	docs, vectors := sampleDocs()
	require.NoError(t, Build(context.Background(), dir, docs, vectors, BuildOptions{}))
	_, err = loader.Get(context.Background())
	requireIntegrity(t, err)

	loader.Reset()
	idx, err := loader.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
}
