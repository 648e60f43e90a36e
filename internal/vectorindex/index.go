// Package vectorindex loads a persisted embedding index and answers
// nearest-neighbor queries over it.
//
// An index is a directory holding index.db (SQLite rows of id, text,
// metadata and a float32 vector), the index.json sidecar and an optional
// checksums.sha256 manifest. Load verifies the directory before reading it and
// never returns a partially loaded index. A loaded Index is immutable and safe
// for concurrent readers.
package vectorindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// Filter restricts the candidate set before top-k selection. Zero values match
// everything.
type Filter struct {
	IDPrefix string            // document id must start with this
	Metadata map[string]string // every key must be present with this value
}

// Match reports whether doc passes the filter
func (f *Filter) Match(doc *types.CandidateDocument) bool {
	if f == nil {
		return true
	}
	if f.IDPrefix != "" && !strings.HasPrefix(doc.ID, f.IDPrefix) {
		return false
	}
	for k, want := range f.Metadata {
		if _, ok := doc.Metadata[k]; !ok || doc.MetadataString(k) != want {
			return false
		}
	}
	return true
}

// Index is an in-memory, read-only view of a persisted index
type Index struct {
	path    string
	meta    Metadata
	docs    []types.CandidateDocument
	vectors [][]float32
	terms   []map[string]int // keyword search term counts per document
}

// NewIndex builds an in-memory index from parallel docs and vectors
func NewIndex(meta Metadata, docs []types.CandidateDocument, vectors [][]float32) (*Index, error) {
	if meta.FormatVersion == "" {
		meta.FormatVersion = FormatVersion
	}
	if meta.Dimension == 0 && len(vectors) > 0 {
		meta.Dimension = len(vectors[0])
	}
	meta.Count = len(docs)
	if err := meta.validate(); err != nil {
		return nil, err
	}
	if err := checkVectors(docs, vectors, meta.Dimension); err != nil {
		return nil, err
	}

	idx := &Index{
		meta:    meta,
		docs:    docs,
		vectors: vectors,
		terms:   make([]map[string]int, len(docs)),
	}
	for i := range docs {
		idx.terms[i] = termCounts(docs[i].Text)
	}
	return idx, nil
}

func checkVectors(docs []types.CandidateDocument, vectors [][]float32, dim int) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("%d documents but %d vectors", len(docs), len(vectors))
	}
	seen := make(map[string]bool, len(docs))
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("document %s: vector dimension %d, want %d", docs[i].ID, len(v), dim)
		}
		if docs[i].ID == "" {
			return fmt.Errorf("document at position %d has no id", i)
		}
		if seen[docs[i].ID] {
			return fmt.Errorf("duplicate document id %s", docs[i].ID)
		}
		seen[docs[i].ID] = true
	}
	return nil
}

// Load verifies and reads the index stored in dir. Every failure is a
// *types.IntegrityError.
func Load(ctx context.Context, dir string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fail := func(reason string, err error) error {
		return &types.IntegrityError{Path: dir, Reason: reason, Err: err}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fail("directory unavailable", err)
	}
	if !info.IsDir() {
		return nil, fail("not a directory", nil)
	}
	for _, name := range []string{DBFile, MetaFile} {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return nil, fail("missing required file "+name, err)
		}
		if !fi.Mode().IsRegular() {
			return nil, fail(name+" is not a regular file", nil)
		}
	}

	if err := verifyChecksums(dir, logger); err != nil {
		return nil, fail("checksum verification failed", err)
	}

	meta, err := readMetadata(dir)
	if err != nil {
		return nil, fail("invalid sidecar", err)
	}

	docs, vectors, err := readDatabase(ctx, filepath.Join(dir, DBFile))
	if err != nil {
		return nil, fail("unreadable database", err)
	}
	if len(docs) != meta.Count {
		return nil, fail(fmt.Sprintf("sidecar count %d but database holds %d documents", meta.Count, len(docs)), nil)
	}

	idx, err := NewIndex(*meta, docs, vectors)
	if err != nil {
		return nil, fail("inconsistent contents", err)
	}
	idx.path = dir

	logger.Info("index loaded",
		zap.String("index", dir),
		zap.Int("documents", len(docs)),
		zap.Int("dimension", meta.Dimension),
		zap.String("metric", meta.Metric),
		zap.String("driver", BuildMode))

	return idx, nil
}

func readDatabase(ctx context.Context, path string) (docs []types.CandidateDocument, vectors [][]float32, err error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return readDocuments(ctx, db)
}

// Path returns the directory the index was loaded from
func (idx *Index) Path() string {
	return idx.path
}

// Metadata returns the sidecar
func (idx *Index) Metadata() Metadata {
	return idx.meta
}

// Len returns the number of documents
func (idx *Index) Len() int {
	return len(idx.docs)
}

// SimilaritySearch returns the k documents nearest to query among those
// passing filter, sorted by ascending distance with ties broken by stored
// position. Score is the normalized similarity: 1/(1+d) for l2, the cosine
// similarity itself for cosine.
func (idx *Index) SimilaritySearch(query []float32, k int, filter *Filter) ([]types.RankedResult, error) {
	if len(query) != idx.meta.Dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d",
			types.ErrInvalidInput, len(query), idx.meta.Dimension)
	}
	if k <= 0 {
		return []types.RankedResult{}, nil
	}

	type hit struct {
		pos      int
		distance float64
		score    float64
	}
	hits := make([]hit, 0, len(idx.docs))
	for i := range idx.docs {
		if !filter.Match(&idx.docs[i]) {
			continue
		}
		h := hit{pos: i}
		switch idx.meta.Metric {
		case MetricCosine:
			sim := cosineSimilarity(query, idx.vectors[i])
			h.distance = 1 - sim
			h.score = sim
		default:
			h.distance = l2Distance(query, idx.vectors[i])
			h.score = 1 / (1 + h.distance)
		}
		hits = append(hits, h)
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].distance < hits[b].distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]types.RankedResult, len(hits))
	for i, h := range hits {
		results[i] = types.RankedResult{
			Candidate: idx.docs[h.pos],
			Distance:  h.distance,
			Score:     h.score,
			Rank:      i + 1,
		}
	}
	return results, nil
}

// KeywordSearch scores documents by the fraction of distinct query terms they
// contain, with total term frequency breaking ties and stored position after
// that. Documents matching no term are excluded.
func (idx *Index) KeywordSearch(query string, k int, filter *Filter) ([]types.RankedResult, error) {
	queryTerms := uniqueTerms(query)
	if len(queryTerms) == 0 {
		return nil, fmt.Errorf("%w: query has no searchable terms", types.ErrInvalidInput)
	}
	if k <= 0 {
		return []types.RankedResult{}, nil
	}

	type hit struct {
		pos   int
		score float64
		freq  int
	}
	var hits []hit
	for i := range idx.docs {
		if !filter.Match(&idx.docs[i]) {
			continue
		}
		matched, freq := 0, 0
		for _, term := range queryTerms {
			if n := idx.terms[i][term]; n > 0 {
				matched++
				freq += n
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, hit{pos: i, score: float64(matched) / float64(len(queryTerms)), freq: freq})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].freq > hits[b].freq
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]types.RankedResult, len(hits))
	for i, h := range hits {
		results[i] = types.RankedResult{
			Candidate: idx.docs[h.pos],
			Score:     h.score,
			Rank:      i + 1,
		}
	}
	return results, nil
}
