package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docrag-mcp/internal/chunker"
	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/vectorindex"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// ErrBuildInProgress is returned when another build holds the indexer
var ErrBuildInProgress = errors.New("index build already in progress")

// maxLineBytes bounds a single corpus line
const maxLineBytes = 16 << 20

// Indexer coordinates the build pipeline: read -> chunk -> embed -> write
type Indexer struct {
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	logger   *zap.Logger
	lock     IndexLock

	workers   int
	batchSize int
	metric    string
}

// Config contains configuration for the indexer
type Config struct {
	Workers   int    // Number of concurrent embedding requests (default: runtime.NumCPU())
	BatchSize int    // Passages per embedding request (default: embedder.MaxBatchSize)
	MaxTokens int    // Passage size limit (default: chunker.MaxTokensPerChunk)
	Metric    string // Distance metric recorded in the index (default: l2)
}

// Statistics contains statistics about a build
type Statistics struct {
	DocumentsRead    int
	DocumentsSkipped int
	PassagesCreated  int
	Batches          int
	Dimension        int
	Duration         time.Duration
}

// New creates a new Indexer instance
func New(emb embedder.Embedder, config *Config, logger *zap.Logger) *Indexer {
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Indexer{
		embedder:  emb,
		chunker:   chunker.New(config.MaxTokens),
		logger:    logger.Named("indexer"),
		workers:   config.Workers,
		batchSize: config.BatchSize,
		metric:    config.Metric,
	}
	if idx.workers <= 0 {
		idx.workers = runtime.NumCPU()
	}
	if idx.batchSize <= 0 || idx.batchSize > embedder.MaxBatchSize {
		idx.batchSize = embedder.MaxBatchSize
	}
	return idx
}

// Build reads the JSONL corpus at corpusPath and writes a complete index to outDir
func (idx *Indexer) Build(ctx context.Context, corpusPath, outDir string) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrBuildInProgress
	}
	defer idx.lock.Release()

	start := time.Now()

	f, err := os.Open(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	docs, skipped, err := ReadCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", corpusPath, err)
	}

	stats := &Statistics{
		DocumentsRead:    len(docs),
		DocumentsSkipped: skipped,
	}

	var passages []types.Passage
	for _, doc := range docs {
		passages = append(passages, idx.chunker.Split(doc)...)
	}
	if len(passages) == 0 {
		return nil, vectorindex.ErrEmptyIndex
	}
	stats.PassagesCreated = len(passages)

	indexed := chunker.Documents(passages)
	vectors, batches, err := idx.embedAll(ctx, indexed)
	if err != nil {
		return nil, err
	}
	stats.Batches = batches
	stats.Dimension = len(vectors[0])

	err = vectorindex.Build(ctx, outDir, indexed, vectors, vectorindex.BuildOptions{
		Model:  idx.embedder.Model(),
		Metric: idx.metric,
	})
	if err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}

	stats.Duration = time.Since(start)
	idx.logger.Info("index built",
		zap.String("path", outDir),
		zap.Int("documents", stats.DocumentsRead),
		zap.Int("passages", stats.PassagesCreated),
		zap.Int("dimension", stats.Dimension),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// embedAll embeds every document in batches on a bounded worker pool.
// Each batch writes only its own slice range, so results keep document order.
func (idx *Indexer) embedAll(ctx context.Context, docs []types.CandidateDocument) ([][]float32, int, error) {
	vectors := make([][]float32, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	batches := 0
	for start := 0; start < len(docs); start += idx.batchSize {
		end := min(start+idx.batchSize, len(docs))
		batches++

		g.Go(func() error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = docs[start+i].Text
			}

			out, err := idx.embedder.EmbedDocuments(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed passages %d-%d: %w", start, end-1, err)
			}
			if len(out) != len(texts) {
				return fmt.Errorf("embed passages %d-%d: got %d vectors for %d texts", start, end-1, len(out), len(texts))
			}
			copy(vectors[start:end], out)

			idx.logger.Debug("batch embedded", zap.Int("start", start), zap.Int("size", len(texts)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return vectors, batches, nil
}

type corpusLine struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// ReadCorpus parses JSON Lines documents from r. Blank lines are ignored,
// documents without text are skipped and counted, and documents without an
// id receive a random UUID. Duplicate ids are an error.
func ReadCorpus(r io.Reader) ([]types.CandidateDocument, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var docs []types.CandidateDocument
	seen := make(map[string]int)
	skipped := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var cl corpusLine
		if err := json.Unmarshal([]byte(line), &cl); err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if strings.TrimSpace(cl.Text) == "" {
			skipped++
			continue
		}
		if cl.ID == "" {
			cl.ID = uuid.NewString()
		}
		if prev, dup := seen[cl.ID]; dup {
			return nil, 0, fmt.Errorf("line %d: duplicate id %q (first seen on line %d)", lineNo, cl.ID, prev)
		}
		seen[cl.ID] = lineNo

		docs = append(docs, types.CandidateDocument{ID: cl.ID, Text: cl.Text, Metadata: cl.Metadata})
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	return docs, skipped, nil
}
