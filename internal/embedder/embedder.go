package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dshills/docrag-mcp/internal/cache"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// Input types understood by the embedding backends
const (
	InputTypeQuery    = "query"
	InputTypeDocument = "search_document"
)

// Embedder generates embedding vectors
type Embedder interface {
	// EmbedDocuments embeds passages for storage in an index
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single search query
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Provider returns the backend name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// EmbeddingError reports a failed embedding call
type EmbeddingError struct {
	Provider string
	Op       string // "query" or "documents"
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s (%s): %v", e.Op, e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// Is matches types.ErrTransport, including failures from a malformed response
func (e *EmbeddingError) Is(target error) bool {
	return target == types.ErrTransport
}

// queryCache memoizes query vectors by content hash
type queryCache struct {
	c *cache.Cache[[]float32]
}

func newQueryCache(size int) *queryCache {
	if size <= 0 {
		return nil
	}
	return &queryCache{c: cache.New[[]float32]("embedding_query", size)}
}

// get returns a copy so callers cannot mutate the cached vector
func (q *queryCache) get(text string) ([]float32, bool) {
	if q == nil {
		return nil, false
	}
	v, ok := q.c.Get(ComputeHash(text))
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

func (q *queryCache) set(text string, v []float32) {
	if q == nil {
		return
	}
	stored := make([]float32, len(v))
	copy(stored, v)
	q.c.Set(ComputeHash(text), stored)
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateTexts rejects an empty batch or any empty text
func ValidateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", types.ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", types.ErrInvalidInput, i)
		}
	}
	return nil
}
