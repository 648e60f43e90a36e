package apilookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/docrag-mcp/internal/cache"
	"github.com/dshills/docrag-mcp/internal/fuzzy"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// Defaults
const (
	DefaultThreshold      = 0.6
	DefaultMaxSuggestions = 5
)

// Options configures a Service
type Options struct {
	CacheSize      int     // resolved entries kept, default cache.DefaultCapacity
	Threshold      float64 // minimum suggestion score
	MaxSuggestions int
	Logger         *zap.Logger
}

// Service memoizes lookups over a Resolver. Not-found outcomes are never
// cached and never substituted: a miss returns *types.NotFoundError carrying
// suggestions.
type Service struct {
	resolver       Resolver
	memo           *cache.Memo[*types.APIDoc]
	threshold      float64
	maxSuggestions int
	logger         *zap.Logger
}

// New creates a lookup service with its own cache
func New(resolver Resolver, opts Options) *Service {
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	maxSuggestions := opts.MaxSuggestions
	if maxSuggestions <= 0 {
		maxSuggestions = DefaultMaxSuggestions
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver:       resolver,
		memo:           cache.NewMemo[*types.APIDoc]("api_lookup", opts.CacheSize),
		threshold:      threshold,
		maxSuggestions: maxSuggestions,
		logger:         logger,
	}
}

// ParseIdentifier splits "extension@Symbol" (or a bare "extension")
func ParseIdentifier(id string) (extension, symbol string, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", fmt.Errorf("%w: identifier cannot be empty", types.ErrInvalidInput)
	}
	if strings.ContainsAny(id, " \t\n") {
		return "", "", fmt.Errorf("%w: identifier %q contains whitespace", types.ErrInvalidInput, id)
	}

	extension, symbol, hasSymbol := strings.Cut(id, "@")
	if extension == "" {
		return "", "", fmt.Errorf("%w: identifier %q has no extension", types.ErrInvalidInput, id)
	}
	if hasSymbol && (symbol == "" || strings.Contains(symbol, "@")) {
		return "", "", fmt.Errorf("%w: identifier %q must look like extension@Symbol", types.ErrInvalidInput, id)
	}
	return extension, symbol, nil
}

// Lookup resolves one identifier
func (s *Service) Lookup(ctx context.Context, id string) (*types.APIDoc, error) {
	id = strings.TrimSpace(id)
	if _, _, err := ParseIdentifier(id); err != nil {
		return nil, err
	}

	doc, err := s.memo.Get(ctx, id, s.resolver.Resolve)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	suggestions := s.Suggest(id)
	s.logger.Debug("api lookup miss",
		zap.String("id", id),
		zap.Int("suggestions", len(suggestions)))
	return nil, &types.NotFoundError{Identifier: id, Suggestions: suggestions}
}

// LookupMany resolves each identifier independently
func (s *Service) LookupMany(ctx context.Context, ids []string) []types.Result[*types.APIDoc] {
	out := make([]types.Result[*types.APIDoc], len(ids))
	for i, id := range ids {
		doc, err := s.Lookup(ctx, id)
		if err != nil {
			out[i] = types.Fail[*types.APIDoc](err)
			continue
		}
		out[i] = types.OK(doc)
	}
	return out
}

// Suggest returns the closest known identifiers to id
func (s *Service) Suggest(id string) []types.FuzzyMatch {
	return fuzzy.FindBestMatches(id, s.resolver.Identifiers(), s.threshold, s.maxSuggestions)
}

// CacheLen returns the number of memoized entries
func (s *Service) CacheLen() int {
	return s.memo.Cache().Len()
}
