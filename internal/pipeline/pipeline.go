// Package pipeline wires the retrieval components into one container that is
// built once at startup and shared by every caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/docrag-mcp/internal/apilookup"
	"github.com/dshills/docrag-mcp/internal/config"
	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/fuzzy"
	"github.com/dshills/docrag-mcp/internal/parser"
	"github.com/dshills/docrag-mcp/internal/ragcontext"
	"github.com/dshills/docrag-mcp/internal/reranker"
	"github.com/dshills/docrag-mcp/internal/searcher"
	"github.com/dshills/docrag-mcp/internal/vectorindex"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// domainSuggestionThreshold is the minimum score for "did you mean" domains
const domainSuggestionThreshold = 0.5

// Request is a retrieval request against one domain. Zero values take the
// domain's configured defaults.
type Request struct {
	Domain  string
	Query   string
	TopK    int
	RerankK int
	Budget  int
	Filter  *vectorindex.Filter
}

// DomainInfo describes a configured domain
type DomainInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IndexPath   string `json:"index_path"`
	TopK        int    `json:"top_k"`
	RerankK     int    `json:"rerank_k"`
	Budget      int    `json:"budget"`
	BudgetUnit  string `json:"budget_unit"`
}

type domain struct {
	info      DomainInfo
	loader    *vectorindex.Loader
	retriever *searcher.Retriever
	assembler *ragcontext.Assembler
}

// Pipeline owns the providers, per-domain retrievers and the API lookup service
type Pipeline struct {
	embedder embedder.Embedder
	reranker reranker.Reranker // nil when reranking is disabled
	domains  map[string]*domain
	names    []string
	lookup   *apilookup.Service
	logger   *zap.Logger
}

// New constructs every component described by cfg. Indices are loaded lazily
// on first use; call Preload to load them eagerly.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	emb, err := embedder.New(cfg.Embedding, embedder.Options{
		Logger:         logger,
		QueryCacheSize: config.DefaultCacheSize,
	})
	if err != nil {
		return nil, err
	}

	var rr reranker.Reranker
	if cfg.Reranking.Enabled {
		rr, err = reranker.New(cfg.Reranking.ProviderConfig, reranker.Options{Logger: logger})
		if err != nil {
			_ = emb.Close()
			return nil, err
		}
	}

	p := &Pipeline{
		embedder: emb,
		reranker: rr,
		domains:  make(map[string]*domain, len(cfg.Domains)),
		names:    cfg.DomainNames(),
		logger:   logger,
	}

	for _, name := range p.names {
		d := cfg.Domains[name]
		loader := vectorindex.NewLoader(d.IndexPath, logger)
		p.domains[name] = &domain{
			info: DomainInfo{
				Name:        name,
				Description: d.Description,
				IndexPath:   d.IndexPath,
				TopK:        d.TopK,
				RerankK:     d.RerankK,
				Budget:      d.Budget,
				BudgetUnit:  d.BudgetUnit,
			},
			loader: loader,
			retriever: searcher.New(loader, emb, rr, searcher.Options{
				Domain:          name,
				Timeout:         cfg.Embedding.Timeout(),
				KeywordFallback: d.KeywordFallback,
				Logger:          logger,
			}),
			assembler: ragcontext.New(ragcontext.Options{Unit: ragcontext.Unit(d.BudgetUnit)}),
		}
	}

	catalog, err := buildCatalog(cfg.APILookup.SourceDirs, logger)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.lookup = apilookup.New(catalog, apilookup.Options{
		CacheSize:      cfg.APILookup.CacheSize,
		Threshold:      cfg.APILookup.Threshold,
		MaxSuggestions: cfg.APILookup.MaxSuggestions,
		Logger:         logger,
	})

	logger.Info("pipeline ready",
		zap.String("embedding", emb.Provider()),
		zap.Bool("reranking", rr != nil),
		zap.Strings("domains", p.names),
		zap.Int("api_entries", catalog.Len()))
	return p, nil
}

func buildCatalog(dirs []string, logger *zap.Logger) (*apilookup.Catalog, error) {
	catalog := apilookup.NewCatalog()
	if len(dirs) == 0 {
		return catalog, nil
	}

	docs, parseErrs, err := parser.BuildDocs(dirs)
	if err != nil {
		return nil, fmt.Errorf("build api catalog: %w", err)
	}
	for _, pe := range parseErrs {
		logger.Warn("api source parse error", zap.String("file", pe.File), zap.Int("line", pe.Line), zap.String("error", pe.Message))
	}
	for _, doc := range docs {
		if err := catalog.Add(doc); err != nil {
			return nil, fmt.Errorf("build api catalog: %w", err)
		}
	}
	return catalog, nil
}

// Preload loads every domain index. Failures are logged and remembered by
// each domain's loader; the first failing domain's error is returned.
func (p *Pipeline) Preload(ctx context.Context) error {
	var first error
	for _, name := range p.names {
		if _, err := p.domains[name].loader.Get(ctx); err != nil && first == nil {
			first = describe(err)
		}
	}
	return first
}

// Reload drops the cached index of the named domain, or of every domain when
// name is empty, and loads it again from disk. Each domain is reloaded even
// when an earlier one fails; the first failure is returned.
func (p *Pipeline) Reload(ctx context.Context, name string) error {
	names := p.names
	if name != "" {
		if _, ok := p.domains[name]; !ok {
			return &types.NotFoundError{
				Identifier:  "domain " + name,
				Suggestions: fuzzy.FindBestMatches(name, p.names, domainSuggestionThreshold, 3),
			}
		}
		names = []string{name}
	}

	var first error
	for _, n := range names {
		loader := p.domains[n].loader
		loader.Reset()
		idx, err := loader.Get(ctx)
		if err != nil {
			if first == nil {
				first = describe(err)
			}
			continue
		}
		p.logger.Info("index reloaded", zap.String("domain", n), zap.Int("passages", idx.Len()))
	}
	return first
}

// Search retrieves ranked passages for req
func (p *Pipeline) Search(ctx context.Context, req Request) types.Result[[]types.RankedResult] {
	resp, _, err := p.retrieve(ctx, req)
	if err != nil {
		return types.Fail[[]types.RankedResult](err)
	}
	return types.OK(resp.Results)
}

// Context retrieves passages for req and assembles them within the budget
func (p *Pipeline) Context(ctx context.Context, req Request) types.Result[types.RAGContext] {
	resp, d, err := p.retrieve(ctx, req)
	if err != nil {
		return types.Fail[types.RAGContext](err)
	}

	budget := req.Budget
	if budget <= 0 {
		budget = d.info.Budget
	}
	return types.OK(d.assembler.Assemble(resp.Results, budget))
}

func (p *Pipeline) retrieve(ctx context.Context, req Request) (*searcher.Response, *domain, error) {
	d, err := p.domain(req.Domain)
	if err != nil {
		return nil, nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = d.info.TopK
	}

	rerankK := req.RerankK
	if rerankK <= 0 {
		rerankK = d.info.RerankK
	}

	// without a reranker the retriever truncates to rerankK
	resp, err := d.retriever.SearchAndRerank(ctx, req.Query, topK, rerankK, req.Filter)
	if err != nil {
		return nil, nil, describe(err)
	}
	for i := range resp.Results {
		if err := resp.Results[i].Validate(); err != nil {
			return nil, nil, fmt.Errorf("domain %s result %d: %w", d.info.Name, i, err)
		}
	}

	if resp.Degraded {
		p.logger.Info("degraded retrieval",
			zap.String("domain", req.Domain),
			zap.String("mode", string(resp.Mode)),
			zap.Bool("reranked", resp.Reranked))
	}
	return resp, d, nil
}

func (p *Pipeline) domain(name string) (*domain, error) {
	if d, ok := p.domains[name]; ok {
		return d, nil
	}
	if name == "" && len(p.names) == 1 {
		return p.domains[p.names[0]], nil
	}
	return nil, &types.NotFoundError{
		Identifier:  "domain " + name,
		Suggestions: fuzzy.FindBestMatches(name, p.names, domainSuggestionThreshold, 3),
	}
}

// LookupAPI resolves one extension@Symbol identifier
func (p *Pipeline) LookupAPI(ctx context.Context, id string) types.Result[*types.APIDoc] {
	doc, err := p.lookup.Lookup(ctx, strings.TrimSpace(id))
	if err != nil {
		return types.Fail[*types.APIDoc](err)
	}
	return types.OK(doc)
}

// LookupAPIs resolves each identifier independently
func (p *Pipeline) LookupAPIs(ctx context.Context, ids []string) []types.Result[*types.APIDoc] {
	trimmed := make([]string, len(ids))
	for i, id := range ids {
		trimmed[i] = strings.TrimSpace(id)
	}
	return p.lookup.LookupMany(ctx, trimmed)
}

// Domains returns the configured domains in name order
func (p *Pipeline) Domains() []DomainInfo {
	out := make([]DomainInfo, len(p.names))
	for i, name := range p.names {
		out[i] = p.domains[name].info
	}
	return out
}

// Close releases provider resources
func (p *Pipeline) Close() error {
	var errs []error
	if p.embedder != nil {
		errs = append(errs, p.embedder.Close())
	}
	if p.reranker != nil {
		errs = append(errs, p.reranker.Close())
	}
	return errors.Join(errs...)
}

// describe prefixes backend and index failures with a caller-facing category
func describe(err error) error {
	switch {
	case errors.Is(err, types.ErrIntegrity):
		return fmt.Errorf("index unavailable: %w", err)
	case errors.Is(err, types.ErrTransport):
		return fmt.Errorf("search backend unavailable: %w", err)
	default:
		return err
	}
}
