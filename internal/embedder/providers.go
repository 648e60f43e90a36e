package embedder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/docrag-mcp/internal/transport"
)

// Provider configuration
const (
	ProviderRemote = "remote"
	ProviderLocal  = "local"

	DefaultRemoteEndpoint = "https://integrate.api.nvidia.com/v1/embeddings"
	DefaultModel          = "nvidia/nv-embedqa-e5-v5"

	localPath = "/v1/embeddings"

	// MaxBatchSize is the most texts sent in one request
	MaxBatchSize = 50
)

type embedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     *int      `json:"index"`
	} `json:"data"`
}

// httpProvider holds the request logic shared by both backends
type httpProvider struct {
	name     string
	endpoint string
	model    string
	client   *transport.Client
	cache    *queryCache
	logger   *zap.Logger
}

func (p *httpProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateTexts([]string{text}); err != nil {
		return nil, err
	}

	if v, ok := p.cache.get(text); ok {
		return v, nil
	}

	vectors, err := p.callAPI(ctx, []string{text}, InputTypeQuery)
	if err != nil {
		return nil, &EmbeddingError{Provider: p.name, Op: "query", Err: err}
	}

	p.cache.set(text, vectors[0])
	return vectors[0], nil
}

func (p *httpProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := p.callAPI(ctx, texts[start:end], InputTypeDocument)
		if err != nil {
			return nil, &EmbeddingError{
				Provider: p.name,
				Op:       "documents",
				Err:      fmt.Errorf("batch %d-%d: %w", start, end, err),
			}
		}
		out = append(out, vectors...)
	}

	p.logger.Debug("embedded documents",
		zap.String("provider", p.name),
		zap.Int("count", len(out)))

	return out, nil
}

func (p *httpProvider) callAPI(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	req := embedRequest{
		Input:     texts,
		Model:     p.model,
		InputType: inputType,
	}

	var resp embedResponse
	if err := p.client.PostJSON(ctx, "embed", p.endpoint, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for i, d := range resp.Data {
		pos := i
		if d.Index != nil {
			pos = *d.Index
		}
		if pos < 0 || pos >= len(vectors) || vectors[pos] != nil {
			return nil, fmt.Errorf("invalid embedding index %d", pos)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", pos)
		}
		vectors[pos] = d.Embedding
	}
	return vectors, nil
}

func (p *httpProvider) Provider() string {
	return p.name
}

func (p *httpProvider) Model() string {
	return p.model
}

func (p *httpProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// RemoteProvider implements Embedder against the hosted embeddings API
type RemoteProvider struct {
	*httpProvider
}

// NewRemoteProvider creates a remote embedder. apiKey is required.
func NewRemoteProvider(endpoint, model, apiKey string, client transport.Config, opts Options) (*RemoteProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key not set", ErrNoAPIKey)
	}
	if endpoint == "" {
		endpoint = DefaultRemoteEndpoint
	}
	client.Backend = ProviderRemote
	client.APIKey = apiKey

	return &RemoteProvider{newHTTPProvider(ProviderRemote, endpoint, model, client, opts)}, nil
}

// LocalProvider implements Embedder against a self-hosted embedding service
type LocalProvider struct {
	*httpProvider
}

// NewLocalProvider creates a local embedder rooted at baseURL
func NewLocalProvider(baseURL, model string, client transport.Config, opts Options) (*LocalProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url not set", ErrNoBaseURL)
	}
	client.Backend = ProviderLocal
	client.APIKey = ""

	endpoint := strings.TrimRight(baseURL, "/") + localPath
	return &LocalProvider{newHTTPProvider(ProviderLocal, endpoint, model, client, opts)}, nil
}

func newHTTPProvider(name, endpoint, model string, client transport.Config, opts Options) *httpProvider {
	if model == "" {
		model = DefaultModel
	}
	if client.HTTPClient == nil {
		client.HTTPClient = opts.HTTPClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &httpProvider{
		name:     name,
		endpoint: endpoint,
		model:    model,
		client:   transport.New(client),
		cache:    newQueryCache(opts.QueryCacheSize),
		logger:   logger,
	}
}
