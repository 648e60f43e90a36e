package reranker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/docrag-mcp/internal/metrics"
	"github.com/dshills/docrag-mcp/internal/transport"
)

// Provider configuration
const (
	ProviderRemote = "remote"
	ProviderLocal  = "local"

	DefaultRemoteEndpoint = "https://ai.api.nvidia.com/v1/retrieval/nvidia/llama-3_2-nv-rerankqa-1b-v2/reranking"
	DefaultModel          = "nvidia/llama-3.2-nv-rerankqa-1b-v2"

	localPath = "/v1/ranking"
)

type textItem struct {
	Text string `json:"text"`
}

type rankRequest struct {
	Model    string     `json:"model"`
	Query    textItem   `json:"query"`
	Passages []textItem `json:"passages"`
	Truncate string     `json:"truncate"`
}

type rankResponse struct {
	Rankings []struct {
		Index int     `json:"index"`
		Logit float64 `json:"logit"`
	} `json:"rankings"`
}

type httpProvider struct {
	name     string
	endpoint string
	model    string
	client   *transport.Client
	logger   *zap.Logger
}

func (p *httpProvider) Rerank(ctx context.Context, query string, passages []string, topK int) ([]Ranking, bool) {
	if len(passages) == 0 {
		return []Ranking{}, false
	}

	rankings, err := p.callAPI(ctx, query, passages)
	if err != nil {
		p.logger.Warn("rerank failed, using identity ordering",
			zap.String("provider", p.name),
			zap.Int("passages", len(passages)),
			zap.Error(err))
		metrics.RerankDegradedTotal.WithLabelValues(p.name).Inc()
		return Identity(len(passages), topK), true
	}

	return normalize(rankings, len(passages), topK), false
}

func (p *httpProvider) callAPI(ctx context.Context, query string, passages []string) ([]Ranking, error) {
	req := rankRequest{
		Model:    p.model,
		Query:    textItem{Text: query},
		Passages: make([]textItem, len(passages)),
		Truncate: "END",
	}
	for i, text := range passages {
		req.Passages[i] = textItem{Text: text}
	}

	var resp rankResponse
	if err := p.client.PostJSON(ctx, "rerank", p.endpoint, req, &resp); err != nil {
		return nil, err
	}

	out := make([]Ranking, len(resp.Rankings))
	for i, r := range resp.Rankings {
		out[i] = Ranking{Index: r.Index, Score: r.Logit}
	}
	return out, nil
}

func (p *httpProvider) Provider() string {
	return p.name
}

func (p *httpProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// RemoteProvider implements Reranker against the hosted reranking API
type RemoteProvider struct {
	*httpProvider
}

// NewRemoteProvider creates a remote reranker. apiKey is required.
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

// LocalProvider implements Reranker against a self-hosted ranking service
type LocalProvider struct {
	*httpProvider
}

// NewLocalProvider creates a local reranker rooted at baseURL
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
		logger:   logger.Named("reranker"),
	}
}
