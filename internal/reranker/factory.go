package reranker

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/docrag-mcp/internal/config"
	"github.com/dshills/docrag-mcp/internal/transport"
	"github.com/dshills/docrag-mcp/pkg/types"
)

// Construction errors
var (
	ErrNoAPIKey  = errors.New("remote reranking backend requires an api key")
	ErrNoBaseURL = errors.New("local reranking backend requires a base url")
)

// Options holds optional reranker dependencies
type Options struct {
	Logger     *zap.Logger
	HTTPClient *http.Client // for tests
}

// New creates the reranker selected by cfg.Backend
func New(cfg config.ProviderConfig, opts Options) (Reranker, error) {
	client := transport.Config{
		Timeout:   cfg.Timeout(),
		RateLimit: cfg.RateLimit,
		Breaker:   cfg.Breaker,
	}

	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendRemote:
		p, err := NewRemoteProvider(cfg.Endpoint, cfg.Model, cfg.APIKey, client, opts)
		if err != nil {
			return nil, &types.ConfigError{Field: "reranking.api_key", Reason: err.Error()}
		}
		return p, nil
	case config.BackendLocal:
		p, err := NewLocalProvider(cfg.BaseURL, cfg.Model, client, opts)
		if err != nil {
			return nil, &types.ConfigError{Field: "reranking.base_url", Reason: err.Error()}
		}
		return p, nil
	default:
		return nil, &types.ConfigError{Field: "reranking.backend", Reason: "unknown backend " + cfg.Backend}
	}
}
