package embedder

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
	ErrNoAPIKey  = errors.New("remote embedding backend requires an api key")
	ErrNoBaseURL = errors.New("local embedding backend requires a base url")
)

// Options holds optional embedder dependencies
type Options struct {
	Logger         *zap.Logger
	QueryCacheSize int          // 0 disables the query vector cache
	HTTPClient     *http.Client // for tests
}

// New creates the embedder selected by cfg.Backend. Configuration problems are
// reported here as *types.ConfigError rather than on first use.
func New(cfg config.ProviderConfig, opts Options) (Embedder, error) {
	client := transport.Config{
		Timeout:   cfg.Timeout(),
		RateLimit: cfg.RateLimit,
		Breaker:   cfg.Breaker,
	}

	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendRemote:
		p, err := NewRemoteProvider(cfg.Endpoint, cfg.Model, cfg.APIKey, client, opts)
		if err != nil {
			return nil, &types.ConfigError{Field: "embedding.api_key", Reason: err.Error()}
		}
		return p, nil
	case config.BackendLocal:
		p, err := NewLocalProvider(cfg.BaseURL, cfg.Model, client, opts)
		if err != nil {
			return nil, &types.ConfigError{Field: "embedding.base_url", Reason: err.Error()}
		}
		return p, nil
	default:
		return nil, &types.ConfigError{Field: "embedding.backend", Reason: "unknown backend " + cfg.Backend}
	}
}
