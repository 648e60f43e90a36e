// Package transport provides the JSON-over-HTTP client shared by the embedding
// and reranking backends.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/dshills/docrag-mcp/internal/metrics"
	"github.com/dshills/docrag-mcp/pkg/types"
)

const (
	// DefaultTimeout bounds every call when the config leaves it unset
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed response body is kept in the error
	maxErrorBody = 512

	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

// Config holds client configuration
type Config struct {
	Backend    string        // label used in errors and metrics
	APIKey     string        // sent as a bearer token when non-empty
	Timeout    time.Duration // per call
	RateLimit  float64       // requests per second, 0 disables limiting
	Breaker    bool          // enable the circuit breaker
	HTTPClient *http.Client  // optional, for tests
}

// Client posts JSON requests with a bounded wall-clock ceiling. It never retries.
type Client struct {
	backend    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

// New creates a client
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		backend:    cfg.Backend,
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		httpClient: httpClient,
	}

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.Breaker {
		c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    cfg.Backend,
			Timeout: breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerConsecutiveFailures
			},
		})
	}

	return c
}

// Backend returns the backend label
func (c *Client) Backend() string {
	return c.backend
}

// Timeout returns the per-call timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// PostJSON marshals in, posts it to url and decodes the response into out.
// Every failure is a *types.TransportError.
func (c *Client) PostJSON(ctx context.Context, op, url string, in, out any) error {
	start := time.Now()
	err := c.execute(ctx, op, url, in, out)

	metrics.ProviderRequestDuration.WithLabelValues(c.backend, op).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		var te *types.TransportError
		if errors.As(err, &te) && te.Timeout {
			status = "timeout"
		}
	}
	metrics.ProviderRequestsTotal.WithLabelValues(c.backend, op, status).Inc()

	return err
}

func (c *Client) execute(ctx context.Context, op, url string, in, out any) error {
	if c.breaker == nil {
		return c.do(ctx, op, url, in, out)
	}

	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, op, url, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &types.TransportError{Backend: c.backend, Op: op, Err: err}
	}
	return err
}

func (c *Client) do(ctx context.Context, op, url string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.wrap(op, 0, fmt.Errorf("rate limit: %w", err))
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return c.wrap(op, 0, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return c.wrap(op, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrap(op, 0, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.wrap(op, resp.StatusCode, fmt.Errorf("api error: %s", bytes.TrimSpace(bodyBytes)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.wrap(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) wrap(op string, status int, err error) error {
	return &types.TransportError{
		Backend:    c.backend,
		Op:         op,
		StatusCode: status,
		Timeout:    isTimeout(err),
		Err:        err,
	}
}

// CloseIdleConnections releases pooled connections
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
