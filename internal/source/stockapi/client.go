// Package stockapi adapts a stock-market style sneaker API that serves
// structured JSON product records with retail pricing.
package stockapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/soledexapp/soledex-server/internal/source"
)

const (
	// HTTP client settings
	defaultTimeout = 30 * time.Second

	// API settings
	defaultBaseURL    = "https://api.stockapi.example.com"
	defaultNumResults = 25
	maxNumResults     = 50
)

// SourceName identifies this adapter in budgets, stats and stored records.
const SourceName = "stockapi"

// Client is a stock API client.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used in tests and for proxy
// deployments.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New creates a new stock API client.
func New(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:  logger,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements source.Adapter.
func (c *Client) Name() string { return SourceName }

// doRequest executes a GET against the API and maps HTTP failures onto
// the shared source sentinels.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Soledex/1.0")

	if c.logger != nil {
		c.logger.Debug("stockapi request", "path", path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, source.ErrNotFound
	case http.StatusTooManyRequests:
		return nil, source.ErrRateLimited
	case http.StatusBadRequest:
		return nil, source.ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, source.ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
