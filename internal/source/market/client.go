// Package market adapts a resale marketplace that has no API and serves
// server-rendered HTML listing pages. Product cards are scraped out of the
// markup; rich description blocks are converted to markdown so formatting
// survives the trip into the catalog.
package market

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
	defaultTimeout = 30 * time.Second

	defaultBaseURL    = "https://market.example.com"
	defaultNumResults = 20
)

// SourceName identifies this adapter in budgets, stats and stored records.
const SourceName = "market"

// Client scrapes the marketplace.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the marketplace endpoint, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New creates a new marketplace client.
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

// Search implements source.Adapter by scraping the listing page for a
// query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]source.RawItem, error) {
	if limit <= 0 {
		limit = defaultNumResults
	}

	params := url.Values{}
	params.Set("q", query)

	body, err := c.doRequest(ctx, "/search", params)
	if err != nil {
		return nil, fmt.Errorf("market search %q: %w", query, err)
	}

	items, err := parseListing(body, query)
	if err != nil {
		return nil, fmt.Errorf("market search %q: %w: %w", query, source.ErrBadPayload, err)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// doRequest executes a GET and maps HTTP failures onto the shared source
// sentinels.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "Soledex/1.0")

	if c.logger != nil {
		c.logger.Debug("market request", "path", path)
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
	case http.StatusForbidden:
		// Bot detection. Retrying will not help within a run.
		return nil, source.ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, source.ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
