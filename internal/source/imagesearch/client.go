// Package imagesearch adapts a web image search API. It serves image
// references only; metadata for the query comes from the other sources.
package imagesearch

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/soledexapp/soledex-server/internal/source"
)

const (
	defaultTimeout = 30 * time.Second

	defaultBaseURL    = "https://api.imagesearch.example.com"
	defaultNumResults = 10
	maxNumResults     = 50
)

// SourceName identifies this adapter in budgets, stats and stored records.
const SourceName = "imagesearch"

// Client is an image search API client.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	baseURL string
	apiKey  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// New creates a new image search client.
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

// Name implements source.ImageSearcher.
func (c *Client) Name() string { return SourceName }

// SearchImages implements source.ImageSearcher.
func (c *Client) SearchImages(ctx context.Context, query string, limit int) ([]source.RawImageRef, error) {
	if limit <= 0 {
		limit = defaultNumResults
	}
	if limit > maxNumResults {
		limit = maxNumResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))
	params.Set("type", "photo")

	body, err := c.doRequest(ctx, "/v1/images", params)
	if err != nil {
		return nil, fmt.Errorf("imagesearch %q: %w", query, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("imagesearch %q: %w: %w", query, source.ErrBadPayload, err)
	}

	refs := make([]source.RawImageRef, 0, len(resp.Results))
	for i, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		refs = append(refs, source.RawImageRef{
			URL:     r.URL,
			Width:   r.Width,
			Height:  r.Height,
			Primary: i == 0,
		})
	}
	return refs, nil
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

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Soledex/1.0")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	if c.logger != nil {
		c.logger.Debug("imagesearch request", "path", path)
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
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
		return nil, source.ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, source.ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// Raw API response types (internal)

type searchResponse struct {
	Results []rawResult `json:"results"`
}

type rawResult struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
