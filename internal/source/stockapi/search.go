package stockapi

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"net/url"
	"strconv"

	"github.com/soledexapp/soledex-server/internal/normalize"
	"github.com/soledexapp/soledex-server/internal/source"
)

// Search implements source.Adapter. Results come back already normalized
// into neutral RawItem records.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]source.RawItem, error) {
	if limit <= 0 {
		limit = defaultNumResults
	}
	if limit > maxNumResults {
		limit = maxNumResults
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doRequest(ctx, "/v2/search", params)
	if err != nil {
		return nil, fmt.Errorf("stockapi search %q: %w", query, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("stockapi search %q: %w: %w", query, source.ErrBadPayload, err)
	}

	items := make([]source.RawItem, 0, len(resp.Products))
	for _, p := range resp.Products {
		items = append(items, p.toRawItem(query))
	}
	return items, nil
}

// toRawItem maps one wire product to the neutral record.
func (p *rawProduct) toRawItem(query string) source.RawItem {
	item := source.RawItem{
		Name:        p.Title,
		Brand:       p.Brand,
		Model:       p.Model,
		Colorway:    p.Colorway,
		SKU:         p.StyleID,
		Description: p.Description,
		Currency:    p.Currency,
		Source:      SourceName,
		Query:       query,
		Price:       p.RetailPrice,
		ReleaseDate: normalize.ParseReleaseDate(p.ReleaseDate),
	}
	if item.Currency == "" && item.Price > 0 {
		item.Currency = "USD"
	}

	if p.Media.ImageURL != "" {
		item.Images = append(item.Images, source.RawImageRef{
			URL:     p.Media.ImageURL,
			Primary: true,
		})
	}
	for _, u := range p.Media.GalleryURLs {
		if u != "" && u != p.Media.ImageURL {
			item.Images = append(item.Images, source.RawImageRef{URL: u})
		}
	}
	return item
}
