package search

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/soledexapp/soledex-server/internal/normalize"
)

// Params configures one catalog search.
type Params struct {
	Query string
	// Brand filters to one brand, matched on the normalized slug.
	Brand string

	// Price and release-year ranges. Zero means unbounded.
	MinPrice float64
	MaxPrice float64
	MinYear  int
	MaxYear  int

	Limit  int
	Offset int

	// SortBy is one of "relevance", "name", "price", "recent".
	SortBy    string
	SortOrder string

	IncludeFacets bool
}

// DefaultParams returns sensible search defaults.
func DefaultParams() Params {
	return Params{
		Limit:         20,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
	}
}

// Result is one page of search hits.
type Result struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []Hit        `json:"hits"`
	Brands []FacetCount `json:"brands,omitempty"`
}

// Hit is a single matching item.
type Hit struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Brand       string            `json:"brand"`
	Model       string            `json:"model,omitempty"`
	Colorway    string            `json:"colorway,omitempty"`
	SKU         string            `json:"sku,omitempty"`
	Highlights  map[string]string `json:"highlights,omitempty"`
	Score       float64           `json:"score"`
	RetailPrice float64           `json:"retail_price,omitempty"`
	ReleaseYear int               `json:"release_year,omitempty"`
}

// FacetCount is one facet value with its hit count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a catalog query.
func (s *SearchIndex) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params)

	if params.IncludeFacets {
		req.AddFacet("brand_slug", bleve.NewFacetRequest("brand_slug", 20))
	}

	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("name")
	req.Highlight.AddField("model")

	req.Fields = []string{
		"id", "name", "brand", "model", "colorway", "sku",
		"retail_price", "release_year",
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := Hit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		if v, ok := hit.Fields["name"].(string); ok {
			h.Name = v
		}
		if v, ok := hit.Fields["brand"].(string); ok {
			h.Brand = v
		}
		if v, ok := hit.Fields["model"].(string); ok {
			h.Model = v
		}
		if v, ok := hit.Fields["colorway"].(string); ok {
			h.Colorway = v
		}
		if v, ok := hit.Fields["sku"].(string); ok {
			h.SKU = v
		}
		if v, ok := hit.Fields["retail_price"].(float64); ok {
			h.RetailPrice = v
		}
		if v, ok := hit.Fields["release_year"].(float64); ok {
			h.ReleaseYear = int(v)
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		if brandFacet, ok := res.Facets["brand_slug"]; ok {
			for _, term := range brandFacet.Terms.Terms() {
				result.Brands = append(result.Brands, FacetCount{
					Value: term.Term,
					Count: term.Count,
				})
			}
		}
	}

	return result, nil
}

// buildQuery constructs the Bleve query from params.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if params.Query != "" {
		textQueries := []query.Query{}

		nameMatch := bleve.NewMatchQuery(params.Query)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)
		textQueries = append(textQueries, nameMatch)

		modelMatch := bleve.NewMatchQuery(params.Query)
		modelMatch.SetField("model")
		modelMatch.SetBoost(2.0)
		textQueries = append(textQueries, modelMatch)

		colorwayMatch := bleve.NewMatchQuery(params.Query)
		colorwayMatch.SetField("colorway")
		textQueries = append(textQueries, colorwayMatch)

		descMatch := bleve.NewMatchQuery(params.Query)
		descMatch.SetField("description")
		descMatch.SetBoost(0.5)
		textQueries = append(textQueries, descMatch)

		// A query that looks like a style code gets an exact SKU shot.
		if sku := normalize.SKU(params.Query); len(sku) >= 6 {
			skuQuery := bleve.NewTermQuery(sku)
			skuQuery.SetField("sku")
			skuQuery.SetBoost(5.0)
			textQueries = append(textQueries, skuQuery)
		}

		// Typo tolerance on the name.
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix for autocomplete (minimum 2 chars).
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.Brand != "" {
		brandQuery := bleve.NewTermQuery(normalize.Brand(params.Brand))
		brandQuery.SetField("brand_slug")
		queries = append(queries, brandQuery)
	}

	if params.MinPrice > 0 || params.MaxPrice > 0 {
		lo := params.MinPrice
		hi := params.MaxPrice
		if hi == 0 {
			hi = math.MaxFloat64
		}
		rangeQuery := bleve.NewNumericRangeQuery(&lo, &hi)
		rangeQuery.SetField("retail_price")
		queries = append(queries, rangeQuery)
	}

	if params.MinYear > 0 || params.MaxYear > 0 {
		lo := float64(params.MinYear)
		hi := float64(params.MaxYear)
		if params.MaxYear == 0 {
			hi = 3000
		}
		rangeQuery := bleve.NewNumericRangeQuery(&lo, &hi)
		rangeQuery.SetField("release_year")
		queries = append(queries, rangeQuery)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params Params) {
	switch params.SortBy {
	case "name":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-name"})
		} else {
			req.SortBy([]string{"name"})
		}
	case "price":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"retail_price"})
		} else {
			req.SortBy([]string{"-retail_price"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"created_at"})
		} else {
			req.SortBy([]string{"-created_at"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}
