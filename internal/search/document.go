// Package search provides full-text catalog search using Bleve: fuzzy
// name matching, brand filtering and price/year range queries over the
// item index.
package search

import (
	"github.com/soledexapp/soledex-server/internal/domain"
	"github.com/soledexapp/soledex-server/internal/normalize"
)

// ItemDocument is the Bleve document for one catalog item. Brand is
// carried twice: as analyzed text for free queries and as a normalized
// keyword slug for exact filtering.
type ItemDocument struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	BrandSlug   string  `json:"brand_slug"`
	Model       string  `json:"model,omitempty"`
	Colorway    string  `json:"colorway,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	Description string  `json:"description,omitempty"`
	RetailPrice float64 `json:"retail_price,omitempty"`
	ReleaseYear int     `json:"release_year,omitempty"`
	CreatedAt   int64   `json:"created_at"`
}

// DocumentFromItem builds the index document for a catalog item.
func DocumentFromItem(item *domain.CanonicalItem) *ItemDocument {
	doc := &ItemDocument{
		ID:          item.ID,
		Name:        item.Name,
		Brand:       item.Brand,
		BrandSlug:   normalize.Brand(item.Brand),
		Model:       item.Model,
		Colorway:    item.Colorway,
		SKU:         normalize.SKU(item.SKU),
		Description: item.Description,
		RetailPrice: item.RetailPrice,
		CreatedAt:   item.CreatedAt.Unix(),
	}
	if !item.ReleaseDate.IsZero() {
		doc.ReleaseYear = item.ReleaseDate.Year()
	}
	return doc
}

// ToMap converts the document to a map so field names line up with the
// lowercase names in the index mapping.
func (d *ItemDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"brand":      d.Brand,
		"brand_slug": d.BrandSlug,
		"created_at": d.CreatedAt,
	}
	if d.Model != "" {
		m["model"] = d.Model
	}
	if d.Colorway != "" {
		m["colorway"] = d.Colorway
	}
	if d.SKU != "" {
		m["sku"] = d.SKU
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.RetailPrice > 0 {
		m["retail_price"] = d.RetailPrice
	}
	if d.ReleaseYear > 0 {
		m["release_year"] = d.ReleaseYear
	}
	return m
}
