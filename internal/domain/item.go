// Package domain contains the core business entities for the Soledex sneaker catalog.
package domain

import (
	"strings"
	"time"
)

// CanonicalItem is the normalized, source-independent representation of one
// sneaker in the catalog.
//
// Uniqueness invariant: the normalized (brand, name) pair is unique across
// the catalog, and so is the normalized SKU when present. Both are enforced
// by the store's insert-if-absent indexes; the resolver relies on that to
// stay idempotent across runs.
//
// Items are never deleted by the pipeline. Deletion is an external curation
// action.
type CanonicalItem struct {
	Tracked
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Model       string    `json:"model,omitempty"`
	Colorway    string    `json:"colorway,omitempty"`
	SKU         string    `json:"sku,omitempty"`
	RetailPrice float64   `json:"retail_price,omitempty"`
	ReleaseDate time.Time `json:"release_date,omitzero"`
	Description string    `json:"description,omitempty"`

	// Sources lists every source that has contributed to this item.
	Sources []string `json:"sources,omitempty"`
}

// EnrichFrom fills empty fields on the item from another sighting of the
// same sneaker. Populated fields are never overwritten; a later, poorer
// source must not clobber data from a richer one. Returns true if anything
// changed.
func (c *CanonicalItem) EnrichFrom(other *CanonicalItem) bool {
	changed := false

	if c.Model == "" && other.Model != "" {
		c.Model = other.Model
		changed = true
	}
	if c.Colorway == "" && other.Colorway != "" {
		c.Colorway = other.Colorway
		changed = true
	}
	if c.SKU == "" && other.SKU != "" {
		c.SKU = other.SKU
		changed = true
	}
	if c.RetailPrice == 0 && other.RetailPrice != 0 {
		c.RetailPrice = other.RetailPrice
		changed = true
	}
	if c.ReleaseDate.IsZero() && !other.ReleaseDate.IsZero() {
		c.ReleaseDate = other.ReleaseDate
		changed = true
	}
	if c.Description == "" && other.Description != "" {
		c.Description = other.Description
		changed = true
	}

	for _, src := range other.Sources {
		if src != "" && !c.HasSource(src) {
			c.Sources = append(c.Sources, src)
			changed = true
		}
	}

	if changed {
		c.Touch()
	}
	return changed
}

// HasSource reports whether the given source already contributed to this item.
func (c *CanonicalItem) HasSource(source string) bool {
	for _, s := range c.Sources {
		if strings.EqualFold(s, source) {
			return true
		}
	}
	return false
}
