package domain

import "time"

// PriceObservation records one sighting of a price for an item on a source.
// Observations are append-only; the read API serves the latest one per
// source.
type PriceObservation struct {
	Tracked
	ItemID     string    `json:"item_id"`
	Source     string    `json:"source"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency,omitempty"`
	Kind       string    `json:"kind,omitempty"` // retail, resell, listing
	ObservedAt time.Time `json:"observed_at"`
}
