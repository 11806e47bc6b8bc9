// Package resolver decides whether a raw source item is a new sneaker or
// another sighting of one already in the catalog. Match order is strict:
// exact SKU, then exact (brand, name) key, then fuzzy name containment
// within the same brand. Matches enrich only empty fields; creation goes
// through the store's insert-if-absent index so concurrent workers cannot
// mint duplicates.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/soledexapp/soledex-server/internal/domain"
	"github.com/soledexapp/soledex-server/internal/id"
	"github.com/soledexapp/soledex-server/internal/normalize"
	"github.com/soledexapp/soledex-server/internal/source"
	"github.com/soledexapp/soledex-server/internal/store"
)

// Store is the catalog surface the resolver needs.
type Store interface {
	GetItemBySKU(ctx context.Context, sku string) (*domain.CanonicalItem, error)
	GetItemByKey(ctx context.Context, brand, name string) (*domain.CanonicalItem, error)
	ListItemsByBrand(ctx context.Context, brand string) ([]*domain.CanonicalItem, error)
	CreateItem(ctx context.Context, item *domain.CanonicalItem) error
	UpdateItem(ctx context.Context, item *domain.CanonicalItem) error
}

// Resolver resolves raw items against the catalog. Safe for concurrent
// use.
type Resolver struct {
	store  Store
	logger *slog.Logger
	locks  *SyncMap[string, *sync.Mutex]
}

// New creates a resolver over the catalog store.
func New(st Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  st,
		logger: logger,
		locks:  NewSyncMap[string, *sync.Mutex](),
	}
}

// Resolve maps one raw item onto the catalog. Returns the canonical item
// and whether it was created by this call. Matched items are enriched
// in place: only fields the catalog does not have yet are filled in.
func (r *Resolver) Resolve(ctx context.Context, raw source.RawItem) (*domain.CanonicalItem, bool, error) {
	if raw.Name == "" || raw.Brand == "" {
		return nil, false, fmt.Errorf("resolve: item from %s has no brand or name", raw.Source)
	}

	// Serialize per match key. The store index is the real uniqueness
	// guarantee; the lock just keeps workers from burning a create+retry
	// on every collision.
	lockKey := normalize.ItemKey(raw.Brand, raw.Name)
	mu, _ := r.locks.LoadOrStore(lockKey, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	incoming := fromRaw(raw)

	match, err := r.findMatch(ctx, raw)
	if err != nil {
		return nil, false, err
	}

	if match != nil {
		if match.EnrichFrom(incoming) {
			if err := r.store.UpdateItem(ctx, match); err != nil {
				return nil, false, fmt.Errorf("resolve: enrich %s: %w", match.ID, err)
			}
			if r.logger != nil {
				r.logger.Debug("item enriched", "id", match.ID, "source", raw.Source)
			}
		}
		return match, false, nil
	}

	incoming.ID = id.MustGenerate("item")
	incoming.InitTimestamps()

	err = r.store.CreateItem(ctx, incoming)
	if err == nil {
		return incoming, true, nil
	}
	if !errors.Is(err, store.ErrItemExists) {
		return nil, false, fmt.Errorf("resolve: create: %w", err)
	}

	// Lost the insert race to a worker resolving under a different lock
	// key (SKU collision). Re-read and enrich the winner.
	match, err = r.findMatch(ctx, raw)
	if err != nil {
		return nil, false, err
	}
	if match == nil {
		return nil, false, fmt.Errorf("resolve: item vanished after create conflict")
	}
	if match.EnrichFrom(incoming) {
		if err := r.store.UpdateItem(ctx, match); err != nil {
			return nil, false, fmt.Errorf("resolve: enrich %s: %w", match.ID, err)
		}
	}
	return match, false, nil
}

// findMatch runs the match ladder: SKU, exact key, fuzzy containment.
func (r *Resolver) findMatch(ctx context.Context, raw source.RawItem) (*domain.CanonicalItem, error) {
	if raw.SKU != "" {
		item, err := r.store.GetItemBySKU(ctx, raw.SKU)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, store.ErrItemNotFound) {
			return nil, fmt.Errorf("resolve: sku lookup: %w", err)
		}
	}

	item, err := r.store.GetItemByKey(ctx, raw.Brand, raw.Name)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, store.ErrItemNotFound) {
		return nil, fmt.Errorf("resolve: key lookup: %w", err)
	}

	return r.findFuzzy(ctx, raw)
}

// findFuzzy scans the brand's items for mutual name containment:
// "Air Jordan 1 Retro High OG Chicago" matches "Air Jordan 1 Retro High
// OG". Containment only; distance scoring over short product names causes
// more false merges than it prevents.
func (r *Resolver) findFuzzy(ctx context.Context, raw source.RawItem) (*domain.CanonicalItem, error) {
	candidates, err := r.store.ListItemsByBrand(ctx, raw.Brand)
	if err != nil {
		return nil, fmt.Errorf("resolve: brand scan: %w", err)
	}

	for _, c := range candidates {
		if normalize.ContainsName(c.Name, raw.Name) {
			return c, nil
		}
	}
	return nil, nil
}

// fromRaw converts a raw sighting into a canonical item shell.
func fromRaw(raw source.RawItem) *domain.CanonicalItem {
	item := &domain.CanonicalItem{
		Name:        raw.Name,
		Brand:       raw.Brand,
		Model:       raw.Model,
		Colorway:    raw.Colorway,
		SKU:         raw.SKU,
		RetailPrice: raw.Price,
		ReleaseDate: raw.ReleaseDate,
		Description: raw.Description,
	}
	if raw.Source != "" {
		item.Sources = []string{raw.Source}
	}
	return item
}
