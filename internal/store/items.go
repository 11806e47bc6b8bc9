package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/soledexapp/soledex-server/internal/domain"
	"github.com/soledexapp/soledex-server/internal/normalize"
)

const (
	itemPrefix      = "item:"
	itemByKeyPrefix = "idx:items:key:"
	itemBySKUPrefix = "idx:items:sku:"
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrItemExists   = errors.New("item already exists")
)

// Item Operations

// CreateItem inserts a new catalog item if absent. The match-key and SKU
// index entries are checked and written inside a single transaction, so
// concurrent creates for the same sneaker race to exactly one winner; the
// losers get ErrItemExists and must re-read.
func (s *Store) CreateItem(ctx context.Context, item *domain.CanonicalItem) error {
	key := []byte(itemPrefix + item.ID)

	matchKey := normalize.ItemKey(item.Brand, item.Name)
	sku := normalize.SKU(item.SKU)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrItemExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		// Claim the unique index entries before writing the item.
		if matchKey != "" {
			keyIdx := []byte(itemByKeyPrefix + matchKey)
			if _, err := txn.Get(keyIdx); err == nil {
				return ErrItemExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(keyIdx, []byte(item.ID)); err != nil {
				return err
			}
		}

		if sku != "" {
			skuIdx := []byte(itemBySKUPrefix + sku)
			if _, err := txn.Get(skuIdx); err == nil {
				return ErrItemExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(skuIdx, []byte(item.ID)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		if errors.Is(err, ErrItemExists) {
			return ErrItemExists
		}
		// A commit conflict means another transaction claimed the same
		// index keys first; for an insert-if-absent that is an exists,
		// and the caller falls back to its match path.
		if errors.Is(err, badger.ErrConflict) {
			return ErrItemExists
		}
		return fmt.Errorf("create item: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "item created",
			slog.String("id", item.ID),
			slog.String("brand", item.Brand),
			slog.String("name", item.Name),
			slog.String("sku", item.SKU),
		)
	}

	s.indexItemAsync(item)
	return nil
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(ctx context.Context, id string) (*domain.CanonicalItem, error) {
	var item domain.CanonicalItem
	err := s.get([]byte(itemPrefix+id), &item)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// GetItemByKey retrieves an item by its normalized (brand, name) match key.
func (s *Store) GetItemByKey(ctx context.Context, brand, name string) (*domain.CanonicalItem, error) {
	matchKey := normalize.ItemKey(brand, name)
	if matchKey == "" {
		return nil, ErrItemNotFound
	}
	return s.getByIndex(ctx, itemByKeyPrefix+matchKey)
}

// GetItemBySKU retrieves an item by its normalized style code.
func (s *Store) GetItemBySKU(ctx context.Context, sku string) (*domain.CanonicalItem, error) {
	normalized := normalize.SKU(sku)
	if normalized == "" {
		return nil, ErrItemNotFound
	}
	return s.getByIndex(ctx, itemBySKUPrefix+normalized)
}

// getByIndex resolves an index key to its item.
func (s *Store) getByIndex(ctx context.Context, indexKey string) (*domain.CanonicalItem, error) {
	var itemID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			itemID = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item by index: %w", err)
	}
	return s.GetItem(ctx, itemID)
}

// UpdateItem updates an existing item and moves its index entries when the
// match key or SKU changed, which happens when enrichment fills a field
// that was previously empty.
func (s *Store) UpdateItem(ctx context.Context, item *domain.CanonicalItem) error {
	key := []byte(itemPrefix + item.ID)

	oldItem, err := s.GetItem(ctx, item.ID)
	if err != nil {
		return err
	}

	oldMatchKey := normalize.ItemKey(oldItem.Brand, oldItem.Name)
	newMatchKey := normalize.ItemKey(item.Brand, item.Name)
	oldSKU := normalize.SKU(oldItem.SKU)
	newSKU := normalize.SKU(item.SKU)

	err = s.db.Update(func(txn *badger.Txn) error {
		item.Touch()
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}

		if oldMatchKey != newMatchKey {
			if oldMatchKey != "" {
				if err := txn.Delete([]byte(itemByKeyPrefix + oldMatchKey)); err != nil {
					return err
				}
			}
			if newMatchKey != "" {
				if err := txn.Set([]byte(itemByKeyPrefix+newMatchKey), []byte(item.ID)); err != nil {
					return err
				}
			}
		}

		if oldSKU != newSKU {
			if oldSKU != "" {
				if err := txn.Delete([]byte(itemBySKUPrefix + oldSKU)); err != nil {
					return err
				}
			}
			if newSKU != "" {
				if err := txn.Set([]byte(itemBySKUPrefix+newSKU), []byte(item.ID)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("item updated", "id", item.ID, "name", item.Name)
	}

	s.indexItemAsync(item)
	return nil
}

// ListItems returns all catalog items sorted by brand then name.
func (s *Store) ListItems(ctx context.Context) ([]*domain.CanonicalItem, error) {
	var items []*domain.CanonicalItem
	err := scanPrefix(s, itemPrefix, func(item *domain.CanonicalItem) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Brand != items[j].Brand {
			return items[i].Brand < items[j].Brand
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// ListItemsByBrand returns all items whose normalized brand matches.
func (s *Store) ListItemsByBrand(ctx context.Context, brand string) ([]*domain.CanonicalItem, error) {
	want := normalize.Brand(brand)
	var items []*domain.CanonicalItem
	err := scanPrefix(s, itemPrefix, func(item *domain.CanonicalItem) error {
		if normalize.Brand(item.Brand) == want {
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list items by brand: %w", err)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// CountItems returns the number of catalog items.
func (s *Store) CountItems(ctx context.Context) (int, error) {
	return s.countPrefix(itemPrefix)
}

// indexItemAsync pushes an item into the search index without blocking
// the write path.
func (s *Store) indexItemAsync(item *domain.CanonicalItem) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		if err := s.searchIndexer.IndexItem(context.Background(), item); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to index item for search", "item_id", item.ID, "error", err)
			}
		}
	}()
}
