package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/soledexapp/soledex-server/internal/domain"
)

const (
	pricePrefix       = "price:"
	priceByItemPrefix = "idx:prices:item:"
)

var ErrPriceNotFound = errors.New("price observation not found")

// Price Operations

// AddPriceObservation appends one price point for an item. Observations
// are append-only; the same source reporting a new price yields a new
// record rather than overwriting history.
func (s *Store) AddPriceObservation(ctx context.Context, obs *domain.PriceObservation) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(obs)
		if err != nil {
			return fmt.Errorf("marshal price observation: %w", err)
		}
		if err := txn.Set([]byte(pricePrefix+obs.ID), data); err != nil {
			return err
		}
		return txn.Set([]byte(priceByItemPrefix+obs.ItemID+":"+obs.ID), []byte(obs.ID))
	})
	if err != nil {
		return fmt.Errorf("add price observation: %w", err)
	}
	return nil
}

// GetPriceObservation retrieves a single observation by ID.
func (s *Store) GetPriceObservation(ctx context.Context, id string) (*domain.PriceObservation, error) {
	var obs domain.PriceObservation
	err := s.get([]byte(pricePrefix+id), &obs)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrPriceNotFound
		}
		return nil, fmt.Errorf("get price observation: %w", err)
	}
	return &obs, nil
}

// ListPricesByItem returns the price history for an item, newest first.
func (s *Store) ListPricesByItem(ctx context.Context, itemID string) ([]*domain.PriceObservation, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(priceByItemPrefix + itemID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list price ids: %w", err)
	}

	prices := make([]*domain.PriceObservation, 0, len(ids))
	for _, id := range ids {
		obs, err := s.GetPriceObservation(ctx, id)
		if err != nil {
			if errors.Is(err, ErrPriceNotFound) {
				continue
			}
			return nil, err
		}
		prices = append(prices, obs)
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].ObservedAt.After(prices[j].ObservedAt)
	})
	return prices, nil
}
