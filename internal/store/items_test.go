package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetItem(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	item := testItem(t, "Nike", "Air Max 90", "DD1391-100")
	require.NoError(t, s.CreateItem(ctx, item))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Name, got.Name)
	assert.Equal(t, item.Brand, got.Brand)
	assert.Equal(t, item.SKU, got.SKU)
}

func TestGetItemNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetItem(context.Background(), "item-missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestCreateItemDuplicateKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := testItem(t, "Nike", "Air Max 90", "")
	require.NoError(t, s.CreateItem(ctx, first))

	// Same sneaker under a differently-cased name must lose the race.
	second := testItem(t, "NIKE", "air  max 90", "")
	err := s.CreateItem(ctx, second)
	assert.ErrorIs(t, err, ErrItemExists)

	// The loser must not have left a record behind.
	_, err = s.GetItem(ctx, second.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestCreateItemDuplicateSKU(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := testItem(t, "Nike", "Air Max 90", "DD1391-100")
	require.NoError(t, s.CreateItem(ctx, first))

	second := testItem(t, "Nike", "Air Max 90 OG", "dd1391 100")
	assert.ErrorIs(t, s.CreateItem(ctx, second), ErrItemExists)
}

func TestCreateItemConcurrentSameSKU(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Different (brand, name) keys, one SKU: racing commits collide on
	// the SKU index. Every loser must see ErrItemExists, whether it lost
	// on the index read or on a transaction conflict at commit.
	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item := testItem(t, "Nike", fmt.Sprintf("Air Max 90 Variant %d", i), "DD1391-100")
			errs[i] = s.CreateItem(ctx, item)
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrItemExists)
	}
	assert.Equal(t, 1, created)

	count, err := s.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetItemByKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	item := testItem(t, "Adidas", "Samba OG", "")
	require.NoError(t, s.CreateItem(ctx, item))

	got, err := s.GetItemByKey(ctx, "ADIDAS", "samba  og")
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	_, err = s.GetItemByKey(ctx, "Adidas", "Gazelle")
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = s.GetItemByKey(ctx, "", "Samba OG")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestGetItemBySKU(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	item := testItem(t, "Nike", "Dunk Low", "DD1391-100")
	require.NoError(t, s.CreateItem(ctx, item))

	got, err := s.GetItemBySKU(ctx, "dd1391-100")
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	_, err = s.GetItemBySKU(ctx, "XX0000-000")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestUpdateItemMovesIndexes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	item := testItem(t, "Nike", "Dunk Low", "")
	require.NoError(t, s.CreateItem(ctx, item))

	// Enrichment fills in the SKU later.
	item.SKU = "DD1391-100"
	require.NoError(t, s.UpdateItem(ctx, item))

	got, err := s.GetItemBySKU(ctx, "DD1391-100")
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	// The match key index still resolves.
	got, err = s.GetItemByKey(ctx, "Nike", "Dunk Low")
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
}

func TestListItems(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateItem(ctx, testItem(t, "Nike", "Dunk Low", "")))
	require.NoError(t, s.CreateItem(ctx, testItem(t, "Adidas", "Samba OG", "")))
	require.NoError(t, s.CreateItem(ctx, testItem(t, "Nike", "Air Max 90", "")))

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Samba OG", items[0].Name)
	assert.Equal(t, "Air Max 90", items[1].Name)
	assert.Equal(t, "Dunk Low", items[2].Name)

	nikes, err := s.ListItemsByBrand(ctx, "nike")
	require.NoError(t, err)
	require.Len(t, nikes, 2)

	count, err := s.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
