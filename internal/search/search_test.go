package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soledexapp/soledex-server/internal/domain"
)

func setupIndex(t *testing.T) *SearchIndex {
	t.Helper()

	idx, err := NewSearchIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, idx.Close())
	})
	return idx
}

func indexedItem(id, name, brand, sku string, price float64, year int) *domain.CanonicalItem {
	item := &domain.CanonicalItem{
		Name:        name,
		Brand:       brand,
		SKU:         sku,
		RetailPrice: price,
	}
	item.ID = id
	if year > 0 {
		item.ReleaseDate = time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	item.InitTimestamps()
	return item
}

func seedIndex(t *testing.T, idx *SearchIndex) {
	t.Helper()

	items := []*domain.CanonicalItem{
		indexedItem("item-1", "Air Max 90 Infrared", "Nike", "CT1685-100", 130, 2020),
		indexedItem("item-2", "Dunk Low Retro Panda", "Nike", "DD1391-100", 110, 2021),
		indexedItem("item-3", "Samba OG", "Adidas", "B75806", 100, 2018),
		indexedItem("item-4", "Yeezy Boost 350 V2 Zebra", "Adidas", "CP9654", 220, 2017),
	}
	require.NoError(t, idx.IndexItems(items))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	require.Equal(t, uint64(4), count)
}

func TestSearchByName(t *testing.T) {
	idx := setupIndex(t)
	seedIndex(t, idx)

	params := DefaultParams()
	params.Query = "air max"

	res, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "item-1", res.Hits[0].ID)
	assert.Equal(t, "Nike", res.Hits[0].Brand)
	assert.Equal(t, 130.0, res.Hits[0].RetailPrice)
}

func TestSearchBySKU(t *testing.T) {
	idx := setupIndex(t)
	seedIndex(t, idx)

	params := DefaultParams()
	params.Query = "DD1391-100"

	res, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "item-2", res.Hits[0].ID)
}

func TestSearchBrandFilter(t *testing.T) {
	idx := setupIndex(t)
	seedIndex(t, idx)

	params := DefaultParams()
	params.Brand = "Adidas"

	res, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.Total)
	for _, hit := range res.Hits {
		assert.Equal(t, "Adidas", hit.Brand)
	}

	// Facets report brand distribution for the result set.
	require.NotEmpty(t, res.Brands)
	assert.Equal(t, "adidas", res.Brands[0].Value)
	assert.Equal(t, 2, res.Brands[0].Count)
}

func TestSearchPriceRange(t *testing.T) {
	idx := setupIndex(t)
	seedIndex(t, idx)

	params := DefaultParams()
	params.MinPrice = 105
	params.MaxPrice = 150

	res, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	assert.ElementsMatch(t, []string{"item-1", "item-2"}, ids)
}

func TestSearchYearRange(t *testing.T) {
	idx := setupIndex(t)
	seedIndex(t, idx)

	params := DefaultParams()
	params.MinYear = 2020

	res, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	assert.ElementsMatch(t, []string{"item-1", "item-2"}, ids)
}

func TestSearchSortByPrice(t *testing.T) {
	idx := setupIndex(t)
	seedIndex(t, idx)

	params := DefaultParams()
	params.SortBy = "price"
	params.SortOrder = "desc"
	params.IncludeFacets = false

	res, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, res.Hits, 4)
	assert.Equal(t, "item-4", res.Hits[0].ID)
	assert.Equal(t, "item-3", res.Hits[3].ID)
}

func TestDeleteItem(t *testing.T) {
	idx := setupIndex(t)
	seedIndex(t, idx)

	require.NoError(t, idx.DeleteItem(context.Background(), "item-1"))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestIndexItemUpdatesInPlace(t *testing.T) {
	idx := setupIndex(t)
	ctx := context.Background()

	item := indexedItem("item-9", "Air Force 1 Low", "Nike", "", 90, 0)
	require.NoError(t, idx.IndexItem(ctx, item))

	// Reindexing the same ID replaces, not duplicates.
	item.RetailPrice = 100
	require.NoError(t, idx.IndexItem(ctx, item))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestRebuild(t *testing.T) {
	idx := setupIndex(t)
	seedIndex(t, idx)

	require.NoError(t, idx.Rebuild())

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	// The rebuilt index accepts writes again.
	require.NoError(t, idx.IndexItem(context.Background(), indexedItem("item-1", "Air Max 90", "Nike", "", 130, 2020)))
}
