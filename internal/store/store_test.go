package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soledexapp/soledex-server/internal/domain"
	"github.com/soledexapp/soledex-server/internal/id"
)

// setupTestStore creates a store backed by a temp directory, cleaned up
// with the test.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

// testItem builds a minimal valid catalog item.
func testItem(t *testing.T, brand, name, sku string) *domain.CanonicalItem {
	t.Helper()

	item := &domain.CanonicalItem{
		Name:  name,
		Brand: brand,
		SKU:   sku,
	}
	item.ID = id.MustGenerate("item")
	item.InitTimestamps()
	return item
}

// testImage builds a minimal accepted image for an item.
func testImage(t *testing.T, itemID, byteHash string) *domain.AcceptedImage {
	t.Helper()

	img := &domain.AcceptedImage{
		ItemID:    itemID,
		SourceURL: "https://img.example.com/" + byteHash + ".jpg",
		Source:    "stockapi",
		Hashes: domain.ImageHashes{
			ByteHash: byteHash,
			AHash:    0xff00ff00ff00ff00,
			DHash:    0x00ff00ff00ff00ff,
		},
		Width:    800,
		Height:   600,
		ByteSize: 48_000,
		Role:     domain.RoleDetail,
	}
	img.ID = id.MustGenerate("img")
	img.InitTimestamps()
	return img
}
