package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soledexapp/soledex-server/internal/domain"
	"github.com/soledexapp/soledex-server/internal/id"
)

func TestAddAndListImages(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	item := testItem(t, "Nike", "Air Max 90", "")
	require.NoError(t, s.CreateItem(ctx, item))

	detail := testImage(t, item.ID, "hash-a")
	require.NoError(t, s.AddImage(ctx, detail))

	primary := testImage(t, item.ID, "hash-b")
	primary.Role = domain.RolePrimary
	require.NoError(t, s.AddImage(ctx, primary))

	images, err := s.ListImagesByItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, domain.RolePrimary, images[0].Role)

	count, err := s.CountImagesByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAddImageDuplicateBytes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	item := testItem(t, "Nike", "Air Max 90", "")
	require.NoError(t, s.CreateItem(ctx, item))

	require.NoError(t, s.AddImage(ctx, testImage(t, item.ID, "hash-a")))

	// The exact same bytes for another item are refused.
	other := testItem(t, "Nike", "Dunk Low", "")
	require.NoError(t, s.CreateItem(ctx, other))
	assert.ErrorIs(t, s.AddImage(ctx, testImage(t, other.ID, "hash-a")), ErrImageExists)

	has, err := s.HasImageBytes(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasImageBytes(ctx, "hash-z")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestItemImageHashes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	item := testItem(t, "Nike", "Air Max 90", "")
	require.NoError(t, s.CreateItem(ctx, item))

	img := testImage(t, item.ID, "hash-a")
	require.NoError(t, s.AddImage(ctx, img))

	hashes, err := s.ItemImageHashes(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	assert.Equal(t, img.ID, hashes[0].ImageID)
	assert.Equal(t, "hash-a", hashes[0].ByteHash)
	assert.Equal(t, img.Hashes.AHash, hashes[0].AHash)

	// Another item's comparison set stays empty.
	hashes, err = s.ItemImageHashes(ctx, "item-other")
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestSetImageStorageRef(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	img := testImage(t, "item-1", "hash-a")
	require.NoError(t, s.AddImage(ctx, img))

	require.NoError(t, s.SetImageStorageRef(ctx, img.ID, "drive:abc123"))

	got, err := s.GetImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "drive:abc123", got.StorageRef)

	assert.ErrorIs(t, s.SetImageStorageRef(ctx, "img-missing", "x"), ErrImageNotFound)
}

func TestPriceObservations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, price := range []float64{120, 135, 110} {
		obs := &domain.PriceObservation{
			ItemID:     "item-1",
			Source:     "stockapi",
			Price:      price,
			Currency:   "USD",
			ObservedAt: now.Add(time.Duration(i) * time.Hour),
		}
		obs.ID = id.MustGenerate("price")
		obs.InitTimestamps()
		require.NoError(t, s.AddPriceObservation(ctx, obs))
	}

	prices, err := s.ListPricesByItem(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, prices, 3)

	// Newest first.
	assert.Equal(t, 110.0, prices[0].Price)
	assert.Equal(t, 120.0, prices[2].Price)

	prices, err = s.ListPricesByItem(ctx, "item-2")
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestRunReports(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stats := domain.NewRunStats()
	stats.ItemSeen()
	stats.ItemCreated()
	stats.QualityRejected("too_small")

	report := &domain.RunReport{
		ID:        id.MustGenerate("run"),
		State:     domain.RunCompleted,
		StartedAt: time.Now().UTC().Add(-time.Minute),
		EndedAt:   time.Now().UTC(),
		Stats:     stats.Snapshot(),
	}
	require.NoError(t, s.SaveRunReport(ctx, report))

	got, err := s.GetRunReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, got.State)
	assert.Equal(t, int64(1), got.Stats.ItemsCreated)
	assert.Equal(t, int64(1), got.Stats.RejectReasons["too_small"])

	older := &domain.RunReport{
		ID:        id.MustGenerate("run"),
		State:     domain.RunCancelled,
		StartedAt: time.Now().UTC().Add(-time.Hour),
		EndedAt:   time.Now().UTC().Add(-50 * time.Minute),
	}
	require.NoError(t, s.SaveRunReport(ctx, older))

	reports, err := s.ListRunReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, report.ID, reports[0].ID)

	_, err = s.GetRunReport(ctx, "run-missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
