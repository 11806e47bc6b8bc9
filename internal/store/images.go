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
)

const (
	imagePrefix           = "image:"
	imageByItemPrefix     = "idx:images:item:"
	imageByByteHashPrefix = "idx:images:bytehash:"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrImageExists   = errors.New("image already exists")
)

// Image Operations

// AddImage persists an accepted image together with its per-item index
// entry and its byte-hash index entry. A byte-hash collision means the
// exact bytes are already cataloged and yields ErrImageExists.
func (s *Store) AddImage(ctx context.Context, img *domain.AcceptedImage) error {
	key := []byte(imagePrefix + img.ID)

	err := s.db.Update(func(txn *badger.Txn) error {
		if img.Hashes.ByteHash != "" {
			hashKey := []byte(imageByByteHashPrefix + img.Hashes.ByteHash)
			if _, err := txn.Get(hashKey); err == nil {
				return ErrImageExists
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(hashKey, []byte(img.ID)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(img)
		if err != nil {
			return fmt.Errorf("marshal image: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}

		itemKey := []byte(imageByItemPrefix + img.ItemID + ":" + img.ID)
		return txn.Set(itemKey, []byte(img.ID))
	})
	if err != nil {
		if errors.Is(err, ErrImageExists) {
			return ErrImageExists
		}
		// Two workers racing the same byte hash surface as a commit
		// conflict; the bytes are cataloged either way.
		if errors.Is(err, badger.ErrConflict) {
			return ErrImageExists
		}
		return fmt.Errorf("add image: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "image added",
			slog.String("id", img.ID),
			slog.String("item_id", img.ItemID),
			slog.String("source", img.Source),
			slog.Int64("bytes", img.ByteSize),
		)
	}
	return nil
}

// GetImage retrieves an image record by ID.
func (s *Store) GetImage(ctx context.Context, id string) (*domain.AcceptedImage, error) {
	var img domain.AcceptedImage
	err := s.get([]byte(imagePrefix+id), &img)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

// ListImagesByItem returns every accepted image for one item, primary
// role first.
func (s *Store) ListImagesByItem(ctx context.Context, itemID string) ([]*domain.AcceptedImage, error) {
	ids, err := s.imageIDsForItem(itemID)
	if err != nil {
		return nil, err
	}

	images := make([]*domain.AcceptedImage, 0, len(ids))
	for _, id := range ids {
		img, err := s.GetImage(ctx, id)
		if err != nil {
			if errors.Is(err, ErrImageNotFound) {
				continue
			}
			return nil, err
		}
		images = append(images, img)
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].Role == domain.RolePrimary && images[j].Role != domain.RolePrimary
	})
	return images, nil
}

// ItemImageHashes returns the hash sets of every image already stored for
// an item. This is the comparison set for duplicate detection.
func (s *Store) ItemImageHashes(ctx context.Context, itemID string) ([]domain.ImageHashes, error) {
	images, err := s.ListImagesByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	hashes := make([]domain.ImageHashes, 0, len(images))
	for _, img := range images {
		h := img.Hashes
		h.ImageID = img.ID
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// HasImageBytes reports whether the exact bytes are already cataloged,
// across all items.
func (s *Store) HasImageBytes(ctx context.Context, byteHash string) (bool, error) {
	if byteHash == "" {
		return false, nil
	}
	return s.exists([]byte(imageByByteHashPrefix + byteHash))
}

// SetImageStorageRef records where the image bytes landed in the sink.
func (s *Store) SetImageStorageRef(ctx context.Context, id, ref string) error {
	img, err := s.GetImage(ctx, id)
	if err != nil {
		return err
	}
	img.StorageRef = ref
	img.Touch()
	if err := s.set([]byte(imagePrefix+id), img); err != nil {
		return fmt.Errorf("set image storage ref: %w", err)
	}
	return nil
}

// CountImages returns the total number of accepted images.
func (s *Store) CountImages(ctx context.Context) (int, error) {
	return s.countPrefix(imagePrefix)
}

// CountImagesByItem returns the number of accepted images for one item.
func (s *Store) CountImagesByItem(ctx context.Context, itemID string) (int, error) {
	return s.countPrefix(imageByItemPrefix + itemID + ":")
}

// imageIDsForItem reads the per-item index.
func (s *Store) imageIDsForItem(itemID string) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(imageByItemPrefix + itemID + ":")
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
		return nil, fmt.Errorf("list image ids: %w", err)
	}
	return ids, nil
}
