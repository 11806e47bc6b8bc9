// Package main is a read-only inspection tool for the Soledex catalog
// database. It walks the raw badger keyspace and prints summary counts,
// useful when debugging a run without starting the API server.
package main

import (
	"encoding/json/v2"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/soledexapp/soledex-server/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Soledex/data/catalog")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Catalog Inspection ===")
	fmt.Println()

	itemCount := 0
	itemsWithSKU := 0
	brandCounts := make(map[string]int)

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("item:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var item domain.CanonicalItem
				if err := json.Unmarshal(val, &item); err != nil {
					return err
				}
				itemCount++
				if item.SKU != "" {
					itemsWithSKU++
				}
				brandCounts[item.Brand]++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan items: %v", err)
	}

	imageCount, archived := 0, 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("image:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var img domain.AcceptedImage
				if err := json.Unmarshal(val, &img); err != nil {
					return err
				}
				imageCount++
				if img.StorageRef != "" {
					archived++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan images: %v", err)
	}

	priceCount := countPrefix(db, "price:")
	runCount := countPrefix(db, "run:")
	indexCount := countPrefix(db, "idx:")

	fmt.Printf("Items:  %d total, %d with SKU\n", itemCount, itemsWithSKU)
	for brand, count := range brandCounts {
		fmt.Printf("  %-20s %d\n", brand, count)
	}
	fmt.Println()
	fmt.Printf("Images: %d total, %d archived, %d pending upload\n", imageCount, archived, imageCount-archived)
	fmt.Printf("Prices: %d observations\n", priceCount)
	fmt.Printf("Runs:   %d reports\n", runCount)
	fmt.Printf("Index entries: %d\n", indexCount)

	if itemCount > 0 && imageCount == 0 {
		fmt.Println()
		fmt.Println(strings.Repeat("-", 40))
		fmt.Println("Note: items exist but no images were accepted; check the latest run report's reject reasons.")
	}
}

func countPrefix(db *badger.DB, prefix string) int {
	count := 0
	_ = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			count++
		}
		return nil
	})
	return count
}
