package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/soledexapp/soledex-server/internal/config"
	"github.com/soledexapp/soledex-server/internal/logger"
	"github.com/soledexapp/soledex-server/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the item search index, wired into the store
// so catalog writes are indexed as they land.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	idx, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Data.SearchPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}
	storeHandle.SetSearchIndexer(idx)

	// A freshly created index needs a backfill from the store.
	count, err := idx.DocumentCount()
	if err == nil && count == 0 {
		items, listErr := storeHandle.ListItems(context.Background())
		if listErr == nil && len(items) > 0 {
			if indexErr := idx.IndexItems(items); indexErr != nil {
				log.Warn("Search backfill failed", "error", indexErr)
			} else {
				log.Info("Search index backfilled", "items", len(items))
			}
		}
	}

	return &SearchIndexHandle{SearchIndex: idx}, nil
}
