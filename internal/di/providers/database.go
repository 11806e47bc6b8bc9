package providers

import (
	"github.com/samber/do/v2"

	"github.com/soledexapp/soledex-server/internal/config"
	"github.com/soledexapp/soledex-server/internal/logger"
	"github.com/soledexapp/soledex-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the catalog store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.Data.StorePath()
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Catalog store initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}
