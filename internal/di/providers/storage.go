package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/soledexapp/soledex-server/internal/config"
	"github.com/soledexapp/soledex-server/internal/logger"
	"github.com/soledexapp/soledex-server/internal/storage"
)

// ProvideStorageSink provides the archive sink selected by configuration.
func ProvideStorageSink(i do.Injector) (storage.Sink, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Storage.Backend {
	case "local":
		sink, err := storage.NewLocal(cfg.Storage.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("local sink: %w", err)
		}
		log.Info("Local archive sink ready", "path", cfg.Storage.LocalPath)
		return sink, nil

	case "drive":
		sink, err := storage.NewDrive(context.Background(), cfg.Storage.DriveCredentials, cfg.Storage.DriveRootID)
		if err != nil {
			return nil, fmt.Errorf("drive sink: %w", err)
		}
		log.Info("Google Drive archive sink ready", "root_id", cfg.Storage.DriveRootID)
		return sink, nil

	default:
		log.Info("Archive sink disabled")
		return storage.NoopSink{}, nil
	}
}
