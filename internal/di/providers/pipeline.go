package providers

import (
	"github.com/samber/do/v2"

	"github.com/soledexapp/soledex-server/internal/budget"
	"github.com/soledexapp/soledex-server/internal/config"
	"github.com/soledexapp/soledex-server/internal/dedup"
	"github.com/soledexapp/soledex-server/internal/ingest"
	"github.com/soledexapp/soledex-server/internal/logger"
	"github.com/soledexapp/soledex-server/internal/media/images"
	"github.com/soledexapp/soledex-server/internal/quality"
	"github.com/soledexapp/soledex-server/internal/resolver"
	"github.com/soledexapp/soledex-server/internal/storage"
)

// ProvideDedupEngine provides the content dedup engine.
func ProvideDedupEngine(i do.Injector) (*dedup.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return dedup.NewEngine(dedup.Config{
		Threshold:  cfg.Dedup.Threshold,
		WindowSize: cfg.Dedup.WindowSize,
	}), nil
}

// ProvideQualityGate provides the image quality gate.
func ProvideQualityGate(i do.Injector) (*quality.Gate, error) {
	cfg := do.MustInvoke[*config.Config](i)

	gateCfg := quality.DefaultConfig()
	gateCfg.MinBytes = cfg.Quality.MinBytes
	gateCfg.MaxBytes = cfg.Quality.MaxBytes
	gateCfg.MinPixels = cfg.Quality.MinPixels
	gateCfg.MinSharpness = cfg.Quality.MinSharpness
	gateCfg.MaxEdgeRatio = cfg.Quality.MaxEdgeRatio
	gateCfg.MinAspect = cfg.Quality.MinAspect
	gateCfg.MaxAspect = cfg.Quality.MaxAspect
	return quality.NewGate(gateCfg), nil
}

// ProvideResolver provides the entity resolver.
func ProvideResolver(i do.Injector) (*resolver.Resolver, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	return resolver.New(storeHandle.Store, log.Logger), nil
}

// ProvideDownloader provides the image downloader.
func ProvideDownloader(i do.Injector) (*images.Downloader, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return images.NewDownloader(log.Logger), nil
}

// ProvideIngestDeps assembles the coordinator dependencies. The coordinator
// itself is single-use, so callers construct one per run from these.
func ProvideIngestDeps(i do.Injector) (ingest.Deps, error) {
	registry := do.MustInvoke[*SourceRegistry](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	return ingest.Deps{
		Adapters:       registry.Adapters,
		ImageSearchers: registry.ImageSearchers,
		Budget:         do.MustInvoke[*budget.Tracker](i),
		Resolver:       do.MustInvoke[*resolver.Resolver](i),
		Catalog:        storeHandle.Store,
		Dedup:          do.MustInvoke[*dedup.Engine](i),
		Gate:           do.MustInvoke[*quality.Gate](i),
		Fetcher:        do.MustInvoke[*images.Downloader](i),
		Sink:           do.MustInvoke[storage.Sink](i),
	}, nil
}
