package providers

import (
	"github.com/samber/do/v2"

	"github.com/soledexapp/soledex-server/internal/budget"
	"github.com/soledexapp/soledex-server/internal/config"
	"github.com/soledexapp/soledex-server/internal/logger"
	"github.com/soledexapp/soledex-server/internal/source"
	"github.com/soledexapp/soledex-server/internal/source/imagesearch"
	"github.com/soledexapp/soledex-server/internal/source/market"
	"github.com/soledexapp/soledex-server/internal/source/stockapi"
)

// SourceRegistry groups the configured upstream providers.
type SourceRegistry struct {
	Adapters       map[string]source.Adapter
	ImageSearchers map[string]source.ImageSearcher
}

// ProvideSources provides the adapter registry.
func ProvideSources(i do.Injector) (*SourceRegistry, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var stockOpts []stockapi.Option
	if cfg.Sources.StockAPIBaseURL != "" {
		stockOpts = append(stockOpts, stockapi.WithBaseURL(cfg.Sources.StockAPIBaseURL))
	}
	var marketOpts []market.Option
	if cfg.Sources.MarketBaseURL != "" {
		marketOpts = append(marketOpts, market.WithBaseURL(cfg.Sources.MarketBaseURL))
	}
	imageOpts := []imagesearch.Option{imagesearch.WithAPIKey(cfg.Sources.ImageSearchAPIKey)}
	if cfg.Sources.ImageSearchBaseURL != "" {
		imageOpts = append(imageOpts, imagesearch.WithBaseURL(cfg.Sources.ImageSearchBaseURL))
	}

	registry := &SourceRegistry{
		Adapters: map[string]source.Adapter{
			stockapi.SourceName: stockapi.New(log.Logger, stockOpts...),
			market.SourceName:   market.New(log.Logger, marketOpts...),
		},
		ImageSearchers: map[string]source.ImageSearcher{
			imagesearch.SourceName: imagesearch.New(log.Logger, imageOpts...),
		},
	}

	log.Info("Source adapters ready",
		"adapters", len(registry.Adapters),
		"image_searchers", len(registry.ImageSearchers),
	)
	return registry, nil
}

// ProvideBudgetTracker provides the per-source request budget tracker.
func ProvideBudgetTracker(i do.Injector) (*budget.Tracker, error) {
	cfg := do.MustInvoke[*config.Config](i)

	tracker := budget.New(budget.SourceConfig{})
	tracker.Configure(stockapi.SourceName, budget.SourceConfig{
		MaxRequests: cfg.Budgets.StockAPI.MaxRequests,
		MinInterval: cfg.Budgets.StockAPI.MinInterval,
	})
	tracker.Configure(market.SourceName, budget.SourceConfig{
		MaxRequests: cfg.Budgets.Market.MaxRequests,
		MinInterval: cfg.Budgets.Market.MinInterval,
	})
	tracker.Configure(imagesearch.SourceName, budget.SourceConfig{
		MaxRequests: cfg.Budgets.ImageSearch.MaxRequests,
		MinInterval: cfg.Budgets.ImageSearch.MinInterval,
	})
	return tracker, nil
}
