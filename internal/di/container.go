// Package di provides dependency injection configuration for the Soledex server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/soledexapp/soledex-server/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Data layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideStorageSink)

	// Pipeline
	do.Provide(injector, providers.ProvideSources)
	do.Provide(injector, providers.ProvideBudgetTracker)
	do.Provide(injector, providers.ProvideDedupEngine)
	do.Provide(injector, providers.ProvideQualityGate)
	do.Provide(injector, providers.ProvideResolver)
	do.Provide(injector, providers.ProvideDownloader)
	do.Provide(injector, providers.ProvideIngestDeps)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}
