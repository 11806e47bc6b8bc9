// Package main provides the entry point for the Soledex read API server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/soledexapp/soledex-server/internal/di"
	"github.com/soledexapp/soledex-server/internal/di/providers"
	"github.com/soledexapp/soledex-server/internal/logger"
)

func main() {
	injector := di.NewContainer()

	server, err := do.Invoke[*providers.HTTPServerHandle](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
	server.Start()

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	if err := server.Shutdown(); err != nil {
		log.Error("Server shutdown error", "error", err)
	}

	// The container shuts down the store and search index wrappers.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Catalog closed, goodbye")
}
