package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/soledexapp/soledex-server/internal/api"
	"github.com/soledexapp/soledex-server/internal/config"
	"github.com/soledexapp/soledex-server/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerHandle wraps the HTTP server with lifecycle management.
type HTTPServerHandle struct {
	Server *http.Server
	log    *logger.Logger
}

// Start begins serving in a background goroutine.
func (h *HTTPServerHandle) Start() {
	go func() {
		h.log.Info("API server listening", "addr", h.Server.Addr)
		if err := h.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("API server failed", "error", err)
		}
	}()
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the read API server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)

	handler := api.NewServer(storeHandle.Store, searchHandle.SearchIndex, log.Logger)

	return &HTTPServerHandle{
		Server: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		log: log,
	}, nil
}
