package metrics

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/eth-state/triedb/config"
)

// Service serves metrics over HTTP.
type Service struct {
	srv *http.Server
	cfg config.BasicService
	log *zap.Logger
}

// NewService configures the service based on the provided config.
func NewService(cfg config.BasicService, handler http.Handler, log *zap.Logger) *Service {
	return &Service{
		srv: &http.Server{
			Addr:    cfg.Address,
			Handler: handler,
		},
		cfg: cfg,
		log: log,
	}
}

// Start runs the http service with the exposed endpoint on the configured
// address.
func (ms *Service) Start() {
	if !ms.cfg.Enabled {
		ms.log.Info("metrics service hasn't started since it's disabled")
		return
	}
	ms.log.Info("metrics service is running", zap.String("endpoint", ms.srv.Addr))
	err := ms.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		ms.log.Warn("metrics service couldn't start on configured port", zap.Error(err))
	}
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.cfg.Enabled {
		return
	}
	ms.log.Info("shutting down metrics service", zap.String("endpoint", ms.srv.Addr))
	if err := ms.srv.Shutdown(context.Background()); err != nil {
		ms.log.Error("can't shut metrics service down", zap.Error(err))
	}
}
