package metrics

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eth-state/triedb/config"
)

// NewPrometheusService creates a new service for gathering prometheus
// metrics, see https://prometheus.io/docs/guides/go-application.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.L()
	}
	return NewService(cfg, promhttp.Handler(), log)
}
