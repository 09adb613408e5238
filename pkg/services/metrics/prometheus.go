package metrics

import (
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewPrometheusService creates a new service for gathering prometheus metrics
// registered in the default registry (chain and RPC server counters).
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		return nil
	}
	return NewService("Prometheus", promhttp.Handler(), cfg, log)
}
