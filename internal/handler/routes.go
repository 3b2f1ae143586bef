package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"squid-rewriter/internal/config"
	"squid-rewriter/internal/metrics"
)

// RegisterRoutes wires all admin handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, health *HealthHandler, cfg *config.Config, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/helper/status", health.Status)

	if cfg.Metrics.Enabled {
		m.SetScrapePath(cfg.Metrics.Path)
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
