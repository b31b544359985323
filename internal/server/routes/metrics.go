package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRoutes exposes a Prometheus registry.
type MetricsRoutes struct {
	gatherer prometheus.Gatherer
}

func NewMetricsRoutes(g prometheus.Gatherer) *MetricsRoutes {
	return &MetricsRoutes{gatherer: g}
}

func (m *MetricsRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})))
}
