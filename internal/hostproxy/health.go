package hostproxy

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moamenhredeen/oasc/internal/config"
	"github.com/moamenhredeen/oasc/internal/metrics"
	"github.com/moamenhredeen/oasc/internal/transport"
)

// Version is the build version, injected by the caller
type Version string

// HealthHandler serves health and status endpoints
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz answers liveness probes
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the version and listen address of the host
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":      "ok",
		"version":     string(h.version),
		"listen_addr": h.cfg.Host.ListenAddr,
		"transport":   string(transport.KindDirect),
	})
}

// RegisterRoutes wires the host endpoints onto e
func RegisterRoutes(e *echo.Echo, commands *CommandHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/host/status", health.Status)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	e.POST(transport.MakeRequestPath, commands.MakeRequest)
	e.POST(transport.LoadSpecPath, commands.LoadSpec)
}
