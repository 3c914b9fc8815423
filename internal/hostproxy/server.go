// Package hostproxy is the host process: it performs HTTP requests and
// document downloads on behalf of clients that use the host transport.
package hostproxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"github.com/moamenhredeen/oasc/internal/config"
	"github.com/moamenhredeen/oasc/internal/metrics"
	"github.com/moamenhredeen/oasc/internal/parser"
	"github.com/moamenhredeen/oasc/internal/transport"
)

// Module provides the host process. The caller supplies *config.Config,
// *slog.Logger and Version.
var Module = fx.Module("hostproxy",
	fx.Provide(
		metrics.New,
		NewEcho,
		newTransport,
		newFetcher,
		NewCommandHandler,
		NewHealthHandler,
	),
	fx.Invoke(RegisterRoutes, Start),
)

// The host always dials directly; a host transport here would loop back to itself.
func newTransport(cfg *config.Config, logger *slog.Logger) transport.Transport {
	return transport.NewDirect(transport.Options{Timeout: cfg.Timeout(), Logger: logger})
}

func newFetcher() parser.Fetcher {
	return parser.NewHTTPFetcher(nil)
}

// NewEcho creates the echo instance with the host middleware chain
func NewEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 30 * time.Second
	// Replies of make_request stay open for as long as the upstream streams.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(RequestLogger(logger))
	e.Use(MetricsMiddleware(m))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Host.BodyMaxBytes)))
	e.Use(SecurityHeaders())

	if cfg.Host.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Host.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(store))
		logger.Info("rate limiter enabled", "rps", cfg.Host.RateLimit.RequestsPerSecond)
	}

	return e
}

// Start binds the listen address when the application starts and shuts the
// server down gracefully when it stops.
func Start(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Host.ListenAddr
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting host", "addr", ln.Addr().String())
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down host")
			return e.Shutdown(ctx)
		},
	})
}
