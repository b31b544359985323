package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"

	"github.com/ineyio/sentimentgate/internal/observability"
)

// RouteRegister registers Echo routes.
type RouteRegister interface {
	RegisterRoutes(s *echo.Echo)
}

// Options tunes the HTTP server.
type Options struct {
	ServiceName  string
	Tracing      bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server holds the Echo instance.
type Server struct {
	e *echo.Echo
}

// New creates a new server instance.
func New(log *slog.Logger, opts Options) *Server {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout

	e.Use(middleware.RequestID())
	if opts.Tracing {
		e.Use(observability.EchoMiddleware(opts.ServiceName))
	}
	e.Use(observability.EchoRequestMetadataMiddleware())
	e.Use(slogecho.NewWithConfig(log, slogecho.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
		WithTraceID:      opts.Tracing,
		WithSpanID:       opts.Tracing,
		Filters: []slogecho.Filter{
			slogecho.IgnorePath("/healthz", "/metrics"),
		},
	}))
	e.Use(middleware.Recover())

	return &Server{
		e: e,
	}
}

// RegisterRouter attaches a route registrar.
func (s *Server) RegisterRouter(r RouteRegister) {
	r.RegisterRoutes(s.e)
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
