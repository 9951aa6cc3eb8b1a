// Package server hosts the HTTP surface: the search API, health, and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/renwaldo/shopsight/ai/metrics"
	"github.com/renwaldo/shopsight/engine"
	"github.com/renwaldo/shopsight/internal/profile"
	apiv1 "github.com/renwaldo/shopsight/server/router/api/v1"
)

// Server wires the echo instance to the search engine.
type Server struct {
	echo    *echo.Echo
	profile *profile.Profile
}

// NewServer creates the HTTP server.
func NewServer(profile *profile.Profile, searchEngine *engine.Engine, exporter *metrics.PrometheusExporter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": profile.Version})
	})
	if exporter != nil {
		e.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	apiv1.NewAPIV1Service(searchEngine).Register(e.Group("/api/v1"))

	return &Server{echo: e, profile: profile}
}

// Start begins serving and blocks until the listener fails or is shut down.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down server gracefully", "error", err)
	}
}
