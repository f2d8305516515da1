package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Room API: reference data + real-time channel
	s.echo.GET("/api/initial-data", s.handleInitialData)
	s.echo.GET("/api/websocket", s.handleWebSocket)

	// Everything else belongs to the static overlay assets when configured.
	if s.config.StaticDir != "" {
		s.echo.Static("/", s.config.StaticDir)
	}
}
