package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rei1007/daigakuhai-support/internal/version"
)

// handleInitialData serves the team roster and commentary script. Clients
// fetch this once at session start; the payload never changes mid-session.
func (s *Server) handleInitialData(c echo.Context) error {
	bundle, err := s.refData.Bundle(c.Request().Context())
	if err != nil {
		slog.Error("Failed to load reference data", "error", err)
		return c.String(http.StatusInternalServerError, "Failed to load reference data")
	}

	c.Response().Header().Set("Access-Control-Allow-Origin", "*")
	return c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}
