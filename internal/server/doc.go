// Package server implements the HTTP server using Echo framework.
//
// Routes: reference data (/api/initial-data), real-time channel
// (/api/websocket), health, metrics, version, and optional static assets.
// Handlers split by concern: handlers_api.go, handlers_ws.go, handlers_health.go.
package server
