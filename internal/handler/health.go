// Package handler serves the admin HTTP endpoint.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"squid-rewriter/internal/helper"
)

// Version is a string type for dependency injection of the build version.
type Version string

// StatusResponse is the body of GET /helper/status.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Lines         uint64 `json:"lines"`
	Rewritten     uint64 `json:"rewritten"`
	PassedThrough uint64 `json:"passed_through"`
}

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	stats   *helper.Stats
	version Version
}

// NewHealthHandler creates a HealthHandler reporting the loop's counters.
func NewHealthHandler(loop *helper.Loop, v Version) *HealthHandler {
	return &HealthHandler{stats: loop.Stats(), version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns the helper's version and line counters.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:        "ok",
		Version:       string(h.version),
		Lines:         h.stats.Lines.Load(),
		Rewritten:     h.stats.Rewritten.Load(),
		PassedThrough: h.stats.PassedThrough.Load(),
	})
}
