package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PingHandler answers health probes.
type PingHandler struct{}

// NewPingHandler creates the health probe handler.
func NewPingHandler() *PingHandler {
	return &PingHandler{}
}

// Register wires the ping route.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.ping)
}

func (h *PingHandler) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
