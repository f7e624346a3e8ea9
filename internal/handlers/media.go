package handlers

import "github.com/labstack/echo/v4"

// MediaHandler serves stored media blobs from the local storage root.
// Matches the default storage base URL, which points back at this server.
type MediaHandler struct {
	root string
}

// NewMediaHandler creates the media file handler.
func NewMediaHandler(root string) *MediaHandler {
	return &MediaHandler{root: root}
}

// Register wires the media route. Media URLs are capability URLs handed
// out in message rows, so the route is excluded from JWT auth.
func (h *MediaHandler) Register(e *echo.Echo) {
	e.Static("/media", h.root)
}
