package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/auth"
	"github.com/chatlinehq/chatline/internal/compose"
)

// Composer sends agent-authored outbound messages.
type Composer interface {
	Send(ctx context.Context, in compose.SendInput) (compose.SendResult, error)
}

// MessageHandler serves outbound message sends.
type MessageHandler struct {
	composer Composer
	logger   *slog.Logger
}

// NewMessageHandler creates the message handler.
func NewMessageHandler(log *slog.Logger, composer Composer) *MessageHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessageHandler{
		composer: composer,
		logger:   log.With(slog.String("handler", "message")),
	}
}

// Register wires the message routes. Requires agent JWT auth.
func (h *MessageHandler) Register(e *echo.Echo) {
	e.POST("/messages/send", h.send)
}

type sendMessageRequest struct {
	Instance  string `json:"instance" validate:"required"`
	RemoteJID string `json:"remote_jid" validate:"required"`
	Body      string `json:"body" validate:"required"`
}

func (h *MessageHandler) send(c echo.Context) error {
	agentID, err := auth.AgentIDFromContext(c)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.composer.Send(c.Request().Context(), compose.SendInput{
		InstanceName: req.Instance,
		RemoteJID:    req.RemoteJID,
		Body:         req.Body,
		AgentID:      agentID,
	})
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("send failed", slog.String("error", err.Error()))
		}
		return echo.NewHTTPError(status, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"conversation_id": res.Conversation.ID,
		"message_id":      res.Message.ID,
		"external_id":     res.ExternalID,
	})
}
