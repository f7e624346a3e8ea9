package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/ingest"
)

const maxWebhookBody = 10 << 20

// Ingestor processes raw webhook deliveries.
type Ingestor interface {
	Process(ctx context.Context, body []byte, apiKey string) (ingest.Outcome, error)
}

// WebhookHandler receives channel provider deliveries.
type WebhookHandler struct {
	ingestor Ingestor
	logger   *slog.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(log *slog.Logger, ingestor Ingestor) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		ingestor: ingestor,
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

// Register wires the webhook route. The route is excluded from JWT auth;
// deliveries authenticate with the instance api key instead.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook", h.receive)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}

	outcome, err := h.ingestor.Process(c.Request().Context(), body, c.Request().Header.Get("apikey"))
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("webhook processing failed", slog.String("error", err.Error()))
		}
		return echo.NewHTTPError(status, err.Error())
	}
	return c.JSON(http.StatusOK, outcome)
}
