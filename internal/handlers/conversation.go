package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/auth"
	"github.com/chatlinehq/chatline/internal/conversation"
	"github.com/chatlinehq/chatline/internal/message"
)

// ConversationService is the conversation lifecycle surface the handler
// needs.
type ConversationService interface {
	Claim(ctx context.Context, id, agentID string) (conversation.Conversation, bool, error)
	Close(ctx context.Context, id string) (conversation.Conversation, error)
	Get(ctx context.Context, id string) (conversation.Conversation, error)
	List(ctx context.Context, filter conversation.ListFilter) ([]conversation.Conversation, error)
}

// MessageLister pages a conversation's history.
type MessageLister interface {
	List(ctx context.Context, filter message.ListFilter) ([]message.Message, error)
}

// ConversationHandler serves the agent inbox API.
type ConversationHandler struct {
	conversations ConversationService
	messages      MessageLister
	logger        *slog.Logger
}

// NewConversationHandler creates the conversation handler.
func NewConversationHandler(log *slog.Logger, conversations ConversationService, messages MessageLister) *ConversationHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		logger:        log.With(slog.String("handler", "conversation")),
	}
}

// Register wires the conversation routes. All require agent JWT auth.
func (h *ConversationHandler) Register(e *echo.Echo) {
	e.GET("/conversations", h.list)
	e.GET("/conversations/:id", h.get)
	e.GET("/conversations/:id/messages", h.listMessages)
	e.POST("/conversations/:id/claim", h.claim)
	e.POST("/conversations/:id/close", h.close)
}

type listConversationsQuery struct {
	TenantID string `query:"tenant_id" validate:"required,uuid"`
	Status   string `query:"status"`
	Limit    int    `query:"limit"`
	Offset   int    `query:"offset"`
}

func (h *ConversationHandler) list(c echo.Context) error {
	var q listConversationsQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if err := c.Validate(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	convs, err := h.conversations.List(c.Request().Context(), conversation.ListFilter{
		TenantID: q.TenantID,
		Status:   q.Status,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	return c.JSON(http.StatusOK, map[string]any{"conversations": convs})
}

func (h *ConversationHandler) get(c echo.Context) error {
	conv, err := h.conversations.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) listMessages(c echo.Context) error {
	var q struct {
		Limit  int `query:"limit"`
		Offset int `query:"offset"`
	}
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}

	msgs, err := h.messages.List(c.Request().Context(), message.ListFilter{
		ConversationID: c.Param("id"),
		Limit:          q.Limit,
		Offset:         q.Offset,
	})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": msgs})
}

func (h *ConversationHandler) claim(c echo.Context) error {
	agentID, err := auth.AgentIDFromContext(c)
	if err != nil {
		return err
	}

	conv, won, err := h.conversations.Claim(c.Request().Context(), c.Param("id"), agentID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	if !won {
		// Someone else holds it. Report the winner so the agent UI can
		// show who.
		return c.JSON(http.StatusConflict, map[string]any{
			"claimed":      false,
			"conversation": conv,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"claimed":      true,
		"conversation": conv,
	})
}

func (h *ConversationHandler) close(c echo.Context) error {
	conv, err := h.conversations.Close(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, conv)
}
