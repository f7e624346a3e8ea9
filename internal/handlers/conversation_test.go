package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/auth"
	"github.com/chatlinehq/chatline/internal/conversation"
	"github.com/chatlinehq/chatline/internal/message"
)

type fakeConversations struct {
	conv      conversation.Conversation
	won       bool
	err       error
	lastAgent string
}

func (f *fakeConversations) Claim(_ context.Context, _, agentID string) (conversation.Conversation, bool, error) {
	f.lastAgent = agentID
	return f.conv, f.won, f.err
}

func (f *fakeConversations) Close(_ context.Context, _ string) (conversation.Conversation, error) {
	return f.conv, f.err
}

func (f *fakeConversations) Get(_ context.Context, _ string) (conversation.Conversation, error) {
	return f.conv, f.err
}

func (f *fakeConversations) List(_ context.Context, _ conversation.ListFilter) ([]conversation.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []conversation.Conversation{f.conv}, nil
}

type fakeMessages struct{}

func (fakeMessages) List(_ context.Context, _ message.ListFilter) ([]message.Message, error) {
	return []message.Message{{ID: "msg-1", Body: "hello"}}, nil
}

type testValidator struct{ v *validator.Validate }

func (t *testValidator) Validate(i any) error { return t.v.Struct(i) }

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}
	return e
}

func agentContext(t *testing.T, e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, agentID string) echo.Context {
	t.Helper()
	c := e.NewContext(req, rec)

	signed, _, err := auth.GenerateToken(agentID, "test-secret", time.Hour)
	assert.NoError(t, err)
	token, err := jwt.Parse(signed, func(_ *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.NoError(t, err)
	c.Set("user", token)
	return c
}

func TestClaim_Won(t *testing.T) {
	convs := &fakeConversations{
		conv: conversation.Conversation{ID: "conv-1", Status: conversation.StatusOpen, AssignedAgentID: "agent-1"},
		won:  true,
	}
	h := NewConversationHandler(nil, convs, fakeMessages{})

	e := newEcho()
	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/claim", nil)
	rec := httptest.NewRecorder()
	c := agentContext(t, e, req, rec, "agent-1")
	c.SetParamNames("id")
	c.SetParamValues("conv-1")

	assert.NoError(t, h.claim(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "agent-1", convs.lastAgent)
	assert.Contains(t, rec.Body.String(), `"claimed":true`)
}

func TestClaim_LostReturnsConflict(t *testing.T) {
	convs := &fakeConversations{
		conv: conversation.Conversation{ID: "conv-1", Status: conversation.StatusOpen, AssignedAgentID: "agent-1"},
		won:  false,
	}
	h := NewConversationHandler(nil, convs, fakeMessages{})

	e := newEcho()
	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/claim", nil)
	rec := httptest.NewRecorder()
	c := agentContext(t, e, req, rec, "agent-2")
	c.SetParamNames("id")
	c.SetParamValues("conv-1")

	assert.NoError(t, h.claim(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent-1")
}

func TestClaim_ClosedConversation(t *testing.T) {
	convs := &fakeConversations{err: apperr.NotFound("conversation is closed")}
	h := NewConversationHandler(nil, convs, fakeMessages{})

	e := newEcho()
	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/claim", nil)
	rec := httptest.NewRecorder()
	c := agentContext(t, e, req, rec, "agent-1")
	c.SetParamNames("id")
	c.SetParamValues("conv-1")

	err := h.claim(c)
	var httpErr *echo.HTTPError
	assert.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestClaim_NoToken(t *testing.T) {
	h := NewConversationHandler(nil, &fakeConversations{}, fakeMessages{})

	e := newEcho()
	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/claim", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.claim(c)
	var httpErr *echo.HTTPError
	assert.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestListConversations_RequiresTenant(t *testing.T) {
	h := NewConversationHandler(nil, &fakeConversations{}, fakeMessages{})

	e := newEcho()
	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()

	err := h.list(e.NewContext(req, rec))
	var httpErr *echo.HTTPError
	assert.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestListConversations(t *testing.T) {
	convs := &fakeConversations{conv: conversation.Conversation{ID: "conv-1", Status: conversation.StatusPending}}
	h := NewConversationHandler(nil, convs, fakeMessages{})

	e := newEcho()
	req := httptest.NewRequest(http.MethodGet,
		"/conversations?tenant_id=11111111-2222-3333-4444-555555555555&status=pending", nil)
	rec := httptest.NewRecorder()

	assert.NoError(t, h.list(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "conv-1")
}

func TestListMessages(t *testing.T) {
	h := NewConversationHandler(nil, &fakeConversations{}, fakeMessages{})

	e := newEcho()
	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1/messages", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("conv-1")

	assert.NoError(t, h.listMessages(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "msg-1")
}
