package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/chatlinehq/chatline/internal/apperr"
	"github.com/chatlinehq/chatline/internal/ingest"
)

type fakeIngestor struct {
	outcome ingest.Outcome
	err     error
	apiKey  string
	body    []byte
}

func (f *fakeIngestor) Process(_ context.Context, body []byte, apiKey string) (ingest.Outcome, error) {
	f.body = body
	f.apiKey = apiKey
	return f.outcome, f.err
}

func TestWebhook_Success(t *testing.T) {
	ingestor := &fakeIngestor{outcome: ingest.Outcome{
		Event:          "messages.upsert",
		Handled:        true,
		ConversationID: "conv-1",
		MessageID:      "msg-1",
	}}
	h := NewWebhookHandler(nil, ingestor)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"event":"messages.upsert"}`))
	req.Header.Set("apikey", "secret")
	rec := httptest.NewRecorder()

	err := h.receive(e.NewContext(req, rec))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "secret", ingestor.apiKey)
	assert.Contains(t, rec.Body.String(), "conv-1")
}

func TestWebhook_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"auth", apperr.Auth("invalid api key"), http.StatusUnauthorized},
		{"validation", apperr.Validation("malformed payload"), http.StatusBadRequest},
		{"not found", apperr.NotFound("unknown instance"), http.StatusNotFound},
		{"internal", apperr.Internal("db down", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler(nil, &fakeIngestor{err: tt.err})

			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()

			err := h.receive(e.NewContext(req, rec))
			assert.Error(t, err)
			var httpErr *echo.HTTPError
			assert.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.want, httpErr.Code)
		})
	}
}
