// Package trigger delivers outbox triggers to downstream processors over
// HTTP.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chatlinehq/chatline/internal/outbox"
)

// Options configure the downstream endpoints.
type Options struct {
	AnalysisURL      string
	TranscriptionURL string
	Timeout          time.Duration
}

// Client POSTs trigger notifications to the analysis and transcription
// services. It implements outbox.Dispatcher.
type Client struct {
	opts   Options
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a trigger dispatch client.
func NewClient(log *slog.Logger, opts Options) *Client {
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: log.With(slog.String("service", "trigger")),
	}
}

// Dispatch sends one trigger to its downstream. An unconfigured endpoint is
// skipped and counts as delivered.
func (c *Client) Dispatch(ctx context.Context, trig outbox.Trigger) error {
	var (
		url     string
		payload any
	)
	switch trig.Kind {
	case outbox.KindAnalysis:
		url = c.opts.AnalysisURL
		payload = map[string]string{"conversation_id": trig.ConversationID}
	case outbox.KindTranscription:
		url = c.opts.TranscriptionURL
		payload = map[string]string{"message_id": trig.MessageID}
	default:
		return fmt.Errorf("unknown trigger kind: %q", trig.Kind)
	}
	if url == "" {
		c.logger.Debug("trigger endpoint not configured, skipping",
			slog.String("kind", trig.Kind),
		)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s trigger: %w", trig.Kind, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s trigger rejected: status %d", trig.Kind, resp.StatusCode)
	}
	return nil
}
