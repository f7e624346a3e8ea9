// Package provider is the HTTP client for the channel provider API:
// directory lookups and outbound sends.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatlinehq/chatline/internal/identity"
)

// Options configure the provider API client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the channel provider. It implements
// identity.ProfileLookup.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a provider API client.
func NewClient(log *slog.Logger, opts Options) *Client {
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: opts.Timeout},
		logger:  log.With(slog.String("service", "provider")),
	}
}

type contactProfileResponse struct {
	Name       string `json:"name"`
	PictureURL string `json:"pictureUrl"`
}

// ContactProfile fetches directory data for a direct-chat counterpart.
func (c *Client) ContactProfile(ctx context.Context, instanceName, remoteJID string) (identity.Profile, error) {
	var out contactProfileResponse
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/chat/fetchProfile/%s?number=%s", url.PathEscape(instanceName), url.QueryEscape(remoteJID)),
		nil, &out)
	if err != nil {
		return identity.Profile{}, err
	}
	return identity.Profile{Name: out.Name, AvatarURL: out.PictureURL}, nil
}

type groupProfileResponse struct {
	Subject    string `json:"subject"`
	PictureURL string `json:"pictureUrl"`
}

// GroupProfile fetches metadata for a group chat.
func (c *Client) GroupProfile(ctx context.Context, instanceName, remoteJID string) (identity.Profile, error) {
	var out groupProfileResponse
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/group/findGroupInfos/%s?groupJid=%s", url.PathEscape(instanceName), url.QueryEscape(remoteJID)),
		nil, &out)
	if err != nil {
		return identity.Profile{}, err
	}
	return identity.Profile{Name: out.Subject, AvatarURL: out.PictureURL}, nil
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// SendText sends an outbound text message through the provider and returns
// the provider's message id.
func (c *Client) SendText(ctx context.Context, instanceName, remoteJID, text string) (string, error) {
	in := sendTextRequest{Number: remoteJID, Text: text}
	var out sendTextResponse
	err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/message/sendText/%s", url.PathEscape(instanceName)), in, &out)
	if err != nil {
		return "", err
	}
	return out.Key.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("provider base url not configured")
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
