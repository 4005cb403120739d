// Package telegram implements the outbound transport against the
// Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"tunedrop/internal/domain"
)

// Client sends audio messages to one chat via the Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	chatID     int64
}

// New creates a client for the given bot token and chat id. The HTTP
// timeout is generous because audio uploads can be tens of megabytes.
func New(token string, chatID int64) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 3 * time.Minute},
		baseURL:    "https://api.telegram.org",
		token:      token,
		chatID:     chatID,
	}
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *responseParams `json:"parameters,omitempty"`
}

type responseParams struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

// SendAudio uploads the audio as a sendAudio multipart request. Errors are
// classified for the delivery engine: a 429 becomes a RateLimitedError
// carrying the API's retry hint, transport failures and 5xx wrap
// ErrNetwork, and everything else is terminal.
func (c *Client) SendAudio(ctx context.Context, audio io.Reader, filename, caption string) error {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("chat_id", strconv.FormatInt(c.chatID, 10)); err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	if err := mw.WriteField("caption", caption); err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendAudio", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	var api apiResponse
	if err := json.Unmarshal(payload, &api); err != nil {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: HTTP %d", domain.ErrNetwork, resp.StatusCode)
		}
		return fmt.Errorf("telegram: unparseable response (HTTP %d)", resp.StatusCode)
	}
	if api.OK {
		return nil
	}

	switch {
	case api.ErrorCode == http.StatusTooManyRequests:
		wait := time.Duration(0)
		if api.Parameters != nil {
			wait = time.Duration(api.Parameters.RetryAfter) * time.Second
		}
		return &domain.RateLimitedError{RetryAfter: wait}
	case api.ErrorCode >= 500:
		return fmt.Errorf("%w: %d %s", domain.ErrNetwork, api.ErrorCode, api.Description)
	default:
		return fmt.Errorf("telegram: %d %s", api.ErrorCode, api.Description)
	}
}
