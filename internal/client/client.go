// Package client provides the HTTP transport the TUI uses to talk to the
// jchat relay server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jchatbot/jchat/internal/chat"
)

// Client posts chat requests to the relay server. It implements
// chat.Transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a relay client. If baseURL is empty, uses the JCHAT_SERVER_URL
// env var or defaults to localhost:8377. Timeout can be configured via
// JCHAT_CLIENT_TIMEOUT (default 2m; generation can be slow).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("JCHAT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8377"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("JCHAT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// chatResponse is the success payload from POST /api/chat.
type chatResponse struct {
	Response string `json:"response"`
}

// errorResponse is the failure payload from POST /api/chat.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Generate sends the user's message plus history to the relay server and
// returns the assistant's reply. Non-2xx responses become *chat.TransportError
// so callers can surface the server's message.
func (c *Client) Generate(ctx context.Context, req chat.Request) (string, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
			errResp.Error = strings.TrimSpace(string(body))
			if errResp.Error == "" {
				errResp.Error = resp.Status
			}
		}
		return "", &chat.TransportError{
			Status:  resp.StatusCode,
			Message: errResp.Error,
			Details: errResp.Details,
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return chatResp.Response, nil
}

// Health checks whether the relay server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: %s", resp.Status)
	}
	return nil
}

// Stats fetches the relay server's in-memory runtime statistics.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}
	return json.RawMessage(body), nil
}
