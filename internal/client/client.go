// Package client calls the completion proxy over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
)

const (
	JSONContentType = "application/json"
	completionsPath = "/functions/v1/qwen-chat"
)

// ErrTransport marks a failed round-trip to the proxy, including non-2xx answers.
var ErrTransport = errors.New("transport error")

// Client talks to the completion proxy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// New creates a client for the proxy hosted at baseURL.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
	}
}

type completionRequest struct {
	Messages       []chat.Turn `json:"messages"`
	ConversationID string      `json:"conversationId,omitempty"`
}

// Complete posts the history and returns the proxy's reply.
func (c *Client) Complete(ctx context.Context, turns []chat.Turn, conversationID string) (chat.Completion, error) {
	reqBytes, err := json.Marshal(completionRequest{Messages: turns, ConversationID: conversationID})
	if err != nil {
		return chat.Completion{}, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(reqBytes))
	if err != nil {
		return chat.Completion{}, fmt.Errorf("%w: failed to build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", JSONContentType)
	req.Header.Set("Accept", JSONContentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return chat.Completion{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return chat.Completion{}, fmt.Errorf("%w: failed to read response body: %v", ErrTransport, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return chat.Completion{}, fmt.Errorf("%w: failed to get response from AI: status code %d", ErrTransport, res.StatusCode)
	}

	var completion chat.Completion
	if err := json.Unmarshal(body, &completion); err != nil {
		return chat.Completion{}, fmt.Errorf("%w: failed to unmarshal response: %v", ErrTransport, err)
	}
	if completion.Message == "" {
		return chat.Completion{}, fmt.Errorf("%w: response carried no message", ErrTransport)
	}
	return completion, nil
}
