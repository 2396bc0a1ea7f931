// Package dashscope adapts the DashScope text-generation API to eino's chat
// model interface.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// DefaultBaseURL is the generation endpoint of the public DashScope API.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	// DefaultModel is the model every request is pinned to.
	DefaultModel = "qwen-turbo"

	resultFormatMessage = "message"
	jsonContentType     = "application/json"
)

// Config configures a ChatModel.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// ChatModel calls DashScope synchronously.
type ChatModel struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// APIError is returned when DashScope answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dashscope request failed: status code %d, body %s", e.StatusCode, e.Body)
}

// NewChatModel builds a ChatModel. Timeouts are left to the caller's context.
func NewChatModel(cfg Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("dashscope API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &ChatModel{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: cfg.HTTPClient,
	}, nil
}

type generationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generationRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []generationMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		ResultFormat string `json:"result_format"`
	} `json:"parameters"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
}

// Generate sends the full history and returns the first choice. A response
// without choices yields an assistant message with empty content.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	payload := generationRequest{Model: m.model}
	payload.Parameters.ResultFormat = resultFormatMessage
	payload.Input.Messages = make([]generationMessage, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		payload.Input.Messages = append(payload.Input.Messages, generationMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	reqBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", jsonContentType)
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	res, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send generation request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &APIError{StatusCode: res.StatusCode, Body: string(body)}
	}

	var resp generationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generation response: %w", err)
	}

	if len(resp.Output.Choices) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	return schema.AssistantMessage(resp.Output.Choices[0].Message.Content, nil), nil
}

// Stream wraps Generate in a single-chunk stream; token streaming is not used.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

var _ model.BaseChatModel = (*ChatModel)(nil)
