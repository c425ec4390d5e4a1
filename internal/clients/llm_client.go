package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeout = 5 * time.Minute

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// Chat sends an instruction and a user message and returns the assistant reply.
	Chat(ctx context.Context, instruction, user string, opts ...ChatOption) (string, error)
}

// OpenAICompatibleClient chat-completions client. Requests are never retried.
type OpenAICompatibleClient struct {
	apiURL          string
	apiKey          string
	model           string
	instructionRole string
	reasoningEffort string
	httpClient      *http.Client
}

// NewOpenAICompatibleClient creates a new client for OpenAI-compatible APIs.
// instructionRole is "developer" for reasoning models and "system" elsewhere.
func NewOpenAICompatibleClient(apiURL, apiKey, model, instructionRole, reasoningEffort string, timeout time.Duration) *OpenAICompatibleClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if instructionRole == "" {
		instructionRole = "system"
	}
	return &OpenAICompatibleClient{
		apiURL:          apiURL,
		apiKey:          apiKey,
		model:           model,
		instructionRole: instructionRole,
		reasoningEffort: reasoningEffort,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Model returns the configured model name.
func (c *OpenAICompatibleClient) Model() string {
	return c.model
}

// JSONSchema strict structured-output schema for the response.
type JSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

// ChatOption customizes a single chat request.
type ChatOption func(*chatRequest)

// WithJSONSchema constrains the reply to the given schema.
func WithJSONSchema(schema JSONSchema) ChatOption {
	return func(r *chatRequest) {
		r.ResponseFormat = &responseFormat{Type: "json_schema", JSONSchema: &schema}
	}
}

// chatRequest represents the request structure for OpenAI-compatible APIs
type chatRequest struct {
	Model           string          `json:"model"`
	Messages        []message       `json:"messages"`
	ResponseFormat  *responseFormat `json:"response_format,omitempty"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the response structure from OpenAI-compatible APIs
type chatResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []choice  `json:"choices"`
	Usage   usage     `json:"usage"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Chat sends one chat request and returns the first choice content.
func (c *OpenAICompatibleClient) Chat(ctx context.Context, instruction, user string, opts ...ChatOption) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("LLM API key is empty")
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: c.instructionRole, Content: instruction},
			{Role: "user", Content: user},
		},
		ReasoningEffort: c.reasoningEffort,
	}
	for _, opt := range opts {
		opt(&reqBody)
	}

	return c.sendRequest(ctx, reqBody)
}

func (c *OpenAICompatibleClient) sendRequest(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", errors.Wrap(err, "failed to create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal response")
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("LLM API error: %s (type: %s, code: %v)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}

	if len(chatResp.Choices) == 0 {
		return "", errors.New("LLM API returned no choices")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("LLM API returned empty content")
	}
	return content, nil
}
