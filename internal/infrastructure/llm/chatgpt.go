package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ContractGraph/internal/config"
	"ContractGraph/internal/ports"
)

// ChatGPTClient implements ports.ChatClient and ports.ExtractionCapability backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var (
	_ ports.ChatClient           = (*ChatGPTClient)(nil)
	_ ports.ExtractionCapability = (*ChatGPTClient)(nil)
)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig, timeout time.Duration) *ChatGPTClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatGPTClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one system+user exchange and returns the assistant text.
func (c *ChatGPTClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.chat(ctx, system, user, false)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// Extract asks for a JSON object in JSON mode and reports token usage.
func (c *ChatGPTClient) Extract(ctx context.Context, req ports.ExtractionRequest) (ports.ExtractionResponse, error) {
	resp, err := c.chat(ctx, req.SystemPrompt, req.Prompt, true)
	if err != nil {
		return ports.ExtractionResponse{}, err
	}
	return ports.ExtractionResponse{
		Payload:          json.RawMessage(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (c *ChatGPTClient) chat(ctx context.Context, system, user string, jsonMode bool) (chatResponse, error) {
	if c == nil {
		return chatResponse{}, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return chatResponse{}, fmt.Errorf("chatgpt client misconfigured")
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(system)},
			{Role: "user", Content: user},
		},
	}
	if jsonMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return chatResponse{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chatResponse{}, fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return chatResponse{}, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return chatResponse{}, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return chatResponse{}, fmt.Errorf("chatgpt returned no content")
	}
	return decoded, nil
}
