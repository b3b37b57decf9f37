package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ContractGraph/internal/ports"
)

// Client talks to a remote extraction service exposing POST /extract.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.ExtractionCapability = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	Text         string `json:"text"`
	ContractType string `json:"contract_type"`
	SystemPrompt string `json:"system_prompt"`
	Prompt       string `json:"prompt"`
	Simplified   bool   `json:"simplified"`
}

type extractResponse struct {
	Result json.RawMessage `json:"result"`
	Usage  struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Extract sends the prompt and document for structured extraction.
func (c *Client) Extract(ctx context.Context, req ports.ExtractionRequest) (ports.ExtractionResponse, error) {
	payload := extractRequest{
		Text:         req.Text,
		ContractType: string(req.ContractType),
		SystemPrompt: req.SystemPrompt,
		Prompt:       req.Prompt,
		Simplified:   req.Simplified,
	}

	var resp extractResponse
	if err := c.post(ctx, "/extract", payload, &resp); err != nil {
		return ports.ExtractionResponse{}, err
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return ports.ExtractionResponse{}, fmt.Errorf("extraction service returned no result")
	}

	return ports.ExtractionResponse{
		Payload:          resp.Result,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if v == nil {
		if err := resp.Body.Close(); err != nil {
			return fmt.Errorf("close response body: %w", err)
		}
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
