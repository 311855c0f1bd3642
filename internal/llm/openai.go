package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIClient talks to OpenAI-compatible chat completion APIs (OpenAI, DeepInfra).
type OpenAIClient struct {
	name       string
	opts       Options
	httpClient *http.Client
}

// NewOpenAIClient builds a client for an OpenAI-compatible endpoint rooted at opts.BaseURL.
func NewOpenAIClient(name string, opts Options) *OpenAIClient {
	return &OpenAIClient{
		name:       name,
		opts:       opts,
		httpClient: &http.Client{},
	}
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete posts messages to /chat/completions and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := withTimeout(ctx, c.opts.Timeout)
	defer cancel()

	body, err := json.Marshal(openAIRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", c.name, err)
	}

	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%s error %s: %s", c.name, resp.Status, strings.TrimSpace(string(payload)))
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", c.name, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%s error: %s", c.name, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.name)
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Available() bool { return c.opts.APIKey != "" && c.opts.BaseURL != "" }

func (c *OpenAIClient) Name() string { return c.name }
