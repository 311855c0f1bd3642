package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.2"
)

// OllamaClient talks to a local Ollama server through /api/chat.
type OllamaClient struct {
	opts       Options
	httpClient *http.Client
}

// NewOllamaClient creates an Ollama client, defaulting base URL and model.
func NewOllamaClient(opts Options) *OllamaClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOllamaBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultOllamaModel
	}
	return &OllamaClient{opts: opts, httpClient: &http.Client{}}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Complete sends a non-streaming chat request.
func (c *OllamaClient) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := withTimeout(ctx, c.opts.Timeout)
	defer cancel()

	options := map[string]any{"temperature": c.opts.Temperature}
	if c.opts.MaxTokens > 0 {
		options["num_predict"] = c.opts.MaxTokens
	}
	jsonData, err := json.Marshal(ollamaChatRequest{
		Model:    c.opts.Model,
		Messages: messages,
		Stream:   false,
		Options:  options,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.opts.BaseURL, "/")+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("Ollama error: %s", chatResp.Error)
	}
	return chatResp.Message.Content, nil
}

func (c *OllamaClient) Available() bool { return true }

func (c *OllamaClient) Name() string { return ProviderOllama }
