// Package llm adapts text-completion providers to one Client interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reviewdesk/internal/config"
	"github.com/hyperjump/reviewdesk/pkg/utils"
)

// ErrUnavailable is returned by clients that are not configured.
var ErrUnavailable = errors.New("inference unavailable")

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Client completes a chat conversation. Callers treat any error as "unavailable for this call".
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	// Available reports whether the client is configured to make calls.
	Available() bool
	// Name returns the provider name.
	Name() string
}

// Options holds provider-independent settings.
type Options struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderDeepInfra = "deepinfra"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultDeepInfraBaseURL = "https://api.deepinfra.com/v1/openai"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultDeepInfraModel   = "meta-llama/Meta-Llama-3.1-70B-Instruct"
)

// New builds the client selected by cfg.Provider. A provider that needs an API key but has none
// yields an unavailable client rather than an error, so the rest of the system degrades.
func New(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	logger = utils.OrNop(logger)
	opts := Options{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderOpenAI, ProviderDeepInfra:
		if opts.APIKey == "" {
			logger.Warn("inference provider has no API key, running without inference", zap.String("provider", provider))
			return Unavailable{}, nil
		}
		if opts.BaseURL == "" {
			opts.BaseURL = defaultOpenAIBaseURL
			if provider == ProviderDeepInfra {
				opts.BaseURL = defaultDeepInfraBaseURL
			}
		}
		if opts.Model == "" {
			opts.Model = defaultOpenAIModel
			if provider == ProviderDeepInfra {
				opts.Model = defaultDeepInfraModel
			}
		}
		return NewOpenAIClient(provider, opts), nil
	case ProviderOllama:
		return NewOllamaClient(opts), nil
	case ProviderAnthropic:
		if opts.APIKey == "" {
			logger.Warn("inference provider has no API key, running without inference", zap.String("provider", provider))
			return Unavailable{}, nil
		}
		return NewAnthropicClient(opts), nil
	case ProviderNone, "":
		return Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// Unavailable is the client used when no provider is configured.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, []Message) (string, error) { return "", ErrUnavailable }

func (Unavailable) Available() bool { return false }

func (Unavailable) Name() string { return ProviderNone }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
