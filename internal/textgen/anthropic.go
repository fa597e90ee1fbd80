package textgen

import (
	"context"
	"fmt"
	"time"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

const AnthropicName = "anthropic"

// AnthropicConfig configures the Anthropic Messages API provider.
type AnthropicConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// AnthropicClient implements Client with llmkit.
type AnthropicClient struct {
	cfg    AnthropicConfig
	prompt func(systemPrompt, userPrompt, apiKey string, settings types.RequestSettings) (string, error)
}

// NewAnthropicClient returns an error when no API key is configured.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	return &AnthropicClient{cfg: cfg, prompt: promptAnthropic}, nil
}

// Name returns the client identifier.
func (c *AnthropicClient) Name() string {
	return AnthropicName
}

// Complete sends the prompt and waits at most the configured timeout. The
// underlying call cannot be cancelled; a late response is discarded.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	settings := types.RequestSettings{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.prompt(c.cfg.SystemPrompt, prompt, c.cfg.APIKey, settings)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("anthropic request: %w", ctx.Err())
	case r := <-done:
		return r.text, r.err
	}
}

func promptAnthropic(systemPrompt, userPrompt, apiKey string, settings types.RequestSettings) (string, error) {
	response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, "", apiKey, settings)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	if len(response.Content) == 0 || response.Content[0].Text == "" {
		return "", fmt.Errorf("no content in response")
	}
	return response.Content[0].Text, nil
}
