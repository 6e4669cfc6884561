// Package llm provides the external text-generation client.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ailens/domain-audit/internal/config"
)

// Claude implements audit.TextGenerator against the Anthropic API.
type Claude struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// New creates a Claude client. An empty API key falls back to the SDK's
// ANTHROPIC_API_KEY environment lookup.
func New(cfg config.GeneratorConfig) (*Claude, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("generator.model is required")
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Claude{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Model returns the configured model identifier.
func (c *Claude) Model() string { return c.model }

// Generate sends one system+user exchange and returns the concatenated
// text blocks of the response.
func (c *Claude) Generate(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}
	return out.String(), nil
}
