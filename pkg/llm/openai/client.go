// Package openai implements llm.Provider for OpenAI and OpenAI-compatible
// chat completion services.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"docentgo/pkg/config"
	"docentgo/pkg/llm"
	"docentgo/pkg/tracker"
)

// DefaultModel is used when the provider config names none.
const DefaultModel = "gpt-3.5-turbo"

// BaseURLs of OpenAI-compatible services, by provider type.
var BaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1/",
	"groq":     "https://api.groq.com/openai/v1/",
	"deepseek": "https://api.deepseek.com/",
	"nvidia":   "https://integrate.api.nvidia.com/v1/",
}

// Client implements llm.Provider on the official SDK.
type Client struct {
	client  openai.Client
	model   string
	label   string
	tracker *tracker.Tracker
}

// NewClient creates a client for cfg. The base URL comes from cfg, then from
// the preset for cfg.Type.
func NewClient(cfg config.ProviderConfig, t *tracker.Tracker) (*Client, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("api key is missing for %s", cfg.Type)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURLs[cfg.Type]
	}
	if baseURL == "" {
		return nil, fmt.Errorf("no base url for provider type %q", cfg.Type)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	label := cfg.Type
	if label == "" {
		label = "openai"
	}

	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(cfg.Key),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
		model:   model,
		label:   label,
		tracker: t,
	}, nil
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(p))
	if err != nil {
		c.track(false)
		return "", fmt.Errorf("%s completion failed: %w", c.label, err)
	}
	if len(resp.Choices) == 0 {
		c.track(false)
		return "", errors.New(c.label + ": api returned no choices")
	}
	c.track(true)
	return resp.Choices[0].Message.Content, nil
}

// Stream implements llm.Provider.
func (c *Client) Stream(ctx context.Context, p llm.Prompt, onDelta llm.DeltaFunc) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(p))
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return full.String(), err
			}
		}
	}
	if err := stream.Err(); err != nil {
		c.track(false)
		return full.String(), fmt.Errorf("%s stream failed: %w", c.label, err)
	}
	c.track(true)
	return full.String(), nil
}

// HealthCheck looks up the configured model.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model); err != nil {
		slog.Warn("Model lookup failed", "provider", c.label, "model", c.model, "error", err)
		return fmt.Errorf("%s model %q unavailable: %w", c.label, c.model, err)
	}
	return nil
}

func (c *Client) params(p llm.Prompt) openai.ChatCompletionNewParams {
	var msgs []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		msgs = append(msgs, openai.SystemMessage(p.System))
	}
	msgs = append(msgs, openai.UserMessage(p.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	}
	temp := p.Temperature
	if isReasoner(c.model) {
		temp = 1.0
	}
	params.Temperature = openai.Float(temp)
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}
	return params
}

func (c *Client) track(ok bool) {
	if c.tracker == nil {
		return
	}
	if ok {
		c.tracker.TrackAPISuccess(c.label)
	} else {
		c.tracker.TrackAPIFailure(c.label)
	}
}

func isReasoner(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "reasoner") || strings.Contains(m, "r1")
}
