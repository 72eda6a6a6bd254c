// Package gemini implements llm.Provider for Google Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"docentgo/pkg/config"
	"docentgo/pkg/llm"
	"docentgo/pkg/tracker"
)

// DefaultModel is used when the provider config names none.
const DefaultModel = "gemini-2.5-flash-lite"

// Client implements llm.Provider for Google Gemini.
type Client struct {
	genaiClient *genai.Client
	modelName   string
	tracker     *tracker.Tracker

	mu sync.RWMutex
}

// NewClient creates a new Gemini client.
func NewClient(cfg config.ProviderConfig, t *tracker.Tracker) (*Client, error) {
	if cfg.Key == "" {
		return nil, errors.New("gemini api key is missing")
	}
	c := &Client{modelName: cfg.Model, tracker: t}
	if c.modelName == "" {
		c.modelName = DefaultModel
	}

	cc := &genai.ClientConfig{APIKey: cfg.Key, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genaiClient = client
	return c, nil
}

// Close cleans up resources.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genaiClient = nil
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	client, err := c.client()
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, c.modelName, genai.Text(p.User), contentConfig(p))
	if err != nil {
		c.track(false)
		return "", fmt.Errorf("generate text error: %w", err)
	}
	text, err := getResponseText(resp)
	if err != nil {
		c.track(false)
		return "", err
	}
	c.track(true)
	return text, nil
}

// Stream implements llm.Provider.
func (c *Client) Stream(ctx context.Context, p llm.Prompt, onDelta llm.DeltaFunc) (string, error) {
	client, err := c.client()
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for resp, err := range client.Models.GenerateContentStream(ctx, c.modelName, genai.Text(p.User), contentConfig(p)) {
		if err != nil {
			c.track(false)
			return full.String(), fmt.Errorf("gemini stream failed: %w", err)
		}
		delta, _ := getResponseText(resp)
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
	c.track(true)
	return full.String(), nil
}

// HealthCheck checks that the configured model is available for the key.
// On failure the available gemini models are logged.
func (c *Client) HealthCheck(ctx context.Context) error {
	client, err := c.client()
	if err != nil {
		return err
	}

	name := c.modelName
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}
	_, err = client.Models.Get(ctx, name, nil)
	if err == nil {
		slog.Debug("Gemini model validation success", "model", c.modelName)
		return nil
	}

	slog.Warn("Gemini model validation failed, fetching available models", "model", c.modelName, "error", err)
	page, listErr := client.Models.List(ctx, nil)
	if listErr != nil {
		return fmt.Errorf("gemini model %q unavailable: %w", c.modelName, err)
	}

	var available []string
	for {
		resp, nextErr := page.Next(ctx)
		if nextErr == iterator.Done || nextErr != nil {
			break
		}
		if strings.Contains(strings.ToLower(resp.Name), "gemini") {
			available = append(available, resp.Name)
		}
	}
	slog.Error("Configured model not found", "configured", c.modelName, "available", available)
	return fmt.Errorf("gemini model %q unavailable: %w", c.modelName, err)
}

func (c *Client) client() (*genai.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.genaiClient == nil {
		return nil, errors.New("gemini client not configured")
	}
	return c.genaiClient, nil
}

func (c *Client) track(ok bool) {
	if c.tracker == nil {
		return
	}
	if ok {
		c.tracker.TrackAPISuccess("gemini")
	} else {
		c.tracker.TrackAPIFailure("gemini")
	}
}

func contentConfig(p llm.Prompt) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if p.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: p.System}}}
	}
	temp := float32(p.Temperature)
	cfg.Temperature = &temp
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}
	return cfg
}

func getResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
