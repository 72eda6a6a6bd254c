// Package llm relays visitor questions to completion services.
package llm

import (
	"context"
)

// Prompt is one completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// DeltaFunc receives each increment of a streamed completion. Returning an
// error aborts the stream.
type DeltaFunc func(delta string) error

// Provider defines the interface for interacting with completion services.
type Provider interface {
	// Complete sends a prompt and returns the full text response.
	Complete(ctx context.Context, p Prompt) (string, error)

	// Stream sends a prompt and reports the response incrementally.
	// It returns the concatenated text.
	Stream(ctx context.Context, p Prompt, onDelta DeltaFunc) (string, error)

	// HealthCheck verifies that the provider is configured and reachable.
	HealthCheck(ctx context.Context) error
}
