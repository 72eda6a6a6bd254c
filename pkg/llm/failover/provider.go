// Package failover chains completion providers: a failing provider is skipped
// with growing backoff, a rejected key disables it for the session, and the
// last provider is retried.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docentgo/pkg/llm"
)

// Provider wraps multiple completion providers and handles fallbacks.
type Provider struct {
	providers  []llm.Provider
	names      []string
	disabled   map[int]bool
	backoffs   map[string]*backoffState // key: providerName:callName
	logPath    string
	retryDelay time.Duration
	mu         sync.RWMutex
}

type backoffState struct {
	subsequentFailures int
	skippedRequests    int
}

// ErrPartialStream reports a stream that failed after output was delivered.
// Such streams are never retried on another provider.
var ErrPartialStream = errors.New("stream failed after partial output")

// New creates a new Provider with failover and unified logging.
// providers: ordered list of all initialized providers.
// names: names corresponding to the provider list.
func New(providers []llm.Provider, names []string, logPath string) (*Provider, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider required for failover")
	}
	if len(providers) != len(names) {
		return nil, fmt.Errorf("provider count (%d) does not match name count (%d)", len(providers), len(names))
	}

	return &Provider{
		providers:  providers,
		names:      names,
		disabled:   make(map[int]bool),
		backoffs:   make(map[string]*backoffState),
		logPath:    logPath,
		retryDelay: time.Second,
	}, nil
}

// Complete implements llm.Provider.
func (f *Provider) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	return f.execute(ctx, "complete", p, func(prov llm.Provider) (string, error) {
		return prov.Complete(ctx, p)
	})
}

// Stream implements llm.Provider. Providers are only switched while nothing
// has been delivered to onDelta.
func (f *Provider) Stream(ctx context.Context, p llm.Prompt, onDelta llm.DeltaFunc) (string, error) {
	delivered := false
	return f.execute(ctx, "stream", p, func(prov llm.Provider) (string, error) {
		if delivered {
			return "", ErrPartialStream
		}
		out, err := prov.Stream(ctx, p, func(d string) error {
			delivered = true
			if onDelta == nil {
				return nil
			}
			return onDelta(d)
		})
		if err != nil && delivered {
			return out, fmt.Errorf("%w: %w", ErrPartialStream, err)
		}
		return out, err
	})
}

// HealthCheck verifies that at least one provider is healthy.
func (f *Provider) HealthCheck(ctx context.Context) error {
	f.mu.RLock()
	providers := f.providers
	names := f.names
	disabled := make(map[int]bool)
	for k, v := range f.disabled {
		disabled[k] = v
	}
	f.mu.RUnlock()

	var errs []string
	for i, p := range providers {
		if disabled[i] {
			continue
		}
		if err := p.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", names[i], err))
			continue
		}
		return nil
	}

	if len(errs) == 0 {
		return fmt.Errorf("no providers available in failover chain")
	}
	return fmt.Errorf("all completion providers failed health check: %s", strings.Join(errs, "; "))
}

// execute runs fn against the provider chain.
func (f *Provider) execute(ctx context.Context, callName string, p llm.Prompt, fn func(llm.Provider) (string, error)) (string, error) {
	type candidate struct {
		index int
		p     llm.Provider
		name  string
	}
	var candidates []candidate

	f.mu.RLock()
	for i, prov := range f.providers {
		if f.disabled[i] {
			continue
		}
		candidates = append(candidates, candidate{i, prov, f.names[i]})
	}
	f.mu.RUnlock()

	if len(candidates) == 0 {
		return "", fmt.Errorf("no active completion provider")
	}

	for idx, c := range candidates {
		backoffKey := c.name + ":" + callName
		isLast := idx == len(candidates)-1

		f.mu.Lock()
		bs, exists := f.backoffs[backoffKey]
		if exists && !isLast && bs.skippedRequests < bs.subsequentFailures {
			bs.skippedRequests++
			slog.Debug("Completion provider in backoff, skipping", "provider", c.name, "call", callName, "skipped", bs.skippedRequests, "target", bs.subsequentFailures)
			f.mu.Unlock()
			continue
		}
		f.mu.Unlock()

		res, err := fn(c.p)
		if err == nil {
			f.mu.Lock()
			delete(f.backoffs, backoffKey)
			f.mu.Unlock()
			f.logRequest(c.name, callName, p, res, nil)
			return res, nil
		}

		f.logRequest(c.name, callName, p, "", err)
		if errors.Is(err, ErrPartialStream) || ctx.Err() != nil {
			return res, err
		}

		if isUnrecoverable(err) {
			if !isLast {
				slog.Warn("Completion provider fatal error, disabling for the session", "provider", c.name, "error", err)
				f.mu.Lock()
				f.disabled[c.index] = true
				f.mu.Unlock()
				continue
			}
			return "", err
		}

		f.mu.Lock()
		bs, exists = f.backoffs[backoffKey]
		if !exists {
			bs = &backoffState{}
			f.backoffs[backoffKey] = bs
		}
		bs.subsequentFailures++
		bs.skippedRequests = 0
		failures := bs.subsequentFailures
		f.mu.Unlock()

		if !isLast {
			slog.Info("Completion provider failed (retryable), falling back", "provider", c.name, "next", candidates[idx+1].name, "error", err, "backoff_failures", failures)
			continue
		}

		res, err = f.retryLast(ctx, c.name, func() (string, error) { return fn(c.p) })
		if err != nil {
			f.logRequest(c.name, callName, p, "", err)
			return res, err
		}
		f.mu.Lock()
		delete(f.backoffs, backoffKey)
		f.mu.Unlock()
		f.logRequest(c.name, callName, p, res, nil)
		return res, nil
	}

	return "", fmt.Errorf("all completion providers exhausted for %s", callName)
}

func (f *Provider) retryLast(ctx context.Context, name string, fn func() (string, error)) (string, error) {
	var lastErr error
	delay := f.retryDelay
	for attempt := 1; attempt <= 3; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err
		if errors.Is(err, ErrPartialStream) {
			return res, err
		}
		if isUnrecoverable(err) {
			return "", fmt.Errorf("last provider failed with fatal error: %w", err)
		}

		slog.Warn("Last completion provider failed, retrying with backoff", "provider", name, "attempt", attempt, "next_delay", delay*2, "error", err)
		delay *= 2
	}
	return "", fmt.Errorf("last provider exhausted after 3 retries: %w", lastErr)
}

func (f *Provider) logRequest(providerName, callName string, p llm.Prompt, response string, err error) {
	if f.logPath == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(f.logPath), 0o755); err != nil {
		return
	}

	file, fErr := os.OpenFile(f.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fErr != nil {
		return
	}
	defer file.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	var entry string

	// Failures record only the reason, successes the full exchange.
	if err != nil {
		entry = fmt.Sprintf("[%s][%s] ERROR: %s - %v\n%s\n",
			timestamp, strings.ToUpper(providerName), callName, err, strings.Repeat("-", 80))
	} else {
		entry = fmt.Sprintf("[%s][%s] PROMPT: %s\nSYSTEM:\n%s\n\nUSER:\n%s\n\nRESPONSE:\n%s\n%s\n",
			timestamp, strings.ToUpper(providerName), callName,
			llm.WordWrap(p.System, 80), llm.WordWrap(p.User, 80), llm.WordWrap(response, 80), strings.Repeat("-", 80))
	}

	_, _ = file.WriteString(entry)
}

// isUnrecoverable identifies errors that should trigger a circuit break (unless it's the last provider).
func isUnrecoverable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// 429 and 5xx are retryable.
	return strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "400") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "invalid_api_key") ||
		strings.Contains(msg, "api key is missing")
}
