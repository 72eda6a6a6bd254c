// Package relay serves the chat completion endpoint: it asks the museum
// backend or a completion provider and answers as JSON or as an event stream.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"docentgo/pkg/chat"
	"docentgo/pkg/config"
	"docentgo/pkg/llm"
	"docentgo/pkg/llm/backend"
)

// Asker answers questions from the museum backend.
type Asker interface {
	Ask(ctx context.Context, query string) (*backend.Answer, error)
}

// Relay answers chat completion requests.
type Relay struct {
	provider llm.Provider
	backend  Asker
	cfg      config.LLMConfig
}

// New returns a relay. provider and backend may each be nil.
func New(provider llm.Provider, backend Asker, cfg config.LLMConfig) *Relay {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	return &Relay{provider: provider, backend: backend, cfg: cfg}
}

// ServeHTTP implements http.Handler.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method Not Allowed"})
		return
	}

	var body chat.Request
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": `Missing "message" string in body`})
		return
	}

	ctx := req.Context()
	if r.backend != nil && (r.cfg.Backend.Enabled || body.UseBackendChat) {
		if r.serveBackend(ctx, w, body) {
			return
		}
	}

	if r.provider == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Server misconfiguration: no completion provider configured"})
		return
	}

	prompt := llm.Prompt{
		System:      body.SystemInstruction,
		User:        body.Message,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}
	if body.Stream {
		r.serveStream(ctx, w, prompt)
		return
	}

	text, err := r.provider.Complete(ctx, prompt)
	if err != nil {
		slog.Error("Completion failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "Completion API error", "details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": llm.TruncateLines(text, body.MaxLines)})
}

// serveBackend reports whether the backend answered.
func (r *Relay) serveBackend(ctx context.Context, w http.ResponseWriter, body chat.Request) bool {
	ans, err := r.backend.Ask(ctx, body.Message)
	if err != nil {
		slog.Warn("Backend chat attempt failed", "error", err)
		return false
	}
	if ans.JSON != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(ans.JSON)
		return true
	}

	text := ans.Text
	if text != "" && r.cfg.FixSpacing && llm.NeedsSpacing(text) {
		text = r.fixSpacing(ctx, text)
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": text, "source": "backend-merged"})
	return true
}

// serveStream frames provider deltas as an event stream. Failures before the
// first delta are answered with a JSON error instead.
func (r *Relay) serveStream(ctx context.Context, w http.ResponseWriter, prompt llm.Prompt) {
	var sw *chat.StreamWriter
	open := func() error {
		if sw != nil {
			return nil
		}
		sw = chat.NewStreamWriter(w)
		w.WriteHeader(http.StatusOK)
		return sw.Start()
	}

	var full strings.Builder
	_, err := r.provider.Stream(ctx, prompt, func(delta string) error {
		if err := open(); err != nil {
			return err
		}
		full.WriteString(delta)
		return sw.Delta(delta, full.String())
	})

	if err != nil && sw == nil {
		slog.Error("Completion stream failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "Completion API error", "details": err.Error()})
		return
	}
	if oerr := open(); oerr != nil {
		return
	}
	if err != nil {
		slog.Error("Completion stream interrupted", "error", err, "chars", full.Len())
		_ = sw.Error(err.Error())
		return
	}
	_ = sw.Complete(full.String())
}

const (
	spacingInputLimit = 1500
	spacingSystem     = "당신은 한국어 문장을 자연스럽게 띄어쓰기 하는 교정 도우미입니다."
	spacingPrompt     = "다음 한국어 문장은 띄어쓰기가 거의 없습니다. 의미를 바꾸지 말고 자연스러운 문장으로 띄어쓰기를 넣어 주세요. 다른 주석을 덧붙이지 말고 결과 문장만 출력하세요.\n\n"
)

// fixSpacing asks the provider to re-space text. The input is returned on any failure.
func (r *Relay) fixSpacing(ctx context.Context, text string) string {
	if r.provider == nil {
		return text
	}
	input := []rune(text)
	if len(input) > spacingInputLimit {
		input = input[:spacingInputLimit]
	}
	maxTokens := len(input)*6/5 + 50
	if maxTokens > 900 {
		maxTokens = 900
	}

	fixed, err := r.provider.Complete(ctx, llm.Prompt{
		System:    spacingSystem,
		User:      spacingPrompt + string(input),
		MaxTokens: maxTokens,
	})
	if err != nil {
		slog.Warn("Spacing correction failed", "error", err)
		return text
	}
	if fixed = strings.TrimSpace(fixed); fixed == "" {
		return text
	}
	return fixed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
