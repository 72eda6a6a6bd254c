package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docentgo/pkg/config"
	"docentgo/pkg/llm"
	"docentgo/pkg/tracker"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, req capturedRequest)) (*Client, *tracker.Tracker) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)

	tr := tracker.New()
	c, err := NewClient(config.ProviderConfig{Type: "openai", Key: "test_key", BaseURL: srv.URL + "/"}, tr)
	require.NoError(t, err)
	return c, tr
}

func TestClient_Complete(t *testing.T) {
	c, tr := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		assert.Equal(t, DefaultModel, req.Model)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		assert.Equal(t, 800, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "당신은 도슨트입니다.", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"pong"}}]}`)
	})

	out, err := c.Complete(context.Background(), llm.Prompt{System: "당신은 도슨트입니다.", User: "ping", Temperature: 0.7, MaxTokens: 800})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Equal(t, int64(1), tr.Snapshot()["openai"].APISuccess)
}

func TestClient_Stream(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, req capturedRequest) {
		assert.True(t, req.Stream)
		require.Len(t, req.Messages, 1, "no system message when empty")

		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"안녕", "", "하세요"} {
			fmt.Fprintf(w, "data: {\"id\":\"s1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-3.5-turbo\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	out, err := c.Stream(context.Background(), llm.Prompt{User: "hi"}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요", out)
	assert.Equal(t, []string{"안녕", "하세요"}, deltas)
}

func TestClient_StreamAbort(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ capturedRequest) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "data: {\"id\":\"s1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n\n")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stop := errors.New("client gone")
	out, err := c.Stream(context.Background(), llm.Prompt{User: "hi"}, func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, "x", out)
}

func TestClient_ErrorStatus(t *testing.T) {
	c, tr := newTestClient(t, func(w http.ResponseWriter, _ capturedRequest) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	})

	_, err := c.Complete(context.Background(), llm.Prompt{User: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int64(1), tr.Snapshot()["openai"].APIFailures)
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ProviderConfig
		wantErr bool
		model   string
	}{
		{"MissingKey", config.ProviderConfig{Type: "openai"}, true, ""},
		{"UnknownType", config.ProviderConfig{Type: "mystery", Key: "k"}, true, ""},
		{"GroqPreset", config.ProviderConfig{Type: "groq", Key: "k", Model: "llama-3.1-8b-instant"}, false, "llama-3.1-8b-instant"},
		{"DefaultModel", config.ProviderConfig{Type: "openai", Key: "k"}, false, DefaultModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.model, c.model)
		})
	}
}

func TestIsReasoner(t *testing.T) {
	assert.True(t, isReasoner("deepseek-reasoner"))
	assert.True(t, isReasoner("DeepSeek-R1"))
	assert.False(t, isReasoner("gpt-3.5-turbo"))
}
