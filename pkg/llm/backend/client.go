// Package backend asks the museum backend's own question-answering endpoint.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docentgo/pkg/config"
	"docentgo/pkg/llm"
	"docentgo/pkg/request"
)

// Answer is the backend's reply. JSON replies are kept verbatim; event-stream
// and plain replies are merged into Text.
type Answer struct {
	JSON json.RawMessage
	Text string
}

// Client posts {query} to the backend chat endpoint.
type Client struct {
	rc  *request.Client
	url string
}

// NewClient returns a client for cfg.
func NewClient(rc *request.Client, cfg config.BackendChatConfig) *Client {
	path := cfg.Path
	if path == "" {
		path = "/api/chat"
	}
	return &Client{rc: rc, url: strings.TrimSuffix(cfg.BaseURL, "/") + path}
}

// Ask sends one question. Any transport failure or non-2xx status is an error.
func (c *Client) Ask(ctx context.Context, query string) (*Answer, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	resp, err := c.rc.Stream(ctx, http.MethodPost, c.url, body, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("backend chat failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend chat read failed: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") && json.Valid(data) {
		return &Answer{JSON: json.RawMessage(data)}, nil
	}
	return &Answer{Text: llm.MergeStream(string(data))}, nil
}
