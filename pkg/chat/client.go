package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"docentgo/pkg/request"
)

// Request is the body of a completion call.
type Request struct {
	Message           string `json:"message"`
	SystemInstruction string `json:"systemInstruction,omitempty"`
	Stream            bool   `json:"stream"`
	MaxLines          int    `json:"maxLines,omitempty"`
	UseBackendChat    bool   `json:"useBackendChat,omitempty"`
}

// Response is an open completion response. The caller closes Body.
type Response struct {
	Body        io.ReadCloser
	ContentType string
}

// IsEventStream reports whether the body is framed as an event stream.
func (r *Response) IsEventStream() bool {
	mt, _, err := mime.ParseMediaType(r.ContentType)
	return err == nil && mt == "text/event-stream"
}

// Transport delivers completion requests.
type Transport interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport posts requests to a remote completion endpoint.
// Calls carry no client timeout; cancel ctx to abandon one.
type HTTPTransport struct {
	client   *request.Client
	endpoint string
}

// NewHTTPTransport returns a transport for endpoint.
func NewHTTPTransport(client *request.Client, endpoint string) *HTTPTransport {
	return &HTTPTransport{client: client, endpoint: endpoint}
}

// Complete implements Transport.
func (t *HTTPTransport) Complete(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "text/event-stream, application/json",
	}
	resp, err := t.client.Stream(ctx, http.MethodPost, t.endpoint, body, headers)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	return &Response{Body: resp.Body, ContentType: resp.Header.Get("Content-Type")}, nil
}
