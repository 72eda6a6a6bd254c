package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"docentgo/pkg/chat"
)

// Transport delivers chat requests to a Relay in process. Responses are
// streamed through a pipe exactly as they would be over HTTP.
type Transport struct {
	relay *Relay
}

// NewTransport returns an in-process chat.Transport for r.
func NewTransport(r *Relay) *Transport {
	return &Transport{relay: r}
}

// Complete implements chat.Transport.
func (t *Transport) Complete(ctx context.Context, req chat.Request) (*chat.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, "/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	pr, pw := io.Pipe()
	w := newPipeWriter(pw)
	go func() {
		t.relay.ServeHTTP(w, hreq)
		w.commit(http.StatusOK)
		pw.Close()
	}()

	select {
	case <-w.ready:
	case <-ctx.Done():
		pr.CloseWithError(ctx.Err())
		return nil, ctx.Err()
	}

	if w.status < 200 || w.status >= 300 {
		defer pr.Close()
		snippet, _ := io.ReadAll(io.LimitReader(pr, 512))
		return nil, fmt.Errorf("chat relay answered %d: %s", w.status, strings.TrimSpace(string(snippet)))
	}
	return &chat.Response{Body: pr, ContentType: w.header.Get("Content-Type")}, nil
}

// pipeWriter is an http.ResponseWriter over a pipe.
type pipeWriter struct {
	header http.Header
	pw     *io.PipeWriter
	status int
	ready  chan struct{}
	once   sync.Once
}

func newPipeWriter(pw *io.PipeWriter) *pipeWriter {
	return &pipeWriter{header: make(http.Header), pw: pw, ready: make(chan struct{})}
}

func (w *pipeWriter) Header() http.Header { return w.header }

func (w *pipeWriter) WriteHeader(status int) { w.commit(status) }

func (w *pipeWriter) Write(p []byte) (int, error) {
	w.commit(http.StatusOK)
	return w.pw.Write(p)
}

// Flush is a no-op; pipe writes are delivered as they happen.
func (w *pipeWriter) Flush() {}

func (w *pipeWriter) commit(status int) {
	w.once.Do(func() {
		w.status = status
		close(w.ready)
	})
}
