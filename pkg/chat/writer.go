package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// StreamWriter emits event-stream frames. It flushes after every frame when
// the underlying writer supports it.
type StreamWriter struct {
	mu sync.Mutex
	w  io.Writer
	fl http.Flusher
}

// NewStreamWriter wraps w. For an http.ResponseWriter it also sets the
// event-stream headers.
func NewStreamWriter(w io.Writer) *StreamWriter {
	sw := &StreamWriter{w: w}
	if rw, ok := w.(http.ResponseWriter); ok {
		h := rw.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache, no-transform")
		h.Set("Connection", "keep-alive")
	}
	if fl, ok := w.(http.Flusher); ok {
		sw.fl = fl
	}
	return sw
}

// Send writes ev as one frame.
func (sw *StreamWriter) Send(ev StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode stream event: %w", err)
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if sw.fl != nil {
		sw.fl.Flush()
	}
	return nil
}

func (sw *StreamWriter) Start() error { return sw.Send(StreamEvent{Event: EventStart}) }

// Delta sends an increment together with the text so far.
func (sw *StreamWriter) Delta(text, fullText string) error {
	return sw.Send(StreamEvent{Event: EventDelta, Text: text, FullText: fullText})
}

func (sw *StreamWriter) Complete(text string) error {
	return sw.Send(StreamEvent{Event: EventComplete, Text: text})
}

func (sw *StreamWriter) Error(message string) error {
	return sw.Send(StreamEvent{Event: EventError, Message: message})
}
