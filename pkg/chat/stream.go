// Package chat implements the visitor chat: the event-stream assembler for
// completion responses, the conversation log, and its typewriter presentation.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"docentgo/pkg/logging"
)

// Stream event names.
const (
	EventStart    = "start"
	EventDelta    = "delta"
	EventComplete = "complete"
	EventError    = "error"
)

// StreamEvent is the JSON payload of one data line.
type StreamEvent struct {
	Event    string `json:"event"`
	Text     string `json:"text,omitempty"`
	FullText string `json:"fullText,omitempty"`
	Message  string `json:"message,omitempty"`
}

// StreamFatalError ends a stream: an explicit error event or a broken connection.
type StreamFatalError struct {
	Message string
	Err     error
}

func (e *StreamFatalError) Error() string {
	if e.Message == "" && e.Err != nil {
		return "chat stream failed: " + e.Err.Error()
	}
	return "chat stream failed: " + e.Message
}

func (e *StreamFatalError) Unwrap() error { return e.Err }

// IsStreamFatal reports whether err ended a stream.
func IsStreamFatal(err error) bool {
	var sfe *StreamFatalError
	return errors.As(err, &sfe)
}

var frameSep = []byte("\n\n")

// Assembler rebuilds a message from event-stream frames. Frames may arrive
// split across any number of chunks; only complete frames are parsed until
// Close flushes the remainder.
type Assembler struct {
	onDelta func(text string)

	buf      []byte
	text     string
	complete bool
}

// NewAssembler returns an assembler calling onDelta with the accumulated text
// after every delta. onDelta may be nil.
func NewAssembler(onDelta func(text string)) *Assembler {
	return &Assembler{onDelta: onDelta}
}

// Feed consumes one chunk. It returns a *StreamFatalError on an error event.
// After a complete event further input is ignored.
func (a *Assembler) Feed(chunk []byte) error {
	if a.complete {
		return nil
	}
	a.buf = append(a.buf, chunk...)
	a.buf = bytes.ReplaceAll(a.buf, []byte("\r\n"), []byte("\n"))

	for !a.complete {
		i := bytes.Index(a.buf, frameSep)
		if i < 0 {
			return nil
		}
		frame := string(a.buf[:i])
		a.buf = a.buf[i+len(frameSep):]
		if err := a.frame(frame); err != nil {
			return err
		}
	}
	return nil
}

// Close parses whatever is left in the buffer as a final frame and returns the
// message text.
func (a *Assembler) Close() (string, error) {
	if !a.complete && len(bytes.TrimSpace(a.buf)) > 0 {
		frame := string(a.buf)
		a.buf = nil
		if err := a.frame(frame); err != nil {
			return a.text, err
		}
	}
	return a.text, nil
}

// Done reports whether a complete event was seen.
func (a *Assembler) Done() bool { return a.complete }

// Text returns the text assembled so far.
func (a *Assembler) Text() string { return a.text }

func (a *Assembler) frame(frame string) error {
	for _, line := range strings.Split(frame, "\n") {
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var ev StreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			slog.Warn("Skipping malformed chat stream frame", "error", err, "payload", truncate(payload, 120))
			continue
		}
		logging.TraceDefault("Chat stream frame", "event", ev.Event, "chars", len(ev.Text)+len(ev.FullText))

		switch ev.Event {
		case EventDelta:
			if ev.FullText != "" {
				a.text = ev.FullText
			} else {
				a.text += ev.Text
			}
			if a.onDelta != nil {
				a.onDelta(a.text)
			}
		case EventComplete:
			if ev.Text != "" {
				a.text = ev.Text
			}
			a.complete = true
			return nil
		case EventError:
			return &StreamFatalError{Message: ev.Message}
		}
	}
	return nil
}

// ReadStream assembles the event stream r until a complete event, an error
// event or EOF. A read failure other than EOF is a *StreamFatalError.
func ReadStream(ctx context.Context, r io.Reader, onDelta func(text string)) (string, error) {
	a := NewAssembler(onDelta)
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return a.Text(), &StreamFatalError{Err: err}
		}
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := a.Feed(buf[:n]); ferr != nil {
				return a.Text(), ferr
			}
			if a.Done() {
				return a.Text(), nil
			}
		}
		if errors.Is(err, io.EOF) {
			return a.Close()
		}
		if err != nil {
			return a.Text(), &StreamFatalError{Err: fmt.Errorf("read stream: %w", err)}
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
