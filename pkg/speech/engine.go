// Package speech wraps a process-wide text-to-speech engine. Engines deliver
// a tagged Event stream per utterance; a Floor arbitrates which component may
// drive the engine; a Synthesizer adds the start-timeout retry for one owner.
package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// EventKind tags an engine event.
type EventKind string

const (
	EventStart    EventKind = "start"
	EventBoundary EventKind = "boundary"
	EventEnd      EventKind = "end"
	EventError    EventKind = "error"
)

// Terminal reports whether no further events follow for the utterance.
func (k EventKind) Terminal() bool {
	return k == EventEnd || k == EventError
}

// Event is one lifecycle notification. For a given utterance engines emit
// start, then any number of boundary events, then exactly one terminal event.
type Event struct {
	Kind        EventKind
	UtteranceID string
	CharIndex   int // boundary only, in runes
	CharLength  int // boundary only, in runes
	Err         error
}

// ErrInterrupted ends utterances that were cancelled on purpose.
var ErrInterrupted = errors.New("speech: interrupted")

// ErrNoStart fails an utterance the engine never started, retries included.
var ErrNoStart = errors.New("speech: engine did not start")

// IsInterrupted reports whether err is the benign cancellation error.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

// SynthesisError wraps a non-benign engine failure.
type SynthesisError struct {
	UtteranceID string
	Err         error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech synthesis failed (%s): %v", e.UtteranceID, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Voice is an engine voice.
type Voice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// Params are the prosody settings of an utterance.
type Params struct {
	Lang   string
	Voice  *Voice // nil uses the engine default
	Rate   float64
	Pitch  float64
	Volume float64
}

// Utterance is one request to speak. Handles are never reused: a retry builds
// a fresh Utterance with the same text and params.
type Utterance struct {
	ID      string
	Text    string
	Params  Params
	OnEvent func(Event)
}

// NewUtterance creates an utterance with a fresh id.
func NewUtterance(text string, p Params, onEvent func(Event)) *Utterance {
	return &Utterance{
		ID:      uuid.NewString(),
		Text:    text,
		Params:  p,
		OnEvent: onEvent,
	}
}

// Emit delivers ev for u, stamping the utterance id. Engines call it without holding locks.
func (u *Utterance) Emit(ev Event) {
	ev.UtteranceID = u.ID
	if u.OnEvent != nil {
		u.OnEvent(ev)
	}
}

// Engine is the platform synthesis capability.
//
// Speak replaces whatever is current; the replaced utterance ends with an
// ErrInterrupted error event. Cancel ends the current utterance the same way.
// Pause and Resume keep the engine state of the current utterance.
type Engine interface {
	Speak(u *Utterance) error
	Pause()
	Resume()
	Cancel()
	Speaking() bool
	Paused() bool
	Voices(ctx context.Context) ([]Voice, error)
}
