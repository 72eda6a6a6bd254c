// Package speechtest provides a scriptable speech.Engine for tests.
package speechtest

import (
	"context"
	"errors"
	"sync"

	"docentgo/pkg/speech"
)

// Engine records utterances and lets tests emit their events by hand.
// Cancel and replacement emit ErrInterrupted synchronously, like the platform engines.
type Engine struct {
	AutoStart bool // emit start from inside Speak

	mu       sync.Mutex
	spoken   []*speech.Utterance
	current  *speech.Utterance
	paused   bool
	cancels  int
	pauses   int
	resumes  int
	voices   []speech.Voice
	speakErr error
}

// New returns an engine offering voices.
func New(voices ...speech.Voice) *Engine {
	return &Engine{voices: voices}
}

// FailNextSpeak makes the next Speak call return err.
func (e *Engine) FailNextSpeak(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speakErr = err
}

func (e *Engine) Speak(u *speech.Utterance) error {
	e.mu.Lock()
	if err := e.speakErr; err != nil {
		e.speakErr = nil
		e.mu.Unlock()
		return err
	}
	prev := e.current
	e.current = u
	e.paused = false
	e.spoken = append(e.spoken, u)
	auto := e.AutoStart
	e.mu.Unlock()

	if prev != nil {
		prev.Emit(speech.Event{Kind: speech.EventError, Err: speech.ErrInterrupted})
	}
	if auto {
		u.Emit(speech.Event{Kind: speech.EventStart})
	}
	return nil
}

func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	if e.current != nil {
		e.paused = true
	}
}

func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumes++
	e.paused = false
}

func (e *Engine) Cancel() {
	e.mu.Lock()
	e.cancels++
	cur := e.current
	e.current = nil
	e.paused = false
	e.mu.Unlock()

	if cur != nil {
		cur.Emit(speech.Event{Kind: speech.EventError, Err: speech.ErrInterrupted})
	}
}

func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) Voices(context.Context) ([]speech.Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speech.Voice(nil), e.voices...), nil
}

// Current returns the utterance being spoken, or nil.
func (e *Engine) Current() *speech.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Spoken returns every utterance passed to Speak, in order.
func (e *Engine) Spoken() []*speech.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*speech.Utterance(nil), e.spoken...)
}

// Cancels returns how many times Cancel was called.
func (e *Engine) Cancels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}

// Pauses returns how many times Pause was called.
func (e *Engine) Pauses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauses
}

// Resumes returns how many times Resume was called.
func (e *Engine) Resumes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumes
}

// Start emits start for the current utterance.
func (e *Engine) Start() { e.emit(speech.Event{Kind: speech.EventStart}) }

// Boundary emits a boundary for the current utterance.
func (e *Engine) Boundary(charIndex, charLength int) {
	e.emit(speech.Event{Kind: speech.EventBoundary, CharIndex: charIndex, CharLength: charLength})
}

// End finishes the current utterance naturally.
func (e *Engine) End() { e.finish(speech.Event{Kind: speech.EventEnd}) }

// Fail finishes the current utterance with err.
func (e *Engine) Fail(err error) {
	if err == nil {
		err = errors.New("synthesis-failed")
	}
	e.finish(speech.Event{Kind: speech.EventError, Err: err})
}

func (e *Engine) emit(ev speech.Event) {
	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()
	if cur != nil {
		cur.Emit(ev)
	}
}

func (e *Engine) finish(ev speech.Event) {
	e.mu.Lock()
	cur := e.current
	e.current = nil
	e.paused = false
	e.mu.Unlock()
	if cur != nil {
		cur.Emit(ev)
	}
}
