package narration

import (
	"time"

	"docentgo/pkg/speech"
)

// Event is an input to the reducer.
type Event interface{ isEvent() }

// Load replaces the tour, as on a theme or age change.
type Load struct{ Spots []Spot }

type Play struct{}

type Pause struct{}

// Toggle pauses while speaking and plays otherwise.
type Toggle struct{}

type Jump struct{ Index int }

// Stop leaves the tour idle, as on leaving the screen.
type Stop struct{}

// Preempted reports that another owner took the speech engine.
type Preempted struct{}

type SpeechStarted struct{ Gen int }

type SpeechBoundary struct{ Gen, CharIndex, CharLength int }

type SpeechEnded struct{ Gen int }

type SpeechFailed struct {
	Gen int
	Err error
}

// Frame is an animation tick.
type Frame struct{ Gen int }

// Advance fires after the gap that follows a natural end.
type Advance struct{ Gen int }

func (Load) isEvent()           {}
func (Play) isEvent()           {}
func (Pause) isEvent()          {}
func (Toggle) isEvent()         {}
func (Jump) isEvent()           {}
func (Stop) isEvent()           {}
func (Preempted) isEvent()      {}
func (SpeechStarted) isEvent()  {}
func (SpeechBoundary) isEvent() {}
func (SpeechEnded) isEvent()    {}
func (SpeechFailed) isEvent()   {}
func (Frame) isEvent()          {}
func (Advance) isEvent()        {}

// Effect is a side effect requested by the reducer.
type Effect interface{ isEffect() }

type SpeakEffect struct {
	Gen  int
	Text string
}

type CancelEffect struct{}

type PauseEffect struct{}

type ResumeEffect struct{}

type FrameEffect struct {
	Gen   int
	After time.Duration
}

type AdvanceEffect struct {
	Gen   int
	After time.Duration
}

func (SpeakEffect) isEffect()   {}
func (CancelEffect) isEffect()  {}
func (PauseEffect) isEffect()   {}
func (ResumeEffect) isEffect()  {}
func (FrameEffect) isEffect()   {}
func (AdvanceEffect) isEffect() {}

// Reduce applies ev to s at time now. It does not modify s.
func Reduce(t Timing, s State, ev Event, now time.Time) (State, []Effect) {
	s = s.clone()

	switch e := ev.(type) {
	case Load:
		var fx []Effect
		if s.Phase == PhaseSpeaking {
			fx = append(fx, CancelEffect{})
		}
		return State{
			Phase:    PhaseIdle,
			Spots:    e.Spots,
			Progress: make([]int, len(e.Spots)),
			Gen:      s.Gen + 1,
		}, fx

	case Play:
		return play(t, s, now)

	case Pause:
		return pause(s, now)

	case Toggle:
		if s.Phase == PhaseSpeaking {
			return pause(s, now)
		}
		return play(t, s, now)

	case Jump:
		if e.Index < 0 || e.Index >= len(s.Spots) {
			return s, nil
		}
		wasPlaying := s.Phase == PhaseSpeaking
		for k := e.Index; k < len(s.Progress); k++ {
			s.Progress[k] = 0
		}
		s.Index = e.Index
		s.LastErr = ""
		s = reset(s)
		fx := []Effect{CancelEffect{}}
		if wasPlaying {
			s.Phase = PhaseSpeaking
			return s, append(fx, speak(s))
		}
		s.Phase = PhaseIdle
		return s, fx

	case Stop:
		switch s.Phase {
		case PhaseSpeaking:
			s.Phase = PhaseIdle
			return reset(s), []Effect{CancelEffect{}}
		case PhasePaused:
			// The paused utterance is left untouched in the engine.
			s.Phase = PhaseIdle
			return reset(s), nil
		}
		return s, nil

	case Preempted:
		if s.Phase != PhaseSpeaking && s.Phase != PhasePaused {
			return s, nil
		}
		s.Phase = PhaseIdle
		s.setProgress(s.Index, 0)
		return reset(s), nil

	case SpeechStarted:
		if e.Gen != s.Gen || s.started {
			return s, nil
		}
		s.started = true
		if s.Phase != PhaseSpeaking {
			return s, nil
		}
		spot, _ := s.current()
		s.anim = animation{active: true, from: s.Progress[s.Index], start: now, dur: t.Estimate(spot.Text)}
		return s, []Effect{FrameEffect{Gen: s.Gen, After: t.FrameInterval}}

	case SpeechBoundary:
		if e.Gen != s.Gen || s.ended || (s.Phase != PhaseSpeaking && s.Phase != PhasePaused) {
			return s, nil
		}
		spot, ok := s.current()
		n := len([]rune(spot.Text))
		if !ok || n == 0 {
			return s, nil
		}
		end := e.CharIndex + e.CharLength
		if end > n {
			end = n
		}
		p := end * 100 / n
		if p > 99 {
			p = 99
		}
		s.boundary = true
		s.anim.active = false
		s.raise(s.Index, p)
		return s, nil

	case SpeechEnded:
		if e.Gen != s.Gen || s.ended || (s.Phase != PhaseSpeaking && s.Phase != PhasePaused) {
			return s, nil
		}
		s.ended = true
		s.anim.active = false
		s.setProgress(s.Index, 100)
		if s.Phase != PhaseSpeaking {
			return s, nil
		}
		return s, []Effect{AdvanceEffect{Gen: s.Gen, After: t.AdvanceDelay}}

	case SpeechFailed:
		if e.Gen != s.Gen || speech.IsInterrupted(e.Err) || (s.Phase != PhaseSpeaking && s.Phase != PhasePaused) {
			return s, nil
		}
		s.Phase = PhaseIdle
		s.setProgress(s.Index, 0)
		if e.Err != nil {
			s.LastErr = e.Err.Error()
		}
		return reset(s), nil

	case Frame:
		if e.Gen != s.Gen || s.Phase != PhaseSpeaking || !s.anim.active {
			return s, nil
		}
		p := s.anim.at(now)
		s.raise(s.Index, p)
		if p >= 99 {
			s.anim.active = false
			return s, nil
		}
		return s, []Effect{FrameEffect{Gen: s.Gen, After: t.FrameInterval}}

	case Advance:
		if e.Gen != s.Gen || s.Phase != PhaseSpeaking || !s.ended {
			return s, nil
		}
		return advance(s)
	}
	return s, nil
}

func play(t Timing, s State, now time.Time) (State, []Effect) {
	switch s.Phase {
	case PhaseIdle:
		if _, ok := s.current(); !ok {
			return s, nil
		}
		s.Phase = PhaseSpeaking
		s.LastErr = ""
		s.setProgress(s.Index, 0)
		s = reset(s)
		return s, []Effect{speak(s)}

	case PhasePaused:
		s.Phase = PhaseSpeaking
		if s.ended {
			return advance(s)
		}
		fx := []Effect{ResumeEffect{}}
		if !s.started || s.boundary {
			return s, fx
		}
		spot, _ := s.current()
		p := s.Progress[s.Index]
		remaining := time.Duration(float64(100-p) / 100 * float64(t.Estimate(spot.Text)))
		if remaining < t.MinRemaining {
			remaining = t.MinRemaining
		}
		s.anim = animation{active: true, from: p, start: now, dur: remaining}
		return s, append(fx, FrameEffect{Gen: s.Gen, After: t.FrameInterval})

	case PhaseCompleted:
		if len(s.Spots) == 0 {
			return s, nil
		}
		for i := range s.Progress {
			s.Progress[i] = 0
		}
		s.Index = 0
		s.Phase = PhaseSpeaking
		s.LastErr = ""
		s = reset(s)
		return s, []Effect{speak(s)}
	}
	return s, nil
}

func pause(s State, now time.Time) (State, []Effect) {
	if s.Phase != PhaseSpeaking {
		return s, nil
	}
	if s.anim.active {
		s.raise(s.Index, s.anim.at(now))
		s.anim.active = false
	}
	s.Phase = PhasePaused
	return s, []Effect{PauseEffect{}}
}

func advance(s State) (State, []Effect) {
	if s.Index+1 < len(s.Spots) {
		s.Index++
		s.setProgress(s.Index, 0)
		s = reset(s)
		return s, []Effect{speak(s)}
	}
	s.Phase = PhaseCompleted
	return reset(s), nil
}

// reset starts a new utterance generation.
func reset(s State) State {
	s.Gen++
	s.started = false
	s.ended = false
	s.boundary = false
	s.anim = animation{}
	return s
}

func speak(s State) Effect {
	spot, _ := s.current()
	return SpeakEffect{Gen: s.Gen, Text: spot.Text}
}
