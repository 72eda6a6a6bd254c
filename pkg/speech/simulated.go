package speech

import (
	"context"
	"sync"
	"time"
	"unicode"

	"docentgo/pkg/clock"
)

// Simulated is a silent engine that paces utterances on a clock: start fires
// immediately, a boundary fires as each word begins, and end fires once every
// rune has had CharDuration/rate. It backs headless kiosks and demos.
type Simulated struct {
	clock        clock.Clock
	charDuration time.Duration
	voices       []Voice

	mu  sync.Mutex
	cur *simRun
}

type simRun struct {
	u         *Utterance
	steps     []simStep
	next      int
	timer     clock.Timer
	due       time.Time
	paused    bool
	remaining time.Duration
	seq       int // invalidates callbacks of stopped timers
}

type simStep struct {
	at time.Duration
	ev Event
}

// NewSimulated creates a simulated engine offering voices.
func NewSimulated(clk clock.Clock, charDuration time.Duration, voices []Voice) *Simulated {
	if clk == nil {
		clk = clock.Real{}
	}
	if charDuration <= 0 {
		charDuration = 150 * time.Millisecond
	}
	return &Simulated{clock: clk, charDuration: charDuration, voices: voices}
}

func (s *Simulated) Speak(u *Utterance) error {
	run := &simRun{u: u, steps: s.plan(u)}

	s.mu.Lock()
	prev := s.cur
	s.cur = run
	if prev != nil && prev.timer != nil {
		prev.timer.Stop()
	}
	s.scheduleLocked(run, 0)
	s.mu.Unlock()

	if prev != nil {
		prev.u.Emit(Event{Kind: EventError, Err: ErrInterrupted})
	}
	return nil
}

// plan lays out start, one boundary per word, and end on the utterance timeline.
func (s *Simulated) plan(u *Utterance) []simStep {
	rate := u.Params.Rate
	if rate < 0.1 {
		rate = 1
	}
	perRune := time.Duration(float64(s.charDuration) / rate)

	runes := []rune(u.Text)
	steps := []simStep{{at: 0, ev: Event{Kind: EventStart}}}
	for i := 0; i < len(runes); {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && !unicode.IsSpace(runes[j]) {
			j++
		}
		steps = append(steps, simStep{
			at: time.Duration(i) * perRune,
			ev: Event{Kind: EventBoundary, CharIndex: i, CharLength: j - i},
		})
		i = j
	}
	steps = append(steps, simStep{at: time.Duration(len(runes)) * perRune, ev: Event{Kind: EventEnd}})
	return steps
}

func (s *Simulated) scheduleLocked(run *simRun, elapsed time.Duration) {
	if run.next >= len(run.steps) {
		return
	}
	wait := run.steps[run.next].at - elapsed
	if wait < 0 {
		wait = 0
	}
	s.armLocked(run, wait)
}

func (s *Simulated) armLocked(run *simRun, wait time.Duration) {
	run.seq++
	seq := run.seq
	run.due = s.clock.Now().Add(wait)
	run.timer = s.clock.AfterFunc(wait, func() { s.fire(run, seq) })
}

func (s *Simulated) fire(run *simRun, seq int) {
	s.mu.Lock()
	if s.cur != run || run.paused || run.seq != seq || run.next >= len(run.steps) {
		s.mu.Unlock()
		return
	}
	step := run.steps[run.next]
	run.next++
	if step.ev.Kind.Terminal() {
		s.cur = nil
	} else {
		s.scheduleLocked(run, step.at)
	}
	s.mu.Unlock()

	run.u.Emit(step.ev)
}

func (s *Simulated) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.cur
	if run == nil || run.paused {
		return
	}
	run.paused = true
	if run.timer != nil {
		run.timer.Stop()
	}
	run.remaining = run.due.Sub(s.clock.Now())
	if run.remaining < 0 {
		run.remaining = 0
	}
}

func (s *Simulated) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.cur
	if run == nil || !run.paused {
		return
	}
	run.paused = false
	s.armLocked(run, run.remaining)
}

func (s *Simulated) Cancel() {
	s.mu.Lock()
	run := s.cur
	s.cur = nil
	if run != nil && run.timer != nil {
		run.timer.Stop()
	}
	s.mu.Unlock()

	if run != nil {
		run.u.Emit(Event{Kind: EventError, Err: ErrInterrupted})
	}
}

func (s *Simulated) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

func (s *Simulated) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil && s.cur.paused
}

func (s *Simulated) Voices(context.Context) ([]Voice, error) {
	return append([]Voice(nil), s.voices...), nil
}
