package speech

import (
	"log/slog"
	"sync"
	"time"

	"docentgo/pkg/clock"
	"docentgo/pkg/logging"
)

// RetryPolicy bounds the silent-start retry. When an engine has not reported
// start within Timeout, the request is cancelled and spoken again with a fresh
// utterance, at most MaxAttempts extra times.
type RetryPolicy struct {
	MaxAttempts int
	Timeout     time.Duration
}

// DefaultRetryPolicy retries once after 1.2s of silence.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, Timeout: 1200 * time.Millisecond}
}

// Request is what an owner wants spoken.
type Request struct {
	Text   string
	Params Params
}

// Synthesizer drives the engine for one owner.
// Events reach the caller only for the current request; anything from an
// abandoned attempt or a superseded request is dropped.
type Synthesizer struct {
	floor  *Floor
	owner  Owner
	clock  clock.Clock
	policy RetryPolicy

	mu        sync.Mutex
	current   *job
	onPreempt func()
}

type job struct {
	req      Request
	onEvent  func(Event)
	uttID    string
	started  bool
	retries  int
	deadline clock.Timer
}

// NewSynthesizer binds owner to floor.
func NewSynthesizer(floor *Floor, owner Owner, clk clock.Clock, policy RetryPolicy) *Synthesizer {
	if clk == nil {
		clk = clock.Real{}
	}
	s := &Synthesizer{floor: floor, owner: owner, clock: clk, policy: policy}
	floor.OnPreempt(owner, s.preempted)
	return s
}

// Owner returns the owner this synthesizer speaks for.
func (s *Synthesizer) Owner() Owner { return s.owner }

// OnPreempt registers fn to run when another owner takes the floor mid-request.
func (s *Synthesizer) OnPreempt(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPreempt = fn
}

// Speak cancels this owner's current request, if any, and starts req.
func (s *Synthesizer) Speak(req Request, onEvent func(Event)) error {
	j := &job{req: req, onEvent: onEvent}

	s.mu.Lock()
	prev := s.current
	s.current = j
	if prev != nil && prev.deadline != nil {
		prev.deadline.Stop()
	}
	s.mu.Unlock()

	if prev != nil {
		s.floor.Cancel(s.owner)
	}
	return s.launch(j)
}

func (s *Synthesizer) launch(j *job) error {
	var u *Utterance
	u = NewUtterance(j.req.Text, j.req.Params, func(ev Event) {
		s.handle(j, u.ID, ev)
	})

	s.mu.Lock()
	if s.current != j {
		s.mu.Unlock()
		return nil
	}
	j.uttID = u.ID
	j.started = false
	if s.policy.Timeout > 0 {
		id := u.ID
		j.deadline = s.clock.AfterFunc(s.policy.Timeout, func() { s.timeout(j, id) })
	}
	s.mu.Unlock()

	logging.SpeechLogger.Info("Speak", "owner", s.owner, "utterance", u.ID, "attempt", j.retries+1, "chars", len([]rune(u.Text)))
	if err := s.floor.Speak(s.owner, u); err != nil {
		s.mu.Lock()
		if j.deadline != nil {
			j.deadline.Stop()
		}
		if s.current == j {
			s.current = nil
		}
		s.mu.Unlock()
		return &SynthesisError{UtteranceID: u.ID, Err: err}
	}
	return nil
}

func (s *Synthesizer) handle(j *job, id string, ev Event) {
	s.mu.Lock()
	if s.current != j || j.uttID != id {
		s.mu.Unlock()
		logging.Trace(logging.SpeechLogger, "Dropped stale speech event", "owner", s.owner, "utterance", id, "kind", ev.Kind)
		return
	}
	switch {
	case ev.Kind == EventStart:
		j.started = true
		if j.deadline != nil {
			j.deadline.Stop()
		}
	case ev.Kind.Terminal():
		if j.deadline != nil {
			j.deadline.Stop()
		}
		s.current = nil
	}
	s.mu.Unlock()

	if ev.Kind == EventError && !IsInterrupted(ev.Err) {
		ev.Err = &SynthesisError{UtteranceID: id, Err: ev.Err}
	}
	logging.SpeechLogger.Debug("Speech event", "owner", s.owner, "utterance", id, "kind", ev.Kind, "error", ev.Err)
	if j.onEvent != nil {
		j.onEvent(ev)
	}
}

func (s *Synthesizer) timeout(j *job, id string) {
	s.mu.Lock()
	if s.current != j || j.uttID != id || j.started {
		s.mu.Unlock()
		return
	}
	if j.retries >= s.policy.MaxAttempts {
		j.uttID = ""
		s.current = nil
		s.mu.Unlock()
		slog.Warn("Speech did not start, retries exhausted", "owner", s.owner, "utterance", id)
		s.floor.Cancel(s.owner)
		if j.onEvent != nil {
			j.onEvent(Event{Kind: EventError, UtteranceID: id, Err: &SynthesisError{UtteranceID: id, Err: ErrNoStart}})
		}
		return
	}
	j.retries++
	j.uttID = "" // events from the silent attempt are stale from here on
	s.mu.Unlock()

	if !s.floor.Cancel(s.owner) {
		s.mu.Lock()
		if s.current == j {
			s.current = nil
		}
		s.mu.Unlock()
		return
	}
	slog.Info("Speech did not start, retrying", "owner", s.owner, "utterance", id, "attempt", j.retries+1)
	if err := s.launch(j); err != nil {
		slog.Error("Speech retry failed", "owner", s.owner, "error", err)
		if j.onEvent != nil {
			j.onEvent(Event{Kind: EventError, UtteranceID: id, Err: err})
		}
	}
}

// Pause pauses the current request.
func (s *Synthesizer) Pause() bool {
	if !s.Active() {
		return false
	}
	return s.floor.Pause(s.owner)
}

// Resume resumes the current request.
func (s *Synthesizer) Resume() bool {
	if !s.Active() {
		return false
	}
	return s.floor.Resume(s.owner)
}

// Cancel drops the current request. No further events are delivered for it.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	j := s.current
	s.current = nil
	if j != nil && j.deadline != nil {
		j.deadline.Stop()
	}
	s.mu.Unlock()

	if j != nil {
		s.floor.Cancel(s.owner)
	}
}

// Active reports whether a request is in flight.
func (s *Synthesizer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

func (s *Synthesizer) preempted() {
	s.mu.Lock()
	j := s.current
	s.current = nil
	if j != nil && j.deadline != nil {
		j.deadline.Stop()
	}
	fn := s.onPreempt
	s.mu.Unlock()

	if j == nil {
		return
	}
	slog.Info("Speech preempted", "owner", s.owner)
	if fn != nil {
		fn()
	}
}
