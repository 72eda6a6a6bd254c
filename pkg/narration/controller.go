package narration

import (
	"errors"
	"log/slog"
	"sync"

	"docentgo/pkg/clock"
	"docentgo/pkg/logging"
	"docentgo/pkg/speech"
)

// Snapshot is a read-only view of the tour for the UI.
type Snapshot struct {
	ThemeID   string `json:"themeId"`
	Phase     Phase  `json:"phase"`
	Index     int    `json:"activeSpotIndex"`
	Playing   bool   `json:"isPlaying"`
	Completed bool   `json:"isCompleted"`
	Progress  []int  `json:"progress"`
	Spots     []Spot `json:"spots"`
	Video     string `json:"video,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ErrClosed is returned for commands sent to a closed controller.
var ErrClosed = errors.New("narration: controller closed")

// Controller runs the reducer against the speech synthesizer and a clock.
// Events are queued and applied one at a time; effects run outside the lock,
// so speech callbacks may re-enter Dispatch.
type Controller struct {
	synth   *speech.Synthesizer
	clock   clock.Clock
	timing  Timing
	params  speech.Params
	themeID string

	mu        sync.Mutex
	state     State
	queue     []Event
	draining  bool
	closed    bool
	frame     clock.Timer
	advance   clock.Timer
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewController creates a controller speaking through synth with params.
func NewController(synth *speech.Synthesizer, clk clock.Clock, timing Timing, params speech.Params, themeID string) *Controller {
	if clk == nil {
		clk = clock.Real{}
	}
	c := &Controller{
		synth:     synth,
		clock:     clk,
		timing:    timing,
		params:    params,
		themeID:   themeID,
		state:     State{Phase: PhaseIdle},
		listeners: make(map[int]func(Snapshot)),
	}
	synth.OnPreempt(func() { c.Dispatch(Preempted{}) })
	return c
}

// Load replaces the spots and leaves the tour idle at the first spot.
func (c *Controller) Load(spots []Spot) error { return c.Dispatch(Load{Spots: spots}) }

func (c *Controller) Play() error   { return c.Dispatch(Play{}) }
func (c *Controller) Pause() error  { return c.Dispatch(Pause{}) }
func (c *Controller) Toggle() error { return c.Dispatch(Toggle{}) }
func (c *Controller) Stop() error   { return c.Dispatch(Stop{}) }

// Jump selects spot index, keeping the playing state.
func (c *Controller) Jump(index int) error { return c.Dispatch(Jump{Index: index}) }

// Dispatch queues ev. The caller that finds the queue idle drains it.
func (c *Controller) Dispatch(ev Event) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, ev)
	if c.draining {
		c.mu.Unlock()
		return nil
	}
	c.draining = true

	for len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue = c.queue[1:]

		prev := c.state
		next, effects := Reduce(c.timing, prev, ev, c.clock.Now())
		c.state = next
		c.mu.Unlock()

		if prev.Phase != next.Phase || prev.Index != next.Index {
			slog.Debug("Narration transition", "theme", c.themeID, "event", eventName(ev),
				"from", prev.Phase, "to", next.Phase, "spot", next.Index)
		} else {
			logging.TraceDefault("Narration event", "theme", c.themeID, "event", eventName(ev), "spot", next.Index)
		}
		for _, fx := range effects {
			c.apply(fx)
		}

		c.mu.Lock()
	}
	c.draining = false
	snap := c.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

func (c *Controller) apply(fx Effect) {
	switch e := fx.(type) {
	case SpeakEffect:
		c.stopTimers()
		gen := e.Gen
		req := speech.Request{Text: e.Text, Params: c.params}
		err := c.synth.Speak(req, func(ev speech.Event) { c.onSpeech(gen, ev) })
		if err != nil {
			slog.Error("Narration speak failed", "theme", c.themeID, "error", err)
			_ = c.Dispatch(SpeechFailed{Gen: gen, Err: err})
		}
	case CancelEffect:
		c.stopTimers()
		c.synth.Cancel()
	case PauseEffect:
		c.stopTimers()
		c.synth.Pause()
	case ResumeEffect:
		c.synth.Resume()
	case FrameEffect:
		gen := e.Gen
		t := c.clock.AfterFunc(e.After, func() { _ = c.Dispatch(Frame{Gen: gen}) })
		c.swapTimer(&c.frame, t)
	case AdvanceEffect:
		gen := e.Gen
		t := c.clock.AfterFunc(e.After, func() { _ = c.Dispatch(Advance{Gen: gen}) })
		c.swapTimer(&c.advance, t)
	}
}

func (c *Controller) onSpeech(gen int, ev speech.Event) {
	var out Event
	switch ev.Kind {
	case speech.EventStart:
		out = SpeechStarted{Gen: gen}
	case speech.EventBoundary:
		out = SpeechBoundary{Gen: gen, CharIndex: ev.CharIndex, CharLength: ev.CharLength}
	case speech.EventEnd:
		out = SpeechEnded{Gen: gen}
	case speech.EventError:
		if !speech.IsInterrupted(ev.Err) {
			slog.Warn("Narration speech error", "theme", c.themeID, "utterance", ev.UtteranceID, "error", ev.Err)
		}
		out = SpeechFailed{Gen: gen, Err: ev.Err}
	default:
		return
	}
	_ = c.Dispatch(out)
}

func (c *Controller) swapTimer(slot *clock.Timer, t clock.Timer) {
	c.mu.Lock()
	old := *slot
	*slot = t
	c.mu.Unlock()
	if old != nil {
		old.Stop()
	}
}

func (c *Controller) stopTimers() {
	c.mu.Lock()
	frame, adv := c.frame, c.advance
	c.frame, c.advance = nil, nil
	c.mu.Unlock()
	if frame != nil {
		frame.Stop()
	}
	if adv != nil {
		adv.Stop()
	}
}

// Snapshot returns the current tour state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := c.state
	snap := Snapshot{
		ThemeID:   c.themeID,
		Phase:     s.Phase,
		Index:     s.Index,
		Playing:   s.Playing(),
		Completed: s.Completed(),
		Progress:  append([]int(nil), s.Progress...),
		Spots:     s.Spots,
		Error:     s.LastErr,
	}
	if spot, ok := s.current(); ok {
		snap.Video = spot.Video
	}
	return snap
}

// Subscribe registers fn for a snapshot after every applied batch of events.
// The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Close stops the tour and rejects further commands.
func (c *Controller) Close() {
	_ = c.Dispatch(Stop{})
	c.stopTimers()

	c.mu.Lock()
	c.closed = true
	c.listeners = make(map[int]func(Snapshot))
	c.mu.Unlock()
}

func eventName(ev Event) string {
	switch ev.(type) {
	case Load:
		return "load"
	case Play:
		return "play"
	case Pause:
		return "pause"
	case Toggle:
		return "toggle"
	case Jump:
		return "jump"
	case Stop:
		return "stop"
	case Preempted:
		return "preempted"
	case SpeechStarted:
		return "start"
	case SpeechBoundary:
		return "boundary"
	case SpeechEnded:
		return "end"
	case SpeechFailed:
		return "error"
	case Frame:
		return "frame"
	case Advance:
		return "advance"
	}
	return "unknown"
}
