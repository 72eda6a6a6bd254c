package narration

import (
	"time"

	"docentgo/pkg/config"
)

// Phase is the playback state of the tour.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSpeaking  Phase = "speaking"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
)

// Timing holds the pacing constants of progress estimation.
type Timing struct {
	CharDuration  time.Duration // per rune at rate 1
	MinEstimate   time.Duration
	MinRemaining  time.Duration // floor for the animation after resume
	AdvanceDelay  time.Duration // gap between an end and the next spot
	FrameInterval time.Duration
	Rate          float64
}

// DefaultTiming matches the narration defaults.
func DefaultTiming() Timing {
	return Timing{
		CharDuration:  150 * time.Millisecond,
		MinEstimate:   800 * time.Millisecond,
		MinRemaining:  300 * time.Millisecond,
		AdvanceDelay:  150 * time.Millisecond,
		FrameInterval: 50 * time.Millisecond,
		Rate:          1,
	}
}

// TimingFromConfig reads the timing settings of the narration section.
func TimingFromConfig(cfg config.NarrationConfig) Timing {
	t := Timing{
		CharDuration:  cfg.CharDuration.D(),
		MinEstimate:   cfg.MinEstimate.D(),
		MinRemaining:  cfg.MinRemaining.D(),
		AdvanceDelay:  cfg.AdvanceDelay.D(),
		FrameInterval: cfg.FrameInterval.D(),
		Rate:          cfg.Voice.Rate,
	}
	def := DefaultTiming()
	if t.CharDuration <= 0 {
		t.CharDuration = def.CharDuration
	}
	if t.FrameInterval <= 0 {
		t.FrameInterval = def.FrameInterval
	}
	if t.Rate <= 0 {
		t.Rate = def.Rate
	}
	return t
}

// Estimate returns the expected narration time of text.
func (t Timing) Estimate(text string) time.Duration {
	rate := t.Rate
	if rate < 0.1 {
		rate = 0.1
	}
	est := time.Duration(float64(len([]rune(text))) * float64(t.CharDuration) / rate)
	if est < t.MinEstimate {
		return t.MinEstimate
	}
	return est
}

// State is the tour state. Progress holds one percentage per spot.
type State struct {
	Phase    Phase
	Index    int
	Spots    []Spot
	Progress []int
	LastErr  string

	// Gen identifies the current utterance. Speech events and timers carry the
	// generation they were issued for; anything older is ignored.
	Gen int

	started  bool // speech reported start for Gen
	ended    bool // speech ended for Gen, advance pending
	boundary bool // boundary events drive progress for Gen
	anim     animation
}

// animation interpolates progress from a start value to 100 over a duration.
type animation struct {
	active bool
	from   int
	start  time.Time
	dur    time.Duration
}

func (a animation) at(now time.Time) int {
	if a.dur <= 0 {
		return 99
	}
	elapsed := now.Sub(a.start)
	if elapsed < 0 {
		elapsed = 0
	}
	p := a.from + int(float64(100-a.from)*float64(elapsed)/float64(a.dur))
	if p > 99 {
		p = 99
	}
	return p
}

// Playing reports whether narration is running.
func (s State) Playing() bool {
	return s.Phase == PhaseSpeaking
}

// Completed reports whether the last spot finished uninterrupted.
func (s State) Completed() bool {
	return s.Phase == PhaseCompleted
}

func (s State) clone() State {
	s.Progress = append([]int(nil), s.Progress...)
	return s
}

func (s *State) setProgress(i, p int) {
	if i < 0 || i >= len(s.Progress) {
		return
	}
	s.Progress[i] = p
}

// raise moves progress forward only.
func (s *State) raise(i, p int) {
	if i < 0 || i >= len(s.Progress) || p <= s.Progress[i] {
		return
	}
	s.Progress[i] = p
}

func (s State) current() (Spot, bool) {
	if s.Index < 0 || s.Index >= len(s.Spots) {
		return Spot{}, false
	}
	return s.Spots[s.Index], true
}
