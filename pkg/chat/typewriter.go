package chat

import (
	"sync"
	"time"
	"unicode/utf8"

	"docentgo/pkg/clock"
	"docentgo/pkg/config"
)

// TypewriterConfig controls the character-by-character reveal.
type TypewriterConfig struct {
	AtomicLength int           // texts up to this many runes appear at once
	CharDelay    time.Duration // after an ordinary rune
	PauseDelay   time.Duration // after . ? !
}

// DefaultTypewriterConfig returns 60 runes, 18ms and 45ms.
func DefaultTypewriterConfig() TypewriterConfig {
	return TypewriterConfig{AtomicLength: 60, CharDelay: 18 * time.Millisecond, PauseDelay: 45 * time.Millisecond}
}

// TypewriterConfigFrom reads the chat section, keeping defaults for zero values.
func TypewriterConfigFrom(cfg config.ChatConfig) TypewriterConfig {
	tc := DefaultTypewriterConfig()
	if cfg.AtomicLength > 0 {
		tc.AtomicLength = cfg.AtomicLength
	}
	if cfg.CharDelay > 0 {
		tc.CharDelay = cfg.CharDelay.D()
	}
	if cfg.PauseDelay > 0 {
		tc.PauseDelay = cfg.PauseDelay.D()
	}
	return tc
}

// Typewriter reveals texts progressively. Each message index has at most one
// reveal running; reveals on different indices run concurrently.
type Typewriter struct {
	clock clock.Clock
	cfg   TypewriterConfig

	mu      sync.Mutex
	reveals map[int]*reveal
	closed  bool
}

type reveal struct {
	runes  []rune
	shown  int
	update func(string)
	done   func()
	timer  clock.Timer
}

// NewTypewriter returns a typewriter driven by clk.
func NewTypewriter(clk clock.Clock, cfg TypewriterConfig) *Typewriter {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Typewriter{clock: clk, cfg: cfg, reveals: make(map[int]*reveal)}
}

// Atomic reports whether text is short enough to appear in one update.
func (t *Typewriter) Atomic(text string) bool {
	return utf8.RuneCountInString(text) <= t.cfg.AtomicLength
}

// Reveal shows text for index through update, one rune per step. A reveal
// already running for index is abandoned. done runs once the full text is
// shown; it does not run for abandoned reveals.
func (t *Typewriter) Reveal(index int, text string, update func(string), done func()) {
	runes := []rune(text)
	if len(runes) <= t.cfg.AtomicLength {
		t.mu.Lock()
		t.dropLocked(index)
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}
		update(text)
		if done != nil {
			done()
		}
		return
	}

	r := &reveal{runes: runes, update: update, done: done}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.dropLocked(index)
	t.reveals[index] = r
	t.mu.Unlock()

	t.step(index, r)
}

// Active reports whether a reveal is running for index.
func (t *Typewriter) Active(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.reveals[index]
	return ok
}

// Close cancels every pending reveal.
func (t *Typewriter) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for idx := range t.reveals {
		t.dropLocked(idx)
	}
}

func (t *Typewriter) step(index int, r *reveal) {
	t.mu.Lock()
	if t.reveals[index] != r {
		t.mu.Unlock()
		return
	}
	r.shown++
	text := string(r.runes[:r.shown])
	finished := r.shown >= len(r.runes)
	if finished {
		delete(t.reveals, index)
	}
	t.mu.Unlock()

	r.update(text)
	if finished {
		if r.done != nil {
			r.done()
		}
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reveals[index] == r {
		r.timer = t.clock.AfterFunc(t.delayAfter(r.runes[r.shown-1]), func() { t.step(index, r) })
	}
}

func (t *Typewriter) delayAfter(ch rune) time.Duration {
	switch ch {
	case '.', '?', '!':
		return t.cfg.PauseDelay
	}
	return t.cfg.CharDelay
}

func (t *Typewriter) dropLocked(index int) {
	if r, ok := t.reveals[index]; ok {
		if r.timer != nil {
			r.timer.Stop()
		}
		delete(t.reveals, index)
	}
}
