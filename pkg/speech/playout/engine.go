// Package playout implements speech.Engine by synthesizing each utterance to
// an audio file and playing it on the local device. Boundary events are
// derived from the playback position.
package playout

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"docentgo/pkg/audio"
	"docentgo/pkg/speech"
	"docentgo/pkg/tts"
)

// Engine plays synthesized speech. Start is reported when audio begins.
type Engine struct {
	provider tts.Provider
	player   audio.Service
	workDir  string
	tick     time.Duration

	mu  sync.Mutex
	cur *run
}

type run struct {
	u       *speech.Utterance
	runes   []rune
	ctx     context.Context
	cancel  context.CancelFunc
	paused  bool
	started bool
}

// New creates a playout engine writing temporary audio under workDir.
func New(provider tts.Provider, player audio.Service, workDir string, tick time.Duration) *Engine {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	return &Engine{provider: provider, player: player, workDir: workDir, tick: tick}
}

func (e *Engine) Speak(u *speech.Utterance) error {
	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create speech work dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{u: u, runes: []rune(u.Text), ctx: ctx, cancel: cancel}

	e.mu.Lock()
	prev := e.cur
	e.cur = r
	e.mu.Unlock()

	if prev != nil {
		e.stop(prev)
		prev.u.Emit(speech.Event{Kind: speech.EventError, Err: speech.ErrInterrupted})
	}

	go e.play(r)
	return nil
}

func (e *Engine) play(r *run) {
	req := tts.Request{
		Text:   r.u.Text,
		Lang:   r.u.Params.Lang,
		Rate:   r.u.Params.Rate,
		Pitch:  r.u.Params.Pitch,
		Volume: r.u.Params.Volume,
	}
	if r.u.Params.Voice != nil {
		req.Voice = r.u.Params.Voice.ID
	}

	base := filepath.Join(e.workDir, r.u.ID)
	format, err := e.provider.Synthesize(r.ctx, req, base)
	file := base
	if format != "" && !strings.HasSuffix(file, "."+format) {
		file += "." + format
	}
	if r.ctx.Err() != nil {
		if err == nil {
			_ = os.Remove(file)
		}
		return
	}
	if err != nil {
		e.fail(r, err)
		return
	}
	if err := tts.VerifyAudioFile(file); err != nil {
		e.fail(r, err)
		return
	}

	e.mu.Lock()
	if e.cur != r {
		e.mu.Unlock()
		_ = os.Remove(file)
		return
	}
	e.player.SetVolume(r.u.Params.Volume)
	err = e.player.Play(file, r.paused, func() { e.complete(r) })
	if err == nil {
		r.started = true
	}
	e.mu.Unlock()

	if err != nil {
		e.fail(r, err)
		return
	}
	r.u.Emit(speech.Event{Kind: speech.EventStart})
	e.trackBoundaries(r)
}

// trackBoundaries reports the word under the playhead until the run ends.
func (e *Engine) trackBoundaries(r *run) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if e.cur != r {
			e.mu.Unlock()
			return
		}
		if r.paused {
			e.mu.Unlock()
			continue
		}
		pos, dur := e.player.Position(), e.player.Duration()
		e.mu.Unlock()

		if dur <= 0 || len(r.runes) == 0 {
			continue
		}
		idx := int(float64(len(r.runes)) * float64(pos) / float64(dur))
		start, length := wordAt(r.runes, idx)
		if length == 0 || start <= last {
			continue
		}
		last = start
		r.u.Emit(speech.Event{Kind: speech.EventBoundary, CharIndex: start, CharLength: length})
	}
}

// wordAt returns the span of the word containing or preceding rune idx.
func wordAt(runes []rune, idx int) (int, int) {
	if idx >= len(runes) {
		idx = len(runes) - 1
	}
	for idx > 0 && unicode.IsSpace(runes[idx]) {
		idx--
	}
	start := idx
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	end := idx
	for end < len(runes) && !unicode.IsSpace(runes[end]) {
		end++
	}
	return start, end - start
}

func (e *Engine) complete(r *run) {
	e.mu.Lock()
	if e.cur != r {
		e.mu.Unlock()
		return
	}
	e.cur = nil
	e.mu.Unlock()

	r.cancel()
	r.u.Emit(speech.Event{Kind: speech.EventEnd})
}

func (e *Engine) fail(r *run, err error) {
	e.mu.Lock()
	if e.cur != r {
		e.mu.Unlock()
		return
	}
	e.cur = nil
	e.mu.Unlock()

	r.cancel()
	slog.Error("Playout failed", "utterance", r.u.ID, "error", err)
	r.u.Emit(speech.Event{Kind: speech.EventError, Err: err})
}

func (e *Engine) stop(r *run) {
	r.cancel()
	e.mu.Lock()
	started := r.started
	e.mu.Unlock()
	if started {
		e.player.Stop()
	}
}

func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil || e.cur.paused {
		return
	}
	e.cur.paused = true
	if e.cur.started {
		e.player.Pause()
	}
}

func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil || !e.cur.paused {
		return
	}
	e.cur.paused = false
	if e.cur.started {
		e.player.Resume()
	}
}

func (e *Engine) Cancel() {
	e.mu.Lock()
	r := e.cur
	e.cur = nil
	e.mu.Unlock()

	if r != nil {
		e.stop(r)
		r.u.Emit(speech.Event{Kind: speech.EventError, Err: speech.ErrInterrupted})
	}
}

func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur != nil
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur != nil && e.cur.paused
}

func (e *Engine) Voices(ctx context.Context) ([]speech.Voice, error) {
	tv, err := e.provider.Voices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]speech.Voice, 0, len(tv))
	for i, v := range tv {
		out = append(out, speech.Voice{ID: v.ID, Name: v.Name, Lang: v.Language, Default: i == 0})
	}
	return out, nil
}
