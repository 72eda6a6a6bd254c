// Package audio plays synthesized speech files on the local output device.
package audio

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// Service defines the interface for audio playback control.
type Service interface {
	// Play starts playback of an audio file. If startPaused is true, loads but pauses immediately.
	// onComplete is called when playback finishes (not when stopped manually).
	Play(filepath string, startPaused bool, onComplete func()) error
	Pause()
	Resume()
	Stop()
	// Shutdown stops playback and cleans up resources/files.
	Shutdown()

	IsPlaying() bool
	IsBusy() bool
	IsPaused() bool
	SetVolume(vol float64)
	Volume() float64
	// Position returns the current playback position.
	Position() time.Duration
	// Duration returns the total duration of the current audio.
	Duration() time.Duration
}

// Manager implements the Service interface using gopxl/beep.
type Manager struct {
	mu                 sync.RWMutex
	ctrl               *beep.Ctrl
	volume             float64
	isPaused           bool
	lastFile           string
	keepFiles          bool
	speakerInitialized bool
	currentSampleRate  beep.SampleRate
	streamer           *effects.Volume
	trackStreamer      beep.StreamSeekCloser
	trackFormat        beep.Format
	generation         int
}

// New creates a new Manager. Played files are deleted once the next one
// starts unless keepFiles is set.
func New(keepFiles bool) *Manager {
	return &Manager{
		volume:    1.0,
		keepFiles: keepFiles,
	}
}

// Play starts playback of an audio file.
func (m *Manager) Play(filepath string, startPaused bool, onComplete func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	streamer, format, err := DecodeFile(filepath)
	if err != nil {
		slog.Error("Failed to decode audio file", "path", filepath, "error", err)
		return err
	}

	if err := m.ensureSpeakerInitialized(streamer); err != nil {
		return err
	}

	resampled := beep.Resample(3, format.SampleRate, m.currentSampleRate, streamer)

	volStreamer := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(m.volume),
		Silent:   m.volume <= 0.01,
	}

	m.streamer = volStreamer
	m.trackStreamer = streamer
	m.trackFormat = format
	m.generation++
	gen := m.generation

	m.ctrl = &beep.Ctrl{Streamer: volStreamer, Paused: startPaused}
	m.isPaused = startPaused

	speaker.Play(beep.Seq(m.ctrl, beep.Callback(func() {
		// Leave the speaker goroutine before taking locks.
		go func() {
			m.mu.Lock()
			if m.generation != gen {
				m.mu.Unlock()
				return
			}
			m.ctrl = nil
			m.isPaused = false
			m.mu.Unlock()

			if onComplete != nil {
				onComplete()
			}
		}()
	})))

	if m.lastFile != "" && m.lastFile != filepath && !m.keepFiles {
		removeArtifact(m.lastFile)
	}
	m.lastFile = filepath

	if startPaused {
		slog.Debug("Loaded audio in PAUSED state", "path", filepath)
	} else {
		slog.Debug("Playing audio", "path", filepath)
	}
	return nil
}

// Pause pauses current playback.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl != nil {
		speaker.Lock()
		m.ctrl.Paused = true
		speaker.Unlock()
		m.isPaused = true
	}
}

// Resume resumes paused playback.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl != nil && m.isPaused {
		speaker.Lock()
		m.ctrl.Paused = false
		speaker.Unlock()
		m.isPaused = false
	}
}

// Stop stops current playback without running its completion callback.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
}

func (m *Manager) stopLocked() {
	m.generation++
	if m.ctrl != nil {
		speaker.Clear()
		m.ctrl = nil
		m.isPaused = false
	}
	if m.trackStreamer != nil {
		m.trackStreamer.Close()
		m.trackStreamer = nil
	}
}

func (m *Manager) ensureSpeakerInitialized(streamer beep.StreamSeekCloser) error {
	const targetSampleRate = 48000
	if !m.speakerInitialized {
		err := speaker.Init(beep.SampleRate(targetSampleRate), beep.SampleRate(targetSampleRate).N(time.Second/10))
		if err != nil {
			streamer.Close()
			slog.Error("Failed to initialize speaker", "error", err)
			return err
		}
		m.speakerInitialized = true
		m.currentSampleRate = beep.SampleRate(targetSampleRate)
	}
	return nil
}

// Shutdown stops playback and deletes any residual audio artifacts.
func (m *Manager) Shutdown() {
	m.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastFile != "" && !m.keepFiles {
		removeArtifact(m.lastFile)
	}
	m.lastFile = ""
}

func removeArtifact(path string) {
	if err := os.Remove(path); err == nil {
		slog.Debug("Audio: Cleaned up speech artifact", "path", path)
	} else if !os.IsNotExist(err) {
		slog.Warn("Audio: Failed to cleanup speech artifact", "path", path, "error", err)
	}
}

// IsPlaying returns true if audio is currently playing.
func (m *Manager) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctrl != nil && !m.isPaused
}

// IsBusy returns true if audio is loaded (playing or paused).
func (m *Manager) IsBusy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctrl != nil
}

// IsPaused returns true if playback is paused.
func (m *Manager) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// SetVolume sets playback volume (0.0 to 1.0).
func (m *Manager) SetVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	m.volume = vol

	if m.streamer != nil && m.ctrl != nil {
		speaker.Lock()
		m.streamer.Volume = volumeToPower(vol)
		m.streamer.Silent = vol <= 0.01
		speaker.Unlock()
	}
}

// Volume returns current volume level.
func (m *Manager) Volume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// Position returns the current playback position.
func (m *Manager) Position() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return m.trackFormat.SampleRate.D(m.trackStreamer.Position())
}

// Duration returns the total duration of the current audio.
func (m *Manager) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return 0
	}
	return m.trackFormat.SampleRate.D(m.trackStreamer.Len())
}
