package narration

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docentgo/pkg/clock"
	"docentgo/pkg/speech"
	"docentgo/pkg/speech/speechtest"
)

type harness struct {
	clk   *clock.Fake
	eng   *speechtest.Engine
	floor *speech.Floor
	ctrl  *Controller

	mu    sync.Mutex
	snaps []Snapshot
}

func newHarness(t *testing.T, texts ...string) *harness {
	h := &harness{clk: clock.NewFake(t0), eng: speechtest.New()}
	h.floor = speech.NewFloor(h.eng)
	synth := speech.NewSynthesizer(h.floor, speech.OwnerDocent, h.clk, speech.DefaultRetryPolicy())
	h.ctrl = NewController(synth, h.clk, DefaultTiming(), speech.Params{Lang: "ko-KR", Rate: 1, Pitch: 0.8, Volume: 1}, "imjin_war")
	h.ctrl.Subscribe(func(s Snapshot) {
		h.mu.Lock()
		h.snaps = append(h.snaps, s)
		h.mu.Unlock()
	})
	require.NoError(t, h.ctrl.Load(testSpots(texts...)))
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) last() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snaps[len(h.snaps)-1]
}

func TestController_FullTour(t *testing.T) {
	h := newHarness(t, "첫 번째 해설", "두 번째 해설", "세 번째 해설")
	h.eng.AutoStart = true

	require.NoError(t, h.ctrl.Play())
	for i := 0; i < 3; i++ {
		spoken := h.eng.Spoken()
		require.Len(t, spoken, i+1)
		assert.Equal(t, h.last().Spots[i].Text, spoken[i].Text)
		assert.Equal(t, 0.8, spoken[i].Params.Pitch)

		h.clk.Advance(500 * time.Millisecond)
		assert.Positive(t, h.ctrl.Snapshot().Progress[i], "frames animate progress")

		h.eng.End()
		assert.Equal(t, 100, h.ctrl.Snapshot().Progress[i])
		h.clk.Advance(150 * time.Millisecond)
	}

	snap := h.last()
	assert.True(t, snap.Completed)
	assert.False(t, snap.Playing)
	assert.Equal(t, []int{100, 100, 100}, snap.Progress)
	assert.Equal(t, 0, h.clk.Pending(), "no timers after completion")
}

func TestController_RetryIsInvisible(t *testing.T) {
	h := newHarness(t, "해설")
	require.NoError(t, h.ctrl.Play())

	h.clk.Advance(1200 * time.Millisecond)
	require.Len(t, h.eng.Spoken(), 2)
	assert.Equal(t, PhaseSpeaking, h.ctrl.Snapshot().Phase)

	h.eng.Start()
	h.eng.End()
	h.clk.Advance(150 * time.Millisecond)
	assert.True(t, h.ctrl.Snapshot().Completed)
}

func TestController_SilentEngineStopsPlayback(t *testing.T) {
	h := newHarness(t, "해설", "다음")
	require.NoError(t, h.ctrl.Play())

	h.clk.Advance(2400 * time.Millisecond)
	require.Len(t, h.eng.Spoken(), 2)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.False(t, snap.Playing)
	assert.Equal(t, 0, snap.Index)
	assert.Contains(t, snap.Error, "did not start")
}

func TestController_FailureStopsPlayback(t *testing.T) {
	h := newHarness(t, "해설", "다음")
	h.eng.AutoStart = true
	require.NoError(t, h.ctrl.Play())
	h.clk.Advance(300 * time.Millisecond)

	h.eng.Fail(errors.New("audio-busy"))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Progress[0])
	assert.Contains(t, snap.Error, "audio-busy")

	h.clk.Advance(time.Second)
	assert.Equal(t, 0, h.ctrl.Snapshot().Progress[0], "frames stop after a failure")
}

func TestController_SpeakErrorStopsPlayback(t *testing.T) {
	h := newHarness(t, "해설")
	h.eng.FailNextSpeak(errors.New("no voices"))
	require.NoError(t, h.ctrl.Play())

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Contains(t, snap.Error, "no voices")
}

func TestController_PauseResume(t *testing.T) {
	h := newHarness(t, "0123456789")
	h.eng.AutoStart = true
	require.NoError(t, h.ctrl.Play())
	h.clk.Advance(750 * time.Millisecond)

	require.NoError(t, h.ctrl.Pause())
	paused := h.ctrl.Snapshot().Progress[0]
	assert.Equal(t, 1, h.eng.Pauses())
	assert.True(t, h.eng.Paused())

	h.clk.Advance(10 * time.Second)
	assert.Equal(t, paused, h.ctrl.Snapshot().Progress[0])

	require.NoError(t, h.ctrl.Toggle())
	assert.Equal(t, 1, h.eng.Resumes())
	h.clk.Advance(100 * time.Millisecond)
	assert.GreaterOrEqual(t, h.ctrl.Snapshot().Progress[0], paused)
	assert.Len(t, h.eng.Spoken(), 1, "resume does not restart speech")
}

func TestController_Jump(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	h.eng.AutoStart = true
	require.NoError(t, h.ctrl.Play())

	require.NoError(t, h.ctrl.Jump(2))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, 2, snap.Index)
	assert.True(t, snap.Playing)
	spoken := h.eng.Spoken()
	require.Len(t, spoken, 2)
	assert.Equal(t, "c", spoken[1].Text)
	assert.Equal(t, 1, h.eng.Cancels())
}

func TestController_PreemptedByChat(t *testing.T) {
	h := newHarness(t, "해설")
	h.eng.AutoStart = true
	require.NoError(t, h.ctrl.Play())
	h.clk.Advance(300 * time.Millisecond)

	chat := speech.NewSynthesizer(h.floor, speech.OwnerChat, h.clk, speech.DefaultRetryPolicy())
	require.NoError(t, chat.Speak(speech.Request{Text: "답변"}, nil))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Progress[0])
	assert.Empty(t, snap.Error)
}

func TestController_StopAndClose(t *testing.T) {
	h := newHarness(t, "a")
	h.eng.AutoStart = true
	require.NoError(t, h.ctrl.Play())
	require.NoError(t, h.ctrl.Stop())
	assert.Equal(t, PhaseIdle, h.ctrl.Snapshot().Phase)
	assert.False(t, h.eng.Speaking())

	h.ctrl.Close()
	assert.ErrorIs(t, h.ctrl.Play(), ErrClosed)
}

func TestController_SnapshotVideo(t *testing.T) {
	h := newHarness(t)
	spots := []Spot{{Index: 0, Text: "a", Video: "/v/0.mp4"}, {Index: 1, Text: "b", Video: "/v/1.mp4"}}
	require.NoError(t, h.ctrl.Load(spots))
	assert.Equal(t, "/v/0.mp4", h.ctrl.Snapshot().Video)
	require.NoError(t, h.ctrl.Jump(1))
	assert.Equal(t, "/v/1.mp4", h.ctrl.Snapshot().Video)
	assert.Equal(t, "imjin_war", h.ctrl.Snapshot().ThemeID)
}

func TestController_Unsubscribe(t *testing.T) {
	h := newHarness(t, "a")
	calls := 0
	unsubscribe := h.ctrl.Subscribe(func(Snapshot) { calls++ })
	require.NoError(t, h.ctrl.Play())
	unsubscribe()
	require.NoError(t, h.ctrl.Pause())
	assert.Equal(t, 1, calls)
}
