package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docentgo/pkg/model"
	"docentgo/pkg/probe"
)

type fakeSweeper struct{ n, calls int }

func (f *fakeSweeper) Cleanup() int { f.calls++; return f.n }

type fakePruner struct {
	got time.Duration
	err error
}

func (f *fakePruner) PruneCache(olderThan time.Duration) (int64, error) {
	f.got = olderThan
	return 3, f.err
}

type fakeContent struct {
	mu      sync.Mutex
	items   []string
	quizzes []string
}

func (f *fakeContent) GetThemes(context.Context) []model.Theme {
	return []model.Theme{{ID: "imjin_war"}, {ID: "gonryongpo"}}
}

func (f *fakeContent) GetItems(_ context.Context, id string) []model.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, id)
	return []model.Item{{ID: id + "-1"}}
}

func (f *fakeContent) GetQuizzes(_ context.Context, id string) []model.Quiz {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quizzes = append(f.quizzes, id)
	return nil
}

func TestSweepJob(t *testing.T) {
	a, b := &fakeSweeper{n: 2}, &fakeSweeper{}
	job := NewSweepJob(time.Minute, map[string]Sweeper{"docent": a, "chat": b})
	assert.Equal(t, "SessionSweep", job.Name())

	job.Run(context.Background(), t0)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestPruneJob(t *testing.T) {
	p := &fakePruner{}
	NewPruneJob(time.Hour, p, 7*24*time.Hour).Run(context.Background(), t0)
	assert.Equal(t, 7*24*time.Hour, p.got)

	// Errors are logged, not fatal.
	p = &fakePruner{err: errors.New("locked")}
	NewPruneJob(time.Hour, p, time.Hour).Run(context.Background(), t0)
	assert.Equal(t, time.Hour, p.got)
}

type fakeWatcher struct{ calls int }

func (f *fakeWatcher) CheckNew() []string {
	f.calls++
	return []string{"/videos/new.mp4"}
}

func TestVideoScanJob(t *testing.T) {
	w := &fakeWatcher{}
	job := NewVideoScanJob(time.Minute, w)
	assert.Equal(t, "VideoScan", job.Name())

	job.Run(context.Background(), t0)
	assert.Equal(t, 1, w.calls)
}

func TestWarmupJob(t *testing.T) {
	src := &fakeContent{}
	NewWarmupJob(time.Hour, src).Run(context.Background(), t0)
	assert.Equal(t, []string{"imjin_war", "gonryongpo"}, src.items)
	assert.Equal(t, []string{"imjin_war", "gonryongpo"}, src.quizzes)
}

func TestHealthJob(t *testing.T) {
	var failing sync.Map
	check := func(name string) probe.Probe {
		return probe.Probe{Name: name, Critical: name == "content", Check: func(context.Context) error {
			if _, bad := failing.Load(name); bad {
				return errors.New(name + " down")
			}
			return nil
		}}
	}
	h := NewHealthJob(time.Minute, time.Second, []probe.Probe{check("content"), check("llm")})
	ctx := context.Background()

	// No report yet: Report runs the probes itself.
	rep := h.Report(ctx)
	assert.True(t, rep.Healthy)
	require.Len(t, rep.Checks, 2)

	failing.Store("content", true)
	assert.True(t, h.Report(ctx).Healthy, "cached report until the job runs")

	h.Run(ctx, t0)
	rep = h.Report(ctx)
	assert.False(t, rep.Healthy)
	assert.Equal(t, "content down", rep.Checks[0].Error)
	assert.True(t, rep.Checks[1].OK)

	failing.Delete("content")
	failing.Store("llm", true)
	h.Run(ctx, t0.Add(time.Minute))
	rep = h.Report(ctx)
	assert.True(t, rep.Healthy, "non-critical failures keep the kiosk healthy")
	assert.False(t, rep.Checks[1].OK)
}
