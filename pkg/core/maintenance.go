package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docentgo/pkg/model"
	"docentgo/pkg/probe"
)

// Sweeper evicts idle sessions and reports how many went.
type Sweeper interface {
	Cleanup() int
}

// NewSweepJob evicts idle sessions from every named registry.
func NewSweepJob(every time.Duration, registries map[string]Sweeper) *TimeJob {
	return NewTimeJob("SessionSweep", every, func(context.Context) {
		for name, r := range registries {
			if n := r.Cleanup(); n > 0 {
				slog.Info("Evicted idle sessions", "kind", name, "count", n)
			}
		}
	})
}

// Pruner drops cache rows older than a cutoff.
type Pruner interface {
	PruneCache(olderThan time.Duration) (int64, error)
}

// NewPruneJob removes cached content older than olderThan.
func NewPruneJob(every time.Duration, p Pruner, olderThan time.Duration) *TimeJob {
	return NewTimeJob("CachePrune", every, func(context.Context) {
		n, err := p.PruneCache(olderThan)
		if err != nil {
			slog.Warn("Cache prune failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("Pruned cached content", "rows", n, "older_than", olderThan)
		}
	})
}

// ContentSource is the read side of the content client.
type ContentSource interface {
	GetThemes(ctx context.Context) []model.Theme
	GetItems(ctx context.Context, themeID string) []model.Item
	GetQuizzes(ctx context.Context, themeID string) []model.Quiz
}

// NewWarmupJob re-reads every theme so the cache holds fresh copies for
// when the content service goes away.
func NewWarmupJob(every time.Duration, src ContentSource) *TimeJob {
	return NewTimeJob("ContentWarmup", every, func(ctx context.Context) {
		themes := src.GetThemes(ctx)
		items := 0
		for _, th := range themes {
			if ctx.Err() != nil {
				return
			}
			items += len(src.GetItems(ctx, th.ID))
			src.GetQuizzes(ctx, th.ID)
		}
		slog.Debug("Content warmed", "themes", len(themes), "items", items)
	})
}

// VideoWatcher reports video files added since its last check.
type VideoWatcher interface {
	CheckNew() []string
}

// NewVideoScanJob notices uploads to the video directories so the admin
// screen can offer them without a restart.
func NewVideoScanJob(every time.Duration, w VideoWatcher) *TimeJob {
	return NewTimeJob("VideoScan", every, func(ctx context.Context) {
		if n := len(w.CheckNew()); n > 0 {
			slog.Info("Video library changed", "new", n)
		}
	})
}

// HealthJob runs the probes periodically and keeps the latest report.
type HealthJob struct {
	*TimeJob
	probes  []probe.Probe
	timeout time.Duration

	mu      sync.Mutex
	last    *probe.Report
	healthy map[string]bool
}

// NewHealthJob creates a HealthJob checking every interval.
func NewHealthJob(every, timeout time.Duration, probes []probe.Probe) *HealthJob {
	h := &HealthJob{
		probes:  probes,
		timeout: timeout,
		healthy: make(map[string]bool),
	}
	h.TimeJob = NewTimeJob("Health", every, func(ctx context.Context) { h.check(ctx) })
	return h
}

// Report returns the latest report, running the probes once if none exists yet.
func (h *HealthJob) Report(ctx context.Context) probe.Report {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last != nil {
		return *last
	}
	return h.check(ctx)
}

func (h *HealthJob) check(ctx context.Context) probe.Report {
	rep := probe.NewReport(probe.Run(ctx, h.probes, h.timeout))

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range rep.Checks {
		prev, seen := h.healthy[c.Name]
		if seen && prev != c.OK {
			if c.OK {
				slog.Info("Health check recovered", "check", c.Name)
			} else {
				slog.Warn("Health check failing", "check", c.Name, "error", c.Error)
			}
		}
		h.healthy[c.Name] = c.OK
	}
	h.last = &rep
	return rep
}
