// Package core runs the kiosk's background maintenance: session sweeps,
// cache pruning, content warm-up and periodic health checks.
package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docentgo/pkg/clock"
)

// Scheduler evaluates its jobs on every tick.
type Scheduler struct {
	interval time.Duration
	clk      clock.Clock
	jobs     []Job
	wg       sync.WaitGroup
}

// NewScheduler creates a new Scheduler.
func NewScheduler(interval time.Duration, clk clock.Clock) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Scheduler{
		interval: interval,
		clk:      clk,
		jobs:     []Job{},
	}
}

// AddJob registers a job.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start runs the main loop. It blocks until context is cancelled, then waits
// for running jobs to return.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "interval", s.interval, "jobs", len(s.jobs))

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clk.Now()
	for _, job := range s.jobs {
		if job.ShouldFire(now) {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				job.Run(ctx, now)
			}()
		}
	}
}
