package core

import (
	"context"
	"sync/atomic"
	"time"
)

// Job defines a scheduled task.
type Job interface {
	Name() string
	ShouldFire(now time.Time) bool
	Run(ctx context.Context, now time.Time)
}

// BaseJob provides atomic running state to prevent re-entry.
type BaseJob struct {
	name    string
	running int32 // 1 if running, 0 otherwise
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock attempts to set running to 1. Returns true if successful.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// TimeJob fires when time elapsed exceeds threshold.
type TimeJob struct {
	BaseJob
	lastTime  atomic.Int64 // unix nanos of the last run start
	threshold time.Duration
	action    func(context.Context)
	firstRun  atomic.Bool
}

// NewTimeJob creates a job that runs action immediately and then every threshold.
func NewTimeJob(name string, threshold time.Duration, action func(context.Context)) *TimeJob {
	j := &TimeJob{
		BaseJob:   NewBaseJob(name),
		threshold: threshold,
		action:    action,
	}
	j.firstRun.Store(true)
	return j
}

func (j *TimeJob) ShouldFire(now time.Time) bool {
	if atomic.LoadInt32(&j.running) == 1 {
		return false
	}

	if j.firstRun.Load() {
		return true
	}

	return now.Sub(time.Unix(0, j.lastTime.Load())) >= j.threshold
}

func (j *TimeJob) Run(ctx context.Context, now time.Time) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.lastTime.Store(now.UnixNano())
	j.firstRun.Store(false)

	j.action(ctx)
}
