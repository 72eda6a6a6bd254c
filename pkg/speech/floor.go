package speech

import (
	"log/slog"
	"sync"
)

// Owner identifies a component that drives the shared engine.
type Owner string

const (
	OwnerDocent Owner = "docent"
	OwnerChat   Owner = "chat"
)

// SessionOwner derives a per-session owner, e.g. "docent:<id>", so several
// tours or conversations can compete for the engine.
func SessionOwner(kind Owner, id string) Owner {
	return Owner(string(kind) + ":" + id)
}

// Floor hands the shared engine to one owner at a time.
// Taking the floor from another owner cancels its speech and notifies it.
type Floor struct {
	engine Engine

	mu        sync.Mutex
	holder    Owner
	preempted map[Owner]func()
}

// NewFloor wraps engine.
func NewFloor(engine Engine) *Floor {
	return &Floor{
		engine:    engine,
		preempted: make(map[Owner]func()),
	}
}

// Engine returns the wrapped engine.
func (f *Floor) Engine() Engine {
	return f.engine
}

// OnPreempt registers fn to run when o loses the floor to another owner.
func (f *Floor) OnPreempt(o Owner, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preempted[o] = fn
}

// Forget drops o's preemption hook and releases the floor if o holds it.
// The engine is cancelled when o was speaking.
func (f *Floor) Forget(o Owner) {
	f.mu.Lock()
	delete(f.preempted, o)
	held := f.holder == o
	if held {
		f.holder = ""
	}
	f.mu.Unlock()

	if held {
		f.engine.Cancel()
	}
}

// Holder returns the current owner, or "" when the floor is free.
func (f *Floor) Holder() Owner {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holder
}

// Holds reports whether o currently holds the floor.
func (f *Floor) Holds(o Owner) bool {
	return f.Holder() == o
}

// Acquire gives the floor to o. A different previous holder is notified first
// and its speech is cancelled.
func (f *Floor) Acquire(o Owner) {
	f.mu.Lock()
	prev := f.holder
	f.holder = o
	notify := f.preempted[prev]
	f.mu.Unlock()

	if prev == "" || prev == o {
		return
	}
	slog.Debug("Speech floor preempted", "owner", o, "previous", prev)
	if notify != nil {
		notify()
	}
	f.engine.Cancel()
}

// Release frees the floor if o holds it.
func (f *Floor) Release(o Owner) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holder == o {
		f.holder = ""
	}
}

// Speak takes the floor for o and speaks u.
func (f *Floor) Speak(o Owner, u *Utterance) error {
	f.Acquire(o)
	return f.engine.Speak(u)
}

// Pause pauses the engine if o holds the floor.
func (f *Floor) Pause(o Owner) bool {
	if !f.Holds(o) {
		return false
	}
	f.engine.Pause()
	return true
}

// Resume resumes the engine if o holds the floor.
func (f *Floor) Resume(o Owner) bool {
	if !f.Holds(o) {
		return false
	}
	f.engine.Resume()
	return true
}

// Cancel cancels the engine if o holds the floor.
func (f *Floor) Cancel(o Owner) bool {
	if !f.Holds(o) {
		return false
	}
	f.engine.Cancel()
	return true
}
