package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker counts outcomes per upstream source (a host, "speech", "chat", ...).
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*SourceStats
}

// SourceStats holds the counters for one source.
// Fields are accessed atomically.
type SourceStats struct {
	APISuccess     int64 `json:"api_success"`
	APIFailures    int64 `json:"api_failures"`
	Retries        int64 `json:"retries"`
	SecondaryHits  int64 `json:"secondary_hits"`  // served by the fallback base URL
	CacheHits      int64 `json:"cache_hits"`      // served from the last good response
	LocalFallbacks int64 `json:"local_fallbacks"` // served from the embedded dataset
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*SourceStats),
	}
}

// getStats returns the stats object for a source, creating it if needed.
func (t *Tracker) getStats(source string) *SourceStats {
	t.mu.RLock()
	s, ok := t.stats[source]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[source]; ok {
		return s
	}
	s = &SourceStats{}
	t.stats[source] = s
	return s
}

func (t *Tracker) TrackAPISuccess(source string) {
	atomic.AddInt64(&t.getStats(source).APISuccess, 1)
}

func (t *Tracker) TrackAPIFailure(source string) {
	atomic.AddInt64(&t.getStats(source).APIFailures, 1)
}

func (t *Tracker) TrackRetry(source string) {
	atomic.AddInt64(&t.getStats(source).Retries, 1)
}

func (t *Tracker) TrackSecondary(source string) {
	atomic.AddInt64(&t.getStats(source).SecondaryHits, 1)
}

func (t *Tracker) TrackCacheHit(source string) {
	atomic.AddInt64(&t.getStats(source).CacheHits, 1)
}

func (t *Tracker) TrackLocalFallback(source string) {
	atomic.AddInt64(&t.getStats(source).LocalFallbacks, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]SourceStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]SourceStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = SourceStats{
			APISuccess:     atomic.LoadInt64(&v.APISuccess),
			APIFailures:    atomic.LoadInt64(&v.APIFailures),
			Retries:        atomic.LoadInt64(&v.Retries),
			SecondaryHits:  atomic.LoadInt64(&v.SecondaryHits),
			CacheHits:      atomic.LoadInt64(&v.CacheHits),
			LocalFallbacks: atomic.LoadInt64(&v.LocalFallbacks),
		}
	}
	return result
}
