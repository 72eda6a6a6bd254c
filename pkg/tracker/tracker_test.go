package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()
	source := "content"

	if stats := tr.Snapshot(); len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	tr.TrackAPISuccess(source)
	tr.TrackAPIFailure(source)
	tr.TrackRetry(source)
	tr.TrackSecondary(source)
	tr.TrackCacheHit(source)
	tr.TrackLocalFallback(source)

	stats := tr.Snapshot()
	s, ok := stats[source]
	if !ok {
		t.Fatalf("Expected stats for source %s", source)
	}

	counters := map[string]int64{
		"APISuccess":     s.APISuccess,
		"APIFailures":    s.APIFailures,
		"Retries":        s.Retries,
		"SecondaryHits":  s.SecondaryHits,
		"CacheHits":      s.CacheHits,
		"LocalFallbacks": s.LocalFallbacks,
	}
	for name, v := range counters {
		if v != 1 {
			t.Errorf("Expected 1 %s, got %d", name, v)
		}
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackAPISuccess("speech")
		}()
	}
	wg.Wait()

	if got := tr.Snapshot()["speech"].APISuccess; got != 50 {
		t.Errorf("Expected 50 successes, got %d", got)
	}
}

func TestTracker_SnapshotIsCopy(t *testing.T) {
	tr := New()
	tr.TrackRetry("chat")
	snap := tr.Snapshot()
	tr.TrackRetry("chat")

	if snap["chat"].Retries != 1 {
		t.Errorf("Snapshot changed after further tracking: %d", snap["chat"].Retries)
	}
}
