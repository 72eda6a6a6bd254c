package request

import (
	"context"
	"testing"
	"time"
)

func TestProviderBackoff_ExponentialDelay(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		baseDelay time.Duration
		maxDelay  time.Duration
		wantMinMs int64
		wantMaxMs int64
	}{
		{"First failure", 1, 1 * time.Second, 60 * time.Second, 900, 1200},
		{"Second failure", 2, 1 * time.Second, 60 * time.Second, 1900, 2400},
		{"Third failure", 3, 1 * time.Second, 60 * time.Second, 3900, 4800},
		{"Max cap hit", 10, 1 * time.Second, 60 * time.Second, 59900, 66000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewProviderBackoff(tt.baseDelay, tt.maxDelay)

			for i := 0; i < tt.failures; i++ {
				b.RecordFailure("test-host")
			}

			fc, nextAllowed := b.GetState("test-host")
			if fc != tt.failures {
				t.Errorf("failureCount = %d, want %d", fc, tt.failures)
			}

			delayMs := time.Until(nextAllowed).Milliseconds()
			if delayMs < tt.wantMinMs || delayMs > tt.wantMaxMs {
				t.Errorf("delay = %dms, want between %dms and %dms", delayMs, tt.wantMinMs, tt.wantMaxMs)
			}
		})
	}
}

func TestProviderBackoff_GradualRecovery(t *testing.T) {
	b := NewProviderBackoff(1*time.Second, 60*time.Second)

	b.RecordFailure("host")
	b.RecordFailure("host")
	b.RecordFailure("host")

	if fc, _ := b.GetState("host"); fc != 3 {
		t.Errorf("after 3 failures, count = %d, want 3", fc)
	}

	b.RecordSuccess("host")
	if fc, _ := b.GetState("host"); fc != 2 {
		t.Errorf("after 1 success, count = %d, want 2", fc)
	}

	b.RecordSuccess("host")
	b.RecordSuccess("host")
	fc, next := b.GetState("host")
	if fc != 0 || !next.IsZero() {
		t.Errorf("after full recovery, count = %d next = %v, want 0 and zero time", fc, next)
	}
}

func TestProviderBackoff_IsolatedProviders(t *testing.T) {
	b := NewProviderBackoff(1*time.Second, 60*time.Second)

	b.RecordFailure("content.local")
	b.RecordFailure("content.local")

	fc1, _ := b.GetState("content.local")
	fc2, _ := b.GetState("backend.local")

	if fc1 != 2 {
		t.Errorf("content failures = %d, want 2", fc1)
	}
	if fc2 != 0 {
		t.Errorf("backend failures = %d, want 0 (isolated)", fc2)
	}
}

func TestProviderBackoff_WaitHonorsContext(t *testing.T) {
	b := NewProviderBackoff(10*time.Second, time.Minute)
	b.RecordFailure("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Wait(ctx, "slow")
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("Wait ignored the context deadline")
	}

	if err := b.Wait(context.Background(), "unknown"); err != nil {
		t.Errorf("unknown host should not wait: %v", err)
	}
}
