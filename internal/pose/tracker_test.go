package pose

import (
	"sync"
	"testing"
	"time"
)

func TestTrackerStartsInvalid(t *testing.T) {
	tracker := NewTracker()

	est := tracker.Snapshot()
	if est.Valid {
		t.Fatal("expected estimate to be invalid before any update")
	}

	updates, last := tracker.Stats()
	if updates != 0 || !last.IsZero() {
		t.Fatalf("expected zero stats, got updates=%d last=%v", updates, last)
	}
}

func TestTrackerUpdateMarksValid(t *testing.T) {
	tracker := NewTracker()
	tracker.Update(Estimate{X: 1, Y: 2, Yaw: 0.5})

	est := tracker.Snapshot()
	if !est.Valid {
		t.Fatal("expected estimate to be valid after update")
	}
	if est.X != 1 || est.Y != 2 || est.Yaw != 0.5 {
		t.Fatalf("unexpected estimate: %+v", est)
	}

	updates, last := tracker.Stats()
	if updates != 1 || last.IsZero() {
		t.Fatalf("unexpected stats: updates=%d last=%v", updates, last)
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tracker.Update(Estimate{X: float64(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = tracker.Snapshot()
		}
	}()
	wg.Wait()

	if got := tracker.Snapshot(); got.X != 999 {
		t.Fatalf("expected final X 999, got %v", got.X)
	}
}

func TestClassifyFeed(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		updates uint64
		age     time.Duration
		want    FeedState
	}{
		{"no data", 0, 0, FeedWaiting},
		{"fresh", 10, 100 * time.Millisecond, FeedLive},
		{"stale", 10, 3 * time.Second, FeedStale},
		{"lost", 10, 30 * time.Second, FeedLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := ClassifyFeed(tt.updates, now.Add(-tt.age), now, DefaultStaleAfter, DefaultLostAfter)
			if health.State != tt.want {
				t.Fatalf("expected state %q, got %q (%s)", tt.want, health.State, health.Reason)
			}
			if health.Reason == "" {
				t.Fatal("expected a reason")
			}
		})
	}
}

func TestTrackerHealth(t *testing.T) {
	tracker := NewTracker()
	if got := tracker.Health().State; got != FeedWaiting {
		t.Fatalf("expected waiting before updates, got %q", got)
	}

	tracker.Update(Estimate{})
	if got := tracker.Health().State; got != FeedLive {
		t.Fatalf("expected live right after update, got %q", got)
	}
}
