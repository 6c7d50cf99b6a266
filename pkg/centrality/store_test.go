package centrality

import (
	"sync"
	"testing"
	"time"
)

func TestStorePublishAssignsVersions(t *testing.T) {
	s := NewStore()
	if s.Current() != nil {
		t.Fatal("new store should be empty")
	}

	if v := s.Publish(&Snapshot{}); v != 1 {
		t.Errorf("first Publish() = %d, want 1", v)
	}
	if v := s.Publish(&Snapshot{}); v != 2 {
		t.Errorf("second Publish() = %d, want 2", v)
	}
	if s.Current().Version != 2 {
		t.Errorf("Current().Version = %d, want 2", s.Current().Version)
	}
}

func TestStorePublishKeepsRestoredVersionAhead(t *testing.T) {
	s := NewStore()
	if v := s.Publish(&Snapshot{Version: 10}); v != 10 {
		t.Errorf("Publish(restored v10) = %d, want 10", v)
	}
	if v := s.Publish(&Snapshot{}); v != 11 {
		t.Errorf("Publish() after restore = %d, want 11", v)
	}
}

func TestStoreStaleness(t *testing.T) {
	s := NewStore()
	now := time.Now()

	if !s.IsStale(now, time.Hour) {
		t.Error("empty store should be stale")
	}
	if s.Age(now) != -1 {
		t.Errorf("Age() on empty store = %v, want -1", s.Age(now))
	}

	s.Publish(&Snapshot{ComputedAt: now.Add(-30 * time.Minute)})
	if s.IsStale(now, time.Hour) {
		t.Error("30m old snapshot should be fresh with 1h max age")
	}
	if !s.IsStale(now, 10*time.Minute) {
		t.Error("30m old snapshot should be stale with 10m max age")
	}
	if s.IsStale(now, 0) {
		t.Error("zero max age disables the age check")
	}
}

func TestStoreConcurrentPublishVersionsAreUnique(t *testing.T) {
	s := NewStore()
	const n = 50

	versions := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			versions <- s.Publish(&Snapshot{})
		}()
	}
	wg.Wait()
	close(versions)

	seen := make(map[uint64]bool)
	for v := range versions {
		if seen[v] {
			t.Fatalf("version %d assigned twice", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct versions, want %d", len(seen), n)
	}
}
