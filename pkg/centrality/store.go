package centrality

import (
	"sync/atomic"
	"time"
)

// Store holds the current snapshot. Publish swaps it atomically; readers
// load it once per request and keep using that pointer.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the published snapshot or nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Publish assigns the next version to snap and makes it current. snap must
// not be modified afterwards. Snapshots restored from an archive keep their
// version when it is ahead of the store.
func (s *Store) Publish(snap *Snapshot) uint64 {
	for {
		last := s.version.Load()
		next := last + 1
		if snap.Version > last {
			next = snap.Version
		}
		if s.version.CompareAndSwap(last, next) {
			snap.Version = next
			s.current.Store(snap)
			return next
		}
	}
}

// Age returns the age of the current snapshot, or -1 when there is none.
func (s *Store) Age(now time.Time) time.Duration {
	snap := s.current.Load()
	if snap == nil {
		return -1
	}
	return snap.Age(now)
}

// IsStale reports whether there is no snapshot or it is older than maxAge.
// A non-positive maxAge disables the age check.
func (s *Store) IsStale(now time.Time, maxAge time.Duration) bool {
	snap := s.current.Load()
	if snap == nil {
		return true
	}
	return maxAge > 0 && snap.Age(now) > maxAge
}
