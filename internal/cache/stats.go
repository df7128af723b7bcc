package cache

import "sync/atomic"

// Statistics tracks cache effectiveness with atomic counters. It is always
// present on a Store; prometheus export is layered on top when enabled.
type Statistics struct {
	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
}

// NewStatistics creates zeroed statistics.
func NewStatistics() *Statistics { return &Statistics{} }

// Hit records a cache hit.
func (s *Statistics) Hit() { s.hits.Add(1) }

// Miss records a cache miss.
func (s *Statistics) Miss() { s.misses.Add(1) }

// Evict records a capacity eviction.
func (s *Statistics) Evict() { s.evictions.Add(1) }

// Expire records a lazy removal of an expired entry.
func (s *Statistics) Expire() { s.expirations.Add(1) }

// StatsSnapshot is a point-in-time view of cache counters.
type StatsSnapshot struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	HitRate     float64 `json:"hitRate"`
	Size        int     `json:"size"`
	MaxEntries  int     `json:"maxEntries"`
}

// Snapshot returns current counter values.
func (s *Statistics) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Evictions:   s.evictions.Load(),
		Expirations: s.expirations.Load(),
	}
	if total := snap.Hits + snap.Misses; total > 0 {
		snap.HitRate = float64(snap.Hits) / float64(total)
	}
	return snap
}
