// Package cache provides the in-memory TTL+LRU response cache shared by the
// fetch layer. Entries are keyed by (category, normalized parameters, page
// offset) and dropped when a write lands on their category.
package cache

import (
	"container/list"
	"errors"
	"strings"
	"sync"
	"time"
)

// DefaultMaxValueBytes caps the size of a single cached value. Puts above the
// cap are rejected so one oversized page cannot crowd out the working set.
const DefaultMaxValueBytes = 10 * 1024 * 1024

// ErrValueTooLarge is returned by Put when a value exceeds the configured
// per-value byte limit. The store is left unchanged.
var ErrValueTooLarge = errors.New("cache: value exceeds max size")

type entry struct {
	key          string
	value        []byte
	insertedAt   time.Time
	ttl          time.Duration
	lastAccessed time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.insertedAt.Add(e.ttl))
}

// Store is a thread-safe LRU cache with per-entry TTLs. Expired entries are
// purged lazily on lookup; the least recently accessed entry is evicted only
// when an insert would exceed capacity.
type Store struct {
	mu            sync.Mutex
	maxEntries    int
	maxValueBytes int
	items         map[string]*list.Element
	order         *list.List // front = most recently used
	stats         *Statistics
	metrics       *storeMetrics
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxValueBytes overrides the per-value size limit.
func WithMaxValueBytes(n int) Option {
	return func(s *Store) { s.maxValueBytes = n }
}

// WithClock overrides the time source. Tests use this to advance past TTLs
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store holding at most maxEntries entries.
func New(maxEntries int, opts ...Option) *Store {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	s := &Store{
		maxEntries:    maxEntries,
		maxValueBytes: DefaultMaxValueBytes,
		items:         make(map[string]*list.Element),
		order:         list.New(),
		stats:         NewStatistics(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value for key, or (nil, false) on a miss. A hit
// marks the entry as most recently used; an expired entry is removed and
// reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		s.stats.Miss()
		s.metrics.recordMiss()
		return nil, false
	}
	e := el.Value.(*entry)
	if e.expired(s.now()) {
		s.removeLocked(el)
		s.stats.Expire()
		s.stats.Miss()
		s.metrics.recordMiss()
		return nil, false
	}
	e.lastAccessed = s.now()
	s.order.MoveToFront(el)
	s.stats.Hit()
	s.metrics.recordHit()
	return e.value, true
}

// Put stores value under key with the given TTL, overwriting any existing
// entry. When the store is at capacity the least recently accessed entry is
// evicted first.
func (s *Store) Put(key string, value []byte, ttl time.Duration) error {
	if len(value) > s.maxValueBytes {
		return ErrValueTooLarge
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.insertedAt = now
		e.ttl = ttl
		e.lastAccessed = now
		s.order.MoveToFront(el)
		return nil
	}
	if s.order.Len() >= s.maxEntries {
		if back := s.order.Back(); back != nil {
			s.removeLocked(back)
			s.stats.Evict()
			s.metrics.recordEviction()
		}
	}
	el := s.order.PushFront(&entry{
		key:          key,
		value:        value,
		insertedAt:   now,
		ttl:          ttl,
		lastAccessed: now,
	})
	s.items[key] = el
	return nil
}

// Invalidate removes every entry whose key satisfies match and returns the
// number removed. It never errors when nothing matches.
func (s *Store) Invalidate(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if match(el.Value.(*entry).key) {
			s.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

// InvalidateCategory removes all entries belonging to a category. Write-path
// tools call this after any mutating operation on the category.
func (s *Store) InvalidateCategory(category string) int {
	prefix := category + keySeparator
	return s.Invalidate(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// Size returns the current number of entries, including any not yet purged
// expired ones.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element)
	s.order.Init()
}

// Stats returns a snapshot of hit/miss/eviction counters.
func (s *Store) Stats() StatsSnapshot {
	snap := s.stats.Snapshot()
	snap.Size = s.Size()
	snap.MaxEntries = s.maxEntries
	return snap
}

func (s *Store) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	s.order.Remove(el)
	delete(s.items, e.key)
}
