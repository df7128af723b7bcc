package cache

import "github.com/prometheus/client_golang/prometheus"

// storeMetrics exposes cache counters to prometheus. All methods are nil-safe
// so the hot path stays free of enabled checks.
type storeMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
}

// WithMetrics registers hit/miss/eviction counters on reg under the given
// namespace. Registration failures surface when the Store is constructed, not
// at record time.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(s *Store) {
		m := &storeMetrics{
			hits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Number of cache hits.",
			}),
			misses: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Number of cache misses.",
			}),
			evictions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Number of LRU evictions.",
			}),
		}
		reg.MustRegister(m.hits, m.misses, m.evictions)
		s.metrics = m
	}
}

func (m *storeMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *storeMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *storeMetrics) recordEviction() {
	if m != nil {
		m.evictions.Inc()
	}
}
