package metrics

import (
	"sync"
	"time"
)

// DefaultBufferCapacity is the default size of the recent-metrics buffer.
const DefaultBufferCapacity = 10000

// Store owns the shared in-memory metric state: a bounded buffer of recent
// points and the four rolling time windows. All mutation happens under an
// internal mutex, so the store is safe for use by the ingestion path, the
// self-collection loop and concurrent request handlers.
type Store struct {
	mu      sync.RWMutex
	buffer  *ring
	windows map[string]*ring
}

// NewStore creates a metric store with the given buffer capacity.
// A capacity of zero or less falls back to DefaultBufferCapacity.
func NewStore(bufferCapacity int) *Store {
	if bufferCapacity <= 0 {
		bufferCapacity = DefaultBufferCapacity
	}
	return &Store{
		buffer: newRing(bufferCapacity),
		windows: map[string]*ring{
			Window1m:  newRing(capacity1m),
			Window5m:  newRing(capacity5m),
			Window15m: newRing(capacity15m),
			Window1h:  newRing(capacity1h),
		},
	}
}

// Add appends a metric to the buffer and to every time window, evicting the
// oldest point on overflow. Never fails.
func (s *Store) Add(m Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer.append(m)
	for _, w := range s.windows {
		w.append(m)
	}
}

// Aggregate computes count/min/max/avg/latest for one metric name over one
// window. Pure read; an empty window yields a zero-valued result. Latest is
// the most recently appended sample, which assumes monotonic recording order.
func (s *Store) Aggregate(window, name string) WindowStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats WindowStats
	var sum float64
	s.windows[NormalizeWindow(window)].forEach(func(m Metric) {
		if m.Name != name {
			return
		}
		if stats.Count == 0 || m.Value < stats.Min {
			stats.Min = m.Value
		}
		if stats.Count == 0 || m.Value > stats.Max {
			stats.Max = m.Value
		}
		sum += m.Value
		stats.Latest = m.Value
		stats.Count++
	})
	if stats.Count > 0 {
		stats.Avg = sum / float64(stats.Count)
	}
	return stats
}

// AggregateAll groups one window's contents by metric name and aggregates
// each group.
func (s *Store) AggregateAll(window string) map[string]WindowStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		stats WindowStats
		sum   float64
	}
	groups := make(map[string]*acc)
	s.windows[NormalizeWindow(window)].forEach(func(m Metric) {
		g, ok := groups[m.Name]
		if !ok {
			g = &acc{}
			groups[m.Name] = g
		}
		if g.stats.Count == 0 || m.Value < g.stats.Min {
			g.stats.Min = m.Value
		}
		if g.stats.Count == 0 || m.Value > g.stats.Max {
			g.stats.Max = m.Value
		}
		g.sum += m.Value
		g.stats.Latest = m.Value
		g.stats.Count++
	})

	out := make(map[string]WindowStats, len(groups))
	for name, g := range groups {
		g.stats.Avg = g.sum / float64(g.stats.Count)
		out[name] = g.stats
	}
	return out
}

// Recent returns buffered points matching the filter, newest last. An empty
// name matches every metric; a zero start/end disables that bound. At most
// limit points are returned (0 means no limit).
func (s *Store) Recent(name string, start, end time.Time, limit int) []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Metric
	s.buffer.forEach(func(m Metric) {
		if name != "" && m.Name != name {
			return
		}
		if !start.IsZero() && m.Timestamp.Before(start) {
			return
		}
		if !end.IsZero() && m.Timestamp.After(end) {
			return
		}
		out = append(out, m)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// BufferLen reports the number of points currently buffered.
func (s *Store) BufferLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffer.len()
}

// WindowSizes reports the current fill of every window, keyed by window name.
func (s *Store) WindowSizes() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sizes := make(map[string]int, len(s.windows))
	for key, w := range s.windows {
		sizes[key] = w.len()
	}
	return sizes
}
