package metrics

// Canonical window keys and their ring capacities. Capacities assume a nominal
// density of one sample per second.
const (
	Window1m  = "1m"
	Window5m  = "5m"
	Window15m = "15m"
	Window1h  = "1h"

	capacity1m  = 60
	capacity5m  = 300
	capacity15m = 900
	capacity1h  = 3600
)

// WindowKeys lists the canonical window keys in ascending span order.
var WindowKeys = []string{Window1m, Window5m, Window15m, Window1h}

// NormalizeWindow maps an arbitrary window key to a canonical one.
// Unknown keys fall back to the 1h window.
func NormalizeWindow(window string) string {
	switch window {
	case Window1m, Window5m, Window15m, Window1h:
		return window
	default:
		return Window1h
	}
}

// ring is a fixed-capacity ring buffer of metric points shared across all
// metric names. The caller is responsible for locking.
type ring struct {
	points []Metric
	next   int
	full   bool
}

func newRing(capacity int) *ring {
	return &ring{points: make([]Metric, capacity)}
}

func (r *ring) append(m Metric) {
	r.points[r.next] = m
	r.next++
	if r.next == len(r.points) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.points)
	}
	return r.next
}

// forEach visits the buffered points in append order, oldest first.
func (r *ring) forEach(fn func(Metric)) {
	if r.full {
		for i := r.next; i < len(r.points); i++ {
			fn(r.points[i])
		}
	}
	for i := 0; i < r.next; i++ {
		fn(r.points[i])
	}
}
