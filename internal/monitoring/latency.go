package monitoring

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LatencySummary describes recent call durations in milliseconds.
type LatencySummary struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	StdMs  float64 `json:"std_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// LatencyRecorder keeps the most recent durations in a fixed-size ring.
// It is safe for concurrent use.
type LatencyRecorder struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

// NewLatencyRecorder returns a recorder that remembers the last capacity samples.
func NewLatencyRecorder(capacity int) *LatencyRecorder {
	if capacity < 1 {
		capacity = 1
	}
	return &LatencyRecorder{samples: make([]float64, capacity)}
}

// Record adds one duration.
func (r *LatencyRecorder) Record(d time.Duration) {
	r.mu.Lock()
	r.samples[r.next] = float64(d) / float64(time.Millisecond)
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Reset drops all samples.
func (r *LatencyRecorder) Reset() {
	r.mu.Lock()
	r.next = 0
	r.full = false
	r.mu.Unlock()
}

// Summary computes statistics over the retained samples.
func (r *LatencyRecorder) Summary() LatencySummary {
	r.mu.Lock()
	n := r.next
	if r.full {
		n = len(r.samples)
	}
	data := make([]float64, n)
	copy(data, r.samples[:n])
	r.mu.Unlock()

	if n == 0 {
		return LatencySummary{}
	}
	sort.Float64s(data)

	s := LatencySummary{
		Count:  n,
		MeanMs: stat.Mean(data, nil),
		P50Ms:  stat.Quantile(0.5, stat.Empirical, data, nil),
		P95Ms:  stat.Quantile(0.95, stat.Empirical, data, nil),
		MaxMs:  data[n-1],
	}
	if n > 1 {
		s.StdMs = stat.StdDev(data, nil)
	}
	return s
}
