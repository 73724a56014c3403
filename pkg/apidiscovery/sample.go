package apidiscovery

import (
	"math/rand"
	"sort"
)

// sampleCap bounds the per-endpoint duration sample. Beyond the cap,
// reservoir-style replacement keeps the sample representative without
// unbounded growth.
const sampleCap = 1000

// durationSample keeps two bounded views of an endpoint's durations: a
// sorted view for percentile reads and an arrival-ordered view for the
// baseline/recent regression split.
type durationSample struct {
	n       int       // total observations, including replaced ones
	sorted  []float64 // insertion-sorted, len <= sampleCap
	ordered []float64 // arrival order, len <= sampleCap (newest retained)
}

// add records one duration observation.
func (s *durationSample) add(v float64) {
	s.n++

	// Sorted view: insertion sort below cap, reservoir replacement above.
	if len(s.sorted) < sampleCap {
		i := sort.SearchFloat64s(s.sorted, v)
		s.sorted = append(s.sorted, 0)
		copy(s.sorted[i+1:], s.sorted[i:])
		s.sorted[i] = v
	} else if j := rand.Intn(s.n); j < sampleCap {
		out := rand.Intn(sampleCap)
		s.sorted = append(s.sorted[:out], s.sorted[out+1:]...)
		i := sort.SearchFloat64s(s.sorted, v)
		s.sorted = append(s.sorted, 0)
		copy(s.sorted[i+1:], s.sorted[i:])
		s.sorted[i] = v
	}

	// Ordered view: keep the newest sampleCap observations.
	s.ordered = append(s.ordered, v)
	if len(s.ordered) > sampleCap {
		s.ordered = s.ordered[1:]
	}
}

// percentile returns the nearest-rank percentile (0 < p <= 100) of the
// sorted view. Returns 0 for an empty sample.
func (s *durationSample) percentile(p float64) float64 {
	if len(s.sorted) == 0 {
		return 0
	}
	rank := int(p/100*float64(len(s.sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(s.sorted) {
		rank = len(s.sorted) - 1
	}
	return s.sorted[rank]
}

// percentileOf computes a nearest-rank percentile over an unsorted slice.
func percentileOf(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := int(p/100*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
