package metrics

import (
	"sync/atomic"
	"time"
)

// numBuckets covers power-of-two nanosecond durations from <1ns up to
// roughly 292 years (2^63 ns), which is more than enough headroom for
// both blocked-time and record-size distributions (size counts reuse
// the same bucketing, just interpreted as bytes instead of durations).
const numBuckets = 64

// Histogram is a lock-free power-of-two bucketed distribution: bucket i
// counts observations in [2^(i-1), 2^i). It trades precision for being
// safe to update from many goroutines without contention beyond a
// single atomic add per observation.
type Histogram struct {
	buckets [numBuckets]uint64
	count   uint64
	sum     uint64
}

func bucketFor(v int64) int {
	if v <= 0 {
		return 0
	}
	b := 0
	for u := uint64(v); u != 0; u >>= 1 {
		b++
	}
	if b >= numBuckets {
		b = numBuckets - 1
	}
	return b
}

// Observe records one duration sample.
func (h *Histogram) Observe(d time.Duration) {
	atomic.AddUint64(&h.buckets[bucketFor(int64(d))], 1)
	atomic.AddUint64(&h.count, 1)
	atomic.AddUint64(&h.sum, uint64(d))
}

// Reset zeroes every bucket.
func (h *Histogram) Reset() {
	for i := range h.buckets {
		atomic.StoreUint64(&h.buckets[i], 0)
	}
	atomic.StoreUint64(&h.count, 0)
	atomic.StoreUint64(&h.sum, 0)
}

// HistogramSnapshot is a point-in-time, race-free copy of a Histogram.
type HistogramSnapshot struct {
	Buckets [numBuckets]uint64 `json:"buckets"`
	Count   uint64             `json:"count"`
	Sum     uint64             `json:"sum"`
}

// Mean returns the sample mean, or 0 if there are no observations.
func (s HistogramSnapshot) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count)
}

// Snapshot copies out the current bucket counts.
func (h *Histogram) Snapshot() HistogramSnapshot {
	var s HistogramSnapshot
	for i := range h.buckets {
		s.Buckets[i] = atomic.LoadUint64(&h.buckets[i])
	}
	s.Count = atomic.LoadUint64(&h.count)
	s.Sum = atomic.LoadUint64(&h.sum)
	return s
}
