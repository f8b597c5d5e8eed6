package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver forwards one in every N events, N derived from rate.
// Error events are never dropped.
type SamplingObserver struct {
	inner Observer
	every uint64 // 0 drops everything but errors
	seen  atomic.Uint64
}

func NewSamplingObserver(inner Observer, rate float64) *SamplingObserver {
	s := &SamplingObserver{inner: inner}
	switch {
	case rate >= 1:
		s.every = 1
	case rate > 0:
		s.every = max(1, uint64(math.Round(1/rate)))
	}
	return s
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if ev.IsError() {
		s.inner.RecordEvent(ev)
		return
	}
	if s.every == 0 {
		return
	}
	if s.seen.Add(1)%s.every == 0 {
		s.inner.RecordEvent(ev)
	}
}
