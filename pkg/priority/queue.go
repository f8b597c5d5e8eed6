// Package priority provides a two-lane event queue for single-consumer loops.
package priority

import (
	"context"
	"sync/atomic"
)

// Lane selects where an event is queued.
type Lane int

const (
	High Lane = iota
	Low
)

func (l Lane) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

type Stats struct {
	HighPush int64
	LowPush  int64
	HighPop  int64
	LowPop   int64
	Dropped  int64
}

type counters struct {
	push atomic.Int64
	pop  atomic.Int64
}

// Queue holds events in two bounded lanes. Pop always prefers the high lane;
// order is preserved within a lane. Producers may be many, the consumer is one.
type Queue[T any] struct {
	lanes   [2]chan T
	stats   [2]counters
	dropped atomic.Int64
}

// New sizes the lanes; non-positive capacities fall back to 16 and 256.
func New[T any](highCap, lowCap int) *Queue[T] {
	if highCap <= 0 {
		highCap = 16
	}
	if lowCap <= 0 {
		lowCap = 256
	}
	return &Queue[T]{lanes: [2]chan T{make(chan T, highCap), make(chan T, lowCap)}}
}

// Push waits for room in lane until ctx ends.
func (q *Queue[T]) Push(ctx context.Context, lane Lane, ev T) error {
	select {
	case q.lanes[lane] <- ev:
		q.stats[lane].push.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Offer queues ev only if lane has room. A refused event is counted as dropped.
func (q *Queue[T]) Offer(lane Lane, ev T) bool {
	select {
	case q.lanes[lane] <- ev:
		q.stats[lane].push.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop waits for the next event until ctx ends.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	if ev, ok := q.TryPop(); ok {
		return ev, nil
	}
	var zero T
	select {
	case ev := <-q.lanes[High]:
		q.stats[High].pop.Add(1)
		return ev, nil
	case ev := <-q.lanes[Low]:
		q.stats[Low].pop.Add(1)
		return ev, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TryPop returns the next event without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	for lane := range q.lanes {
		select {
		case ev := <-q.lanes[lane]:
			q.stats[lane].pop.Add(1)
			return ev, true
		default:
		}
	}
	var zero T
	return zero, false
}

func (q *Queue[T]) Len() int {
	return len(q.lanes[High]) + len(q.lanes[Low])
}

func (q *Queue[T]) Stats() Stats {
	return Stats{
		HighPush: q.stats[High].push.Load(),
		LowPush:  q.stats[Low].push.Load(),
		HighPop:  q.stats[High].pop.Load(),
		LowPop:   q.stats[Low].pop.Load(),
		Dropped:  q.dropped.Load(),
	}
}
