package session

import "sync"

// Accumulator collects microphone blocks between flushes. The device callback
// appends from its own goroutine; the controller drains under its lock.
type Accumulator struct {
	mu     sync.Mutex
	chunks [][]float32
	total  int
}

func NewAccumulator() *Accumulator { return &Accumulator{} }

// Append stores block as-is; callers hand over a private copy.
func (a *Accumulator) Append(block []float32) {
	if len(block) == 0 {
		return
	}
	a.mu.Lock()
	a.chunks = append(a.chunks, block)
	a.total += len(block)
	a.mu.Unlock()
}

// Total is the number of samples held. It always equals the sum of chunk lengths.
func (a *Accumulator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Chunks is the number of stored blocks.
func (a *Accumulator) Chunks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.chunks)
}

// Drain hands over the stored chunks and their total and empties the buffer.
func (a *Accumulator) Drain() ([][]float32, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	chunks, total := a.chunks, a.total
	a.chunks, a.total = nil, 0
	return chunks, total
}

func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.chunks, a.total = nil, 0
	a.mu.Unlock()
}
