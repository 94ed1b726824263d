package core

import "sync"

// Accumulator is a lock guarded running total and event count. Handlers that
// share a tally receive the same *Accumulator explicitly.
type Accumulator struct {
	mu    sync.Mutex
	total float64
	count int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator { return &Accumulator{} }

// Add adds v to the running total.
func (a *Accumulator) Add(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total += v
}

// Inc increments the event count.
func (a *Accumulator) Inc() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
}

// Record adds v and increments the count atomically.
func (a *Accumulator) Record(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total += v
	a.count++
}

// Total returns the running total.
func (a *Accumulator) Total() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Count returns the number of recorded events.
func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}
