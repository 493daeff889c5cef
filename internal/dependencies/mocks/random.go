package mocks

import (
	"sync"

	"github.com/mcoot/typerace/internal/dependencies/random"
)

// MockRandom replays queued values. Intn falls back to 0 and Between to
// its lower bound once the queue is drained.
type MockRandom struct {
	mu      sync.Mutex
	intn    []int
	between []int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued Intn value
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.intn) == 0 {
		return 0
	}
	v := r.intn[0]
	r.intn = r.intn[1:]
	return v
}

// Between returns the next queued Between value
func (r *MockRandom) Between(lo, hi int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.between) == 0 {
		return lo
	}
	v := r.between[0]
	r.between = r.between[1:]
	return v
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intn = append(r.intn, values...)
}

// QueueBetween adds values to the Between result queue
func (r *MockRandom) QueueBetween(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.between = append(r.between, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intn = nil
	r.between = nil
}
