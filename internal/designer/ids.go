package designer

import "strconv"

// IDCeiling separates allocator-issued ids from large legacy ids. Loaded ids at
// or above it never advance the counter.
const IDCeiling = 999999

// IDAllocator issues increasing integer ids as strings.
type IDAllocator struct {
	counter int
}

// NewIDAllocator creates an allocator at its initial value.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{counter: 1}
}

// Reset puts the counter back to its initial value.
func (a *IDAllocator) Reset() {
	a.counter = 1
}

// Next increments the counter and returns it.
func (a *IDAllocator) Next() string {
	a.counter++
	return strconv.Itoa(a.counter)
}

// Observe advances the counter to id when id is an integer strictly between
// the counter and the ceiling.
func (a *IDAllocator) Observe(id string) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return
	}
	if a.counter < n && n < IDCeiling {
		a.counter = n
	}
}

// Current returns the last issued or observed value.
func (a *IDAllocator) Current() int {
	return a.counter
}
