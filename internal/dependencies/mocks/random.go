package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/linkguard/internal/dependencies/random"
)

// MockRandom returns queued values. When a queue runs dry it falls back to
// deterministic counters so tests that do not care still get unique values.
type MockRandom struct {
	mu sync.Mutex

	intnResults   []int
	stringResults []string
	hexResults    []string

	fallback int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.intnResults) == 0 {
		return 0
	}
	result := r.intnResults[0]
	r.intnResults = r.intnResults[1:]
	return result
}

// String returns the next queued result, or a counter-based string drawn from alphabet
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stringResults) > 0 {
		result := r.stringResults[0]
		r.stringResults = r.stringResults[1:]
		return result
	}
	r.fallback++
	n := r.fallback
	out := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = alphabet[n%len(alphabet)]
		n /= len(alphabet)
	}
	return string(out)
}

// Hex returns the next queued result, or a counter-based token
func (r *MockRandom) Hex(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.hexResults) > 0 {
		result := r.hexResults[0]
		r.hexResults = r.hexResults[1:]
		return result
	}
	r.fallback++
	return fmt.Sprintf("%0*x", n*2, r.fallback)
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnResults = append(r.intnResults, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stringResults = append(r.stringResults, values...)
}

// QueueHex adds values to the Hex result queue
func (r *MockRandom) QueueHex(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hexResults = append(r.hexResults, values...)
}
