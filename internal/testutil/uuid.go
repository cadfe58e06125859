package testutil

import (
	"fmt"
	"sync"
)

// SequentialUUIDs generates predictable UUID strings:
// 00000000-0000-0000-0000-000000000001, ...000002, and so on.
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialUUIDs struct {
	mu sync.Mutex
	n  int64
}

// NewSequentialUUIDs creates a generator whose first value ends in 1.
func NewSequentialUUIDs() *SequentialUUIDs {
	return &SequentialUUIDs{}
}

// Generate returns the next UUID.
func (g *SequentialUUIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.n)
}

// Reset restarts the sequence.
func (g *SequentialUUIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
