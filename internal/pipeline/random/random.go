// Package random wraps math/rand behind an interface so question
// sampling can be made deterministic in tests.
package random

import (
	"math/rand"
	"sync"
	"time"
)

type Rand interface {
	// Intn returns a uniform int in [0, n). Panics if n <= 0.
	Intn(n int) int
}

type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}

func New() Rand {
	return NewSeeded(time.Now().UnixNano())
}

func NewSeeded(seed int64) Rand {
	return &lockedRand{src: rand.New(rand.NewSource(seed))}
}
