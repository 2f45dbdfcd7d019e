package economy

import (
	mathrand "math/rand"
	"sync"
	"time"
)

// Source is the uniform [0,1) random source the simulation draws from.
// Implementations used across players must be safe for concurrent use.
type Source interface {
	Float64() float64
}

type LockedSource struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

// NewSource returns a seeded source; seed 0 seeds from the clock.
func NewSource(seed int64) *LockedSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LockedSource{rand: mathrand.New(mathrand.NewSource(seed))}
}

func (s *LockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

// WeightedChoice draws one index from weights using a single uniform draw.
// Non-positive weights are never chosen. Returns -1 when nothing can be chosen.
func WeightedChoice(src Source, weights []float64) int {
	total := 0.0
	last := -1
	for i, w := range weights {
		if w > 0 {
			total += w
			last = i
		}
	}
	if last < 0 {
		return -1
	}
	target := src.Float64() * total
	acc := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if target < acc {
			return i
		}
	}
	// float rounding can leave target == total
	return last
}
