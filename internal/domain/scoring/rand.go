package scoring

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the random source the engine draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// LockedRand makes a *rand.Rand safe for use by concurrent workers.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand seeds a new source. A zero seed uses the current time.
func NewLockedRand(seed int64) *LockedRand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *LockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// uniform draws from [lo, hi].
func uniform(r Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}
