package executor

import (
	"math/rand/v2"
	"sync"

	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

// Delays draws simulated work durations from a seeded generator.
// The same seed always yields the same sequence of draws.
type Delays struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDelays creates a generator seeded with seed
func NewDelays(seed uint64) *Delays {
	return &Delays{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Draw returns a uniformly distributed whole number of seconds in r, bounds included
func (d *Delays) Draw(r domain.DelayRange) int {
	if r.Max <= r.Min {
		return r.Min
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return r.Min + d.rng.IntN(r.Max-r.Min+1)
}
