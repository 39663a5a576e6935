package obs

import (
	"sync/atomic"
	"time"
)

// CycleGenerator creates monotonically increasing decision-cycle IDs. Every
// proposal issued within one tick shares the cycle ID it returns.
type CycleGenerator struct {
	next uint64
}

// NewCycleGenerator returns a generator seeded with the given value.
func NewCycleGenerator(seed uint64) *CycleGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	return &CycleGenerator{next: seed}
}

// Next returns the next cycle ID.
func (g *CycleGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}
