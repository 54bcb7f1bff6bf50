package cache

import "sync"

// Generations hands out a counter per key. Bumping a key's generation makes
// every cache entry built under the old value unreachable.
type Generations struct {
	mu  sync.Mutex
	gen map[int64]uint64
}

func NewGenerations() *Generations {
	return &Generations{gen: make(map[int64]uint64)}
}

func (g *Generations) Current(key int64) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen[key]
}

// Bump advances key's generation and returns the new value.
func (g *Generations) Bump(key int64) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen[key]++
	return g.gen[key]
}
