package energytrace

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/power-sim/sim"
)

type cacheKey struct {
	path   string
	column Column
}

// Cache holds the fragment sequences of already loaded trace files.
// Cached sequences are immutable and shared between simulation instances.
//
// Thread-safety: safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey][]sim.Fragment
	loads   int
}

// NewCache creates an empty trace cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey][]sim.Fragment)}
}

// Get returns the fragment sequence for column of the file at path, loading
// it on first use. Load errors are not cached.
func (c *Cache) Get(path string, column Column) ([]sim.Fragment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{path: path, column: column}
	if fragments, ok := c.entries[key]; ok {
		return fragments, nil
	}
	samples, err := LoadSamples(path, column)
	if err != nil {
		return nil, err
	}
	fragments := sim.BuildFragments(samples)
	c.entries[key] = fragments
	c.loads++
	logrus.Debugf("energytrace: loaded %d %s samples from %s", len(samples), column, path)
	return fragments, nil
}

// Loads returns how many files were parsed since creation or the last Reset.
func (c *Cache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Reset drops every cached sequence.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey][]sim.Fragment)
	c.loads = 0
}
