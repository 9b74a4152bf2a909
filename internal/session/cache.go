// Package session caches heavyweight inference runtimes, one per resolved
// local model path, shared across requests.
package session

import (
	"sync"

	"matchd/internal/common/fsutil"
)

// Runtime executes one scoring model: a fixed-length numeric vector in,
// raw scores out.
type Runtime interface {
	Run(input []float32) ([]float32, error)
	Close() error
}

// OpenFunc constructs a runtime for a local model path. Tests inject fakes
// here; the default is the ONNX-backed opener (behind the onnx build tag).
type OpenFunc func(path string) (Runtime, error)

// Cache is a keyed, append-only runtime cache. Entries are never evicted;
// a reload that repoints a model id at a new path simply stops reaching
// the old entry.
type Cache struct {
	open OpenFunc

	mu       sync.Mutex
	runtimes map[string]Runtime
}

// NewCache builds a cache around the given opener; nil means DefaultOpen.
func NewCache(open OpenFunc) *Cache {
	if open == nil {
		open = DefaultOpen
	}
	return &Cache{open: open, runtimes: make(map[string]Runtime)}
}

// GetOrCreate returns the cached runtime for path, constructing one on
// first use. Concurrent misses for the same key may both construct; the
// first writer wins and the loser's runtime is closed.
func (c *Cache) GetOrCreate(path string) (Runtime, error) {
	key := fsutil.Canonical(path)
	c.mu.Lock()
	if rt, ok := c.runtimes[key]; ok {
		c.mu.Unlock()
		return rt, nil
	}
	c.mu.Unlock()

	rt, err := c.open(key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.runtimes[key]; ok {
		_ = rt.Close()
		return existing, nil
	}
	c.runtimes[key] = rt
	return rt, nil
}

// Len reports the number of cached runtimes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runtimes)
}

// Close releases every cached runtime.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for key, rt := range c.runtimes {
		if err := rt.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.runtimes, key)
	}
	return first
}
