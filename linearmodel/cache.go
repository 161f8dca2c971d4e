package linearmodel

import "sync"

type entry struct {
	once  sync.Once
	value any
	err   error
}

// cache memoizes derived statistics by name. Each key is computed at most once, errors
// included, and concurrent readers of the same key wait on the first computation.
type cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	// computations counts evaluations per key
	computations map[string]int
}

func newCache() *cache {
	return &cache{
		entries:      make(map[string]*entry),
		computations: make(map[string]int),
	}
}

func (c *cache) get(key string, compute func() (any, error)) (any, error) {
	c.mu.Lock()
	e, exists := c.entries[key]
	if !exists {
		e = &entry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.value, e.err = compute()

		c.mu.Lock()
		c.computations[key]++
		c.mu.Unlock()
	})
	return e.value, e.err
}

func (c *cache) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computations[key]
}

func cached[T any](c *cache, key string, compute func() (T, error)) (T, error) {
	v, err := c.get(key, func() (any, error) {
		return compute()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
