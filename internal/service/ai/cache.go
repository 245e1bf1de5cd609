package ai

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ModelCache holds at most one loaded handle per model identifier. Handles are
// published only after they are fully constructed, and failed loads are never
// remembered.
type ModelCache struct {
	mu      sync.RWMutex
	entries map[string]*ModelHandle
	group   singleflight.Group
}

// NewModelCache creates an empty cache.
func NewModelCache() *ModelCache {
	return &ModelCache{entries: make(map[string]*ModelHandle)}
}

// Get returns the cached handle for id, if any.
func (c *ModelCache) Get(id string) (*ModelHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entries[id]
	return h, ok
}

// GetOrLoad returns the cached handle for id or builds one with load.
// Concurrent callers asking for the same uncached id share a single load.
func (c *ModelCache) GetOrLoad(id string, load func() (*ModelHandle, error)) (*ModelHandle, error) {
	if h, ok := c.Get(id); ok {
		return h, nil
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		// Another flight may have published while we waited.
		if h, ok := c.Get(id); ok {
			return h, nil
		}

		h, err := load()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[id] = h
		c.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ModelHandle), nil
}

// Loaded returns the identifiers currently cached, sorted.
func (c *ModelCache) Loaded() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close releases every cached model. The cache is empty afterwards.
func (c *ModelCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for id, h := range c.entries {
		if h.model != nil {
			if err := h.model.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(c.entries, id)
	}
	return firstErr
}
