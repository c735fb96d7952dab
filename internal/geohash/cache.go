package geohash

import "sync"

// neighborEntry caches the 9-cell window computed for a (cell,
// precision) pair so repeated radius queries over the same area don't
// keep re-deriving neighbours from scratch.
type neighborEntry struct {
	cell   string
	window []string
}

// NeighborCache is a small bounded cache mapping a geohash cell to its
// precomputed 9-cell window. Eviction is least-recently-used once the
// cache reaches its capacity, grounded on the get/put/remove-over-a
// -bounded-map shape used elsewhere for small hot-path caches.
type NeighborCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]neighborEntry
	order    []string
}

// NewNeighborCache creates a cache holding at most capacity entries.
func NewNeighborCache(capacity int) *NeighborCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &NeighborCache{
		capacity: capacity,
		entries:  make(map[string]neighborEntry, capacity),
	}
}

// Get returns the cached window for cell, if present, and marks cell
// as most recently used.
func (c *NeighborCache) Get(cell string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cell]
	if !ok {
		return nil, false
	}
	c.touch(cell)
	return e.window, true
}

// touch moves cell to the back of the eviction order, marking it most
// recently used. Callers must hold c.mu.
func (c *NeighborCache) touch(cell string) {
	for i, k := range c.order {
		if k == cell {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, cell)
}

// Put stores the window for cell, evicting the least recently used
// entry if the cache is at capacity.
func (c *NeighborCache) Put(cell string, window []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[cell]; exists {
		c.touch(cell)
	} else {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, cell)
	}
	c.entries[cell] = neighborEntry{cell: cell, window: window}
}

// Remove drops cell from the cache, if present.
func (c *NeighborCache) Remove(cell string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[cell]; !ok {
		return
	}
	delete(c.entries, cell)
	for i, k := range c.order {
		if k == cell {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of cached entries.
func (c *NeighborCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// WindowCached returns the 9-cell window for cell, computing and
// caching it on a miss.
func (c *NeighborCache) WindowCached(cell string) []string {
	if w, ok := c.Get(cell); ok {
		return w
	}
	w := Window(cell)
	c.Put(cell, w)
	return w
}
