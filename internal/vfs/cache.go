package vfs

// cacheable is anything the cluster cache can hold.
type cacheable interface {
	comparable
	clusterID() ClusterID
	isDirty() bool
}

// Cache is a fixed-capacity ring of clusters. Append overwrites the slot under
// the cursor, writing the previous occupant back first if it is dirty.
type Cache[T cacheable] struct {
	slots []T
	index int
	write func(T) error
}

// NewCache creates a cache of the given capacity. write persists an evicted or flushed entry.
func NewCache[T cacheable](capacity int, write func(T) error) *Cache[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[T]{
		slots: make([]T, capacity),
		write: write,
	}
}

// Capacity is the number of slots in the ring.
func (c *Cache[T]) Capacity() int {
	return len(c.slots)
}

// Len is the number of occupied slots.
func (c *Cache[T]) Len() int {
	var zero T
	n := 0
	for _, v := range c.slots {
		if v != zero {
			n++
		}
	}
	return n
}

// Item returns the cached cluster with id, if present.
func (c *Cache[T]) Item(id ClusterID) (T, bool) {
	var zero T
	for _, v := range c.slots {
		if v != zero && v.clusterID() == id {
			return v, true
		}
	}
	return zero, false
}

// Append inserts v at the cursor and advances it.
func (c *Cache[T]) Append(v T) error {
	var zero T
	if old := c.slots[c.index]; old != zero && old.isDirty() {
		if err := c.write(old); err != nil {
			return err
		}
	}
	c.slots[c.index] = v
	c.index = (c.index + 1) % len(c.slots)
	return nil
}

// Remove drops the entry for id without writing it back.
func (c *Cache[T]) Remove(id ClusterID) {
	var zero T
	for i, v := range c.slots {
		if v != zero && v.clusterID() == id {
			c.slots[i] = zero
		}
	}
}

// Dirty reports whether any entry has unsaved changes.
func (c *Cache[T]) Dirty() bool {
	var zero T
	for _, v := range c.slots {
		if v != zero && v.isDirty() {
			return true
		}
	}
	return false
}

// Flush writes back every dirty entry.
func (c *Cache[T]) Flush() error {
	var zero T
	for _, v := range c.slots {
		if v != zero && v.isDirty() {
			if err := c.write(v); err != nil {
				return err
			}
		}
	}
	return nil
}
