// Package partition implements the per-partition monotone update counter
// the entry core bumps on every successful put/remove (spec.md §6's
// "Partition" collaborator). It mirrors how rowstore keeps its own small
// pieces of state behind a narrow interface rather than a shared
// struct.
package partition

import "sync/atomic"

// Counter is a single partition's update counter. The zero value starts at
// zero and is ready to use.
type Counter struct {
	n atomic.Uint64
}

// NewCounter creates a Counter starting at zero.
func NewCounter() *Counter {
	return &Counter{}
}

// NextUpdateCounter implements cacheentry.Partition: it increments the
// counter and returns the new value.
func (c *Counter) NextUpdateCounter() uint64 {
	return c.n.Add(1)
}

// Current returns the counter's present value without advancing it.
func (c *Counter) Current() uint64 {
	return c.n.Load()
}

// Set forces the counter to exactly v, used when installing a partition
// from a rebalance or snapshot that already carries an update counter.
func (c *Counter) Set(v uint64) {
	c.n.Store(v)
}

// Table is a fixed set of per-partition Counters, one per partition id,
// the shape a cache keyed by partition-aware hashing needs.
type Table struct {
	counters []*Counter
}

// NewTable creates a Table with n partitions, each starting at zero.
func NewTable(n uint32) *Table {
	t := &Table{counters: make([]*Counter, n)}
	for i := range t.counters {
		t.counters[i] = NewCounter()
	}
	return t
}

// For returns the Counter for partition id p. p must be in range; callers
// own partition assignment and are expected to range-check before calling.
func (t *Table) For(p uint32) *Counter {
	return t.counters[p]
}
