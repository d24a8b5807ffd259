// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package descset recycles descriptor sets across frames
// and checks that sets are fully written before use.
//
// Nothing in this package is safe for concurrent use.
package descset

import (
	"go.uber.org/zap"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/internal/logging"
)

// stacks holds the sets of a single layout.
type stacks struct {
	avail []driver.DescSet
	inUse []driver.DescSet
}

// Cache keeps descriptor sets per layout in two LIFO
// stacks: sets available for reuse and sets in use by
// the current frame.
// A layout is identified by the driver.DescHeap from
// which its sets are allocated.
//
// The cache does no GPU synchronization. The caller must
// call MarkAllAvailable only after the GPU is done with
// the frame that used the sets.
type Cache struct {
	layouts map[driver.DescHeap]*stacks
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{layouts: make(map[driver.DescHeap]*stacks)}
}

func (c *Cache) get(layout driver.DescHeap) *stacks {
	s := c.layouts[layout]
	if s == nil {
		s = new(stacks)
		c.layouts[layout] = s
	}
	return s
}

// Find pops an available set of the given layout.
// It returns nil if none is available, in which case
// the caller must allocate a new set.
func (c *Cache) Find(layout driver.DescHeap) driver.DescSet {
	s := c.layouts[layout]
	if s == nil || len(s.avail) == 0 {
		return nil
	}
	n := len(s.avail) - 1
	set := s.avail[n]
	s.avail[n] = nil
	s.avail = s.avail[:n]
	return set
}

// Add pushes set onto the in-use stack of layout.
// It must be called once the set is written for the
// current frame.
func (c *Cache) Add(layout driver.DescHeap, set driver.DescSet) {
	if set == nil {
		panic("descset: nil set added to cache")
	}
	s := c.get(layout)
	s.inUse = append(s.inUse, set)
}

// MarkAllAvailable moves every in-use set onto the
// available stack of its layout.
// Calling it again with no Add in between has no effect.
func (c *Cache) MarkAllAvailable() {
	n := 0
	for _, s := range c.layouts {
		n += len(s.inUse)
		s.avail = append(s.avail, s.inUse...)
		clear(s.inUse)
		s.inUse = s.inUse[:0]
	}
	if n > 0 {
		logging.L().Debug("descriptor sets recycled", zap.Int("sets", n))
	}
}

// Len returns the number of available and in-use sets
// of the given layout.
func (c *Cache) Len(layout driver.DescHeap) (avail, inUse int) {
	if s := c.layouts[layout]; s != nil {
		avail, inUse = len(s.avail), len(s.inUse)
	}
	return
}

// Layouts returns the number of layouts known by c.
func (c *Cache) Layouts() int { return len(c.layouts) }

// Destroy drops every set of c.
// Sets are owned by their heaps, so nothing is released
// in the driver.
func (c *Cache) Destroy() { clear(c.layouts) }
