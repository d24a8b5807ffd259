// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package descset

import (
	"fmt"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/engine/pass"
)

// Allocator obtains descriptor sets from a Cache,
// allocating new sets from the layout's heap on misses.
type Allocator struct {
	cache  *Cache
	nalloc int
	nhit   int
}

// NewAllocator creates an Allocator that uses c.
func NewAllocator(c *Cache) *Allocator { return &Allocator{cache: c} }

// Cache returns the cache used by a.
func (a *Allocator) Cache() *Cache { return a.cache }

// Get returns a set of the given layout, reusing an
// available one if possible.
// The set is not added to the cache; use Write and
// Writer.Commit for that.
func (a *Allocator) Get(layout driver.DescHeap) (driver.DescSet, error) {
	if set := a.cache.Find(layout); set != nil {
		a.nhit++
		return set, nil
	}
	set, err := layout.New()
	if err != nil {
		return nil, fmt.Errorf("descset: allocation failed: %w", err)
	}
	a.nalloc++
	return set, nil
}

// Write gets a set of the given layout and returns a
// Writer for it. bindings must describe layout.
// Committing the Writer adds the set to the cache.
func (a *Allocator) Write(layout driver.DescHeap, bindings []pass.Binding) (*Writer, error) {
	set, err := a.Get(layout)
	if err != nil {
		return nil, err
	}
	w := NewWriter(set, bindings)
	w.alloc = a
	w.layout = layout
	return w, nil
}

// Stats returns how many sets were allocated from heaps
// and how many were reused from the cache.
func (a *Allocator) Stats() (allocated, reused int) { return a.nalloc, a.nhit }
