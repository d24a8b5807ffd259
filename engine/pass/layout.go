// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package pass

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/gviegas/deferred/driver"
)

// groupSets validates bindings and groups them by set
// number, each group sorted by binding number.
// Set numbers with no bindings yield empty groups.
// what names the owner of the bindings in errors.
func groupSets(bindings []Binding, what string, fail func(kind error, format string, a ...any)) [][]Binding {
	bs := slices.Clone(bindings)
	slices.SortStableFunc(bs, func(a, b Binding) int {
		if c := cmp.Compare(a.Set, b.Set); c != 0 {
			return c
		}
		return cmp.Compare(a.Nr, b.Nr)
	})
	var sets [][]Binding
	for i, b := range bs {
		switch {
		case b.Set < 0 || b.Nr < 0:
			fail(ErrInvalidCount, "%s: binding (%d, %d)", what, b.Set, b.Nr)
			continue
		case b.Len < 1:
			fail(ErrInvalidCount, "%s: binding (%d, %d) has length %d", what, b.Set, b.Nr, b.Len)
			continue
		case i > 0 && bs[i-1].Set == b.Set && bs[i-1].Nr == b.Nr:
			fail(ErrDuplicateBinding, "%s: binding (%d, %d)", what, b.Set, b.Nr)
			continue
		}
		for len(sets) <= b.Set {
			sets = append(sets, nil)
		}
		sets[b.Set] = append(sets[b.Set], b)
	}
	return sets
}

// layoutKey hashes the descriptors of a set.
// Set numbers are not part of the key.
func layoutKey(bs []Binding) uint64 {
	buf := make([]byte, 0, len(bs)*32)
	for _, b := range bs {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Nr))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Type))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Stages))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Len))
	}
	return xxhash.Sum64(buf)
}

func sameLayout(a, b []Binding) bool {
	return slices.EqualFunc(a, b, func(x, y Binding) bool {
		return x.Nr == y.Nr && x.Type == y.Type && x.Stages == y.Stages && x.Len == y.Len
	})
}

type heapEntry struct {
	bindings []Binding
	heap     driver.DescHeap
}

// heapCache creates descriptor heaps, sharing heaps
// between sets whose descriptors are identical.
type heapCache struct {
	gpu   driver.GPU
	byKey map[uint64][]heapEntry
	heaps []driver.DescHeap
}

func newHeapCache(gpu driver.GPU) *heapCache {
	return &heapCache{gpu: gpu, byKey: make(map[uint64][]heapEntry)}
}

func (c *heapCache) get(bs []Binding) (driver.DescHeap, error) {
	key := layoutKey(bs)
	for _, e := range c.byKey[key] {
		if sameLayout(e.bindings, bs) {
			return e.heap, nil
		}
	}
	ds := make([]driver.Descriptor, len(bs))
	for i := range bs {
		ds[i] = bs[i].descriptor()
	}
	h, err := c.gpu.NewDescHeap(ds)
	if err != nil {
		return nil, err
	}
	c.byKey[key] = append(c.byKey[key], heapEntry{bs, h})
	c.heaps = append(c.heaps, h)
	return h, nil
}

// table creates the heaps of sets and a descriptor table
// combining them.
func (c *heapCache) table(sets [][]Binding) ([]driver.DescHeap, driver.DescTable, error) {
	heaps := make([]driver.DescHeap, len(sets))
	for i, bs := range sets {
		h, err := c.get(bs)
		if err != nil {
			return nil, nil, fmt.Errorf("set %d: %w", i, err)
		}
		heaps[i] = h
	}
	t, err := c.gpu.NewDescTable(heaps)
	if err != nil {
		return nil, nil, err
	}
	return heaps, t, nil
}

// destroy destroys every heap created by c.
func (c *heapCache) destroy() {
	for _, h := range c.heaps {
		h.Destroy()
	}
	c.heaps = nil
	clear(c.byKey)
}
