// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package descset

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/engine/pass"
	"github.com/gviegas/deferred/internal/bitvec"
)

// Validation errors.
var (
	ErrUnwritten    = errors.New("descset: binding not written")
	ErrRewritten    = errors.New("descset: binding written more than once")
	ErrTypeMismatch = errors.New("descset: descriptor type mismatch")
	ErrUndeclared   = errors.New("descset: binding not declared")
	ErrRange        = errors.New("descset: descriptor range out of bounds")
)

// Writer writes a descriptor set and tracks which
// elements of its bindings were written.
// Invalid writes are not forwarded to the set; they are
// reported by Validate instead.
type Writer struct {
	set      driver.DescSet
	bindings []pass.Binding
	// First element of each binding.
	base    []int
	written bitvec.V[uint64]
	err     error
	alloc   *Allocator
	layout  driver.DescHeap
}

// NewWriter creates a Writer for set, whose layout is
// described by bindings.
func NewWriter(set driver.DescSet, bindings []pass.Binding) *Writer {
	w := &Writer{
		set:      set,
		bindings: slices.Clone(bindings),
		base:     make([]int, len(bindings)),
	}
	n := 0
	for i, b := range w.bindings {
		w.base[i] = n
		n += b.Len
	}
	if n > 0 {
		w.written.Ensure(n - 1)
	}
	return w
}

// Set returns the descriptor set being written.
func (w *Writer) Set() driver.DescSet { return w.set }

func (w *Writer) fail(err error) { w.err = multierr.Append(w.err, err) }

// check validates a write of n elements of binding nr
// starting at start and marks them as written.
func (w *Writer) check(nr, start, n int, call string, types ...driver.DescType) bool {
	i := slices.IndexFunc(w.bindings, func(b pass.Binding) bool { return b.Nr == nr })
	if i < 0 {
		w.fail(fmt.Errorf("%w: %s(%d)", ErrUndeclared, call, nr))
		return false
	}
	b := &w.bindings[i]
	if !slices.Contains(types, b.Type) {
		w.fail(fmt.Errorf("%w: %s(%d) on %v descriptor", ErrTypeMismatch, call, nr, b.Type))
		return false
	}
	if start < 0 || n < 1 || start+n > b.Len {
		w.fail(fmt.Errorf("%w: %s(%d) [%d, %d) of %d", ErrRange, call, nr, start, start+n, b.Len))
		return false
	}
	ok := true
	for j := range n {
		if !w.written.Set(w.base[i] + start + j) {
			ok = false
		}
	}
	if !ok {
		w.fail(fmt.Errorf("%w: %s(%d)", ErrRewritten, call, nr))
	}
	return true
}

// Buffer writes buffer ranges to a DBuffer or DConstant
// binding.
func (w *Writer) Buffer(nr, start int, buf []driver.Buffer, off, size []int64) *Writer {
	if len(buf) != len(off) || len(buf) != len(size) {
		panic("descset: Buffer argument length mismatch")
	}
	if w.check(nr, start, len(buf), "Buffer", driver.DBuffer, driver.DConstant) {
		w.set.SetBuffer(nr, start, buf, off, size)
	}
	return w
}

// Image writes image views to a DImage, DTexture or
// DInput binding.
func (w *Writer) Image(nr, start int, iv ...driver.ImageView) *Writer {
	if w.check(nr, start, len(iv), "Image", driver.DImage, driver.DTexture, driver.DInput) {
		w.set.SetImage(nr, start, iv)
	}
	return w
}

// Sampler writes samplers to a DSampler binding.
func (w *Writer) Sampler(nr, start int, splr ...driver.Sampler) *Writer {
	if w.check(nr, start, len(splr), "Sampler", driver.DSampler) {
		w.set.SetSampler(nr, start, splr)
	}
	return w
}

// Validate checks that every element of every declared
// binding was written exactly once, with a matching
// descriptor type.
// Every problem found is reported, combined by multierr.
func (w *Writer) Validate() error {
	err := w.err
	for i, b := range w.bindings {
		for j := range b.Len {
			if !w.written.IsSet(w.base[i] + j) {
				err = multierr.Append(err, fmt.Errorf("%w: set %d, binding %d, element %d", ErrUnwritten, b.Set, b.Nr, j))
				break
			}
		}
	}
	return err
}

// Commit validates the writes and, for writers created
// by an Allocator, adds the set to the cache as in use.
// The set is added even if validation fails so it is
// recycled with the others.
func (w *Writer) Commit() (driver.DescSet, error) {
	err := w.Validate()
	if w.alloc != nil {
		w.alloc.cache.Add(w.layout, w.set)
		w.alloc = nil
	}
	return w.set, err
}
