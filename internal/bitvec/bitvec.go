// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package bitvec defines a bit vector type used to track
// small sets of indices (e.g., component kinds present
// in an entity and descriptor bindings already written).
package bitvec

import (
	"iter"
	"math/bits"
	"unsafe"
)

// Uint represents the granularity of a bit vector.
type Uint interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// V is a growable bit vector with custom granularity.
// The zero value is an empty vector.
type V[T Uint] struct {
	s   []T
	set int
}

// nbit returns the number of bits in T.
func (*V[T]) nbit() int { return int(unsafe.Sizeof(T(0))) * 8 }

// Len returns the number of bits in the vector.
func (v *V[_]) Len() int { return len(v.s) * v.nbit() }

// Count returns the number of set bits in the vector.
func (v *V[_]) Count() int { return v.set }

// Rem returns the number of unset bits in the vector.
func (v *V[_]) Rem() int { return v.Len() - v.set }

// Grow resizes the vector to contain nplus additional Uints.
// The new extent is appended as a range of unset bits.
// It returns the value of v.Len prior to growing.
func (v *V[T]) Grow(nplus int) (index int) {
	index = v.Len()
	if nplus > 0 {
		v.s = append(v.s, make([]T, nplus)...)
	}
	return
}

// Ensure grows the vector, if needed, so that index is
// a valid bit index.
func (v *V[T]) Ensure(index int) {
	if n := v.nbit(); index >= v.Len() {
		v.Grow(index/n + 1 - len(v.s))
	}
}

// Set sets a given bit.
// It reports whether the bit was previously unset.
func (v *V[T]) Set(index int) bool {
	n := v.nbit()
	i := index / n
	b := T(1) << (index & (n - 1))
	if v.s[i]&b != 0 {
		return false
	}
	v.s[i] |= b
	v.set++
	return true
}

// Unset unsets a given bit.
// It reports whether the bit was previously set.
func (v *V[T]) Unset(index int) bool {
	n := v.nbit()
	i := index / n
	b := T(1) << (index & (n - 1))
	if v.s[i]&b == 0 {
		return false
	}
	v.s[i] &^= b
	v.set--
	return true
}

// IsSet checks whether a given bit is set.
// Indices out of bounds are reported as unset.
func (v *V[T]) IsSet(index int) bool {
	n := v.nbit()
	i := index / n
	if index < 0 || i >= len(v.s) {
		return false
	}
	return v.s[i]&(T(1)<<(index&(n-1))) != 0
}

// Search attempts to locate an unset bit in the vector.
// It fails only when v.Rem() == 0.
func (v *V[T]) Search() (index int, ok bool) {
	if v.Rem() == 0 {
		return
	}
	for i, x := range v.s {
		if x == ^T(0) {
			continue
		}
		return i*v.nbit() + bits.TrailingZeros64(uint64(^x)), true
	}
	return
}

// Clear unsets every bit in the vector.
// The length of the vector is not changed.
func (v *V[T]) Clear() {
	if v.set == 0 {
		return
	}
	clear(v.s)
	v.set = 0
}

// Ones returns an iterator over the indices of set bits,
// in ascending order.
func (v *V[T]) Ones() iter.Seq[int] {
	return func(yield func(int) bool) {
		n := v.nbit()
		for i, x := range v.s {
			for x != 0 {
				b := bits.TrailingZeros64(uint64(x))
				if !yield(i*n + b) {
					return
				}
				x &^= T(1) << b
			}
		}
	}
}

// SearchRange attempts to locate n contiguous unset bits.
// It returns the index of the first bit in the range.
// It calls Search if n <= 1.
func (v *V[T]) SearchRange(n int) (index int, ok bool) {
	if n <= 1 {
		return v.Search()
	}
	if v.Rem() < n {
		return
	}
	nb := v.nbit()
	run := 0
	for i := 0; i < v.Len(); i++ {
		// Skip full Uints at once.
		if i%nb == 0 && v.s[i/nb] == ^T(0) {
			run = 0
			i += nb - 1
			continue
		}
		if v.IsSet(i) {
			run = 0
			continue
		}
		if run++; run == n {
			return i - n + 1, true
		}
	}
	return
}
