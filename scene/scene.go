// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package scene provides a store of entities, each holding
// a set of components.
// Entities are referred to by generational handles: a
// handle stops resolving once its entity is deleted, even
// if the entity's slot is later reused.
package scene

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/google/uuid"
)

// ErrForeignHandle means that a handle was used with a
// Scene other than the one that created it.
var ErrForeignHandle = errors.New("scene: handle belongs to another scene")

const (
	pageShift = 8
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1
)

// slot is the storage of a single entity.
// A slot is live iff alive is set. gen is incremented
// every time the slot is reused.
type slot struct {
	alive  bool
	gen    uint32
	entity Entity
}

// Scene is a store of entities.
// Slots are allocated in fixed-size pages, so pointers
// returned by Handle.Get remain valid for as long as
// the entity lives.
// A Scene must not be mutated during iteration by other
// goroutines; it is not safe for concurrent use.
type Scene struct {
	id    uuid.UUID
	pages []*[pageSize]slot
	n     int
	live  int
	free  []int
}

// New creates an empty scene.
func New() *Scene { return &Scene{id: uuid.New()} }

// ID returns the unique identifier of s.
func (s *Scene) ID() uuid.UUID { return s.id }

// Len returns the number of live entities.
func (s *Scene) Len() int { return s.live }

// Cap returns the number of slots, live or not.
func (s *Scene) Cap() int { return s.n }

func (s *Scene) slot(index int) *slot { return &s.pages[index>>pageShift][index&pageMask] }

// Create creates a new entity.
// The most recently freed slot is reused, if any,
// with its generation incremented. Otherwise a new
// slot is appended at generation 0.
// Slots whose generation is exhausted are never
// reused.
func (s *Scene) Create() Handle {
	var index int
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
		sl := s.slot(index)
		sl.gen++
		sl.alive = true
	} else {
		index = s.n
		if index>>pageShift == len(s.pages) {
			s.pages = append(s.pages, new([pageSize]slot))
		}
		s.n++
		s.slot(index).alive = true
	}
	s.live++
	return Handle{s: s, index: index, gen: s.slot(index).gen}
}

// check panics if h was created by another Scene.
func (s *Scene) check(h Handle) {
	if h.s != nil && h.s != s {
		panic(ErrForeignHandle)
	}
}

// Delete deletes the entity identified by h.
// It does nothing if h is not valid.
// The entity's components are cleared and its slot
// is made available for reuse.
func (s *Scene) Delete(h Handle) {
	s.check(h)
	if s.get(h) == nil {
		return
	}
	sl := s.slot(h.index)
	sl.alive = false
	sl.entity.clear()
	if sl.gen != math.MaxUint32 {
		s.free = append(s.free, h.index)
	}
	s.live--
}

// Get returns the entity identified by h, or nil if
// h is not valid.
func (s *Scene) Get(h Handle) *Entity {
	s.check(h)
	return s.get(h)
}

func (s *Scene) get(h Handle) *Entity {
	if h.s == nil || h.index < 0 || h.index >= s.n {
		return nil
	}
	sl := s.slot(h.index)
	if !sl.alive || sl.gen != h.gen {
		return nil
	}
	return &sl.entity
}

// Adopt checks that h can be used with s.
// It returns h itself if h was created by s and
// ErrForeignHandle otherwise.
// The zero Handle is adopted by any Scene.
func (s *Scene) Adopt(h Handle) (Handle, error) {
	if h.s != nil && h.s != s {
		return Handle{}, fmt.Errorf("%w (%s)", ErrForeignHandle, h)
	}
	return h, nil
}

// Iter returns a cursor positioned before the first
// live entity of s.
func (s *Scene) Iter() *Iter { return &Iter{s: s, index: -1} }

// All returns an iterator over the live entities of s,
// in ascending slot order.
func (s *Scene) All() iter.Seq2[Handle, *Entity] {
	return func(yield func(Handle, *Entity) bool) {
		for it := s.Iter(); it.Next(); {
			if !yield(it.Handle(), it.Entity()) {
				return
			}
		}
	}
}

// Handle is a weak reference to an entity.
// The zero value is never valid.
type Handle struct {
	s     *Scene
	index int
	gen   uint32
}

// Get returns the entity identified by h, or nil if
// h is no longer valid.
func (h Handle) Get() *Entity {
	if h.s == nil {
		return nil
	}
	return h.s.get(h)
}

// Valid reports whether h identifies a live entity.
func (h Handle) Valid() bool { return h.Get() != nil }

// Scene returns the scene that created h.
func (h Handle) Scene() *Scene { return h.s }

// Index returns the slot index of h.
func (h Handle) Index() int { return h.index }

// Gen returns the generation of h.
func (h Handle) Gen() uint32 { return h.gen }

// String implements fmt.Stringer.
func (h Handle) String() string {
	if h.s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d.%d@%s", h.index, h.gen, h.s.id)
}

// Iter is a forward-only cursor over the live entities
// of a Scene.
// Entities deleted after the cursor has passed them do
// not disturb iteration. Entities created during
// iteration are visited if their slot lies ahead of the
// cursor.
type Iter struct {
	s     *Scene
	index int
}

// Next advances the cursor to the next live entity.
// It returns false when there are no more entities.
func (it *Iter) Next() bool {
	for it.index++; it.index < it.s.n; it.index++ {
		if it.s.slot(it.index).alive {
			return true
		}
	}
	it.index = it.s.n
	return false
}

// current returns the slot under the cursor, or nil if
// the cursor is not on a live entity.
func (it *Iter) current() *slot {
	if it.index < 0 || it.index >= it.s.n {
		return nil
	}
	if sl := it.s.slot(it.index); sl.alive {
		return sl
	}
	return nil
}

// Handle returns a handle to the current entity.
// It returns the zero Handle if Next was not called, if
// it returned false or if the entity has since been
// deleted.
func (it *Iter) Handle() Handle {
	sl := it.current()
	if sl == nil {
		return Handle{}
	}
	return Handle{s: it.s, index: it.index, gen: sl.gen}
}

// Entity returns the current entity, or nil under the
// same conditions for which Handle returns the zero
// Handle.
func (it *Iter) Entity() *Entity {
	if sl := it.current(); sl != nil {
		return &sl.entity
	}
	return nil
}
