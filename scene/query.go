// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"iter"
)

// Queries scan every live entity; no index is kept.

// FindWithAll returns the first entity that has a
// component of every given kind.
// The returned handle is invalid if none matches.
func (s *Scene) FindWithAll(k ...Kind) Handle {
	for h, e := range s.All() {
		if e.HasAll(k...) {
			return h
		}
	}
	return Handle{}
}

// FindAllWithAll returns every entity that has a
// component of every given kind.
func (s *Scene) FindAllWithAll(k ...Kind) (hs []Handle) {
	for h, e := range s.All() {
		if e.HasAll(k...) {
			hs = append(hs, h)
		}
	}
	return
}

// FindAllWithAny returns every entity that has a
// component of any of the given kinds.
func (s *Scene) FindAllWithAny(k ...Kind) (hs []Handle) {
	for h, e := range s.All() {
		if e.HasAny(k...) {
			hs = append(hs, h)
		}
	}
	return
}

// FindWithTag returns the first entity whose Tag is tag.
// The returned handle is invalid if none matches.
func (s *Scene) FindWithTag(tag string) Handle {
	for h, e := range s.All() {
		if t := Get[Tag](e); t != nil && string(*t) == tag {
			return h
		}
	}
	return Handle{}
}

// FindAllWithTag returns every entity whose Tag is tag.
func (s *Scene) FindAllWithTag(tag string) (hs []Handle) {
	for h, e := range s.All() {
		if t := Get[Tag](e); t != nil && string(*t) == tag {
			hs = append(hs, h)
		}
	}
	return
}

// First returns the first entity that has a component
// of type T, along with the component.
// It returns an invalid handle and nil if none has.
func First[T Component](s *Scene) (Handle, *T) {
	k := KindOf[T]()
	for h, e := range s.All() {
		if e.Has(k) {
			return h, Get[T](e)
		}
	}
	return Handle{}, nil
}

// Each returns an iterator over the entities that have
// a component of type T, yielding the component.
func Each[T Component](s *Scene) iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		k := KindOf[T]()
		for h, e := range s.All() {
			if e.Has(k) && !yield(h, Get[T](e)) {
				return
			}
		}
	}
}
