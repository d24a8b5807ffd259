// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"iter"
	"reflect"
	"sync"

	"github.com/gviegas/deferred/internal/bitvec"
)

// Component is the interface that component types
// implement.
// Components are plain data. They must not refer to the
// entity that holds them; relationships between entities
// are expressed with handles.
type Component interface {
	// Name returns a descriptive name for the component.
	Name() string
}

// Kind identifies a component type.
type Kind int

var registry struct {
	sync.RWMutex
	kinds map[reflect.Type]Kind
	types []reflect.Type
	// Converts a stored *T into a Component.
	comps []func(any) Component
}

// KindOf returns the Kind of T.
// Kinds are assigned densely, in order of first use.
func KindOf[T Component]() Kind {
	t := reflect.TypeFor[T]()
	registry.RLock()
	k, ok := registry.kinds[t]
	registry.RUnlock()
	if ok {
		return k
	}
	registry.Lock()
	defer registry.Unlock()
	if k, ok := registry.kinds[t]; ok {
		return k
	}
	if registry.kinds == nil {
		registry.kinds = make(map[reflect.Type]Kind)
	}
	k = Kind(len(registry.types))
	registry.kinds[t] = k
	registry.types = append(registry.types, t)
	registry.comps = append(registry.comps, func(p any) Component {
		pt := p.(*T)
		if c, ok := any(pt).(Component); ok {
			return c
		}
		return *pt
	})
	return k
}

func component(k int, p any) Component {
	registry.RLock()
	conv := registry.comps[k]
	registry.RUnlock()
	return conv(p)
}

// String returns the name of the type of k.
func (k Kind) String() string {
	registry.RLock()
	defer registry.RUnlock()
	if k < 0 || int(k) >= len(registry.types) {
		return "invalid"
	}
	return registry.types[k].String()
}

// Entity is a set of components, at most one of each
// Kind.
// The entity owns a copy of every component set on it.
type Entity struct {
	comps []any
	mask  bitvec.V[uint64]
}

func (e *Entity) clear() {
	clear(e.comps)
	e.mask.Clear()
}

// Has reports whether e has a component of kind k.
func (e *Entity) Has(k Kind) bool { return e.mask.IsSet(int(k)) }

// HasAll reports whether e has a component of every
// given kind.
func (e *Entity) HasAll(k ...Kind) bool {
	for _, k := range k {
		if !e.mask.IsSet(int(k)) {
			return false
		}
	}
	return true
}

// HasAny reports whether e has a component of any of
// the given kinds.
func (e *Entity) HasAny(k ...Kind) bool {
	for _, k := range k {
		if e.mask.IsSet(int(k)) {
			return true
		}
	}
	return false
}

// Len returns the number of components in e.
func (e *Entity) Len() int { return e.mask.Count() }

// Components returns an iterator over the components
// of e, in Kind order.
// Each value refers to the stored component: a *T if
// *T implements Component, or else the stored T itself
// (which is then a pointer or reference type).
func (e *Entity) Components() iter.Seq[Component] {
	return func(yield func(Component) bool) {
		for k := range e.mask.Ones() {
			if !yield(component(k, e.comps[k])) {
				return
			}
		}
	}
}

// Set stores a copy of v in e, replacing any component
// of the same type.
// Pointers previously returned by Get[T] observe the
// new value.
func Set[T Component](e *Entity, v T) {
	k := int(KindOf[T]())
	if p, ok := at(e, k).(*T); ok {
		*p = v
		return
	}
	if k >= len(e.comps) {
		e.comps = append(e.comps, make([]any, k+1-len(e.comps))...)
	}
	p := new(T)
	*p = v
	e.comps[k] = p
	e.mask.Ensure(k)
	e.mask.Set(k)
}

func at(e *Entity, k int) any {
	if k >= len(e.comps) {
		return nil
	}
	return e.comps[k]
}

// Get returns a pointer to the component of type T, or
// nil if e has none.
func Get[T Component](e *Entity) *T {
	p, _ := at(e, int(KindOf[T]())).(*T)
	return p
}

// Remove removes the component of type T from e.
// It does nothing if e has none.
func Remove[T Component](e *Entity) {
	k := int(KindOf[T]())
	if at(e, k) == nil {
		return
	}
	e.comps[k] = nil
	e.mask.Unset(k)
}

// Has reports whether e has a component of type T.
func Has[T Component](e *Entity) bool { return e.Has(KindOf[T]()) }
