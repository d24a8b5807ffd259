// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/gviegas/deferred/internal/bitvec"
)

// dataEntry is what a dataMap stores.
type dataEntry[T any] struct {
	data T
	id   int
}

// dataMap stores data of type D with identifiers
// of type I.
// Data is kept packed; removal moves the last element
// into the hole.
type dataMap[I ~int, D any] struct {
	ids   []int
	idMap bitvec.V[uint32]
	data  []dataEntry[D]
}

// insert inserts data into m.
// It returns an I value that identifies data in m.
func (m *dataMap[I, D]) insert(data D) I {
	if m.idMap.Rem() == 0 {
		n := max(1, len(m.ids)/32)
		m.idMap.Grow(n)
		m.ids = append(m.ids, make([]int, n*32)...)
	}
	idx, ok := m.idMap.Search()
	if !ok {
		panic("unexpected failure from bitvec.V.Search")
	}
	m.idMap.Set(idx)
	m.ids[idx] = len(m.data)
	m.data = append(m.data, dataEntry[D]{data, idx})
	return I(idx)
}

// remove removes the data identified by id.
// It returns the removed data.
// id must belong to m.
func (m *dataMap[I, D]) remove(id I) D {
	d := m.ids[id]
	data := m.data[d]
	last := len(m.data) - 1
	if d < last {
		m.ids[m.data[last].id] = d
		m.data[d] = m.data[last]
	}
	m.ids[id] = -1
	m.idMap.Unset(int(id))
	m.data[last] = dataEntry[D]{}
	m.data = m.data[:last]
	return data.data
}

// contains reports whether id belongs to m.
func (m *dataMap[I, D]) contains(id I) bool { return m.idMap.IsSet(int(id)) }

// get returns a pointer to the data identified by id.
// id must belong to m.
func (m *dataMap[I, D]) get(id I) *D { return &m.data[m.ids[id]].data }

// entries returns the dataEntry slice of m.
// This slice aliases m's entries and as such must not
// be mutated by the caller.
func (m *dataMap[I, D]) entries() []dataEntry[D] { return m.data }

// len is equivalent to len(m.entries()).
func (m *dataMap[_, _]) len() int { return len(m.data) }
