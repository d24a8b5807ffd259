// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/linear"
)

// MeshData is the vertex and index data of a mesh.
// Normals and UVs must have the same length as Positions.
// Indices are optional.
type MeshData struct {
	Positions []linear.V3
	Normals   []linear.V3
	UVs       [][2]float32
	Indices   []uint32
}

func (d *MeshData) validate() error {
	n := len(d.Positions)
	switch {
	case n == 0:
		return fmt.Errorf("%w: no positions", ErrMeshData)
	case len(d.Normals) != n || len(d.UVs) != n:
		return fmt.Errorf("%w: %d positions, %d normals, %d UVs", ErrMeshData, n, len(d.Normals), len(d.UVs))
	}
	for _, i := range d.Indices {
		if int(i) >= n {
			return fmt.Errorf("%w: index %d out of bounds", ErrMeshData, i)
		}
	}
	return nil
}

// MeshID identifies a mesh of a Renderer.
type MeshID int

// mesh is a mesh stored in a meshStorage.
// Every stream lives in a single span.
type mesh struct {
	name string
	span
	// Offsets relative to the start of the span.
	off    [3]int64
	idxOff int64
	count  int
	// Number of indices; zero for non-indexed meshes.
	nidx int
}

// meshMap is a dataMap for meshes.
type meshMap struct {
	dataMap[MeshID, mesh]
	names map[string]MeshID
}

func (m *meshMap) lookup(name string) (*mesh, bool) {
	id, ok := m.names[name]
	if !ok {
		return nil, false
	}
	return m.get(id), true
}

// layoutMesh computes the offsets of d's streams.
// It returns the total size in bytes.
func layoutMesh(d *MeshData) (m mesh, size int) {
	n := len(d.Positions)
	m.count = n
	m.nidx = len(d.Indices)
	m.off = [3]int64{0, int64(n) * 12, int64(n) * 24}
	m.idxOff = int64(n) * 32
	return m, int(m.idxOff) + m.nidx*4
}

// encode writes the streams of d into a new byte slice
// laid out as described by m.
func encode(d *MeshData, m *mesh, size int) []byte {
	b := make([]byte, size)
	le := binary.LittleEndian
	put := func(off int64, fs ...float32) int64 {
		for _, f := range fs {
			le.PutUint32(b[off:], math.Float32bits(f))
			off += 4
		}
		return off
	}
	off := m.off[0]
	for _, p := range d.Positions {
		off = put(off, p[:]...)
	}
	for _, p := range d.Normals {
		off = put(off, p[:]...)
	}
	for _, p := range d.UVs {
		off = put(off, p[:]...)
	}
	for _, i := range d.Indices {
		le.PutUint32(b[off:], i)
		off += 4
	}
	return b
}

// newMesh copies d to st.
func newMesh(st *meshStorage, name string, d *MeshData) (mesh, error) {
	if err := d.validate(); err != nil {
		return mesh{}, err
	}
	m, size := layoutMesh(d)
	m.name = name
	s, err := st.store(encode(d, &m, size))
	if err != nil {
		return mesh{}, err
	}
	m.span = s
	return m, nil
}

// draw sets the vertex/index buffers and draws m.
// buf is the buffer of the meshStorage holding m.
// If positionOnly is set, only the position stream is
// bound.
func (m *mesh) draw(cb driver.CmdBuffer, buf driver.Buffer, positionOnly bool) {
	base := m.byteStart()
	if positionOnly {
		cb.SetVertexBuf(0, []driver.Buffer{buf}, []int64{base + m.off[0]})
	} else {
		off := []int64{base + m.off[0], base + m.off[1], base + m.off[2]}
		cb.SetVertexBuf(0, []driver.Buffer{buf, buf, buf}, off)
	}
	if m.nidx > 0 {
		cb.SetIndexBuf(driver.Index32, buf, base+m.idxOff)
		cb.DrawIndexed(m.nidx, 1, 0, 0, 0)
	} else {
		cb.Draw(m.count, 1, 0, 0)
	}
}

// Cube returns an axis-aligned cube of side 2 centered
// on the origin, with one quad per face.
func Cube() *MeshData {
	var d MeshData
	faces := [6]struct{ n, u, v linear.V3 }{
		{linear.V3{1, 0, 0}, linear.V3{0, 0, -1}, linear.V3{0, 1, 0}},
		{linear.V3{-1, 0, 0}, linear.V3{0, 0, 1}, linear.V3{0, 1, 0}},
		{linear.V3{0, 1, 0}, linear.V3{1, 0, 0}, linear.V3{0, 0, -1}},
		{linear.V3{0, -1, 0}, linear.V3{1, 0, 0}, linear.V3{0, 0, 1}},
		{linear.V3{0, 0, 1}, linear.V3{1, 0, 0}, linear.V3{0, 1, 0}},
		{linear.V3{0, 0, -1}, linear.V3{-1, 0, 0}, linear.V3{0, 1, 0}},
	}
	for _, f := range faces {
		base := uint32(len(d.Positions))
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			var p, u, v linear.V3
			u.Scale(c[0], &f.u)
			v.Scale(c[1], &f.v)
			p.Add(&f.n, &u)
			p.Add(&p, &v)
			d.Positions = append(d.Positions, p)
			d.Normals = append(d.Normals, f.n)
			d.UVs = append(d.UVs, [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2})
		}
		d.Indices = append(d.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return &d
}

// Plane returns a square on the XZ plane with side
// 2*extent, facing +Y. It is not indexed.
func Plane(extent float32) *MeshData {
	e := extent
	return &MeshData{
		Positions: []linear.V3{{-e, 0, e}, {e, 0, e}, {e, 0, -e}, {-e, 0, e}, {e, 0, -e}, {-e, 0, -e}},
		Normals:   []linear.V3{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}},
		UVs:       [][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 1}, {1, 0}, {0, 0}},
	}
}
