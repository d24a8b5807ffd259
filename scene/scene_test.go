// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s := New()
	if s.Len() != 0 || s.Cap() != 0 {
		t.Fatalf("New: Len/Cap\nhave %d/%d\nwant 0/0", s.Len(), s.Cap())
	}
	if New().ID() == s.ID() {
		t.Fatal("New: ID should be unique")
	}
	var h Handle
	if h.Valid() || h.Get() != nil || s.Get(h) != nil {
		t.Fatal("Handle{}: zero handle should not be valid")
	}
}

func TestHandleGeneration(t *testing.T) {
	s := New()
	a := s.Create()
	if a.Index() != 0 || a.Gen() != 0 {
		t.Fatalf("Scene.Create: index/gen\nhave %d/%d\nwant 0/0", a.Index(), a.Gen())
	}
	require.True(t, a.Valid())
	s.Delete(a)
	if a.Valid() {
		t.Fatal("Handle.Valid: deleted entity should not be valid")
	}

	b := s.Create()
	if b.Index() != 0 || b.Gen() != 1 {
		t.Fatalf("Scene.Create: index/gen\nhave %d/%d\nwant 0/1", b.Index(), b.Gen())
	}
	assert.Nil(t, a.Get(), "stale handle must not resolve to the new occupant")
	assert.NotNil(t, b.Get())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Cap())

	// Deleting through a stale handle is a no-op.
	s.Delete(a)
	assert.True(t, b.Valid())
	assert.Equal(t, 1, s.Len())
}

func TestFreeListLIFO(t *testing.T) {
	s := New()
	var hs [4]Handle
	for i := range hs {
		hs[i] = s.Create()
	}
	s.Delete(hs[1])
	s.Delete(hs[3])
	if h := s.Create(); h.Index() != 3 {
		t.Fatalf("Scene.Create: index\nhave %d\nwant 3", h.Index())
	}
	if h := s.Create(); h.Index() != 1 {
		t.Fatalf("Scene.Create: index\nhave %d\nwant 1", h.Index())
	}
	if h := s.Create(); h.Index() != 4 {
		t.Fatalf("Scene.Create: index\nhave %d\nwant 4", h.Index())
	}
}

func TestManyEntities(t *testing.T) {
	s := New()
	const n = pageSize*3 + 7
	hs := make([]Handle, n)
	for i := range hs {
		hs[i] = s.Create()
		Set(hs[i].Get(), Tag("x"))
	}
	first := hs[0].Get()
	for range pageSize {
		s.Create()
	}
	// Pages do not move when the scene grows.
	assert.Same(t, first, hs[0].Get())
	for i := 0; i < n; i += 2 {
		s.Delete(hs[i])
	}
	for i, h := range hs {
		if h.Valid() != (i%2 == 1) {
			t.Fatalf("Handle.Valid(%d): have %t", i, h.Valid())
		}
	}
	assert.Len(t, s.FindAllWithTag("x"), n/2)
}

func TestIterSkipsDeleted(t *testing.T) {
	s := New()
	var hs [5]Handle
	for i := range hs {
		hs[i] = s.Create()
	}
	s.Delete(hs[2])
	var idx []int
	for it := s.Iter(); it.Next(); {
		idx = append(idx, it.Handle().Index())
		assert.Same(t, it.Entity(), it.Handle().Get())
	}
	assert.Equal(t, []int{0, 1, 3, 4}, idx)

	idx = idx[:0]
	for h := range s.All() {
		idx = append(idx, h.Index())
	}
	assert.Equal(t, []int{0, 1, 3, 4}, idx)
}

func TestIterFirstDeleted(t *testing.T) {
	s := New()
	a := s.Create()
	b := s.Create()
	s.Delete(a)
	it := s.Iter()
	require.True(t, it.Next())
	assert.Equal(t, b, it.Handle())
	assert.False(t, it.Next())
	assert.False(t, it.Next())

	s.Delete(b)
	assert.False(t, s.Iter().Next())
}

func TestIterOffEntity(t *testing.T) {
	s := New()
	h := s.Create()
	it := s.Iter()
	assert.Equal(t, Handle{}, it.Handle())
	assert.Nil(t, it.Entity())

	require.True(t, it.Next())
	s.Delete(h)
	assert.False(t, it.Handle().Valid())
	assert.Nil(t, it.Entity())

	assert.False(t, it.Next())
	assert.Equal(t, Handle{}, it.Handle())
	assert.Nil(t, it.Entity())
}

func TestGenerationExhausted(t *testing.T) {
	s := New()
	stale := s.Create()
	s.slot(0).gen = math.MaxUint32
	last := Handle{s: s, index: 0, gen: math.MaxUint32}
	require.True(t, last.Valid())
	s.Delete(last)

	h := s.Create()
	if h.Index() != 1 {
		t.Fatalf("Scene.Create: exhausted slot reused\nhave index %d\nwant 1", h.Index())
	}
	assert.False(t, last.Valid())
	assert.False(t, stale.Valid())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.Cap())
}

func TestIterDeleteDuring(t *testing.T) {
	s := New()
	for range 6 {
		s.Create()
	}
	n := 0
	for h := range s.All() {
		s.Delete(h)
		n++
	}
	assert.Equal(t, 6, n)
	assert.Equal(t, 0, s.Len())
}

func TestForeignHandle(t *testing.T) {
	s1, s2 := New(), New()
	h := s1.Create()
	assert.PanicsWithValue(t, ErrForeignHandle, func() { s2.Delete(h) })
	assert.PanicsWithValue(t, ErrForeignHandle, func() { s2.Get(h) })
	_, err := s2.Adopt(h)
	assert.ErrorIs(t, err, ErrForeignHandle)
	h2, err := s1.Adopt(h)
	require.NoError(t, err)
	assert.Equal(t, h, h2)
	assert.True(t, h.Valid())
}
