// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/deferred/linear"
)

func TestKindOf(t *testing.T) {
	k := KindOf[Transform]()
	if k2 := KindOf[Transform](); k2 != k {
		t.Fatalf("KindOf[Transform]:\nhave %d\nwant %d", k2, k)
	}
	if KindOf[Light]() == k {
		t.Fatal("KindOf: distinct types should have distinct kinds")
	}
	assert.Equal(t, "scene.Transform", k.String())
	assert.Equal(t, "invalid", Kind(-1).String())
}

func TestSetGet(t *testing.T) {
	s := New()
	e := s.Create().Get()
	assert.Nil(t, Get[Camera](e))
	assert.False(t, Has[Camera](e))

	Set(e, Camera{YFov: 1, Znear: 0.1, Zfar: 100})
	c := Get[Camera](e)
	require.NotNil(t, c)
	Set(e, Camera{YFov: 2, Znear: 0.1, Zfar: 100})
	if e.Len() != 1 {
		t.Fatalf("Entity.Len:\nhave %d\nwant 1", e.Len())
	}
	if c.YFov != 2 || Get[Camera](e).YFov != 2 {
		t.Fatal("Set: second value should replace the first")
	}

	Remove[Camera](e)
	assert.Nil(t, Get[Camera](e))
	assert.Equal(t, 0, e.Len())
	// Removing an absent component does nothing.
	Remove[Camera](e)
	Remove[Light](e)
}

func TestValueOwnership(t *testing.T) {
	e := New().Create().Get()
	m := Model{Mesh: "cube"}
	Set(e, m)
	m.Mesh = "sphere"
	assert.Equal(t, "cube", Get[Model](e).Mesh)
}

func TestHasAllAny(t *testing.T) {
	e := New().Create().Get()
	Set(e, NewTransform())
	Set(e, Tag("player"))
	kt, kg, kl := KindOf[Transform](), KindOf[Tag](), KindOf[Light]()
	assert.True(t, e.HasAll(kt, kg))
	assert.False(t, e.HasAll(kt, kl))
	assert.True(t, e.HasAny(kl, kg))
	assert.False(t, e.HasAny(kl))
	assert.True(t, e.HasAll())
	assert.False(t, e.HasAny())

	var names []string
	for c := range e.Components() {
		names = append(names, c.Name())
	}
	slices.Sort(names)
	assert.Equal(t, []string{"Tag", "Transform"}, names)
}

type health struct{ points int }

func (*health) Name() string { return "health" }

func TestPointerComponent(t *testing.T) {
	e := New().Create().Get()
	hp := &health{10}
	Set(e, hp)
	Set(e, Tag("enemy"))
	require.True(t, Has[*health](e))
	if p := Get[*health](e); p == nil || *p != hp {
		t.Fatalf("Get[*health]:\nhave %v\nwant %v", p, hp)
	}

	var names []string
	for c := range e.Components() {
		names = append(names, c.Name())
		if h, ok := c.(*health); ok {
			h.points--
		}
	}
	slices.Sort(names)
	assert.Equal(t, []string{"Tag", "health"}, names)
	assert.Equal(t, 9, hp.points)
}

func TestComponentsRefer(t *testing.T) {
	e := New().Create().Get()
	Set(e, Camera{YFov: 1})
	for c := range e.Components() {
		c.(*Camera).YFov = 2
	}
	if y := Get[Camera](e).YFov; y != 2 {
		t.Fatalf("Entity.Components:\nhave YFov %v\nwant 2", y)
	}
}

func TestDeleteClearsComponents(t *testing.T) {
	s := New()
	h := s.Create()
	Set(h.Get(), Light{Type: PointLight})
	s.Delete(h)
	e := s.Create().Get()
	assert.Equal(t, 0, e.Len())
	assert.Nil(t, Get[Light](e))
}

func TestQueries(t *testing.T) {
	s := New()
	cam := s.Create()
	Set(cam.Get(), NewTransform())
	Set(cam.Get(), Camera{YFov: 1})
	var lights []Handle
	for range 3 {
		h := s.Create()
		Set(h.Get(), NewTransform())
		Set(h.Get(), Light{Type: DirectLight})
		lights = append(lights, h)
	}
	tagged := s.Create()
	Set(tagged.Get(), Tag("sun"))

	kt, kc, kl := KindOf[Transform](), KindOf[Camera](), KindOf[Light]()
	assert.Equal(t, cam, s.FindWithAll(kt, kc))
	assert.Equal(t, lights, s.FindAllWithAll(kt, kl))
	assert.Len(t, s.FindAllWithAny(kc, kl), 4)
	assert.Equal(t, tagged, s.FindWithTag("sun"))
	assert.False(t, s.FindWithTag("moon").Valid())
	assert.False(t, s.FindWithAll(kc, kl).Valid())

	h, c := First[Camera](s)
	assert.Equal(t, cam, h)
	assert.Equal(t, float32(1), c.YFov)

	s.Delete(lights[1])
	var got []Handle
	for h, l := range Each[Light](s) {
		assert.Equal(t, DirectLight, l.Type)
		got = append(got, h)
	}
	assert.Equal(t, []Handle{lights[0], lights[2]}, got)
}

func TestTransformWorld(t *testing.T) {
	tf := NewTransform()
	tf.Position = linear.V3{1, 2, 3}
	tf.Scale = linear.V3{2, 2, 2}
	w := tf.World()
	if w[3] != (linear.V4{1, 2, 3, 1}) || w[0][0] != 2 || w[1][1] != 2 || w[2][2] != 2 {
		t.Fatalf("Transform.World:\nhave %v", w)
	}

	var cam Camera
	v := cam.View(&tf)
	var p linear.M4
	p.Mul(&v, &w)
	var id linear.M4
	id.I()
	for i := range p {
		for j := range p[i] {
			if d := p[i][j] - id[i][j]; d > 1e-5 || d < -1e-5 {
				t.Fatalf("Camera.View ⋅ Transform.World:\nhave %v\nwant %v", p, id)
			}
		}
	}
}
