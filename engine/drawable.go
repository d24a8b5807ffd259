// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/gviegas/deferred/engine/internal/shader"
	"github.com/gviegas/deferred/linear"
	"github.com/gviegas/deferred/scene"
)

// drawable is a model gathered for the current frame.
type drawable struct {
	mesh       *mesh
	layout     shader.DrawableLayout
	castShadow bool
}

// newDrawable fills a drawable from the components of an
// entity. t may be nil.
func newDrawable(m *mesh, model *scene.Model, t *scene.Transform, mat *Material, id uint32) (d drawable) {
	d.mesh = m
	d.castShadow = model.CastShadow
	var world linear.M4
	if t != nil {
		world = t.World()
	} else {
		world.I()
	}
	var n linear.M3
	n.FromM4(&world)
	n.Invert(&n)
	n.Transpose(&n)
	d.layout.SetWorld(&world)
	d.layout.SetNormal(&n)
	c := mat.clamped()
	d.layout.SetColor(&c.BaseColor)
	d.layout.SetMetalRough(c.Metalness, c.Roughness)
	d.layout.SetID(id)
	return
}
