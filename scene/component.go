// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package scene

import (
	"github.com/gviegas/deferred/linear"
)

// Transform places an entity in world space.
// The zero value is not an identity transform; use
// NewTransform.
type Transform struct {
	Position linear.V3
	Rotation linear.Q
	Scale    linear.V3
}

// NewTransform returns an identity transform.
func NewTransform() Transform {
	t := Transform{Scale: linear.V3{1, 1, 1}}
	t.Rotation.I()
	return t
}

// Name implements Component.
func (Transform) Name() string { return "Transform" }

// World returns the world matrix (translation ⋅ rotation
// ⋅ scale).
func (t *Transform) World() (m linear.M4) {
	var r, s linear.M4
	m.Translate(&t.Position)
	r.Rotate(&t.Rotation)
	s.Scale(&t.Scale)
	m.Mul(&m, &r)
	m.Mul(&m, &s)
	return
}

// Model makes an entity drawable.
// Mesh and Material identify resources that were made
// known to the renderer beforehand.
type Model struct {
	Mesh       string
	Material   string
	CastShadow bool
}

// Name implements Component.
func (Model) Name() string { return "Model" }

// Camera defines a perspective projection.
// The view is given by the Transform of the same entity.
type Camera struct {
	// Vertical field of view, in radians.
	YFov  float32
	Znear float32
	Zfar  float32
}

// Name implements Component.
func (Camera) Name() string { return "Camera" }

// Proj returns the projection matrix for a given aspect
// ratio.
func (c *Camera) Proj(aspect float32) (m linear.M4) {
	m.Perspective(c.YFov, aspect, c.Znear, c.Zfar)
	return
}

// View returns the view matrix for a camera placed by t.
func (c *Camera) View(t *Transform) (m linear.M4) {
	w := t.World()
	m.Invert(&w)
	return
}

// LightType is the type of a light source.
type LightType int

// Light types.
const (
	DirectLight LightType = iota
	PointLight
	SpotLight
)

// String implements fmt.Stringer.
func (t LightType) String() string {
	switch t {
	case DirectLight:
		return "directional"
	case PointLight:
		return "point"
	case SpotLight:
		return "spot"
	}
	return "invalid"
}

// Light is a light source.
// Its position and direction are given by the Transform
// of the same entity (lights point down -Z).
type Light struct {
	Type      LightType
	Color     linear.V3
	Intensity float32
	// Range is ignored for directional lights.
	Range float32
	// Angles are in radians and only used by spot lights.
	InnerAngle float32
	OuterAngle float32
	CastShadow bool
}

// Name implements Component.
func (Light) Name() string { return "Light" }

// Tag labels an entity.
type Tag string

// Name implements Component.
func (Tag) Name() string { return "Tag" }
