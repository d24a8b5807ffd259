// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/gviegas/deferred/linear"
)

// Material describes the surface of a drawable using the
// metallic-roughness model.
type Material struct {
	BaseColor linear.V4
	Metalness float32
	Roughness float32
}

// DefaultMaterial is used by models whose material is
// unknown.
var DefaultMaterial = Material{
	BaseColor: linear.V4{0.8, 0.8, 0.8, 1},
	Metalness: 0,
	Roughness: 0.5,
}

// clamped returns a copy of m with every factor clamped
// to [0, 1].
func (m Material) clamped() Material {
	for i := range m.BaseColor {
		m.BaseColor[i] = max(0, min(1, m.BaseColor[i]))
	}
	m.Metalness = max(0, min(1, m.Metalness))
	m.Roughness = max(0, min(1, m.Roughness))
	return m
}
