// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"math"

	"github.com/gviegas/deferred/engine/internal/shader"
	"github.com/gviegas/deferred/linear"
	"github.com/gviegas/deferred/scene"
)

// lightFrame returns the position and direction of a
// light placed by t. Lights point down -Z.
// A nil t places the light at the origin.
func lightFrame(t *scene.Transform) (pos, dir linear.V3) {
	if t == nil {
		return linear.V3{}, linear.V3{0, 0, -1}
	}
	var r linear.M4
	r.Rotate(&t.Rotation)
	for i := range dir {
		dir[i] = -r[2][i]
	}
	dir.Norm(&dir)
	return t.Position, dir
}

// coneAngles computes the angular scale and offset of a
// spot light.
// Cone angles that exceed math.Pi/2, or that are less
// than zero, are clamped. The inner angle is adjusted
// such that it is less than the outer angle.
func coneAngles(inner, outer float32) (scale, offset float32) {
	var (
		i    = max(0, min(float64(inner), math.Pi/2-1e-6))
		o    = max(i+1e-6, min(float64(outer), math.Pi/2))
		cosi = math.Cos(i)
		coso = math.Cos(o)
		s    = 1 / (cosi - coso)
	)
	return float32(s), float32(s * -coso)
}

// lightLayout fills a shader.LightLayout from a light
// component. shadow is the index of the light's shadow,
// or -1.
func lightLayout(l *scene.Light, t *scene.Transform, shadow int) (ll shader.LightLayout) {
	pos, dir := lightFrame(t)
	ll.SetShadow(shadow)
	ll.SetIntensity(max(0, l.Intensity))
	ll.SetColor(&l.Color)
	switch l.Type {
	case scene.DirectLight:
		ll.SetType(shader.DirectLight)
		ll.SetDirection(&dir)
	case scene.PointLight:
		ll.SetType(shader.PointLight)
		ll.SetRange(l.Range)
		ll.SetPosition(&pos)
	case scene.SpotLight:
		ll.SetType(shader.SpotLight)
		ll.SetRange(l.Range)
		ll.SetPosition(&pos)
		ll.SetDirection(&dir)
		s, o := coneAngles(l.InnerAngle, l.OuterAngle)
		ll.SetAngScale(s)
		ll.SetAngOffset(o)
	}
	return
}

// castsShadow reports whether l needs a shadow map.
// Point lights would need six maps and are not
// supported.
func castsShadow(l *scene.Light) bool {
	return l.CastShadow && l.Type != scene.PointLight
}
