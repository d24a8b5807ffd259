// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"fmt"
	"math"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/linear"
	"github.com/gviegas/deferred/scene"
)

// shadowTile is a region of the shadow atlas.
type shadowTile struct {
	x, y, size int
}

// viewport returns the viewport of t.
func (t shadowTile) viewport() driver.Viewport {
	return driver.Viewport{
		X:      float32(t.x),
		Y:      float32(t.y),
		Width:  float32(t.size),
		Height: float32(t.size),
		Zfar:   1,
	}
}

// scissor returns the scissor rectangle of t.
func (t shadowTile) scissor() driver.Scissor {
	return driver.Scissor{X: t.x, Y: t.y, Width: t.size, Height: t.size}
}

// shadowCapacity returns how many tiles of size tile fit
// in an atlas of size atlas, bounded by MaxShadow.
func shadowCapacity(atlas, tile int) int {
	n := atlas / tile
	return min(n*n, MaxShadow)
}

// packShadows places n shadow maps in the atlas.
// Tiles are laid out in a square grid of ceil(sqrt(n))
// cells per side, row by row.
// If n exceeds the capacity of the atlas, OverflowFail
// causes ErrShadowOverflow and OverflowDrop packs only
// the first capacity tiles. The number of dropped shadows
// is returned along with the tiles.
func packShadows(n, atlas, tile int, policy Overflow) ([]shadowTile, int, error) {
	if n <= 0 {
		return nil, 0, nil
	}
	var drop int
	if c := shadowCapacity(atlas, tile); n > c {
		if policy == OverflowFail {
			return nil, 0, fmt.Errorf("%w: %d casters, capacity %d", ErrShadowOverflow, n, c)
		}
		drop = n - c
		n = c
	}
	grid := int(math.Ceil(math.Sqrt(float64(n))))
	size := min(tile, atlas/grid)
	tiles := make([]shadowTile, n)
	for i := range tiles {
		tiles[i] = shadowTile{x: i % grid * size, y: i / grid * size, size: size}
	}
	return tiles, drop, nil
}

// Shadow frustum parameters.
const (
	shadowDistance = 50
	shadowExtent   = 25
	shadowZnear    = 0.1
	shadowBias     = 0.005
)

// shadowVP computes the view-projection matrix of a light
// placed by t.
// Directional lights use an orthographic projection
// centered on the origin; spot lights use a perspective
// projection covering the outer cone.
func shadowVP(l *scene.Light, t *scene.Transform) (m linear.M4) {
	pos, dir := lightFrame(t)
	var eye, center, up linear.V3
	up = linear.V3{0, 1, 0}
	if math.Abs(float64(dir.Dot(&up))) > 0.99 {
		up = linear.V3{0, 0, 1}
	}
	var proj linear.M4
	switch l.Type {
	case scene.DirectLight:
		eye.Scale(-shadowDistance, &dir)
		proj.Ortho(shadowExtent, shadowExtent, shadowZnear, 2*shadowDistance)
	default:
		eye = pos
		zfar := l.Range
		if zfar <= shadowZnear {
			zfar = shadowDistance
		}
		fov := min(2*l.OuterAngle, math.Pi-1e-3)
		if fov <= 0 {
			fov = math.Pi / 2
		}
		proj.Perspective(fov, 1, shadowZnear, zfar)
	}
	center.Add(&eye, &dir)
	var view linear.M4
	view.LookAt(&center, &eye, &up)
	m.Mul(&proj, &view)
	return
}
