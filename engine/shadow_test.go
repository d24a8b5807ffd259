// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/deferred/engine/internal/shader"
	"github.com/gviegas/deferred/linear"
	"github.com/gviegas/deferred/scene"
)

func TestShadowCapacity(t *testing.T) {
	for _, x := range [...]struct{ atlas, tile, want int }{
		{4096, 1024, 16},
		{4096, 512, MaxShadow},
		{1024, 1024, 1},
		{1000, 300, 9},
		{512, 256, 4},
	} {
		if n := shadowCapacity(x.atlas, x.tile); n != x.want {
			t.Fatalf("shadowCapacity(%d, %d):\nhave %d\nwant %d", x.atlas, x.tile, n, x.want)
		}
	}
}

func TestPackShadows(t *testing.T) {
	tiles, drop, err := packShadows(0, 4096, 1024, OverflowFail)
	if tiles != nil || drop != 0 || err != nil {
		t.Fatalf("packShadows(0):\nhave %v, %d, %v\nwant nil, 0, nil", tiles, drop, err)
	}

	tiles, _, err = packShadows(1, 4096, 1024, OverflowFail)
	require.NoError(t, err)
	assert.Equal(t, []shadowTile{{0, 0, 1024}}, tiles)

	tiles, _, err = packShadows(5, 4096, 1024, OverflowFail)
	require.NoError(t, err)
	assert.Equal(t, []shadowTile{
		{0, 0, 1024}, {1024, 0, 1024}, {2048, 0, 1024},
		{0, 1024, 1024}, {1024, 1024, 1024},
	}, tiles)

	tiles, _, err = packShadows(3, 1000, 500, OverflowFail)
	require.NoError(t, err)
	assert.Equal(t, []shadowTile{{0, 0, 500}, {500, 0, 500}, {0, 500, 500}}, tiles)
}

func TestPackShadowsBounds(t *testing.T) {
	for _, x := range [...]struct{ atlas, tile int }{
		{4096, 1024},
		{2048, 512},
		{1000, 300},
		{4096, 4096},
	} {
		for n := 1; n <= shadowCapacity(x.atlas, x.tile); n++ {
			tiles, drop, err := packShadows(n, x.atlas, x.tile, OverflowFail)
			require.NoError(t, err)
			require.Len(t, tiles, n)
			require.Zero(t, drop)
			for i, a := range tiles {
				if a.x < 0 || a.y < 0 || a.x+a.size > x.atlas || a.y+a.size > x.atlas {
					t.Fatalf("packShadows(%d, %d, %d): tile %d out of bounds: %+v", n, x.atlas, x.tile, i, a)
				}
				for _, b := range tiles[i+1:] {
					if a.x < b.x+b.size && b.x < a.x+a.size && a.y < b.y+b.size && b.y < a.y+a.size {
						t.Fatalf("packShadows(%d, %d, %d): overlap %+v %+v", n, x.atlas, x.tile, a, b)
					}
				}
			}
		}
	}
}

func TestPackShadowsOverflow(t *testing.T) {
	_, _, err := packShadows(5, 512, 256, OverflowFail)
	if !errors.Is(err, ErrShadowOverflow) {
		t.Fatalf("packShadows(OverflowFail):\nhave %v\nwant %v", err, ErrShadowOverflow)
	}
	tiles, drop, err := packShadows(5, 512, 256, OverflowDrop)
	require.NoError(t, err)
	assert.Len(t, tiles, 4)
	assert.Equal(t, 1, drop)
	assert.Equal(t, shadowTile{256, 256, 256}, tiles[3])
}

func TestTileViewport(t *testing.T) {
	tl := shadowTile{512, 1024, 256}
	vp := tl.viewport()
	if vp.X != 512 || vp.Y != 1024 || vp.Width != 256 || vp.Height != 256 || vp.Znear != 0 || vp.Zfar != 1 {
		t.Fatalf("shadowTile.viewport:\nhave %+v", vp)
	}
	sc := tl.scissor()
	if sc.X != 512 || sc.Y != 1024 || sc.Width != 256 || sc.Height != 256 {
		t.Fatalf("shadowTile.scissor:\nhave %+v", sc)
	}
}

func TestShadowVP(t *testing.T) {
	tf := scene.NewTransform()
	tf.Position = linear.V3{0, 5, 0}
	// Point down.
	tf.Rotation.Rotate(-math.Pi/2, &linear.V3{1, 0, 0})
	for _, l := range [...]scene.Light{
		{Type: scene.DirectLight},
		{Type: scene.SpotLight, Range: 20, OuterAngle: math.Pi / 4},
	} {
		m := shadowVP(&l, &tf)
		// A point below the light must land inside the
		// clip volume.
		var p, c linear.V4
		p = linear.V4{0, 0, 0, 1}
		c.Mul(&m, &p)
		for i := range 3 {
			v := c[i] / c[3]
			lo := float32(-1)
			if i == 2 {
				lo = 0
			}
			if v < lo-1e-4 || v > 1+1e-4 {
				t.Fatalf("shadowVP(%v): coordinate %d out of range: %v", l.Type, i, v)
			}
		}
	}
}

func TestLightLayout(t *testing.T) {
	tf := scene.NewTransform()
	tf.Position = linear.V3{1, 2, 3}
	l := scene.Light{
		Type:       scene.SpotLight,
		Color:      linear.V3{1, 0.5, 0.25},
		Intensity:  -1,
		Range:      10,
		InnerAngle: 0.2,
		OuterAngle: 0.4,
	}
	ll := lightLayout(&l, &tf, 3)
	assert.Equal(t, 3, ll.Shadow())
	assert.Equal(t, shader.SpotLight, ll.Type())
	assert.Equal(t, linear.V3{1, 2, 3}, ll.Position())
	dir := ll.Direction()
	assert.InDeltaSlice(t, []float32{0, 0, -1}, dir[:], 1e-6)
	if ll[2] != 0 {
		t.Fatalf("lightLayout: intensity\nhave %v\nwant 0", ll[2])
	}

	l.Type = scene.DirectLight
	ll = lightLayout(&l, nil, -1)
	assert.Equal(t, -1, ll.Shadow())
	assert.Equal(t, shader.DirectLight, ll.Type())
	assert.Equal(t, linear.V3{}, ll.Position())
}

func TestConeAngles(t *testing.T) {
	s, o := coneAngles(0.2, 0.4)
	cosi, coso := math.Cos(0.2), math.Cos(0.4)
	assert.InDelta(t, 1/(cosi-coso), float64(s), 1e-3)
	assert.InDelta(t, -coso/(cosi-coso), float64(o), 1e-3)
	// Full intensity inside the inner cone, none
	// outside the outer cone.
	assert.InDelta(t, 1, float64(s)*cosi+float64(o), 1e-3)
	assert.InDelta(t, 0, float64(s)*coso+float64(o), 1e-3)

	// Inverted and out of range angles are clamped.
	s, o = coneAngles(2, -1)
	if math.IsInf(float64(s), 0) || math.IsNaN(float64(s)) || math.IsNaN(float64(o)) {
		t.Fatalf("coneAngles(2, -1):\nhave %v, %v", s, o)
	}
}

func TestCastsShadow(t *testing.T) {
	for _, x := range [...]struct {
		l    scene.Light
		want bool
	}{
		{scene.Light{Type: scene.DirectLight, CastShadow: true}, true},
		{scene.Light{Type: scene.SpotLight, CastShadow: true}, true},
		{scene.Light{Type: scene.PointLight, CastShadow: true}, false},
		{scene.Light{Type: scene.SpotLight}, false},
	} {
		if b := castsShadow(&x.l); b != x.want {
			t.Fatalf("castsShadow(%+v):\nhave %t\nwant %t", x.l, b, x.want)
		}
	}
}
