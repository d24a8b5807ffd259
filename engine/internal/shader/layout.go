// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package shader

import (
	"time"
	"unsafe"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/linear"
)

// FrameLayout is the layout of per-frame, global data.
// It is defined as follows:
//
//	[0:16]  | view-projection matrix
//	[16:32] | view matrix
//	[32:48] | projection matrix
//	[48]    | elapsed time in seconds
//	[49]    | normalized random value
//	[50]    | viewport's x
//	[51]    | viewport's y
//	[52]    | viewport's width
//	[53]    | viewport's height
//	[54]    | viewport's near plane
//	[55]    | viewport's far plane
//	[56]    | number of lights (int32)
//	[57]    | number of shadows (int32)
//	[58:64] | (unused)
type FrameLayout [64]float32

// SetVP sets the view-projection matrix.
func (l *FrameLayout) SetVP(m *linear.M4) { copyM4(l[:16], m) }

// SetV sets the view matrix.
func (l *FrameLayout) SetV(m *linear.M4) { copyM4(l[16:32], m) }

// SetP sets the projection matrix.
func (l *FrameLayout) SetP(m *linear.M4) { copyM4(l[32:48], m) }

// SetTime sets the elapsed time.
func (l *FrameLayout) SetTime(d time.Duration) { l[48] = float32(d.Seconds()) }

// SetRand sets the normalized random value.
func (l *FrameLayout) SetRand(rnd float32) { l[49] = rnd }

// SetBounds sets the viewport bounds.
func (l *FrameLayout) SetBounds(b *driver.Viewport) {
	l[50] = b.X
	l[51] = b.Y
	l[52] = b.Width
	l[53] = b.Height
	l[54] = b.Znear
	l[55] = b.Zfar
}

// SetCounts sets the number of lights and shadows.
func (l *FrameLayout) SetCounts(nlight, nshadow int) {
	l[56] = int32Bits(int32(nlight))
	l[57] = int32Bits(int32(nshadow))
}

// Counts returns the number of lights and shadows.
func (l *FrameLayout) Counts() (nlight, nshadow int) {
	return int(bitsInt32(l[56])), int(bitsInt32(l[57]))
}

// Bytes returns the memory of l.
func (l *FrameLayout) Bytes() []byte { return asBytes(l) }

func copyM4(dst []float32, m *linear.M4) {
	copy(dst, unsafe.Slice((*float32)(unsafe.Pointer(m)), 16))
}

func int32Bits(i int32) float32 { return *(*float32)(unsafe.Pointer(&i)) }

func bitsInt32(f float32) int32 { return *(*int32)(unsafe.Pointer(&f)) }

func asBytes[T any](p *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p))
}

// LightLayout is the layout of light data.
// It is defined as follows:
//
//	[0]     | shadow index, or -1 (int32)
//	[1]     | light type (int32)
//	[2]     | intensity
//	[3]     | range
//	[4:7]   | color
//	[7]     | angular scale
//	[8:11]  | position
//	[11]    | angular offset
//	[12:15] | direction
//	[15]    | (unused)
type LightLayout [16]float32

// Types of light.
const (
	DirectLight int32 = iota
	PointLight
	SpotLight
)

// SetShadow sets the index of the light's shadow in the
// shadow array. -1 means no shadow.
func (l *LightLayout) SetShadow(index int) { l[0] = int32Bits(int32(index)) }

// Shadow returns the shadow index.
func (l *LightLayout) Shadow() int { return int(bitsInt32(l[0])) }

// SetType sets the light type.
func (l *LightLayout) SetType(typ int32) { l[1] = int32Bits(typ) }

// Type returns the light type.
func (l *LightLayout) Type() int32 { return bitsInt32(l[1]) }

// SetIntensity sets the intensity.
func (l *LightLayout) SetIntensity(i float32) { l[2] = i }

// SetRange sets the range.
// Used for PointLight and SpotLight.
func (l *LightLayout) SetRange(rng float32) { l[3] = rng }

// SetColor sets the color.
func (l *LightLayout) SetColor(c *linear.V3) { l[4], l[5], l[6] = c[0], c[1], c[2] }

// SetAngScale sets the angular scale.
// Used for SpotLight.
func (l *LightLayout) SetAngScale(s float32) { l[7] = s }

// SetPosition sets the position.
// Used for PointLight and SpotLight.
func (l *LightLayout) SetPosition(p *linear.V3) { l[8], l[9], l[10] = p[0], p[1], p[2] }

// Position returns the position.
func (l *LightLayout) Position() linear.V3 { return linear.V3{l[8], l[9], l[10]} }

// SetAngOffset sets the angular offset.
// Used for SpotLight.
func (l *LightLayout) SetAngOffset(off float32) { l[11] = off }

// SetDirection sets the direction.
// Used for DirectLight and SpotLight.
func (l *LightLayout) SetDirection(d *linear.V3) { l[12], l[13], l[14] = d[0], d[1], d[2] }

// Direction returns the direction.
func (l *LightLayout) Direction() linear.V3 { return linear.V3{l[12], l[13], l[14]} }

// ShadowLayout is the layout of shadow data.
// It is defined as follows:
//
//	[0:16]  | light's view-projection matrix
//	[16:20] | atlas tile (x, y, width, height), normalized
//	[20]    | depth bias
//	[21:32] | (unused)
type ShadowLayout [32]float32

// SetVP sets the view-projection matrix.
func (l *ShadowLayout) SetVP(m *linear.M4) { copyM4(l[:16], m) }

// SetTile sets the atlas tile, normalized to [0, 1].
func (l *ShadowLayout) SetTile(x, y, width, height float32) {
	l[16], l[17], l[18], l[19] = x, y, width, height
}

// Tile returns the atlas tile.
func (l *ShadowLayout) Tile() (x, y, width, height float32) { return l[16], l[17], l[18], l[19] }

// SetBias sets the depth bias.
func (l *ShadowLayout) SetBias(b float32) { l[20] = b }

// Bytes returns the memory of l.
func (l *ShadowLayout) Bytes() []byte { return asBytes(l) }

// DrawableLayout is the layout of drawable data.
// It is defined as follows:
//
//	[0:16]  | world matrix
//	[16:32] | normal matrix
//	[32:36] | base color
//	[36]    | metalness
//	[37]    | roughness
//	[38]    | ID (uint32)
//	[39:64] | (unused)
type DrawableLayout [64]float32

// SetWorld sets the world matrix.
func (l *DrawableLayout) SetWorld(m *linear.M4) { copyM4(l[:16], m) }

// SetNormal sets the normal matrix.
// The matrix is stored with a column stride of four.
func (l *DrawableLayout) SetNormal(m *linear.M3) {
	for i := range m {
		copy(l[16+i*4:16+i*4+3], m[i][:])
		l[16+i*4+3] = 0
	}
	l[31] = 1
}

// SetColor sets the base color.
func (l *DrawableLayout) SetColor(c *linear.V4) { copy(l[32:36], c[:]) }

// SetMetalRough sets the metalness and roughness.
func (l *DrawableLayout) SetMetalRough(metal, rough float32) { l[36], l[37] = metal, rough }

// SetID sets the drawable's ID.
func (l *DrawableLayout) SetID(id uint32) { l[38] = *(*float32)(unsafe.Pointer(&id)) }

// ID returns the drawable's ID.
func (l *DrawableLayout) ID() uint32 { return *(*uint32)(unsafe.Pointer(&l[38])) }

// Bytes returns the memory of l.
func (l *DrawableLayout) Bytes() []byte { return asBytes(l) }
