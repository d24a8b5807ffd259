// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Descriptor bindings of the deferred renderer.
//
// Sets are organized as follows:
//
//	shadow/depth      | 0: shadow, 1: drawable
//	deferred/geometry | 0: frame, 1: drawable
//	deferred/lighting | 0: frame, 1: light, 2: G-buffer
//	cull              | 0: frame, 1: light, 2: output
//
// Constant data is aligned to BlockSize bytes.

package shader

import (
	"unsafe"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/engine/pass"
)

// Limits of the uniform arrays.
const (
	MaxLight  = 64
	MaxShadow = 16
)

// Set numbers.
const (
	FrameSet    = 0
	ShadowSet   = 0
	DrawableSet = 1
	LightSet    = 1
	GBufferSet  = 2
	OutputSet   = 2
)

// Binding numbers.
const (
	FrameNr = 0

	ShadowNr = 0

	DrawableNr = 0

	LightNr         = 0
	ShadowArrayNr   = 1
	ShadowMapNr     = 2
	ShadowSamplerNr = 3

	AlbedoNr = 0
	NormalNr = 1
	DepthNr  = 2

	CullOutNr = 0
)

// BlockSize is the alignment of constant data.
const BlockSize = 256

// Span returns size rounded up to a multiple of
// BlockSize.
func Span(size int) int { return (size + BlockSize - 1) &^ (BlockSize - 1) }

// Sizes of constant data, in bytes.
var (
	FrameSize    = Span(int(unsafe.Sizeof(FrameLayout{})))
	LightSize    = Span(MaxLight * int(unsafe.Sizeof(LightLayout{})))
	ShadowSize   = Span(int(unsafe.Sizeof(ShadowLayout{})))
	ShadowsSize  = Span(MaxShadow * int(unsafe.Sizeof(ShadowLayout{})))
	DrawableSize = Span(int(unsafe.Sizeof(DrawableLayout{})))
)

// Bytes returns the memory of s.
func Bytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var x T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(x)))
}

func constant(set, nr int, stages driver.Stage) pass.Binding {
	return pass.Binding{Set: set, Nr: nr, Type: driver.DConstant, Stages: stages, Len: 1}
}

func input(nr int) pass.Binding {
	return pass.Binding{Set: GBufferSet, Nr: nr, Type: driver.DInput, Stages: driver.SFragment, Len: 1}
}

// ShadowBindings returns the bindings of the shadow
// pass's depth subpass.
func ShadowBindings() []pass.Binding {
	return []pass.Binding{
		constant(ShadowSet, ShadowNr, driver.SVertex),
		constant(DrawableSet, DrawableNr, driver.SVertex|driver.SFragment),
	}
}

// GeometryBindings returns the bindings of the geometry
// subpass.
func GeometryBindings() []pass.Binding {
	return []pass.Binding{
		constant(FrameSet, FrameNr, driver.SVertex|driver.SFragment),
		constant(DrawableSet, DrawableNr, driver.SVertex|driver.SFragment),
	}
}

// LightingBindings returns the bindings of the lighting
// subpass.
func LightingBindings() []pass.Binding {
	return []pass.Binding{
		constant(FrameSet, FrameNr, driver.SVertex|driver.SFragment),
		constant(LightSet, LightNr, driver.SFragment),
		constant(LightSet, ShadowArrayNr, driver.SFragment),
		{Set: LightSet, Nr: ShadowMapNr, Type: driver.DTexture, Stages: driver.SFragment, Len: 1},
		{Set: LightSet, Nr: ShadowSamplerNr, Type: driver.DSampler, Stages: driver.SFragment, Len: 1},
		input(AlbedoNr),
		input(NormalNr),
		input(DepthNr),
	}
}

// CullBindings returns the bindings of the light culling
// compute pass.
func CullBindings() []pass.Binding {
	return []pass.Binding{
		constant(FrameSet, FrameNr, driver.SCompute),
		constant(LightSet, LightNr, driver.SCompute),
		{Set: OutputSet, Nr: CullOutNr, Type: driver.DBuffer, Stages: driver.SCompute, Len: 1},
	}
}

// CullTile is the size of the screen tiles processed by
// a single cull work group.
const CullTile = 16

// CullSize returns the size of the cull output for a
// given viewport size: one light mask per tile.
func CullSize(width, height int) int {
	tx := (width + CullTile - 1) / CullTile
	ty := (height + CullTile - 1) / CullTile
	return Span(tx * ty * MaxLight / 8)
}

// VertexInput returns the vertex inputs of the geometry
// subpass. Each input is read from its own buffer.
func VertexInput() []driver.VertexIn {
	return []driver.VertexIn{
		{Format: driver.Float32x3, Stride: 12, Nr: 0, Name: "position"},
		{Format: driver.Float32x3, Stride: 12, Nr: 1, Name: "normal"},
		{Format: driver.Float32x2, Stride: 8, Nr: 2, Name: "uv"},
	}
}

// ShadowInput returns the vertex inputs of the shadow
// pass, which only reads positions.
func ShadowInput() []driver.VertexIn { return VertexInput()[:1] }
