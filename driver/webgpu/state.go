// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package webgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gviegas/deferred/driver"
)

// ErrState means that a pipeline or sampler state has a
// value with no WebGPU counterpart.
var ErrState = errors.New("webgpu: invalid state")

func badState(what string, v any) error { return fmt.Errorf("%w: %s %v", ErrState, what, v) }

// VertexFormat converts a driver.VertexFmt.
func VertexFormat(f driver.VertexFmt) (gputypes.VertexFormat, error) {
	switch f {
	case driver.Float32:
		return gputypes.VertexFormatFloat32, nil
	case driver.Float32x2:
		return gputypes.VertexFormatFloat32x2, nil
	case driver.Float32x3:
		return gputypes.VertexFormatFloat32x3, nil
	case driver.Float32x4:
		return gputypes.VertexFormatFloat32x4, nil
	case driver.UInt32:
		return gputypes.VertexFormatUint32, nil
	case driver.UInt16x4:
		return gputypes.VertexFormatUint16x4, nil
	}
	return 0, badState("vertex format", f)
}

// VertexBuffers converts vertex inputs into buffer
// layouts, one per input. Each layout has a single
// attribute at offset 0.
func VertexBuffers(in []driver.VertexIn) ([]gputypes.VertexBufferLayout, error) {
	vb := make([]gputypes.VertexBufferLayout, 0, len(in))
	for _, x := range in {
		vf, err := VertexFormat(x.Format)
		if err != nil {
			return nil, fmt.Errorf("%w (input %q)", err, x.Name)
		}
		if x.Stride < x.Format.Size() {
			return nil, badState("vertex stride", x.Stride)
		}
		vb = append(vb, gputypes.VertexBufferLayout{
			ArrayStride: uint64(x.Stride),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  []gputypes.VertexAttribute{{Format: vf, ShaderLocation: uint32(x.Nr)}},
		})
	}
	return vb, nil
}

// IndexFormat converts a driver.IndexFmt.
func IndexFormat(f driver.IndexFmt) (gputypes.IndexFormat, error) {
	switch f {
	case driver.Index16:
		return gputypes.IndexFormatUint16, nil
	case driver.Index32:
		return gputypes.IndexFormatUint32, nil
	}
	return gputypes.IndexFormatUndefined, badState("index format", f)
}

// Primitive converts the topology and rasterization
// state of a graphics pipeline.
// Depth bias is part of gputypes.DepthStencilState
// instead (see DepthStencil).
func Primitive(t driver.Topology, r driver.RasterState) (gputypes.PrimitiveState, error) {
	var ps gputypes.PrimitiveState
	switch t {
	case driver.TTriangle:
		ps.Topology = gputypes.PrimitiveTopologyTriangleList
	case driver.TTriStrip:
		ps.Topology = gputypes.PrimitiveTopologyTriangleStrip
	case driver.TLine:
		ps.Topology = gputypes.PrimitiveTopologyLineList
	case driver.TPoint:
		ps.Topology = gputypes.PrimitiveTopologyPointList
	default:
		return ps, badState("topology", t)
	}
	if r.Clockwise {
		ps.FrontFace = gputypes.FrontFaceCW
	} else {
		ps.FrontFace = gputypes.FrontFaceCCW
	}
	switch r.Cull {
	case driver.CNone:
		ps.CullMode = gputypes.CullModeNone
	case driver.CFront:
		ps.CullMode = gputypes.CullModeFront
	case driver.CBack:
		ps.CullMode = gputypes.CullModeBack
	default:
		return ps, badState("cull mode", r.Cull)
	}
	return ps, nil
}

// CompareFunction converts a driver.CmpFunc.
func CompareFunction(f driver.CmpFunc) (gputypes.CompareFunction, error) {
	switch f {
	case driver.CNever:
		return gputypes.CompareFunctionNever, nil
	case driver.CLess:
		return gputypes.CompareFunctionLess, nil
	case driver.CEqual:
		return gputypes.CompareFunctionEqual, nil
	case driver.CLessEqual:
		return gputypes.CompareFunctionLessEqual, nil
	case driver.CGreater:
		return gputypes.CompareFunctionGreater, nil
	case driver.CNotEqual:
		return gputypes.CompareFunctionNotEqual, nil
	case driver.CGreaterEqual:
		return gputypes.CompareFunctionGreaterEqual, nil
	case driver.CAlways:
		return gputypes.CompareFunctionAlways, nil
	}
	return gputypes.CompareFunctionUndefined, badState("compare function", f)
}

// DepthStencil converts the depth state of a graphics
// pipeline whose subpass uses a depth attachment of
// format pf. Disabled depth testing compares with
// CompareFunctionAlways.
func DepthStencil(pf driver.PixelFmt, ds driver.DSState, r driver.RasterState) (gputypes.DepthStencilState, error) {
	tf := TextureFormat(pf)
	if !tf.IsDepthStencil() {
		return gputypes.DepthStencilState{}, fmt.Errorf("%w (depth/stencil state)", ErrFormat)
	}
	cmp := gputypes.CompareFunctionAlways
	if ds.DepthTest {
		var err error
		if cmp, err = CompareFunction(ds.DepthCmp); err != nil {
			return gputypes.DepthStencilState{}, err
		}
	}
	s := gputypes.DepthStencilState{
		Format:            tf,
		DepthWriteEnabled: ds.DepthWrite,
		DepthCompare:      cmp,
		StencilReadMask:   0xff,
		StencilWriteMask:  0xff,
	}
	if r.DepthBias {
		s.DepthBias = int32(r.BiasValue)
		s.DepthBiasSlopeScale = r.BiasSlope
	}
	return s, nil
}

func blendOp(op driver.BlendOp) (gputypes.BlendOperation, error) {
	switch op {
	case driver.BAdd:
		return gputypes.BlendOperationAdd, nil
	case driver.BSubtract:
		return gputypes.BlendOperationSubtract, nil
	case driver.BMin:
		return gputypes.BlendOperationMin, nil
	case driver.BMax:
		return gputypes.BlendOperationMax, nil
	}
	return gputypes.BlendOperationUndefined, badState("blend operation", op)
}

func blendFac(f driver.BlendFac) (gputypes.BlendFactor, error) {
	switch f {
	case driver.BZero:
		return gputypes.BlendFactorZero, nil
	case driver.BOne:
		return gputypes.BlendFactorOne, nil
	case driver.BSrcAlpha:
		return gputypes.BlendFactorSrcAlpha, nil
	case driver.BInvSrcAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha, nil
	}
	return gputypes.BlendFactorUndefined, badState("blend factor", f)
}

// WriteMask converts a driver.ColorMask.
func WriteMask(m driver.ColorMask) gputypes.ColorWriteMask {
	var w gputypes.ColorWriteMask
	for _, x := range [...]struct {
		c driver.ColorMask
		w gputypes.ColorWriteMask
	}{
		{driver.CRed, gputypes.ColorWriteMaskRed},
		{driver.CGreen, gputypes.ColorWriteMaskGreen},
		{driver.CBlue, gputypes.ColorWriteMaskBlue},
		{driver.CAlpha, gputypes.ColorWriteMaskAlpha},
	} {
		if m&x.c != 0 {
			w |= x.w
		}
	}
	return w
}

// ColorTarget converts the blend parameters of a color
// attachment of format pf.
// The Blend field is nil unless cb.Blend is set.
func ColorTarget(pf driver.PixelFmt, cb driver.ColorBlend) (gputypes.ColorTargetState, error) {
	cts := gputypes.ColorTargetState{Format: TextureFormat(pf), WriteMask: WriteMask(cb.WriteMask)}
	if cts.Format == gputypes.TextureFormatUndefined || cts.Format.IsDepthStencil() {
		return cts, fmt.Errorf("%w (color target)", ErrFormat)
	}
	if !cb.Blend {
		return cts, nil
	}
	var comp [2]gputypes.BlendComponent
	for i := range comp {
		var err error
		if comp[i].Operation, err = blendOp(cb.Op[i]); err != nil {
			return cts, err
		}
		if comp[i].SrcFactor, err = blendFac(cb.SrcFac[i]); err != nil {
			return cts, err
		}
		if comp[i].DstFactor, err = blendFac(cb.DstFac[i]); err != nil {
			return cts, err
		}
	}
	cts.Blend = &gputypes.BlendState{Color: comp[0], Alpha: comp[1]}
	return cts, nil
}

func filterMode(f driver.Filter) (gputypes.FilterMode, error) {
	switch f {
	case driver.FNearest:
		return gputypes.FilterModeNearest, nil
	case driver.FLinear:
		return gputypes.FilterModeLinear, nil
	}
	return gputypes.FilterModeUndefined, badState("filter", f)
}

func addressMode(m driver.AddrMode) (gputypes.AddressMode, error) {
	switch m {
	case driver.AWrap:
		return gputypes.AddressModeRepeat, nil
	case driver.AMirror:
		return gputypes.AddressModeMirrorRepeat, nil
	case driver.AClamp:
		return gputypes.AddressModeClampToEdge, nil
	}
	return gputypes.AddressModeUndefined, badState("address mode", m)
}

// Sampler converts a driver.Sampling.
// CNever means no comparison, as in driver.Sampling.
func Sampler(s *driver.Sampling) (gputypes.SamplerDescriptor, error) {
	d := gputypes.SamplerDescriptor{
		MipmapFilter:  gputypes.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
	var err error
	if d.MinFilter, err = filterMode(s.Min); err != nil {
		return d, err
	}
	if d.MagFilter, err = filterMode(s.Mag); err != nil {
		return d, err
	}
	for _, x := range [...]struct {
		m driver.AddrMode
		p *gputypes.AddressMode
	}{
		{s.AddrU, &d.AddressModeU},
		{s.AddrV, &d.AddressModeV},
		{s.AddrW, &d.AddressModeW},
	} {
		if *x.p, err = addressMode(x.m); err != nil {
			return d, err
		}
	}
	if s.Cmp != driver.CNever {
		if d.Compare, err = CompareFunction(s.Cmp); err != nil {
			return d, err
		}
	}
	return d, nil
}

// ViewDimension converts a driver.ViewType.
func ViewDimension(t driver.ViewType) (gputypes.TextureViewDimension, error) {
	switch t {
	case driver.IView2D:
		return gputypes.TextureViewDimension2D, nil
	case driver.IView2DArray:
		return gputypes.TextureViewDimension2DArray, nil
	case driver.IViewCube:
		return gputypes.TextureViewDimensionCube, nil
	case driver.IView3D:
		return gputypes.TextureViewDimension3D, nil
	}
	return gputypes.TextureViewDimensionUndefined, badState("view type", t)
}
