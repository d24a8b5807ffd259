// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package webgpu translates driver descriptions into their
// WebGPU counterparts, as defined by package gputypes.
// WebGPU has no subpasses nor input attachments, so a
// driver.Subpass becomes a separate render pass descriptor
// and DInput descriptors become unfilterable textures.
package webgpu

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gviegas/deferred/driver"
)

// Errors returned by the conversion functions.
var (
	ErrNoStage     = errors.New("webgpu: descriptor has no shader stage")
	ErrDescType    = errors.New("webgpu: invalid descriptor type")
	ErrArray       = errors.New("webgpu: descriptor arrays not supported")
	ErrBindingNr   = errors.New("webgpu: duplicate or negative binding number")
	ErrFormat      = errors.New("webgpu: invalid pixel format")
	ErrAttachIndex = errors.New("webgpu: attachment index out of bounds")
)

// StorageFormat is the TextureFormat assumed for DImage
// descriptors.
const StorageFormat = gputypes.TextureFormatRGBA16Float

// ShaderStages converts a driver.Stage mask.
func ShaderStages(s driver.Stage) gputypes.ShaderStages {
	v := gputypes.ShaderStageNone
	if s&driver.SVertex != 0 {
		v |= gputypes.ShaderStageVertex
	}
	if s&driver.SFragment != 0 {
		v |= gputypes.ShaderStageFragment
	}
	if s&driver.SCompute != 0 {
		v |= gputypes.ShaderStageCompute
	}
	return v
}

// Entry converts a single descriptor into a layout entry.
// d.Len is not considered.
func Entry(d driver.Descriptor) (gputypes.BindGroupLayoutEntry, error) {
	e := gputypes.BindGroupLayoutEntry{
		Binding:    uint32(d.Nr),
		Visibility: ShaderStages(d.Stages),
	}
	if d.Nr < 0 {
		return e, ErrBindingNr
	}
	if e.Visibility == gputypes.ShaderStageNone {
		return e, ErrNoStage
	}
	switch d.Type {
	case driver.DBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case driver.DConstant:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case driver.DImage:
		e.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessReadWrite,
			Format:        StorageFormat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case driver.DTexture:
		e.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case driver.DInput:
		e.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case driver.DSampler:
		e.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	default:
		return e, fmt.Errorf("%w (%d)", ErrDescType, d.Type)
	}
	return e, nil
}

// BindGroupLayout converts the descriptors of a heap into
// a bind group layout descriptor.
// Entries are sorted by binding number.
func BindGroupLayout(label string, ds []driver.Descriptor) (gputypes.BindGroupLayoutDescriptor, error) {
	desc := gputypes.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: make([]gputypes.BindGroupLayoutEntry, 0, len(ds)),
	}
	for _, d := range ds {
		if d.Len != 1 {
			return desc, fmt.Errorf("%w (binding %d, length %d)", ErrArray, d.Nr, d.Len)
		}
		e, err := Entry(d)
		if err != nil {
			return desc, err
		}
		desc.Entries = append(desc.Entries, e)
	}
	slices.SortFunc(desc.Entries, func(a, b gputypes.BindGroupLayoutEntry) int {
		return int(a.Binding) - int(b.Binding)
	})
	for i := 1; i < len(desc.Entries); i++ {
		if desc.Entries[i].Binding == desc.Entries[i-1].Binding {
			return desc, fmt.Errorf("%w (%d)", ErrBindingNr, desc.Entries[i].Binding)
		}
	}
	return desc, nil
}

// TextureFormat converts a driver.PixelFmt.
// It returns gputypes.TextureFormatUndefined for formats
// that have no WebGPU counterpart.
func TextureFormat(pf driver.PixelFmt) gputypes.TextureFormat {
	switch pf {
	case driver.RGBA8un:
		return gputypes.TextureFormatRGBA8Unorm
	case driver.RGBA8sRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb
	case driver.BGRA8un:
		return gputypes.TextureFormatBGRA8Unorm
	case driver.BGRA8sRGB:
		return gputypes.TextureFormatBGRA8UnormSrgb
	case driver.RG8un:
		return gputypes.TextureFormatRG8Unorm
	case driver.R8un:
		return gputypes.TextureFormatR8Unorm
	case driver.RGBA16f:
		return gputypes.TextureFormatRGBA16Float
	case driver.RG16f:
		return gputypes.TextureFormatRG16Float
	case driver.R16f:
		return gputypes.TextureFormatR16Float
	case driver.RGBA32f:
		return gputypes.TextureFormatRGBA32Float
	case driver.R32f:
		return gputypes.TextureFormatR32Float
	case driver.D16un:
		return gputypes.TextureFormatDepth16Unorm
	case driver.D32f:
		return gputypes.TextureFormatDepth32Float
	case driver.S8ui:
		return gputypes.TextureFormatStencil8
	case driver.D24unS8ui:
		return gputypes.TextureFormatDepth24PlusStencil8
	case driver.D32fS8ui:
		return gputypes.TextureFormatDepth32FloatStencil8
	}
	return gputypes.TextureFormatUndefined
}

// LoadOp converts a driver.LoadOp.
// WebGPU has no "don't care" load operation, so
// LDontCare becomes a clear.
func LoadOp(op driver.LoadOp) gputypes.LoadOp {
	if op == driver.LLoad {
		return gputypes.LoadOpLoad
	}
	return gputypes.LoadOpClear
}

// StoreOp converts a driver.StoreOp.
func StoreOp(op driver.StoreOp) gputypes.StoreOp {
	if op == driver.SStore {
		return gputypes.StoreOpStore
	}
	return gputypes.StoreOpDiscard
}

// PresentMode converts a driver.PresentMode.
func PresentMode(m driver.PresentMode) gputypes.PresentMode {
	switch m {
	case driver.PMailbox:
		return gputypes.PresentModeMailbox
	case driver.PImmediate:
		return gputypes.PresentModeImmediate
	}
	return gputypes.PresentModeFifo
}

// ColorAttachment converts a color attachment.
// The View field is left for the caller to set.
func ColorAttachment(att driver.Attachment, clear driver.ClearValue) gputypes.RenderPassColorAttachment {
	return gputypes.RenderPassColorAttachment{
		LoadOp:  LoadOp(att.Load[0]),
		StoreOp: StoreOp(att.Store[0]),
		ClearValue: gputypes.Color{
			R: float64(clear.Color[0]),
			G: float64(clear.Color[1]),
			B: float64(clear.Color[2]),
			A: float64(clear.Color[3]),
		},
	}
}

// DepthStencilAttachment converts a depth/stencil
// attachment.
// Stencil operations are left undefined when the format
// has no stencil aspect. The View field is left for the
// caller to set.
func DepthStencilAttachment(att driver.Attachment, clear driver.ClearValue) *gputypes.RenderPassDepthStencilAttachment {
	ds := &gputypes.RenderPassDepthStencilAttachment{
		DepthClearValue:   clear.Depth,
		StencilClearValue: clear.Stencil,
	}
	if att.Format.IsDepth() {
		ds.DepthLoadOp = LoadOp(att.Load[0])
		ds.DepthStoreOp = StoreOp(att.Store[0])
	}
	if att.Format.IsStencil() {
		ds.StencilLoadOp = LoadOp(att.Load[1])
		ds.StencilStoreOp = StoreOp(att.Store[1])
	}
	return ds
}

// PassDescriptor converts one subpass of a render pass
// into a render pass descriptor.
// clear must have one element per attachment in att.
func PassDescriptor(label string, att []driver.Attachment, sub driver.Subpass, clear []driver.ClearValue) (gputypes.RenderPassDescriptor, error) {
	desc := gputypes.RenderPassDescriptor{
		Label:            label,
		ColorAttachments: make([]gputypes.RenderPassColorAttachment, 0, len(sub.Color)),
	}
	for _, i := range sub.Color {
		if i < 0 || i >= len(att) || i >= len(clear) {
			return desc, fmt.Errorf("%w (color %d)", ErrAttachIndex, i)
		}
		if tf := TextureFormat(att[i].Format); tf == gputypes.TextureFormatUndefined || tf.IsDepthStencil() {
			return desc, fmt.Errorf("%w (color %d)", ErrFormat, i)
		}
		desc.ColorAttachments = append(desc.ColorAttachments, ColorAttachment(att[i], clear[i]))
	}
	if i := sub.DS; i >= 0 {
		if i >= len(att) || i >= len(clear) {
			return desc, fmt.Errorf("%w (depth/stencil %d)", ErrAttachIndex, i)
		}
		if !TextureFormat(att[i].Format).IsDepthStencil() {
			return desc, fmt.Errorf("%w (depth/stencil %d)", ErrFormat, i)
		}
		desc.DepthStencilAttachment = DepthStencilAttachment(att[i], clear[i])
	}
	return desc, nil
}
