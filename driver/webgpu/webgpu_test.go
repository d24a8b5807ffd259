// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package webgpu

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/deferred/driver"
)

func TestShaderStages(t *testing.T) {
	for _, x := range [...]struct {
		s    driver.Stage
		want gputypes.ShaderStages
	}{
		{0, gputypes.ShaderStageNone},
		{driver.SVertex, gputypes.ShaderStageVertex},
		{driver.SFragment, gputypes.ShaderStageFragment},
		{driver.SCompute, gputypes.ShaderStageCompute},
		{driver.SVertex | driver.SFragment, gputypes.ShaderStageVertex | gputypes.ShaderStageFragment},
	} {
		if have := ShaderStages(x.s); have != x.want {
			t.Fatalf("ShaderStages(%d):\nhave %v\nwant %v", x.s, have, x.want)
		}
	}
}

func TestBindGroupLayout(t *testing.T) {
	ds := []driver.Descriptor{
		{Type: driver.DSampler, Stages: driver.SFragment, Nr: 3, Len: 1},
		{Type: driver.DConstant, Stages: driver.SVertex | driver.SFragment, Nr: 0, Len: 1},
		{Type: driver.DInput, Stages: driver.SFragment, Nr: 1, Len: 1},
		{Type: driver.DImage, Stages: driver.SCompute, Nr: 5, Len: 1},
	}
	desc, err := BindGroupLayout("set0", ds)
	require.NoError(t, err)
	require.Len(t, desc.Entries, 4)
	assert.Equal(t, "set0", desc.Label)

	var nrs []uint32
	for _, e := range desc.Entries {
		nrs = append(nrs, e.Binding)
	}
	assert.Equal(t, []uint32{0, 1, 3, 5}, nrs)

	require.NotNil(t, desc.Entries[0].Buffer)
	assert.Equal(t, gputypes.BufferBindingTypeUniform, desc.Entries[0].Buffer.Type)
	require.NotNil(t, desc.Entries[1].Texture)
	assert.Equal(t, gputypes.TextureSampleTypeUnfilterableFloat, desc.Entries[1].Texture.SampleType)
	require.NotNil(t, desc.Entries[2].Sampler)
	require.NotNil(t, desc.Entries[3].StorageTexture)
	assert.Equal(t, StorageFormat, desc.Entries[3].StorageTexture.Format)
	assert.Equal(t, gputypes.ShaderStageCompute, desc.Entries[3].Visibility)
}

func TestBindGroupLayoutErrors(t *testing.T) {
	for _, x := range [...]struct {
		ds   []driver.Descriptor
		want error
	}{
		{[]driver.Descriptor{{Type: driver.DBuffer, Stages: driver.SCompute, Nr: 0, Len: 2}}, ErrArray},
		{[]driver.Descriptor{{Type: driver.DBuffer, Stages: 0, Nr: 0, Len: 1}}, ErrNoStage},
		{[]driver.Descriptor{{Type: driver.DescType(100), Stages: driver.SVertex, Nr: 0, Len: 1}}, ErrDescType},
		{[]driver.Descriptor{{Type: driver.DBuffer, Stages: driver.SVertex, Nr: -1, Len: 1}}, ErrBindingNr},
		{[]driver.Descriptor{
			{Type: driver.DBuffer, Stages: driver.SVertex, Nr: 2, Len: 1},
			{Type: driver.DTexture, Stages: driver.SFragment, Nr: 2, Len: 1},
		}, ErrBindingNr},
	} {
		_, err := BindGroupLayout("", x.ds)
		assert.ErrorIs(t, err, x.want)
	}
}

func TestTextureFormat(t *testing.T) {
	assert.Equal(t, gputypes.TextureFormatBGRA8UnormSrgb, TextureFormat(driver.BGRA8sRGB))
	assert.Equal(t, gputypes.TextureFormatDepth32Float, TextureFormat(driver.D32f))
	assert.Equal(t, gputypes.TextureFormatUndefined, TextureFormat(driver.FInvalid))
	for pf := driver.RGBA8un; pf <= driver.D32fS8ui; pf++ {
		tf := TextureFormat(pf)
		if tf == gputypes.TextureFormatUndefined {
			t.Fatalf("TextureFormat(%d):\nhave %v\nwant defined format", pf, tf)
		}
		if tf.HasDepth() != pf.IsDepth() || tf.HasStencil() != pf.IsStencil() {
			t.Fatalf("TextureFormat(%d): aspect mismatch", pf)
		}
	}
}

func TestPassDescriptor(t *testing.T) {
	att := []driver.Attachment{
		{
			Format:  driver.RGBA8un,
			Samples: 1,
			Load:    [2]driver.LoadOp{driver.LClear},
			Store:   [2]driver.StoreOp{driver.SStore},
		},
		{
			Format:  driver.D32f,
			Samples: 1,
			Load:    [2]driver.LoadOp{driver.LClear, driver.LLoad},
			Store:   [2]driver.StoreOp{driver.SDontCare, driver.SStore},
		},
	}
	clear := []driver.ClearValue{{Color: [4]float32{0.5, 0, 0, 1}}, {Depth: 1}}
	desc, err := PassDescriptor("geometry", att, driver.Subpass{Color: []int{0}, DS: 1}, clear)
	require.NoError(t, err)
	require.Len(t, desc.ColorAttachments, 1)
	c := desc.ColorAttachments[0]
	assert.Equal(t, gputypes.LoadOpClear, c.LoadOp)
	assert.Equal(t, gputypes.StoreOpStore, c.StoreOp)
	assert.Equal(t, 0.5, c.ClearValue.R)
	require.NotNil(t, desc.DepthStencilAttachment)
	d := desc.DepthStencilAttachment
	assert.Equal(t, gputypes.StoreOpDiscard, d.DepthStoreOp)
	assert.Equal(t, float32(1), d.DepthClearValue)
	assert.Equal(t, gputypes.LoadOpUndefined, d.StencilLoadOp)

	_, err = PassDescriptor("", att, driver.Subpass{Color: []int{2}, DS: -1}, clear)
	assert.ErrorIs(t, err, ErrAttachIndex)
	_, err = PassDescriptor("", att, driver.Subpass{Color: []int{1}, DS: 0}, clear)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestPresentMode(t *testing.T) {
	assert.Equal(t, gputypes.PresentModeFifo, PresentMode(driver.PFIFO))
	assert.Equal(t, gputypes.PresentModeMailbox, PresentMode(driver.PMailbox))
	assert.Equal(t, gputypes.PresentModeImmediate, PresentMode(driver.PImmediate))
}
