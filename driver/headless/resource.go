// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package headless

import (
	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/driver/webgpu"
)

// Buffer implements driver.Buffer.
type Buffer struct {
	gpu       *GPU
	visible   bool
	data      []byte
	size      int64
	Usage     driver.Usage
	destroyed bool
}

// NewBuffer creates a new buffer.
// Host-visible buffers are backed by a Go slice.
func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	if size < 1 {
		return nil, invalid("buffer size %d", size)
	}
	b := &Buffer{gpu: g, visible: visible, size: size, Usage: usg}
	if visible {
		b.data = make([]byte, size)
	}
	g.record("Buffer")
	return b, nil
}

// Visible returns whether the buffer is host visible.
func (b *Buffer) Visible() bool { return b.visible }

// Bytes returns the buffer's memory, or nil if it is not
// host visible.
func (b *Buffer) Bytes() []byte { return b.data }

// Cap returns the buffer size.
func (b *Buffer) Cap() int64 { return b.size }

// Destroy destroys the buffer.
func (b *Buffer) Destroy() {
	if b == nil || b.destroyed {
		return
	}
	b.destroyed = true
	b.data = nil
	b.gpu.release()
}

// Image implements driver.Image.
type Image struct {
	gpu       *GPU
	Format    driver.PixelFmt
	Size      driver.Dim3D
	Layers    int
	Levels    int
	Samples   int
	Usage     driver.Usage
	destroyed bool
}

// NewImage creates a new image.
func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	lim := g.Limits()
	switch {
	case pf == driver.FInvalid:
		return nil, invalid("image with invalid format")
	case size.Width < 1 || size.Height < 1 || size.Width > lim.MaxImage2D || size.Height > lim.MaxImage2D:
		return nil, invalid("image size %dx%d", size.Width, size.Height)
	case layers < 1 || layers > lim.MaxLayers, levels < 1, samples < 1:
		return nil, invalid("image with %d layers, %d levels, %d samples", layers, levels, samples)
	}
	g.record("Image")
	return &Image{
		gpu:     g,
		Format:  pf,
		Size:    size,
		Layers:  layers,
		Levels:  levels,
		Samples: samples,
		Usage:   usg,
	}, nil
}

// NewView creates a new image view.
func (im *Image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	if layer < 0 || layers < 1 || layer+layers > im.Layers || level < 0 || levels < 1 || level+levels > im.Levels {
		return nil, invalid("image view [%d, %d) layers, [%d, %d) levels", layer, layer+layers, level, level+levels)
	}
	if _, err := webgpu.ViewDimension(typ); err != nil {
		return nil, invalid("image view: %v", err)
	}
	if typ == driver.IViewCube && layers != 6 {
		return nil, invalid("cube view with %d layers", layers)
	}
	im.gpu.record("ImageView")
	return &ImageView{gpu: im.gpu, Image: im, Type: typ, Layer: layer, Layers: layers}, nil
}

// Destroy destroys the image.
func (im *Image) Destroy() {
	if im == nil || im.destroyed {
		return
	}
	im.destroyed = true
	im.gpu.release()
}

// ImageView implements driver.ImageView.
type ImageView struct {
	gpu       *GPU
	Image     *Image
	Type      driver.ViewType
	Layer     int
	Layers    int
	destroyed bool
}

// Destroy destroys the image view.
// Views owned by a Swapchain are not destroyed.
func (v *ImageView) Destroy() {
	if v == nil || v.destroyed || v.gpu == nil {
		return
	}
	v.destroyed = true
	v.gpu.release()
}

// Sampler implements driver.Sampler.
type Sampler struct {
	gpu       *GPU
	Sampling  driver.Sampling
	destroyed bool
}

// NewSampler creates a new sampler.
func (g *GPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	if spln == nil {
		return nil, invalid("nil sampling")
	}
	if _, err := webgpu.Sampler(spln); err != nil {
		return nil, invalid("sampler: %v", err)
	}
	g.record("Sampler")
	return &Sampler{gpu: g, Sampling: *spln}, nil
}

// Destroy destroys the sampler.
func (s *Sampler) Destroy() {
	if s == nil || s.destroyed {
		return
	}
	s.destroyed = true
	s.gpu.release()
}
