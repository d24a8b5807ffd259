// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package headless

import (
	"slices"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/driver/webgpu"
)

// RenderPass implements driver.RenderPass.
// Its fields are copies of the arguments given to
// NewRenderPass.
type RenderPass struct {
	gpu *GPU
	Att []driver.Attachment
	Sub []driver.Subpass
	Dep []driver.Dependency

	destroyed bool
}

// NewRenderPass creates a new render pass.
func (g *GPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass, dep []driver.Dependency) (driver.RenderPass, error) {
	if len(sub) == 0 {
		return nil, invalid("render pass with no subpasses")
	}
	for i, a := range att {
		if a.Format == driver.FInvalid || a.Samples < 1 {
			return nil, invalid("attachment %d: format %d, samples %d", i, a.Format, a.Samples)
		}
	}
	lim := g.Limits()
	for i, s := range sub {
		if len(s.Color) > lim.MaxColorTargets {
			return nil, invalid("subpass %d: %d color targets", i, len(s.Color))
		}
		for _, c := range s.Color {
			if c < 0 || c >= len(att) || att[c].Format.IsDepth() || att[c].Format.IsStencil() {
				return nil, invalid("subpass %d: color attachment %d", i, c)
			}
		}
		for _, c := range s.Input {
			if c < 0 || c >= len(att) {
				return nil, invalid("subpass %d: input attachment %d", i, c)
			}
		}
		if s.DS >= len(att) || (s.DS >= 0 && !att[s.DS].Format.IsDepth() && !att[s.DS].Format.IsStencil()) {
			return nil, invalid("subpass %d: depth/stencil attachment %d", i, s.DS)
		}
	}
	for i, d := range dep {
		switch {
		case d.Src < driver.External || d.Src >= len(sub),
			d.Dst < driver.External || d.Dst >= len(sub),
			d.Src == driver.External && d.Dst == driver.External,
			d.Src != driver.External && d.Dst != driver.External && d.Src > d.Dst:
			return nil, invalid("dependency %d: %d -> %d", i, d.Src, d.Dst)
		}
	}
	rp := &RenderPass{
		gpu: g,
		Att: slices.Clone(att),
		Sub: make([]driver.Subpass, len(sub)),
		Dep: slices.Clone(dep),
	}
	for i, s := range sub {
		rp.Sub[i] = driver.Subpass{
			Color: slices.Clone(s.Color),
			Input: slices.Clone(s.Input),
			DS:    s.DS,
		}
	}
	g.record("RenderPass")
	return rp, nil
}

// NewFB creates a new framebuffer.
func (p *RenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	lim := p.gpu.Limits().MaxFBSize
	switch {
	case len(iv) != len(p.Att):
		return nil, invalid("framebuffer with %d views for %d attachments", len(iv), len(p.Att))
	case width < 1 || height < 1 || layers < 1, width > lim[0], height > lim[1]:
		return nil, invalid("framebuffer size %dx%dx%d", width, height, layers)
	}
	for i, v := range iv {
		if v == nil {
			return nil, invalid("framebuffer view %d is nil", i)
		}
	}
	p.gpu.record("Framebuf")
	return &Framebuf{gpu: p.gpu, pass: p, Views: slices.Clone(iv), Width: width, Height: height}, nil
}

// Destroy destroys the render pass.
func (p *RenderPass) Destroy() {
	if p == nil || p.destroyed {
		return
	}
	p.destroyed = true
	p.gpu.release()
}

// Framebuf implements driver.Framebuf.
type Framebuf struct {
	gpu           *GPU
	pass          *RenderPass
	Views         []driver.ImageView
	Width, Height int

	destroyed bool
}

// Destroy destroys the framebuffer.
func (f *Framebuf) Destroy() {
	if f == nil || f.destroyed {
		return
	}
	f.destroyed = true
	f.gpu.release()
}

// ShaderCode implements driver.ShaderCode.
type ShaderCode struct {
	gpu       *GPU
	Data      []byte
	destroyed bool
}

// NewShaderCode creates a new shader code.
func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	if len(data) == 0 {
		return nil, invalid("empty shader code")
	}
	g.record("ShaderCode")
	return &ShaderCode{gpu: g, Data: slices.Clone(data)}, nil
}

// Destroy destroys the shader code.
func (c *ShaderCode) Destroy() {
	if c == nil || c.destroyed {
		return
	}
	c.destroyed = true
	c.gpu.release()
}

// DescHeap implements driver.DescHeap.
type DescHeap struct {
	gpu       *GPU
	desc      []driver.Descriptor
	sets      []*DescSet
	destroyed bool
}

// NewDescHeap creates a new descriptor heap.
// Every descriptor must be convertible to a WebGPU
// layout entry.
func (g *GPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	if len(ds) > g.Limits().MaxDescriptors {
		return nil, invalid("heap with %d descriptors", len(ds))
	}
	seen := make(map[int]bool, len(ds))
	for _, d := range ds {
		if d.Len < 1 {
			return nil, invalid("descriptor %d: length %d", d.Nr, d.Len)
		}
		if seen[d.Nr] {
			return nil, invalid("descriptor %d: duplicate binding number", d.Nr)
		}
		seen[d.Nr] = true
		if _, err := webgpu.Entry(d); err != nil {
			return nil, invalid("descriptor %d: %v", d.Nr, err)
		}
	}
	g.record("DescHeap")
	return &DescHeap{gpu: g, desc: slices.Clone(ds)}, nil
}

// New allocates a new descriptor set.
func (h *DescHeap) New() (driver.DescSet, error) {
	if h.destroyed {
		return nil, invalid("allocation from destroyed heap")
	}
	s := &DescSet{heap: h, writes: make(map[int]int)}
	h.sets = append(h.sets, s)
	return s, nil
}

// Descriptors returns the descriptors of the heap.
func (h *DescHeap) Descriptors() []driver.Descriptor { return h.desc }

// Sets returns the number of sets allocated from h.
func (h *DescHeap) Sets() int { return len(h.sets) }

func (h *DescHeap) find(nr int) (driver.Descriptor, bool) {
	for _, d := range h.desc {
		if d.Nr == nr {
			return d, true
		}
	}
	return driver.Descriptor{}, false
}

// Destroy destroys the heap and every set allocated
// from it.
func (h *DescHeap) Destroy() {
	if h == nil || h.destroyed {
		return
	}
	h.destroyed = true
	h.sets = nil
	h.gpu.release()
}

// DescSet implements driver.DescSet.
// Writes to undeclared descriptors or with mismatched
// types panic.
type DescSet struct {
	heap   *DescHeap
	writes map[int]int
}

// Heap returns the heap from which s was allocated.
func (s *DescSet) Heap() driver.DescHeap { return s.heap }

// Writes returns how many times descriptor nr was written.
func (s *DescSet) Writes(nr int) int { return s.writes[nr] }

func (s *DescSet) write(nr, start, n int, types ...driver.DescType) {
	d, ok := s.heap.find(nr)
	if !ok {
		panic("headless: write to undeclared descriptor")
	}
	if !slices.Contains(types, d.Type) {
		panic("headless: descriptor type mismatch")
	}
	if start < 0 || start+n > d.Len {
		panic("headless: descriptor write out of bounds")
	}
	s.writes[nr]++
}

// SetBuffer updates buffer descriptors.
func (s *DescSet) SetBuffer(nr, start int, buf []driver.Buffer, off, size []int64) {
	if len(buf) != len(off) || len(buf) != len(size) {
		panic("headless: SetBuffer argument length mismatch")
	}
	s.write(nr, start, len(buf), driver.DBuffer, driver.DConstant)
}

// SetImage updates image descriptors.
func (s *DescSet) SetImage(nr, start int, iv []driver.ImageView) {
	s.write(nr, start, len(iv), driver.DImage, driver.DTexture, driver.DInput)
}

// SetSampler updates sampler descriptors.
func (s *DescSet) SetSampler(nr, start int, splr []driver.Sampler) {
	s.write(nr, start, len(splr), driver.DSampler)
}

// DescTable implements driver.DescTable.
type DescTable struct {
	gpu       *GPU
	heaps     []driver.DescHeap
	destroyed bool
}

// NewDescTable creates a new descriptor table.
func (g *GPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	if len(dh) > g.Limits().MaxDescHeaps {
		return nil, invalid("table with %d heaps", len(dh))
	}
	for i, h := range dh {
		if _, ok := h.(*DescHeap); !ok {
			return nil, invalid("table heap %d is not a headless heap", i)
		}
	}
	g.record("DescTable")
	return &DescTable{gpu: g, heaps: slices.Clone(dh)}, nil
}

// Len returns the number of heaps.
func (t *DescTable) Len() int { return len(t.heaps) }

// Heap returns the heap of a given set number.
func (t *DescTable) Heap(set int) driver.DescHeap { return t.heaps[set] }

// Destroy destroys the table.
func (t *DescTable) Destroy() {
	if t == nil || t.destroyed {
		return
	}
	t.destroyed = true
	t.gpu.release()
}

// Pipeline implements driver.Pipeline.
// Exactly one of Graph and Comp is non-nil.
type Pipeline struct {
	gpu       *GPU
	Graph     *driver.GraphState
	Comp      *driver.CompState
	destroyed bool
}

// NewPipeline creates a new pipeline.
func (g *GPU) NewPipeline(state any) (driver.Pipeline, error) {
	switch s := state.(type) {
	case *driver.GraphState:
		if s.VertFunc.Code == nil {
			return nil, invalid("graphics pipeline with no vertex function")
		}
		rp, ok := s.Pass.(*RenderPass)
		if !ok {
			return nil, invalid("graphics pipeline with no render pass")
		}
		if s.Subpass < 0 || s.Subpass >= len(rp.Sub) {
			return nil, invalid("graphics pipeline for subpass %d of %d", s.Subpass, len(rp.Sub))
		}
		if len(s.Input) > g.Limits().MaxVertexIn {
			return nil, invalid("graphics pipeline with %d vertex inputs", len(s.Input))
		}
		if n := len(s.Blend.Color); n != 0 && n != len(rp.Sub[s.Subpass].Color) {
			return nil, invalid("graphics pipeline with %d blend states for %d color targets", n, len(rp.Sub[s.Subpass].Color))
		}
		if err := checkGraph(s, rp); err != nil {
			return nil, invalid("graphics pipeline: %v", err)
		}
		cp := *s
		g.record("Pipeline")
		return &Pipeline{gpu: g, Graph: &cp}, nil
	case *driver.CompState:
		if s.Func.Code == nil {
			return nil, invalid("compute pipeline with no function")
		}
		cp := *s
		g.record("Pipeline")
		return &Pipeline{gpu: g, Comp: &cp}, nil
	}
	return nil, invalid("pipeline state of type %T", state)
}

// checkGraph converts the fixed-function state of s as a
// WebGPU implementation would, so that states with no
// counterpart fail here too.
func checkGraph(s *driver.GraphState, rp *RenderPass) error {
	if _, err := webgpu.VertexBuffers(s.Input); err != nil {
		return err
	}
	if _, err := webgpu.Primitive(s.Topology, s.Raster); err != nil {
		return err
	}
	sub := rp.Sub[s.Subpass]
	for i, c := range sub.Color {
		var cb driver.ColorBlend
		if len(s.Blend.Color) != 0 {
			cb = s.Blend.Color[i]
		}
		if _, err := webgpu.ColorTarget(rp.Att[c].Format, cb); err != nil {
			return err
		}
	}
	if sub.DS >= 0 {
		if _, err := webgpu.DepthStencil(rp.Att[sub.DS].Format, s.DS, s.Raster); err != nil {
			return err
		}
	}
	return nil
}

// Destroy destroys the pipeline.
func (p *Pipeline) Destroy() {
	if p == nil || p.destroyed {
		return
	}
	p.destroyed = true
	p.gpu.release()
}
