// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/engine/internal/shader"
	"github.com/gviegas/deferred/internal/logging"
	"github.com/gviegas/deferred/linear"
	"github.com/gviegas/deferred/scene"
)

// Stats describes the last frame rendered.
type Stats struct {
	// Number of frames ended so far.
	Frame int64

	Drawables int
	// Models whose mesh is unknown or that exceed
	// Config.MaxDrawable.
	Skipped int

	Lights        int
	DroppedLights int

	Shadows        int
	DroppedShadows int

	// Descriptor sets of the current frame slot.
	SetsAllocated int
	SetsReused    int
}

// Stats returns statistics about the last frame.
func (r *Renderer) Stats() Stats { return r.stats }

// dflCamera is used when the scene has no camera.
var dflCamera = scene.Camera{YFov: math.Pi / 3, Znear: 0.1, Zfar: 100}

// caster is a light that casts shadows in the current
// frame.
type caster struct {
	l     *scene.Light
	t     *scene.Transform
	light int
}

// frameData is the scene data gathered for a frame.
type frameData struct {
	frame   shader.FrameLayout
	lights  []shader.LightLayout
	shadows []shader.ShadowLayout
	tiles   []shadowTile
	draws   []drawable
	casters []caster

	skipped        int
	droppedLights  int
	droppedShadows int
}

func (fd *frameData) reset() {
	fd.frame = shader.FrameLayout{}
	fd.lights = fd.lights[:0]
	fd.shadows = fd.shadows[:0]
	fd.tiles = nil
	clear(fd.draws)
	fd.draws = fd.draws[:0]
	clear(fd.casters)
	fd.casters = fd.casters[:0]
	fd.skipped = 0
	fd.droppedLights = 0
	fd.droppedShadows = 0
}

// BeginFrame begins a new frame.
// It waits for the frame slot to become available and
// acquires the next swapchain image.
// If the previous use of the slot failed, the error is
// returned and the frame does not begin.
func (r *Renderer) BeginFrame() error {
	if r.recording {
		return fmt.Errorf("%w: BeginFrame during frame", ErrFrame)
	}
	f := &r.frames[r.cur]
	if f.pending {
		f.pending = false
		err := <-f.ch
		f.cache.MarkAllAvailable()
		if err != nil {
			return fmt.Errorf("engine: frame slot %d failed: %w", r.cur, err)
		}
	} else {
		f.cache.MarkAllAvailable()
	}
	if r.recreate {
		if err := r.recreateSwapchain(); err != nil {
			return err
		}
	}
	idx, err := r.sc.Next()
	switch {
	case err == nil:
	case errors.Is(err, driver.ErrSuboptimal):
		logging.L().Warn("suboptimal swapchain", zap.String("op", "Next"))
		r.recreate = true
	case errors.Is(err, driver.ErrSwapchain):
		if err = r.recreateSwapchain(); err != nil {
			return err
		}
		if idx, err = r.sc.Next(); err != nil && !errors.Is(err, driver.ErrSuboptimal) {
			return err
		}
	default:
		return err
	}
	if err := f.cb.Begin(); err != nil {
		r.recreate = true
		return err
	}
	r.index = idx
	r.recording = true
	r.rendered = false
	return nil
}

// Render records the commands that draw s.
// It must be called at most once between BeginFrame and
// EndFrame. If it fails, the frame remains open and
// EndFrame presents an empty image.
// A nil s renders nothing.
func (r *Renderer) Render(s *scene.Scene) error {
	switch {
	case !r.recording:
		return fmt.Errorf("%w: Render outside of frame", ErrFrame)
	case r.rendered:
		return fmt.Errorf("%w: Render called twice", ErrFrame)
	}
	fd := &r.fd
	if err := r.gather(s, fd); err != nil {
		return err
	}
	f := &r.frames[r.cur]
	r.writeConstants(f, fd)
	if err := r.record(f, fd); err != nil {
		// Discard partial recording.
		if f.cb.Reset() == nil {
			_ = f.cb.Begin()
		}
		return err
	}
	r.rendered = true
	nalloc, nreuse := f.alloc.Stats()
	r.stats = Stats{
		Frame:          r.stats.Frame,
		Drawables:      len(fd.draws),
		Skipped:        fd.skipped,
		Lights:         len(fd.lights),
		DroppedLights:  fd.droppedLights,
		Shadows:        len(fd.shadows),
		DroppedShadows: fd.droppedShadows,
		SetsAllocated:  nalloc,
		SetsReused:     nreuse,
	}
	if fd.droppedShadows > 0 {
		logging.L().Warn("shadow atlas full",
			zap.Int("casters", len(fd.casters)),
			zap.Int("dropped", fd.droppedShadows))
	}
	return nil
}

// EndFrame ends the current frame.
// It commits the recorded commands and presents the
// swapchain image.
func (r *Renderer) EndFrame() error {
	if !r.recording {
		return fmt.Errorf("%w: EndFrame outside of frame", ErrFrame)
	}
	var rerr error
	if !r.rendered {
		rerr = r.Render(nil)
	}
	f := &r.frames[r.cur]
	r.recording = false
	if err := f.cb.End(); err != nil {
		// The acquired image is never presented.
		r.recreate = true
		f.cb.Reset()
		return fmt.Errorf("engine: command recording failed: %w", err)
	}
	r.gpu.Commit([]driver.CmdBuffer{f.cb}, f.ch)
	f.pending = true
	err := r.sc.Present(r.index)
	switch {
	case err == nil:
	case errors.Is(err, driver.ErrSuboptimal), errors.Is(err, driver.ErrSwapchain):
		logging.L().Warn("swapchain needs recreation", zap.String("op", "Present"), zap.Error(err))
		r.recreate = true
		err = nil
	}
	r.index = -1
	r.cur = (r.cur + 1) % len(r.frames)
	r.stats.Frame++
	if err != nil {
		return err
	}
	return rerr
}

// gather collects the lights and drawables of s.
func (r *Renderer) gather(s *scene.Scene, fd *frameData) error {
	fd.reset()
	var (
		cam  *scene.Camera
		camT *scene.Transform
	)
	if s != nil {
		for h, e := range s.All() {
			t := scene.Get[scene.Transform](e)
			if c := scene.Get[scene.Camera](e); c != nil && cam == nil {
				cam, camT = c, t
			}
			if l := scene.Get[scene.Light](e); l != nil {
				if len(fd.lights) == r.cfg.MaxLight {
					fd.droppedLights++
				} else {
					if castsShadow(l) {
						fd.casters = append(fd.casters, caster{l, t, len(fd.lights)})
					}
					fd.lights = append(fd.lights, lightLayout(l, t, -1))
				}
			}
			if m := scene.Get[scene.Model](e); m != nil {
				ms, ok := r.meshes.lookup(m.Mesh)
				if !ok || len(fd.draws) == r.cfg.MaxDrawable {
					fd.skipped++
					continue
				}
				mat, ok := r.materials[m.Material]
				if !ok {
					mat = DefaultMaterial
				}
				fd.draws = append(fd.draws, newDrawable(ms, m, t, &mat, uint32(h.Index())))
			}
		}
	}

	tiles, drop, err := packShadows(len(fd.casters), r.cfg.ShadowAtlas, r.cfg.ShadowTile, r.cfg.ShadowOverflow)
	if err != nil {
		return err
	}
	fd.tiles = tiles
	fd.droppedShadows = drop
	atlas := float32(r.cfg.ShadowAtlas)
	for i, tl := range tiles {
		c := fd.casters[i]
		vp := shadowVP(c.l, c.t)
		var sl shader.ShadowLayout
		sl.SetVP(&vp)
		sl.SetTile(float32(tl.x)/atlas, float32(tl.y)/atlas, float32(tl.size)/atlas, float32(tl.size)/atlas)
		sl.SetBias(shadowBias)
		fd.shadows = append(fd.shadows, sl)
		fd.lights[c.light].SetShadow(i)
	}

	if cam == nil {
		cam = &dflCamera
	}
	if camT == nil {
		t := scene.NewTransform()
		camT = &t
	}
	w, h := r.tgt.width, r.tgt.height
	v := cam.View(camT)
	p := cam.Proj(float32(w) / float32(h))
	var vp linear.M4
	vp.Mul(&p, &v)
	fd.frame.SetVP(&vp)
	fd.frame.SetV(&v)
	fd.frame.SetP(&p)
	fd.frame.SetTime(time.Since(r.start))
	fd.frame.SetRand(rand.Float32())
	fd.frame.SetBounds(&driver.Viewport{Width: float32(w), Height: float32(h), Zfar: 1})
	fd.frame.SetCounts(len(fd.lights), len(fd.shadows))
	return nil
}

// writeConstants copies fd to the constant buffer of f.
func (r *Renderer) writeConstants(f *frame, fd *frameData) {
	b := f.cbuf.Bytes()
	copy(b[r.off.frame:], fd.frame.Bytes())
	copy(b[r.off.light:r.off.shadows], shader.Bytes(fd.lights))
	copy(b[r.off.shadows:r.off.tiles], shader.Bytes(fd.shadows))
	for i := range fd.shadows {
		copy(b[r.off.tiles+i*shader.ShadowSize:], fd.shadows[i].Bytes())
	}
	for i := range fd.draws {
		copy(b[r.off.draws+i*shader.DrawableSize:], fd.draws[i].layout.Bytes())
	}
}

// constSet writes a single constant range of f to a set
// of layout l.
func (r *Renderer) constSet(f *frame, l layout, nr, off, size int) (driver.DescSet, error) {
	w, err := f.alloc.Write(l.heap, l.bindings)
	if err != nil {
		return nil, err
	}
	return w.Buffer(nr, 0, []driver.Buffer{f.cbuf}, []int64{int64(off)}, []int64{int64(size)}).Commit()
}

// record records the commands of a frame.
func (r *Renderer) record(f *frame, fd *frameData) error {
	g := r.g
	cb := f.cb
	frameSet, err := r.constSet(f, g.frame, shader.FrameNr, r.off.frame, shader.FrameSize)
	if err != nil {
		return err
	}

	// Light culling.
	cullFrame, err := r.constSet(f, g.cullFrame, shader.FrameNr, r.off.frame, shader.FrameSize)
	if err != nil {
		return err
	}
	cullLight, err := r.constSet(f, g.cullLight, shader.LightNr, r.off.light, shader.LightSize)
	if err != nil {
		return err
	}
	cull := r.tgt.cull[r.cur]
	w, err := f.alloc.Write(g.cullOut.heap, g.cullOut.bindings)
	if err != nil {
		return err
	}
	cullOut, err := w.Buffer(shader.CullOutNr, 0, []driver.Buffer{cull}, []int64{0}, []int64{cull.Cap()}).Commit()
	if err != nil {
		return err
	}
	cb.BeginWork(false)
	cb.SetPipeline(g.cull.Pipeline())
	cb.SetDescTableComp(g.cull.Table(), 0, []driver.DescSet{cullFrame, cullLight, cullOut})
	cb.Dispatch((r.tgt.width+shader.CullTile-1)/shader.CullTile, (r.tgt.height+shader.CullTile-1)/shader.CullTile, 1)
	cb.EndWork()
	cb.Barrier([]driver.Barrier{{
		SyncBefore:   driver.SComputeShading,
		SyncAfter:    driver.SFragmentShading,
		AccessBefore: driver.AShaderWrite,
		AccessAfter:  driver.AShaderRead,
	}})

	// Shadows. The pass runs even with no casters so the
	// atlas is cleared and made readable.
	var shadowDraw []driver.DescSet
	for i := range fd.draws {
		var ds driver.DescSet
		if fd.draws[i].castShadow && len(fd.tiles) > 0 {
			off := r.off.draws + i*shader.DrawableSize
			if ds, err = r.constSet(f, g.shadowDraw, shader.DrawableNr, off, shader.DrawableSize); err != nil {
				return err
			}
		}
		shadowDraw = append(shadowDraw, ds)
	}
	cb.BeginPass(g.shadow.RenderPass(), r.atlasF, g.shadow.ClearValues())
	cb.SetPipeline(g.shadow.Pipeline(0))
	for i, tl := range fd.tiles {
		tileSet, err := r.constSet(f, g.shadowTile, shader.ShadowNr, r.off.tiles+i*shader.ShadowSize, shader.ShadowSize)
		if err != nil {
			cb.EndPass()
			return err
		}
		cb.SetViewport([]driver.Viewport{tl.viewport()})
		cb.SetScissor([]driver.Scissor{tl.scissor()})
		cb.SetDescTableGraph(g.shadow.Table(0), shader.ShadowSet, []driver.DescSet{tileSet})
		for j := range fd.draws {
			if shadowDraw[j] == nil {
				continue
			}
			cb.SetDescTableGraph(g.shadow.Table(0), shader.DrawableSet, shadowDraw[j:j+1])
			fd.draws[j].mesh.draw(cb, r.storage.buf, true)
		}
	}
	cb.EndPass()

	// G-buffer and lighting.
	lw, err := f.alloc.Write(g.light.heap, g.light.bindings)
	if err != nil {
		return err
	}
	lightSet, err := lw.
		Buffer(shader.LightNr, 0, []driver.Buffer{f.cbuf}, []int64{int64(r.off.light)}, []int64{int64(shader.LightSize)}).
		Buffer(shader.ShadowArrayNr, 0, []driver.Buffer{f.cbuf}, []int64{int64(r.off.shadows)}, []int64{int64(shader.ShadowsSize)}).
		Image(shader.ShadowMapNr, 0, r.atlasV).
		Sampler(shader.ShadowSamplerNr, 0, r.splr).
		Commit()
	if err != nil {
		return err
	}
	gw, err := f.alloc.Write(g.gbuffer.heap, g.gbuffer.bindings)
	if err != nil {
		return err
	}
	gbufSet, err := gw.
		Image(shader.AlbedoNr, 0, r.tgt.views[0]).
		Image(shader.NormalNr, 0, r.tgt.views[1]).
		Image(shader.DepthNr, 0, r.tgt.views[2]).
		Commit()
	if err != nil {
		return err
	}
	drawSets := make([]driver.DescSet, len(fd.draws))
	for i := range fd.draws {
		off := r.off.draws + i*shader.DrawableSize
		if drawSets[i], err = r.constSet(f, g.draw, shader.DrawableNr, off, shader.DrawableSize); err != nil {
			return err
		}
	}
	vport := []driver.Viewport{{Width: float32(r.tgt.width), Height: float32(r.tgt.height), Zfar: 1}}
	sciss := []driver.Scissor{{Width: r.tgt.width, Height: r.tgt.height}}
	cb.BeginPass(g.deferred.RenderPass(), r.tgt.fbs[r.index], g.deferred.ClearValues())
	cb.SetPipeline(g.deferred.Pipeline(0))
	cb.SetViewport(vport)
	cb.SetScissor(sciss)
	cb.SetDescTableGraph(g.deferred.Table(0), shader.FrameSet, []driver.DescSet{frameSet})
	for i := range fd.draws {
		cb.SetDescTableGraph(g.deferred.Table(0), shader.DrawableSet, drawSets[i:i+1])
		fd.draws[i].mesh.draw(cb, r.storage.buf, false)
	}
	cb.NextSubpass()
	cb.SetPipeline(g.deferred.Pipeline(1))
	cb.SetViewport(vport)
	cb.SetScissor(sciss)
	cb.SetDescTableGraph(g.deferred.Table(1), 0, []driver.DescSet{frameSet, lightSet, gbufSet})
	cb.Draw(3, 1, 0, 0)
	cb.EndPass()
	return nil
}
