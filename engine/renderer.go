// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/engine/descset"
	"github.com/gviegas/deferred/engine/internal/shader"
	"github.com/gviegas/deferred/internal/logging"
)

// frame is a frame-in-flight slot.
// The channel receives the result of the slot's last
// commit and acts as its fence.
type frame struct {
	cb      driver.CmdBuffer
	ch      chan error
	pending bool
	cbuf    driver.Buffer
	cache   *descset.Cache
	alloc   *descset.Allocator
}

// target holds the resources that depend on the size of
// the swapchain.
type target struct {
	width, height int
	images        [3]driver.Image
	views         [3]driver.ImageView
	fbs           []driver.Framebuf
	// One per frame slot.
	cull []driver.Buffer
}

// constOffsets locates constant data in a frame's
// constant buffer.
type constOffsets struct {
	frame, light, shadows, tiles, draws, size int
}

func newConstOffsets(maxDrawable int) (c constOffsets) {
	c.light = c.frame + shader.FrameSize
	c.shadows = c.light + shader.LightSize
	c.tiles = c.shadows + shader.ShadowsSize
	c.draws = c.tiles + MaxShadow*shader.ShadowSize
	c.size = c.draws + maxDrawable*shader.DrawableSize
	return
}

// Renderer is a deferred renderer that presents to a
// driver.Surface.
// It is not safe for concurrent use.
type Renderer struct {
	gpu  driver.GPU
	pres driver.Presenter
	sf   driver.Surface
	cfg  Config
	off  constOffsets

	code   *shader.Code
	sc     driver.Swapchain
	g      *graphs
	atlas  driver.Image
	atlasV driver.ImageView
	atlasF driver.Framebuf
	splr   driver.Sampler
	tgt    target
	frames []frame

	cur       int
	index     int
	recording bool
	rendered  bool
	recreate  bool

	storage   meshStorage
	meshes    meshMap
	materials map[string]Material
	start     time.Time
	fd        frameData
	stats     Stats
}

// New creates a new renderer.
// gpu must implement driver.Presenter.
func New(gpu driver.GPU, sf driver.Surface, cfg Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pres, ok := gpu.(driver.Presenter)
	if !ok {
		return nil, ErrNoPresenter
	}
	if sf == nil {
		return nil, errors.New("engine: nil driver.Surface in call to New")
	}
	r := &Renderer{
		gpu:       gpu,
		pres:      pres,
		sf:        sf,
		cfg:       cfg,
		index:     -1,
		storage:   meshStorage{gpu: gpu},
		meshes:    meshMap{names: make(map[string]MeshID)},
		materials: make(map[string]Material),
		start:     time.Now(),
	}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

// init creates every GPU resource from r.cfg.
// On failure, whatever was created is freed.
func (r *Renderer) init() (err error) {
	defer func() {
		if err != nil {
			r.free()
		}
	}()
	r.off = newConstOffsets(r.cfg.MaxDrawable)
	if r.code, err = shader.Load(r.gpu); err != nil {
		return
	}
	mode, _ := r.cfg.presentMode()
	if r.sc, err = r.pres.NewSwapchain(r.sf, r.cfg.FramesInFlight+1, mode); err != nil {
		return
	}
	if r.g, err = newGraphs(r.gpu, r.code, r.sc.Format()); err != nil {
		return
	}
	if err = r.initShadow(); err != nil {
		return
	}
	r.frames = make([]frame, r.cfg.FramesInFlight)
	for i := range r.frames {
		if err = r.initFrame(&r.frames[i]); err != nil {
			return
		}
	}
	if err = r.initTarget(); err != nil {
		return
	}
	r.cur = 0
	r.index = -1
	r.recording = false
	r.recreate = false
	w, h := r.sc.Extent()
	logging.L().Info("renderer initialized",
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Int("frames", len(r.frames)),
		zap.String("present", mode.String()),
		zap.Int("shadowAtlas", r.cfg.ShadowAtlas))
	return
}

func (r *Renderer) initShadow() (err error) {
	n := r.cfg.ShadowAtlas
	size := driver.Dim3D{Width: n, Height: n}
	if r.atlas, err = r.gpu.NewImage(atlasFormat, size, 1, 1, 1, driver.URenderTarget|driver.UShaderSample); err != nil {
		return
	}
	if r.atlasV, err = r.atlas.NewView(driver.IView2D, 0, 1, 0, 1); err != nil {
		return
	}
	if r.atlasF, err = r.g.shadow.NewFB([]driver.ImageView{r.atlasV}, n, n); err != nil {
		return
	}
	r.splr, err = r.gpu.NewSampler(&driver.Sampling{
		Min:   driver.FLinear,
		Mag:   driver.FLinear,
		AddrU: driver.AClamp,
		AddrV: driver.AClamp,
		AddrW: driver.AClamp,
		Cmp:   driver.CLessEqual,
	})
	return
}

func (r *Renderer) initFrame(f *frame) (err error) {
	if f.cb, err = r.gpu.NewCmdBuffer(); err != nil {
		return
	}
	if f.cbuf, err = r.gpu.NewBuffer(int64(r.off.size), true, driver.UShaderConst); err != nil {
		return
	}
	f.ch = make(chan error, 1)
	f.cache = descset.NewCache()
	f.alloc = descset.NewAllocator(f.cache)
	return
}

// initTarget creates the G-buffer, the framebuffers and
// the cull buffers for the current swapchain extent.
func (r *Renderer) initTarget() (err error) {
	t := &r.tgt
	t.width, t.height = r.sc.Extent()
	size := driver.Dim3D{Width: t.width, Height: t.height}
	usg := driver.URenderTarget | driver.UShaderRead
	for i, pf := range [3]driver.PixelFmt{albedoFormat, normalFormat, depthFormat} {
		if t.images[i], err = r.gpu.NewImage(pf, size, 1, 1, 1, usg); err != nil {
			return
		}
		if t.views[i], err = t.images[i].NewView(driver.IView2D, 0, 1, 0, 1); err != nil {
			return
		}
	}
	for _, sv := range r.sc.Views() {
		iv := []driver.ImageView{t.views[0], t.views[1], t.views[2], sv}
		var fb driver.Framebuf
		if fb, err = r.g.deferred.NewFB(iv, t.width, t.height); err != nil {
			return
		}
		t.fbs = append(t.fbs, fb)
	}
	n := int64(shader.CullSize(t.width, t.height))
	for range r.frames {
		var buf driver.Buffer
		if buf, err = r.gpu.NewBuffer(n, false, driver.UShaderRead|driver.UShaderWrite); err != nil {
			return
		}
		t.cull = append(t.cull, buf)
	}
	return
}

func (r *Renderer) freeTarget() {
	t := &r.tgt
	for _, b := range t.cull {
		b.Destroy()
	}
	for _, fb := range t.fbs {
		fb.Destroy()
	}
	for i := range t.views {
		if t.views[i] != nil {
			t.views[i].Destroy()
		}
		if t.images[i] != nil {
			t.images[i].Destroy()
		}
	}
	*t = target{}
}

// waitIdle waits for every frame in flight.
// Errors from the commits are combined.
func (r *Renderer) waitIdle() (err error) {
	for i := range r.frames {
		f := &r.frames[i]
		if f.pending {
			err = multierr.Append(err, <-f.ch)
			f.pending = false
		}
	}
	return
}

// free destroys every GPU resource except meshes, in
// reverse creation order.
func (r *Renderer) free() error {
	err := r.waitIdle()
	r.freeTarget()
	for i := range r.frames {
		f := &r.frames[i]
		if f.cache != nil {
			f.cache.Destroy()
		}
		if f.cbuf != nil {
			f.cbuf.Destroy()
		}
		if f.cb != nil {
			f.cb.Destroy()
		}
	}
	r.frames = nil
	for _, d := range [...]driver.Destroyer{r.splr, r.atlasF, r.atlasV, r.atlas} {
		if d != nil {
			d.Destroy()
		}
	}
	r.splr, r.atlasF, r.atlasV, r.atlas = nil, nil, nil, nil
	if r.g != nil {
		r.g.destroy()
		r.g = nil
	}
	if r.sc != nil {
		r.sc.Destroy()
		r.sc = nil
	}
	if r.code != nil {
		r.code.Destroy()
		r.code = nil
	}
	r.recording = false
	r.index = -1
	return err
}

// Free frees every resource of r, including meshes.
// It waits for frames in flight to complete and returns
// any error they produced.
// r must not be used after Free.
func (r *Renderer) Free() error {
	err := r.free()
	r.storage.destroy()
	r.meshes = meshMap{}
	logging.L().Info("renderer freed")
	return err
}

// Rebuild replaces the configuration of r and recreates
// its passes and frame resources. Meshes and materials
// are kept.
// It must not be called between BeginFrame and EndFrame.
func (r *Renderer) Rebuild(cfg Config) error {
	if r.recording {
		return fmt.Errorf("%w: Rebuild during frame", ErrFrame)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := r.free(); err != nil {
		logging.L().Warn("frame failed before rebuild", zap.Error(err))
	}
	r.cfg = cfg
	if err := r.init(); err != nil {
		return err
	}
	logging.L().Info("renderer rebuilt")
	return nil
}

// recreateSwapchain recreates the swapchain and every
// resource that depends on its size.
func (r *Renderer) recreateSwapchain() error {
	if err := r.waitIdle(); err != nil {
		return err
	}
	if err := r.sc.Recreate(); err != nil {
		return fmt.Errorf("engine: swapchain recreation failed: %w", err)
	}
	r.freeTarget()
	if err := r.initTarget(); err != nil {
		return err
	}
	r.recreate = false
	logging.L().Info("swapchain recreated", zap.Int("width", r.tgt.width), zap.Int("height", r.tgt.height))
	return nil
}

// Config returns the current configuration.
func (r *Renderer) Config() Config { return r.cfg }

// Extent returns the size of the render targets.
func (r *Renderer) Extent() (width, height int) { return r.tgt.width, r.tgt.height }

// AddMesh copies d to GPU memory and makes it available
// to scene.Model components under name.
// It must not be called between BeginFrame and EndFrame.
// If mesh storage must grow, it waits for frames in
// flight first.
func (r *Renderer) AddMesh(name string, d *MeshData) (MeshID, error) {
	if r.recording {
		return 0, fmt.Errorf("%w: AddMesh during frame", ErrFrame)
	}
	if _, ok := r.meshes.names[name]; ok {
		return 0, fmt.Errorf("%w: %q", ErrMeshExists, name)
	}
	if _, size := layoutMesh(d); !r.storage.fits(size) {
		if err := r.waitIdle(); err != nil {
			logging.L().Warn("frame failed before mesh storage growth", zap.Error(err))
		}
	}
	m, err := newMesh(&r.storage, name, d)
	if err != nil {
		return 0, fmt.Errorf("mesh %q: %w", name, err)
	}
	id := r.meshes.insert(m)
	r.meshes.names[name] = id
	return id, nil
}

// Mesh returns the ID of the named mesh.
func (r *Renderer) Mesh(name string) (MeshID, bool) {
	id, ok := r.meshes.names[name]
	return id, ok
}

// RemoveMesh removes the named mesh.
// It waits for frames in flight, since they may still
// read the mesh's span.
// It reports whether the mesh existed.
func (r *Renderer) RemoveMesh(name string) (bool, error) {
	id, ok := r.meshes.names[name]
	if !ok {
		return false, nil
	}
	if r.recording {
		return false, fmt.Errorf("%w: RemoveMesh during frame", ErrFrame)
	}
	err := r.waitIdle()
	m := r.meshes.remove(id)
	r.storage.free(m.span)
	delete(r.meshes.names, name)
	return true, err
}

// SetMaterial defines the material that scene.Model
// components refer to by name.
func (r *Renderer) SetMaterial(name string, m Material) { r.materials[name] = m }
