// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/driver/headless"
	"github.com/gviegas/deferred/internal/logging"
	"github.com/gviegas/deferred/linear"
	"github.com/gviegas/deferred/scene"
)

func testConfig() Config {
	c := DefaultConfig()
	c.ShadowAtlas = 1024
	c.ShadowTile = 512
	c.MaxDrawable = 8
	return c
}

func newRenderer(t *testing.T, cfg Config) (*Renderer, *headless.GPU, *headless.Surface) {
	t.Helper()
	gpu := headless.New()
	sf := headless.NewSurface(320, 240)
	r, err := New(gpu, sf, cfg)
	require.NoError(t, err)
	return r, gpu, sf
}

func swapchain(r *Renderer) *headless.Swapchain { return r.sc.(*headless.Swapchain) }

func commands(r *Renderer, slot int) []string {
	return r.frames[slot].cb.(*headless.CmdBuffer).Commands()
}

func count(cmds []string, cmd string) (n int) {
	for _, c := range cmds {
		if c == cmd {
			n++
		}
	}
	return
}

// demo creates a scene with a camera, a shadow-casting
// spot light, a point light and a cube.
func demo() *scene.Scene {
	s := scene.New()

	e := s.Create().Get()
	tf := scene.NewTransform()
	tf.Position = linear.V3{0, 2, 6}
	scene.Set(e, tf)
	scene.Set(e, scene.Camera{YFov: math.Pi / 4, Znear: 0.1, Zfar: 50})

	e = s.Create().Get()
	tf = scene.NewTransform()
	tf.Position = linear.V3{0, 5, 0}
	tf.Rotation.Rotate(-math.Pi/2, &linear.V3{1, 0, 0})
	scene.Set(e, tf)
	scene.Set(e, scene.Light{
		Type:       scene.SpotLight,
		Color:      linear.V3{1, 1, 1},
		Intensity:  50,
		Range:      20,
		InnerAngle: 0.3,
		OuterAngle: 0.6,
		CastShadow: true,
	})

	e = s.Create().Get()
	scene.Set(e, scene.NewTransform())
	scene.Set(e, scene.Light{Type: scene.PointLight, Color: linear.V3{1, 0, 0}, Intensity: 10, Range: 5, CastShadow: true})

	e = s.Create().Get()
	scene.Set(e, scene.NewTransform())
	scene.Set(e, scene.Model{Mesh: "cube", Material: "red", CastShadow: true})
	return s
}

func renderFrame(t *testing.T, r *Renderer, s *scene.Scene) {
	t.Helper()
	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.Render(s))
	require.NoError(t, r.EndFrame())
}

func TestNew(t *testing.T) {
	r, gpu, _ := newRenderer(t, testConfig())
	w, h := r.Extent()
	if w != 320 || h != 240 {
		t.Fatalf("Renderer.Extent:\nhave %dx%d\nwant 320x240", w, h)
	}
	assert.Len(t, r.frames, 2)
	// One image more than frames in flight.
	assert.Len(t, r.tgt.fbs, 3)
	assert.Len(t, r.tgt.cull, 2)
	assert.Equal(t, 1, gpu.Count("Swapchain"))
	assert.Equal(t, 2, gpu.Count("RenderPass"))
	assert.Equal(t, driver.PFIFO, swapchain(r).Mode)
	require.NoError(t, r.Free())
	if n := gpu.Live(); n != 0 {
		t.Fatalf("Renderer.Free: gpu.Live()\nhave %d\nwant 0", n)
	}
}

type noPresenter struct{ driver.GPU }

func TestNewErrors(t *testing.T) {
	gpu := headless.New()
	sf := headless.NewSurface(320, 240)

	_, err := New(noPresenter{gpu}, sf, testConfig())
	assert.ErrorIs(t, err, ErrNoPresenter)

	cfg := testConfig()
	cfg.FramesInFlight = 0
	_, err = New(gpu, sf, cfg)
	assert.ErrorIs(t, err, ErrConfig)

	// Failure past swapchain creation frees everything.
	_, err = New(gpu, headless.NewSurface(0, 0), testConfig())
	assert.ErrorIs(t, err, driver.ErrSurface)
	if n := gpu.Live(); n != 0 {
		t.Fatalf("New: gpu.Live()\nhave %d\nwant 0", n)
	}
}

func TestFrames(t *testing.T) {
	r, gpu, _ := newRenderer(t, testConfig())
	_, err := r.AddMesh("cube", Cube())
	require.NoError(t, err)
	r.SetMaterial("red", Material{BaseColor: linear.V4{1, 0, 0, 1}, Roughness: 0.3})
	s := demo()

	const n = 5
	for i := range n {
		if r.cur != i%2 {
			t.Fatalf("Renderer.cur:\nhave %d\nwant %d", r.cur, i%2)
		}
		renderFrame(t, r, s)
		st := r.Stats()
		assert.Equal(t, int64(i+1), st.Frame)
		assert.Equal(t, 1, st.Drawables)
		assert.Equal(t, 2, st.Lights)
		// Point lights cast no shadows.
		assert.Equal(t, 1, st.Shadows)
		assert.Zero(t, st.Skipped)
		if i >= 2 {
			// Sets of a slot are recycled once its
			// previous frame completes.
			assert.Positive(t, st.SetsReused)
		}
	}
	cmds := commands(r, 0)
	assert.Equal(t, 2, count(cmds, "BeginPass"))
	assert.Equal(t, 1, count(cmds, "NextSubpass"))
	assert.Equal(t, 1, count(cmds, "Dispatch"))
	// One shadow tile and the geometry subpass.
	assert.Equal(t, 2, count(cmds, "DrawIndexed"))
	// Lighting.
	assert.Equal(t, 1, count(cmds, "Draw"))
	assert.Less(t, slices.Index(cmds, "Dispatch"), slices.Index(cmds, "BeginPass"))

	require.NoError(t, r.Free())
	assert.Equal(t, n, gpu.Commits())
	assert.Equal(t, 0, gpu.Live())
}

func TestFrameLayouts(t *testing.T) {
	r, _, _ := newRenderer(t, testConfig())
	defer r.Free()
	_, err := r.AddMesh("cube", Cube())
	require.NoError(t, err)
	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.Render(demo()))

	fd := &r.fd
	nl, ns := fd.frame.Counts()
	assert.Equal(t, 2, nl)
	assert.Equal(t, 1, ns)
	assert.Equal(t, 0, fd.lights[0].Shadow())
	assert.Equal(t, -1, fd.lights[1].Shadow())
	x, y, w, h := fd.shadows[0].Tile()
	assert.Equal(t, [4]float32{0, 0, 0.5, 0.5}, [4]float32{x, y, w, h})
	// Unknown materials use the default.
	assert.Equal(t, DefaultMaterial.BaseColor[:], []float32(fd.draws[0].layout[32:36]))

	require.NoError(t, r.EndFrame())
}

func TestEmptyFrame(t *testing.T) {
	r, _, _ := newRenderer(t, testConfig())
	defer r.Free()
	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.EndFrame())
	cmds := commands(r, 0)
	assert.Equal(t, 2, count(cmds, "BeginPass"))
	assert.Zero(t, count(cmds, "DrawIndexed"))
	assert.Equal(t, 1, swapchain(r).Presented())

	// A scene without camera uses a default one.
	s := scene.New()
	scene.Set(s.Create().Get(), scene.Light{Type: scene.DirectLight, Intensity: 1})
	renderFrame(t, r, s)
	assert.Equal(t, 1, r.Stats().Lights)
}

func TestFrameOrder(t *testing.T) {
	r, _, _ := newRenderer(t, testConfig())
	defer r.Free()
	assert.ErrorIs(t, r.Render(nil), ErrFrame)
	assert.ErrorIs(t, r.EndFrame(), ErrFrame)
	require.NoError(t, r.BeginFrame())
	assert.ErrorIs(t, r.BeginFrame(), ErrFrame)
	require.NoError(t, r.Render(nil))
	assert.ErrorIs(t, r.Render(nil), ErrFrame)
	assert.ErrorIs(t, r.Rebuild(testConfig()), ErrFrame)
	_, err := r.AddMesh("cube", Cube())
	assert.ErrorIs(t, err, ErrFrame)
	require.NoError(t, r.EndFrame())
}

func TestSuboptimal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	defer logging.Set(logging.Set(zap.New(core)))

	r, gpu, sf := newRenderer(t, testConfig())
	defer r.Free()
	sc := swapchain(r)
	nfb := gpu.Count("Framebuf")

	sc.ScriptNext(driver.ErrSuboptimal)
	renderFrame(t, r, nil)
	assert.True(t, r.recreate)
	assert.Equal(t, 1, logs.FilterMessage("suboptimal swapchain").Len())
	assert.Equal(t, 1, sc.Presented())

	// Recreation happens at the start of the next frame.
	sf.Resize(640, 480)
	renderFrame(t, r, nil)
	assert.False(t, r.recreate)
	assert.Greater(t, gpu.Count("Framebuf"), nfb)
	w, h := r.Extent()
	assert.Equal(t, [2]int{640, 480}, [2]int{w, h})
}

func TestSwapchainError(t *testing.T) {
	r, _, sf := newRenderer(t, testConfig())
	defer r.Free()
	sc := swapchain(r)

	sf.Resize(100, 50)
	sc.ScriptNext(driver.ErrSwapchain)
	renderFrame(t, r, nil)
	w, h := r.Extent()
	assert.Equal(t, [2]int{100, 50}, [2]int{w, h})

	sc.ScriptPresent(driver.ErrSwapchain)
	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.EndFrame())
	assert.True(t, r.recreate)
	renderFrame(t, r, nil)
	assert.False(t, r.recreate)
}

func TestShadowOverflow(t *testing.T) {
	lights := func(n int) *scene.Scene {
		s := scene.New()
		for range n {
			e := s.Create().Get()
			scene.Set(e, scene.NewTransform())
			scene.Set(e, scene.Light{Type: scene.DirectLight, Intensity: 1, CastShadow: true})
		}
		return s
	}

	cfg := testConfig()
	cfg.ShadowAtlas = 512
	cfg.ShadowTile = 256
	cfg.ShadowOverflow = OverflowFail
	r, gpu, _ := newRenderer(t, cfg)
	require.NoError(t, r.BeginFrame())
	assert.ErrorIs(t, r.Render(lights(5)), ErrShadowOverflow)
	// The frame is still presented.
	require.NoError(t, r.EndFrame())
	assert.Equal(t, 1, swapchain(r).Presented())
	renderFrame(t, r, lights(4))
	assert.Equal(t, 4, r.Stats().Shadows)
	require.NoError(t, r.Free())
	assert.Equal(t, 0, gpu.Live())

	core, logs := observer.New(zapcore.WarnLevel)
	defer logging.Set(logging.Set(zap.New(core)))
	cfg.ShadowOverflow = OverflowDrop
	r, _, _ = newRenderer(t, cfg)
	defer r.Free()
	renderFrame(t, r, lights(5))
	st := r.Stats()
	assert.Equal(t, 5, st.Lights)
	assert.Equal(t, 4, st.Shadows)
	assert.Equal(t, 1, st.DroppedShadows)
	assert.Equal(t, 1, logs.FilterMessage("shadow atlas full").Len())
	assert.Equal(t, -1, r.fd.lights[4].Shadow())
}

func TestCommitFailure(t *testing.T) {
	cfg := testConfig()
	cfg.FramesInFlight = 1
	r, gpu, _ := newRenderer(t, cfg)
	defer r.Free()
	lost := errors.New("device lost")
	gpu.FailCommit(lost)
	renderFrame(t, r, nil)
	err := r.BeginFrame()
	assert.ErrorIs(t, err, lost)
	// The slot is usable again.
	renderFrame(t, r, nil)
	assert.Equal(t, 1, gpu.Commits())
}

func TestMeshes(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDrawable = 2
	r, gpu, _ := newRenderer(t, cfg)

	id, err := r.AddMesh("cube", Cube())
	require.NoError(t, err)
	_, err = r.AddMesh("cube", Plane(1))
	assert.ErrorIs(t, err, ErrMeshExists)
	_, err = r.AddMesh("bad", &MeshData{})
	assert.ErrorIs(t, err, ErrMeshData)
	_, err = r.AddMesh("plane", Plane(4))
	require.NoError(t, err)
	if x, ok := r.Mesh("cube"); !ok || x != id {
		t.Fatalf("Renderer.Mesh:\nhave %d, %t\nwant %d, true", x, ok, id)
	}

	s := scene.New()
	for _, m := range [...]string{"cube", "plane", "cube", "sphere"} {
		e := s.Create().Get()
		scene.Set(e, scene.NewTransform())
		scene.Set(e, scene.Model{Mesh: m})
	}
	renderFrame(t, r, s)
	st := r.Stats()
	assert.Equal(t, 2, st.Drawables)
	assert.Equal(t, 2, st.Skipped)
	cmds := commands(r, 0)
	assert.Equal(t, 1, count(cmds, "DrawIndexed"))
	// Plane and lighting.
	assert.Equal(t, 2, count(cmds, "Draw"))

	ok, err := r.RemoveMesh("plane")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.RemoveMesh("plane")
	require.NoError(t, err)
	assert.False(t, ok)
	renderFrame(t, r, s)
	assert.Equal(t, 2, r.Stats().Drawables)
	assert.Equal(t, 2, r.Stats().Skipped)

	require.NoError(t, r.Free())
	assert.Equal(t, 0, gpu.Live())
}

func TestRebuild(t *testing.T) {
	r, gpu, _ := newRenderer(t, testConfig())
	_, err := r.AddMesh("cube", Cube())
	require.NoError(t, err)
	renderFrame(t, r, demo())

	cfg := testConfig()
	cfg.FramesInFlight = 3
	cfg.PresentMode = "mailbox"
	require.NoError(t, r.Rebuild(cfg))
	assert.Len(t, r.frames, 3)
	assert.Equal(t, driver.PMailbox, swapchain(r).Mode)
	assert.Equal(t, cfg, r.Config())
	for i := range 4 {
		renderFrame(t, r, demo())
		assert.Equal(t, (i+1)%3, r.cur)
	}
	// Meshes survive.
	assert.Equal(t, 1, r.Stats().Drawables)

	bad := cfg
	bad.ShadowTile = 0
	assert.ErrorIs(t, r.Rebuild(bad), ErrConfig)
	assert.Equal(t, cfg, r.Config())

	require.NoError(t, r.Free())
	assert.Equal(t, 0, gpu.Live())
}
