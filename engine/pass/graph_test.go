// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package pass

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/driver/headless"
)

func shader(t *testing.T, gpu driver.GPU) driver.ShaderFunc {
	t.Helper()
	code, err := gpu.NewShaderCode([]byte{0x03, 0x02, 0x23, 0x07})
	require.NoError(t, err)
	t.Cleanup(code.Destroy)
	return driver.ShaderFunc{Code: code, Name: "main"}
}

func gbuffer() []AttachmentDesc {
	return []AttachmentDesc{
		{
			Name:    "albedo",
			Format:  driver.RGBA8un,
			Samples: 1,
			Load:    [2]driver.LoadOp{driver.LClear},
			Store:   [2]driver.StoreOp{driver.SDontCare},
			Layout:  [2]driver.Layout{driver.LUndefined, driver.LColorTarget},
			Usage:   Color | Input,
			Clear:   driver.ClearValue{Color: [4]float32{0, 0, 0, 1}},
		},
		{
			Name:    "normal",
			Format:  driver.RGBA16f,
			Samples: 1,
			Load:    [2]driver.LoadOp{driver.LClear},
			Layout:  [2]driver.Layout{driver.LUndefined, driver.LColorTarget},
			Usage:   Color | Input,
		},
		{
			Name:    "depth",
			Format:  driver.D32f,
			Samples: 1,
			Load:    [2]driver.LoadOp{driver.LClear},
			Layout:  [2]driver.Layout{driver.LUndefined, driver.LDSTarget},
			Clear:   driver.ClearValue{Color: [4]float32{1, 1, 1, 1}, Depth: 1},
		},
		{
			Name:    Swapchain,
			Format:  driver.BGRA8sRGB,
			Samples: 1,
			Store:   [2]driver.StoreOp{driver.SStore},
			Layout:  [2]driver.Layout{driver.LUndefined, driver.LPresent},
		},
	}
}

func deferred(fn driver.ShaderFunc) *GraphBuilder {
	return NewGraph("deferred").
		Attachment(gbuffer()...).
		Subpass(SubpassDesc{
			Name:     "geometry",
			Vertex:   fn,
			Fragment: fn,
			Color:    []string{"albedo", "normal"},
			Depth:    "depth",
			Bindings: []Binding{
				{Set: 0, Nr: 0, Type: driver.DConstant, Stages: driver.SVertex | driver.SFragment, Len: 1},
				{Set: 1, Nr: 0, Type: driver.DConstant, Stages: driver.SVertex, Len: 1},
			},
		}, SubpassDesc{
			Name:     "lighting",
			Vertex:   fn,
			Fragment: fn,
			Color:    []string{Swapchain},
			Inputs:   []string{"albedo", "normal", "depth"},
			Bindings: []Binding{
				{Set: 0, Nr: 0, Type: driver.DConstant, Stages: driver.SVertex | driver.SFragment, Len: 1},
				{Set: 1, Nr: 2, Type: driver.DInput, Stages: driver.SFragment, Len: 1},
				{Set: 1, Nr: 0, Type: driver.DInput, Stages: driver.SFragment, Len: 1},
				{Set: 1, Nr: 1, Type: driver.DInput, Stages: driver.SFragment, Len: 1},
			},
		}).
		Dependency(Dependency{
			Src:     Swapchain,
			Dst:     "geometry",
			Barrier: driver.Barrier{SyncBefore: driver.SColorOutput, SyncAfter: driver.SColorOutput, AccessAfter: driver.AColorWrite},
		}, Dependency{
			Src:     "geometry",
			Dst:     "lighting",
			Barrier: driver.Barrier{SyncBefore: driver.SColorOutput | driver.SDSOutput, SyncAfter: driver.SFragmentShading, AccessBefore: driver.AColorWrite | driver.ADSWrite, AccessAfter: driver.AInputRead},
		}, Dependency{
			Src:     "lighting",
			Dst:     Swapchain,
			Barrier: driver.Barrier{SyncBefore: driver.SColorOutput, AccessBefore: driver.AColorWrite},
		})
}

func TestBuild(t *testing.T) {
	gpu := headless.New()
	fn := shader(t, gpu)
	g, err := deferred(fn).Build(gpu)
	require.NoError(t, err)
	defer g.Destroy()

	assert.Equal(t, "deferred", g.Name())
	assert.Equal(t, 2, g.Len())
	for i, name := range [...]string{"albedo", "normal", "depth", Swapchain} {
		if j, ok := g.Attachment(name); !ok || j != i {
			t.Fatalf("Graph.Attachment(%q):\nhave %d, %t\nwant %d, true", name, j, ok, i)
		}
	}
	_, ok := g.Attachment("foo")
	assert.False(t, ok)
	if i, _ := g.Subpass("lighting"); i != 1 {
		t.Fatalf("Graph.Subpass(\"lighting\"):\nhave %d\nwant 1", i)
	}

	rp := g.RenderPass().(*headless.RenderPass)
	assert.Equal(t, []int{0, 1}, rp.Sub[0].Color)
	assert.Equal(t, 2, rp.Sub[0].DS)
	assert.Equal(t, []int{3}, rp.Sub[1].Color)
	assert.Equal(t, []int{0, 1, 2}, rp.Sub[1].Input)
	assert.Equal(t, -1, rp.Sub[1].DS)
	assert.Equal(t, driver.LPresent, rp.Att[3].Layout[1])

	for i := range g.Len() {
		pl := g.Pipeline(i).(*headless.Pipeline)
		require.NotNil(t, pl.Graph)
		if pl.Graph.Subpass != i || pl.Graph.Pass != g.RenderPass() || pl.Graph.Desc != g.Table(i) {
			t.Fatalf("Graph.Pipeline(%d): not created for its subpass", i)
		}
	}

	b := g.Bindings(1, 1)
	assert.Equal(t, []int{0, 1, 2}, []int{b[0].Nr, b[1].Nr, b[2].Nr})
	assert.Equal(t, 2, g.Sets(0))
	assert.Len(t, g.Layout(1, 1).Descriptors(), 3)
}

func TestBuildOrder(t *testing.T) {
	gpu := headless.New()
	fn := shader(t, gpu)
	g, err := deferred(fn).Build(gpu)
	require.NoError(t, err)
	defer g.Destroy()
	// Set 0 is shared by both subpasses.
	want := []string{
		"ShaderCode",
		"RenderPass",
		"DescHeap", "DescHeap", "DescTable", "Pipeline",
		"DescHeap", "DescTable", "Pipeline",
	}
	assert.Equal(t, want, gpu.Log())
}

func TestDependencies(t *testing.T) {
	gpu := headless.New()
	g, err := deferred(shader(t, gpu)).Build(gpu)
	require.NoError(t, err)
	defer g.Destroy()
	dep := g.Dependencies()
	require.Len(t, dep, 3)
	if dep[0].Src != driver.External || dep[0].Dst != 0 {
		t.Fatalf("Graph.Dependencies()[0]:\nhave %d -> %d\nwant %d -> 0", dep[0].Src, dep[0].Dst, driver.External)
	}
	if dep[1].Src != 0 || dep[1].Dst != 1 {
		t.Fatalf("Graph.Dependencies()[1]:\nhave %d -> %d\nwant 0 -> 1", dep[1].Src, dep[1].Dst)
	}
	if dep[2].Src != 1 || dep[2].Dst != driver.External {
		t.Fatalf("Graph.Dependencies()[2]:\nhave %d -> %d\nwant 1 -> %d", dep[2].Src, dep[2].Dst, driver.External)
	}
	assert.Equal(t, driver.AInputRead, dep[1].AccessAfter)
	assert.Equal(t, dep, g.RenderPass().(*headless.RenderPass).Dep)
}

func TestLayoutSharing(t *testing.T) {
	gpu := headless.New()
	g, err := deferred(shader(t, gpu)).Build(gpu)
	require.NoError(t, err)
	defer g.Destroy()
	if g.Layout(0, 0) != g.Layout(1, 0) {
		t.Fatal("Graph.Layout: identical sets should share a heap")
	}
	if g.Layout(0, 1) == g.Layout(1, 1) {
		t.Fatal("Graph.Layout: distinct sets should not share a heap")
	}
	assert.Equal(t, 3, gpu.Count("DescHeap"))
}

func TestSparseBindings(t *testing.T) {
	gpu := headless.New()
	g, err := NewGraph("shadow").
		Attachment(AttachmentDesc{Name: "atlas", Format: driver.D16un, Samples: 1}).
		Subpass(SubpassDesc{
			Name:   "depth",
			Vertex: shader(t, gpu),
			Depth:  "atlas",
			Bindings: []Binding{
				{Set: 2, Nr: 7, Type: driver.DConstant, Stages: driver.SVertex, Len: 1},
				{Set: 2, Nr: 3, Type: driver.DConstant, Stages: driver.SVertex, Len: 1},
			},
		}).
		Build(gpu)
	require.NoError(t, err)
	defer g.Destroy()
	assert.Equal(t, 3, g.Sets(0))
	assert.Empty(t, g.Layout(0, 0).Descriptors())
	assert.Same(t, g.Layout(0, 0), g.Layout(0, 1))
	assert.Equal(t, []Binding{
		{Set: 2, Nr: 3, Type: driver.DConstant, Stages: driver.SVertex, Len: 1},
		{Set: 2, Nr: 7, Type: driver.DConstant, Stages: driver.SVertex, Len: 1},
	}, g.Bindings(0, 2))
	assert.Equal(t, 3, g.Table(0).Len())
	assert.Nil(t, g.Pipeline(0).(*headless.Pipeline).Graph.FragFunc.Code)
}

func TestUnresolvedName(t *testing.T) {
	gpu := headless.New()
	b := deferred(shader(t, gpu))
	b.sub[0].Color = []string{"albedo", "foo"}
	g, err := b.Build(gpu)
	assert.Nil(t, g)
	require.ErrorIs(t, err, ErrUnresolvedName)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "deferred", cerr.Pass)
	assert.Contains(t, err.Error(), `"foo"`)
	assert.Equal(t, 1, gpu.Live(), "only the shader code should be alive")

	b = deferred(shader(t, gpu))
	b.Dependency(Dependency{Src: "geometry", Dst: "bar"})
	_, err = b.Build(gpu)
	assert.ErrorIs(t, err, ErrUnresolvedName)
}

func TestDuplicateBinding(t *testing.T) {
	gpu := headless.New()
	b := deferred(shader(t, gpu))
	b.sub[0].Bindings = append(b.sub[0].Bindings,
		Binding{Set: 0, Nr: 1, Type: driver.DTexture, Stages: driver.SFragment, Len: 1},
		Binding{Set: 0, Nr: 1, Type: driver.DSampler, Stages: driver.SFragment, Len: 1},
	)
	_, err := b.Build(gpu)
	assert.ErrorIs(t, err, ErrDuplicateBinding)

	// Same pair in different subpasses is fine.
	gpu = headless.New()
	g, err := deferred(shader(t, gpu)).Build(gpu)
	require.NoError(t, err)
	g.Destroy()
}

func TestConfigErrors(t *testing.T) {
	gpu := headless.New()
	fn := shader(t, gpu)
	_, err := NewGraph("bad").
		Attachment(
			AttachmentDesc{Name: "a", Format: driver.RGBA8un, Samples: 0},
			AttachmentDesc{Name: "a", Format: driver.FInvalid, Samples: 1},
			AttachmentDesc{Name: Swapchain, Format: driver.BGRA8un, Samples: 1},
		).
		Subpass(
			SubpassDesc{Name: "s", Color: []string{"a"}},
			SubpassDesc{Name: "s", Vertex: fn, Bindings: []Binding{{Len: 0}}},
			SubpassDesc{Name: "t", Vertex: fn},
		).
		Dependency(
			Dependency{Src: Swapchain, Dst: Swapchain},
			Dependency{Src: "t", Dst: "s"},
		).
		Build(gpu)
	require.Error(t, err)
	for _, kind := range [...]error{
		ErrInvalidCount,
		ErrDuplicateName,
		ErrInvalidFormat,
		ErrSwapchainOps,
		ErrNoShader,
		ErrDependencyOrder,
	} {
		if !errors.Is(err, kind) {
			t.Fatalf("GraphBuilder.Build: error should contain %v\nhave %v", kind, err)
		}
	}
	for _, e := range multierr.Errors(err) {
		var cerr *ConfigError
		require.ErrorAs(t, e, &cerr)
	}
	assert.GreaterOrEqual(t, len(multierr.Errors(err)), 7)

	_, err = NewGraph("empty").Build(gpu)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestBuildTwice(t *testing.T) {
	gpu := headless.New()
	b := deferred(shader(t, gpu))
	g, err := b.Build(gpu)
	require.NoError(t, err)
	defer g.Destroy()
	_, err = b.Build(gpu)
	assert.ErrorIs(t, err, ErrBuilt)
}

func TestDriverFailure(t *testing.T) {
	gpu := headless.New()
	fn := shader(t, gpu)
	// Blend states must match the number of color targets.
	b := deferred(fn)
	b.sub[1].Blend = driver.BlendState{Color: make([]driver.ColorBlend, 2)}
	g, err := b.Build(gpu)
	assert.Nil(t, g)
	require.ErrorIs(t, err, headless.ErrInvalid)
	var cerr *ConfigError
	assert.False(t, errors.As(err, &cerr))
	assert.Equal(t, 1, gpu.Live())
}

func TestDestroy(t *testing.T) {
	gpu := headless.New()
	fn := shader(t, gpu)
	g, err := deferred(fn).Build(gpu)
	require.NoError(t, err)
	sc, err := gpu.NewSwapchain(headless.NewSurface(64, 64), 2, driver.PFIFO)
	require.NoError(t, err)
	im, err := gpu.NewImage(driver.RGBA16f, driver.Dim3D{Width: 64, Height: 64}, 3, 1, 1, driver.URenderTarget)
	require.NoError(t, err)
	var views []driver.ImageView
	for i := range 3 {
		v, err := im.NewView(driver.IView2D, i, 1, 0, 1)
		require.NoError(t, err)
		views = append(views, v)
	}
	views = append(views, sc.Views()[0])
	_, err = g.NewFB(views[:3], 64, 64)
	assert.Error(t, err)
	fb, err := g.NewFB(views, 64, 64)
	require.NoError(t, err)

	fb.Destroy()
	for _, v := range views {
		v.Destroy()
	}
	im.Destroy()
	sc.Destroy()
	g.Destroy()
	g.Destroy()
	assert.Equal(t, 1, gpu.Live())
}

func TestClearValues(t *testing.T) {
	gpu := headless.New()
	g, err := deferred(shader(t, gpu)).Build(gpu)
	require.NoError(t, err)
	defer g.Destroy()
	cv := g.ClearValues()
	require.Len(t, cv, 4)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, cv[0].Color)
	// Color is not relevant to depth attachments.
	assert.Equal(t, driver.ClearValue{Depth: 1}, cv[2])
	assert.Equal(t, driver.ClearValue{}, cv[3])
}
