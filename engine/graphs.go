// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/engine/internal/shader"
	"github.com/gviegas/deferred/engine/pass"
)

// G-buffer formats.
const (
	albedoFormat = driver.RGBA8un
	normalFormat = driver.RGBA16f
	depthFormat  = driver.D32f
	atlasFormat  = driver.D16un
)

// Attachment and subpass names.
const (
	attAtlas  = "atlas"
	attAlbedo = "albedo"
	attNormal = "normal"
	attDepth  = "depth"

	subDepth    = "depth"
	subGeometry = "geometry"
	subLighting = "lighting"
)

// layout pairs a descriptor heap with the bindings it
// was created from.
type layout struct {
	heap     driver.DescHeap
	bindings []pass.Binding
}

// graphs holds the compiled passes of a Renderer.
type graphs struct {
	shadow   *pass.Graph
	deferred *pass.Graph
	cull     *pass.Compute

	shadowTile layout
	shadowDraw layout
	frame      layout
	draw       layout
	light      layout
	gbuffer    layout
	cullFrame  layout
	cullLight  layout
	cullOut    layout
}

func graphLayout(g *pass.Graph, subpass, set int) layout {
	return layout{g.Layout(subpass, set), g.Bindings(subpass, set)}
}

func computeLayout(c *pass.Compute, set int) layout {
	return layout{c.Layout(set), c.Bindings(set)}
}

// shadowGraph describes the shadow pass: a single
// depth-only subpass that renders every caster into the
// shadow atlas, one tile per light.
func shadowGraph(code *shader.Code) *pass.GraphBuilder {
	return pass.NewGraph("shadow").
		Attachment(pass.AttachmentDesc{
			Name:    attAtlas,
			Format:  atlasFormat,
			Samples: 1,
			Load:    [2]driver.LoadOp{driver.LClear},
			Store:   [2]driver.StoreOp{driver.SStore},
			Layout:  [2]driver.Layout{driver.LUndefined, driver.LShaderRead},
			Usage:   pass.Depth,
			Clear:   driver.ClearValue{Depth: 1},
		}).
		Subpass(pass.SubpassDesc{
			Name:     subDepth,
			Vertex:   code.Vertex(shader.Shadow),
			Input:    shader.ShadowInput(),
			Depth:    attAtlas,
			Bindings: shader.ShadowBindings(),
			Topology: driver.TTriangle,
			Raster: driver.RasterState{
				Cull:      driver.CBack,
				DepthBias: true,
				BiasValue: 1.25,
				BiasSlope: 1.75,
			},
			DS: driver.DSState{DepthTest: true, DepthWrite: true, DepthCmp: driver.CLessEqual},
		}).
		Dependency(pass.Dependency{
			Src: subDepth,
			Dst: pass.Swapchain,
			Barrier: driver.Barrier{
				SyncBefore:   driver.SDSOutput,
				SyncAfter:    driver.SFragmentShading,
				AccessBefore: driver.ADSWrite,
				AccessAfter:  driver.AShaderRead,
			},
		})
}

// deferredGraph describes the main pass. The geometry
// subpass fills the G-buffer; the lighting subpass reads
// it as input attachments and writes the swapchain.
func deferredGraph(code *shader.Code, swapchain driver.PixelFmt) *pass.GraphBuilder {
	gbuf := func(name string, pf driver.PixelFmt, final driver.Layout, u pass.Usage, cv driver.ClearValue) pass.AttachmentDesc {
		return pass.AttachmentDesc{
			Name:    name,
			Format:  pf,
			Samples: 1,
			Load:    [2]driver.LoadOp{driver.LClear},
			Store:   [2]driver.StoreOp{driver.SDontCare},
			Layout:  [2]driver.Layout{driver.LUndefined, final},
			Usage:   u,
			Clear:   cv,
		}
	}
	return pass.NewGraph("deferred").
		Attachment(
			gbuf(attAlbedo, albedoFormat, driver.LColorTarget, pass.Color|pass.Input, driver.ClearValue{}),
			gbuf(attNormal, normalFormat, driver.LColorTarget, pass.Color|pass.Input, driver.ClearValue{Color: [4]float32{0.5, 0.5, 0.5, 0}}),
			gbuf(attDepth, depthFormat, driver.LDSTarget, pass.Depth|pass.Input, driver.ClearValue{Depth: 1}),
			pass.AttachmentDesc{
				Name:    pass.Swapchain,
				Format:  swapchain,
				Samples: 1,
				Load:    [2]driver.LoadOp{driver.LDontCare},
				Store:   [2]driver.StoreOp{driver.SStore},
				Layout:  [2]driver.Layout{driver.LUndefined, driver.LPresent},
				Usage:   pass.Color,
			},
		).
		Subpass(pass.SubpassDesc{
			Name:     subGeometry,
			Vertex:   code.Vertex(shader.Geometry),
			Fragment: code.Fragment(shader.Geometry),
			Input:    shader.VertexInput(),
			Color:    []string{attAlbedo, attNormal},
			Depth:    attDepth,
			Bindings: shader.GeometryBindings(),
			Topology: driver.TTriangle,
			Raster:   driver.RasterState{Cull: driver.CBack},
			DS:       driver.DSState{DepthTest: true, DepthWrite: true, DepthCmp: driver.CLess},
		}, pass.SubpassDesc{
			Name:     subLighting,
			Vertex:   code.Vertex(shader.Lighting),
			Fragment: code.Fragment(shader.Lighting),
			Color:    []string{pass.Swapchain},
			Inputs:   []string{attAlbedo, attNormal, attDepth},
			Bindings: shader.LightingBindings(),
			Topology: driver.TTriangle,
		}).
		Dependency(pass.Dependency{
			Src: pass.Swapchain,
			Dst: subGeometry,
			Barrier: driver.Barrier{
				SyncBefore:  driver.SColorOutput,
				SyncAfter:   driver.SColorOutput,
				AccessAfter: driver.AColorWrite,
			},
		}, pass.Dependency{
			Src: subGeometry,
			Dst: subLighting,
			Barrier: driver.Barrier{
				SyncBefore:   driver.SColorOutput | driver.SDSOutput,
				SyncAfter:    driver.SFragmentShading,
				AccessBefore: driver.AColorWrite | driver.ADSWrite,
				AccessAfter:  driver.AInputRead,
			},
		}, pass.Dependency{
			Src: subLighting,
			Dst: pass.Swapchain,
			Barrier: driver.Barrier{
				SyncBefore:   driver.SColorOutput,
				SyncAfter:    driver.SAll,
				AccessBefore: driver.AColorWrite,
			},
		})
}

// cullCompute describes the light culling pass.
func cullCompute(code *shader.Code) *pass.ComputeBuilder {
	return pass.NewCompute("cull").
		Shader(code.Compute(shader.Cull)).
		Binding(shader.CullBindings()...)
}

// newGraphs builds every pass.
func newGraphs(gpu driver.GPU, code *shader.Code, swapchain driver.PixelFmt) (g *graphs, err error) {
	g = new(graphs)
	defer func() {
		if err != nil {
			g.destroy()
			g = nil
		}
	}()
	if g.shadow, err = shadowGraph(code).Build(gpu); err != nil {
		return
	}
	if g.deferred, err = deferredGraph(code, swapchain).Build(gpu); err != nil {
		return
	}
	if g.cull, err = cullCompute(code).Build(gpu); err != nil {
		return
	}
	g.shadowTile = graphLayout(g.shadow, 0, shader.ShadowSet)
	g.shadowDraw = graphLayout(g.shadow, 0, shader.DrawableSet)
	g.frame = graphLayout(g.deferred, 0, shader.FrameSet)
	g.draw = graphLayout(g.deferred, 0, shader.DrawableSet)
	g.light = graphLayout(g.deferred, 1, shader.LightSet)
	g.gbuffer = graphLayout(g.deferred, 1, shader.GBufferSet)
	g.cullFrame = computeLayout(g.cull, shader.FrameSet)
	g.cullLight = computeLayout(g.cull, shader.LightSet)
	g.cullOut = computeLayout(g.cull, shader.OutputSet)
	return
}

// destroy destroys every pass.
func (g *graphs) destroy() {
	if g.cull != nil {
		g.cull.Destroy()
	}
	if g.deferred != nil {
		g.deferred.Destroy()
	}
	if g.shadow != nil {
		g.shadow.Destroy()
	}
	*g = graphs{}
}
