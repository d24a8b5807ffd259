// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package pass

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/internal/logging"
)

// GraphBuilder accumulates the description of a render
// pass. Attachments may be declared in any order relative
// to the subpasses that use them; subpasses execute in
// declaration order.
// A GraphBuilder can be built only once.
type GraphBuilder struct {
	name  string
	att   []AttachmentDesc
	sub   []SubpassDesc
	dep   []Dependency
	built bool
}

// NewGraph creates a new GraphBuilder.
func NewGraph(name string) *GraphBuilder { return &GraphBuilder{name: name} }

// Attachment declares an attachment.
func (b *GraphBuilder) Attachment(a ...AttachmentDesc) *GraphBuilder {
	b.att = append(b.att, a...)
	return b
}

// Subpass declares a subpass.
func (b *GraphBuilder) Subpass(s ...SubpassDesc) *GraphBuilder {
	for _, s := range s {
		s.Color = slices.Clone(s.Color)
		s.Inputs = slices.Clone(s.Inputs)
		s.Bindings = slices.Clone(s.Bindings)
		s.Input = slices.Clone(s.Input)
		b.sub = append(b.sub, s)
	}
	return b
}

// Dependency declares a dependency.
// Dependencies are kept in declaration order and none is
// added implicitly.
func (b *GraphBuilder) Dependency(d ...Dependency) *GraphBuilder {
	b.dep = append(b.dep, d...)
	return b
}

// subpass is a built subpass.
type subpass struct {
	desc  SubpassDesc
	color []int
	input []int
	ds    int
	sets  [][]Binding
	heaps []driver.DescHeap
	table driver.DescTable
	pl    driver.Pipeline
}

// Graph is a built render pass.
// It must not be modified after Build returns it.
type Graph struct {
	name   string
	pass   driver.RenderPass
	att    []AttachmentDesc
	attIdx map[string]int
	sub    []subpass
	subIdx map[string]int
	dep    []driver.Dependency
	clear  []driver.ClearValue
	heaps  *heapCache
}

// resolve checks the description and resolves every name.
// It returns a Graph with no driver objects.
func (b *GraphBuilder) resolve() (*Graph, error) {
	var err error
	fail := func(kind error, format string, a ...any) {
		err = multierr.Append(err, &ConfigError{Pass: b.name, Kind: kind, Msg: fmt.Sprintf(format, a...)})
	}
	g := &Graph{
		name:   b.name,
		att:    slices.Clone(b.att),
		attIdx: make(map[string]int, len(b.att)),
		sub:    make([]subpass, len(b.sub)),
		subIdx: make(map[string]int, len(b.sub)),
		dep:    make([]driver.Dependency, 0, len(b.dep)),
		clear:  make([]driver.ClearValue, len(b.att)),
	}

	for i := range g.att {
		a := &g.att[i]
		switch {
		case a.Name == "":
			fail(ErrInvalidName, "attachment %d has no name", i)
		case g.hasAttachment(a.Name):
			fail(ErrDuplicateName, "attachment %q", a.Name)
		default:
			g.attIdx[a.Name] = i
		}
		if a.Format == driver.FInvalid {
			fail(ErrInvalidFormat, "attachment %q", a.Name)
		}
		if a.Samples < 1 {
			fail(ErrInvalidCount, "attachment %q has %d samples", a.Name, a.Samples)
		}
		if a.Name == Swapchain && (a.Store[0] != driver.SStore || a.Layout[1] != driver.LPresent) {
			fail(ErrSwapchainOps, "swapchain attachment must be stored in the present layout")
		}
		g.clear[i] = a.clearValue()
	}

	if len(b.sub) == 0 {
		fail(ErrInvalidCount, "no subpasses")
	}
	ref := func(s *SubpassDesc, what, name string) int {
		i, ok := g.attIdx[name]
		if !ok {
			fail(ErrUnresolvedName, "%s attachment %q of subpass %q", what, name, s.Name)
			return -1
		}
		return i
	}
	for i := range b.sub {
		s := &g.sub[i]
		s.desc = b.sub[i]
		d := &s.desc
		switch {
		case d.Name == "" || d.Name == Swapchain:
			fail(ErrInvalidName, "subpass %d named %q", i, d.Name)
		case g.hasSubpass(d.Name):
			fail(ErrDuplicateName, "subpass %q", d.Name)
		default:
			g.subIdx[d.Name] = i
		}
		if d.Vertex.Code == nil {
			fail(ErrNoShader, "subpass %q has no vertex function", d.Name)
		}
		s.color = make([]int, len(d.Color))
		for j, n := range d.Color {
			s.color[j] = ref(d, "color", n)
		}
		s.input = make([]int, len(d.Inputs))
		for j, n := range d.Inputs {
			s.input[j] = ref(d, "input", n)
		}
		s.ds = -1
		if d.Depth != "" {
			s.ds = ref(d, "depth", d.Depth)
		}
		s.sets = groupSets(d.Bindings, fmt.Sprintf("subpass %q", d.Name), fail)
	}

	for _, d := range b.dep {
		src, ok1 := g.endpoint(d.Src)
		dst, ok2 := g.endpoint(d.Dst)
		switch {
		case !ok1 || !ok2:
			fail(ErrUnresolvedName, "dependency %q -> %q", d.Src, d.Dst)
		case src == driver.External && dst == driver.External:
			fail(ErrSwapchainOps, "dependency from swapchain to swapchain")
		case src != driver.External && dst != driver.External && src > dst:
			fail(ErrDependencyOrder, "dependency %q -> %q", d.Src, d.Dst)
		default:
			g.dep = append(g.dep, driver.Dependency{Barrier: d.Barrier, Src: src, Dst: dst})
		}
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) hasAttachment(name string) bool {
	_, ok := g.attIdx[name]
	return ok
}

func (g *Graph) hasSubpass(name string) bool {
	_, ok := g.subIdx[name]
	return ok
}

// endpoint resolves a dependency endpoint.
func (g *Graph) endpoint(name string) (int, bool) {
	if name == Swapchain {
		return driver.External, true
	}
	i, ok := g.subIdx[name]
	return i, ok
}

// Build builds the render pass.
// Configuration errors are all reported together, as
// *ConfigError values combined by multierr; errors.Is
// can be used to test for specific kinds.
// If the driver fails to create an object, every object
// created so far is destroyed and the error is returned.
func (b *GraphBuilder) Build(gpu driver.GPU) (*Graph, error) {
	if b.built {
		return nil, &ConfigError{Pass: b.name, Kind: ErrBuilt, Msg: "Build called twice"}
	}
	b.built = true
	g, err := b.resolve()
	if err != nil {
		return nil, err
	}

	att := make([]driver.Attachment, len(g.att))
	for i := range g.att {
		att[i] = g.att[i].attachment()
	}
	sub := make([]driver.Subpass, len(g.sub))
	for i := range g.sub {
		sub[i] = driver.Subpass{Color: g.sub[i].color, Input: g.sub[i].input, DS: g.sub[i].ds}
	}
	if g.pass, err = gpu.NewRenderPass(att, sub, g.dep); err != nil {
		return nil, fmt.Errorf("pass %q: %w", g.name, err)
	}
	g.heaps = newHeapCache(gpu)
	for i := range g.sub {
		if err = g.buildSubpass(gpu, i); err != nil {
			g.Destroy()
			return nil, fmt.Errorf("pass %q: subpass %q: %w", g.name, g.sub[i].desc.Name, err)
		}
	}
	logging.L().Debug("render pass built",
		zap.String("pass", g.name),
		zap.Int("attachments", len(g.att)),
		zap.Int("subpasses", len(g.sub)),
		zap.Int("dependencies", len(g.dep)),
		zap.Int("heaps", len(g.heaps.heaps)))
	return g, nil
}

// buildSubpass creates the heaps, table and pipeline of
// subpass i. Pipelines must be created in subpass order.
func (g *Graph) buildSubpass(gpu driver.GPU, i int) (err error) {
	s := &g.sub[i]
	if s.heaps, s.table, err = g.heaps.table(s.sets); err != nil {
		return
	}
	samples := 1
	if len(s.color) > 0 {
		samples = g.att[s.color[0]].Samples
	} else if s.ds >= 0 {
		samples = g.att[s.ds].Samples
	}
	s.pl, err = gpu.NewPipeline(&driver.GraphState{
		VertFunc: s.desc.Vertex,
		FragFunc: s.desc.Fragment,
		Desc:     s.table,
		Input:    s.desc.Input,
		Topology: s.desc.Topology,
		Raster:   s.desc.Raster,
		Samples:  samples,
		DS:       s.desc.DS,
		Blend:    s.desc.Blend,
		Pass:     g.pass,
		Subpass:  i,
	})
	return
}

// Name returns the name of the pass.
func (g *Graph) Name() string { return g.name }

// RenderPass returns the driver's render pass.
func (g *Graph) RenderPass() driver.RenderPass { return g.pass }

// Len returns the number of subpasses.
func (g *Graph) Len() int { return len(g.sub) }

// Pipeline returns the pipeline of subpass i.
func (g *Graph) Pipeline(i int) driver.Pipeline { return g.sub[i].pl }

// Table returns the descriptor table of subpass i.
func (g *Graph) Table(i int) driver.DescTable { return g.sub[i].table }

// Attachment returns the index of the named attachment.
func (g *Graph) Attachment(name string) (int, bool) {
	i, ok := g.attIdx[name]
	return i, ok
}

// Attachments returns the attachment descriptions in
// index order.
func (g *Graph) Attachments() []AttachmentDesc { return slices.Clone(g.att) }

// Subpass returns the index of the named subpass.
func (g *Graph) Subpass(name string) (int, bool) {
	i, ok := g.subIdx[name]
	return i, ok
}

// Sets returns the number of descriptor sets of subpass i.
func (g *Graph) Sets(i int) int { return len(g.sub[i].sets) }

// Layout returns the heap of set number set of subpass i.
// Sets whose descriptors are identical share a heap.
func (g *Graph) Layout(i, set int) driver.DescHeap { return g.sub[i].heaps[set] }

// Bindings returns the bindings of set number set of
// subpass i, sorted by binding number.
func (g *Graph) Bindings(i, set int) []Binding { return slices.Clone(g.sub[i].sets[set]) }

// Dependencies returns the resolved dependencies, in
// declaration order.
func (g *Graph) Dependencies() []driver.Dependency { return slices.Clone(g.dep) }

// ClearValues returns one clear value per attachment.
// Only the members that match an attachment's usage are
// set.
func (g *Graph) ClearValues() []driver.ClearValue { return slices.Clone(g.clear) }

// NewFB creates a framebuffer for the render pass.
// views are indexed as attachments are.
func (g *Graph) NewFB(views []driver.ImageView, width, height int) (driver.Framebuf, error) {
	if len(views) != len(g.att) {
		return nil, fmt.Errorf("pass %q: %d views for %d attachments", g.name, len(views), len(g.att))
	}
	return g.pass.NewFB(views, width, height, 1)
}

// Destroy destroys the driver objects of g.
// Framebuffers created by NewFB must be destroyed first.
func (g *Graph) Destroy() {
	for i := range g.sub {
		s := &g.sub[i]
		if s.pl != nil {
			s.pl.Destroy()
		}
		if s.table != nil {
			s.table.Destroy()
		}
		*s = subpass{desc: s.desc, sets: s.sets}
	}
	if g.heaps != nil {
		g.heaps.destroy()
	}
	if g.pass != nil {
		g.pass.Destroy()
		g.pass = nil
	}
}
