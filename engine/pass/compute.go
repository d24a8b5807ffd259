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

// ComputeBuilder accumulates the description of a
// compute pass.
type ComputeBuilder struct {
	name     string
	shader   driver.ShaderFunc
	bindings []Binding
	built    bool
}

// NewCompute creates a new ComputeBuilder.
func NewCompute(name string) *ComputeBuilder { return &ComputeBuilder{name: name} }

// Shader sets the compute function.
func (b *ComputeBuilder) Shader(fn driver.ShaderFunc) *ComputeBuilder {
	b.shader = fn
	return b
}

// Binding declares bindings.
func (b *ComputeBuilder) Binding(bs ...Binding) *ComputeBuilder {
	b.bindings = append(b.bindings, bs...)
	return b
}

// Compute is a built compute pass.
type Compute struct {
	name  string
	sets  [][]Binding
	heaps []driver.DescHeap
	cache *heapCache
	table driver.DescTable
	pl    driver.Pipeline
}

// Build builds the compute pass.
// Errors are reported as in GraphBuilder.Build.
func (b *ComputeBuilder) Build(gpu driver.GPU) (*Compute, error) {
	if b.built {
		return nil, &ConfigError{Pass: b.name, Kind: ErrBuilt, Msg: "Build called twice"}
	}
	b.built = true
	var err error
	fail := func(kind error, format string, a ...any) {
		err = multierr.Append(err, &ConfigError{Pass: b.name, Kind: kind, Msg: fmt.Sprintf(format, a...)})
	}
	if b.shader.Code == nil {
		fail(ErrNoShader, "no compute function")
	}
	c := &Compute{name: b.name, sets: groupSets(b.bindings, "compute", fail)}
	if err != nil {
		return nil, err
	}

	c.cache = newHeapCache(gpu)
	if c.heaps, c.table, err = c.cache.table(c.sets); err != nil {
		c.Destroy()
		return nil, fmt.Errorf("pass %q: %w", b.name, err)
	}
	if c.pl, err = gpu.NewPipeline(&driver.CompState{Func: b.shader, Desc: c.table}); err != nil {
		c.Destroy()
		return nil, fmt.Errorf("pass %q: %w", b.name, err)
	}
	logging.L().Debug("compute pass built", zap.String("pass", c.name), zap.Int("sets", len(c.sets)))
	return c, nil
}

// Name returns the name of the pass.
func (c *Compute) Name() string { return c.name }

// Pipeline returns the compute pipeline.
func (c *Compute) Pipeline() driver.Pipeline { return c.pl }

// Table returns the descriptor table.
func (c *Compute) Table() driver.DescTable { return c.table }

// Sets returns the number of descriptor sets.
func (c *Compute) Sets() int { return len(c.sets) }

// Layout returns the heap of a given set number.
func (c *Compute) Layout(set int) driver.DescHeap { return c.heaps[set] }

// Bindings returns the bindings of a given set number.
func (c *Compute) Bindings(set int) []Binding { return slices.Clone(c.sets[set]) }

// Destroy destroys the driver objects of c.
func (c *Compute) Destroy() {
	if c.pl != nil {
		c.pl.Destroy()
		c.pl = nil
	}
	if c.table != nil {
		c.table.Destroy()
		c.table = nil
	}
	if c.cache != nil {
		c.cache.destroy()
	}
	c.heaps = nil
}
