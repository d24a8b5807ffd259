// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package pass builds render passes and compute passes from
// declarative descriptions.
// Attachments, subpasses and dependencies are described by
// name. Building resolves the names to indices, derives the
// descriptor heaps of every subpass and creates the driver
// objects. The result is immutable.
package pass

import (
	"errors"
	"fmt"

	"github.com/gviegas/deferred/driver"
)

// Swapchain is the reserved name of the swapchain image.
// As an attachment, it must be stored and end in the
// driver.LPresent layout. As a dependency endpoint, it
// denotes driver.External.
const Swapchain = "swapchain"

// Configuration errors.
// Build reports them wrapped in *ConfigError values.
var (
	ErrUnresolvedName   = errors.New("pass: unresolved name")
	ErrDuplicateName    = errors.New("pass: duplicate name")
	ErrInvalidName      = errors.New("pass: invalid name")
	ErrDuplicateBinding = errors.New("pass: duplicate binding")
	ErrNoShader         = errors.New("pass: missing shader stage")
	ErrInvalidCount     = errors.New("pass: invalid count")
	ErrInvalidFormat    = errors.New("pass: invalid pixel format")
	ErrSwapchainOps     = errors.New("pass: invalid swapchain configuration")
	ErrDependencyOrder  = errors.New("pass: dependency goes backwards")
	ErrBuilt            = errors.New("pass: builder already used")
)

// ConfigError describes an invalid pass description.
// Kind is one of the configuration errors of this
// package.
type ConfigError struct {
	Pass string
	Kind error
	Msg  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v (pass %q: %s)", e.Kind, e.Pass, e.Msg)
}

// Unwrap returns e.Kind.
func (e *ConfigError) Unwrap() error { return e.Kind }

// Usage is a hint of how an attachment is used.
// It selects which members of AttachmentDesc.Clear are
// relevant.
type Usage int

// Attachment usages.
const (
	Color Usage = 1 << iota
	Depth
	Input
)

// AttachmentDesc describes a named attachment.
// In the arrays, [0] is for color/depth and [1] is for
// stencil, except for Layout, which holds the initial
// and final layouts.
// A zero Usage is inferred from Format.
type AttachmentDesc struct {
	Name    string
	Format  driver.PixelFmt
	Samples int
	Load    [2]driver.LoadOp
	Store   [2]driver.StoreOp
	Layout  [2]driver.Layout
	Usage   Usage
	Clear   driver.ClearValue
}

func (a *AttachmentDesc) usage() Usage {
	switch {
	case a.Usage != 0:
		return a.Usage
	case a.Format.IsDepth() || a.Format.IsStencil():
		return Depth
	}
	return Color
}

func (a *AttachmentDesc) attachment() driver.Attachment {
	return driver.Attachment{
		Format:  a.Format,
		Samples: a.Samples,
		Load:    a.Load,
		Store:   a.Store,
		Layout:  a.Layout,
	}
}

// clearValue returns the clear value that a.usage
// selects.
func (a *AttachmentDesc) clearValue() (c driver.ClearValue) {
	u := a.usage()
	if u&Color != 0 {
		c.Color = a.Clear.Color
	}
	if u&Depth != 0 {
		c.Depth = a.Clear.Depth
		c.Stencil = a.Clear.Stencil
	}
	return
}

// Binding describes a descriptor of a subpass or compute
// pass.
// (Set, Nr) must be unique within a subpass.
type Binding struct {
	Set    int
	Nr     int
	Type   driver.DescType
	Stages driver.Stage
	Len    int
}

func (b *Binding) descriptor() driver.Descriptor {
	return driver.Descriptor{Type: b.Type, Stages: b.Stages, Nr: b.Nr, Len: b.Len}
}

// SubpassDesc describes a named subpass.
// Color, Inputs and Depth refer to attachments by name.
// Depth is optional. Fragment may be left unset for
// depth-only subpasses.
type SubpassDesc struct {
	Name     string
	Vertex   driver.ShaderFunc
	Fragment driver.ShaderFunc
	Input    []driver.VertexIn
	Color    []string
	Inputs   []string
	Depth    string
	Bindings []Binding
	Topology driver.Topology
	Raster   driver.RasterState
	DS       driver.DSState
	Blend    driver.BlendState
}

// Dependency describes a dependency between two named
// subpasses. Either may be Swapchain.
type Dependency struct {
	driver.Barrier

	Src string
	Dst string
}
