// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package shader

import (
	"embed"
	"fmt"
	"path"

	"github.com/gviegas/deferred/driver"
)

//go:embed wgsl/*.wgsl
var wgsl embed.FS

// Programs.
const (
	Shadow = iota
	Geometry
	Lighting
	Cull

	maxProgram
)

var programFiles = [maxProgram]string{
	Shadow:   "shadow.wgsl",
	Geometry: "geometry.wgsl",
	Lighting: "lighting.wgsl",
	Cull:     "cull.wgsl",
}

// Entry point names.
const (
	VertexMain   = "vs_main"
	FragmentMain = "fs_main"
	ComputeMain  = "cs_main"
)

// Source returns the WGSL source of a program.
func Source(prog int) ([]byte, error) {
	return wgsl.ReadFile(path.Join("wgsl", programFiles[prog]))
}

// Code holds the shader code of every program.
type Code struct {
	code [maxProgram]driver.ShaderCode
}

// Load creates shader code for every program.
func Load(gpu driver.GPU) (*Code, error) {
	var c Code
	for i := range c.code {
		src, err := Source(i)
		if err == nil {
			c.code[i], err = gpu.NewShaderCode(src)
		}
		if err != nil {
			c.Destroy()
			return nil, fmt.Errorf("shader: %s: %w", programFiles[i], err)
		}
	}
	return &c, nil
}

// Vertex returns the vertex function of prog.
func (c *Code) Vertex(prog int) driver.ShaderFunc {
	return driver.ShaderFunc{Code: c.code[prog], Name: VertexMain}
}

// Fragment returns the fragment function of prog.
// The shadow program has none.
func (c *Code) Fragment(prog int) driver.ShaderFunc {
	if prog == Shadow {
		return driver.ShaderFunc{}
	}
	return driver.ShaderFunc{Code: c.code[prog], Name: FragmentMain}
}

// Compute returns the compute function of prog.
func (c *Code) Compute(prog int) driver.ShaderFunc {
	return driver.ShaderFunc{Code: c.code[prog], Name: ComputeMain}
}

// Destroy destroys the shader code.
func (c *Code) Destroy() {
	for i := range c.code {
		if c.code[i] != nil {
			c.code[i].Destroy()
			c.code[i] = nil
		}
	}
}
