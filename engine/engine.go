// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package engine implements a deferred renderer.
//
// A Renderer draws the entities of a scene.Scene in three
// passes: a compute pass that culls lights per screen tile,
// a depth-only pass that renders shadow casters into a
// shadow atlas, and a two-subpass render pass that fills a
// G-buffer and then resolves lighting into the swapchain.
package engine

import (
	"errors"

	"github.com/gviegas/deferred/engine/internal/shader"
)

const (
	// The maximum number of frames in flight.
	MaxFrame = 3

	// The maximum number of lights per frame.
	MaxLight = shader.MaxLight

	// The maximum number of shadows per frame.
	MaxShadow = shader.MaxShadow

	dflFramesInFlight = 2
	dflWidth          = 1280
	dflHeight         = 720
	dflShadowAtlas    = 4096
	dflShadowTile     = 1024
	dflMaxDrawable    = 1024
)

// Renderer errors.
var (
	// ErrShadowOverflow means that more lights cast
	// shadows than fit in the shadow atlas and the
	// overflow policy is OverflowFail.
	ErrShadowOverflow = errors.New("engine: too many shadow casters")

	// ErrFrame means that the frame methods were called
	// out of order.
	ErrFrame = errors.New("engine: invalid frame state")

	// ErrNoPresenter means that the GPU cannot present.
	ErrNoPresenter = errors.New("engine: GPU does not implement driver.Presenter")

	// ErrMeshExists means that a mesh name is taken.
	ErrMeshExists = errors.New("engine: mesh already exists")

	// ErrMeshData means that mesh data is malformed.
	ErrMeshData = errors.New("engine: invalid mesh data")
)
