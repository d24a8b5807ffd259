// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import (
	"errors"
)

// ErrCannotPresent means that the driver and/or device do not
// support presentation.
var ErrCannotPresent = errors.New("driver: presentation not supported")

// ErrSurface represents an error related to a specific
// surface. It usually indicates that the surface is not
// in a state that allows swapchain creation (e.g., it has
// zero extent).
var ErrSurface = errors.New("driver: surface-related error")

// ErrSwapchain represents an error related to a specific
// swapchain.
// This error usually indicates that changes to the surface
// or compositor made the swapchain unusable. It is meant
// to be handled by calling Swapchain.Recreate.
var ErrSwapchain = errors.New("driver: swapchain-related error")

// ErrSuboptimal means that the swapchain no longer matches
// the surface exactly but can still be used.
// It is not fatal: the frame completes normally and the
// swapchain may be recreated at a convenient time.
var ErrSuboptimal = errors.New("driver: suboptimal swapchain")

// ErrNoBackbuffer means that all available backbuffers
// were acquired.
// Backbuffers are released during presentation.
var ErrNoBackbuffer = errors.New("driver: all backbuffers in use")

// Surface is the interface that defines a presentable
// target, such as a window.
type Surface interface {
	// Extent returns the current size of the surface
	// in pixels.
	Extent() (width, height int)
}

// PresentMode is the type of presentation modes.
type PresentMode int

// Presentation modes.
const (
	// Wait for vertical blank, queueing images.
	PFIFO PresentMode = iota
	// Wait for vertical blank, replacing the queued image.
	PMailbox
	// Do not wait.
	PImmediate
)

// String implements fmt.Stringer.
func (m PresentMode) String() string {
	switch m {
	case PFIFO:
		return "fifo"
	case PMailbox:
		return "mailbox"
	case PImmediate:
		return "immediate"
	}
	return "invalid"
}

// Presenter is the interface that a GPU may implement
// to enable presentation on a display.
type Presenter interface {
	// NewSwapchain creates a new swapchain.
	// Only one swapchain can be associated with a specific
	// Surface at a time.
	NewSwapchain(sf Surface, imageCount int, mode PresentMode) (Swapchain, error)
}

// Swapchain is the interface that defines a n-buffered
// swapchain for presentation.
// To present, one calls Next to obtain the index of an
// image view to target, transitions the view to a valid
// layout (e.g., from LUndefined to LColorTarget),
// records commands as needed, transitions the view to
// the LPresent layout, commits these commands and then
// calls Present to present the image view.
type Swapchain interface {
	Destroyer

	// Views returns the list of image views that
	// comprises the swapchain.
	// This value remains unchanged as long as the
	// swapchain's Destroy or Recreate methods are
	// not called.
	Views() []ImageView

	// Next returns the index of the next writable
	// image view.
	// It may return a valid index along with
	// ErrSuboptimal.
	Next() (int, error)

	// Present presents the image view identified
	// by index.
	// It may return ErrSuboptimal, in which case the
	// image was presented.
	Present(index int) error

	// Recreate recreates the swapchain.
	// It is meant to be called in response to a
	// ErrSwapchain error.
	Recreate() error

	// Format returns the image views' PixelFmt.
	Format() PixelFmt

	// Extent returns the size of the image views.
	Extent() (width, height int)
}
