// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package headless

import (
	"fmt"
	"sync"

	"github.com/gviegas/deferred/driver"
)

// Surface implements driver.Surface with a fixed extent.
type Surface struct {
	mu            sync.Mutex
	width, height int
}

// NewSurface creates a new surface.
func NewSurface(width, height int) *Surface { return &Surface{width: width, height: height} }

// Extent returns the size of the surface.
func (s *Surface) Extent() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Resize changes the size of the surface.
func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
}

// Swapchain implements driver.Swapchain.
type Swapchain struct {
	gpu    *GPU
	sf     driver.Surface
	Mode   driver.PresentMode
	n      int
	views  []driver.ImageView
	width  int
	height int

	next       int
	acquired   []bool
	nextErr    []error
	presentErr []error
	presented  int
	destroyed  bool
}

// Format is the pixel format of swapchain views.
const Format = driver.BGRA8sRGB

// NewSwapchain creates a new swapchain.
func (g *GPU) NewSwapchain(sf driver.Surface, imageCount int, mode driver.PresentMode) (driver.Swapchain, error) {
	if imageCount < 1 || imageCount > 8 {
		return nil, invalid("swapchain with %d images", imageCount)
	}
	sc := &Swapchain{gpu: g, sf: sf, Mode: mode, n: imageCount}
	if err := sc.create(); err != nil {
		return nil, err
	}
	g.record("Swapchain")
	return sc, nil
}

func (s *Swapchain) create() error {
	w, h := s.sf.Extent()
	if w < 1 || h < 1 {
		return fmt.Errorf("%w (extent %dx%d)", driver.ErrSurface, w, h)
	}
	s.width, s.height = w, h
	s.views = make([]driver.ImageView, s.n)
	for i := range s.views {
		im := &Image{
			Format:  Format,
			Size:    driver.Dim3D{Width: w, Height: h},
			Layers:  1,
			Levels:  1,
			Samples: 1,
			Usage:   driver.URenderTarget,
		}
		s.views[i] = &ImageView{Image: im, Type: driver.IView2D, Layers: 1}
	}
	s.acquired = make([]bool, s.n)
	s.next = 0
	return nil
}

// ScriptNext queues errors to be returned by subsequent
// calls to Next, one per call.
// ErrSuboptimal is returned along with a valid index.
func (s *Swapchain) ScriptNext(err ...error) { s.nextErr = append(s.nextErr, err...) }

// ScriptPresent queues errors to be returned by subsequent
// calls to Present, one per call.
func (s *Swapchain) ScriptPresent(err ...error) { s.presentErr = append(s.presentErr, err...) }

// Presented returns the number of successful presentations.
func (s *Swapchain) Presented() int { return s.presented }

// Views returns the swapchain image views.
func (s *Swapchain) Views() []driver.ImageView { return s.views }

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

// Next acquires the next image view.
func (s *Swapchain) Next() (int, error) {
	err := pop(&s.nextErr)
	if err != nil && err != driver.ErrSuboptimal {
		return -1, err
	}
	for range s.n {
		i := s.next
		s.next = (s.next + 1) % s.n
		if !s.acquired[i] {
			s.acquired[i] = true
			return i, err
		}
	}
	return -1, driver.ErrNoBackbuffer
}

// Present presents an acquired image view.
func (s *Swapchain) Present(index int) error {
	if index < 0 || index >= s.n || !s.acquired[index] {
		return invalid("present of image %d that was not acquired", index)
	}
	s.acquired[index] = false
	err := pop(&s.presentErr)
	if err != nil && err != driver.ErrSuboptimal {
		return err
	}
	s.presented++
	return err
}

// Recreate recreates the swapchain using the current
// extent of its surface.
func (s *Swapchain) Recreate() error { return s.create() }

// Format returns the views' pixel format.
func (s *Swapchain) Format() driver.PixelFmt { return Format }

// Extent returns the size of the views.
func (s *Swapchain) Extent() (int, int) { return s.width, s.height }

// Destroy destroys the swapchain.
func (s *Swapchain) Destroy() {
	if s == nil || s.destroyed {
		return
	}
	s.destroyed = true
	s.views = nil
	s.gpu.release()
}
