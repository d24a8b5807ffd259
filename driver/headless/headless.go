// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package headless implements a driver that executes no
// GPU work.
// It validates every call the way a real implementation
// would, records the objects it creates and completes
// commits asynchronously. It is registered with the name
// "headless".
package headless

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/internal/logging"
)

// Name is the name of the driver.
const Name = "headless"

// ErrInvalid means that a call received invalid arguments.
var ErrInvalid = errors.New("headless: invalid argument")

// ErrState means that a command buffer was used in a state
// that does not allow it.
var ErrState = errors.New("headless: invalid command buffer state")

func invalid(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, a...))
}

var (
	_ driver.Driver    = (*Driver)(nil)
	_ driver.GPU       = (*GPU)(nil)
	_ driver.Presenter = (*GPU)(nil)
	_ driver.CmdBuffer = (*CmdBuffer)(nil)
	_ driver.Swapchain = (*Swapchain)(nil)
	_ driver.DescSet   = (*DescSet)(nil)
)

// Driver implements driver.Driver.
type Driver struct {
	mu  sync.Mutex
	gpu *GPU
}

func init() {
	driver.Register(&Driver{})
}

// Open initializes the driver.
func (d *Driver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu == nil {
		d.gpu = New()
		d.gpu.drv = d
		logging.L().Debug("headless driver opened")
	}
	return d.gpu, nil
}

// Name returns the driver name.
func (*Driver) Name() string { return Name }

// Close deinitializes the driver.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu != nil {
		if n := d.gpu.Live(); n != 0 {
			logging.L().Warn("headless driver closed with live objects", zap.Int("live", n))
		}
		d.gpu = nil
	}
}

// GPU implements driver.GPU and driver.Presenter.
type GPU struct {
	drv  *Driver
	live atomic.Int64

	mu      sync.Mutex
	log     []string
	commits int
	failErr error
}

// New creates a new GPU that is not associated with any
// Driver. Tests should prefer it over Driver.Open to
// avoid sharing state.
func New() *GPU { return &GPU{} }

// Driver returns the Driver that opened the GPU, or nil
// if it was created by New.
func (g *GPU) Driver() driver.Driver {
	if g.drv == nil {
		return nil
	}
	return g.drv
}

// record logs the creation of an object.
func (g *GPU) record(kind string) {
	g.live.Add(1)
	g.mu.Lock()
	g.log = append(g.log, kind)
	g.mu.Unlock()
}

func (g *GPU) release() { g.live.Add(-1) }

// Log returns the kinds of the objects created so far,
// in creation order (e.g., "RenderPass", "Pipeline").
func (g *GPU) Log() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.log...)
}

// Count returns how many objects of the given kind were
// created so far.
func (g *GPU) Count(kind string) (n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range g.log {
		if k == kind {
			n++
		}
	}
	return
}

// Live returns the number of objects that were created
// and not yet destroyed.
// Descriptor sets are not counted since they are owned
// by their heap.
func (g *GPU) Live() int { return int(g.live.Load()) }

// Commits returns the number of successful calls to
// Commit.
func (g *GPU) Commits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commits
}

// FailCommit causes the next call to Commit to send err.
func (g *GPU) FailCommit(err error) {
	g.mu.Lock()
	g.failErr = err
	g.mu.Unlock()
}

// Commit commits a batch of command buffers.
// Every command buffer must have ended recording.
// The result is sent on ch from a separate goroutine.
func (g *GPU) Commit(cb []driver.CmdBuffer, ch chan<- error) {
	g.mu.Lock()
	err := g.failErr
	g.failErr = nil
	g.mu.Unlock()
	var pend []*CmdBuffer
	if err == nil {
		for _, c := range cb {
			c := c.(*CmdBuffer)
			if c.state.Load() != cbEnded {
				err = fmt.Errorf("%w: commit of command buffer that has not ended", ErrState)
				pend = nil
				break
			}
			pend = append(pend, c)
		}
	}
	if err == nil {
		for _, c := range pend {
			c.state.Store(cbPending)
		}
		g.mu.Lock()
		g.commits++
		g.mu.Unlock()
	}
	go func() {
		for _, c := range pend {
			c.complete()
		}
		ch <- err
	}()
}

// Limits returns the implementation limits.
func (g *GPU) Limits() driver.Limits {
	return driver.Limits{
		MaxImage2D:      16384,
		MaxLayers:       2048,
		MaxDescHeaps:    4,
		MaxDescriptors:  64,
		MaxColorTargets: 8,
		MaxVertexIn:     16,
		MaxFBSize:       [2]int{16384, 16384},
		MaxDispatch:     [3]int{65535, 65535, 65535},
	}
}
