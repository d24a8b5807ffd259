// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package headless

import (
	"fmt"
	"sync/atomic"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/driver/webgpu"
)

// Command buffer states.
const (
	cbInitial int32 = iota
	cbRecording
	cbEnded
	cbPending
)

// CmdBuffer implements driver.CmdBuffer.
// Misuse during recording is reported by End.
type CmdBuffer struct {
	gpu   *GPU
	state atomic.Int32
	err   error
	cmds  []string

	pass    *RenderPass
	subpass int
	work    bool
	pl      *Pipeline

	destroyed bool
}

// NewCmdBuffer creates a new command buffer.
func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	g.record("CmdBuffer")
	return &CmdBuffer{gpu: g}, nil
}

// fail records the first recording error.
func (cb *CmdBuffer) fail(format string, a ...any) {
	if cb.err == nil {
		cb.err = fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, a...))
	}
}

func (cb *CmdBuffer) add(cmd string) bool {
	if cb.state.Load() != cbRecording {
		cb.fail("%s outside of recording", cmd)
		return false
	}
	cb.cmds = append(cb.cmds, cmd)
	return true
}

func (cb *CmdBuffer) complete() { cb.state.CompareAndSwap(cbPending, cbEnded) }

// Commands returns the names of the commands recorded
// since the last call to Begin.
func (cb *CmdBuffer) Commands() []string { return append([]string(nil), cb.cmds...) }

// Begin prepares the command buffer for recording.
func (cb *CmdBuffer) Begin() error {
	switch cb.state.Load() {
	case cbRecording:
		return fmt.Errorf("%w: Begin while recording", ErrState)
	case cbPending:
		return fmt.Errorf("%w: Begin while pending execution", ErrState)
	}
	cb.reset()
	cb.state.Store(cbRecording)
	return nil
}

func (cb *CmdBuffer) reset() {
	cb.err = nil
	cb.cmds = cb.cmds[:0]
	cb.pass = nil
	cb.subpass = 0
	cb.work = false
	cb.pl = nil
}

// IsRecording returns whether the command buffer is
// recording.
func (cb *CmdBuffer) IsRecording() bool { return cb.state.Load() == cbRecording }

// BeginPass begins a render pass.
func (cb *CmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {
	if !cb.add("BeginPass") {
		return
	}
	if cb.pass != nil || cb.work {
		cb.fail("BeginPass inside pass or work")
		return
	}
	rp, ok := pass.(*RenderPass)
	if !ok {
		cb.fail("BeginPass with foreign render pass")
		return
	}
	if f, ok := fb.(*Framebuf); !ok || f.pass != rp {
		cb.fail("BeginPass with framebuffer of another render pass")
		return
	}
	if len(clear) != len(rp.Att) {
		cb.fail("BeginPass with %d clear values, need %d", len(clear), len(rp.Att))
		return
	}
	cb.pass = rp
	cb.subpass = 0
	cb.pl = nil
}

// NextSubpass moves to the next subpass.
func (cb *CmdBuffer) NextSubpass() {
	if !cb.add("NextSubpass") {
		return
	}
	if cb.pass == nil || cb.subpass+1 >= len(cb.pass.Sub) {
		cb.fail("NextSubpass in last subpass or outside of pass")
		return
	}
	cb.subpass++
	cb.pl = nil
}

// EndPass ends the current render pass.
func (cb *CmdBuffer) EndPass() {
	if !cb.add("EndPass") {
		return
	}
	if cb.pass == nil {
		cb.fail("EndPass outside of pass")
		return
	}
	if cb.subpass != len(cb.pass.Sub)-1 {
		cb.fail("EndPass in subpass %d of %d", cb.subpass, len(cb.pass.Sub))
	}
	cb.pass = nil
	cb.pl = nil
}

// BeginWork begins compute work.
func (cb *CmdBuffer) BeginWork(wait bool) {
	if !cb.add("BeginWork") {
		return
	}
	if cb.pass != nil || cb.work {
		cb.fail("BeginWork inside pass or work")
		return
	}
	cb.work = true
	cb.pl = nil
}

// EndWork ends compute work.
func (cb *CmdBuffer) EndWork() {
	if !cb.add("EndWork") {
		return
	}
	if !cb.work {
		cb.fail("EndWork outside of work")
	}
	cb.work = false
	cb.pl = nil
}

// SetPipeline sets the pipeline.
// Graphics pipelines must match the current subpass.
func (cb *CmdBuffer) SetPipeline(pl driver.Pipeline) {
	if !cb.add("SetPipeline") {
		return
	}
	p, ok := pl.(*Pipeline)
	switch {
	case !ok:
		cb.fail("SetPipeline with foreign pipeline")
	case cb.pass != nil:
		if p.Graph == nil || p.Graph.Pass != driver.RenderPass(cb.pass) || p.Graph.Subpass != cb.subpass {
			cb.fail("SetPipeline with pipeline not created for subpass %d", cb.subpass)
			return
		}
		cb.pl = p
	case cb.work:
		if p.Comp == nil {
			cb.fail("SetPipeline with graphics pipeline during work")
			return
		}
		cb.pl = p
	default:
		cb.fail("SetPipeline outside of pass or work")
	}
}

// SetViewport sets viewports.
func (cb *CmdBuffer) SetViewport(vp []driver.Viewport) {
	if cb.add("SetViewport") && cb.pass == nil {
		cb.fail("SetViewport outside of pass")
	}
}

// SetScissor sets scissor rectangles.
func (cb *CmdBuffer) SetScissor(sciss []driver.Scissor) {
	if cb.add("SetScissor") && cb.pass == nil {
		cb.fail("SetScissor outside of pass")
	}
}

// SetVertexBuf sets vertex buffers.
func (cb *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	if !cb.add("SetVertexBuf") {
		return
	}
	if len(buf) != len(off) {
		cb.fail("SetVertexBuf with %d buffers and %d offsets", len(buf), len(off))
	}
}

// SetIndexBuf sets the index buffer.
func (cb *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	if !cb.add("SetIndexBuf") {
		return
	}
	if _, err := webgpu.IndexFormat(format); err != nil {
		cb.fail("SetIndexBuf: %v", err)
	}
}

func (cb *CmdBuffer) setDescTable(cmd string, table driver.DescTable, start int, set []driver.DescSet) {
	if start < 0 || start+len(set) > table.Len() {
		cb.fail("%s with sets [%d, %d) of %d", cmd, start, start+len(set), table.Len())
		return
	}
	for i, s := range set {
		if s.Heap() != table.Heap(start+i) {
			cb.fail("%s with set %d of incompatible heap", cmd, start+i)
			return
		}
	}
}

// SetDescTableGraph binds descriptor sets for graphics.
func (cb *CmdBuffer) SetDescTableGraph(table driver.DescTable, start int, set []driver.DescSet) {
	if !cb.add("SetDescTableGraph") {
		return
	}
	if cb.pass == nil {
		cb.fail("SetDescTableGraph outside of pass")
		return
	}
	cb.setDescTable("SetDescTableGraph", table, start, set)
}

// SetDescTableComp binds descriptor sets for compute.
func (cb *CmdBuffer) SetDescTableComp(table driver.DescTable, start int, set []driver.DescSet) {
	if !cb.add("SetDescTableComp") {
		return
	}
	if !cb.work {
		cb.fail("SetDescTableComp outside of work")
		return
	}
	cb.setDescTable("SetDescTableComp", table, start, set)
}

// Draw draws primitives.
func (cb *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	if cb.add("Draw") && (cb.pass == nil || cb.pl == nil) {
		cb.fail("Draw outside of pass or without pipeline")
	}
}

// DrawIndexed draws indexed primitives.
func (cb *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	if cb.add("DrawIndexed") && (cb.pass == nil || cb.pl == nil) {
		cb.fail("DrawIndexed outside of pass or without pipeline")
	}
}

// Dispatch dispatches compute thread groups.
func (cb *CmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int) {
	if !cb.add("Dispatch") {
		return
	}
	if !cb.work || cb.pl == nil {
		cb.fail("Dispatch outside of work or without pipeline")
		return
	}
	lim := cb.gpu.Limits().MaxDispatch
	if grpCountX > lim[0] || grpCountY > lim[1] || grpCountZ > lim[2] {
		cb.fail("Dispatch count exceeds limits")
	}
}

// Barrier inserts global barriers.
func (cb *CmdBuffer) Barrier(b []driver.Barrier) {
	if cb.add("Barrier") && cb.pass != nil {
		cb.fail("Barrier inside pass")
	}
}

// Transition inserts image layout transitions.
func (cb *CmdBuffer) Transition(t []driver.Transition) {
	if cb.add("Transition") && cb.pass != nil {
		cb.fail("Transition inside pass")
	}
}

// End ends command recording.
// It returns the first error found during recording.
func (cb *CmdBuffer) End() error {
	if cb.state.Load() != cbRecording {
		return fmt.Errorf("%w: End outside of recording", ErrState)
	}
	if cb.pass != nil || cb.work {
		cb.fail("End inside pass or work")
	}
	if cb.err != nil {
		cb.state.Store(cbInitial)
		return cb.err
	}
	cb.state.Store(cbEnded)
	return nil
}

// Reset discards recorded commands.
func (cb *CmdBuffer) Reset() error {
	if cb.state.Load() == cbPending {
		return fmt.Errorf("%w: Reset while pending execution", ErrState)
	}
	cb.reset()
	cb.state.Store(cbInitial)
	return nil
}

// Destroy destroys the command buffer.
func (cb *CmdBuffer) Destroy() {
	if cb == nil || cb.destroyed {
		return
	}
	cb.destroyed = true
	cb.gpu.release()
}
