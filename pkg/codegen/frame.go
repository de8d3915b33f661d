package codegen

import (
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/regalloc"
	"github.com/kos-lang/kos/pkg/scope"
)

// loopCtx tracks the break/continue jump sites of one enclosing loop
// (spec §4.3.3 "break/continue/fallthrough ... tagged with the node
// kind").
type loopCtx struct {
	breaks     jumpArray
	continues  jumpArray
	tryDepthAt int // try nesting depth when the loop was entered
}

// switchCtx tracks the break jump sites of one enclosing switch.
type switchCtx struct {
	breaks     jumpArray
	tryDepthAt int
}

// Frame is the Code Emitter's per-function compilation state: a register
// allocator, an instruction/line-table emitter, and the control-flow
// bookkeeping (loop/switch/try stacks) that §4.3.3 describes.
type Frame struct {
	*Emitter
	Alloc  *regalloc.Allocator
	Header *bytecode.FunctionHeader
	Scope  *scope.Scope
	Parent *Frame // enclosing frame, consulted when resolving closure captures

	loops    []*loopCtx
	switches []*switchCtx
	tryDepth int

	// bindSlot maps an outer scope this frame captures to the bind
	// register index it was received at (spec §4.4 step 8).
	bindSlot map[*scope.Scope]byte

	// closureReg+1 is the register holding this frame's own closure-cell
	// array (0 means unallocated); see containerFor in vars.go.
	closureReg byte
}

func newFrame(sc *scope.Scope, header *bytecode.FunctionHeader, parent *Frame) *Frame {
	return &Frame{
		Emitter:  newEmitter(),
		Alloc:    regalloc.New(),
		Header:   header,
		Scope:    sc,
		Parent:   parent,
		bindSlot: make(map[*scope.Scope]byte),
	}
}

func (f *Frame) pushLoop() *loopCtx {
	l := &loopCtx{tryDepthAt: f.tryDepth}
	f.loops = append(f.loops, l)
	return l
}

func (f *Frame) popLoop() {
	f.loops = f.loops[:len(f.loops)-1]
}

func (f *Frame) currentLoop() *loopCtx {
	if len(f.loops) == 0 {
		return nil
	}
	return f.loops[len(f.loops)-1]
}

func (f *Frame) pushSwitch() *switchCtx {
	sw := &switchCtx{tryDepthAt: f.tryDepth}
	f.switches = append(f.switches, sw)
	return sw
}

func (f *Frame) popSwitch() {
	f.switches = f.switches[:len(f.switches)-1]
}

func (f *Frame) currentSwitch() *switchCtx {
	if len(f.switches) == 0 {
		return nil
	}
	return f.switches[len(f.switches)-1]
}
