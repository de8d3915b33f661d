package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/scope"
)

// registerFor returns the register a KindLocal/KindArgumentReg/independent
// variable occupies in its home frame, allocating one on first use and
// recording it on the variable (ArrayIdx doubles as "register index" for
// these kinds, and as "array slot index" for the heap-backed kinds below).
func (c *Compiler) registerFor(v *scope.Variable) byte {
	switch v.Kind {
	case scope.KindLocal, scope.KindArgumentReg:
		if !c.assigned[v] {
			r, err := c.frame.Alloc.AllocTemp()
			if err == nil {
				v.ArrayIdx = int(r)
				c.assigned[v] = true
				c.frame.Alloc.BindVariable(r)
			}
		}
		return byte(v.ArrayIdx)
	case scope.KindIndependentLocal, scope.KindIndependentArgument:
		if !c.assigned[v] {
			v.ArrayIdx = c.frame.nextClosureSlot()
			c.assigned[v] = true
		}
		return byte(v.ArrayIdx)
	default:
		return byte(v.ArrayIdx)
	}
}

// nextClosureSlot allocates the next index into this frame's closure-cell
// array, creating the array (and the register that holds it) on first
// use.
func (f *Frame) nextClosureSlot() int {
	if f.Header.ClosureSize == 0 && f.closureReg == 0 {
		r, err := f.Alloc.AllocTemp()
		if err == nil {
			f.closureReg = r + 1 // +1 so the zero value means "unallocated"
			f.Alloc.BindVariable(r)
		}
	}
	slot := int(f.Header.ClosureSize)
	f.Header.ClosureSize++
	return slot
}

// closureRegister returns the register holding this frame's closure-cell
// array, allocating the register if needed. No instruction creates the
// array: the call prologue (vm.prepareFrame) fills this register with a
// ClosureSize-element array before the body runs.
func (f *Frame) closureRegister() byte {
	if f.closureReg == 0 {
		r, _ := f.Alloc.AllocTemp()
		f.closureReg = r + 1
		f.Alloc.BindVariable(r)
	}
	return f.closureReg - 1
}

// readVariable emits code to load v's current value into a register and
// returns it (spec §4.3.5's read-side counterpart).
func (c *Compiler) readVariable(v *scope.Variable) (byte, error) {
	f := c.frame
	switch v.Kind {
	case scope.KindLocal, scope.KindArgumentReg:
		return c.registerFor(v), nil

	case scope.KindIndependentLocal, scope.KindIndependentArgument:
		idx := c.registerFor(v)
		container, err := c.containerFor(v)
		if err != nil {
			return 0, err
		}
		dst, err := f.Alloc.AllocTemp()
		if err != nil {
			return 0, c.errTooManyRegs(v)
		}
		_, err = f.Emit(bytecode.GET_ELEM, int64(dst), int64(container), int64(idx))
		return dst, err

	case scope.KindArgumentHeap:
		dst, err := f.Alloc.AllocTemp()
		if err != nil {
			return 0, c.errTooManyRegs(v)
		}
		_, err = f.Emit(bytecode.GET_ELEM, int64(dst), int64(f.Header.ArgsReg), int64(v.ArrayIdx))
		return dst, err

	default: // global, module, imported
		c.trackGlobal(v.ArrayIdx)
		dst, err := f.Alloc.AllocTemp()
		if err != nil {
			return 0, c.errTooManyRegs(v)
		}
		_, err = f.Emit(bytecode.GET_GLOBAL, int64(dst), int64(v.ArrayIdx))
		return dst, err
	}
}

// writeVariable emits code to store src into v, enforcing const-assignment
// (spec §4.3.5, §7 ConstAssignment).
func (c *Compiler) writeVariable(n ast.Node, v *scope.Variable, src byte) error {
	if v.IsConst {
		return c.errorAt(n, ErrConstAssignment, "cannot assign to const variable %q", v.Name)
	}
	f := c.frame
	switch v.Kind {
	case scope.KindLocal, scope.KindArgumentReg:
		dst := c.registerFor(v)
		if dst == src {
			return nil
		}
		_, err := f.Emit(bytecode.MOVE, int64(dst), int64(src))
		return err

	case scope.KindIndependentLocal, scope.KindIndependentArgument:
		idx := c.registerFor(v)
		container, err := c.containerFor(v)
		if err != nil {
			return err
		}
		_, err = f.Emit(bytecode.SET_ELEM, int64(container), int64(idx), int64(src))
		return err

	case scope.KindArgumentHeap:
		_, err := f.Emit(bytecode.SET_ELEM, int64(f.Header.ArgsReg), int64(v.ArrayIdx), int64(src))
		return err

	default:
		c.trackGlobal(v.ArrayIdx)
		_, err := f.Emit(bytecode.SET_GLOBAL, int64(v.ArrayIdx), int64(src))
		return err
	}
}

// containerFor returns the register holding the closure-cell array that
// owns v: this frame's own array if v's home scope is this frame's
// function, or the bind-slot register that received the owning frame's
// array at the closure's creation call site otherwise.
func (c *Compiler) containerFor(v *scope.Variable) (byte, error) {
	f := c.frame
	home := v.Home.EnclosingFunction()
	if home == f.Scope.EnclosingFunction() {
		return f.closureRegister(), nil
	}
	if r, ok := f.bindSlot[home]; ok {
		return r, nil
	}
	return 0, CompileError{Kind: ErrUndefinedVariable, Message: "capture of " + v.Name + " was not wired by the synthesizer", File: c.FileName}
}

func (c *Compiler) errTooManyRegs(v *scope.Variable) error {
	return CompileError{Kind: ErrTooManyRegisters, Message: "register capacity exceeded allocating " + v.Name, Position: ast.Position{}, File: c.FileName}
}
