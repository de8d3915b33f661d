package vm

import (
	"fmt"

	"github.com/kos-lang/kos/pkg/bytecode"
)

// VM drives bytecode execution, grounded on the teacher's
// pkg/mirvm.VM.Run/executeInstruction dispatch-loop shape: a single
// switch over the decoded opcode, with an explicit frame stack rather
// than recursive Go calls so call depth is governed by Config.StackSize
// instead of the host goroutine's own stack.
type VM struct {
	Config Config
	Stats  Statistics

	// arrayResize backs the builtin `resize` method array literals with
	// more than 255 elements fall back to (spec §4.3.4 array-literal
	// lowering): a NativeFunc so GET_PROP8 property lookup on an array
	// receiver has something concrete to return.
	arrayResize *FunctionValue
}

// New returns a VM ready to execute modules loaded via Load.
func New(config Config) *VM {
	vm := &VM{Config: config}
	vm.arrayResize = NewNativeFunction("resize", nativeArrayResize)
	return vm
}

// nativeArrayResize implements Array.resize(n): grow with void-filled
// elements or truncate to exactly n elements.
func nativeArrayResize(vm *VM, this Value, args []Value) (Value, error) {
	if this.Kind() != KindArray {
		return Void(), vm.raise(ErrNotIndexable, "resize called on a non-array value")
	}
	if len(args) < 1 || args[0].Kind() != KindInteger {
		return Void(), vm.raise(ErrInvalidIndex, "resize expects an integer size")
	}
	arr := this.AsArray()
	n := int(args[0].AsInt())
	if n < 0 {
		return Void(), vm.raise(ErrInvalidIndex, "resize size must be non-negative")
	}
	switch {
	case n < len(arr.Elems):
		arr.Elems = arr.Elems[:n]
	case n > len(arr.Elems):
		for len(arr.Elems) < n {
			arr.Elems = append(arr.Elems, Void())
		}
	}
	return Void(), nil
}

// Execute runs a loaded program's entry function with no arguments (spec
// §4.5 "Execution entry point").
func (vm *VM) Execute(prog *Program) (Value, error) {
	entry := prog.functionTemplate(prog.Entry)
	return vm.CallValue(Fn(entry), Void(), nil)
}

// CallValue implements the call protocol (spec §4.5 "Call protocol") for
// a callee produced however the caller likes: a plain function runs to
// completion and returns its result, a constructor allocates `this` when
// the caller did not supply one, a generator is merely instantiated
// (gen-ready) rather than run.
func (vm *VM) CallValue(fnVal Value, this Value, args []Value) (Value, error) {
	if fnVal.Kind() != KindFunction && fnVal.Kind() != KindClass {
		return Void(), vm.raise(ErrNotCallable, "value is not callable")
	}
	fn := fnVal.AsFunction()

	if fn.IsNative() {
		return fn.Native(vm, this, args)
	}
	if fn.IsGenerator() {
		inst := fn.Spawn()
		inst.pendingThis = this
		inst.pendingArgs = args
		inst.State = GenReady
		return Fn(inst), nil
	}
	if fn.IsConstructor() && this.IsVoid() {
		this = Obj(NewObject(fn.ClassProto))
	}

	fr, err := vm.prepareFrame(fn, this, args)
	if err != nil {
		return Void(), err
	}
	val, _, err := vm.exec(fr)
	return val, err
}

// CallNamed invokes fn with an object of named arguments (spec §4.5
// "Named arguments"): each declared parameter the object supplies
// overrides positional binding order entirely.
func (vm *VM) CallNamed(fnVal Value, this Value, named *Object) (Value, error) {
	if fnVal.Kind() != KindFunction && fnVal.Kind() != KindClass {
		return Void(), vm.raise(ErrNotCallable, "value is not callable")
	}
	fn := fnVal.AsFunction()
	if fn.IsNative() {
		return Void(), vm.raise(ErrNamedArgsNotSupport, "native function does not support named arguments")
	}
	if fn.IsGenerator() {
		return Void(), vm.raise(ErrNamedArgsNotSupport, "generator function does not support named arguments")
	}
	if fn.IsConstructor() && this.IsVoid() {
		this = Obj(NewObject(fn.ClassProto))
	}
	fr, err := vm.prepareFrameNamed(fn, this, named)
	if err != nil {
		return Void(), err
	}
	val, _, err := vm.exec(fr)
	return val, err
}

// resumeGenerator implements one step of the generator state machine
// (spec §4.5): gen-ready/gen-active resume into gen-running, suspending
// back to gen-active on YIELD or settling into gen-done on a natural
// return.
func (vm *VM) resumeGenerator(fn *FunctionValue, sent Value) (Value, bool, error) {
	switch fn.State {
	case GenDone:
		return Void(), false, vm.raise(ErrGeneratorEnd, "generator has already finished")
	case GenRunning:
		return Void(), false, vm.raise(ErrGeneratorRunning, "generator is already running")
	}

	var fr *frame
	if fn.frame == nil {
		var err error
		fr, err = vm.prepareFrame(fn, fn.pendingThis, fn.pendingArgs)
		if err != nil {
			fn.State = GenDone
			return Void(), false, err
		}
	} else {
		fr = fn.frame
		fr.set(fr.yieldDst, sent)
	}

	fn.State = GenRunning
	fn.frame = nil
	val, suspended, err := vm.exec(fr)
	if err != nil {
		fn.State = GenDone
		return Void(), false, err
	}
	if suspended {
		fn.State = GenActive
		fn.frame = fr
		return val, false, nil
	}
	fn.State = GenDone
	return val, true, nil
}

// exec drives frames on an explicit stack, starting with initial, until
// that frame (and everything it calls) settles: either falling off via
// RETURN (suspended=false) or suspending at YIELD (suspended=true, only
// possible when initial is a generator's own frame).
func (vm *VM) exec(initial *frame) (result Value, suspended bool, err error) {
	stack := []*frame{initial}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]

		if vm.Config.MaxSteps > 0 && vm.Stats.InstructionsExecuted >= vm.Config.MaxSteps {
			return Void(), false, vm.raise(ErrStackOverflow, "step budget exceeded")
		}
		if len(stack) > vm.Config.StackSize && vm.Config.StackSize > 0 {
			return Void(), false, vm.raise(ErrStackOverflow, "call depth exceeded")
		}

		d := bytecode.Decode(fr.prog.Code, fr.pc)
		fr.pc += d.Size
		vm.Stats.InstructionsExecuted++
		if vm.Config.Trace {
			vm.trace(fr, d)
		}

		outcome, val, newFrame, err := vm.step(fr, d)
		switch outcome {
		case stepContinue:
			// fr.pc already advanced; loop.

		case stepCall:
			stack = append(stack, newFrame)

		case stepReturn:
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return val, false, nil
			}
			caller := stack[len(stack)-1]
			caller.set(fr.retReg, val)

		case stepYield:
			if len(stack) != 1 {
				return Void(), false, fmt.Errorf("vm: yield outside the generator's own frame")
			}
			return val, true, nil

		case stepError:
			stack, err = vm.unwind(stack, err)
			if stack == nil {
				return Void(), false, err
			}
		}
	}
	return Void(), false, nil
}

// unwind pops frames off stack looking for an installed CATCH handler;
// nil, err is returned when the exception reaches the bottom unhandled.
func (vm *VM) unwind(stack []*frame, cause error) ([]*frame, error) {
	exc, ok := cause.(*Exception)
	if !ok {
		exc = &Exception{Kind: ErrKind(fmt.Sprintf("%v", cause)), Value: Str(cause.Error())}
	}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		if offset, reg, ok := fr.handleException(); ok {
			fr.pc = offset
			fr.set(reg, exc.Value)
			return stack, nil
		}
		stack = stack[:len(stack)-1]
	}
	return nil, cause
}

type stepOutcome int

const (
	stepContinue stepOutcome = iota
	stepCall
	stepReturn
	stepYield
	stepError
)

// trace renders one executed instruction to Config.OutputStream (spec's
// "-trace" ambient-stack hook, grounded on the teacher's
// mirvm.traceInstruction/formatInstruction).
func (vm *VM) trace(fr *frame, d bytecode.Decoded) {
	if vm.Config.OutputStream == nil {
		return
	}
	fmt.Fprintf(vm.Config.OutputStream, "%s:%d  %s\n", fr.fn.Proto.Name, d.Offset, bytecode.Disassemble(d))
}
