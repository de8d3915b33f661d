package vm

import "github.com/kos-lang/kos/pkg/bytecode"

// step executes exactly one already-decoded instruction against fr (spec
// §4.5, grounded opcode-by-opcode on the bytecode package's operand
// table). fr.pc has already been advanced past d by the caller, so a
// jump-family instruction only ever adds its relative delta to fr.pc
// (spec §4.3.1: jump deltas are relative to the first byte after the
// instruction, which is exactly where fr.pc already sits).
func (vm *VM) step(fr *frame, d bytecode.Decoded) (stepOutcome, Value, *frame, error) {
	switch d.Op {

	case bytecode.LOAD_CONST, bytecode.LOAD_CONST8:
		v, err := fr.prog.constant(int(d.Operands[1]))
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), v)

	case bytecode.LOAD_FUN, bytecode.LOAD_FUN8:
		c := fr.prog.Pool.Get(int(d.Operands[1]))
		fr.set(d.Reg(0), Fn(fr.prog.freshFunction(c.Func)))

	case bytecode.LOAD_INT8:
		fr.set(d.Reg(0), Int(d.Operands[1]))

	case bytecode.LOAD_TRUE:
		fr.set(d.Reg(0), Bool(true))

	case bytecode.LOAD_FALSE:
		fr.set(d.Reg(0), Bool(false))

	case bytecode.LOAD_VOID:
		fr.set(d.Reg(0), Void())

	case bytecode.LOAD_ARRAY:
		fr.set(d.Reg(0), Arr(NewArray(nil, make([]Value, d.Operands[1]))))

	case bytecode.LOAD_OBJ:
		fr.set(d.Reg(0), Obj(NewObject(nil)))

	case bytecode.LOAD_OBJ_PROTO:
		proto := fr.get(d.Reg(1))
		var protoObj *Object
		if proto.Kind() == KindObject {
			protoObj = proto.AsObject()
		}
		fr.set(d.Reg(0), Obj(NewObject(protoObj)))

	case bytecode.LOAD_ITER:
		it, err := vm.makeIterator(fr.get(d.Reg(1)))
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), it)

	case bytecode.MOVE:
		fr.set(d.Reg(0), fr.get(d.Reg(1)))

	case bytecode.GET_PROTO:
		if p := fr.get(d.Reg(1)).protoOf(); p != nil {
			fr.set(d.Reg(0), Obj(p))
		} else {
			fr.set(d.Reg(0), Void())
		}

	case bytecode.GET_GLOBAL:
		fr.set(d.Reg(0), fr.prog.Globals[d.Operands[1]])

	case bytecode.SET_GLOBAL:
		fr.prog.Globals[d.Operands[0]] = fr.get(d.Reg(1))

	case bytecode.GET_MOD:
		dep, err := fr.prog.importedModule(int(d.Operands[1]))
		if err != nil {
			return stepError, Void(), nil, err
		}
		ns := NewObject(nil)
		for name, slot := range dep.GlobalNames() {
			ns.Set(vm, name, dep.Globals[slot])
		}
		fr.set(d.Reg(0), Obj(ns))

	case bytecode.GET_MOD_ELEM:
		dep, err := fr.prog.importedModule(int(d.Operands[1]))
		if err != nil {
			return stepError, Void(), nil, err
		}
		slot := int(d.Operands[2])
		if slot < 0 || slot >= len(dep.Globals) {
			return stepError, Void(), nil, vm.raise(ErrInvalidIndex, "module global index out of range")
		}
		fr.set(d.Reg(0), dep.Globals[slot])

	case bytecode.GET_MOD_GLOBAL:
		dep, err := fr.prog.importedModule(int(d.Operands[1]))
		if err != nil {
			return stepError, Void(), nil, err
		}
		name := fr.prog.ConstString(int(d.Operands[2]))
		slot, ok := dep.GlobalSlot(name)
		if !ok {
			return stepError, Void(), nil, vm.raise(ErrInvalidIndex, "no such module global '"+name+"'")
		}
		fr.set(d.Reg(0), dep.Globals[slot])

	case bytecode.GET:
		v, err := vm.getDynamic(fr.get(d.Reg(1)), fr.get(d.Reg(2)))
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), v)

	case bytecode.GET_ELEM:
		v, err := vm.getIndexed(fr.get(d.Reg(1)), d.Operands[2])
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), v)

	case bytecode.GET_ELEM8:
		v, err := vm.getIndexed(fr.get(d.Reg(1)), d.Operands[2])
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), v)

	case bytecode.GET_PROP8:
		name := fr.prog.ConstString(int(d.Operands[2]))
		v, err := vm.getNamed(fr.get(d.Reg(1)), name)
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), v)

	case bytecode.GET_RANGE:
		v, err := vm.getRange(fr.get(d.Reg(1)), fr.get(d.Reg(2)), fr.get(d.Reg(3)))
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), v)

	case bytecode.SET:
		if err := vm.setDynamic(fr.get(d.Reg(0)), fr.get(d.Reg(1)), fr.get(d.Reg(2))); err != nil {
			return stepError, Void(), nil, err
		}

	case bytecode.SET_ELEM:
		if err := vm.setIndexed(fr.get(d.Reg(0)), d.Operands[1], fr.get(d.Reg(2))); err != nil {
			return stepError, Void(), nil, err
		}

	case bytecode.SET_ELEM8:
		if err := vm.setIndexed(fr.get(d.Reg(0)), d.Operands[1], fr.get(d.Reg(2))); err != nil {
			return stepError, Void(), nil, err
		}

	case bytecode.SET_PROP8:
		name := fr.prog.ConstString(int(d.Operands[1]))
		if err := vm.setNamed(fr.get(d.Reg(0)), name, fr.get(d.Reg(2))); err != nil {
			return stepError, Void(), nil, err
		}

	case bytecode.SET_GETTER8:
		name := fr.prog.ConstString(int(d.Operands[1]))
		if err := vm.setGetter(fr.get(d.Reg(0)), name, fr.get(d.Reg(2))); err != nil {
			return stepError, Void(), nil, err
		}

	case bytecode.DEL:
		vm.delDynamic(fr.get(d.Reg(0)), fr.get(d.Reg(1)))

	case bytecode.DEL_PROP8:
		name := fr.prog.ConstString(int(d.Operands[1]))
		vm.delNamed(fr.get(d.Reg(0)), name)

	case bytecode.PUSH:
		recv := fr.get(d.Reg(0)).AsArray()
		recv.Elems = append(recv.Elems, fr.get(d.Reg(1)))

	case bytecode.PUSH_EX:
		recv := fr.get(d.Reg(0)).AsArray()
		src := fr.get(d.Reg(1))
		if src.Kind() != KindArray {
			return stepError, Void(), nil, vm.raise(ErrArgsNotArray, "spread source is not an array")
		}
		recv.Elems = append(recv.Elems, src.AsArray().Elems...)

	case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD:
		v, err := vm.binArith(arithOp[d.Op], fr.get(d.Reg(1)), fr.get(d.Reg(2)))
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), v)

	case bytecode.NOT:
		fr.set(d.Reg(0), Bool(!fr.get(d.Reg(1)).Truthy()))

	case bytecode.AND, bytecode.OR, bytecode.XOR:
		v, err := vm.bitwise(d.Op, fr.get(d.Reg(1)), fr.get(d.Reg(2)))
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), v)

	case bytecode.SHL, bytecode.SHR, bytecode.SHRU:
		x, y := fr.get(d.Reg(1)), fr.get(d.Reg(2))
		if x.Kind() != KindInteger || y.Kind() != KindInteger {
			return stepError, Void(), nil, vm.raise(ErrUnsupportedOperands, "shift operand is not an integer")
		}
		var r int64
		switch d.Op {
		case bytecode.SHL:
			r = shiftLeft(x.AsInt(), y.AsInt())
		case bytecode.SHR:
			r = shiftRightArith(x.AsInt(), y.AsInt())
		case bytecode.SHRU:
			r = shiftRightLogical(x.AsInt(), y.AsInt())
		}
		fr.set(d.Reg(0), Int(r))

	case bytecode.TYPE:
		fr.set(d.Reg(0), Str(fr.get(d.Reg(1)).Kind().String()))

	case bytecode.CMP_EQ:
		fr.set(d.Reg(0), Bool(valuesEqual(fr.get(d.Reg(1)), fr.get(d.Reg(2)))))

	case bytecode.CMP_NE:
		fr.set(d.Reg(0), Bool(!valuesEqual(fr.get(d.Reg(1)), fr.get(d.Reg(2)))))

	case bytecode.CMP_LE:
		fr.set(d.Reg(0), Bool(compare(fr.get(d.Reg(1)), fr.get(d.Reg(2))) <= 0))

	case bytecode.CMP_LT:
		fr.set(d.Reg(0), Bool(compare(fr.get(d.Reg(1)), fr.get(d.Reg(2))) < 0))

	case bytecode.HAS_DP:
		fr.set(d.Reg(0), Bool(vm.hasProp(fr.get(d.Reg(1)), fr.get(d.Reg(2)).AsString(), false)))

	case bytecode.HAS_DP_PROP8:
		name := fr.prog.ConstString(int(d.Operands[2]))
		fr.set(d.Reg(0), Bool(vm.hasProp(fr.get(d.Reg(1)), name, false)))

	case bytecode.HAS_SH:
		fr.set(d.Reg(0), Bool(vm.hasProp(fr.get(d.Reg(1)), fr.get(d.Reg(2)).AsString(), true)))

	case bytecode.HAS_SH_PROP8:
		name := fr.prog.ConstString(int(d.Operands[2]))
		fr.set(d.Reg(0), Bool(vm.hasProp(fr.get(d.Reg(1)), name, true)))

	case bytecode.INSTANCEOF:
		v, err := vm.instanceOf(fr.get(d.Reg(1)), fr.get(d.Reg(2)))
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), Bool(v))

	case bytecode.JUMP:
		fr.pc += int(d.Operands[0])

	case bytecode.JUMP_COND:
		if fr.get(d.Reg(0)).Truthy() {
			fr.pc += int(d.Operands[1])
		}

	case bytecode.JUMP_NOT_COND:
		if !fr.get(d.Reg(0)).Truthy() {
			fr.pc += int(d.Operands[1])
		}

	case bytecode.NEXT:
		it, ok := vm.iteratorOf(fr.get(d.Reg(1)))
		if !ok {
			return stepError, Void(), nil, vm.raise(ErrNotIndexable, "NEXT against a non-iterator value")
		}
		v, _, err := it.advance(vm)
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(d.Reg(0), v)

	case bytecode.NEXT_JUMP:
		it, ok := vm.iteratorOf(fr.get(d.Reg(1)))
		if !ok {
			return stepError, Void(), nil, vm.raise(ErrNotIndexable, "NEXT_JUMP against a non-iterator value")
		}
		v, hasMore, err := it.advance(vm)
		if err != nil {
			return stepError, Void(), nil, err
		}
		if hasMore {
			fr.set(d.Reg(0), v)
			fr.pc += int(d.Operands[2])
		}

	case bytecode.BIND:
		target := fr.get(d.Reg(0)).AsFunction()
		slot := int(d.Operands[1])
		if slot < len(target.Closures) {
			target.Closures[slot] = fr.get(d.Reg(2))
		}

	case bytecode.BIND_SELF:
		target := fr.get(d.Reg(0)).AsFunction()
		slot := int(d.Operands[1])
		var self Value
		if h := fr.fn.Proto.Header; h.OwnClosureReg != bytecode.KOSNoReg {
			self = fr.get(h.OwnClosureReg)
		}
		if slot < len(target.Closures) {
			target.Closures[slot] = self
		}

	case bytecode.BIND_DEFAULTS:
		target := fr.get(d.Reg(0)).AsFunction()
		arr := fr.get(d.Reg(1)).AsArray()
		target.Defaults = append([]Value(nil), arr.Elems...)

	case bytecode.CALL_N, bytecode.TAIL_CALL_N:
		base := d.Reg(1)
		count := int(d.Operands[2])
		callee := fr.get(base)
		this := fr.get(base + 1)
		var args []Value
		if count > 1 {
			args = make([]Value, count-1)
			for i := 0; i < count-1; i++ {
				args[i] = fr.get(base + 2 + byte(i))
			}
		}
		return vm.dispatchCall(fr, d.Reg(0), callee, this, args)

	case bytecode.CALL, bytecode.TAIL_CALL:
		base := d.Reg(1)
		callee := fr.get(base)
		this := fr.get(base + 1)
		argsVal := fr.get(d.Reg(2))
		var args []Value
		if argsVal.Kind() == KindArray {
			args = argsVal.AsArray().Elems
		}
		return vm.dispatchCall(fr, d.Reg(0), callee, this, args)

	case bytecode.CALL_FUN, bytecode.TAIL_CALL_FUN:
		callee := fr.get(d.Reg(1))
		argsVal := fr.get(d.Reg(2))
		var args []Value
		if argsVal.Kind() == KindArray {
			args = argsVal.AsArray().Elems
		}
		return vm.dispatchCall(fr, d.Reg(0), callee, Void(), args)

	case bytecode.RETURN:
		val := fr.get(d.Reg(0))
		if fr.fn.IsConstructor() && val.IsVoid() {
			if h := fr.fn.Proto.Header; h.ThisReg != bytecode.KOSNoReg {
				val = fr.get(h.ThisReg)
			}
		}
		return stepReturn, val, nil, nil

	case bytecode.YIELD:
		fr.canYield = true
		fr.yieldDst = d.Reg(0)
		return stepYield, fr.get(d.Reg(1)), nil, nil

	case bytecode.THROW:
		return stepError, Void(), nil, &Exception{Kind: ErrThrown, Value: fr.get(d.Reg(0))}

	case bytecode.CATCH:
		fr.pushCatch(d.Reg(0), fr.pc+int(d.Operands[1]))

	case bytecode.CANCEL:
		fr.popCatch()

	case bytecode.BREAKPOINT:
		// diagnostics-only; ordinary execution treats it as a no-op.

	default:
		return stepError, Void(), nil, vm.raise(ErrInvalidInstruction, "unimplemented opcode")
	}

	return stepContinue, Void(), nil, nil
}

var arithOp = [256]byte{
	bytecode.ADD: opAdd,
	bytecode.SUB: opSub,
	bytecode.MUL: opMul,
	bytecode.DIV: opDiv,
	bytecode.MOD: opMod,
}

// dispatchCall implements the shared call protocol every call-family
// opcode funnels through (spec §4.5 "Call protocol"): native functions
// and generator instantiation resolve synchronously within this step,
// everything else pushes a new frame for exec's stack to drive.
//
// The TAIL_CALL family reuses this unchanged: the compiler never emits it
// (see expr_calls.go), and lacking a concrete trigger condition to target,
// an ordinary (non-tail-eliminated) call is the conservative reading that
// keeps TAIL_CALL* observably correct, just not stack-saving (DESIGN.md).
func (vm *VM) dispatchCall(fr *frame, dst byte, callee, this Value, args []Value) (stepOutcome, Value, *frame, error) {
	if callee.Kind() != KindFunction && callee.Kind() != KindClass {
		return stepError, Void(), nil, vm.raise(ErrNotCallable, "value is not callable")
	}
	fn := callee.AsFunction()

	if fn.IsNative() {
		v, err := fn.Native(vm, this, args)
		if err != nil {
			return stepError, Void(), nil, err
		}
		fr.set(dst, v)
		return stepContinue, Void(), nil, nil
	}
	if fn.IsGenerator() {
		inst := fn.Spawn()
		inst.pendingThis = this
		inst.pendingArgs = args
		inst.State = GenReady
		fr.set(dst, Fn(inst))
		return stepContinue, Void(), nil, nil
	}
	if fn.IsConstructor() && this.IsVoid() {
		this = Obj(NewObject(fn.ClassProto))
	}

	newFr, err := vm.prepareFrame(fn, this, args)
	if err != nil {
		return stepError, Void(), nil, err
	}
	newFr.retReg = dst
	return stepCall, Void(), newFr, nil
}
