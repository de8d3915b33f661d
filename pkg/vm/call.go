package vm

import "github.com/kos-lang/kos/pkg/bytecode"

// prepareFrame implements positional argument binding (spec §4.5
// "Argument binding"): required parameters must be supplied, declared
// defaults fill any unsupplied trailing optional parameter, and any
// positional argument beyond the declared parameters feeds rest/ellipsis.
func (vm *VM) prepareFrame(fn *FunctionValue, this Value, args []Value) (*frame, error) {
	h := fn.Proto.Header
	if len(args) < int(h.MinArgs) {
		return nil, vm.raise(ErrTooFewArgs, "too few arguments")
	}

	fr := newFrame(fn, fn.Proto.Module, 0)
	fr.pc = int(h.BytecodeOffset)
	vm.bindThisAndClosures(fr, fn)

	if h.OwnClosureReg != bytecode.KOSNoReg && fr.get(h.OwnClosureReg).IsVoid() {
		fr.set(h.OwnClosureReg, Arr(NewArray(nil, make([]Value, h.ClosureSize))))
	}

	var argsArr *Array
	if h.ArgsReg != bytecode.KOSNoReg {
		argsArr = NewArray(nil, nil)
		fr.set(h.ArgsReg, Arr(argsArr))
	}

	required := int(h.MinArgs)
	for i := 0; i < int(h.NumNamedArgs); i++ {
		var v Value
		switch {
		case i < len(args):
			v = args[i]
		case i-required < len(fn.Defaults):
			v = fn.Defaults[i-required]
		default:
			return nil, vm.raise(ErrTooFewArgs, "too few arguments")
		}
		if err := vm.depositParam(fr, h, i, v, argsArr); err != nil {
			return nil, err
		}
	}

	extra := args
	if len(args) > int(h.NumNamedArgs) {
		extra = args[h.NumNamedArgs:]
	} else {
		extra = nil
	}
	if h.RestReg != bytecode.KOSNoReg {
		fr.set(h.RestReg, Arr(NewArray(nil, append([]Value(nil), extra...))))
	}
	if h.HasEllipsis() && h.EllipsisReg != bytecode.KOSNoReg {
		fr.set(h.EllipsisReg, Arr(NewArray(nil, append([]Value(nil), extra...))))
	}
	if h.ThisReg != bytecode.KOSNoReg {
		fr.set(h.ThisReg, this)
	}
	return fr, nil
}

// prepareFrameNamed implements the object-argument call form (spec §4.5
// "Named arguments"): every declared parameter is looked up by name, with
// declared defaults filling anything the caller omitted.
func (vm *VM) prepareFrameNamed(fn *FunctionValue, this Value, named *Object) (*frame, error) {
	h := fn.Proto.Header
	names := fn.Proto.ArgNames()

	seen := make(map[string]bool, len(named.OwnKeys()))
	for _, k := range named.OwnKeys() {
		seen[k] = true
	}

	fr := newFrame(fn, fn.Proto.Module, 0)
	fr.pc = int(h.BytecodeOffset)
	vm.bindThisAndClosures(fr, fn)

	if h.OwnClosureReg != bytecode.KOSNoReg && fr.get(h.OwnClosureReg).IsVoid() {
		fr.set(h.OwnClosureReg, Arr(NewArray(nil, make([]Value, h.ClosureSize))))
	}
	var argsArr *Array
	if h.ArgsReg != bytecode.KOSNoReg {
		argsArr = NewArray(nil, nil)
		fr.set(h.ArgsReg, Arr(argsArr))
	}

	required := int(h.MinArgs)
	for i, name := range names {
		var v Value
		if named.Has(name, false) {
			got, _, err := named.Get(vm, name)
			if err != nil {
				return nil, err
			}
			v = got
			delete(seen, name)
		} else if i-required >= 0 && i-required < len(fn.Defaults) {
			v = fn.Defaults[i-required]
		} else {
			return nil, vm.raise(ErrMissingFunctionParam, "missing argument '"+name+"'")
		}
		if err := vm.depositParam(fr, h, i, v, argsArr); err != nil {
			return nil, err
		}
	}
	for k := range seen {
		return nil, vm.raise(ErrInvalidFunctionParam, "unknown named argument '"+k+"'")
	}
	if h.ThisReg != bytecode.KOSNoReg {
		fr.set(h.ThisReg, this)
	}
	return fr, nil
}

// depositParam writes one bound parameter value into the address
// ParamKind/ParamSlot says it lives at (spec §4.3.5's variable-kind
// addressing, as it applies to parameters specifically).
func (vm *VM) depositParam(fr *frame, h *bytecode.FunctionHeader, i int, v Value, argsArr *Array) error {
	slot := h.ParamSlot[i]
	switch h.ParamKind[i] {
	case bytecode.ParamArgReg:
		fr.set(slot, v)
	case bytecode.ParamArgHeap:
		argsArr.Set(int(slot), v)
	case bytecode.ParamArgIndependent:
		fr.get(h.OwnClosureReg).AsArray().Set(int(slot), v)
	}
	return nil
}

// bindThisAndClosures copies a closure's bound values (BIND/BIND_SELF at
// its creation site) into the registers its own header says they belong
// in (spec §4.4's bind-slot addressing; see DESIGN.md for why this can't
// be expressed as ordinary bytecode in the callee's own body).
func (vm *VM) bindThisAndClosures(fr *frame, fn *FunctionValue) {
	h := fn.Proto.Header
	for slot, reg := range h.BindRegs {
		if slot < len(fn.Closures) {
			fr.set(reg, fn.Closures[slot])
		}
	}
}
