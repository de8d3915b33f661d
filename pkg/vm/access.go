package vm

import "github.com/kos-lang/kos/pkg/bytecode"

// normalizeIndex resolves a possibly-negative index against length the
// way GET_ELEM8's signed immediate implies negative indices should work
// (index from the end, Python-slice style).
func normalizeIndex(idx int64, length int) int {
	i := int(idx)
	if i < 0 {
		i += length
	}
	return i
}

// getIndexed implements GET_ELEM/GET_ELEM8 against any indexable value.
func (vm *VM) getIndexed(recv Value, idx int64) (Value, error) {
	switch recv.Kind() {
	case KindArray:
		arr := recv.AsArray()
		i := normalizeIndex(idx, len(arr.Elems))
		v, ok := arr.Get(i)
		if !ok {
			return Void(), vm.raise(ErrInvalidIndex, "array index out of range")
		}
		return v, nil
	case KindBuffer:
		buf := recv.AsBuffer()
		i := normalizeIndex(idx, len(buf.Data))
		if i < 0 || i >= len(buf.Data) {
			return Void(), vm.raise(ErrInvalidIndex, "buffer index out of range")
		}
		return Int(int64(buf.Data[i])), nil
	case KindString:
		s := recv.AsString()
		i := normalizeIndex(idx, len(s))
		if i < 0 || i >= len(s) {
			return Void(), vm.raise(ErrInvalidIndex, "string index out of range")
		}
		return Str(string(s[i])), nil
	default:
		return Void(), vm.raise(ErrNotIndexable, "value does not support element access")
	}
}

// setIndexed implements SET_ELEM/SET_ELEM8.
func (vm *VM) setIndexed(recv Value, idx int64, val Value) error {
	switch recv.Kind() {
	case KindArray:
		arr := recv.AsArray()
		i := normalizeIndex(idx, len(arr.Elems))
		if i < 0 {
			return vm.raise(ErrInvalidIndex, "array index out of range")
		}
		arr.Set(i, val)
		return nil
	case KindBuffer:
		buf := recv.AsBuffer()
		i := normalizeIndex(idx, len(buf.Data))
		if i < 0 || i >= len(buf.Data) {
			return vm.raise(ErrInvalidIndex, "buffer index out of range")
		}
		if val.Kind() != KindInteger || val.AsInt() < 0 || val.AsInt() > 255 {
			return vm.raise(ErrInvalidByteValue, "buffer element must be an integer in [0,255]")
		}
		buf.Data[i] = byte(val.AsInt())
		return nil
	default:
		return vm.raise(ErrNotIndexable, "value does not support element assignment")
	}
}

// getNamed implements GET_PROP8/GET's string-key case: plain objects walk
// their prototype chain, classes/functions expose their prototype
// object's static members, and arrays expose the builtin `resize` method
// (spec §4.3.4's >255-element array-literal fallback).
func (vm *VM) getNamed(recv Value, name string) (Value, error) {
	switch recv.Kind() {
	case KindObject:
		v, _, err := recv.AsObject().Get(vm, name)
		return v, err
	case KindClass, KindFunction:
		fn := recv.AsFunction()
		if name == "args" && !fn.IsNative() {
			names := fn.Proto.ArgNames()
			elems := make([]Value, len(names))
			for i, n := range names {
				elems[i] = Str(n)
			}
			return Arr(NewArray(nil, elems)), nil
		}
		if proto := fn.ClassProto; proto != nil {
			v, _, err := proto.Get(vm, name)
			return v, err
		}
		return Void(), nil
	case KindArray:
		if name == "resize" {
			return Fn(vm.arrayResize), nil
		}
		return Void(), vm.raise(ErrNotIndexable, "array has no property '"+name+"'")
	default:
		return Void(), vm.raise(ErrNotIndexable, "value has no properties")
	}
}

func (vm *VM) setNamed(recv Value, name string, val Value) error {
	switch recv.Kind() {
	case KindObject:
		return recv.AsObject().Set(vm, name, val)
	case KindClass, KindFunction:
		if proto := recv.AsFunction().ClassProto; proto != nil {
			return proto.Set(vm, name, val)
		}
		return vm.raise(ErrNotIndexable, "value has no settable properties")
	default:
		return vm.raise(ErrNotIndexable, "value does not support property assignment")
	}
}

// setGetter implements SET_GETTER8: installing an object-literal `get`
// property (spec §4.3.4) as a live accessor rather than a plain value, so
// every later read re-invokes getter rather than returning a snapshot.
func (vm *VM) setGetter(recv Value, name string, getter Value) error {
	if recv.Kind() != KindObject {
		return vm.raise(ErrNotIndexable, "value does not support accessor properties")
	}
	if getter.Kind() != KindFunction {
		return vm.raise(ErrNotCallable, "getter is not a function")
	}
	recv.AsObject().SetAccessor(name, getter.AsFunction(), nil)
	return nil
}

func (vm *VM) delNamed(recv Value, name string) {
	if recv.Kind() == KindObject {
		recv.AsObject().Delete(name)
	}
}

// getDynamic/setDynamic/delDynamic implement the generic-key opcodes
// (GET/SET/DEL): a string key dispatches as a property, a numeric key as
// an element.
func (vm *VM) getDynamic(recv, key Value) (Value, error) {
	if key.Kind() == KindString {
		return vm.getNamed(recv, key.AsString())
	}
	if f, ok := key.Number(); ok {
		return vm.getIndexed(recv, int64(f))
	}
	return Void(), vm.raise(ErrInvalidIndex, "key is neither a string nor a number")
}

func (vm *VM) setDynamic(recv, key, val Value) error {
	if key.Kind() == KindString {
		return vm.setNamed(recv, key.AsString(), val)
	}
	if f, ok := key.Number(); ok {
		return vm.setIndexed(recv, int64(f), val)
	}
	return vm.raise(ErrInvalidIndex, "key is neither a string nor a number")
}

func (vm *VM) delDynamic(recv, key Value) {
	if key.Kind() == KindString {
		vm.delNamed(recv, key.AsString())
	}
}

// hasProp implements HAS_DP*/HAS_SH* (spec's membership-test family; the
// shallow/deep split is an Open Question decided in DESIGN.md): a
// receiver that isn't an object or class reports false rather than
// raising, since "does x have key k" is a natural query to make of any
// value.
func (vm *VM) hasProp(recv Value, name string, deep bool) bool {
	switch recv.Kind() {
	case KindObject:
		return recv.AsObject().Has(name, deep)
	case KindClass, KindFunction:
		if proto := recv.AsFunction().ClassProto; proto != nil {
			return proto.Has(name, deep)
		}
	}
	return false
}

// instanceOf implements INSTANCEOF (DESIGN.md Open Question decision): a
// string rhs is a primitive type-tag check against lhs's own Kind (e.g.
// `x instanceof "integer"`, the builtin-type-tag form), matching
// Kind.String()'s exact spelling; any other rhs must be a class value,
// checked by walking lhs's own prototype chain for rhs's prototype object.
func (vm *VM) instanceOf(lhs, rhs Value) (bool, error) {
	if rhs.Kind() == KindString {
		return lhs.Kind().String() == rhs.AsString(), nil
	}
	if rhs.Kind() != KindClass {
		return false, vm.raise(ErrNotClass, "right-hand side of instanceof is not a class or type name")
	}
	target := rhs.AsFunction().ClassProto
	if target == nil {
		return false, nil
	}
	for p := lhs.protoOf(); p != nil; p = p.Proto {
		if p == target {
			return true, nil
		}
	}
	return false, nil
}

// bitwise implements AND/OR/XOR: bitwise integer operations, distinct
// from the language's short-circuit logical &&/|| (which compile to
// JUMP_COND/JUMP_NOT_COND instead, never reaching these opcodes).
func (vm *VM) bitwise(op bytecode.Opcode, x, y Value) (Value, error) {
	if x.Kind() != KindInteger || y.Kind() != KindInteger {
		return Void(), vm.raise(ErrUnsupportedOperands, "bitwise operand is not an integer")
	}
	xi, yi := x.AsInt(), y.AsInt()
	switch op {
	case bytecode.AND:
		return Int(xi & yi), nil
	case bytecode.OR:
		return Int(xi | yi), nil
	case bytecode.XOR:
		return Int(xi ^ yi), nil
	}
	return Void(), vm.raise(ErrUnsupportedOperands, "unsupported bitwise operator")
}

// getRange implements GET_RANGE (`obj[a:b]` slicing): begin/end may be
// Void (open-ended) and negative indices count from the end, matching
// getIndexed's convention.
func (vm *VM) getRange(recv, beginV, endV Value) (Value, error) {
	length, err := vm.sliceableLength(recv)
	if err != nil {
		return Void(), err
	}
	begin := 0
	if !beginV.IsVoid() {
		begin = normalizeIndex(beginV.AsInt(), length)
	}
	end := length
	if !endV.IsVoid() {
		end = normalizeIndex(endV.AsInt(), length)
	}
	if begin < 0 {
		begin = 0
	}
	if end > length {
		end = length
	}
	if end < begin {
		end = begin
	}
	switch recv.Kind() {
	case KindArray:
		src := recv.AsArray().Elems
		out := append([]Value(nil), src[begin:end]...)
		return Arr(NewArray(nil, out)), nil
	case KindString:
		s := recv.AsString()
		return Str(s[begin:end]), nil
	default:
		return Void(), vm.raise(ErrSliceNotFunction, "value is not sliceable")
	}
}

func (vm *VM) sliceableLength(recv Value) (int, error) {
	switch recv.Kind() {
	case KindArray:
		return len(recv.AsArray().Elems), nil
	case KindString:
		return len(recv.AsString()), nil
	default:
		return 0, vm.raise(ErrSliceNotFunction, "value is not sliceable")
	}
}
