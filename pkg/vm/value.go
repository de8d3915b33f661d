// Package vm implements the interpreter (spec §4.5): the runtime value
// representation, the call stack, and the switch-dispatched execution
// loop that drives a compiled module's bytecode.
//
// The dispatch-loop shape (a single `for` over the active frame's
// instructions, with an explicit call stack rather than recursive Go
// calls) is grounded on the teacher's pkg/mirvm.VM.Run/executeInstruction;
// no example repo in the retrieval pack implements a dynamically-typed
// value system, so Value itself is modeled directly on the opcode set's
// TYPE tags (spec §6.1) rather than adapted from a pack file — see
// DESIGN.md.
package vm

import "math"

// Kind is the runtime type tag a TYPE instruction exposes to script code.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindObject
	KindArray
	KindBuffer
	KindFunction
	KindClass

	// kindIterator is an internal-only tag for LOAD_ITER's result: never
	// produced by TYPE on a user-constructed value, only ever written by
	// the interpreter itself into a temporary register consumed by
	// NEXT/NEXT_JUMP.
	kindIterator
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindBuffer:
		return "buffer"
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case kindIterator:
		return "iterator"
	default:
		return "unknown"
	}
}

// Value is the tagged runtime value every register holds. Numeric and
// boolean payloads live inline in n; everything else is a pointer in ref,
// so a Value is copyable by assignment exactly like a register MOVE.
type Value struct {
	kind Kind
	n    uint64
	ref  any
}

var voidValue = Value{kind: KindVoid}

func Void() Value { return voidValue }

func Bool(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{kind: KindBoolean, n: n}
}

func Int(i int64) Value { return Value{kind: KindInteger, n: uint64(i)} }

func Float(f float64) Value { return Value{kind: KindFloat, n: math.Float64bits(f)} }

func Str(s string) Value { return Value{kind: KindString, ref: &s} }

func Obj(o *Object) Value { return Value{kind: KindObject, ref: o} }

func Arr(a *Array) Value { return Value{kind: KindArray, ref: a} }

func Buf(b *Buffer) Value { return Value{kind: KindBuffer, ref: b} }

func Fn(f *FunctionValue) Value {
	k := KindFunction
	if f.Kind == FuncConstructor {
		k = KindClass
	}
	return Value{kind: k, ref: f}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsVoid() bool  { return v.kind == KindVoid }
func (v Value) AsBool() bool  { return v.n != 0 }
func (v Value) AsInt() int64  { return int64(v.n) }
func (v Value) AsFloat() float64 {
	return math.Float64frombits(v.n)
}
func (v Value) AsString() string { return *v.ref.(*string) }
func (v Value) AsObject() *Object { return v.ref.(*Object) }
func (v Value) AsArray() *Array   { return v.ref.(*Array) }
func (v Value) AsBuffer() *Buffer { return v.ref.(*Buffer) }
func (v Value) AsFunction() *FunctionValue { return v.ref.(*FunctionValue) }

// Number reports whether v holds an integer or float, and its value
// widened to float64 (used by the promotion rule in arithmetic).
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.AsInt()), true
	case KindFloat:
		return v.AsFloat(), true
	default:
		return 0, false
	}
}

// Truthy implements the language's boolean-coercion rule (spec is silent;
// decided here the same way most dynamically-typed VMs in this family do
// it — see DESIGN.md "Open Question: truthiness"): void, false, zero
// (int or float), and the empty string are falsy; every other value,
// including empty arrays/objects, is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindVoid:
		return false
	case KindBoolean:
		return v.AsBool()
	case KindInteger:
		return v.AsInt() != 0
	case KindFloat:
		return v.AsFloat() != 0
	case KindString:
		return v.AsString() != ""
	default:
		return true
	}
}

// protoOf returns v's prototype object for GET_PROTO/INSTANCEOF chain
// walking, or nil if v carries none.
func (v Value) protoOf() *Object {
	switch v.kind {
	case KindObject:
		return v.AsObject().Proto
	case KindArray:
		return v.AsArray().Proto
	case KindBuffer:
		return v.AsBuffer().Proto
	case KindFunction, KindClass:
		return v.AsFunction().ClassProto
	default:
		return nil
	}
}
