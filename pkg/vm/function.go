package vm

import "github.com/kos-lang/kos/pkg/bytecode"

// FuncKind distinguishes the three call-site behaviors a FunctionValue
// can have (spec §4.5 generator-state table's "ctor"/"fun" rows plus the
// generator rows): a class constructor allocates and returns `this`, a
// plain function just executes and returns its result, a generator
// suspends at YIELD instead of running straight through.
type FuncKind uint8

const (
	FuncPlain FuncKind = iota
	FuncConstructor
	FuncGenerator
)

// GenState is the generator-instance state machine (spec §4.5).
type GenState uint8

const (
	GenInit GenState = iota
	GenReady
	GenActive
	GenRunning
	GenDone
)

// FunctionProto is the template shared by every FunctionValue spawned
// from one function literal: the compiled header plus the named-argument
// map the interpreter consults for object-style call arguments (spec
// §4.5 "Named arguments").
type FunctionProto struct {
	Header *bytecode.FunctionHeader
	Name   string
	Module *Program
}

// ArgNames returns the proto's named parameters in declaration order
// (supplemented feature, SPEC_FULL.md §3: "args object reflection").
func (p *FunctionProto) ArgNames() []string {
	names := make([]string, len(p.Header.ParamNameIdx))
	for i, idx := range p.Header.ParamNameIdx {
		names[i] = p.Module.ConstString(int(idx))
	}
	return names
}

// NativeFunc is a host-implemented function value (spec §4.5: "If the
// function is host-native ('handler'), invoke it directly").
type NativeFunc func(vm *VM, this Value, args []Value) (Value, error)

// FunctionValue is the runtime value behind KindFunction/KindClass (spec
// §3 "Function value"). Copying (Spawn) produces an independent instance
// with its own generator state, used when a generator function is called
// and transitions gen-init -> gen-ready.
type FunctionValue struct {
	Proto *FunctionProto // nil for Native

	Closures []Value // bind-registers array
	Defaults []Value // default-argument values, parallel to used-default slots

	ClassProto *Object // prototype object slot, set only for classes

	Kind  FuncKind
	State GenState

	Native NativeFunc

	frame *frame // suspended generator frame, set once execution has started

	// pendingThis/pendingArgs hold the call arguments a generator
	// instance was created with, applied the first time it is resumed
	// (spec §4.5: calling a generator function only instantiates it;
	// the body doesn't run until the first NEXT/resume).
	pendingThis Value
	pendingArgs []Value
}

func (f *FunctionValue) IsGenerator() bool   { return f.Kind == FuncGenerator }
func (f *FunctionValue) IsConstructor() bool { return f.Kind == FuncConstructor }
func (f *FunctionValue) IsNative() bool      { return f.Native != nil }

// Spawn returns a fresh, independent generator instance in gen-init
// state, copying the template's closures/defaults but none of the
// previous instance's suspended frame (spec §3: "Copying a function
// produces a distinct value with independent state").
func (f *FunctionValue) Spawn() *FunctionValue {
	cp := *f
	cp.State = GenInit
	cp.frame = nil
	return &cp
}

func NewNativeFunction(name string, fn NativeFunc) *FunctionValue {
	return &FunctionValue{
		Proto:  &FunctionProto{Header: bytecode.NewFunctionHeader(0), Name: name},
		Native: fn,
	}
}
